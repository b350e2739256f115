/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

type Logger = logrus.Logger

const defaultTimestampFormat = "2006-01-02 15:04:05.000"

// LogOptions are the process wide logging defaults applied to every named
// logger, including ones created before Configure is called.
type LogOptions struct {
	// Level is trace, debug, info, warn or error.
	Level string
	// Format is text or json.
	Format string
	// Output defaults to stderr.
	Output  io.Writer
	NoColor bool
}

var (
	registryMu sync.RWMutex
	registry   = map[string]*logrus.Logger{}
	current    = LogOptions{
		Level:   EnvDefaultString("LOG_LEVEL", "info"),
		Format:  EnvDefaultString("LOG_FORMAT", "text"),
		Output:  os.Stderr,
		NoColor: EnvDefaultBool("LOG_NO_COLOR", false),
	}
)

// Configure replaces the logging defaults and reapplies them to registered
// loggers. Empty fields keep their previous value.
func Configure(opts LogOptions) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if opts.Level != "" {
		current.Level = opts.Level
	}
	if opts.Format != "" {
		current.Format = opts.Format
	}
	if opts.Output != nil {
		current.Output = opts.Output
	}
	current.NoColor = opts.NoColor
	for name, l := range registry {
		apply(name, l, current)
	}
}

func apply(name string, l *logrus.Logger, opts LogOptions) {
	l.SetLevel(ParseLogLevel(opts.Level))
	l.SetOutput(opts.Output)
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		l.SetFormatter(&JSONLogFormatter{LoggerName: name})
		return
	}
	l.SetFormatter(&TextLogFormatter{LoggerName: name, NoColor: opts.NoColor, NameWidth: 10})
}

// NewLogger returns the logger registered under name, creating it with the
// current defaults on first use.
func NewLogger(name string) *logrus.Logger {
	registryMu.Lock()
	defer registryMu.Unlock()
	if l, ok := registry[name]; ok {
		return l
	}
	l := logrus.New()
	l.SetReportCaller(true)
	apply(name, l, current)
	registry[name] = l
	return l
}

// SetLoggerLevel changes the level of one registered logger.
func SetLoggerLevel(name string, level string) bool {
	registryMu.RLock()
	l, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return false
	}
	l.SetLevel(ParseLogLevel(level))
	return true
}

func ParseLogLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// TextLogFormatter renders Log4j style lines:
//
//	2025-01-02 15:04:05.000    INFO 4242   --- [ REPOSITORY] rest.go:57 : message key=value
type TextLogFormatter struct {
	LoggerName      string
	TimestampFormat string
	NoColor         bool
	NameWidth       int
}

func (f *TextLogFormatter) paint(attr color.Attribute, s string) string {
	if f.NoColor {
		return s
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(s)
}

func (f *TextLogFormatter) levelColor(level logrus.Level) color.Attribute {
	switch level {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return color.FgRed
	case logrus.WarnLevel:
		return color.FgYellow
	case logrus.InfoLevel:
		return color.FgGreen
	case logrus.DebugLevel:
		return color.FgBlue
	default:
		return color.FgMagenta
	}
}

func (f *TextLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	tsFormat := f.TimestampFormat
	if tsFormat == "" {
		tsFormat = defaultTimestampFormat
	}
	var b strings.Builder
	b.WriteString(entry.Time.Format(tsFormat))
	b.WriteByte(' ')
	b.WriteString(f.paint(f.levelColor(entry.Level), fmt.Sprintf("%7s", strings.ToUpper(entry.Level.String()))))
	b.WriteByte(' ')
	b.WriteString(f.paint(color.FgMagenta, fmt.Sprintf("%-6d", os.Getpid())))
	b.WriteString(" --- [")
	b.WriteString(f.paint(color.FgCyan, fmt.Sprintf("%*s", f.NameWidth, f.LoggerName)))
	b.WriteByte(']')
	if entry.HasCaller() {
		b.WriteByte(' ')
		b.WriteString(f.paint(color.Faint, shortCaller(entry.Caller.File, entry.Caller.Line)))
	}
	b.WriteString(" : ")
	b.WriteString(entry.Message)
	for _, k := range sortedKeys(entry.Data) {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// JSONLogFormatter renders one JSON object per line.
type JSONLogFormatter struct {
	LoggerName      string
	TimestampFormat string
}

type jsonLogRecord struct {
	Time    string                 `json:"time"`
	Level   string                 `json:"level"`
	Logger  string                 `json:"logger"`
	Caller  string                 `json:"caller,omitempty"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

func (f *JSONLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	tsFormat := f.TimestampFormat
	if tsFormat == "" {
		tsFormat = defaultTimestampFormat
	}
	rec := jsonLogRecord{
		Time:    entry.Time.Format(tsFormat),
		Level:   entry.Level.String(),
		Logger:  f.LoggerName,
		Message: entry.Message,
	}
	if entry.HasCaller() {
		rec.Caller = shortCaller(entry.Caller.File, entry.Caller.Line)
	}
	if len(entry.Data) > 0 {
		rec.Fields = make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			rec.Fields[k] = v
		}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// shortCaller keeps the parent directory and file name: "repository/rest.go:57".
func shortCaller(file string, line int) string {
	file = filepath.ToSlash(file)
	parts := strings.Split(file, "/")
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	return strings.Join(parts, "/") + ":" + strconv.Itoa(line)
}

func sortedKeys(m logrus.Fields) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Elapsed is a compact duration for log fields.
func Elapsed(start time.Time) time.Duration {
	return time.Since(start).Round(time.Microsecond)
}

func EnvDefaultString(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
	return def
}
