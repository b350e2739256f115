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

package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
)

// Manager owns one database connection used to install procedures, run
// migrations and seeds, and serve procedure calls locally.
type Manager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Reconnect(ctx context.Context) error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	GetDB() *bun.DB
	GetSQLDB() *sql.DB
	Executor() *Executor
	RunMigrations(ctx context.Context) error
	Seed(ctx context.Context) ([]SeedResult, error)
	GetStats() *DBStats
	SetLogger(logger Logger)
}

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	ResponseTime  time.Duration `json:"response_time"`
	ActiveConns   int           `json:"active_conns"`
	IdleConns     int           `json:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats mirrors database/sql stats returned by the manager.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

// ConnectionConfig describes how to connect to a database and tune its pool.
// DSN, when set, is used as is instead of the individual fields.
type ConnectionConfig struct {
	Type                string        `json:"type" yaml:"type" env:"DB_TYPE"` // postgres, sqlite
	DSN                 string        `json:"dsn" yaml:"dsn" env:"DB_DSN"`
	Host                string        `json:"host" yaml:"host" env:"DB_HOST"`
	Port                int           `json:"port" yaml:"port" env:"DB_PORT"`
	Username            string        `json:"username" yaml:"username" env:"DB_USERNAME"`
	Password            string        `json:"password" yaml:"password" env:"DB_PASSWORD"`
	DBName              string        `json:"dbname" yaml:"dbname" env:"DB_NAME"`
	SSLMode             string        `json:"sslmode" yaml:"sslmode" env:"DB_SSLMODE"`
	MaxIdleConns        int           `json:"max_idle_conns" yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
	MaxOpenConns        int           `json:"max_open_conns" yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	ConnMaxLifetime     time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime     time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	ConnectTimeout      time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	EnableReconnect     bool          `json:"enable_reconnect" yaml:"enable_reconnect" env:"DB_ENABLE_RECONNECT"`
	ReconnectInterval   time.Duration `json:"reconnect_interval" yaml:"reconnect_interval" env:"DB_RECONNECT_INTERVAL"`
	MaxReconnectTries   int           `json:"max_reconnect_tries" yaml:"max_reconnect_tries"`
	HealthCheckInterval time.Duration `json:"health_check_interval" yaml:"health_check_interval"`
	EnableQueryLog      bool          `json:"enable_query_log" yaml:"enable_query_log" env:"DB_ENABLE_QUERY_LOG"`
	SlowQueryTime       time.Duration `json:"slow_query_time" yaml:"slow_query_time"`
	// SeedDir holds NNN_name.sql files run by Manager.Seed.
	SeedDir string `json:"seed_dir" yaml:"seed_dir" env:"DB_SEED_DIR"`
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Type:                "postgres",
		Host:                "127.0.0.1",
		Port:                5432,
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     time.Minute * 30,
		ConnectTimeout:      time.Second * 10,
		EnableReconnect:     true,
		ReconnectInterval:   time.Second * 5,
		MaxReconnectTries:   3,
		HealthCheckInterval: 0,
		SlowQueryTime:       time.Second * 2,
	}
}
