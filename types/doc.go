// Package types holds the strategy-agnostic query descriptor, ordered field
// assignments, untyped rows and pagination containers.
package types
