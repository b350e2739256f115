// Package repository provides a generic, strategy-selected repository over a
// Supabase backend: structured PostgREST queries or parameterized SQL sent
// through remote procedures, both behind the same Repository[T] interface.
package repository
