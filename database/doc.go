// Package database connects to Postgres or SQLite through bun, installs the
// query_single, query_many and execute_sql procedures, seeds data and runs
// those procedures locally through Executor. Driver errors are mapped to
// PostgREST style *supabase.Error values by ClassifySQLError.
package database
