// Package config loads budgetbase settings from a YAML file, .env files and
// environment variables such as SUPABASE_URL, SUPABASE_ANON_KEY,
// BUDGETBASE_STRATEGY, DB_HOST and LOG_LEVEL.
package config
