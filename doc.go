// Package budgetbase is the data-access layer of the budgeting application.
//
// Rows are read and written through repository.Repository, which talks to a
// Supabase backend either with PostgREST structured queries or with
// parameterized SQL executed by the query_single, query_many and execute_sql
// procedures. Service adds paging on top of a repository.
//
//	client, _ := supabase.New(supabase.Config{URL: url, APIKey: anonKey})
//	budgets, _ := budgetbase.NewServiceFor[types.Row](client, "budgets", repository.StructuredQuery)
//	page, _ := budgets.Page(ctx, types.NewDefaultPageRequest(1, 20))
package budgetbase
