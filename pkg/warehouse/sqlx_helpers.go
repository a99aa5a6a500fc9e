package warehouse

import "github.com/jmoiron/sqlx"

// sqlxIn is sqlx.In under a short local name — every repository that builds
// a dynamic IN(...) clause goes through it so the `?`-to-`$N` rebind step
// lives in one place per query.
func sqlxIn(query string, args ...any) (string, []any, error) {
	return sqlx.In(query, args...)
}
