// Package postgres implements every store interface on PostgreSQL through
// database/sql and lib/pq.
//
// Guarded mutations are single conditional statements, for example
//
//	UPDATE auth_tokens SET used_at = $2
//	WHERE id = $1 AND used_at IS NULL AND expires_at > $2
//
// so concurrent processes can never both pass the same guard. The schema is
// embedded and applied with golang-migrate via [RunMigrations].
package postgres
