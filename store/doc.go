// Package store answers the one relational question the gateway asks: what is
// the status column of a user row. [SQL] runs
//
//	SELECT status FROM Users WHERE user_id = ? LIMIT 1
//
// against MySQL (the platform default) or PostgreSQL through sqlx. [Memory]
// is an in-process table for development and tests.
package store
