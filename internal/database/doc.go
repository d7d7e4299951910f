// Package database implements the domain repositories on PostgreSQL via pgx.
// The unique constraints on votes(identity_id, poll_id) and
// poll_likes(identity_id, poll_id) are what enforce the at-most-one
// invariants; repositories translate constraint violations into domain errors.
package database
