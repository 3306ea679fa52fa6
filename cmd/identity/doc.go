// Package identity answers the two questions the session layer asks about
// a subject: do these credentials belong to someone, and does this subject
// still exist.
//
// PostgresStore splits the two across pools: credential checks read the
// private account table through an elevated pool, existence checks go
// through a least-privilege pool. MemoryStore backs tests and local runs
// without a database.
package identity
