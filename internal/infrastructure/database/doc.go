// Package database provides SQLite connection management for Boom Gate Core.
//
// It wraps database/sql with WAL-mode pragmas tuned for an embedded
// single-writer workload and applies the operation-log schema on open.
// The audit package builds its repository on top of the returned *DB.
package database
