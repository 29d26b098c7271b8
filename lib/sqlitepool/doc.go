// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the FleetLink-standard SQLite connection
// pool.
//
// It wraps zombiezen.com/go/sqlite with production defaults: WAL
// journal mode, NORMAL synchronous for process-crash durability
// without fsync-per-commit overhead, memory-mapped I/O for read
// performance, and a busy timeout to handle write contention
// gracefully.
//
// The pool is built on zombiezen's sqlitex.Pool, which manages a
// fixed-size set of connections. Callers [Pool.Take] a connection,
// perform work, and [Pool.Put] it back. Connections are NOT safe for
// concurrent use — each goroutine must hold its own connection for the
// duration of its work. The store opens the pool with size 1, which
// makes Take/Put the mutual-exclusion primitive serializing all
// database access.
//
// This package is intentionally thin: it applies standard pragmas and
// exposes the underlying zombiezen types directly. Callers write SQL,
// use sqlitex.Execute for cached statements, and manage transactions
// with sqlitex.Save. There is no query builder and no attempt to
// abstract away SQLite's connection model.
package sqlitepool
