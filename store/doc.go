// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

// Package store is the broker's persistence gateway. It owns the
// SQLite database and exposes typed insert/get/list/remove operations
// over peer resources, plus a transaction scope.
//
// All access is serialized: the store opens its lib/sqlitepool with a
// pool size of 1, so borrowing the connection is the mutual-exclusion
// primitive. Calls made through [Store.Transaction] share one borrow
// for the whole transaction body and therefore see the transactional
// view; calls made outside see only committed state.
//
// Values are persisted as CBOR blobs (lib/codec deterministic
// encoding), compressed with a tagged algorithm (zstd by default), and
// paired with a keyed BLAKE3 digest over the uncompressed bytes. The
// digest is verified on every read, so silent database corruption
// surfaces as an explicit error instead of a misparsed configuration.
//
// Every failure is reported as a [*Error] carrying the resource name,
// the operation, the primary key when there is one, and an ordered
// chain of context messages appended as the error propagates upward.
package store
