// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/fleetlink-foundation/fleetlink/lib/sqlitepool"
	"github.com/fleetlink-foundation/fleetlink/peer"
)

// schema is executed once per connection. Both tables share the same
// shape: a UUID primary key in text form, the framed blob, its
// digest, and a bookkeeping timestamp. List order is rowid order,
// which preserves insertion order.
const schema = `
CREATE TABLE IF NOT EXISTS peer_descriptors (
    id         TEXT PRIMARY KEY,
    blob       BLOB NOT NULL,
    digest     BLOB NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE TABLE IF NOT EXISTS peer_configurations (
    id         TEXT PRIMARY KEY,
    blob       BLOB NOT NULL,
    digest     BLOB NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);
`

// Config holds the parameters for opening a Store.
type Config struct {
	// Path is the SQLite database file. Required.
	Path string

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger

	// Compression selects the blob compression algorithm for writes.
	// Reads handle every algorithm regardless of this setting.
	// Defaults to zstd.
	Compression CompressionTag
}

// Store is the persistence gateway. All database access is serialized
// through a single connection; see the package documentation.
type Store struct {
	pool        *sqlitepool.Pool
	logger      *slog.Logger
	compression CompressionTag
}

// Open opens (creating if necessary) the database at cfg.Path and
// prepares the schema. The caller must Close the store when done.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	compression := cfg.Compression
	if compression == CompressionNone {
		compression = CompressionZstd
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path: cfg.Path,
		// Pool size 1: borrowing the connection is the store's
		// mutual-exclusion primitive. Writes and reads alike see
		// strictly serialized access.
		PoolSize: 1,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	return &Store{
		pool:        pool,
		logger:      logger,
		compression: compression,
	}, nil
}

// Close releases the database connection. Blocks until in-flight
// operations finish.
func (s *Store) Close() error {
	return s.pool.Close()
}

// resource names used in structured errors.
const (
	resourcePeerConfiguration = "PeerConfiguration"
	resourcePeerDescriptor    = "PeerDescriptor"
)

// InsertPeerConfiguration writes (or replaces) the configuration for
// a peer.
func (s *Store) InsertPeerConfiguration(ctx context.Context, id peer.ID, configuration peer.Configuration) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		return insertRow(conn, "peer_configurations", resourcePeerConfiguration, id, configuration, s.compression)
	})
}

// GetPeerConfiguration loads the configuration for a peer. Returns
// (nil, nil) when the peer has no stored configuration.
func (s *Store) GetPeerConfiguration(ctx context.Context, id peer.ID) (*peer.Configuration, error) {
	var result *peer.Configuration
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		var innerErr error
		result, innerErr = getRow[peer.Configuration](conn, "peer_configurations", resourcePeerConfiguration, id)
		return innerErr
	})
	return result, err
}

// ListPeerConfigurations returns all stored configurations in
// insertion order.
func (s *Store) ListPeerConfigurations(ctx context.Context) ([]peer.Configuration, error) {
	var result []peer.Configuration
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		var innerErr error
		result, innerErr = listRows[peer.Configuration](conn, "peer_configurations", resourcePeerConfiguration)
		return innerErr
	})
	return result, err
}

// RemovePeerConfiguration deletes the configuration for a peer.
// Removing a peer that has no configuration is a no-op.
func (s *Store) RemovePeerConfiguration(ctx context.Context, id peer.ID) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		return removeRow(conn, "peer_configurations", resourcePeerConfiguration, id)
	})
}

// InsertPeerDescriptor writes (or replaces) a peer's operator-facing
// descriptor.
func (s *Store) InsertPeerDescriptor(ctx context.Context, descriptor peer.Descriptor) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		return insertRow(conn, "peer_descriptors", resourcePeerDescriptor, descriptor.ID, descriptor, s.compression)
	})
}

// GetPeerDescriptor loads a peer's descriptor. Returns (nil, nil)
// when the peer is unknown.
func (s *Store) GetPeerDescriptor(ctx context.Context, id peer.ID) (*peer.Descriptor, error) {
	var result *peer.Descriptor
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		var innerErr error
		result, innerErr = getRow[peer.Descriptor](conn, "peer_descriptors", resourcePeerDescriptor, id)
		return innerErr
	})
	return result, err
}

// ListPeerDescriptors returns all stored descriptors in insertion
// order.
func (s *Store) ListPeerDescriptors(ctx context.Context) ([]peer.Descriptor, error) {
	var result []peer.Descriptor
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		var innerErr error
		result, innerErr = listRows[peer.Descriptor](conn, "peer_descriptors", resourcePeerDescriptor)
		return innerErr
	})
	return result, err
}

// RemovePeerDescriptor deletes a peer's descriptor. Removing an
// unknown peer is a no-op.
func (s *Store) RemovePeerDescriptor(ctx context.Context, id peer.ID) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		return removeRow(conn, "peer_descriptors", resourcePeerDescriptor, id)
	})
}

// Tx provides the same typed operations inside a transaction. All Tx
// calls share the transaction's connection and therefore see the
// transactional view, including uncommitted writes made earlier in
// the same body.
type Tx struct {
	conn        *sqlite.Conn
	compression CompressionTag
}

// Transaction runs body inside a SAVEPOINT. If body returns an error,
// the transaction rolls back and the error is returned; otherwise it
// commits. The connection is held for the whole body, so concurrent
// store calls block until the transaction finishes.
func (s *Store) Transaction(ctx context.Context, body func(tx *Tx) error) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return newListError("Transaction", err)
	}
	defer s.pool.Put(conn)

	defer sqlitex.Save(conn)(&err)
	return body(&Tx{conn: conn, compression: s.compression})
}

// InsertPeerConfiguration writes a configuration within the transaction.
func (tx *Tx) InsertPeerConfiguration(id peer.ID, configuration peer.Configuration) error {
	return insertRow(tx.conn, "peer_configurations", resourcePeerConfiguration, id, configuration, tx.compression)
}

// GetPeerConfiguration reads a configuration within the transaction.
func (tx *Tx) GetPeerConfiguration(id peer.ID) (*peer.Configuration, error) {
	return getRow[peer.Configuration](tx.conn, "peer_configurations", resourcePeerConfiguration, id)
}

// RemovePeerConfiguration deletes a configuration within the transaction.
func (tx *Tx) RemovePeerConfiguration(id peer.ID) error {
	return removeRow(tx.conn, "peer_configurations", resourcePeerConfiguration, id)
}

// InsertPeerDescriptor writes a descriptor within the transaction.
func (tx *Tx) InsertPeerDescriptor(descriptor peer.Descriptor) error {
	return insertRow(tx.conn, "peer_descriptors", resourcePeerDescriptor, descriptor.ID, descriptor, tx.compression)
}

// GetPeerDescriptor reads a descriptor within the transaction.
func (tx *Tx) GetPeerDescriptor(id peer.ID) (*peer.Descriptor, error) {
	return getRow[peer.Descriptor](tx.conn, "peer_descriptors", resourcePeerDescriptor, id)
}

// RemovePeerDescriptor deletes a descriptor within the transaction.
func (tx *Tx) RemovePeerDescriptor(id peer.ID) error {
	return removeRow(tx.conn, "peer_descriptors", resourcePeerDescriptor, id)
}

// withConn borrows the store's connection for the duration of fn.
func (s *Store) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

// insertRow writes (or replaces) one resource row.
func insertRow[T any](conn *sqlite.Conn, table, resource string, id peer.ID, value T, compression CompressionTag) error {
	blob, digest, err := encodeBlob(value, compression)
	if err != nil {
		return newError(resource, OpInsert, id.UUID(), err)
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (id, blob, digest) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET blob = excluded.blob,
		                                digest = excluded.digest,
		                                updated_at = unixepoch()`, table)
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{id.String(), blob, digest[:]},
	})
	if err != nil {
		return newError(resource, OpInsert, id.UUID(), err)
	}
	return nil
}

// getRow reads one resource row. Returns (nil, nil) when the row does
// not exist.
func getRow[T any](conn *sqlite.Conn, table, resource string, id peer.ID) (*T, error) {
	var result *T
	var decodeErr error

	query := fmt.Sprintf(`SELECT blob, digest FROM %s WHERE id = ?`, table)
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{id.String()},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			blob := make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, blob)
			digest := make([]byte, stmt.ColumnLen(1))
			stmt.ColumnBytes(1, digest)

			var value T
			if decodeErr = decodeBlob(blob, digest, &value); decodeErr == nil {
				result = &value
			}
			return nil
		},
	})
	if err != nil {
		return nil, newError(resource, OpGet, id.UUID(), err)
	}
	if decodeErr != nil {
		return nil, newError(resource, OpGet, id.UUID(), decodeErr)
	}
	return result, nil
}

// listRows reads all resource rows in insertion (rowid) order.
func listRows[T any](conn *sqlite.Conn, table, resource string) ([]T, error) {
	var result []T
	var decodeErr error

	query := fmt.Sprintf(`SELECT blob, digest FROM %s ORDER BY rowid`, table)
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if decodeErr != nil {
				return nil
			}
			blob := make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, blob)
			digest := make([]byte, stmt.ColumnLen(1))
			stmt.ColumnBytes(1, digest)

			var value T
			if decodeErr = decodeBlob(blob, digest, &value); decodeErr == nil {
				result = append(result, value)
			}
			return nil
		},
	})
	if err != nil {
		return nil, newListError(resource, err)
	}
	if decodeErr != nil {
		return nil, newListError(resource, decodeErr)
	}
	return result, nil
}

// removeRow deletes one resource row. Deleting a missing row is a
// no-op.
func removeRow(conn *sqlite.Conn, table, resource string, id peer.ID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table)
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{id.String()},
	})
	if err != nil {
		return newError(resource, OpRemove, id.UUID(), err)
	}
	return nil
}
