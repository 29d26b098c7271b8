// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/fleetlink-foundation/fleetlink/lib/codec"
)

// Blob layout: [1 byte compression tag] [4 bytes uncompressed size,
// big-endian uint32] [compressed payload]. The digest column holds a
// 32-byte keyed BLAKE3 hash over the uncompressed CBOR bytes, so
// digests are independent of the compression algorithm in use when
// the row was written.

// blobHeaderLength is the fixed blob prefix: tag + uncompressed size.
const blobHeaderLength = 5

// blobDomainKey is the BLAKE3 key for blob digests. Domain separation
// keeps store digests distinct from any other BLAKE3 use. The value is
// the ASCII domain name zero-padded to 32 bytes; it is a format
// constant.
var blobDomainKey = [32]byte{
	'f', 'l', 'e', 'e', 't', 'l', 'i', 'n', 'k', '.', 's', 't', 'o', 'r', 'e', '.',
	'b', 'l', 'o', 'b', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// digestBlob computes the keyed BLAKE3 digest of uncompressed encoded
// bytes.
func digestBlob(encoded []byte) [32]byte {
	hasher, err := blake3.NewKeyed(blobDomainKey[:])
	if err != nil {
		// NewKeyed only fails on a key of the wrong length, and the
		// key is a compile-time constant.
		panic("store: blake3 keyed hasher initialization failed: " + err.Error())
	}
	_, _ = hasher.Write(encoded)
	var digest [32]byte
	hasher.Digest().Read(digest[:])
	return digest
}

// encodeBlob serializes value to deterministic CBOR, compresses it
// with the requested algorithm (falling back to no compression when
// the data does not shrink), and returns the framed blob plus the
// digest of the uncompressed bytes.
func encodeBlob(value any, tag CompressionTag) (blob []byte, digest [32]byte, err error) {
	encoded, err := codec.Marshal(value)
	if err != nil {
		return nil, digest, fmt.Errorf("encode: %w", err)
	}

	compressed, compressionErr := compress(encoded, tag)
	if compressionErr == errIncompressible {
		tag = CompressionNone
		compressed = encoded
	} else if compressionErr != nil {
		return nil, digest, compressionErr
	}

	blob = make([]byte, blobHeaderLength+len(compressed))
	blob[0] = byte(tag)
	binary.BigEndian.PutUint32(blob[1:5], uint32(len(encoded)))
	copy(blob[blobHeaderLength:], compressed)

	return blob, digestBlob(encoded), nil
}

// decodeBlob reverses encodeBlob: decompress, verify the digest, and
// unmarshal into out.
func decodeBlob(blob []byte, digest []byte, out any) error {
	if len(blob) < blobHeaderLength {
		return fmt.Errorf("blob shorter than header: %d bytes", len(blob))
	}
	tag := CompressionTag(blob[0])
	uncompressedSize := int(binary.BigEndian.Uint32(blob[1:5]))

	encoded, err := decompress(blob[blobHeaderLength:], tag, uncompressedSize)
	if err != nil {
		return err
	}

	expected := digestBlob(encoded)
	if len(digest) != len(expected) || string(digest) != string(expected[:]) {
		return fmt.Errorf("blob digest mismatch: stored row is corrupt")
	}

	if err := codec.Unmarshal(encoded, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
