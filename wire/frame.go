// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame type constants. Each frame is a 5-byte header (1 byte type +
// 4 byte big-endian payload length) followed by a CBOR payload. These
// values are protocol constants — changing them breaks compatibility
// with deployed peers.
const (
	// FrameTypeMetadata carries the handshake metadata map. Peer to
	// broker only, first frame on every connection.
	FrameTypeMetadata byte = 0x01

	// FrameTypeStatus carries the handshake outcome. Broker to peer
	// only, in response to a Metadata frame.
	FrameTypeStatus byte = 0x02

	// FrameTypeUpstream carries an Upstream envelope. Peer to broker,
	// steady state.
	FrameTypeUpstream byte = 0x03

	// FrameTypeDownstream carries a Downstream envelope. Broker to
	// peer, steady state.
	FrameTypeDownstream byte = 0x04
)

// frameHeaderLength is the fixed size of a frame header: 1 byte type
// + 4 bytes payload length.
const frameHeaderLength = 5

// maxPayloadLength bounds a single frame payload. Configurations for
// even very large peers fit in well under 1 MB; 16 MB leaves room
// without letting a malformed length prefix allocate unbounded memory.
const maxPayloadLength = 16 * 1024 * 1024

// Frame is a single protocol frame.
type Frame struct {
	Type    byte
	Payload []byte
}

// WriteFrame writes a framed message to w. The frame format is:
// [1 byte type] [4 bytes payload length, big-endian uint32] [payload].
func WriteFrame(w io.Writer, frame Frame) error {
	var header [frameHeaderLength]byte
	header[0] = frame.Type
	binary.BigEndian.PutUint32(header[1:5], uint32(len(frame.Payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(frame.Payload) > 0 {
		if _, err := w.Write(frame.Payload); err != nil {
			return fmt.Errorf("write frame payload: %w", err)
		}
	}
	return nil
}

// ReadFrame reads a framed message from r. Returns an error if the
// stream is malformed or the payload exceeds maxPayloadLength.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, err
	}
	frameType := header[0]
	payloadLength := binary.BigEndian.Uint32(header[1:5])
	if payloadLength > maxPayloadLength {
		return Frame{}, fmt.Errorf("payload length %d exceeds maximum %d", payloadLength, maxPayloadLength)
	}
	payload := make([]byte, payloadLength)
	if payloadLength > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, fmt.Errorf("read frame payload: %w", err)
		}
	}
	return Frame{Type: frameType, Payload: payload}, nil
}
