// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"io"

	"github.com/fleetlink-foundation/fleetlink/lib/codec"
)

// Stream wraps a bidirectional byte stream with typed frame I/O. It
// adds no synchronization: the protocol has exactly one reader and one
// writer per direction (the session's two pumps), and the handshake
// completes before the pumps start.
type Stream struct {
	rw io.ReadWriter
}

// NewStream wraps rw for typed frame exchange.
func NewStream(rw io.ReadWriter) *Stream {
	return &Stream{rw: rw}
}

// Close closes the underlying stream when it supports closing. A
// blocked ReadUpstream/ReadDownstream returns with an error after
// Close; this is how a session unblocks its reader during shutdown.
func (s *Stream) Close() error {
	if closer, ok := s.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// ReadMetadata reads the handshake metadata frame. Returns an error if
// the first frame is not a Metadata frame.
func (s *Stream) ReadMetadata() (map[string]string, error) {
	frame, err := ReadFrame(s.rw)
	if err != nil {
		return nil, err
	}
	if frame.Type != FrameTypeMetadata {
		return nil, fmt.Errorf("expected metadata frame, got type 0x%02x", frame.Type)
	}
	var metadata map[string]string
	if err := codec.Unmarshal(frame.Payload, &metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return metadata, nil
}

// WriteMetadata writes the handshake metadata frame. Used by the peer
// side (edge clients, tests).
func (s *Stream) WriteMetadata(metadata map[string]string) error {
	payload, err := codec.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return WriteFrame(s.rw, Frame{Type: FrameTypeMetadata, Payload: payload})
}

// ReadStatus reads the handshake status frame. Used by the peer side.
func (s *Stream) ReadStatus() (Status, error) {
	frame, err := ReadFrame(s.rw)
	if err != nil {
		return Status{}, err
	}
	if frame.Type != FrameTypeStatus {
		return Status{}, fmt.Errorf("expected status frame, got type 0x%02x", frame.Type)
	}
	var status Status
	if err := codec.Unmarshal(frame.Payload, &status); err != nil {
		return Status{}, fmt.Errorf("decode status: %w", err)
	}
	return status, nil
}

// WriteStatus writes the handshake status frame.
func (s *Stream) WriteStatus(status Status) error {
	payload, err := codec.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return WriteFrame(s.rw, Frame{Type: FrameTypeStatus, Payload: payload})
}

// ReadUpstream reads one Upstream envelope. Returns io.EOF (possibly
// wrapped) when the stream ends.
func (s *Stream) ReadUpstream() (Upstream, error) {
	frame, err := ReadFrame(s.rw)
	if err != nil {
		return Upstream{}, err
	}
	if frame.Type != FrameTypeUpstream {
		return Upstream{}, fmt.Errorf("expected upstream frame, got type 0x%02x", frame.Type)
	}
	var upstream Upstream
	if err := codec.Unmarshal(frame.Payload, &upstream); err != nil {
		return Upstream{}, fmt.Errorf("decode upstream: %w", err)
	}
	return upstream, nil
}

// WriteUpstream writes one Upstream envelope. Used by the peer side.
func (s *Stream) WriteUpstream(upstream Upstream) error {
	payload, err := codec.Marshal(upstream)
	if err != nil {
		return fmt.Errorf("encode upstream: %w", err)
	}
	return WriteFrame(s.rw, Frame{Type: FrameTypeUpstream, Payload: payload})
}

// ReadDownstream reads one Downstream envelope. Used by the peer side.
func (s *Stream) ReadDownstream() (Downstream, error) {
	frame, err := ReadFrame(s.rw)
	if err != nil {
		return Downstream{}, err
	}
	if frame.Type != FrameTypeDownstream {
		return Downstream{}, fmt.Errorf("expected downstream frame, got type 0x%02x", frame.Type)
	}
	var downstream Downstream
	if err := codec.Unmarshal(frame.Payload, &downstream); err != nil {
		return Downstream{}, fmt.Errorf("decode downstream: %w", err)
	}
	return downstream, nil
}

// WriteDownstream writes one Downstream envelope.
func (s *Stream) WriteDownstream(downstream Downstream) error {
	payload, err := codec.Marshal(downstream)
	if err != nil {
		return fmt.Errorf("encode downstream: %w", err)
	}
	return WriteFrame(s.rw, Frame{Type: FrameTypeDownstream, Payload: payload})
}
