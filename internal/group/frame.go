package group

import (
	"encoding/binary"
	"fmt"
	"io"
)

// The result pipe carries exactly one length-prefixed frame per launch:
// a 4-byte big-endian length followed by the payload bytes.

// maxFrameSize bounds a single result frame. The record is a bounded set of
// refs, status, and metrics; anything larger indicates a worker shipping
// bulk state through the wrong channel.
const maxFrameSize = 64 << 20 // 64 MiB

func writeFrame(w io.Writer, frame []byte) error {
	if len(frame) > maxFrameSize {
		return fmt.Errorf("group: result frame %d bytes exceeds limit %d", len(frame), maxFrameSize)
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(frame)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("group: write frame header: %w", err)
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("group: write frame body: %w", err)
	}
	return nil
}

func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("group: result frame %d bytes exceeds limit %d", n, maxFrameSize)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, fmt.Errorf("group: read frame body: %w", err)
	}
	return frame, nil
}
