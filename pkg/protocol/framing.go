package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// maxFrameBytes bounds a single message's payload to guard against a
// corrupt or hostile length prefix turning into an unbounded allocation.
const maxFrameBytes = 64 << 20

// WriteMessage serializes m as JSON and writes it to w prefixed with its
// length as a 4-byte big-endian unsigned integer.
func WriteMessage(w io.Writer, m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("protocol: marshal %q: %w", m.Verb(), err)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("protocol: write frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("protocol: write frame body: %w", err)
	}
	return nil
}

// ReadMessage blocks until one complete length-prefixed frame has arrived
// on r and decodes it as a Message.
func ReadMessage(r io.Reader) (Message, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > maxFrameBytes {
		return nil, fmt.Errorf("protocol: frame of %d bytes exceeds limit", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("protocol: read frame body: %w", err)
	}
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("protocol: unmarshal frame: %w", err)
	}
	return m, nil
}
