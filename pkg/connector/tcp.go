package connector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

const maxTCPFrameBytes = 64 << 20

// TCPConnector is a net.Conn-backed Connector. Frames are a 4-byte
// big-endian length prefix followed by the payload, matching the wire
// framing used elsewhere in this module (§6's "length-prefixed
// self-describing record").
type TCPConnector struct {
	conn net.Conn
	r    *bufio.Reader
}

// DialTCP connects to addr with the given timeout and wraps the
// connection as a Connector.
func DialTCP(addr string, timeout time.Duration) (*TCPConnector, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connector: dial %s: %w", addr, err)
	}
	return NewTCPConnector(conn), nil
}

// NewTCPConnector wraps an already-established connection.
func NewTCPConnector(conn net.Conn) *TCPConnector {
	return &TCPConnector{conn: conn, r: bufio.NewReader(conn)}
}

func (t *TCPConnector) Send(data []byte) error {
	if len(data) > maxTCPFrameBytes {
		return fmt.Errorf("connector: frame of %d bytes exceeds max %d", len(data), maxTCPFrameBytes)
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(data)))
	if _, err := t.conn.Write(hdr[:]); err != nil {
		return fmt.Errorf("connector: write length prefix: %w", err)
	}
	if _, err := t.conn.Write(data); err != nil {
		return fmt.Errorf("connector: write payload: %w", err)
	}
	return nil
}

func (t *TCPConnector) Recv() ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(t.r, hdr[:]); err != nil {
		return nil, fmt.Errorf("connector: read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxTCPFrameBytes {
		return nil, fmt.Errorf("connector: peer frame of %d bytes exceeds max %d", n, maxTCPFrameBytes)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(t.r, data); err != nil {
		return nil, fmt.Errorf("connector: read payload: %w", err)
	}
	return data, nil
}

func (t *TCPConnector) Close() error {
	return t.conn.Close()
}
