package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTripFraming(t *testing.T) {
	msg := New(VerbNewTestCase, map[string]any{
		"id":    1,
		"data":  "\x00\x01",
		"crc32": uint32(0xB6CC4292),
		"queue": "default",
	})

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, msg))

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, VerbNewTestCase, got.Verb())
	require.Equal(t, 1, got.Int("id"))
	require.Equal(t, "default", got.String("queue"))
}

func TestReadMessageMultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, New(VerbClientReady, map[string]any{"queue": "a"})))
	require.NoError(t, WriteMessage(&buf, New(VerbClientReady, map[string]any{"queue": "b"})))

	first, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, "a", first.String("queue"))

	second, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, "b", second.String("queue"))
}

func TestRequireVerbMismatch(t *testing.T) {
	msg := New(VerbAck, map[string]any{"ack_id": 1})
	err := RequireVerb(msg, VerbDeliver)
	require.Error(t, err)
}

func TestBytesRoundTripsThroughBase64(t *testing.T) {
	payload := []byte{0x00, 0x01, 0xff, 0x7f, 'h', 'i'}
	msg := New(VerbDeliver, map[string]any{"data": payload})

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, msg))

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, payload, got.Bytes("data"))
}

func TestOversizedFrameRejected(t *testing.T) {
	var buf bytes.Buffer
	header := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	buf.Write(header)
	_, err := ReadMessage(&buf)
	require.Error(t, err)
}
