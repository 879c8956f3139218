package worker

import (
	"hash/crc32"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jihwankim/fuzzbroker/pkg/logging"
	"github.com/jihwankim/fuzzbroker/pkg/protocol"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Output: io.Discard})
}

func pipePair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return server, client
}

func TestWorkerAnnouncesReadyBeforeDeliver(t *testing.T) {
	brokerSide, workerSide := pipePair(t)

	w := New(workerSide, "default", func(data []byte) DeliveryResult {
		return DeliveryResult{Status: StatusSuccess}
	}, testLogger())

	go func() { _ = w.Run() }()

	msg, err := protocol.ReadMessage(brokerSide)
	require.NoError(t, err)
	require.Equal(t, protocol.VerbClientReady, msg.Verb())
	require.Equal(t, "default", msg.String("queue"))
}

func TestHandleDeliverSuccessAcksWithoutTag(t *testing.T) {
	brokerSide, workerSide := pipePair(t)
	data := []byte("test-case-payload")

	w := New(workerSide, "default", func(got []byte) DeliveryResult {
		require.Equal(t, data, got)
		return DeliveryResult{Status: StatusSuccess}
	}, testLogger())

	go func() { _ = w.Run() }()

	_, err := protocol.ReadMessage(brokerSide) // client_ready
	require.NoError(t, err)

	require.NoError(t, protocol.WriteMessage(brokerSide, protocol.New(protocol.VerbDeliver, map[string]any{
		"server_id":       42,
		"producer_ack_id": 7,
		"data":            data,
		"crc32":           crc32.ChecksumIEEE(data),
	})))

	ack, err := protocol.ReadMessage(brokerSide)
	require.NoError(t, err)
	require.Equal(t, protocol.VerbAck, ack.Verb())
	require.Equal(t, string(StatusSuccess), ack.String("status"))
	require.Equal(t, 42, ack.Int("ack_id"))
	require.Nil(t, ack.Map("tag"))
}

func TestHandleDeliverCRCMismatchAcksError(t *testing.T) {
	brokerSide, workerSide := pipePair(t)
	data := []byte("payload")

	called := false
	w := New(workerSide, "default", func(got []byte) DeliveryResult {
		called = true
		return DeliveryResult{Status: StatusSuccess}
	}, testLogger())

	go func() { _ = w.Run() }()

	_, err := protocol.ReadMessage(brokerSide)
	require.NoError(t, err)

	require.NoError(t, protocol.WriteMessage(brokerSide, protocol.New(protocol.VerbDeliver, map[string]any{
		"server_id":       1,
		"producer_ack_id": 1,
		"data":            data,
		"crc32":           uint32(0xdeadbeef),
	})))

	ack, err := protocol.ReadMessage(brokerSide)
	require.NoError(t, err)
	require.Equal(t, string(StatusError), ack.String("status"))
	require.False(t, called, "delivery hook must not run when the CRC does not match")
}

func TestHandleDeliverCrashAugmentsTag(t *testing.T) {
	brokerSide, workerSide := pipePair(t)
	data := []byte("crashing-input")

	w := New(workerSide, "default", func(got []byte) DeliveryResult {
		return DeliveryResult{Status: StatusCrash, Detail: "SIGSEGV at 0xdead"}
	}, testLogger())

	go func() { _ = w.Run() }()

	_, err := protocol.ReadMessage(brokerSide)
	require.NoError(t, err)

	require.NoError(t, protocol.WriteMessage(brokerSide, protocol.New(protocol.VerbDeliver, map[string]any{
		"server_id":       3,
		"producer_ack_id": 3,
		"data":            data,
		"crc32":           crc32.ChecksumIEEE(data),
		"tag": map[string]any{
			"producer_ack_id": 3,
			"iteration":       42,
		},
	})))

	ack, err := protocol.ReadMessage(brokerSide)
	require.NoError(t, err)
	require.Equal(t, string(StatusCrash), ack.String("status"))
	require.Equal(t, "SIGSEGV at 0xdead", ack.String("detail"))

	tag := ack.Map("tag")
	require.NotNil(t, tag)
	require.NotEmpty(t, tag["host_uuid"])
	require.NotEmpty(t, tag["data_md5"])
	require.NotEmpty(t, tag["detail_md5"])
	require.EqualValues(t, 42, tag["iteration"])
}

func TestHandleDeliverPanicDropsTestSilently(t *testing.T) {
	brokerSide, workerSide := pipePair(t)
	data := []byte("boom")

	w := New(workerSide, "default", func(got []byte) DeliveryResult {
		panic("unexpected failure in target harness")
	}, testLogger())

	go func() { _ = w.Run() }()

	_, err := protocol.ReadMessage(brokerSide)
	require.NoError(t, err)

	require.NoError(t, protocol.WriteMessage(brokerSide, protocol.New(protocol.VerbDeliver, map[string]any{
		"server_id":       9,
		"producer_ack_id": 9,
		"data":            data,
		"crc32":           crc32.ChecksumIEEE(data),
	})))

	// No ack is sent; instead the worker loops back around to client_ready.
	brokerSide.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	next, err := protocol.ReadMessage(brokerSide)
	require.NoError(t, err)
	require.Equal(t, protocol.VerbClientReady, next.Verb())
}
