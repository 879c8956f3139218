package producer

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jihwankim/fuzzbroker/pkg/generator"
	"github.com/jihwankim/fuzzbroker/pkg/logging"
	"github.com/jihwankim/fuzzbroker/pkg/protocol"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Output: io.Discard})
}

func pipePair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	broker, prod := net.Pipe()
	t.Cleanup(func() {
		broker.Close()
		prod.Close()
	})
	return broker, prod
}

func TestRunAnnouncesStartupThenSubmitsEachValue(t *testing.T) {
	brokerSide, prodSide := pipePair(t)
	source := generator.NewStatic([]byte("ab"), generator.CopyBytes, 2)

	p := New(prodSide, "default", source, nil, testLogger())
	done := make(chan error, 1)
	go func() { done <- p.Run() }()

	startup, err := protocol.ReadMessage(brokerSide)
	require.NoError(t, err)
	require.Equal(t, protocol.VerbClientStartup, startup.Verb())
	require.Equal(t, "producer", startup.String("client_type"))

	require.NoError(t, protocol.WriteMessage(brokerSide, protocol.New(protocol.VerbAck, map[string]any{
		"ack_id":      1,
		"startup_ack": true,
	})))

	for i := 1; i <= 2; i++ {
		test, err := protocol.ReadMessage(brokerSide)
		require.NoError(t, err)
		require.Equal(t, protocol.VerbNewTestCase, test.Verb())
		require.Equal(t, "default", test.String("queue"))
		require.Equal(t, []byte("ab"), test.Bytes("data"))

		tag := test.Map("tag")
		require.NotNil(t, tag)
		require.EqualValues(t, i, tag["iteration"])

		require.NoError(t, protocol.WriteMessage(brokerSide, protocol.New(protocol.VerbAck, map[string]any{
			"ack_id": test.Int("id"),
		})))
		require.NoError(t, protocol.WriteMessage(brokerSide, protocol.New(protocol.VerbAck, map[string]any{
			"ack_id": test.Int("id"),
			"result": "success",
			"db_id":  100 + i,
		})))
	}

	require.NoError(t, <-done)
	require.Equal(t, Counters{Submitted: 2, Success: 2}, p.Counters())
}

func TestRunStopsWhenGeneratorExhausted(t *testing.T) {
	brokerSide, prodSide := pipePair(t)
	source := generator.NewStatic([]byte("x"), generator.CopyBytes, 0)

	p := New(prodSide, "default", source, nil, testLogger())
	done := make(chan error, 1)
	go func() { done <- p.Run() }()

	_, err := protocol.ReadMessage(brokerSide)
	require.NoError(t, err)
	require.NoError(t, protocol.WriteMessage(brokerSide, protocol.New(protocol.VerbAck, map[string]any{
		"ack_id": 1, "startup_ack": true,
	})))

	require.NoError(t, <-done)
	require.Equal(t, Counters{}, p.Counters())
}

func TestResetReannouncesStartup(t *testing.T) {
	brokerSide, prodSide := pipePair(t)
	source := generator.NewStatic([]byte("x"), generator.CopyBytes, 1)

	p := New(prodSide, "default", source, nil, testLogger())
	done := make(chan error, 1)
	go func() { done <- p.Run() }()

	_, err := protocol.ReadMessage(brokerSide)
	require.NoError(t, err)
	require.NoError(t, protocol.WriteMessage(brokerSide, protocol.New(protocol.VerbAck, map[string]any{
		"ack_id": 1, "startup_ack": true,
	})))

	test, err := protocol.ReadMessage(brokerSide)
	require.NoError(t, err)
	require.Equal(t, protocol.VerbNewTestCase, test.Verb())

	require.NoError(t, protocol.WriteMessage(brokerSide, protocol.New(protocol.VerbReset, nil)))

	restart, err := protocol.ReadMessage(brokerSide)
	require.NoError(t, err)
	require.Equal(t, protocol.VerbClientStartup, restart.Verb())
	require.NoError(t, protocol.WriteMessage(brokerSide, protocol.New(protocol.VerbAck, map[string]any{
		"ack_id": 2, "startup_ack": true,
	})))

	require.NoError(t, <-done)
}

func TestCrashResultTallies(t *testing.T) {
	brokerSide, prodSide := pipePair(t)
	source := generator.NewStatic([]byte("crashme"), generator.CopyBytes, 1)

	p := New(prodSide, "default", source, map[string]any{"base": "tag"}, testLogger())
	done := make(chan error, 1)
	go func() { done <- p.Run() }()

	_, err := protocol.ReadMessage(brokerSide)
	require.NoError(t, err)
	require.NoError(t, protocol.WriteMessage(brokerSide, protocol.New(protocol.VerbAck, map[string]any{
		"ack_id": 1, "startup_ack": true,
	})))

	test, err := protocol.ReadMessage(brokerSide)
	require.NoError(t, err)
	tag := test.Map("tag")
	require.Equal(t, "tag", tag["base"])

	require.NoError(t, protocol.WriteMessage(brokerSide, protocol.New(protocol.VerbAck, map[string]any{
		"ack_id": test.Int("id"), "result": "crash", "db_id": 5,
	})))

	require.NoError(t, <-done)
	require.Equal(t, Counters{Submitted: 1, Crash: 1}, p.Counters())
}
