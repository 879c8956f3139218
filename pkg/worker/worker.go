// Package worker implements the worker harness: the event loop a fuzzing
// target's driver runs to receive test cases from the broker, execute
// them, and report back.
package worker

import (
	"crypto/md5" //nolint:gosec
	"fmt"
	"hash/crc32"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/jihwankim/fuzzbroker/pkg/config"
	"github.com/jihwankim/fuzzbroker/pkg/logging"
	"github.com/jihwankim/fuzzbroker/pkg/protocol"
)

// Status is the outcome a delivery hook reports for one test case.
type Status string

const (
	StatusSuccess Status = "success"
	StatusCrash   Status = "crash"
	StatusError   Status = "error"
)

// DeliveryResult is what the user-supplied delivery hook returns after
// running one test case against the target.
type DeliveryResult struct {
	Status Status
	Detail string // debugger text, present when Status == StatusCrash
}

// DeliverFunc executes one test case against the target under fuzzing. It
// must never block indefinitely; a panic inside it is recovered and the
// test is silently dropped so the broker re-delivers it rather than
// recording a poisoned result.
type DeliverFunc func(data []byte) DeliveryResult

// Worker is one connection's worth of harness state: a single-threaded
// loop that alternates between announcing readiness and handling a
// delivered test.
type Worker struct {
	conn    net.Conn
	queue   string
	hostID  string
	deliver DeliverFunc
	log     *logging.Logger
}

// New builds a Worker bound to an already-dialed broker connection.
func New(conn net.Conn, queue string, deliver DeliverFunc, log *logging.Logger) *Worker {
	return &Worker{
		conn:    conn,
		queue:   queue,
		hostID:  uuid.NewString(),
		deliver: deliver,
		log:     log,
	}
}

// Run drives the harness loop until the connection closes or ctx-less
// read/write fails. Every iteration: announce client_ready, wait for a
// deliver, handle it, repeat.
func (w *Worker) Run() error {
	for {
		if err := w.sendReady(); err != nil {
			return err
		}
		msg, err := protocol.ReadMessage(w.conn)
		if err != nil {
			return fmt.Errorf("worker: read message: %w", err)
		}
		switch msg.Verb() {
		case protocol.VerbDeliver:
			w.handleDeliver(msg)
		case protocol.VerbReset:
			continue
		default:
			w.log.Warn("unexpected verb while idle", "verb", string(msg.Verb()))
		}
	}
}

func (w *Worker) sendReady() error {
	return protocol.WriteMessage(w.conn, protocol.New(protocol.VerbClientReady, map[string]any{
		"queue": w.queue,
	}))
}

// handleDeliver verifies the payload's CRC, runs the delivery hook with
// panic recovery, and acks the result. A hook panic is swallowed entirely:
// no ack is sent, so the broker's timeout machinery re-delivers the test.
func (w *Worker) handleDeliver(msg protocol.Message) {
	data := msg.Bytes("data")
	wantCRC := msg.Uint32("crc32")
	gotCRC := crc32.ChecksumIEEE(data)
	if gotCRC != wantCRC {
		w.ackError(msg, fmt.Sprintf("crc mismatch: want %08x got %08x", wantCRC, gotCRC))
		return
	}

	result, ok := w.runDeliverHook(data)
	if !ok {
		w.log.Warn("delivery hook panicked, dropping test silently", "server_id", msg.String("server_id"))
		return
	}

	switch result.Status {
	case StatusCrash:
		w.ackCrash(msg, data, result)
	case StatusError:
		w.ackError(msg, result.Detail)
	default:
		w.ackSuccess(msg, result)
	}
}

func (w *Worker) runDeliverHook(data []byte) (result DeliveryResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return w.deliver(data), true
}

func (w *Worker) ackSuccess(msg protocol.Message, result DeliveryResult) {
	w.ack(msg, map[string]any{
		"status": string(StatusSuccess),
		"result": string(result.Status),
	})
}

func (w *Worker) ackError(msg protocol.Message, detail string) {
	w.ack(msg, map[string]any{
		"status": string(StatusError),
		"detail": detail,
	})
}

// ackCrash augments the tag with a per-host UUID and MD5s of the data and
// debug detail, per §4.8.
func (w *Worker) ackCrash(msg protocol.Message, data []byte, result DeliveryResult) {
	tag := msg.Map("tag")
	if tag == nil {
		tag = map[string]any{}
	}
	tag["host_uuid"] = w.hostID
	tag["data_md5"] = fmt.Sprintf("%x", md5.Sum(data)) //nolint:gosec
	tag["detail_md5"] = fmt.Sprintf("%x", md5.Sum([]byte(result.Detail))) //nolint:gosec
	tag["crc32"] = crc32.ChecksumIEEE(data)
	tag["timestamp"] = time.Now().Unix()

	w.ack(msg, map[string]any{
		"status": string(StatusCrash),
		"detail": result.Detail,
		"crc32":  crc32.ChecksumIEEE(data),
		"tag":    tag,
	})
}

// Serve dials cfg.BrokerAddr and runs the harness loop forever, redialing
// after cfg.PollInterval whenever the dial fails or the connection drops.
// Serve does not use cfg.WorkDir: deliver receives only the test data, so
// a hook that stages scratch files takes the directory from its own
// configuration.
func Serve(cfg config.WorkerConfig, deliver DeliverFunc, log *logging.Logger) error {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	for {
		conn, err := net.Dial("tcp", cfg.BrokerAddr)
		if err != nil {
			log.Warn("dial broker failed, retrying", "error", err, "addr", cfg.BrokerAddr)
			time.Sleep(interval)
			continue
		}

		w := New(conn, cfg.Queue, deliver, log)
		if err := w.Run(); err != nil {
			log.Warn("worker connection ended, redialing", "error", err)
		}
		conn.Close()
		time.Sleep(interval)
	}
}

func (w *Worker) ack(msg protocol.Message, extra map[string]any) {
	// Every ack carries the CRC of the data as received; the broker checks
	// it against the test it delivered.
	fields := map[string]any{
		"ack_id": msg.Int("server_id"),
		"crc32":  crc32.ChecksumIEEE(msg.Bytes("data")),
	}
	for k, v := range extra {
		fields[k] = v
	}
	if err := protocol.WriteMessage(w.conn, protocol.New(protocol.VerbAck, fields)); err != nil {
		w.log.Error("failed to send ack", "error", err)
	}
}
