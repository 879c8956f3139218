// Package producer implements the producer harness: the event loop that
// draws test cases from a user-supplied generator and submits them to the
// broker, tracking delivery and result acknowledgements.
package producer

import (
	"fmt"
	"hash/crc32"
	"net"
	"time"

	"github.com/jihwankim/fuzzbroker/pkg/generator"
	"github.com/jihwankim/fuzzbroker/pkg/logging"
	"github.com/jihwankim/fuzzbroker/pkg/protocol"
)

// Counters tallies what the broker reported back for every test case this
// producer has submitted.
type Counters struct {
	Submitted int
	Success   int
	Crash     int
	Error     int
}

// Producer is one connection's worth of harness state.
type Producer struct {
	conn      net.Conn
	queue     string
	source    generator.Generator[[]byte]
	baseTag   map[string]any
	log       *logging.Logger
	iteration int
	counters  Counters
}

// New builds a Producer bound to an already-dialed broker connection.
// baseTag is merged into every test's tag ahead of the producer-assigned
// fields (producer CRC, timestamp, iteration); it may be nil.
func New(conn net.Conn, queue string, source generator.Generator[[]byte], baseTag map[string]any, log *logging.Logger) *Producer {
	return &Producer{
		conn:    conn,
		queue:   queue,
		source:  source,
		baseTag: baseTag,
		log:     log,
	}
}

// Counters returns a snapshot of the producer's local result tally.
func (p *Producer) Counters() Counters {
	return p.counters
}

// Run drives the harness loop: announce startup, then for every value the
// source generator yields, submit it and wait for both the delivery
// receipt and the result ack before pulling the next value. Stops when
// the generator is exhausted. A reset from the broker re-announces
// startup and resumes from the generator's current position.
func (p *Producer) Run() error {
	if err := p.announceStartup(); err != nil {
		return err
	}

	for p.source.HasNext() {
		data, err := p.source.Next()
		if err != nil {
			return fmt.Errorf("producer: generator: %w", err)
		}

		reset, err := p.submitAndAwait(data)
		if err != nil {
			return err
		}
		if reset {
			if err := p.announceStartup(); err != nil {
				return err
			}
		}
	}

	return nil
}

func (p *Producer) announceStartup() error {
	if err := protocol.WriteMessage(p.conn, protocol.New(protocol.VerbClientStartup, map[string]any{
		"client_type": "producer",
	})); err != nil {
		return fmt.Errorf("producer: send client_startup: %w", err)
	}

	for {
		msg, err := protocol.ReadMessage(p.conn)
		if err != nil {
			return fmt.Errorf("producer: await startup ack: %w", err)
		}
		if msg.Verb() == protocol.VerbAck {
			return nil
		}
		p.log.Warn("unexpected verb while awaiting startup ack", "verb", string(msg.Verb()))
	}
}

// submitAndAwait sends one new_test_case and blocks until the matching
// result ack arrives, updating counters from it. It returns reset=true if
// a reset arrived mid-wait, telling Run to re-announce startup before
// continuing with the next generator value.
func (p *Producer) submitAndAwait(data []byte) (reset bool, err error) {
	p.iteration++
	crc := crc32.ChecksumIEEE(data)

	tag := make(map[string]any, len(p.baseTag)+3)
	for k, v := range p.baseTag {
		tag[k] = v
	}
	tag["producer_crc"] = crc
	tag["timestamp"] = time.Now().Unix()
	tag["iteration"] = p.iteration

	if err := protocol.WriteMessage(p.conn, protocol.New(protocol.VerbNewTestCase, map[string]any{
		"id":    p.iteration,
		"data":  data,
		"crc32": crc,
		"queue": p.queue,
		"tag":   tag,
	})); err != nil {
		return false, fmt.Errorf("producer: send new_test_case: %w", err)
	}
	p.counters.Submitted++

	for {
		msg, err := protocol.ReadMessage(p.conn)
		if err != nil {
			return false, fmt.Errorf("producer: await ack: %w", err)
		}
		switch msg.Verb() {
		case protocol.VerbReset:
			return true, nil
		case protocol.VerbAck:
			if _, hasResult := msg["result"]; !hasResult {
				// delivery receipt; keep waiting for the result ack
				continue
			}
			p.recordResult(msg.String("result"))
			return false, nil
		default:
			p.log.Warn("unexpected verb while awaiting ack", "verb", string(msg.Verb()))
		}
	}
}

func (p *Producer) recordResult(result string) {
	switch result {
	case "crash":
		p.counters.Crash++
	case "error":
		p.counters.Error++
	default:
		p.counters.Success++
	}
}
