package broker

import (
	"fmt"
	"net"

	"github.com/jihwankim/fuzzbroker/pkg/protocol"
)

// Peer is the capability the broker's event loop needs from a connected
// producer or worker: send it a message. Tests exercise the loop against
// a fake implementation; Serve wires up a real net.Conn-backed one.
type Peer interface {
	Send(protocol.Message) error
	ID() int64
}

// connPeer is the net.Conn-backed Peer used outside tests.
type connPeer struct {
	id   int64
	conn net.Conn
}

func (p *connPeer) Send(m protocol.Message) error {
	if err := protocol.WriteMessage(p.conn, m); err != nil {
		return fmt.Errorf("broker: send to peer %d: %w", p.id, err)
	}
	return nil
}

func (p *connPeer) ID() int64 { return p.id }

// inboundMessage is one decoded frame arriving from a peer, handed from
// that peer's dedicated reader goroutine to the event loop's channel.
type inboundMessage struct {
	peer Peer
	msg  protocol.Message
	err  error // set, with msg nil, when the peer's connection ended
}

// readLoop decodes frames from conn until it errors, pushing each one (or
// the terminal error) onto events. This is the only goroutine that reads
// from conn; the event loop is the only one that acts on what it reports.
func readLoop(peer Peer, conn net.Conn, events chan<- event) {
	for {
		msg, err := protocol.ReadMessage(conn)
		if err != nil {
			in := inboundMessage{peer: peer, err: err}
			events <- event{inbound: &in}
			return
		}
		in := inboundMessage{peer: peer, msg: msg}
		events <- event{inbound: &in}
	}
}
