// Package connector implements the minimal byte-oriented transport for a
// fuzzing target's connection, plus the bounded ring buffer a target's
// independent receive loop writes into. The broker, worker, and producer
// harnesses do not use it: they exchange pkg/protocol messages over
// net.Conn.
package connector

import "context"

// Connector is the abstract capability a target connection offers: send a
// framed payload, receive one, and close. Concrete
// transports (TCP here; anything else is an external collaborator) make
// this interface real.
type Connector interface {
	Send(data []byte) error
	Recv() ([]byte, error)
	Close() error
}

// ReceiveLoop drains a Connector into a RingBuffer until ctx is cancelled
// or the Connector errors, running on its own goroutine. Cancelling ctx
// closes c, which unblocks a Recv in progress; ReceiveLoop then returns
// ctx.Err(). This is the one place the framework requires parallel
// execution within a process: a target's inbound traffic must be captured
// independently of whatever the harness's own event loop is doing.
func ReceiveLoop(ctx context.Context, c Connector, buf *RingBuffer) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		data, err := c.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		buf.Push(data)
	}
}
