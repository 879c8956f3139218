package broker

import "time"

// unansweredDeliver tracks one in-flight `deliver` message sent to a
// worker: if it is not acked within pollInterval, the test is pushed back
// onto its queue for redelivery to a different ready worker. timer fires
// onto the event loop's channel rather than touching broker state
// directly, preserving the single-writer invariant.
type unansweredDeliver struct {
	serverID    int64
	queue       string
	test        pendingTest
	timer       *time.Timer
	deliveredAt time.Time
}

// armAckTimer schedules serverID's delivery timeout. The timer callback
// only enqueues an event; all state mutation happens back on the loop
// goroutine in handleAckTimeout.
func (b *Broker) armAckTimer(serverID int64, interval time.Duration) *time.Timer {
	return time.AfterFunc(interval, func() {
		select {
		case b.events <- event{ackTimeout: &serverID}:
		case <-b.done:
		}
	})
}

// handleAckTimeout fires when a deliver's poll_interval elapses with no
// ack from the worker. The test is requeued for the same queue; the
// worker that went silent is not re-tried (we have no way to know if it
// is still alive, and the queue's next ready worker will pick this up).
func (b *Broker) handleAckTimeout(serverID int64) {
	entry, ok := b.unanswered[serverID]
	if !ok {
		return // already acked, racing with a cancel
	}
	delete(b.unanswered, serverID)
	delete(b.delayedResults, serverID)

	b.log.Warn("deliver timed out, requeuing test", "server_id", serverID, "queue", entry.queue)
	q := b.queueFor(entry.queue)
	q.pendingTests = append(q.pendingTests, entry.test)
	b.tryDispatch(entry.queue)
}

// cancelAckTimer discharges serverID's timer and removes it from the
// unanswered table, returning the entry so the caller can act on it.
func (b *Broker) cancelAckTimer(serverID int64) (unansweredDeliver, bool) {
	entry, ok := b.unanswered[serverID]
	if !ok {
		return unansweredDeliver{}, false
	}
	entry.timer.Stop()
	delete(b.unanswered, serverID)
	return entry, true
}
