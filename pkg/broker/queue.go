package broker

// pendingTest is one new_test_case still waiting for a worker, queued
// because no worker was ready (or queue shedding is in effect) when it
// arrived.
type pendingTest struct {
	producerAckID int64
	producer      Peer
	data          []byte
	crc32         uint32
	tag           map[string]any
	options       map[string]any
}

// queueState holds the per-queue FIFOs described in §4.7: pending tests
// waiting for a worker, and workers waiting for a test. Outside queue
// shedding at most one of the two lists is non-empty; while shedding,
// both can hold entries.
type queueState struct {
	pendingTests  []pendingTest
	readyWorkers  []Peer
}

func newQueueState() *queueState {
	return &queueState{}
}

// hasDuplicate reports whether producerAckID is already queued, per the
// "no duplicate in a queue" invariant.
func (q *queueState) hasDuplicate(producerAckID int64) bool {
	for _, t := range q.pendingTests {
		if t.producerAckID == producerAckID {
			return true
		}
	}
	return false
}

// popReadyWorker removes and returns the next ready worker, or nil if
// none is waiting.
func (q *queueState) popReadyWorker() Peer {
	if len(q.readyWorkers) == 0 {
		return nil
	}
	w := q.readyWorkers[0]
	q.readyWorkers = q.readyWorkers[1:]
	return w
}

// popPendingTest removes and returns the oldest queued test, or ok=false
// if none is queued.
func (q *queueState) popPendingTest() (pendingTest, bool) {
	if len(q.pendingTests) == 0 {
		return pendingTest{}, false
	}
	t := q.pendingTests[0]
	q.pendingTests = q.pendingTests[1:]
	return t, true
}

// removeReadyWorker drops peer from the ready list, if present (used when
// a worker's connection drops while it is sitting idle).
func (q *queueState) removeReadyWorker(peer Peer) {
	for i, w := range q.readyWorkers {
		if w.ID() == peer.ID() {
			q.readyWorkers = append(q.readyWorkers[:i], q.readyWorkers[i+1:]...)
			return
		}
	}
}
