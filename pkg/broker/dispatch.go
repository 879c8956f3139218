package broker

import (
	"context"
	"time"

	"github.com/jihwankim/fuzzbroker/pkg/protocol"
	"github.com/jihwankim/fuzzbroker/pkg/store"
)

// Run drains b.events until ctx is cancelled, dispatching each one on the
// single loop goroutine. This is the only function in the package that
// mutates Broker's queues, ack table, and shedding flag.
func (b *Broker) Run(ctx context.Context) error {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-b.events:
			b.handleEvent(ev)
		}
	}
}

func (b *Broker) handleEvent(ev event) {
	switch {
	case ev.inbound != nil:
		b.handleInbound(*ev.inbound)
	case ev.ackTimeout != nil:
		b.handleAckTimeout(*ev.ackTimeout)
	case ev.storeDone != nil:
		b.handleStoreDone(*ev.storeDone)
	}
}

func (b *Broker) handleInbound(in inboundMessage) {
	if in.err != nil {
		b.handlePeerGone(in.peer)
		return
	}

	switch in.msg.Verb() {
	case protocol.VerbClientStartup:
		b.handleClientStartup(in.peer, in.msg)
	case protocol.VerbClientReady:
		b.handleClientReady(in.peer, in.msg)
	case protocol.VerbNewTestCase:
		b.handleNewTestCase(in.peer, in.msg)
	case protocol.VerbAck:
		b.handleWorkerAck(in.peer, in.msg)
	default:
		b.log.Warn("broker received unexpected verb", "verb", string(in.msg.Verb()))
	}
}

// handlePeerGone drops a disconnected peer from every ready-worker list it
// might be sitting in. Pending tests it was never matched to are
// unaffected; in-flight delivers it never acked time out normally.
func (b *Broker) handlePeerGone(peer Peer) {
	for _, q := range b.queues {
		q.removeReadyWorker(peer)
	}
}

func (b *Broker) handleClientStartup(peer Peer, _ protocol.Message) {
	_ = peer.Send(protocol.New(protocol.VerbAck, map[string]any{
		"ack_id":      0,
		"startup_ack": true,
	}))
}

func (b *Broker) handleClientReady(peer Peer, msg protocol.Message) {
	queueName := msg.String("queue")
	q := b.queueFor(queueName)
	q.readyWorkers = append(q.readyWorkers, peer)
	b.tryDispatch(queueName)
}

func (b *Broker) handleNewTestCase(peer Peer, msg protocol.Message) {
	queueName := msg.String("queue")
	producerAckID := int64(msg.Int("id"))
	q := b.queueFor(queueName)

	if q.hasDuplicate(producerAckID) {
		b.log.Warn("dropping duplicate new_test_case", "producer_ack_id", producerAckID, "queue", queueName)
		return
	}

	test := pendingTest{
		producerAckID: producerAckID,
		producer:      peer,
		data:          msg.Bytes("data"),
		crc32:         msg.Uint32("crc32"),
		tag:           msg.Map("tag"),
		options:       msg.Map("options"),
	}

	if b.queueShedding || len(q.readyWorkers) == 0 {
		q.pendingTests = append(q.pendingTests, test)
		return
	}

	worker := q.popReadyWorker()
	b.deliverTest(queueName, worker, test)
}

// tryDispatch matches as many queued tests to ready workers as it can,
// respecting queue shedding: while shedding, a ready worker is left
// ready rather than matched, even with tests pending.
func (b *Broker) tryDispatch(queueName string) {
	if b.queueShedding {
		return
	}
	q := b.queueFor(queueName)
	for len(q.pendingTests) > 0 && len(q.readyWorkers) > 0 {
		test, _ := q.popPendingTest()
		worker := q.popReadyWorker()
		b.deliverTest(queueName, worker, test)
	}
}

// deliverTest forwards test to worker, arms its ack timeout, and sends
// the producer its delivery-receipt ack (the first of the two-stage ack).
func (b *Broker) deliverTest(queueName string, worker Peer, test pendingTest) {
	serverID := b.allocServerID()

	if err := worker.Send(protocol.New(protocol.VerbDeliver, map[string]any{
		"data":            test.data,
		"server_id":       serverID,
		"producer_ack_id": test.producerAckID,
		"crc32":           test.crc32,
		"tag":             test.tag,
		"options":         test.options,
	})); err != nil {
		b.log.Error("failed to deliver test, requeuing", "error", err, "queue", queueName)
		q := b.queueFor(queueName)
		q.pendingTests = append(q.pendingTests, test)
		return
	}

	b.unanswered[serverID] = unansweredDeliver{
		serverID:    serverID,
		queue:       queueName,
		test:        test,
		timer:       b.armAckTimer(serverID, b.pollInterval),
		deliveredAt: time.Now(),
	}

	_ = test.producer.Send(protocol.New(protocol.VerbAck, map[string]any{
		"ack_id": test.producerAckID,
	}))

	if b.metrics != nil {
		b.metrics.TestDelivered(queueName)
	}
}

// handleWorkerAck processes a worker's reply to a prior deliver: CRC
// verification, status mapping, and handoff to the result-store writer
// pool. error results are dropped; crash and plain results are persisted
// and eventually produce the second-stage ack back to the producer.
func (b *Broker) handleWorkerAck(peer Peer, msg protocol.Message) {
	serverID := int64(msg.Int("ack_id"))
	entry, ok := b.cancelAckTimer(serverID)
	if !ok {
		b.log.Warn("ack for unknown or already-resolved delivery", "ack_id", serverID)
		return
	}

	if b.metrics != nil {
		b.metrics.ObserveAckLatency(time.Since(entry.deliveredAt).Seconds())
	}

	theirCRC := msg.Uint32("crc32")
	if theirCRC != entry.test.crc32 {
		b.failLoudCRCMismatch(entry, msg)
		return
	}

	status := msg.String("status")
	if status == "error" {
		b.log.Warn("worker reported error, dropping result", "server_id", serverID)
		return
	}

	resultString := status
	if resultString == "" {
		resultString = "success"
	}

	crashDetail := msg.String("detail")
	b.delayedResults[serverID] = delayedResult{
		producerAckID: entry.test.producerAckID,
		producer:      entry.test.producer,
		crc32:         entry.test.crc32,
		tag:           msg.Map("tag"),
		resultString:  resultString,
		crashDetail:   crashDetail,
	}

	var crash *store.CrashInput
	if status == "crash" {
		crash = &store.CrashInput{
			RawData:        entry.test.data,
			RawDebugDetail: crashDetail,
		}
	}

	b.pendingStoreLen++
	if b.pendingStoreLen > b.dbqMax {
		b.setQueueShedding(true)
	}

	b.storeJobs <- storeJob{
		serverID: serverID,
		input: store.ResultInput{
			Stream:        entry.queue,
			ProducerAckID: entry.test.producerAckID,
			ResultString:  resultString,
			Crash:         crash,
		},
	}
}

// handleStoreDone fires once a result has been durably written (or has
// failed to write). It sends the second-stage ack to the originating
// producer and may clear queue shedding.
func (b *Broker) handleStoreDone(c storeCompletion) {
	b.pendingStoreLen--
	if b.pendingStoreLen <= 0 {
		b.pendingStoreLen = 0
		b.setQueueShedding(false)
	}

	dr, ok := b.delayedResults[c.serverID]
	if !ok {
		return
	}
	delete(b.delayedResults, c.serverID)

	if c.err != nil {
		b.log.Error("result store write failed, leaving upstream ack pending", "error", c.err, "server_id", c.serverID)
		return
	}

	fields := map[string]any{
		"ack_id": dr.producerAckID,
		"result": dr.resultString,
		"db_id":  c.outcome.ResultID,
	}
	if c.outcome.CrashID != 0 {
		fields["crc32"] = dr.crc32
		fields["tag"] = dr.tag
		fields["crashdetail"] = dr.crashDetail
	}
	_ = dr.producer.Send(protocol.New(protocol.VerbAck, fields))

	if b.metrics != nil {
		b.metrics.ResultRecorded()
	}
}

func (b *Broker) setQueueShedding(on bool) {
	if b.queueShedding == on {
		return
	}
	b.queueShedding = on
	b.log.Info("queue shedding state changed", "shedding", on, "pending_store", b.pendingStoreLen)
	if b.metrics != nil {
		b.metrics.SetShedding(on)
	}
}
