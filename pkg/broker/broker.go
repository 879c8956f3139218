// Package broker implements the authoritative, single-threaded fuzzing
// broker: the event loop that matches producer test cases to ready
// workers, persists results, and enforces the two-stage acknowledgement
// and queue-shedding backpressure scheme described for this system.
package broker

import (
	"time"

	"github.com/jihwankim/fuzzbroker/pkg/logging"
	"github.com/jihwankim/fuzzbroker/pkg/store"
)

// event is the single type flowing through the broker's event channel: a
// decoded message from a peer, a deliver-ack timeout, or a result-store
// write completion. Exactly one field is non-nil.
type event struct {
	inbound    *inboundMessage
	ackTimeout *int64
	storeDone  *storeCompletion
}

// Broker owns every piece of mutable state described by this component:
// per-queue FIFOs, the unanswered-ack table, and the queue-shedding flag.
// All of it is touched only from the run loop goroutine; everything else
// communicates with the loop over the events channel.
type Broker struct {
	log   *logging.Logger
	store *store.Store

	pollInterval time.Duration
	dbqMax       int

	queueShedding   bool
	pendingStoreLen int // jobs enqueued to storeJobs but not yet completed

	queues         map[string]*queueState
	unanswered     map[int64]unansweredDeliver
	delayedResults map[int64]delayedResult

	nextServerID int64

	storeJobs    chan storeJob
	storeResults chan storeCompletion

	events chan event
	done   chan struct{}

	metrics *Metrics
}

// Options configures a new Broker.
type Options struct {
	PollInterval time.Duration
	DBQMax       int
	Metrics      *Metrics // nil disables metrics recording
}

// New builds a Broker around st, ready to have events fed into it by
// Serve (or, in tests, by calling its handler methods directly).
func New(st *store.Store, log *logging.Logger, opts Options) *Broker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.DBQMax <= 0 {
		opts.DBQMax = 10000
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}

	b := &Broker{
		log:            log,
		store:          st,
		pollInterval:   opts.PollInterval,
		dbqMax:         opts.DBQMax,
		queues:         make(map[string]*queueState),
		unanswered:     make(map[int64]unansweredDeliver),
		delayedResults: make(map[int64]delayedResult),
		storeJobs:      make(chan storeJob, opts.DBQMax*4),
		storeResults:   make(chan storeCompletion, storeWriterCount),
		events:         make(chan event, 256),
		done:           make(chan struct{}),
		metrics:        opts.Metrics,
	}
	return b
}

func (b *Broker) queueFor(name string) *queueState {
	q, ok := b.queues[name]
	if !ok {
		q = newQueueState()
		b.queues[name] = q
	}
	return q
}

func (b *Broker) allocServerID() int64 {
	b.nextServerID++
	return b.nextServerID
}
