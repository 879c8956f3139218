package broker

import (
	"context"

	"github.com/jihwankim/fuzzbroker/pkg/store"
)

// delayedResult is what the loop needs once a result finishes writing: who
// to ack and with what producer-facing id.
type delayedResult struct {
	producerAckID int64
	producer      Peer
	crc32         uint32
	tag           map[string]any
	resultString  string
	crashDetail   string
}

// storeJob is one result handed to the DB-writer pool. serverID threads
// the eventual completion back to the right delayedResult entry.
type storeJob struct {
	serverID int64
	input    store.ResultInput
}

// storeCompletion is what a DB-writer goroutine reports back to the loop.
type storeCompletion struct {
	serverID int64
	outcome  store.InsertOutcome
	err      error
}

// storeWriterCount is the size of the DB-writer goroutine pool that
// drains storeJobs, decoupling the single-writer event loop from
// synchronous SQLite writes per §5's "result-store database connection
// is external and must tolerate concurrent inserters."
const storeWriterCount = 4

// runStoreWriters drains jobs and reports every outcome on results until
// jobs is closed. Safe to run storeWriterCount times concurrently since
// pkg/store wraps every insert in its own transaction.
func runStoreWriters(ctx context.Context, st *store.Store, jobs <-chan storeJob, results chan<- storeCompletion) {
	for job := range jobs {
		outcome, err := st.InsertResult(ctx, job.input)
		results <- storeCompletion{serverID: job.serverID, outcome: outcome, err: err}
	}
}
