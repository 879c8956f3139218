package broker

import (
	"fmt"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/jihwankim/fuzzbroker/pkg/protocol"
)

// crcMismatchLogPath is where fail-loud CRC diagnostics are appended.
// Overridable in tests.
var crcMismatchLogPath = "broker_crc_mismatch.log"

// failLoudCRCMismatch handles the one condition §4.7 calls a broker bug
// rather than a transport or input error: the CRC the broker stored for
// a delivered test no longer matches what the worker echoed back. This
// indicates data corruption somewhere in the delivery path, not a bad
// test case, so it is dumped in full rather than silently dropped.
func (b *Broker) failLoudCRCMismatch(entry unansweredDeliver, reply protocol.Message) {
	b.log.Error("CRC mismatch on worker ack, this indicates a broker bug",
		"server_id", entry.serverID, "queue", entry.queue,
		"want_crc32", entry.test.crc32, "got_crc32", reply.Uint32("crc32"))

	dump := fmt.Sprintf("=== CRC mismatch at %s ===\nserver_id: %d\nqueue: %s\nwant_crc32: %08x\ngot_crc32: %08x\nsent test:\n%s\nworker reply:\n%s\n",
		time.Now().Format(time.RFC3339), entry.serverID, entry.queue,
		entry.test.crc32, reply.Uint32("crc32"),
		spew.Sdump(entry.test), spew.Sdump(reply))

	f, err := os.OpenFile(crcMismatchLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		b.log.Error("failed to open CRC mismatch log", "error", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(dump); err != nil {
		b.log.Error("failed to write CRC mismatch log", "error", err)
	}
}
