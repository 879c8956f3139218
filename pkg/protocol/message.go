// Package protocol implements the length-prefixed, self-describing JSON
// message framing used between the broker, workers, producers, and the
// result store.
package protocol

import (
	"encoding/base64"
	"fmt"
)

// Verb names the message's dispatch tag. The receiver never inspects
// anything but this field to decide how to handle a message.
type Verb string

const (
	VerbClientStartup Verb = "client_startup"
	VerbClientReady    Verb = "client_ready"
	VerbDBReady        Verb = "db_ready"
	VerbNewTestCase    Verb = "new_test_case"
	VerbDeliver        Verb = "deliver"
	VerbTestResult     Verb = "test_result"
	VerbAck            Verb = "ack_msg"
	VerbReset          Verb = "reset"
)

// Message is a self-describing wire record: a required verb plus freeform
// additional keys. Dispatch on the receiver is driven entirely by Verb.
type Message map[string]any

// New builds a Message carrying verb and the given key/value pairs.
func New(verb Verb, fields map[string]any) Message {
	m := make(Message, len(fields)+1)
	for k, v := range fields {
		m[k] = v
	}
	m["verb"] = string(verb)
	return m
}

// Verb returns the message's dispatch tag.
func (m Message) Verb() Verb {
	v, _ := m["verb"].(string)
	return Verb(v)
}

// String returns the string value of key, or "" if absent or not a string.
func (m Message) String(key string) string {
	v, _ := m[key].(string)
	return v
}

// Int returns the int value of key. JSON numbers decode as float64, so
// this accepts either representation.
func (m Message) Int(key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Uint32 returns the uint32 value of key (used for crc32 fields).
func (m Message) Uint32(key string) uint32 {
	switch v := m[key].(type) {
	case uint32:
		return v
	case int:
		return uint32(v)
	case int64:
		return uint32(v)
	case float64:
		return uint32(v)
	default:
		return 0
	}
}

// Bytes returns the []byte value of key. Message is a bare map[string]any,
// so a []byte field set with New and later round-tripped through
// WriteMessage/ReadMessage comes back as the base64 string
// encoding/json produces for a []byte under a concrete struct field; that
// encoding is undone here rather than left for every caller to redo.
func (m Message) Bytes(key string) []byte {
	switch v := m[key].(type) {
	case []byte:
		return v
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return []byte(v)
		}
		return decoded
	default:
		return nil
	}
}

// Map returns the map[string]any value of key, used for the `options` and
// `tag` payloads.
func (m Message) Map(key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

// RequireVerb validates that the message carries exactly the expected
// verb, returning a descriptive error otherwise.
func RequireVerb(m Message, want Verb) error {
	if got := m.Verb(); got != want {
		return fmt.Errorf("protocol: expected verb %q, got %q", want, got)
	}
	return nil
}
