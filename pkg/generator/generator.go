// Package generator implements the lazy, restartable sequence generators
// used by the mutation engine to enumerate fuzzed variants of a field or
// structure. Every generator is a finite state machine: its internal state
// is an index, a set of counters, and (for combinators) in-flight
// sub-generators. There is no coroutine re-entry anywhere in the package.
package generator

import "errors"

// ErrExhausted is returned by Next when HasNext would report false.
var ErrExhausted = errors.New("generator: exhausted")

// Generator is a lazy, finite-or-infinite producer of values of type T.
// Values are produced one at a time in a single traversal; Rewind resets
// the generator to the state it had immediately after construction.
type Generator[T any] interface {
	// HasNext reports whether a subsequent call to Next will succeed.
	HasNext() bool
	// Next returns the next value, or ErrExhausted if HasNext() == false.
	Next() (T, error)
	// Rewind resets the generator to its initial state. Idempotent.
	Rewind()
}

// Collect drains g from its current position and returns every value.
// Useful in tests; not part of the generator contract itself.
func Collect[T any](g Generator[T]) []T {
	var out []T
	for g.HasNext() {
		v, err := g.Next()
		if err != nil {
			break
		}
		out = append(out, v)
	}
	return out
}

// Transform is a pure function applied to each value a generator emits.
type Transform[T any] func(T) T
