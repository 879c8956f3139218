package mutate

import (
	"github.com/jihwankim/fuzzbroker/pkg/binstruct"
	"github.com/jihwankim/fuzzbroker/pkg/generator"
)

// encodedGen is a restartable generator.Generator[[]byte] over a fixed
// slice of already-encoded test cases.
type encodedGen struct {
	cases [][]byte
	idx   int
}

func (e *encodedGen) HasNext() bool { return e.idx < len(e.cases) }

func (e *encodedGen) Next() ([]byte, error) {
	if !e.HasNext() {
		return nil, generator.ErrExhausted
	}
	v := e.cases[e.idx]
	e.idx++
	return v, nil
}

func (e *encodedGen) Rewind() { e.idx = 0 }

// NewSource runs BasicTests over s to completion and returns the encoded
// variants as a generator.Generator[[]byte], so a producer can drive a
// structure's mutation space the same way it would drive any other
// generator. s is restored to its original encoding once BasicTests
// returns, matching BasicTests' own restore-on-exit contract.
func NewSource(s *binstruct.Binstruct, opts Options) (generator.Generator[[]byte], error) {
	var cases [][]byte
	err := BasicTests(s, opts, func(y Yield) error {
		cases = append(cases, y.Struct.Encode())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &encodedGen{cases: cases}, nil
}
