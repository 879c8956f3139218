package mutate

import (
	"math/rand"

	"github.com/jihwankim/fuzzbroker/pkg/generator"
)

// MixAndMatch fills each requested length with tokens sampled across
// percentage-weighted byte sets, per the default injection generators.
type MixAndMatch struct {
	maxLen      int
	sets        [][][]byte
	cumulative  []int
	utf16       bool
	rng         *rand.Rand
	seed        int64
	lengths     []int
	idx         int
}

// NewMixAndMatch builds a generator that, for each length in the step
// sequence up to maxLen, rolls 1..100 against the cumulative percentages
// to pick a set and samples tokens from it until the length is filled.
func NewMixAndMatch(maxLen int, sets [][][]byte, percentages []int, utf16 bool, seed int64) *MixAndMatch {
	cumulative := make([]int, len(percentages))
	sum := 0
	for i, p := range percentages {
		sum += p
		cumulative[i] = sum
	}
	m := &MixAndMatch{
		maxLen:     maxLen,
		sets:       sets,
		cumulative: cumulative,
		utf16:      utf16,
		seed:       seed,
		lengths:    lengthSequence(maxLen),
	}
	m.Rewind()
	return m
}

// lengthSequence mirrors the growth rule used by the repeat-count step
// sequence: 1, then 1+2^k+1 for increasing k, capped at limit.
func lengthSequence(limit int) []int {
	if limit <= 0 {
		return nil
	}
	seq := []int{1}
	k := 1
	for {
		val := 1 + (1 << uint(k)) + 1
		if val >= limit {
			break
		}
		seq = append(seq, val)
		k++
	}
	seq = append(seq, limit)
	return seq
}

func (m *MixAndMatch) pickSet() [][]byte {
	roll := m.rng.Intn(100) + 1
	for i, c := range m.cumulative {
		if roll <= c {
			return m.sets[i]
		}
	}
	return m.sets[len(m.sets)-1]
}

func (m *MixAndMatch) sampleToken() []byte {
	set := m.pickSet()
	tok := set[m.rng.Intn(len(set))]
	if m.utf16 && len(tok) == 1 {
		return append(append([]byte{}, tok...), 0x00)
	}
	return tok
}

func (m *MixAndMatch) HasNext() bool { return m.idx < len(m.lengths) }

func (m *MixAndMatch) Next() ([]byte, error) {
	if !m.HasNext() {
		return nil, generator.ErrExhausted
	}
	want := m.lengths[m.idx]
	m.idx++

	out := make([]byte, 0, want)
	for len(out) < want {
		out = append(out, m.sampleToken()...)
	}
	if m.utf16 {
		// A 2-byte-padded token may overshoot want by one byte; truncating
		// would strip the padding byte back off, so the natural length is
		// kept instead.
		return out, nil
	}
	return out[:want], nil
}

func (m *MixAndMatch) Rewind() {
	m.rng = rand.New(rand.NewSource(m.seed)) //nolint:gosec
	m.idx = 0
}
