package generator

import "bytes"

// stepSequence computes the sequence of repeat counts described in §4.1.
// When step == 0, counts grow exponentially: start + 2^k + 1 for
// k = 1, 2, … while < limit, with limit appended last. i == 0 is always
// skipped.
func stepSequence(start, step, limit int) []int {
	var seq []int
	if step == 0 {
		k := 1
		for {
			val := start + (1 << uint(k)) + 1
			if val >= limit {
				break
			}
			seq = append(seq, val)
			k++
		}
		seq = append(seq, limit)
	} else {
		for i := start; i <= limit; i += step {
			seq = append(seq, i)
		}
	}

	out := seq[:0]
	for _, v := range seq {
		if v != 0 {
			out = append(out, v)
		}
	}
	return out
}

// Repeater emits, for each element r of series, r repeated i times
// (concatenated) passed through transforms, for each i in the step
// sequence derived from (start, step, limit).
type Repeater struct {
	series     [][]byte
	steps      []int
	transforms []Transform[[]byte]

	si, ii int
}

// NewRepeater builds a Repeater. start/step/limit are as described in §4.1.
func NewRepeater(series [][]byte, start, step, limit int, transforms ...Transform[[]byte]) *Repeater {
	r := &Repeater{
		series:     series,
		steps:      stepSequence(start, step, limit),
		transforms: transforms,
	}
	return r
}

func (r *Repeater) HasNext() bool {
	return r.si < len(r.series) && len(r.steps) > 0
}

func (r *Repeater) Next() ([]byte, error) {
	if !r.HasNext() {
		return nil, ErrExhausted
	}
	n := r.steps[r.ii]
	v := bytes.Repeat(r.series[r.si], n)
	for _, t := range r.transforms {
		v = t(v)
	}

	r.ii++
	if r.ii >= len(r.steps) {
		r.ii = 0
		r.si++
	}
	return v, nil
}

func (r *Repeater) Rewind() {
	r.si = 0
	r.ii = 0
}
