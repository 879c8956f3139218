package mutate

import (
	"fmt"

	"github.com/jihwankim/fuzzbroker/pkg/binstruct"
	"github.com/jihwankim/fuzzbroker/pkg/generator"
)

// Fixup is a pure transform applied to a mutated structure before it is
// yielded; with Options.SendUnfixed the unfixed structure is yielded
// first, so the fixed one is yielded a second time.
type Fixup func(*binstruct.Binstruct) *binstruct.Binstruct

// Options configures one run of BasicTests.
type Options struct {
	MaxLen         int
	SendUnfixed    bool
	Skip           int
	FuzzLevel      int
	PreserveLength bool
	RandomCases    int
	Fixups         []Fixup
}

// Yield is one mutated structure produced by BasicTests, handed over
// unencoded.
type Yield struct {
	Struct *binstruct.Binstruct
	Phase  string
	Field  string
}

// BasicTests walks s and calls emit for every mutated variant described by
// the replace, delete, inject, and group phases. skip suppresses the first
// skip yields (used to resume an interrupted run).
func BasicTests(s *binstruct.Binstruct, opts Options, emit func(Yield) error) error {
	count := 0
	maybeEmit := func(y Yield) error {
		count++
		if count <= opts.Skip {
			return nil
		}
		return emit(y)
	}

	if err := replacePhase(s, opts, maybeEmit); err != nil {
		return err
	}
	if !opts.PreserveLength {
		if err := deletePhase(s, opts, maybeEmit); err != nil {
			return err
		}
		if err := injectPhase(s, opts, maybeEmit); err != nil {
			return err
		}
	}
	if err := groupPhase(s, opts, maybeEmit); err != nil {
		return err
	}
	return nil
}

// CountTests returns the number of yields an equivalent BasicTests run
// would produce, with the yield body replaced by a counter increment.
// skip is ignored: the count reflects the full
// dataset a run would walk, independent of where that run resumes from.
func CountTests(s *binstruct.Binstruct, opts Options) (int, error) {
	n := 0
	unskipped := opts
	unskipped.Skip = 0
	err := BasicTests(s, unskipped, func(Yield) error {
		n++
		return nil
	})
	return n, err
}

func applyFixupsAndEmit(s *binstruct.Binstruct, opts Options, phase, field string, emit func(Yield) error) error {
	if opts.SendUnfixed {
		if err := emit(Yield{Struct: s, Phase: phase, Field: field}); err != nil {
			return err
		}
	}
	fixed := s
	for _, fx := range opts.Fixups {
		fixed = fx(fixed)
	}
	return emit(Yield{Struct: fixed, Phase: phase, Field: field})
}

func replacePhase(s *binstruct.Binstruct, opts Options, emit func(Yield) error) error {
	originalEncoded := s.Encode()

	var err error
	s.DeepEach(func(f *binstruct.Field) {
		if err != nil {
			return
		}
		original := f.Clone()
		gen := replacementGeneratorFor(f, opts.MaxLen, opts.PreserveLength, opts.RandomCases, opts.FuzzLevel)
		for gen.HasNext() {
			v, genErr := gen.Next()
			if genErr != nil {
				break
			}
			if setErr := f.SetBits(lastNBits(bytesToBits(v), f.LengthBits()), true); setErr != nil {
				err = fmt.Errorf("mutate: replace phase field %q: %w", f.Name(), setErr)
				return
			}
			if emitErr := applyFixupsAndEmit(s, opts, "replace", f.Name(), emit); emitErr != nil {
				err = emitErr
				return
			}
			restoreField(f, original)
			if !bytesEqual(s.Encode(), originalEncoded) {
				err = fmt.Errorf("mutate: replace phase field %q: restore invariant violated", f.Name())
				return
			}
		}
	})
	return err
}

func deletePhase(s *binstruct.Binstruct, opts Options, emit func(Yield) error) error {
	var err error
	for _, f := range s.Flatten() {
		if err != nil {
			break
		}
		empty := binstruct.NewField(f.Name(), f.Kind(), 0, binstruct.Variable, f.Endian(), "")
		if !s.Replace(f, empty) {
			continue
		}
		if emitErr := applyFixupsAndEmit(s, opts, "delete", f.Name(), emit); emitErr != nil {
			err = emitErr
		}
		s.Replace(empty, f)
	}
	return err
}

func injectPhase(s *binstruct.Binstruct, opts Options, emit func(Yield) error) error {
	var err error
	fields := s.Flatten()
	for i, f := range fields {
		if err != nil {
			break
		}
		isFirst := i == 0
		gen := injectionGeneratorFor(f.Kind(), opts.MaxLen)

		for gen.HasNext() {
			chunk, genErr := gen.Next()
			if genErr != nil {
				break
			}
			before := append(append([]byte{}, chunk...), f.Encode()...)
			if emitErr := emitInjected(s, f, before, opts, "inject", emit); emitErr != nil {
				err = emitErr
				break
			}

			if isFirst {
				after := append(append([]byte{}, f.Encode()...), chunk...)
				if emitErr := emitInjected(s, f, after, opts, "inject-tail", emit); emitErr != nil {
					err = emitErr
					break
				}
			}
		}
	}
	return err
}

// emitInjected splices a StringField carrying content in place of f, yields,
// and restores f.
func emitInjected(s *binstruct.Binstruct, f *binstruct.Field, content []byte, opts Options, phase string, emit func(Yield) error) error {
	replacement := binstruct.NewField(f.Name(), binstruct.KindString, len(content)*8, binstruct.Variable, f.Endian(), "")
	if setErr := replacement.Set(content); setErr != nil {
		return fmt.Errorf("mutate: %s phase field %q: %w", phase, f.Name(), setErr)
	}
	if !s.Replace(f, replacement) {
		return nil
	}
	err := applyFixupsAndEmit(s, opts, phase, f.Name(), emit)
	s.Replace(replacement, f)
	return err
}

func groupPhase(s *binstruct.Binstruct, opts Options, emit func(Yield) error) error {
	randomCases := 8 * opts.FuzzLevel
	if randomCases <= 0 {
		randomCases = 8
	}

	for _, groupName := range s.GroupNames() {
		members, _ := s.Group(groupName)
		fields := make([]*binstruct.Field, 0, len(members))
		originals := make([]*binstruct.Field, 0, len(members))
		gens := make([]generator.Generator[[]byte], 0, len(members))
		for _, name := range members {
			node, nodeErr := s.FieldByName(name)
			if nodeErr != nil {
				return nodeErr
			}
			f, ok := node.(*binstruct.Field)
			if !ok {
				continue
			}
			fields = append(fields, f)
			originals = append(originals, f.Clone())
			gens = append(gens, replacementGeneratorFor(f, opts.MaxLen, opts.PreserveLength, randomCases, opts.FuzzLevel))
		}
		if len(fields) == 0 {
			continue
		}

		cart := generator.NewCartesian(gens...)
		for cart.HasNext() {
			tuple, err := cart.Next()
			if err != nil {
				break
			}
			for i, f := range fields {
				if err := f.SetBits(lastNBits(bytesToBits(tuple[i]), f.LengthBits()), true); err != nil {
					return fmt.Errorf("mutate: group phase %q field %q: %w", groupName, f.Name(), err)
				}
			}
			if err := applyFixupsAndEmit(s, opts, "group:"+groupName, "", emit); err != nil {
				return err
			}
		}
		for i, f := range fields {
			restoreField(f, originals[i])
		}
	}
	return nil
}

func restoreField(f, original *binstruct.Field) {
	bits := original.Bits()
	_ = f.SetBits(bits, true)
}

func lastNBits(bits string, n int) string {
	if len(bits) <= n {
		return bits
	}
	return bits[len(bits)-n:]
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
