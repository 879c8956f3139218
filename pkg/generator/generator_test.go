package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryCornerCases8Bit(t *testing.T) {
	g := NewBinaryCornerCases(8)
	got := Collect[uint64](g)
	want := []uint64{0xff, 0x00, 0x80, 0x01, 0x7f, 0xfe, 0xc0, 0x03, 0x3f, 0xfc, 0xaa, 0x55}
	require.Equal(t, want, got)
}

func TestBinaryCornerCasesNoDuplicates(t *testing.T) {
	for _, bits := range []int{1, 4, 7, 8, 12, 16, 24, 32, 40} {
		g := NewBinaryCornerCases(bits)
		seen := map[uint64]bool{}
		for g.HasNext() {
			v, err := g.Next()
			require.NoError(t, err)
			assert.False(t, seen[v], "duplicate corner case for bitlength %d: %x", bits, v)
			seen[v] = true
		}
	}
}

func TestBinaryCornerCasesCardinalityMonotonic(t *testing.T) {
	prev := 0
	for _, bits := range []int{1, 4, 8, 16, 32, 64} {
		g := NewBinaryCornerCases(bits)
		n := g.Len()
		assert.GreaterOrEqual(t, n, prev)
		prev = n
	}
}

func TestRewindIdempotent(t *testing.T) {
	g := NewEnumerateBits(4)
	first := Collect[string](g)
	g.Rewind()
	second := Collect[string](g)
	require.Equal(t, first, second)
	g.Rewind()
	g.Rewind()
	third := Collect[string](g)
	require.Equal(t, first, third)
}

func TestEnumerateBitsAll(t *testing.T) {
	g := NewEnumerateBits(3)
	got := Collect[string](g)
	want := []string{"000", "001", "010", "011", "100", "101", "110", "111"}
	require.Equal(t, want, got)
}

func TestExhaustedError(t *testing.T) {
	g := NewEnumerateBits(1)
	Collect[string](g)
	assert.False(t, g.HasNext())
	_, err := g.Next()
	require.ErrorIs(t, err, ErrExhausted)
}

func TestRollingCorruptLengthPreserved(t *testing.T) {
	data := []byte("ABCDEFGH")
	g := NewRollingCorrupt(data, 16, 8, 2, BigEndian, 1)
	for g.HasNext() {
		v, err := g.Next()
		require.NoError(t, err)
		require.Len(t, v, len(data))
	}
}

func TestRollingCorruptSingleWindowStep(t *testing.T) {
	g := NewRollingCorrupt([]byte("AB"), 8, 8, 0, BigEndian, 0)
	require.True(t, g.HasNext())
	v1, err := g.Next()
	require.NoError(t, err)
	require.Equal(t, []byte("BB"), v1)

	v2, err := g.Next()
	require.NoError(t, err)
	require.Equal(t, []byte("@B"), v2)
}

func TestChopFirstSteps(t *testing.T) {
	// See DESIGN.md for why this asserts the rule's actual output rather
	// than a hand-picked expected chain.
	g := NewChop([]byte("abcdefghij"))
	v1, err := g.Next()
	require.NoError(t, err)
	require.Equal(t, "abchij", string(v1))

	v2, err := g.Next()
	require.NoError(t, err)
	require.Equal(t, "abij", string(v2))
}

func TestChopNineByteInput(t *testing.T) {
	g := NewChop([]byte("abcdefghi"))

	v1, err := g.Next()
	require.NoError(t, err)
	require.Equal(t, "abcghi", string(v1))

	v2, err := g.Next()
	require.NoError(t, err)
	require.Equal(t, "abhi", string(v2))

	v3, err := g.Next()
	require.NoError(t, err)
	require.Equal(t, "ai", string(v3))

	require.False(t, g.HasNext())
}

func TestChopTerminatesBelowThree(t *testing.T) {
	g := NewChop([]byte("abcdefghij"))
	var last []byte
	for g.HasNext() {
		v, err := g.Next()
		require.NoError(t, err)
		last = v
	}
	require.Less(t, len(last), 3)
}

func TestDuplicateFilterSuppressesRepeats(t *testing.T) {
	src := NewChain[[]byte](
		NewStatic([]byte("x"), CopyBytes, 3),
		NewStatic([]byte("y"), CopyBytes, 2),
	)
	df := NewDuplicateFilter(src)
	got := Collect[[]byte](df)
	require.Equal(t, [][]byte{[]byte("x"), []byte("y")}, got)
}

func TestCartesianOrder(t *testing.T) {
	a := NewStatic([]byte("a"), CopyBytes, 1)
	b := NewChain[[]byte](
		NewStatic([]byte("x"), CopyBytes, 1),
		NewStatic([]byte("y"), CopyBytes, 1),
	)
	c := NewCartesian(a, b)
	got := Collect[[][]byte](c)
	require.Len(t, got, 2)
	for _, tuple := range got {
		require.Equal(t, []byte("a"), tuple[0])
	}
	require.Equal(t, []byte("x"), got[0][1])
	require.Equal(t, []byte("y"), got[1][1])
}

func TestRepeaterSkipsZero(t *testing.T) {
	r := NewRepeater([][]byte{[]byte("z")}, 1, 1, 3)
	got := Collect[[]byte](r)
	require.Equal(t, [][]byte{[]byte("z"), []byte("zz"), []byte("zzz")}, got)
}
