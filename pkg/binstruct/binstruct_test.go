package binstruct

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsignedLittleEndianEncode(t *testing.T) {
	f := NewField("len", KindUnsigned, 16, Fixed, Little, "")
	require.NoError(t, f.Set(0x1234))
	require.Equal(t, []byte{0x34, 0x12}, f.Encode())
}

func TestUnsignedBigEndianRoundTrip(t *testing.T) {
	for v := -16; v <= 32; v++ {
		f := NewField("v", KindUnsigned, 6, Fixed, Big, "")
		require.NoError(t, f.Set(v))
		got, err := f.Value()
		require.NoError(t, err)
		want := uint64(((v % 64) + 64) % 64)
		require.Equal(t, want, got)
	}
}

func TestOctetstringField(t *testing.T) {
	f := NewField("ip", KindOctetstring, 32, Fixed, Big, "")
	require.NoError(t, f.Set("1.2.3.4"))
	require.Equal(t, []byte{1, 2, 3, 4}, f.Encode())

	err := f.Set("1.2.3")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrFieldInput)
}

func TestStructEncodeByteAligned(t *testing.T) {
	s := New("packet", Big, false)
	a := NewField("a", KindUnsigned, 8, Fixed, Big, "")
	b := NewField("b", KindUnsigned, 8, Fixed, Big, "")
	require.NoError(t, a.Set(0x41))
	require.NoError(t, b.Set(0x42))
	require.NoError(t, s.AddField(a))
	require.NoError(t, s.AddField(b))

	require.Equal(t, []byte("AB"), s.Encode())
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	s := New("packet", Big, false)
	a := NewField("a", KindUnsigned, 8, Fixed, Big, "")
	b := NewField("b", KindUnsigned, 16, Fixed, Big, "")
	require.NoError(t, s.AddField(a))
	require.NoError(t, s.AddField(b))

	orig := []byte{0x01, 0x02, 0x03}
	n, err := s.Decode(orig)
	require.NoError(t, err)
	require.Equal(t, len(orig)*8, n)
	require.Equal(t, orig, s.Encode())
}

func TestDuplicateFieldNameRejected(t *testing.T) {
	s := New("packet", Big, false)
	require.NoError(t, s.AddField(NewField("x", KindUnsigned, 8, Fixed, Big, "")))
	err := s.AddField(NewField("x", KindUnsigned, 8, Fixed, Big, ""))
	require.Error(t, err)
}

func TestGroupRequiresKnownFields(t *testing.T) {
	s := New("packet", Big, false)
	require.NoError(t, s.AddField(NewField("x", KindUnsigned, 8, Fixed, Big, "")))
	err := s.AddGroup("g", []string{"x", "missing"})
	require.ErrorIs(t, err, ErrUnknownField)

	require.NoError(t, s.AddGroup("g2", []string{"x"}))
	members, ok := s.Group("g2")
	require.True(t, ok)
	require.Equal(t, []string{"x"}, members)
}

func TestEachDescendsOneLevelIntoBitfields(t *testing.T) {
	s := New("packet", Big, false)
	bf := New("flags", Big, true)
	require.NoError(t, bf.AddField(NewField("f1", KindUnsigned, 4, Fixed, Big, "")))
	require.NoError(t, bf.AddField(NewField("f2", KindUnsigned, 4, Fixed, Big, "")))
	require.NoError(t, s.AddStruct(bf))

	nested := New("body", Big, false)
	require.NoError(t, nested.AddField(NewField("inner", KindUnsigned, 8, Fixed, Big, "")))
	require.NoError(t, s.AddStruct(nested))

	var names []string
	s.Each(func(f *Field) { names = append(names, f.Name()) })
	require.Equal(t, []string{"f1", "f2"}, names)
}

func TestDeepEachVisitsEveryLeaf(t *testing.T) {
	s := New("packet", Big, false)
	bf := New("flags", Big, true)
	require.NoError(t, bf.AddField(NewField("f1", KindUnsigned, 4, Fixed, Big, "")))
	require.NoError(t, s.AddStruct(bf))
	nested := New("body", Big, false)
	require.NoError(t, nested.AddField(NewField("inner", KindUnsigned, 8, Fixed, Big, "")))
	require.NoError(t, s.AddStruct(nested))

	flat := s.Flatten()
	var names []string
	for _, f := range flat {
		names = append(names, f.Name())
	}
	require.Equal(t, []string{"f1", "inner"}, names)
}

func TestReplacePreservesNameLookup(t *testing.T) {
	s := New("packet", Big, false)
	orig := NewField("x", KindUnsigned, 8, Fixed, Big, "")
	require.NoError(t, s.AddField(orig))

	repl := NewField("x", KindString, 8, Variable, Big, "")
	require.NoError(t, repl.Set("!"))
	require.True(t, s.Replace(orig, repl))

	found, err := s.FieldByName("x")
	require.NoError(t, err)
	assert.Same(t, repl, found)
}

func TestBitfieldLittleEndianByteSwap(t *testing.T) {
	s := New("packet", Big, false)
	bf := New("hdr", Little, true)
	a := NewField("a", KindUnsigned, 8, Fixed, Big, "")
	b := NewField("b", KindUnsigned, 8, Fixed, Big, "")
	require.NoError(t, a.Set(0x41))
	require.NoError(t, b.Set(0x42))
	require.NoError(t, bf.AddField(a))
	require.NoError(t, bf.AddField(b))
	require.NoError(t, s.AddStruct(bf))

	require.Equal(t, []byte("BA"), bf.Encode())
	require.Equal(t, []byte("BA"), s.Encode())
}
