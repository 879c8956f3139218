package mutate

import (
	"math/rand"
	"strconv"

	"github.com/jihwankim/fuzzbroker/pkg/binstruct"
	"github.com/jihwankim/fuzzbroker/pkg/generator"
)

var randomByteSet = func() [][]byte {
	out := make([][]byte, 256)
	for i := 0; i < 256; i++ {
		out[i] = []byte{byte(i)}
	}
	return out
}()

var asciiAlphaSet = func() [][]byte {
	var out [][]byte
	for c := byte('a'); c <= 'z'; c++ {
		out = append(out, []byte{c})
	}
	for c := byte('A'); c <= 'Z'; c++ {
		out = append(out, []byte{c})
	}
	return out
}()

var syntacticTokenSet = [][]byte{
	[]byte("%n"), []byte("%s"), []byte("%x"), []byte("%d"),
	[]byte("'"), []byte("\""), []byte(";"), []byte("--"),
	[]byte("../"), []byte("\x00"), []byte("<script>"), []byte("${}"),
}

// badSurrogateSet holds lone UTF-16 surrogate code units, invalid outside a
// surrogate pair, for the UTF-16-mode injection variant.
var badSurrogateSet = [][]byte{
	{0xd8, 0x00}, {0xdb, 0xff}, {0xdc, 0x00}, {0xdf, 0xff},
}

var mostlyASCIISet = func() [][]byte {
	out := append([][]byte{}, asciiAlphaSet...)
	out = append(out, []byte(" "), []byte("."), []byte(","))
	return out
}()

const injectionSeed = 0xf17a

// defaultInjectionGenerator builds the 70/85/100-weighted mix of random
// bytes, ASCII alphabetics, and syntactic tokens.
func defaultInjectionGenerator(maxLen int) generator.Generator[[]byte] {
	return NewMixAndMatch(maxLen,
		[][][]byte{randomByteSet, asciiAlphaSet, syntacticTokenSet},
		[]int{70, 15, 15},
		false, injectionSeed)
}

// defaultStringInjectionGenerator is the string-field override: it chains
// the default mix with a variant that front-loads mostly-ASCII content, so
// string fields see readable garbage before the generic byte soup.
func defaultStringInjectionGenerator(maxLen int) generator.Generator[[]byte] {
	asciiFirst := NewMixAndMatch(maxLen,
		[][][]byte{mostlyASCIISet, randomByteSet},
		[]int{85, 15},
		false, injectionSeed+1)
	return generator.NewChain[[]byte](asciiFirst, defaultInjectionGenerator(maxLen))
}

// defaultUTF16InjectionGenerator chains the default mix with bad-surrogate
// sequences, for fields declared in UTF-16 mode.
func defaultUTF16InjectionGenerator(maxLen int) generator.Generator[[]byte] {
	surrogates := NewMixAndMatch(maxLen, [][][]byte{badSurrogateSet}, []int{100}, true, injectionSeed+2)
	return generator.NewChain[[]byte](defaultInjectionGenerator(maxLen), surrogates)
}

// defaultReplacementGenerator implements §4.3's fixed/variable replacement
// rule directly against a field's declared length and length type.
func defaultReplacementGenerator(f *binstruct.Field, maxLen int, preserveLength bool, randomCases, fuzzLevel int) generator.Generator[[]byte] {
	if f.LengthType() == binstruct.Fixed || maxLen == 0 {
		if f.LengthBits() > 8 {
			return generator.NewRollingCorrupt(f.Encode(), f.LengthBits(), f.LengthBits(), randomCases, endianOf(f), rand.Int63())
		}
		return bitEnumerationGenerator(f.LengthBits())
	}

	var windowBits int
	switch {
	case f.LengthBits() < 16:
		windowBits = 8
	case f.LengthBits() < 32:
		windowBits = 16
	default:
		windowBits = 48 // 16+32, both windows chained below
	}

	chains := []generator.Generator[[]byte]{
		generator.NewRollingCorrupt(f.Encode(), windowBits, windowBits, randomCases, endianOf(f), rand.Int63()),
	}
	if windowBits == 48 {
		chains = []generator.Generator[[]byte]{
			generator.NewRollingCorrupt(f.Encode(), 16, 16, randomCases, endianOf(f), rand.Int63()),
			generator.NewRollingCorrupt(f.Encode(), 32, 32, randomCases, endianOf(f), rand.Int63()),
		}
	}
	if fuzzLevel > 1 {
		chains = append(chains,
			generator.NewRollingCorrupt(f.Encode(), 13, 5, randomCases, endianOf(f), rand.Int63()),
			generator.NewRollingCorrupt(f.Encode(), 7, 7, randomCases, endianOf(f), rand.Int63()))
	}

	if !preserveLength {
		chains = append(chains,
			generator.NewRepeater([][]byte{f.Encode()}, 1, 0, maxLen),
			generator.NewChop(f.Encode()))
	}

	return generator.NewChain[[]byte](chains...)
}

func endianOf(f *binstruct.Field) generator.Endian {
	if f.Endian() == binstruct.Little {
		return generator.LittleEndian
	}
	return generator.BigEndian
}

// bitEnumerationGenerator enumerates every value in [0, 2^bits) as a
// one-byte-per-bit-group-aligned buffer matching the field's raw encoding.
type bitEnumerationBytes struct {
	inner *generator.EnumerateBits
}

func bitEnumerationGenerator(bits int) generator.Generator[[]byte] {
	return &bitEnumerationBytes{inner: generator.NewEnumerateBits(bits)}
}

func (b *bitEnumerationBytes) HasNext() bool { return b.inner.HasNext() }

func (b *bitEnumerationBytes) Next() ([]byte, error) {
	s, err := b.inner.Next()
	if err != nil {
		return nil, err
	}
	// Pad on the left so the field's actual bits land as the rightmost
	// bits of the byte: the driver extracts a field's replacement value by
	// taking the last LengthBits() bits of this buffer's bit string.
	for len(s) < 8 {
		s = "0" + s
	}
	return bitsStringToBytes(s), nil
}

func (b *bitEnumerationBytes) Rewind() { b.inner.Rewind() }

// bitsStringToBytes packs a byte-aligned "0"/"1" literal into bytes.
func bitsStringToBytes(bits string) []byte {
	out := make([]byte, len(bits)/8)
	for i := range out {
		v, _ := strconv.ParseUint(bits[i*8:i*8+8], 2, 8)
		out[i] = byte(v)
	}
	return out
}
