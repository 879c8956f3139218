package binstruct

import "fmt"

// LengthType distinguishes fields whose stored bit count is fixed by
// declaration from those that may hold fewer bits than declared.
type LengthType string

const (
	Fixed    LengthType = "fixed"
	Variable LengthType = "variable"
)

// Endian selects byte order for multi-byte field kinds.
type Endian int

const (
	Big Endian = iota
	Little
)

// Field is a named, typed bit-string of a declared length.
type Field struct {
	name        string
	lengthBits  int
	lengthType  LengthType
	endian      Endian
	kind        Kind
	bitstring   string
	description string
}

// NewField builds an empty field of the given kind and declared length.
// The field's bitstring is zero-filled until Set or SetBits is called.
func NewField(name string, kind Kind, lengthBits int, lengthType LengthType, endian Endian, description string) *Field {
	f := &Field{
		name:        name,
		lengthBits:  lengthBits,
		lengthType:  lengthType,
		endian:      endian,
		kind:        kind,
		description: description,
	}
	if lengthType == Fixed {
		f.bitstring = padBitsLeft("", lengthBits)
	}
	return f
}

func (f *Field) Name() string            { return f.name }
func (f *Field) LengthBits() int         { return f.lengthBits }
func (f *Field) LengthType() LengthType  { return f.lengthType }
func (f *Field) Endian() Endian          { return f.endian }
func (f *Field) Kind() Kind              { return f.kind }
func (f *Field) Description() string     { return f.description }
func (f *Field) Bits() string            { return f.bitstring }

// Set converts value to a bitstring via the field's kind handler and
// validates the fixed/variable length invariant.
func (f *Field) Set(value any) error {
	h, err := handlerFor(f.kind)
	if err != nil {
		return err
	}
	bits, err := h.ToBits(f, value)
	if err != nil {
		return err
	}
	return f.validateAndStore(bits, h)
}

// Value converts the field's stored bitstring back to a kind-specific
// value via the field's kind handler.
func (f *Field) Value() (any, error) {
	h, err := handlerFor(f.kind)
	if err != nil {
		return nil, err
	}
	return h.FromBits(f, f.bitstring)
}

// SetBits stores a raw "0"/"1" bitstring directly, bypassing kind
// conversion. Used by the mutation engine to install replacement and
// corrupted content. truncate, when the supplied bits are longer than the
// field's declared length, keeps only the rightmost lengthBits bits.
func (f *Field) SetBits(bits string, truncate bool) error {
	if !isBitstring(bits) {
		return fmt.Errorf("%w: not a 0/1 bitstring", ErrFieldInput)
	}
	if f.lengthType == Fixed && len(bits) != f.lengthBits {
		if !truncate {
			return fmt.Errorf("%w: field %q wants %d bits, got %d", ErrFieldInput, f.name, f.lengthBits, len(bits))
		}
		if len(bits) > f.lengthBits {
			bits = bits[len(bits)-f.lengthBits:]
		} else {
			bits = padBitsLeft(bits, f.lengthBits)
		}
	}
	h, err := handlerFor(f.kind)
	if err != nil {
		return err
	}
	return f.validateAndStore(bits, h)
}

func (f *Field) validateAndStore(bits string, h KindHandler) error {
	if f.lengthType == Fixed {
		if len(bits) != f.lengthBits {
			return fmt.Errorf("%w: field %q wants %d bits, got %d", ErrFieldInput, f.name, f.lengthBits, len(bits))
		}
	} else {
		if len(bits) > f.lengthBits {
			return fmt.Errorf("%w: field %q exceeds max %d bits", ErrFieldInput, f.name, f.lengthBits)
		}
		if !h.AllowsNonByteAligned() && len(bits)%8 != 0 {
			return fmt.Errorf("%w: field %q must be byte-aligned", ErrFieldInput, f.name)
		}
	}
	f.bitstring = bits
	return nil
}

// Encode packs the field's bitstring to bytes, padding the final byte on
// the right with zeros.
func (f *Field) Encode() []byte { return bitsToBytes(f.bitstring) }

// Clone returns a deep copy of the field, used by the mutation engine when
// it needs to restore an original value after a mutated yield.
func (f *Field) Clone() *Field {
	cp := *f
	return &cp
}
