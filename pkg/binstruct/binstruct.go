package binstruct

import "fmt"

// Node is implemented by both Field and Binstruct, letting a Binstruct
// nest either leaves or sub-structures as children.
type Node interface {
	Name() string
	Bits() string
}

// Binstruct is an ordered sequence of fields and nested Binstructs.
type Binstruct struct {
	name           string
	endian         Endian
	bitfield       bool
	children       []Node
	hashReferences map[string]Node
	groups         map[string][]string
}

// New builds an empty Binstruct. bitfield marks the structure as a
// bitfield container: in little-endian mode its assembled bitstring is
// byte-swapped on encode.
func New(name string, endian Endian, bitfield bool) *Binstruct {
	return &Binstruct{
		name:           name,
		endian:         endian,
		bitfield:       bitfield,
		hashReferences: make(map[string]Node),
		groups:         make(map[string][]string),
	}
}

func (s *Binstruct) Name() string { return s.name }
func (s *Binstruct) Endian() Endian { return s.endian }
func (s *Binstruct) IsBitfield() bool { return s.bitfield }

// AddField appends a field, registering it in the structure's name table.
// Fails if the name is already taken anywhere in the structure.
func (s *Binstruct) AddField(f *Field) error {
	if _, exists := s.hashReferences[f.Name()]; exists {
		return fmt.Errorf("binstruct: duplicate field name %q", f.Name())
	}
	s.children = append(s.children, f)
	s.hashReferences[f.Name()] = f
	return nil
}

// AddStruct appends a nested Binstruct (or bitfield container).
func (s *Binstruct) AddStruct(child *Binstruct) error {
	if _, exists := s.hashReferences[child.Name()]; exists {
		return fmt.Errorf("binstruct: duplicate field name %q", child.Name())
	}
	s.children = append(s.children, child)
	s.hashReferences[child.Name()] = child
	for name, ref := range child.hashReferences {
		if _, exists := s.hashReferences[name]; !exists {
			s.hashReferences[name] = ref
		}
	}
	return nil
}

// AddGroup attaches a named list of field names for the mutation engine's
// group-phase cartesian exhaustion. Every name must already resolve to a
// field in this structure (including nested structures).
func (s *Binstruct) AddGroup(name string, fieldNames []string) error {
	for _, fn := range fieldNames {
		if _, ok := s.hashReferences[fn]; !ok {
			return fmt.Errorf("%w: group %q references %q", ErrUnknownField, name, fn)
		}
	}
	s.groups[name] = fieldNames
	return nil
}

// Group returns the field-name list for a declared group.
func (s *Binstruct) Group(name string) ([]string, bool) {
	g, ok := s.groups[name]
	return g, ok
}

// GroupNames returns every declared group name, for callers (the mutation
// engine's group phase) that need to enumerate groups without reaching
// into the structure's internals.
func (s *Binstruct) GroupNames() []string {
	names := make([]string, 0, len(s.groups))
	for name := range s.groups {
		names = append(names, name)
	}
	return names
}

// FieldByName looks up a field or nested struct anywhere in the structure.
func (s *Binstruct) FieldByName(name string) (Node, error) {
	n, ok := s.hashReferences[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchField, name)
	}
	return n, nil
}

// assembledBits concatenates the bitstrings of all children in order.
func (s *Binstruct) assembledBits() string {
	var out string
	for _, c := range s.children {
		out += c.Bits()
	}
	return out
}

// Bits implements Node: the concatenation of child bits, byte-swapped if
// this structure is itself a little-endian bitfield container. A parent
// assembling its own Bits() picks up an already-swapped nested bitfield;
// if the parent is a little-endian bitfield too, it swaps the whole
// assembly again, so the nested bits are swapped once per enclosing
// little-endian bitfield level.
func (s *Binstruct) Bits() string {
	bits := s.assembledBits()
	if s.bitfield && s.endian == Little {
		bits = swapByteBitstring(bits)
	}
	return bits
}

// Encode serializes the structure: assemble Bits() and pad to a byte
// boundary on the right with zeros.
func (s *Binstruct) Encode() []byte {
	return bitsToBytes(s.Bits())
}

// Decode consumes bits from data, in declaration order, filling each leaf
// field's declared width. Returns the number of bits consumed.
func (s *Binstruct) Decode(data []byte) (int, error) {
	bits := bytesToBits(data)
	consumed, err := s.decodeBits(bits)
	return consumed, err
}

func (s *Binstruct) decodeBits(bits string) (int, error) {
	pos := 0
	if s.bitfield && s.endian == Little {
		// A little-endian bitfield was byte-swapped on encode, so the bits
		// arrive here in swapped order: swap the prefix sized for the
		// bitfield back before distributing it to children.
		total := s.declaredLenBits()
		if total > len(bits) {
			return 0, fmt.Errorf("binstruct: short buffer decoding %q", s.name)
		}
		prefix := swapByteBitstring(bits[:total])
		n, err := s.decodeChildren(prefix)
		return n, err
	}
	for _, c := range s.children {
		switch node := c.(type) {
		case *Field:
			if pos+node.lengthBits > len(bits) {
				return pos, fmt.Errorf("binstruct: short buffer decoding field %q", node.name)
			}
			if err := node.SetBits(bits[pos:pos+node.lengthBits], false); err != nil {
				return pos, err
			}
			pos += node.lengthBits
		case *Binstruct:
			n, err := node.decodeBits(bits[pos:])
			if err != nil {
				return pos, err
			}
			pos += n
		}
	}
	return pos, nil
}

func (s *Binstruct) decodeChildren(bits string) (int, error) {
	pos := 0
	for _, c := range s.children {
		switch node := c.(type) {
		case *Field:
			if pos+node.lengthBits > len(bits) {
				return pos, fmt.Errorf("binstruct: short buffer decoding field %q", node.name)
			}
			if err := node.SetBits(bits[pos:pos+node.lengthBits], false); err != nil {
				return pos, err
			}
			pos += node.lengthBits
		case *Binstruct:
			n, err := node.decodeBits(bits[pos:])
			if err != nil {
				return pos, err
			}
			pos += n
		}
	}
	return pos, nil
}

func (s *Binstruct) declaredLenBits() int {
	n := 0
	for _, c := range s.children {
		switch node := c.(type) {
		case *Field:
			n += node.lengthBits
		case *Binstruct:
			n += node.declaredLenBits()
		}
	}
	return n
}
