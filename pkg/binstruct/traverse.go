package binstruct

// Each yields every field, descending exactly one level into bitfield
// containers but not into ordinary nested structs.
func (s *Binstruct) Each(fn func(*Field)) {
	for _, c := range s.children {
		switch node := c.(type) {
		case *Field:
			fn(node)
		case *Binstruct:
			if node.bitfield {
				for _, gc := range node.children {
					if f, ok := gc.(*Field); ok {
						fn(f)
					}
				}
			}
		}
	}
}

// DeepEach yields every leaf field across all nesting, bitfield or not.
func (s *Binstruct) DeepEach(fn func(*Field)) {
	for _, c := range s.children {
		switch node := c.(type) {
		case *Field:
			fn(node)
		case *Binstruct:
			node.DeepEach(fn)
		}
	}
}

// Flatten returns every leaf field in traversal order.
func (s *Binstruct) Flatten() []*Field {
	var out []*Field
	s.DeepEach(func(f *Field) { out = append(out, f) })
	return out
}

// Replace substitutes old for new anywhere in the tree, searching both the
// top-level children slice and every nested struct, and updates any
// hashReferences entries that pointed at old so name lookups keep working.
func (s *Binstruct) Replace(old, new Node) bool {
	replaced := false
	for i, c := range s.children {
		if c == old {
			s.children[i] = new
			replaced = true
			continue
		}
		if sub, ok := c.(*Binstruct); ok {
			if sub.Replace(old, new) {
				replaced = true
			}
		}
	}
	if replaced {
		for name, ref := range s.hashReferences {
			if ref == old {
				s.hashReferences[name] = new
			}
		}
	}
	return replaced
}
