package generator

// Cartesian emits every tuple in the cartesian product of its child byte
// generators, in lexicographic order with the first generator varying
// slowest. All children are rewound before the first draw so repeated
// rewinds of the Cartesian itself are idempotent.
type Cartesian struct {
	children []Generator[[]byte]
	// current holds the value most recently drawn from each child; Next
	// advances it like an odometer, the last child varying fastest.
	current []([]byte)
	started bool
	done    bool
}

// NewCartesian builds a Cartesian generator over the given children.
// An empty argument list yields an immediately-exhausted generator.
func NewCartesian(children ...Generator[[]byte]) *Cartesian {
	c := &Cartesian{children: children}
	c.Rewind()
	return c
}

func (c *Cartesian) Rewind() {
	for _, ch := range c.children {
		ch.Rewind()
	}
	c.current = make([][]byte, len(c.children))
	c.started = false
	c.done = len(c.children) == 0
	for _, ch := range c.children {
		if !ch.HasNext() {
			c.done = true
			break
		}
	}
}

func (c *Cartesian) HasNext() bool {
	if c.done {
		return false
	}
	if !c.started {
		return true
	}
	// Another tuple exists while any child can still advance.
	for _, ch := range c.children {
		if ch.HasNext() {
			return true
		}
	}
	return false
}

func (c *Cartesian) Next() ([][]byte, error) {
	if c.done {
		return nil, ErrExhausted
	}

	if !c.started {
		c.started = true
		for i, ch := range c.children {
			v, err := ch.Next()
			if err != nil {
				c.done = true
				return nil, ErrExhausted
			}
			c.current[i] = v
		}
		out := make([][]byte, len(c.current))
		copy(out, c.current)
		return out, nil
	}

	// Advance like an odometer: rightmost generator varies fastest, carry
	// propagates left on overflow.
	i := len(c.children) - 1
	for i >= 0 {
		if c.children[i].HasNext() {
			v, err := c.children[i].Next()
			if err != nil {
				c.done = true
				return nil, ErrExhausted
			}
			c.current[i] = v
			break
		}
		c.children[i].Rewind()
		if !c.children[i].HasNext() {
			c.done = true
			return nil, ErrExhausted
		}
		v, err := c.children[i].Next()
		if err != nil {
			c.done = true
			return nil, ErrExhausted
		}
		c.current[i] = v
		i--
	}
	if i < 0 {
		c.done = true
		return nil, ErrExhausted
	}

	out := make([][]byte, len(c.current))
	copy(out, c.current)
	return out, nil
}
