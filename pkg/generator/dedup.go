package generator

const duplicateFilterWindow = 10000

// DuplicateFilter wraps a byte-string generator and suppresses values whose
// hash has been seen within a bounded recency window of at most 10,000
// entries (oldest entries are evicted first).
type DuplicateFilter struct {
	src    Generator[[]byte]
	window []string
	seen   map[string]int // key -> ring position
	head   int
	// pending is the next unique value, fetched ahead by HasNext.
	pending []byte
	ready   bool
}

// NewDuplicateFilter wraps src.
func NewDuplicateFilter(src Generator[[]byte]) *DuplicateFilter {
	return &DuplicateFilter{
		src:  src,
		seen: make(map[string]int),
	}
}

func (d *DuplicateFilter) remember(key string) {
	if len(d.window) < duplicateFilterWindow {
		d.window = append(d.window, key)
		d.seen[key] = len(d.window) - 1
		return
	}
	evictPos := d.head
	evictKey := d.window[evictPos]
	delete(d.seen, evictKey)
	d.window[evictPos] = key
	d.seen[key] = evictPos
	d.head = (d.head + 1) % duplicateFilterWindow
}

func (d *DuplicateFilter) HasNext() bool {
	if !d.ready {
		v, err := d.next()
		d.pending, d.ready = v, err == nil
	}
	return d.ready
}

func (d *DuplicateFilter) Next() ([]byte, error) {
	if !d.HasNext() {
		return nil, ErrExhausted
	}
	d.ready = false
	return d.pending, nil
}

// next pulls from src until it finds a value not seen in the window.
func (d *DuplicateFilter) next() ([]byte, error) {
	for d.src.HasNext() {
		v, err := d.src.Next()
		if err != nil {
			return nil, err
		}
		key := string(v)
		if _, dup := d.seen[key]; dup {
			continue
		}
		d.remember(key)
		return v, nil
	}
	return nil, ErrExhausted
}

func (d *DuplicateFilter) Rewind() {
	d.src.Rewind()
	d.window = nil
	d.seen = make(map[string]int)
	d.head = 0
	d.pending, d.ready = nil, false
}
