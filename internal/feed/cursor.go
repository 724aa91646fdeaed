package feed

// Cursor tracks how many items a view has requested and whether the store
// has run out. The zero value is ready to use.
type Cursor struct {
	requested int
	exhausted bool
	observed  bool
}

// Advance grows the request window by pageSize and returns the new limit.
// Once exhausted it returns the current window and false.
func (c *Cursor) Advance(pageSize int) (int, bool) {
	if c.exhausted || pageSize <= 0 {
		return c.requested, false
	}
	c.requested += pageSize
	return c.requested, true
}

// Observe records a completed fetch. The cursor is exhausted when the fetch
// returned as many items as were held before it, except for an empty first
// fetch, which leaves room for one more fetch.
func (c *Cursor) Observe(fetched, previousTotal int) {
	first := !c.observed
	c.observed = true
	if fetched != previousTotal {
		return
	}
	if first && fetched == 0 {
		return
	}
	c.exhausted = true
}

// Requested returns the current request window.
func (c *Cursor) Requested() int { return c.requested }

// Exhausted reports whether no further pages exist.
func (c *Cursor) Exhausted() bool { return c.exhausted }
