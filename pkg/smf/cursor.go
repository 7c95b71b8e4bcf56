package smf

// Cursor walks a track. Cursors are independent of each other; the track
// does not track them.
type Cursor struct {
	track *Track
	pos   int
}

// Pos returns the current position.
func (c *Cursor) Pos() int { return c.pos }

// Seek moves the cursor to pos. Positions outside the track are allowed and
// make Next and Previous fail.
func (c *Cursor) Seek(pos int) { c.pos = pos }

// Next returns the entry at the cursor and advances by one.
func (c *Cursor) Next() (Message, error) {
	m, err := c.track.At(c.pos)
	if err != nil {
		return nil, err
	}
	c.pos++
	return m, nil
}

// Previous returns the entry at the cursor and steps back by one.
func (c *Cursor) Previous() (Message, error) {
	m, err := c.track.At(c.pos)
	if err != nil {
		return nil, err
	}
	c.pos--
	return m, nil
}

func (c *Cursor) rest() []Message {
	start := c.pos
	if start < 0 {
		start = 0
	}
	if start >= len(c.track.messages) {
		return nil
	}
	return c.track.messages[start:]
}

// CheckRests reports whether a non-zero delta comes before the next NoteOn,
// scanning forward from the cursor.
func (c *Cursor) CheckRests() bool {
	for _, m := range c.rest() {
		switch m := m.(type) {
		case NoteOn:
			return false
		case Delta:
			if m > 0 {
				return true
			}
		}
	}
	return false
}

// Check reports whether an entry of kind k lies at or after the cursor.
func (c *Cursor) Check(k Kind) bool {
	for _, m := range c.rest() {
		if m.Kind() == k {
			return true
		}
	}
	return false
}

// CheckBefore is Check, but gives up at the first entry of kind stop.
func (c *Cursor) CheckBefore(k, stop Kind) bool {
	for _, m := range c.rest() {
		switch m.Kind() {
		case k:
			return true
		case stop:
			return false
		}
	}
	return false
}
