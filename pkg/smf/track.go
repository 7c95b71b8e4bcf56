package smf

import (
	"github.com/pkg/errors"

	"github.com/james-see/midilib/pkg/vlv"
)

var trackMagic = [4]byte{'M', 'T', 'r', 'k'}

// Track is an ordered sequence of delta times and events. Every event is
// preceded by exactly one Delta and no two Deltas are adjacent.
type Track struct {
	messages []Message
}

// NewTrack returns an empty track.
func NewTrack() *Track {
	return &Track{}
}

func (t *Track) last() Message {
	if len(t.messages) == 0 {
		return nil
	}
	return t.messages[len(t.messages)-1]
}

// AddMessage appends m, inserting a zero delta first unless the track already
// ends with one. A Delta passed here is handled as AddDelta.
func (t *Track) AddMessage(m Message) {
	if d, ok := m.(Delta); ok {
		t.AddDelta(d)
		return
	}
	if last := t.last(); last == nil || last.Kind() != KindDelta {
		t.messages = append(t.messages, Delta(0))
	}
	t.messages = append(t.messages, m)
}

// AddDelta appends d, or adds it to the delta the track already ends with.
func (t *Track) AddDelta(d Delta) {
	if last, ok := t.last().(Delta); ok {
		last.Add(d)
		t.messages[len(t.messages)-1] = last
		return
	}
	t.messages = append(t.messages, d)
}

// AddDeltaMessage appends m d ticks after whatever precedes it.
func (t *Track) AddDeltaMessage(d Delta, m Message) {
	t.AddDelta(d)
	t.AddMessage(m)
}

// Close appends an end-of-track event.
func (t *Track) Close() {
	t.AddMessage(EndOfTrack())
}

// Len returns the number of entries, deltas included.
func (t *Track) Len() int { return len(t.messages) }

// At returns entry i.
func (t *Track) At(i int) (Message, error) {
	if i < 0 || i >= len(t.messages) {
		return nil, outOfRange(i, len(t.messages))
	}
	return t.messages[i], nil
}

// Messages returns a copy of the sequence.
func (t *Track) Messages() []Message {
	return append([]Message(nil), t.messages...)
}

// Cursor returns a new cursor at the start of the track.
func (t *Track) Cursor() *Cursor {
	return &Cursor{track: t}
}

// CheckNonMetaMessages reports whether the track holds any channel event.
func (t *Track) CheckNonMetaMessages() bool {
	for _, m := range t.messages {
		if k := m.Kind(); k != KindMeta && k != KindDelta {
			return true
		}
	}
	return false
}

// Ticks returns the sum of all deltas.
func (t *Track) Ticks() uint64 {
	var n uint64
	for _, m := range t.messages {
		if d, ok := m.(Delta); ok {
			n += uint64(d)
		}
	}
	return n
}

// validate checks what writeTo needs before any byte goes out.
func (t *Track) validate() error {
	last := t.last()
	if last == nil || last.Kind() != KindMeta {
		return errors.Wrapf(ErrValidation, "track not terminated: last entry is %v", last)
	}
	for i, m := range t.messages {
		if d, ok := m.(Delta); ok && d > vlv.MaxValue {
			return errors.Wrapf(ErrValidation, "entry %d: delta %d exceeds %d", i, uint32(d), vlv.MaxValue)
		}
	}
	return nil
}

// writeTo writes the track as an MTrk chunk. The length is written as a
// placeholder and patched once the payload size is known.
func (t *Track) writeTo(w *Writer, fallback uint8) error {
	if err := t.validate(); err != nil {
		return err
	}
	if _, err := w.Write(trackMagic[:]); err != nil {
		return err
	}
	if err := w.WriteUint32(0); err != nil {
		return err
	}
	start, err := w.Pos()
	if err != nil {
		return err
	}

	var buf []byte
	for _, m := range t.messages {
		ch := fallback
		if m.Kind() == KindMeta {
			ch = 0x0F
		}
		if buf, err = m.appendTo(buf[:0], ch); err != nil {
			return err
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}

	end, err := w.Pos()
	if err != nil {
		return err
	}
	if err := w.SeekTo(start - 4); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(end - start)); err != nil {
		return err
	}
	return w.SeekTo(end)
}

func readTrack(r *Reader) (*Track, error) {
	magic, err := r.ReadBytes(4)
	if err != nil {
		return nil, errors.Wrapf(ErrFormat, "reading track magic: %v", err)
	}
	if [4]byte(magic) != trackMagic {
		return nil, errors.Wrapf(ErrFormat, "expected %q, got %q", trackMagic[:], magic)
	}
	length, err := r.ReadUint32()
	if err != nil {
		return nil, errors.Wrapf(ErrFormat, "reading track length: %v", err)
	}

	t := NewTrack()
	end := r.Pos() + int64(length)
	for r.Pos() < end {
		offset := r.Pos()
		d, err := vlv.Read(r)
		if err != nil {
			return nil, errors.Wrapf(ErrFormat, "delta at offset %d: %v", offset, err)
		}
		status, err := r.ReadByte()
		if err != nil {
			return nil, errors.Wrapf(ErrFormat, "status at offset %d: %v", r.Pos(), err)
		}
		m, err := readMessage(r, status)
		if err != nil {
			return nil, errors.WithMessagef(err, "event at offset %d", offset)
		}
		t.messages = append(t.messages, Delta(d), m)
	}
	if r.Pos() != end {
		return nil, errors.Wrapf(ErrFormat, "last event ends at offset %d, chunk ends at %d", r.Pos(), end)
	}
	return t, nil
}
