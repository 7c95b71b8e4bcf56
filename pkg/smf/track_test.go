package smf

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertNoAdjacentDeltas(t *testing.T, tr *Track) {
	t.Helper()
	msgs := tr.Messages()
	for i := 1; i < len(msgs); i++ {
		if msgs[i-1].Kind() == KindDelta && msgs[i].Kind() == KindDelta {
			t.Fatalf("adjacent deltas at %d and %d: %v", i-1, i, msgs)
		}
	}
	for i, m := range msgs {
		if m.Kind() != KindDelta && (i == 0 || msgs[i-1].Kind() != KindDelta) {
			t.Fatalf("event at %d is not preceded by a delta: %v", i, msgs)
		}
	}
}

func TestAddMessageInsertsDelta(t *testing.T) {
	tr := NewTrack()
	tr.AddMessage(NoteOn{Note: 60, Velocity: 100})
	tr.AddMessage(NoteOff{Note: 60})

	assert.Equal(t, []Message{
		Delta(0), NoteOn{Note: 60, Velocity: 100},
		Delta(0), NoteOff{Note: 60},
	}, tr.Messages())
}

func TestAddDeltaMerges(t *testing.T) {
	tr := NewTrack()
	tr.AddDelta(10)
	tr.AddDelta(5)
	tr.AddMessage(Patch{Instrument: 1})
	tr.AddDeltaMessage(100, NoteOn{Note: 1, Velocity: 1})
	tr.AddDelta(20)
	tr.AddDeltaMessage(30, NoteOff{Note: 1})
	tr.AddMessage(Delta(7))

	assert.Equal(t, []Message{
		Delta(15), Patch{Instrument: 1},
		Delta(100), NoteOn{Note: 1, Velocity: 1},
		Delta(50), NoteOff{Note: 1},
		Delta(7),
	}, tr.Messages())
	assert.Equal(t, uint64(172), tr.Ticks())
}

func TestNoAdjacentDeltas(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 50; run++ {
		tr := NewTrack()
		for i := 0; i < 100; i++ {
			switch rng.Intn(3) {
			case 0:
				tr.AddMessage(NoteOn{Note: uint8(rng.Intn(128)), Velocity: 64})
			case 1:
				tr.AddDelta(Delta(rng.Intn(1000)))
			default:
				tr.AddDeltaMessage(Delta(rng.Intn(1000)), NoteOff{Note: uint8(rng.Intn(128))})
			}
		}
		assertNoAdjacentDeltas(t, tr)
	}
}

func TestCursorNextPrevious(t *testing.T) {
	tr := NewTrack()
	tr.AddMessage(Patch{Instrument: 3})
	tr.Close()
	require.Equal(t, 4, tr.Len())

	c := tr.Cursor()
	var got []Message
	for i := 0; i < tr.Len(); i++ {
		m, err := c.Next()
		require.NoError(t, err)
		got = append(got, m)
	}
	assert.Equal(t, tr.Messages(), got)

	_, err := c.Next()
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, 4, c.Pos(), "a failed Next does not move the cursor")

	c.Seek(3)
	m, err := c.Previous()
	require.NoError(t, err)
	assert.Equal(t, EndOfTrack(), m)
	assert.Equal(t, 2, c.Pos())

	c.Seek(0)
	_, err = c.Previous()
	require.NoError(t, err)
	_, err = c.Previous()
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestCursorsAreIndependent(t *testing.T) {
	tr := NewTrack()
	tr.AddMessage(NoteOn{Note: 1, Velocity: 1})
	tr.Close()

	a, b := tr.Cursor(), tr.Cursor()
	_, err := a.Next()
	require.NoError(t, err)
	_, err = a.Next()
	require.NoError(t, err)

	m, err := b.Next()
	require.NoError(t, err)
	assert.Equal(t, Delta(0), m)
	assert.Equal(t, 2, a.Pos())
	assert.Equal(t, 1, b.Pos())
}

func TestAt(t *testing.T) {
	tr := NewTrack()
	_, err := tr.At(0)
	assert.ErrorIs(t, err, ErrOutOfRange)

	tr.Close()
	m, err := tr.At(1)
	require.NoError(t, err)
	assert.Equal(t, KindMeta, m.Kind())
	_, err = tr.At(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestCheckNonMetaMessages(t *testing.T) {
	tr := NewTrack()
	tr.AddDelta(10)
	tr.AddMessage(mustMeta(t, MetaTrackName, []byte("conductor")))
	tr.Close()
	assert.False(t, tr.CheckNonMetaMessages())

	c := tr.Cursor()
	c.Seek(tr.Len())
	tr.AddMessage(Controller{Type: Volume, Value: 1})
	assert.True(t, tr.CheckNonMetaMessages(), "scan ignores the cursor")
}

func TestCheckRests(t *testing.T) {
	on := NoteOn{Note: 60, Velocity: 100}
	off := NoteOff{Note: 60}

	tests := []struct {
		name  string
		build func(*Track)
		pos   int
		want  bool
	}{
		{"note first", func(tr *Track) { tr.AddMessage(on) }, 0, false},
		{"rest before note", func(tr *Track) {
			tr.AddMessage(on)
			tr.AddDeltaMessage(96, off)
			tr.AddDeltaMessage(48, on)
		}, 2, true},
		{"zero deltas only", func(tr *Track) {
			tr.AddMessage(off)
			tr.AddMessage(on)
		}, 0, false},
		{"no note on, trailing rest", func(tr *Track) {
			tr.AddMessage(off)
			tr.AddDeltaMessage(10, EndOfTrack())
		}, 0, true},
		{"nothing ahead", func(tr *Track) { tr.Close() }, 2, false},
		{"empty", func(*Track) {}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTrack()
			tt.build(tr)
			c := tr.Cursor()
			c.Seek(tt.pos)
			assert.Equal(t, tt.want, c.CheckRests())
		})
	}
}

func TestCheck(t *testing.T) {
	tr := NewTrack()
	tr.AddMessage(Patch{Instrument: 1})
	tr.AddMessage(NoteOn{Note: 1, Velocity: 1})
	tr.AddDeltaMessage(10, NoteOff{Note: 1})
	tr.Close()

	c := tr.Cursor()
	assert.True(t, c.Check(KindNoteOff))
	assert.False(t, c.Check(KindPitchBend))
	assert.True(t, c.CheckBefore(KindNoteOn, KindNoteOff))
	assert.False(t, c.CheckBefore(KindNoteOff, KindNoteOn))

	c.Seek(4)
	assert.False(t, c.Check(KindNoteOn))
	assert.False(t, c.Check(KindPatch))
	assert.True(t, c.CheckBefore(KindMeta, KindPatch))

	c.Seek(100)
	assert.False(t, c.Check(KindMeta))
}

func TestWriteRequiresTerminalMeta(t *testing.T) {
	tests := []struct {
		name  string
		build func(*Track)
	}{
		{"empty", func(*Track) {}},
		{"ends with note", func(tr *Track) { tr.AddMessage(NoteOn{Note: 1, Velocity: 1}) }},
		{"ends with delta", func(tr *Track) {
			tr.Close()
			tr.AddDelta(10)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTrack()
			tt.build(tr)

			var buf seekBuffer
			err := tr.writeTo(NewWriter(&buf), 0)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, buf.Bytes(), "nothing is written for an invalid track")
		})
	}
}

func TestWriteRejectsOversizedDelta(t *testing.T) {
	tr := NewTrack()
	tr.AddDeltaMessage(1<<28, EndOfTrack())

	var buf seekBuffer
	err := tr.writeTo(NewWriter(&buf), 0)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, buf.Bytes())
}

func TestTrackChunkRoundTrip(t *testing.T) {
	tr := NewTrack()
	tr.AddMessage(Controller{Type: Bank, Value: 0})
	tr.AddMessage(Patch{Instrument: 24})
	tr.AddDeltaMessage(0x4000, NoteOn{Channel: Ch(9), Note: 36, Velocity: 127})
	tr.AddDeltaMessage(120, NoteOff{Channel: Ch(9), Note: 36})
	tr.AddMessage(PitchBend{LSB: 0, MSB: 0x40})
	tr.Close()

	var buf seekBuffer
	require.NoError(t, tr.writeTo(NewWriter(&buf), 3))

	data := buf.Bytes()
	assert.Equal(t, []byte("MTrk"), data[:4])
	assert.Equal(t, []byte{0, 0, 0, byte(len(data) - 8)}, data[4:8])

	got, err := readTrack(NewReader(bytes.NewReader(data)))
	require.NoError(t, err)
	assert.Equal(t, []Message{
		Delta(0), Controller{Channel: Ch(3), Type: Bank, Value: 0},
		Delta(0), Patch{Channel: Ch(3), Instrument: 24},
		Delta(0x4000), NoteOn{Channel: Ch(9), Note: 36, Velocity: 127},
		Delta(120), NoteOff{Channel: Ch(9), Note: 36},
		Delta(0), PitchBend{Channel: Ch(3), LSB: 0, MSB: 0x40},
		Delta(0), EndOfTrack(),
	}, got.Messages())
}

func TestReadTrackErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"bad magic", "MTrx\x00\x00\x00\x04\x00\xff\x2f\x00", ErrFormat},
		{"short magic", "MTr", ErrFormat},
		{"short length", "MTrk\x00\x00", ErrFormat},
		{"truncated event", "MTrk\x00\x00\x00\x03\x00\x90\x3c", ErrFormat},
		{"event past chunk end", "MTrk\x00\x00\x00\x03\x00\x90\x3c\x7f\x00\xff\x2f\x00", ErrFormat},
		{"running status", "MTrk\x00\x00\x00\x07\x00\x90\x3c\x7f\x00\x3c\x00", ErrUnsupportedMessage},
		{"sysex", "MTrk\x00\x00\x00\x05\x00\xf0\x01\xf7\x00", ErrUnsupportedMessage},
		{"delta overflow", "MTrk\x00\x00\x00\x08\xff\xff\xff\xff\x7f\xff\x2f\x00", ErrFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readTrack(NewReader(bytes.NewReader([]byte(tt.data))))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReadTrackEmptyChunk(t *testing.T) {
	tr, err := readTrack(NewReader(bytes.NewReader([]byte("MTrk\x00\x00\x00\x00"))))
	require.NoError(t, err)
	assert.Equal(t, 0, tr.Len())
}
