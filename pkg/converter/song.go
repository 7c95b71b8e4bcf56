package converter

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/goccy/go-yaml"
	"golang.org/x/text/encoding"

	"github.com/james-see/midilib/pkg/smf"
)

// Event type shorthands on top of the smf kind names.
const (
	EventTempo         = "Tempo"
	EventTimeSignature = "TimeSignature"
	EventEndOfTrack    = "EndOfTrack"
)

// ParseSong decodes a YAML song document.
func ParseSong(data []byte) (*Song, error) {
	var song Song
	if err := yaml.UnmarshalWithOptions(data, &song, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("failed to parse song: %w", err)
	}
	return &song, nil
}

// MarshalSong encodes a song document as YAML.
func MarshalSong(song *Song) ([]byte, error) {
	return yaml.Marshal(song)
}

// Compose builds a MIDI file from a song. Tracks that do not end with an
// end-of-track event get one.
func Compose(song *Song, enc encoding.Encoding) (*smf.File, error) {
	f := smf.New()
	if song.PPQ > 0 {
		f.PPQ = song.PPQ
	}

	for i, doc := range song.Tracks {
		tr := smf.NewTrack()
		if doc.Name != "" {
			name, err := textMeta(smf.MetaTrackName, doc.Name, enc)
			if err != nil {
				return nil, fmt.Errorf("track %d: %w", i, err)
			}
			tr.AddMessage(name)
		}
		for j, ev := range doc.Events {
			m, err := ev.message(enc)
			if err != nil {
				return nil, fmt.Errorf("track %d event %d: %w", i, j, err)
			}
			tr.AddDeltaMessage(smf.Delta(ev.Delta), m)
		}
		if !endsWithEndOfTrack(tr) {
			tr.Close()
		}
		f.AddTrack(tr)
	}
	return f, nil
}

func endsWithEndOfTrack(tr *smf.Track) bool {
	if tr.Len() == 0 {
		return false
	}
	last, err := tr.At(tr.Len() - 1)
	if err != nil {
		return false
	}
	meta, ok := last.(smf.Meta)
	return ok && meta.IsEndOfTrack()
}

func textMeta(t smf.MetaType, text string, enc encoding.Encoding) (smf.Meta, error) {
	if enc == nil {
		return smf.NewTextMeta(t, text, nil)
	}
	return smf.NewTextMeta(t, text, enc.NewEncoder())
}

func (ev Event) channel() smf.Channel {
	if ev.Channel == nil {
		return smf.Channel{}
	}
	return smf.Ch(*ev.Channel)
}

func (ev Event) message(enc encoding.Encoding) (smf.Message, error) {
	if ev.Channel != nil && *ev.Channel > 15 {
		return nil, fmt.Errorf("channel %d out of range", *ev.Channel)
	}

	switch ev.Type {
	case EventTempo:
		return smf.NewTempo(ev.Tempo)
	case EventTimeSignature:
		return smf.NewTimeSignature(ev.Numerator, ev.Denominator)
	case EventEndOfTrack:
		return smf.EndOfTrack(), nil
	}

	kind, ok := smf.ParseKind(ev.Type)
	if !ok || kind == smf.KindDelta {
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}

	ch := ev.channel()
	switch kind {
	case smf.KindNoteOff:
		return smf.NoteOff{Channel: ch, Note: ev.Note, Velocity: ev.Velocity}, nil
	case smf.KindNoteOn:
		return smf.NoteOn{Channel: ch, Note: ev.Note, Velocity: ev.Velocity}, nil
	case smf.KindAfterTouch:
		return smf.AfterTouch{Channel: ch, Note: ev.Note, Touch: ev.Touch}, nil
	case smf.KindController:
		return smf.Controller{Channel: ch, Type: smf.ControllerType(ev.Controller), Value: ev.Value}, nil
	case smf.KindPatch:
		return smf.Patch{Channel: ch, Instrument: ev.Instrument}, nil
	case smf.KindPressure:
		return smf.Pressure{Channel: ch, Pressure: ev.Pressure}, nil
	case smf.KindPitchBend:
		if ev.Bend > 0x3FFF {
			return nil, fmt.Errorf("pitch bend %d out of range", ev.Bend)
		}
		return smf.PitchBend{Channel: ch, LSB: uint8(ev.Bend & 0x7F), MSB: uint8(ev.Bend >> 7)}, nil
	}

	// Meta
	t := smf.MetaType(ev.Meta)
	if ev.Text != "" {
		return textMeta(t, ev.Text, enc)
	}
	data := make([]byte, len(ev.Data))
	for i, b := range ev.Data {
		if b < 0 || b > 0xFF {
			return nil, fmt.Errorf("meta data byte %d out of range", b)
		}
		data[i] = byte(b)
	}
	return smf.NewMeta(t, data)
}

// Export turns a MIDI file into a song document. The result composes back
// into an identical file.
func Export(f *smf.File, enc encoding.Encoding) (*Song, error) {
	song := &Song{PPQ: f.PPQ, Tracks: make([]Track, 0, f.TrackCount())}

	for i, tr := range f.Tracks() {
		doc := Track{Events: []Event{}}
		var delta uint32
		for _, m := range tr.Messages() {
			if d, ok := m.(smf.Delta); ok {
				delta += uint32(d)
				continue
			}
			ev, err := eventOf(m, enc)
			if err != nil {
				return nil, fmt.Errorf("track %d: %w", i, err)
			}
			ev.Delta = delta
			delta = 0
			doc.Events = append(doc.Events, ev)
		}
		song.Tracks = append(song.Tracks, doc)
	}
	return song, nil
}

func channelOf(c smf.Channel) *uint8 {
	n, ok := c.Get()
	if !ok {
		return nil
	}
	return &n
}

func eventOf(m smf.Message, enc encoding.Encoding) (Event, error) {
	ev := Event{Type: m.Kind().String()}

	switch m := m.(type) {
	case smf.NoteOff:
		ev.Channel, ev.Note, ev.Velocity = channelOf(m.Channel), m.Note, m.Velocity
	case smf.NoteOn:
		ev.Channel, ev.Note, ev.Velocity = channelOf(m.Channel), m.Note, m.Velocity
	case smf.AfterTouch:
		ev.Channel, ev.Note, ev.Touch = channelOf(m.Channel), m.Note, m.Touch
	case smf.Controller:
		ev.Channel, ev.Controller, ev.Value = channelOf(m.Channel), uint8(m.Type), m.Value
	case smf.Patch:
		ev.Channel, ev.Instrument = channelOf(m.Channel), m.Instrument
	case smf.Pressure:
		ev.Channel, ev.Pressure = channelOf(m.Channel), m.Pressure
	case smf.PitchBend:
		if m.LSB > 0x7F || m.MSB > 0x7F {
			return ev, fmt.Errorf("pitch bend bytes %#02x %#02x are not 7-bit", m.LSB, m.MSB)
		}
		ev.Channel, ev.Bend = channelOf(m.Channel), m.Value()
	case smf.Meta:
		return metaEvent(m, enc)
	default:
		return ev, fmt.Errorf("cannot export %v", m)
	}
	return ev, nil
}

func metaEvent(m smf.Meta, enc encoding.Encoding) (Event, error) {
	// Shorthands only where the composed event is byte-identical; an
	// end-of-track with a payload or a zero tempo stays raw data.
	if m.IsEndOfTrack() && m.Len() == 0 {
		return Event{Type: EventEndOfTrack}, nil
	}
	if tempo, ok := m.Tempo(); ok && tempo != 0 {
		return Event{Type: EventTempo, Tempo: tempo}, nil
	}

	ev := Event{Type: smf.KindMeta.String(), Meta: uint8(m.Type)}
	data := m.Data()
	if m.Type.IsText() && len(data) > 0 {
		text, ok := decodeText(m, enc)
		if ok {
			ev.Text = text
			return ev, nil
		}
	}
	for _, b := range data {
		ev.Data = append(ev.Data, int(b))
	}
	return ev, nil
}

// decodeText returns the payload as text only when it survives a round trip
// through enc.
func decodeText(m smf.Meta, enc encoding.Encoding) (string, bool) {
	if enc == nil {
		text, _ := m.Text(nil)
		return text, printable(text)
	}
	text, err := m.Text(enc.NewDecoder())
	if err != nil || !printable(text) {
		return "", false
	}
	back, err := textMeta(m.Type, text, enc)
	if err != nil || string(back.Data()) != string(m.Data()) {
		return "", false
	}
	return text, true
}

func printable(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
