package converter

import (
	"bytes"
	"errors"
	"fmt"

	gosmf "gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/midilib/pkg/smf"
	"github.com/james-see/midilib/pkg/vlv"
)

// ToSMF copies a validated file into a gomidi SMF. Channel events without an
// explicit channel get the track index channel, as smf.File.Write does.
func ToSMF(f *smf.File) (*gosmf.SMF, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	s := gosmf.New()
	s.TimeFormat = gosmf.MetricTicks(uint16(f.PPQ))

	for i, tr := range f.Tracks() {
		var track gosmf.Track
		var delta uint32
		for _, m := range tr.Messages() {
			if d, ok := m.(smf.Delta); ok {
				delta += uint32(d)
				continue
			}
			if meta, ok := m.(smf.Meta); ok && meta.IsEndOfTrack() {
				continue
			}
			b, err := gomidiMessage(m, uint8(i)&0x0F)
			if err != nil {
				return nil, fmt.Errorf("track %d: %w", i, err)
			}
			track.Add(delta, b)
			delta = 0
		}
		track.Close(delta)
		if err := s.Add(track); err != nil {
			return nil, fmt.Errorf("failed to add track %d: %w", i, err)
		}
	}
	return s, nil
}

// FromSMF copies a gomidi SMF into the smf model. With skipUnsupported set,
// events the model cannot hold are dropped and their delta carried over to
// the next event; the number dropped is returned.
func FromSMF(s *gosmf.SMF, skipUnsupported bool) (*smf.File, int, error) {
	mt, ok := s.TimeFormat.(gosmf.MetricTicks)
	if !ok {
		return nil, 0, fmt.Errorf("unsupported time format %v", s.TimeFormat)
	}

	f := smf.New()
	f.PPQ = int16(mt.Resolution())

	var dropped int
	for i, track := range s.Tracks {
		tr := smf.NewTrack()
		var carry uint32
		for _, ev := range track {
			m, err := fromGomidiMessage(ev.Message)
			if err != nil {
				if skipUnsupported && errors.Is(err, smf.ErrUnsupportedMessage) {
					carry += ev.Delta
					dropped++
					continue
				}
				return nil, dropped, fmt.Errorf("track %d: %w", i, err)
			}
			tr.AddDeltaMessage(smf.Delta(carry+ev.Delta), m)
			carry = 0
		}
		if !endsWithEndOfTrack(tr) {
			if carry > 0 {
				tr.AddDelta(smf.Delta(carry))
			}
			tr.Close()
		}
		f.AddTrack(tr)
	}
	return f, dropped, nil
}

// ReadLenient parses data with gomidi and converts the result, dropping what
// the smf model cannot hold.
func ReadLenient(data []byte) (*smf.File, int, error) {
	s, err := gosmf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse MIDI: %w", err)
	}
	return FromSMF(s, true)
}

// WriteSMF serializes f through gomidi.
func WriteSMF(f *smf.File) ([]byte, error) {
	s, err := ToSMF(f)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

// gomidi frames meta events with a variable-length payload size, where the
// smf codec uses a single length byte.
func gomidiMessage(m smf.Message, fallback uint8) ([]byte, error) {
	meta, ok := m.(smf.Meta)
	if !ok {
		return smf.Encode(m, fallback)
	}
	b := []byte{smf.StatusMeta, byte(meta.Type)}
	b, err := vlv.Append(b, uint32(meta.Len()))
	if err != nil {
		return nil, err
	}
	return append(b, meta.Data()...), nil
}

func fromGomidiMessage(b []byte) (smf.Message, error) {
	if len(b) < 2 || b[0] != smf.StatusMeta {
		m, _, err := smf.DecodeMessage(b)
		return m, err
	}
	n, used, err := vlv.Decode(b[2:])
	if err != nil {
		return nil, fmt.Errorf("meta length: %v: %w", err, smf.ErrFormat)
	}
	data := b[2+used:]
	if int(n) != len(data) {
		return nil, fmt.Errorf("meta length %d, %d bytes present: %w", n, len(data), smf.ErrFormat)
	}
	if n > smf.MaxMetaLen {
		return nil, fmt.Errorf("meta %v payload is %d bytes, max %d: %w", smf.MetaType(b[1]), n, smf.MaxMetaLen, smf.ErrUnsupportedMessage)
	}
	return smf.NewMeta(smf.MetaType(b[1]), data)
}
