package smf

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/transform"
)

// MetaType is the type byte of a meta event.
type MetaType uint8

const (
	MetaSequenceNumber    MetaType = 0x00
	MetaText              MetaType = 0x01
	MetaCopyright         MetaType = 0x02
	MetaTrackName         MetaType = 0x03
	MetaInstrumentName    MetaType = 0x04
	MetaLyric             MetaType = 0x05
	MetaMarker            MetaType = 0x06
	MetaCuePoint          MetaType = 0x07
	MetaChannelPrefix     MetaType = 0x20
	MetaEndOfTrack        MetaType = 0x2F
	MetaTempo             MetaType = 0x51
	MetaSMPTEOffset       MetaType = 0x54
	MetaTimeSignature     MetaType = 0x58
	MetaKeySignature      MetaType = 0x59
	MetaSequencerSpecific MetaType = 0x7F
)

// MaxMetaLen is the largest meta payload this package reads or writes.
const MaxMetaLen = 255

var metaNames = map[MetaType]string{
	MetaSequenceNumber:    "SequenceNumber",
	MetaText:              "Text",
	MetaCopyright:         "Copyright",
	MetaTrackName:         "TrackName",
	MetaInstrumentName:    "InstrumentName",
	MetaLyric:             "Lyric",
	MetaMarker:            "Marker",
	MetaCuePoint:          "CuePoint",
	MetaChannelPrefix:     "ChannelPrefix",
	MetaEndOfTrack:        "EndOfTrack",
	MetaTempo:             "Tempo",
	MetaSMPTEOffset:       "SMPTEOffset",
	MetaTimeSignature:     "TimeSignature",
	MetaKeySignature:      "KeySignature",
	MetaSequencerSpecific: "SequencerSpecific",
}

func (t MetaType) String() string {
	if name, ok := metaNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown:%02x", uint8(t))
}

// IsText reports whether the payload of t is conventionally text.
func (t MetaType) IsText() bool {
	return t >= MetaText && t <= MetaCuePoint
}

// Meta is a meta event: a type byte and a payload of at most MaxMetaLen
// bytes. Build one with NewMeta or one of the typed constructors.
type Meta struct {
	Type MetaType
	data []byte
}

// NewMeta returns a meta event carrying a copy of data.
func NewMeta(t MetaType, data []byte) (Meta, error) {
	if len(data) > MaxMetaLen {
		return Meta{}, errors.Wrapf(ErrValidation, "meta %v payload is %d bytes, max %d", t, len(data), MaxMetaLen)
	}
	m := Meta{Type: t}
	if len(data) > 0 {
		m.data = append([]byte(nil), data...)
	}
	return m, nil
}

// NewTextMeta returns a text-style meta event. When enc is non-nil the text
// is run through it first, e.g. to store UTF-16 or a legacy code page.
func NewTextMeta(t MetaType, text string, enc transform.Transformer) (Meta, error) {
	data := []byte(text)
	if enc != nil {
		var err error
		if data, _, err = transform.Bytes(enc, data); err != nil {
			return Meta{}, errors.Wrapf(ErrValidation, "encoding %v text: %v", t, err)
		}
	}
	return NewMeta(t, data)
}

// NewTempo returns a set-tempo event in microseconds per quarter note.
func NewTempo(microsPerQuarter uint32) (Meta, error) {
	if microsPerQuarter == 0 || microsPerQuarter > 0xFFFFFF {
		return Meta{}, errors.Wrapf(ErrValidation, "tempo %d out of range", microsPerQuarter)
	}
	return Meta{Type: MetaTempo, data: []byte{
		byte(microsPerQuarter >> 16),
		byte(microsPerQuarter >> 8),
		byte(microsPerQuarter),
	}}, nil
}

// NewTimeSignature returns a time-signature event. The denominator must be a
// power of two.
func NewTimeSignature(numerator, denominator uint8) (Meta, error) {
	if numerator == 0 || denominator == 0 || denominator&(denominator-1) != 0 {
		return Meta{}, errors.Wrapf(ErrValidation, "time signature %d/%d", numerator, denominator)
	}
	var pow uint8
	for d := denominator; d > 1; d >>= 1 {
		pow++
	}
	return Meta{Type: MetaTimeSignature, data: []byte{numerator, pow, 0x18, 0x08}}, nil
}

// EndOfTrack returns the event every serialized track ends with.
func EndOfTrack() Meta {
	return Meta{Type: MetaEndOfTrack}
}

func (m Meta) Kind() Kind { return KindMeta }

// Data returns a copy of the payload.
func (m Meta) Data() []byte {
	if m.data == nil {
		return nil
	}
	return append([]byte(nil), m.data...)
}

// Len returns the payload length.
func (m Meta) Len() int { return len(m.data) }

// IsEndOfTrack reports whether m is the end-of-track event.
func (m Meta) IsEndOfTrack() bool { return m.Type == MetaEndOfTrack }

// Tempo returns the microseconds per quarter note of a set-tempo event.
func (m Meta) Tempo() (uint32, bool) {
	if m.Type != MetaTempo || len(m.data) != 3 {
		return 0, false
	}
	return uint32(m.data[0])<<16 | uint32(m.data[1])<<8 | uint32(m.data[2]), true
}

// Text decodes the payload as text, through dec when it is non-nil.
func (m Meta) Text(dec transform.Transformer) (string, error) {
	if dec == nil {
		return string(m.data), nil
	}
	out, _, err := transform.Bytes(dec, m.data)
	if err != nil {
		return "", errors.Wrapf(ErrFormat, "decoding %v text: %v", m.Type, err)
	}
	return string(out), nil
}

func (m Meta) String() string {
	if m.Type.IsText() {
		return fmt.Sprintf("Meta %v %q", m.Type, string(m.data))
	}
	if tempo, ok := m.Tempo(); ok {
		return fmt.Sprintf("Meta %v %dus/qn", m.Type, tempo)
	}
	return strings.TrimSpace(fmt.Sprintf("Meta %v % 02x", m.Type, m.data))
}

// appendTo writes status, type, a one-byte length and the payload.
func (m Meta) appendTo(dst []byte, fallback uint8) ([]byte, error) {
	if len(m.data) > MaxMetaLen {
		return dst, errors.Wrapf(ErrValidation, "meta %v payload is %d bytes", m.Type, len(m.data))
	}
	out := append(dst, byte(KindMeta)|fallback&0x0F, byte(m.Type), byte(len(m.data)))
	return append(out, m.data...), nil
}

func readMeta(r *Reader) (Message, error) {
	t, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrapf(ErrFormat, "reading meta type: %v", err)
	}
	n, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrapf(ErrFormat, "reading meta %v length: %v", MetaType(t), err)
	}
	data, err := readData(r, int(n), KindMeta)
	if err != nil {
		return nil, err
	}
	return NewMeta(MetaType(t), data)
}
