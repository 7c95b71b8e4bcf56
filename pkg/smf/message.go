package smf

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"

	"github.com/james-see/midilib/pkg/vlv"
)

// Kind identifies a message variant. For events it is the high nibble of the
// status byte; delta times use KindDelta.
type Kind byte

const (
	KindDelta      Kind = 0x00
	KindNoteOff    Kind = 0x80
	KindNoteOn     Kind = 0x90
	KindAfterTouch Kind = 0xA0
	KindController Kind = 0xB0
	KindPatch      Kind = 0xC0
	KindPressure   Kind = 0xD0
	KindPitchBend  Kind = 0xE0
	KindMeta       Kind = 0xF0
)

// StatusMeta is the status byte of every meta event.
const StatusMeta = 0xFF

var kindNames = map[Kind]string{
	KindDelta:      "Delta",
	KindNoteOff:    "NoteOff",
	KindNoteOn:     "NoteOn",
	KindAfterTouch: "AfterTouch",
	KindController: "Controller",
	KindPatch:      "Patch",
	KindPressure:   "Pressure",
	KindPitchBend:  "PitchBend",
	KindMeta:       "Meta",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%#02x)", byte(k))
}

// ParseKind looks a kind up by the name Kind.String returns for it.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Channel is an optional MIDI channel. The zero value is unset, which means
// the event takes the fallback channel of the track it is written with.
type Channel struct {
	n   uint8
	set bool
}

// Ch returns an explicit channel. Only the low four bits of n are kept.
func Ch(n uint8) Channel {
	return Channel{n: n & 0x0F, set: true}
}

// Get returns the channel number and whether it is set.
func (c Channel) Get() (uint8, bool) { return c.n, c.set }

// IsSet reports whether the channel was given explicitly.
func (c Channel) IsSet() bool { return c.set }

func (c Channel) resolve(fallback uint8) uint8 {
	if c.set {
		return c.n
	}
	return fallback & 0x0F
}

func (c Channel) String() string {
	if !c.set {
		return "-"
	}
	return fmt.Sprintf("%d", c.n)
}

// Message is one entry of a track: a delta time or an event. The set of
// implementations is closed; switch on the concrete type to consume one.
type Message interface {
	fmt.Stringer
	Kind() Kind
	appendTo(dst []byte, fallback uint8) ([]byte, error)
}

// Delta is the time in ticks between the previous event and the next one.
type Delta uint32

// Add accumulates n into d.
func (d *Delta) Add(n Delta) { *d += n }

func (d Delta) Kind() Kind { return KindDelta }
func (d Delta) String() string { return fmt.Sprintf("Delta %d", uint32(d)) }

func (d Delta) appendTo(dst []byte, _ uint8) ([]byte, error) {
	out, err := vlv.Append(dst, uint32(d))
	if err != nil {
		return dst, errors.Wrapf(ErrValidation, "delta %d: %v", uint32(d), err)
	}
	return out, nil
}

type NoteOff struct {
	Channel  Channel
	Note     uint8
	Velocity uint8
}

func (m NoteOff) Kind() Kind { return KindNoteOff }

func (m NoteOff) String() string {
	return fmt.Sprintf("NoteOff ch=%v note=%d vel=%d", m.Channel, m.Note, m.Velocity)
}

func (m NoteOff) appendTo(dst []byte, fallback uint8) ([]byte, error) {
	return append(dst, byte(KindNoteOff)|m.Channel.resolve(fallback), m.Note, m.Velocity), nil
}

type NoteOn struct {
	Channel  Channel
	Note     uint8
	Velocity uint8
}

func (m NoteOn) Kind() Kind { return KindNoteOn }

func (m NoteOn) String() string {
	return fmt.Sprintf("NoteOn ch=%v note=%d vel=%d", m.Channel, m.Note, m.Velocity)
}

func (m NoteOn) appendTo(dst []byte, fallback uint8) ([]byte, error) {
	return append(dst, byte(KindNoteOn)|m.Channel.resolve(fallback), m.Note, m.Velocity), nil
}

// AfterTouch is polyphonic key pressure.
type AfterTouch struct {
	Channel Channel
	Note    uint8
	Touch   uint8
}

func (m AfterTouch) Kind() Kind { return KindAfterTouch }

func (m AfterTouch) String() string {
	return fmt.Sprintf("AfterTouch ch=%v note=%d touch=%d", m.Channel, m.Note, m.Touch)
}

func (m AfterTouch) appendTo(dst []byte, fallback uint8) ([]byte, error) {
	return append(dst, byte(KindAfterTouch)|m.Channel.resolve(fallback), m.Note, m.Touch), nil
}

// ControllerType is the controller number of a control change.
type ControllerType uint8

const (
	Bank        ControllerType = 0x00
	Modulation  ControllerType = 0x01
	Breath      ControllerType = 0x02
	Foot        ControllerType = 0x04
	Portamento  ControllerType = 0x05
	Volume      ControllerType = 0x07
	Balance     ControllerType = 0x08
	Pan         ControllerType = 0x0A
	Expression  ControllerType = 0x0B
	Sustain     ControllerType = 0x40
	AllNotesOff ControllerType = 0x7B
)

type Controller struct {
	Channel Channel
	Type    ControllerType
	Value   uint8
}

func (m Controller) Kind() Kind { return KindController }

func (m Controller) String() string {
	return fmt.Sprintf("Controller ch=%v type=%#02x value=%d", m.Channel, uint8(m.Type), m.Value)
}

func (m Controller) appendTo(dst []byte, fallback uint8) ([]byte, error) {
	return append(dst, byte(KindController)|m.Channel.resolve(fallback), byte(m.Type), m.Value), nil
}

// Patch is a program change.
type Patch struct {
	Channel    Channel
	Instrument uint8
}

func (m Patch) Kind() Kind { return KindPatch }

func (m Patch) String() string {
	return fmt.Sprintf("Patch ch=%v instrument=%d", m.Channel, m.Instrument)
}

func (m Patch) appendTo(dst []byte, fallback uint8) ([]byte, error) {
	return append(dst, byte(KindPatch)|m.Channel.resolve(fallback), m.Instrument), nil
}

// Pressure is channel pressure.
type Pressure struct {
	Channel  Channel
	Pressure uint8
}

func (m Pressure) Kind() Kind { return KindPressure }

func (m Pressure) String() string {
	return fmt.Sprintf("Pressure ch=%v pressure=%d", m.Channel, m.Pressure)
}

func (m Pressure) appendTo(dst []byte, fallback uint8) ([]byte, error) {
	return append(dst, byte(KindPressure)|m.Channel.resolve(fallback), m.Pressure), nil
}

type PitchBend struct {
	Channel Channel
	LSB     uint8
	MSB     uint8
}

func (m PitchBend) Kind() Kind { return KindPitchBend }

// Value returns the 14-bit bend amount, 0x2000 being centre.
func (m PitchBend) Value() uint16 {
	return uint16(m.MSB&0x7F)<<7 | uint16(m.LSB&0x7F)
}

func (m PitchBend) String() string {
	return fmt.Sprintf("PitchBend ch=%v value=%d", m.Channel, m.Value())
}

func (m PitchBend) appendTo(dst []byte, fallback uint8) ([]byte, error) {
	return append(dst, byte(KindPitchBend)|m.Channel.resolve(fallback), m.LSB, m.MSB), nil
}

// Encode returns the wire form of m. Channel events without an explicit
// channel use fallback; meta events are encoded with fallback 0x0F by track
// serialization, which yields their 0xFF status.
func Encode(m Message, fallback uint8) ([]byte, error) {
	return m.appendTo(nil, fallback)
}

// DecodeMessage parses one event, status byte first, from b. It reports the
// number of bytes used.
func DecodeMessage(b []byte) (Message, int, error) {
	r := NewReader(bytes.NewReader(b))
	status, err := r.ReadByte()
	if err != nil {
		return nil, 0, errors.Wrap(ErrFormat, "empty message")
	}
	m, err := readMessage(r, status)
	if err != nil {
		return nil, int(r.Pos()), err
	}
	return m, int(r.Pos()), nil
}

func readData(r *Reader, n int, kind Kind) ([]byte, error) {
	b, err := r.ReadBytes(n)
	if err != nil {
		return nil, errors.Wrapf(ErrFormat, "reading %v data: %v", kind, err)
	}
	return b, nil
}

// readMessage decodes the event whose status byte has just been consumed.
func readMessage(r *Reader, status byte) (Message, error) {
	if status < 0x80 {
		return nil, errors.Wrapf(ErrUnsupportedMessage, "data byte %#02x in status position (running status is not supported)", status)
	}

	ch := Ch(status & 0x0F)
	kind := Kind(status & 0xF0)

	switch kind {
	case KindNoteOff, KindNoteOn, KindAfterTouch, KindController, KindPitchBend:
		b, err := readData(r, 2, kind)
		if err != nil {
			return nil, err
		}
		switch kind {
		case KindNoteOff:
			return NoteOff{Channel: ch, Note: b[0], Velocity: b[1]}, nil
		case KindNoteOn:
			return NoteOn{Channel: ch, Note: b[0], Velocity: b[1]}, nil
		case KindAfterTouch:
			return AfterTouch{Channel: ch, Note: b[0], Touch: b[1]}, nil
		case KindController:
			return Controller{Channel: ch, Type: ControllerType(b[0]), Value: b[1]}, nil
		default:
			return PitchBend{Channel: ch, LSB: b[0], MSB: b[1]}, nil
		}

	case KindPatch, KindPressure:
		b, err := readData(r, 1, kind)
		if err != nil {
			return nil, err
		}
		if kind == KindPatch {
			return Patch{Channel: ch, Instrument: b[0]}, nil
		}
		return Pressure{Channel: ch, Pressure: b[0]}, nil

	case KindMeta:
		if status != StatusMeta {
			return nil, errors.Wrapf(ErrUnsupportedMessage, "status %#02x (system exclusive and system messages are not supported)", status)
		}
		return readMeta(r)
	}

	return nil, errors.Wrapf(ErrUnsupportedMessage, "status %#02x", status)
}

// Param returns parameter i of m in declaration order, or nil if m has no
// such parameter. Meta parameters are type, length and data.
func Param(m Message, i int) any {
	var params []any
	switch m := m.(type) {
	case Delta:
		params = []any{uint32(m)}
	case NoteOff:
		params = []any{m.Note, m.Velocity}
	case NoteOn:
		params = []any{m.Note, m.Velocity}
	case AfterTouch:
		params = []any{m.Note, m.Touch}
	case Controller:
		params = []any{m.Type, m.Value}
	case Patch:
		params = []any{m.Instrument}
	case Pressure:
		params = []any{m.Pressure}
	case PitchBend:
		params = []any{m.LSB, m.MSB}
	case Meta:
		params = []any{m.Type, uint8(m.Len()), m.Data()}
	}
	if i < 0 || i >= len(params) {
		return nil
	}
	return params[i]
}

// ParamInt is Param coerced to int. Missing and non-numeric parameters are 0.
func ParamInt(m Message, i int) int {
	switch v := Param(m, i).(type) {
	case uint8:
		return int(v)
	case uint32:
		return int(v)
	case ControllerType:
		return int(v)
	case MetaType:
		return int(v)
	}
	return 0
}
