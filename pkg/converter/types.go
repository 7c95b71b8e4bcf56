// Package converter moves MIDI files between the strict smf codec, gomidi and
// YAML song documents.
package converter

// Song is the YAML form of a MIDI file.
type Song struct {
	PPQ    int16   `yaml:"ppq"`
	Tracks []Track `yaml:"tracks"`
}

// Track is one track of a Song. A non-empty Name is written as a track name
// meta event ahead of the events.
type Track struct {
	Name   string  `yaml:"name,omitempty"`
	Events []Event `yaml:"events"`
}

// Event is one timed event. Type is a message kind name (NoteOn, Controller,
// Meta, ...) or one of the shorthands Tempo, TimeSignature and EndOfTrack.
// Only the fields the type uses are read.
type Event struct {
	Delta   uint32 `yaml:"delta,omitempty"`
	Type    string `yaml:"type"`
	Channel *uint8 `yaml:"channel,omitempty"`

	Note       uint8  `yaml:"note,omitempty"`
	Velocity   uint8  `yaml:"velocity,omitempty"`
	Touch      uint8  `yaml:"touch,omitempty"`
	Controller uint8  `yaml:"controller,omitempty"`
	Value      uint8  `yaml:"value,omitempty"`
	Instrument uint8  `yaml:"instrument,omitempty"`
	Pressure   uint8  `yaml:"pressure,omitempty"`
	Bend       uint16 `yaml:"bend,omitempty"`

	Meta        uint8  `yaml:"meta,omitempty"`
	Text        string `yaml:"text,omitempty"`
	Data        []int  `yaml:"data,omitempty"`
	Tempo       uint32 `yaml:"tempo,omitempty"`
	Numerator   uint8  `yaml:"numerator,omitempty"`
	Denominator uint8  `yaml:"denominator,omitempty"`
}

// Options controls how a Converter reads and writes.
type Options struct {
	// Lenient retries files the strict parser rejects through gomidi, which
	// understands running status. Events the smf model cannot hold, such as
	// system exclusive, are dropped and their delta times kept.
	Lenient bool

	// TextEncoding names the encoding of text meta events: utf8 (default),
	// utf16le, utf16be, latin1 or cp1252.
	TextEncoding string
}

// Converter handles format conversions
type Converter struct {
	opts Options
}

// New creates a new Converter with the given options
func New(opts Options) *Converter {
	return &Converter{opts: opts}
}

// GetOptions returns the current options
func (c *Converter) GetOptions() Options {
	return c.opts
}

// SetOptions replaces the options
func (c *Converter) SetOptions(opts Options) {
	c.opts = opts
}
