package converter

import (
	"bytes"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	gosmf "gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/midilib/pkg/smf"
)

// demoFile is a single-track file with a track name, a tempo and one note.
func demoFile(t *testing.T) *smf.File {
	t.Helper()
	name, err := smf.NewTextMeta(smf.MetaTrackName, "Lead", nil)
	require.NoError(t, err)
	tempo, err := smf.NewTempo(500000)
	require.NoError(t, err)
	sig, err := smf.NewTimeSignature(3, 4)
	require.NoError(t, err)

	f := smf.New()
	f.PPQ = 480
	tr := smf.NewTrack()
	tr.AddMessage(name)
	tr.AddMessage(tempo)
	tr.AddMessage(sig)
	tr.AddMessage(smf.Patch{Instrument: 5})
	tr.AddMessage(smf.NoteOn{Note: 60, Velocity: 100})
	tr.AddDeltaMessage(480, smf.NoteOff{Note: 60, Velocity: 64})
	tr.AddDeltaMessage(10, smf.PitchBend{Channel: smf.Ch(9), LSB: 0x00, MSB: 0x40})
	tr.Close()
	f.AddTrack(tr)
	return f
}

// runningStatusFile holds a second note on that relies on running status.
var runningStatusFile = []byte{
	'M', 'T', 'h', 'd', 0, 0, 0, 6, 0, 0, 0, 1, 0, 96,
	'M', 'T', 'r', 'k', 0, 0, 0, 11,
	0x00, 0x90, 0x3C, 0x64,
	0x60, 0x3E, 0x50,
	0x00, 0xFF, 0x2F, 0x00,
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		expected Format
	}{
		{"test.mid", FormatMIDI},
		{"test.MIDI", FormatMIDI},
		{"test.smf", FormatMIDI},
		{"song.yaml", FormatYAML},
		{"song.yml", FormatYAML},
		{"test.txt", FormatUnknown},
		{"test", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			result := DetectFormat(tt.filename)
			if result != tt.expected {
				t.Errorf("DetectFormat(%q) = %v, want %v", tt.filename, result, tt.expected)
			}
		})
	}
}

func TestDetectFormatFromContent(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected Format
	}{
		{"MIDI file", []byte("MThd\x00\x00\x00\x06"), FormatMIDI},
		{"song document", []byte("ppq: 96\ntracks: []\n"), FormatYAML},
		{"Short data", []byte{0x00, 0x01}, FormatUnknown},
		{"Empty", nil, FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetectFormatFromContent(tt.data)
			if result != tt.expected {
				t.Errorf("DetectFormatFromContent() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestConverterOptions(t *testing.T) {
	conv := New(Options{Lenient: true})
	require.NotNil(t, conv)
	assert.True(t, conv.GetOptions().Lenient)

	conv.SetOptions(Options{TextEncoding: "utf16le"})
	assert.False(t, conv.GetOptions().Lenient)
	assert.Equal(t, "utf16le", conv.GetOptions().TextEncoding)
}

func TestGetSupportedConversions(t *testing.T) {
	expected := []string{
		"midi -> midi",
		"midi -> yaml",
		"yaml -> midi",
	}
	assert.Equal(t, expected, GetSupportedConversions())
}

func TestTextEncoding(t *testing.T) {
	for _, name := range []string{"", "utf8", "UTF-8"} {
		enc, err := TextEncoding(name)
		require.NoError(t, err, name)
		assert.Nil(t, enc, name)
	}

	enc, err := TextEncoding("UTF-16LE")
	require.NoError(t, err)
	require.NotNil(t, enc)

	_, err = TextEncoding("ebcdic")
	assert.Error(t, err)

	assert.Equal(t, []string{"cp1252", "latin1", "utf16be", "utf16le", "utf8"}, TextEncodings())
}

func TestGomidiReadsWrittenFile(t *testing.T) {
	data, err := demoFile(t).Bytes()
	require.NoError(t, err)

	s, err := gosmf.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, s.Tracks, 1)
	assert.Equal(t, gosmf.MetricTicks(480), s.TimeFormat)

	f, dropped, err := FromSMF(s, false)
	require.NoError(t, err)
	assert.Zero(t, dropped)

	again, err := f.Bytes()
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(data), hex.EncodeToString(again))
}

func TestToSMF(t *testing.T) {
	s, err := ToSMF(demoFile(t))
	require.NoError(t, err)
	require.Len(t, s.Tracks, 1)

	var patch, noteOff gosmf.Event
	for _, ev := range s.Tracks[0] {
		switch ev.Message[0] {
		case 0xC0:
			patch = ev
		case 0x80:
			noteOff = ev
		}
	}
	assert.Equal(t, []byte{0xC0, 5}, []byte(patch.Message))
	assert.Equal(t, uint32(480), noteOff.Delta)
	assert.Equal(t, []byte{0x80, 60, 64}, []byte(noteOff.Message))

	invalid := smf.New()
	invalid.AddTrack(smf.NewTrack())
	_, err = ToSMF(invalid)
	assert.True(t, errors.Is(err, smf.ErrValidation))
}

func TestWriteSMF(t *testing.T) {
	data, err := WriteSMF(demoFile(t))
	require.NoError(t, err)

	s, err := gosmf.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)
	f, _, err := FromSMF(s, false)
	require.NoError(t, err)
	assert.Equal(t, int16(480), f.PPQ)

	sum := Summarize(f)
	require.Len(t, sum.Tracks, 1)
	assert.Equal(t, "Lead", sum.Tracks[0].Name)
	assert.Equal(t, uint64(490), sum.Tracks[0].Ticks)
}

func TestFromSMF(t *testing.T) {
	var tr gosmf.Track
	tr.Add(0, midi.ProgramChange(2, 5))
	tr.Add(96, midi.NoteOn(2, 60, 90))
	tr.Close(0)

	s := gosmf.New()
	s.TimeFormat = gosmf.MetricTicks(96)
	require.NoError(t, s.Add(tr))

	f, dropped, err := FromSMF(s, false)
	require.NoError(t, err)
	assert.Zero(t, dropped)
	assert.Equal(t, int16(96), f.PPQ)

	track, err := f.Track(0)
	require.NoError(t, err)
	assert.Equal(t, []smf.Message{
		smf.Delta(0), smf.Patch{Channel: smf.Ch(2), Instrument: 5},
		smf.Delta(96), smf.NoteOn{Channel: smf.Ch(2), Note: 60, Velocity: 90},
		smf.Delta(0), smf.EndOfTrack(),
	}, track.Messages())
}

func TestFromSMFUnsupported(t *testing.T) {
	var tr gosmf.Track
	tr.Add(10, []byte{0xF0, 0x7E, 0xF7})
	tr.Add(5, midi.NoteOn(0, 60, 100))
	tr.Close(0)

	s := gosmf.New()
	s.TimeFormat = gosmf.MetricTicks(96)
	require.NoError(t, s.Add(tr))

	_, _, err := FromSMF(s, false)
	assert.True(t, errors.Is(err, smf.ErrUnsupportedMessage))

	f, dropped, err := FromSMF(s, true)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)

	track, err := f.Track(0)
	require.NoError(t, err)
	first, err := track.At(0)
	require.NoError(t, err)
	assert.Equal(t, smf.Delta(15), first)
}

func TestLoadRunningStatus(t *testing.T) {
	_, err := New(Options{}).Load(runningStatusFile)
	require.Error(t, err)
	assert.True(t, errors.Is(err, smf.ErrUnsupportedMessage))

	res, err := New(Options{Lenient: true}).Load(runningStatusFile)
	require.NoError(t, err)
	assert.True(t, res.Lenient)
	assert.Zero(t, res.Dropped)

	track, err := res.File.Track(0)
	require.NoError(t, err)
	assert.Equal(t, []smf.Message{
		smf.Delta(0), smf.NoteOn{Channel: smf.Ch(0), Note: 60, Velocity: 100},
		smf.Delta(96), smf.NoteOn{Channel: smf.Ch(0), Note: 62, Velocity: 80},
		smf.Delta(0), smf.EndOfTrack(),
	}, track.Messages())
}

func TestLoadLenientKeepsFormatErrors(t *testing.T) {
	_, err := New(Options{Lenient: true}).Load([]byte("RIFF0000"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, smf.ErrFormat))
}

func TestNormalize(t *testing.T) {
	out, err := New(Options{Lenient: true}).Normalize(runningStatusFile)
	require.NoError(t, err)
	assert.Equal(t, "4d54726b"+"0000000c"+
		"00903c64"+
		"60903e50"+
		"00ff2f00", hex.EncodeToString(out[14:]))

	// Already normal data comes back unchanged.
	again, err := New(Options{}).Normalize(out)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestYAMLRoundTrip(t *testing.T) {
	want, err := demoFile(t).Bytes()
	require.NoError(t, err)

	conv := New(Options{})
	doc, err := conv.MIDIToYAML(want)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "text: Lead")
	assert.Contains(t, string(doc), "tempo: 500000")

	got, err := conv.YAMLToMIDI(doc)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(want), hex.EncodeToString(got))
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "demo.mid")
	data, err := demoFile(t).Bytes()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(in, data, 0644))

	conv := New(Options{})
	yml := filepath.Join(dir, "demo.yaml")
	require.NoError(t, conv.ConvertFile(in, yml))

	out := filepath.Join(dir, "back.mid")
	require.NoError(t, conv.ConvertFile(yml, out))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	assert.Error(t, conv.ConvertFile(in, filepath.Join(dir, "demo.txt")))
	assert.Error(t, conv.ConvertFile(yml, filepath.Join(dir, "demo.yml")))
	assert.Error(t, conv.ConvertFile(filepath.Join(dir, "missing.mid"), out))
}

func TestGomidiLongMeta(t *testing.T) {
	text := bytes.Repeat([]byte("A"), 200)
	long, err := smf.NewMeta(smf.MetaText, text)
	require.NoError(t, err)

	f := smf.New()
	tr := smf.NewTrack()
	tr.AddMessage(long)
	tr.Close()
	f.AddTrack(tr)

	s, err := ToSMF(f)
	require.NoError(t, err)
	wire := append([]byte{0xFF, 0x01, 0x81, 0x48}, text...)
	assert.Equal(t, wire, []byte(s.Tracks[0][0].Message))

	back, dropped, err := FromSMF(s, false)
	require.NoError(t, err)
	assert.Zero(t, dropped)
	track, err := back.Track(0)
	require.NoError(t, err)
	m, err := track.At(1)
	require.NoError(t, err)
	assert.Equal(t, long, m)

	var over gosmf.Track
	over.Add(7, append([]byte{0xFF, 0x01, 0x82, 0x00}, make([]byte, 256)...))
	over.Add(3, midi.NoteOn(0, 60, 100))
	over.Close(0)
	s = gosmf.New()
	s.TimeFormat = gosmf.MetricTicks(96)
	require.NoError(t, s.Add(over))

	_, _, err = FromSMF(s, false)
	assert.True(t, errors.Is(err, smf.ErrUnsupportedMessage))

	back, dropped, err = FromSMF(s, true)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	track, err = back.Track(0)
	require.NoError(t, err)
	first, err := track.At(0)
	require.NoError(t, err)
	assert.Equal(t, smf.Delta(10), first)
}
