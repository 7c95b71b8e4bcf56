package converter

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"

	"github.com/james-see/midilib/pkg/smf"
)

// Format represents a file format
type Format string

const (
	FormatMIDI    Format = "midi"
	FormatYAML    Format = "yaml"
	FormatUnknown Format = "unknown"
)

// DetectFormat detects the format of a file from its extension
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mid", ".midi", ".smf":
		return FormatMIDI
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	if len(data) >= 4 && string(data[:4]) == "MThd" {
		return FormatMIDI
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return FormatUnknown
	}
	if _, err := ParseSong(data); err == nil {
		return FormatYAML
	}
	return FormatUnknown
}

// Result is a loaded file plus what lenient parsing had to drop.
type Result struct {
	File *smf.File

	// Lenient is set when the strict parser rejected the data and gomidi
	// read it instead.
	Lenient bool

	// Dropped counts events left out by the lenient path.
	Dropped int
}

func (c *Converter) textEncoding() (encoding.Encoding, error) {
	return TextEncoding(c.opts.TextEncoding)
}

// Load parses MIDI data. Files the strict parser rejects as unsupported are
// retried through gomidi when the Lenient option is set.
func (c *Converter) Load(data []byte) (*Result, error) {
	f, err := smf.Read(bytes.NewReader(data))
	if err == nil {
		return &Result{File: f}, nil
	}
	if !c.opts.Lenient || !errors.Is(err, smf.ErrUnsupportedMessage) {
		return nil, err
	}

	f, dropped, lerr := ReadLenient(data)
	if lerr != nil {
		return nil, fmt.Errorf("%v; lenient retry: %w", err, lerr)
	}
	return &Result{File: f, Lenient: true, Dropped: dropped}, nil
}

// Normalize re-serializes MIDI data: one delta before every event, no
// running status.
func (c *Converter) Normalize(data []byte) ([]byte, error) {
	res, err := c.Load(data)
	if err != nil {
		return nil, err
	}
	return res.File.Bytes()
}

// MIDIToYAML exports MIDI data as a YAML song document.
func (c *Converter) MIDIToYAML(data []byte) ([]byte, error) {
	enc, err := c.textEncoding()
	if err != nil {
		return nil, err
	}
	res, err := c.Load(data)
	if err != nil {
		return nil, err
	}
	song, err := Export(res.File, enc)
	if err != nil {
		return nil, err
	}
	return MarshalSong(song)
}

// YAMLToMIDI composes a MIDI file from a YAML song document.
func (c *Converter) YAMLToMIDI(data []byte) ([]byte, error) {
	enc, err := c.textEncoding()
	if err != nil {
		return nil, err
	}
	song, err := ParseSong(data)
	if err != nil {
		return nil, err
	}
	f, err := Compose(song, enc)
	if err != nil {
		return nil, err
	}
	return f.Bytes()
}

// ConvertFile converts a file from one format to another
func (c *Converter) ConvertFile(inputPath, outputPath string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	inputFormat := DetectFormat(inputPath)
	if inputFormat == FormatUnknown {
		inputFormat = DetectFormatFromContent(data)
	}
	outputFormat := DetectFormat(outputPath)
	if outputFormat == FormatUnknown {
		return errors.New("cannot determine output format from filename")
	}

	var outputData []byte
	switch {
	case inputFormat == FormatMIDI && outputFormat == FormatMIDI:
		outputData, err = c.Normalize(data)
	case inputFormat == FormatMIDI && outputFormat == FormatYAML:
		outputData, err = c.MIDIToYAML(data)
	case inputFormat == FormatYAML && outputFormat == FormatMIDI:
		outputData, err = c.YAMLToMIDI(data)
	default:
		return fmt.Errorf("unsupported conversion: %s to %s", inputFormat, outputFormat)
	}
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// GetSupportedConversions returns a list of supported conversion paths
func GetSupportedConversions() []string {
	return []string{
		"midi -> midi",
		"midi -> yaml",
		"yaml -> midi",
	}
}
