// Package smf reads and writes Standard MIDI Files.
//
// A File holds tracks; a Track holds an alternating sequence of Delta times
// and events. Parsing is strict: running status and system exclusive events
// are rejected with ErrUnsupportedMessage rather than skipped.
//
// Meta events carry a single length byte, so payloads are limited to 255
// bytes. Only status 0xFF is read as a meta event; the other 0xF0-0xFE
// statuses are ErrUnsupportedMessage rather than being treated as meta.
package smf

import (
	"bufio"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
)

const (
	// DefaultFormat is the multi-track format New uses.
	DefaultFormat int16 = 1
	// DefaultPPQ is the resolution New uses.
	DefaultPPQ int16 = 0x00F0

	headerLen = 6
)

var headerMagic = [4]byte{'M', 'T', 'h', 'd'}

// File is a parsed or programmatically built MIDI file.
type File struct {
	// PPQ is the number of ticks per quarter note.
	PPQ int16

	format int16
	tracks []*Track
}

// New returns an empty format 1 file.
func New() *File {
	return &File{PPQ: DefaultPPQ, format: DefaultFormat}
}

// Open parses the file at path.
func Open(path string) (*File, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = fd.Close() }()

	f, err := Read(fd)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return f, nil
}

// Read parses a whole file from r.
func Read(r io.Reader) (*File, error) {
	if _, ok := r.(io.ByteReader); !ok {
		r = bufio.NewReader(r)
	}
	return load(NewReader(r))
}

func load(r *Reader) (*File, error) {
	magic, err := r.ReadBytes(4)
	if err != nil {
		return nil, errors.Wrapf(ErrFormat, "reading header magic: %v", err)
	}
	if [4]byte(magic) != headerMagic {
		return nil, errors.Wrapf(ErrFormat, "not a MIDI file: expected %q, got %q", headerMagic[:], magic)
	}
	length, err := r.ReadUint32()
	if err != nil {
		return nil, errors.Wrapf(ErrFormat, "reading header length: %v", err)
	}
	if length != headerLen {
		return nil, errors.Wrapf(ErrFormat, "header length is %d, want %d", length, headerLen)
	}

	var fields [3]int16
	for i := range fields {
		if fields[i], err = r.ReadInt16(); err != nil {
			return nil, errors.Wrapf(ErrFormat, "reading header: %v", err)
		}
	}
	format, count, ppq := fields[0], fields[1], fields[2]
	if count < 0 {
		return nil, errors.Wrapf(ErrFormat, "negative track count %d", count)
	}

	f := &File{PPQ: ppq, format: format, tracks: make([]*Track, 0, count)}
	for i := 0; i < int(count); i++ {
		t, err := readTrack(r)
		if err != nil {
			return nil, errors.WithMessagef(err, "track %d", i)
		}
		f.tracks = append(f.tracks, t)
	}
	return f, nil
}

// Format returns the header format field.
func (f *File) Format() int16 { return f.format }

// AddTrack appends t.
func (f *File) AddTrack(t *Track) {
	f.tracks = append(f.tracks, t)
}

// Track returns track i.
func (f *File) Track(i int) (*Track, error) {
	if i < 0 || i >= len(f.tracks) {
		return nil, outOfRange(i, len(f.tracks))
	}
	return f.tracks[i], nil
}

// Tracks returns the tracks in file order.
func (f *File) Tracks() []*Track {
	return append([]*Track(nil), f.tracks...)
}

// TrackCount returns the number of tracks.
func (f *File) TrackCount() int { return len(f.tracks) }

// Validate reports the first problem that would make Write fail.
func (f *File) Validate() error {
	if len(f.tracks) > math.MaxInt16 {
		return errors.Wrapf(ErrValidation, "%d tracks, max %d", len(f.tracks), math.MaxInt16)
	}
	for i, t := range f.tracks {
		if err := t.validate(); err != nil {
			return errors.WithMessagef(err, "track %d", i)
		}
	}
	return nil
}

// Write serializes the file to ws. The whole file is validated first, so a
// validation error leaves ws untouched. Channel events without an explicit
// channel are written on their track's index modulo 16.
func (f *File) Write(ws io.WriteSeeker) error {
	if err := f.Validate(); err != nil {
		return err
	}

	w := NewWriter(ws)
	if _, err := w.Write(headerMagic[:]); err != nil {
		return err
	}
	if err := w.WriteUint32(headerLen); err != nil {
		return err
	}
	for _, v := range []int16{f.format, int16(len(f.tracks)), f.PPQ} {
		if err := w.WriteInt16(v); err != nil {
			return err
		}
	}
	for i, t := range f.tracks {
		if err := t.writeTo(w, uint8(i)); err != nil {
			return errors.WithMessagef(err, "track %d", i)
		}
	}
	return nil
}

// Bytes returns the serialized file.
func (f *File) Bytes() ([]byte, error) {
	var buf seekBuffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo implements io.WriterTo for writers that cannot seek.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	data, err := f.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// WriteFile writes the file to path. Nothing is created when validation
// fails, and a partially written file is removed.
func (f *File) WriteFile(path string) (err error) {
	data, err := f.Bytes()
	if err != nil {
		return err
	}

	fd, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fd.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	_, err = fd.Write(data)
	return err
}
