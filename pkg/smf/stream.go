package smf

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Reader reads the big-endian primitives of an SMF stream and keeps count of
// the bytes consumed, which track parsing uses as its position.
type Reader struct {
	r       io.Reader
	pos     int64
	scratch [4]byte
}

// NewReader returns a Reader positioned at 0.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Pos returns the number of bytes read so far.
func (r *Reader) Pos() int64 { return r.pos }

func (r *Reader) fill(p []byte) error {
	n, err := io.ReadFull(r.r, p)
	r.pos += int64(n)
	return err
}

// ReadByte implements io.ByteReader.
func (r *Reader) ReadByte() (byte, error) {
	if err := r.fill(r.scratch[:1]); err != nil {
		return 0, err
	}
	return r.scratch[0], nil
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	p := make([]byte, n)
	if err := r.fill(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadInt16 reads a big-endian int16.
func (r *Reader) ReadInt16() (int16, error) {
	if err := r.fill(r.scratch[:2]); err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(r.scratch[:2])), nil
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.fill(r.scratch[:4]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(r.scratch[:4]), nil
}

// Writer writes big-endian primitives to a seekable stream. Seeking is what
// lets a track chunk backpatch its length.
type Writer struct {
	ws      io.WriteSeeker
	scratch [4]byte
}

// NewWriter wraps ws.
func NewWriter(ws io.WriteSeeker) *Writer {
	return &Writer{ws: ws}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	return w.ws.Write(p)
}

// WriteByte implements io.ByteWriter.
func (w *Writer) WriteByte(b byte) error {
	w.scratch[0] = b
	_, err := w.ws.Write(w.scratch[:1])
	return err
}

// WriteInt16 writes v big-endian.
func (w *Writer) WriteInt16(v int16) error {
	binary.BigEndian.PutUint16(w.scratch[:2], uint16(v))
	_, err := w.ws.Write(w.scratch[:2])
	return err
}

// WriteUint32 writes v big-endian.
func (w *Writer) WriteUint32(v uint32) error {
	binary.BigEndian.PutUint32(w.scratch[:4], v)
	_, err := w.ws.Write(w.scratch[:4])
	return err
}

// Pos returns the current offset of the underlying stream.
func (w *Writer) Pos() (int64, error) {
	return w.ws.Seek(0, io.SeekCurrent)
}

// SeekTo moves the underlying stream to an absolute offset.
func (w *Writer) SeekTo(pos int64) error {
	_, err := w.ws.Seek(pos, io.SeekStart)
	return err
}

// seekBuffer is an in-memory io.WriteSeeker. It lets WriteTo serve plain
// writers while keeping the backpatching write path.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.buf) {
		if end > cap(b.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	n := copy(b.buf[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, errors.Errorf("seekBuffer: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.Errorf("seekBuffer: negative position %d", abs)
	}
	b.pos = int(abs)
	return abs, nil
}

func (b *seekBuffer) Bytes() []byte { return b.buf }
