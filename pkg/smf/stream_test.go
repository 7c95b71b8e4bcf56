package smf

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderPrimitives(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xFF, 0xFE, 0x00, 0x00, 0x01, 0x00, 0x7A, 'a', 'b'}))

	v16, err := r.ReadInt16()
	require.NoError(t, err)
	assert.Equal(t, int16(-2), v16)

	v32, err := r.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(256), v32)

	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x7A), b)

	p, err := r.ReadBytes(2)
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), p)
	assert.Equal(t, int64(9), r.Pos())

	_, err = r.ReadByte()
	assert.Equal(t, io.EOF, err)
}

func TestWriterBackpatch(t *testing.T) {
	var buf seekBuffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteUint32(0))
	require.NoError(t, w.WriteInt16(-1))
	require.NoError(t, w.WriteByte(0x42))

	end, err := w.Pos()
	require.NoError(t, err)
	assert.Equal(t, int64(7), end)

	require.NoError(t, w.SeekTo(0))
	require.NoError(t, w.WriteUint32(0xDEADBEEF))
	require.NoError(t, w.SeekTo(end))
	_, err = w.Write([]byte{0x01})
	require.NoError(t, err)

	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF, 0xFF, 0xFF, 0x42, 0x01}, buf.Bytes())
}

func TestSeekBuffer(t *testing.T) {
	var buf seekBuffer
	_, err := buf.Write([]byte("hello"))
	require.NoError(t, err)

	pos, err := buf.Seek(-2, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pos)
	_, err = buf.Write([]byte("LO!"))
	require.NoError(t, err)
	assert.Equal(t, "helLO!", string(buf.Bytes()))

	_, err = buf.Seek(-1, io.SeekStart)
	assert.Error(t, err)
	_, err = buf.Seek(0, 42)
	assert.Error(t, err)
}
