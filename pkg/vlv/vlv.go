// Package vlv implements the variable-length quantity used by Standard MIDI
// Files for delta times and meta event lengths.
//
// Each encoded byte carries seven data bits. The high bit is set on every
// byte except the last, and groups are stored most significant first. SMF
// limits a quantity to four bytes, so the largest value is 0x0FFFFFFF.
package vlv

import (
	"errors"
	"io"
)

const (
	// MaxLen is the longest encoding SMF allows.
	MaxLen = 4
	// MaxValue is the largest value that fits in MaxLen bytes.
	MaxValue = 1<<(7*MaxLen) - 1

	groupMask    = 0x7F
	continuation = 0x80
)

var (
	// ErrOverflow is returned for values that need more than MaxLen bytes.
	ErrOverflow = errors.New("vlv: value exceeds 4 bytes")
)

// Pack returns n in its packed wire form: the encoded bytes laid out in a
// uint32, first byte most significant. Pack(200) is 0x8148.
func Pack(n uint32) (uint32, error) {
	if n > MaxValue {
		return 0, ErrOverflow
	}
	packed := n & groupMask
	shift := 8
	for n >>= 7; n != 0; n >>= 7 {
		packed |= (n&groupMask | continuation) << shift
		shift += 8
	}
	return packed, nil
}

// Unpack turns a packed quantity back into its integer value. Up to four
// groups are taken, high to low.
func Unpack(packed uint32) uint32 {
	n := (packed >> 24) & groupMask
	n = n<<7 | (packed>>16)&groupMask
	n = n<<7 | (packed>>8)&groupMask
	n = n<<7 | packed&groupMask
	return n
}

// Read consumes one quantity from r. The bytes are packed as they arrive and
// unpacked once the final byte is seen.
func Read(r io.ByteReader) (uint32, error) {
	var packed uint32
	for i := 0; ; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if i > 0 && err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		packed |= uint32(b)
		if b&continuation == 0 {
			return Unpack(packed), nil
		}
		if i == MaxLen-1 {
			return 0, ErrOverflow
		}
		packed <<= 8
	}
}

// Decode parses a quantity at the start of b and reports how many bytes it
// used.
func Decode(b []byte) (uint32, int, error) {
	var packed uint32
	for i, x := range b {
		packed |= uint32(x)
		if x&continuation == 0 {
			return Unpack(packed), i + 1, nil
		}
		if i == MaxLen-1 {
			return 0, i + 1, ErrOverflow
		}
		packed <<= 8
	}
	if len(b) == 0 {
		return 0, 0, io.EOF
	}
	return 0, len(b), io.ErrUnexpectedEOF
}

// Len returns the number of bytes Encode would produce for n, or 0 if n is
// out of range.
func Len(n uint32) int {
	switch {
	case n > MaxValue:
		return 0
	case n < 1<<7:
		return 1
	case n < 1<<14:
		return 2
	case n < 1<<21:
		return 3
	default:
		return 4
	}
}

// Append appends the encoding of n to dst.
func Append(dst []byte, n uint32) ([]byte, error) {
	packed, err := Pack(n)
	if err != nil {
		return dst, err
	}
	for i := Len(n) - 1; i >= 0; i-- {
		dst = append(dst, byte(packed>>(8*i)))
	}
	return dst, nil
}

// Encode returns the encoding of n. Zero encodes as a single zero byte.
func Encode(n uint32) ([]byte, error) {
	return Append(make([]byte, 0, MaxLen), n)
}
