/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: bitstream_test.go
Description: Tests for the bit stream reader and writer. Covers both bit orders, atomic reads,
seeking, alignment and write/read round trips.
*/

package bitstream

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderMsb(t *testing.T) {
	r := NewReader([]byte{0b1011_0010, 0b1111_0000}, Msb)

	v, err := r.Read(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0b101), v)

	v, err = r.Read(7)
	require.NoError(t, err)
	assert.Equal(t, uint64(0b1_0010_11), v)

	assert.Equal(t, int64(6), r.RemainingBits())
}

func TestReaderLsb(t *testing.T) {
	r := NewReader([]byte{0b0010_1101, 0b0000_1100}, Lsb)

	expected := []uint64{0b1101, 0b0010, 0b1100, 0b0000}
	for i, want := range expected {
		v, err := r.Read(4)
		require.NoError(t, err, "nibble %d", i)
		assert.Equal(t, want, v, "nibble %d", i)
	}

	_, err := r.Read(1)
	assert.True(t, errors.Is(err, ErrEndOfStream))
}

func TestReaderLsbCrossesBytes(t *testing.T) {
	r := NewReader([]byte{0xF0, 0x0F}, Lsb)
	_, err := r.Read(4)
	require.NoError(t, err)

	v, err := r.Read(8)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFF), v)
}

func TestReadIsAtomic(t *testing.T) {
	r := NewReader([]byte{0xAB}, Msb)
	_, err := r.Read(4)
	require.NoError(t, err)

	_, err = r.Read(5)
	require.ErrorIs(t, err, ErrEndOfStream)
	assert.Equal(t, int64(4), r.Position())

	v, err := r.Read(4)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xB), v)
}

func TestRead64(t *testing.T) {
	data := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF}

	v, err := NewReader(data, Msb).Read(64)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0123456789ABCDEF), v)

	v, err = NewReader(data, Lsb).Read(64)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xEFCDAB8967452301), v)

	_, err = NewReader(data, Msb).Read(65)
	assert.ErrorIs(t, err, ErrInvalidWidth)
}

func TestReaderSeek(t *testing.T) {
	r := NewReader([]byte{0x00, 0xFF}, Msb)

	pos, err := r.Seek(8, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(8), pos)

	v, err := r.Read(4)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xF), v)

	pos, err = r.Seek(-6, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(6), pos)

	_, err = r.Seek(1, io.SeekEnd)
	assert.ErrorIs(t, err, ErrEndOfStream)
	assert.Equal(t, int64(6), r.Position())

	_, err = r.Seek(-7, io.SeekCurrent)
	assert.ErrorIs(t, err, ErrEndOfStream)

	pos, err = r.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(16), pos)
	assert.Equal(t, int64(0), r.RemainingBits())
}

func TestReaderBitsLimit(t *testing.T) {
	r := NewReaderBits([]byte{0xFF}, 3, Msb)
	assert.Equal(t, int64(3), r.RemainingBits())

	_, err := r.Read(4)
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestReaderByteAlign(t *testing.T) {
	r := NewReader([]byte{0x0F, 0xAA}, Msb)
	require.NoError(t, r.ByteAlign())
	assert.Equal(t, int64(0), r.Position())

	_, err := r.Read(1)
	require.NoError(t, err)
	require.NoError(t, r.ByteAlign())
	assert.Equal(t, int64(8), r.Position())
}

func TestWriterMsb(t *testing.T) {
	w := NewWriter(Msb)
	require.NoError(t, w.Write(3, 0b101))
	require.NoError(t, w.Write(7, 0b1001011))
	assert.Equal(t, int64(10), w.BitLen())

	require.NoError(t, w.ByteAlign())
	assert.Equal(t, []byte{0b1011_0010, 0b1100_0000}, w.Bytes())
}

func TestWriterLsb(t *testing.T) {
	w := NewWriter(Lsb)
	for _, v := range []uint64{0b1101, 0b0010, 0b1100, 0b0000} {
		require.NoError(t, w.Write(4, v))
	}
	assert.Equal(t, []byte{0b0010_1101, 0b0000_1100}, w.Bytes())
}

func TestWriterIgnoresHighBits(t *testing.T) {
	w := NewWriter(Msb)
	require.NoError(t, w.Write(4, 0xFA))
	require.NoError(t, w.ByteAlign())
	assert.Equal(t, []byte{0xA0}, w.Bytes())
}

func TestWriterByteAlignIdempotent(t *testing.T) {
	w := NewWriter(Lsb)
	require.NoError(t, w.Write(8, 0x5A))
	require.NoError(t, w.ByteAlign())
	require.NoError(t, w.ByteAlign())
	assert.Equal(t, int64(8), w.BitLen())
	assert.Equal(t, []byte{0x5A}, w.Bytes())
}

func TestWriterSizeHint(t *testing.T) {
	w := NewWriterSize(Lsb, 4)
	assert.Equal(t, 0, len(w.Bytes()))
	assert.Equal(t, 4, cap(w.Bytes()))

	ref := NewWriter(Lsb)
	for _, v := range []uint64{0x5, 0xA, 0x3} {
		require.NoError(t, w.Write(4, v))
		require.NoError(t, ref.Write(4, v))
	}
	assert.Equal(t, ref.Bytes(), w.Bytes())
	assert.Equal(t, int64(12), w.BitLen())
}

func TestWriterSeekUnsupported(t *testing.T) {
	w := NewWriter(Msb)
	require.NoError(t, w.Write(5, 1))

	_, err := w.Seek(0, io.SeekCurrent)
	require.NoError(t, err)

	_, err = w.Seek(3, io.SeekCurrent)
	assert.ErrorIs(t, err, ErrUnsupportedSeek)
}

func TestRoundTrip(t *testing.T) {
	widths := []int{1, 3, 7, 8, 13, 31, 64, 5}
	values := []uint64{1, 5, 0x55, 0xFF, 0x1ABC, 0x7FFFFFFF, 0xDEADBEEFCAFEBABE, 0x11}

	for _, order := range []BitOrder{Msb, Lsb} {
		t.Run(order.String(), func(t *testing.T) {
			w := NewWriter(order)
			for i, width := range widths {
				require.NoError(t, w.Write(width, values[i]))
			}

			r := w.Reader()
			for i, width := range widths {
				v, err := r.Read(width)
				require.NoError(t, err)
				assert.Equal(t, values[i]&mask(width), v, "value %d", i)
			}
			assert.Equal(t, int64(0), r.RemainingBits())

			// re-encoding what was read reproduces the buffer byte-for-byte
			r2 := NewReader(w.Bytes(), order)
			w2 := NewWriter(order)
			for _, width := range widths {
				v, err := r2.Read(width)
				require.NoError(t, err)
				require.NoError(t, w2.Write(width, v))
			}
			require.NoError(t, w2.ByteAlign())
			assert.Equal(t, w.Bytes(), w2.Bytes())
		})
	}
}

func TestReverseBits(t *testing.T) {
	assert.Equal(t, uint64(0b0011), ReverseBits(0b1100, 4))
	assert.Equal(t, uint64(0b1), ReverseBits(0b1, 1))
	assert.Equal(t, uint64(0), ReverseBits(0xFF, 0))
	assert.Equal(t, uint64(0x8000000000000000), ReverseBits(1, 64))
}

func TestParseBitOrder(t *testing.T) {
	o, err := ParseBitOrder("LSB")
	require.NoError(t, err)
	assert.Equal(t, Lsb, o)

	o, err = ParseBitOrder("")
	require.NoError(t, err)
	assert.Equal(t, Msb, o)

	_, err = ParseBitOrder("middle")
	assert.Error(t, err)
}
