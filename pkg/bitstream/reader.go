/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: reader.go
Description: Bit-addressable reader over an in-memory byte buffer. Supports both bit orders,
absolute and relative bit seeks, remaining-bit queries and byte alignment. Every read is
atomic: it either consumes the full width or leaves the position untouched.
*/

package bitstream

import (
	"fmt"
	"io"
)

// Reader reads values of 1..64 bits from a byte slice.
// The reader never modifies the underlying slice.
type Reader struct {
	data   []byte
	bitLen int64 // readable bits, may be shorter than len(data)*8
	pos    int64
	order  BitOrder
}

// NewReader creates a reader over all bits of data.
func NewReader(data []byte, order BitOrder) *Reader {
	return &Reader{data: data, bitLen: int64(len(data)) * 8, order: order}
}

// NewReaderBits creates a reader limited to the first bitLen bits of data.
// This is used for buffers whose final byte is only partially filled.
func NewReaderBits(data []byte, bitLen int64, order BitOrder) *Reader {
	if max := int64(len(data)) * 8; bitLen > max || bitLen < 0 {
		bitLen = max
	}
	return &Reader{data: data, bitLen: bitLen, order: order}
}

// Order returns the reader's bit order
func (r *Reader) Order() BitOrder { return r.order }

// Position returns the current bit position.
func (r *Reader) Position() int64 { return r.pos }

// BitLen returns the total readable length in bits.
func (r *Reader) BitLen() int64 { return r.bitLen }

// RemainingBits returns the number of unread bits.
func (r *Reader) RemainingBits() int64 { return r.bitLen - r.pos }

// Read consumes width bits and returns them as an unsigned integer.
// A zero width reads nothing and returns 0.
func (r *Reader) Read(width int) (uint64, error) {
	if width < 0 || width > 64 {
		return 0, fmt.Errorf("read %d bits: %w", width, ErrInvalidWidth)
	}
	if int64(width) > r.RemainingBits() {
		return 0, fmt.Errorf("read %d bits at %d of %d: %w", width, r.pos, r.bitLen, ErrEndOfStream)
	}

	var v uint64
	pos := r.pos
	n := width
	shift := 0
	for n > 0 {
		b := r.data[pos>>3]
		used := int(pos & 7)
		avail := 8 - used
		take := avail
		if n < take {
			take = n
		}
		if r.order == Msb {
			chunk := uint64(b>>uint(avail-take)) & mask(take)
			v = v<<uint(take) | chunk
		} else {
			chunk := uint64(b>>uint(used)) & mask(take)
			v |= chunk << uint(shift)
			shift += take
		}
		pos += int64(take)
		n -= take
	}

	r.pos = pos
	return v, nil
}

// Seek moves the bit position. whence is one of io.SeekStart, io.SeekCurrent
// or io.SeekEnd. Seeking outside [0, BitLen] fails with ErrEndOfStream and
// leaves the position unchanged.
func (r *Reader) Seek(delta int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = r.pos
	case io.SeekEnd:
		base = r.bitLen
	default:
		return r.pos, fmt.Errorf("whence %d: %w", whence, ErrInvalidWhence)
	}
	target := base + delta
	if target < 0 || target > r.bitLen {
		return r.pos, fmt.Errorf("seek to bit %d of %d: %w", target, r.bitLen, ErrEndOfStream)
	}
	r.pos = target
	return r.pos, nil
}

// Skip advances the position by n bits.
func (r *Reader) Skip(n int64) error {
	_, err := r.Seek(n, io.SeekCurrent)
	return err
}

// ByteAlign advances to the next byte boundary. It is a no-op when already aligned.
func (r *Reader) ByteAlign() error {
	rem := r.pos & 7
	if rem == 0 {
		return nil
	}
	return r.Skip(8 - rem)
}
