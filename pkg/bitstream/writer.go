/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: writer.go
Description: Append-only bit writer backed by a growable byte buffer. Supports both bit orders
and zero-padding byte alignment.
*/

package bitstream

import (
	"fmt"
	"io"
)

// Writer appends values of 1..64 bits to a growable buffer.
type Writer struct {
	buf    []byte
	bitLen int64
	order  BitOrder
}

// NewWriter creates an empty writer.
func NewWriter(order BitOrder) *Writer {
	return &Writer{order: order}
}

// NewWriterSize creates an empty writer with capacity for sizeHint bytes.
func NewWriterSize(order BitOrder, sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint), order: order}
}

// Order returns the writer's bit order
func (w *Writer) Order() BitOrder { return w.order }

// BitLen returns the number of bits written so far.
func (w *Writer) BitLen() int64 { return w.bitLen }

// Position is the current write position, which is always the end of the stream.
func (w *Writer) Position() int64 { return w.bitLen }

// Write appends the low width bits of value. Bits of value above width are ignored.
// A zero width writes nothing.
func (w *Writer) Write(width int, value uint64) error {
	if width < 0 || width > 64 {
		return fmt.Errorf("write %d bits: %w", width, ErrInvalidWidth)
	}
	value &= mask(width)
	n := width
	for n > 0 {
		used := int(w.bitLen & 7)
		if used == 0 {
			w.buf = append(w.buf, 0)
		}
		avail := 8 - used
		take := avail
		if n < take {
			take = n
		}
		last := len(w.buf) - 1
		if w.order == Msb {
			chunk := (value >> uint(n-take)) & mask(take)
			w.buf[last] |= byte(chunk << uint(avail-take))
		} else {
			chunk := value & mask(take)
			w.buf[last] |= byte(chunk << uint(used))
			value >>= uint(take)
		}
		w.bitLen += int64(take)
		n -= take
	}
	return nil
}

// Seek is only valid as a no-op: the writer is append-only.
func (w *Writer) Seek(delta int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = delta
	case io.SeekCurrent, io.SeekEnd:
		target = w.bitLen + delta
	default:
		return w.bitLen, fmt.Errorf("whence %d: %w", whence, ErrInvalidWhence)
	}
	if target != w.bitLen {
		return w.bitLen, fmt.Errorf("seek to bit %d of %d: %w", target, w.bitLen, ErrUnsupportedSeek)
	}
	return w.bitLen, nil
}

// ByteAlign pads with zero bits up to the next byte boundary.
func (w *Writer) ByteAlign() error {
	if rem := w.bitLen & 7; rem != 0 {
		// the partial byte is already zero-filled
		w.bitLen += 8 - rem
	}
	return nil
}

// Bytes returns the written bytes. A partially filled final byte is included
// with its unused bits set to zero. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Reader returns a reader over exactly the bits written so far, using the writer's order.
func (w *Writer) Reader() *Reader {
	return NewReaderBits(w.buf, w.bitLen, w.order)
}
