/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: bitorder.go
Description: Bit order definitions shared by the bit stream reader and writer. The order
decides both how bits are packed into bytes and which end of a value is read or written first.
*/

package bitstream

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// BitOrder selects the significance of the first bit read or written for a value.
type BitOrder int

const (
	// Msb packs bytes from bit 7 downwards; the first bit of a value is its most significant bit.
	Msb BitOrder = iota
	// Lsb packs bytes from bit 0 upwards; the first bit of a value is its least significant bit.
	Lsb
)

var (
	// ErrEndOfStream is returned when fewer bits remain than a read or seek needs.
	ErrEndOfStream = errors.New("end of stream")
	// ErrInvalidWidth is returned for reads or writes wider than 64 bits.
	ErrInvalidWidth = errors.New("invalid bit width")
	// ErrUnsupportedSeek is returned when seeking a writer anywhere but its current end.
	ErrUnsupportedSeek = errors.New("seek not supported on write stream")
	// ErrInvalidWhence is returned for an unknown seek origin.
	ErrInvalidWhence = errors.New("invalid seek origin")
)

// String returns the lowercase name used in schema files
func (o BitOrder) String() string {
	switch o {
	case Msb:
		return "msb"
	case Lsb:
		return "lsb"
	default:
		return fmt.Sprintf("BitOrder(%d)", int(o))
	}
}

// ParseBitOrder parses "msb"/"lsb" (case-insensitive). An empty string means Msb.
func ParseBitOrder(s string) (BitOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "msb", "big", "big_endian":
		return Msb, nil
	case "lsb", "little", "little_endian":
		return Lsb, nil
	default:
		return Msb, fmt.Errorf("unknown bit order %q", s)
	}
}

// ReverseBits reverses the low width bits of v.
func ReverseBits(v uint64, width int) uint64 {
	if width <= 0 {
		return 0
	}
	return bits.Reverse64(v&mask(width)) >> uint(64-width)
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(width) - 1
}
