/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: field_state.go
Description: Per-field accumulated state: the captured bits of every observed instance plus
per-bit and per-value histograms.
*/

package analyzer

import (
	"fmt"

	"github.com/kleascm/bitlayout-analyzer/pkg/bitstream"
)

// BitCount holds how often one bit position was 0 or 1.
type BitCount struct {
	Zeros uint64 `json:"zeros"`
	Ones  uint64 `json:"ones"`
}

// FieldState is the accumulated data of one leaf field.
type FieldState struct {
	Name     string             `json:"name"`
	Path     string             `json:"path"`
	Depth    int                `json:"depth"`
	BitOrder bitstream.BitOrder `json:"bit_order"`
	Bits     int                `json:"bits"`
	Count    uint64             `json:"count"`
	// Skipped counts records where the field's skip_if_not conditions did not hold.
	Skipped uint64 `json:"skipped"`
	// BitCounts is indexed by position in read order; position 0 is the first bit of the field in the record.
	BitCounts   []BitCount        `json:"bit_counts"`
	ValueCounts map[uint64]uint64 `json:"value_counts,omitempty"`

	SkipFrequencyAnalysis bool `json:"skip_frequency_analysis"`

	writer *bitstream.Writer
}

// newFieldState sizes the capture buffer for entryHint instances; zero means unknown.
func newFieldState(name, path string, depth, bits int, order bitstream.BitOrder, skipFreq bool, entryHint int) *FieldState {
	f := &FieldState{
		Name:                  name,
		Path:                  path,
		Depth:                 depth,
		BitOrder:              order,
		Bits:                  bits,
		BitCounts:             make([]BitCount, bits),
		SkipFrequencyAnalysis: skipFreq,
		writer:                bitstream.NewWriterSize(order, (entryHint*bits+7)/8),
	}
	if !skipFreq {
		f.ValueCounts = make(map[uint64]uint64)
	}
	return f
}

// Data returns the captured bits of all instances, packed in the field's bit order.
// The final byte is zero-filled when the bit length is not a multiple of 8.
func (f *FieldState) Data() []byte { return f.writer.Bytes() }

// BitLen returns the number of captured bits, always Count*Bits.
func (f *FieldState) BitLen() int64 { return f.writer.BitLen() }

// NewReader returns an independent reader over exactly the captured bits.
func (f *FieldState) NewReader() *bitstream.Reader { return f.writer.Reader() }

// observe records one instance. raw is the pattern as read in the file's bit order.
// The histograms are only updated once the bits are captured.
func (f *FieldState) observe(raw uint64, fileOrder bitstream.BitOrder) error {
	value := raw
	if fileOrder != f.BitOrder {
		value = bitstream.ReverseBits(raw, f.Bits)
	}
	if err := f.writer.Write(f.Bits, value); err != nil {
		return fmt.Errorf("capture %q: %w", f.Path, err)
	}

	for i := 0; i < f.Bits; i++ {
		var bit uint64
		if fileOrder == bitstream.Msb {
			bit = (raw >> uint(f.Bits-1-i)) & 1
		} else {
			bit = (raw >> uint(i)) & 1
		}
		if bit == 1 {
			f.BitCounts[i].Ones++
		} else {
			f.BitCounts[i].Zeros++
		}
	}

	if !f.SkipFrequencyAnalysis {
		f.ValueCounts[value]++
	}
	f.Count++
	return nil
}
