/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: analyzer_test.go
Description: Tests for record ingestion: field extraction in both bit orders, histogram
consistency, width conservation, atomic failure on short records and field lookup.
*/

package analyzer

import (
	"testing"

	"github.com/kleascm/bitlayout-analyzer/pkg/bitstream"
	"github.com/kleascm/bitlayout-analyzer/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalyzer(t *testing.T, text string) *SchemaAnalyzer {
	t.Helper()
	s, err := schema.Load([]byte(text))
	require.NoError(t, err)
	a, err := New(s, Options{})
	require.NoError(t, err)
	return a
}

const nibbleSchema = `
version: '1.0'
root:
  fields:
    hi: 4
    lo: 4
`

func TestAddEntryMsb(t *testing.T) {
	a := newAnalyzer(t, nibbleSchema)
	require.NoError(t, a.AddEntry([]byte{0xAB}))
	require.NoError(t, a.AddEntry([]byte{0xA3}))

	hi, ok := a.Field("hi")
	require.True(t, ok)
	lo, ok := a.Field("lo")
	require.True(t, ok)

	assert.Equal(t, uint64(2), hi.Count)
	assert.Equal(t, map[uint64]uint64{0xA: 2}, hi.ValueCounts)
	assert.Equal(t, map[uint64]uint64{0xB: 1, 0x3: 1}, lo.ValueCounts)
	assert.Equal(t, []byte{0xAA}, hi.Data())
	assert.Equal(t, []byte{0xB3}, lo.Data())
	assert.Equal(t, int64(8), lo.BitLen())

	assert.Equal(t, uint64(2), a.Entries())
	assert.Equal(t, []byte{0xAB, 0xA3}, a.RawEntries())
}

func TestAddEntryLsbFile(t *testing.T) {
	a := newAnalyzer(t, `
version: '1.0'
bit_order: lsb
root:
  fields:
    lo:
      bits: 4
      bit_order: lsb
    hi:
      bits: 4
      bit_order: lsb
`)
	require.NoError(t, a.AddEntry([]byte{0b0010_1101}))
	lo, _ := a.Field("lo")
	hi, _ := a.Field("hi")
	assert.Equal(t, map[uint64]uint64{0b1101: 1}, lo.ValueCounts)
	assert.Equal(t, map[uint64]uint64{0b0010: 1}, hi.ValueCounts)
	assert.Equal(t, []byte{0b1101}, lo.Data())
}

func TestFieldOrderDiffersFromFile(t *testing.T) {
	a := newAnalyzer(t, `
version: '1.0'
root:
  fields:
    a:
      bits: 4
      bit_order: lsb
    b: 4
`)
	require.NoError(t, a.AddEntry([]byte{0b1100_0000}))
	f, _ := a.Field("a")
	// first bit read is the least significant bit of an Lsb field
	assert.Equal(t, map[uint64]uint64{0b0011: 1}, f.ValueCounts)
	// captured bits keep their order in the stream
	assert.Equal(t, []byte{0b0000_0011}, f.Data())
	assert.Equal(t, []BitCount{{Ones: 1}, {Ones: 1}, {Zeros: 1}, {Zeros: 1}}, f.BitCounts)
}

func TestRoundTripBothOrders(t *testing.T) {
	records := [][]byte{{0x12, 0x34}, {0xFE, 0xDC}, {0x00, 0x81}, {0x5A, 0xA5}}
	for _, order := range []string{"msb", "lsb"} {
		t.Run(order, func(t *testing.T) {
			a := newAnalyzer(t, `
version: '1.0'
bit_order: `+order+`
root:
  fields:
    a:
      bits: 5
      bit_order: `+order+`
    g:
      fields:
        b:
          bits: 7
          bit_order: `+order+`
        c:
          bits: 4
          bit_order: `+order+`
`)
			for _, r := range records {
				require.NoError(t, a.AddEntry(r))
			}

			readers := make([]*bitstream.Reader, 0, 3)
			for _, f := range a.Fields() {
				readers = append(readers, f.NewReader())
			}
			fileOrder := a.Schema().BitOrder
			w := bitstream.NewWriter(fileOrder)
			for range records {
				for i, f := range a.Fields() {
					v, err := readers[i].Read(f.Bits)
					require.NoError(t, err)
					require.NoError(t, w.Write(f.Bits, v))
				}
			}
			assert.Equal(t, a.RawEntries(), w.Bytes())
		})
	}
}

func TestHistogramConsistency(t *testing.T) {
	a := newAnalyzer(t, "version: '1.0'\nroot:\n  fields:\n    v: 3\n")
	inputs := []byte{0x00, 0x20, 0xE0, 0x20, 0x60, 0xFF}
	for _, b := range inputs {
		require.NoError(t, a.AddEntry([]byte{b}))
	}
	f, err := a.FieldByName("v")
	require.NoError(t, err)

	var total uint64
	for _, c := range f.ValueCounts {
		total += c
	}
	n := uint64(len(inputs))
	assert.Equal(t, n, total)
	assert.Equal(t, n, f.Count)
	for i, bc := range f.BitCounts {
		assert.Equal(t, n, bc.Zeros+bc.Ones, "bit %d", i)
	}
	assert.Equal(t, uint64(2), f.ValueCounts[1])
	assert.Equal(t, uint64(2), f.ValueCounts[7])
}

func TestWidthConservation(t *testing.T) {
	a := newAnalyzer(t, nibbleSchema)
	total := 0
	for _, f := range a.Fields() {
		total += f.Bits
	}
	assert.Equal(t, a.Schema().TotalBits(), total)
}

func TestShortRecordIsAtomic(t *testing.T) {
	a := newAnalyzer(t, "version: '1.0'\nroot:\n  fields:\n    a: 12\n    b: 4\n")
	require.NoError(t, a.AddEntry([]byte{0x12, 0x34}))

	err := a.AddEntry([]byte{0xFF})
	assert.ErrorIs(t, err, bitstream.ErrEndOfStream)

	assert.Equal(t, uint64(1), a.Entries())
	assert.Equal(t, []byte{0x12, 0x34}, a.RawEntries())
	for _, f := range a.Fields() {
		assert.Equal(t, uint64(1), f.Count)
		assert.Equal(t, int64(f.Bits), f.BitLen())
	}
}

func TestAddEntries(t *testing.T) {
	a := newAnalyzer(t, "version: '1.0'\nroot:\n  fields:\n    a: 16\n")
	n, err := a.AddEntries([]byte{1, 2, 3, 4, 5})
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, bitstream.ErrEndOfStream)
	assert.Equal(t, uint64(2), a.Entries())

	f, _ := a.Field("a")
	assert.Equal(t, map[uint64]uint64{0x0102: 1, 0x0304: 1}, f.ValueCounts)
}

func TestSkipIfNot(t *testing.T) {
	a := newAnalyzer(t, `
version: '1.0'
root:
  fields:
    kind: 4
    payload:
      bits: 4
      skip_if_not:
        - byte_offset: 0
          bit_offset: 0
          bits: 4
          value: 0xA
`)
	_, err := a.AddEntries([]byte{0xA1, 0xB2, 0xA3})
	require.NoError(t, err)

	kind, _ := a.Field("kind")
	payload, _ := a.Field("payload")
	assert.Equal(t, uint64(3), kind.Count)
	assert.Equal(t, uint64(2), payload.Count)
	assert.Equal(t, uint64(1), payload.Skipped)
	assert.Equal(t, []byte{0x13}, payload.Data())
}

func TestSkipFrequencyAnalysis(t *testing.T) {
	a := newAnalyzer(t, `
version: '1.0'
root:
  fields:
    g:
      skip_frequency_analysis: true
      fields:
        x: 8
    y: 8
`)
	require.NoError(t, a.AddEntry([]byte{1, 2}))
	x, _ := a.Field("g.x")
	y, _ := a.Field("y")
	assert.Nil(t, x.ValueCounts)
	assert.Equal(t, uint64(1), x.Count)
	assert.Equal(t, map[uint64]uint64{2: 1}, y.ValueCounts)
}

func TestFieldByName(t *testing.T) {
	a := newAnalyzer(t, `
version: '1.0'
root:
  fields:
    left:
      fields:
        value: 4
    right:
      fields:
        value: 4
    tag: 8
`)
	f, err := a.FieldByName("left.value")
	require.NoError(t, err)
	assert.Equal(t, 1, f.Depth)

	f, err = a.FieldByName("tag")
	require.NoError(t, err)
	assert.Equal(t, "tag", f.Path)
	assert.Equal(t, 0, f.Depth)

	_, err = a.FieldByName("value")
	assert.ErrorIs(t, err, ErrAmbiguousField)

	_, err = a.FieldByName("missing")
	assert.ErrorIs(t, err, ErrFieldNotFound)
}

func TestExpectedEntriesPresizesCapture(t *testing.T) {
	s, err := schema.Load([]byte(nibbleSchema))
	require.NoError(t, err)
	a, err := New(s, Options{ExpectedEntries: 4})
	require.NoError(t, err)

	hi, ok := a.Field("hi")
	require.True(t, ok)
	assert.Equal(t, 2, cap(hi.Data()))

	n, err := a.AddEntries([]byte{0x12, 0x34, 0x56, 0x78})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0x13, 0x57}, hi.Data())
}

func TestObserveReportsCaptureFailure(t *testing.T) {
	f := newFieldState("wide", "wide", 0, 65, bitstream.Msb, false, 0)
	err := f.observe(1, bitstream.Msb)
	assert.ErrorIs(t, err, bitstream.ErrInvalidWidth)
	assert.Contains(t, err.Error(), `"wide"`)
	assert.Equal(t, uint64(0), f.Count)
	assert.Empty(t, f.ValueCounts)
}
