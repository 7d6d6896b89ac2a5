/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: synthesis_test.go
Description: Tests for layout synthesis: array slicing, struct skip and read, padding,
interleaving of unequal fields and component validation.
*/

package synthesis

import (
	"testing"

	"github.com/kleascm/bitlayout-analyzer/pkg/analyzer"
	"github.com/kleascm/bitlayout-analyzer/pkg/bitstream"
	"github.com/kleascm/bitlayout-analyzer/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ingest(t *testing.T, text string, data []byte) *analyzer.SchemaAnalyzer {
	t.Helper()
	s, err := schema.Load([]byte(text))
	require.NoError(t, err)
	a, err := analyzer.New(s, analyzer.Options{})
	require.NoError(t, err)
	_, err = a.AddEntries(data)
	require.NoError(t, err)
	return a
}

// lsbNibbles captures the four 4-bit elements of 0b0010_1101, 0b0000_1100.
func lsbNibbles(t *testing.T) *analyzer.SchemaAnalyzer {
	a := ingest(t, `
version: '1.0'
bit_order: lsb
root:
  fields:
    color:
      bits: 4
      bit_order: lsb
`, []byte{0b1101, 0b0010, 0b1100, 0b0000})
	f, err := a.FieldByName("color")
	require.NoError(t, err)
	require.Equal(t, []byte{0b0010_1101, 0b0000_1100}, f.Data())
	return a
}

func msbPairs(t *testing.T) *analyzer.SchemaAnalyzer {
	return ingest(t, `
version: '1.0'
root:
  fields:
    hi: 4
    lo: 4
`, []byte{0xAB, 0xCD})
}

func TestArraySlicing(t *testing.T) {
	a := lsbNibbles(t)
	out, err := GenerateGroupBytesOrder([]schema.GroupComponent{
		&schema.Array{Field: "color", Offset: 2, Bits: 2},
	}, a, bitstream.Lsb)
	require.NoError(t, err)
	assert.Equal(t, []byte{0b0011_0011}, out)
}

func TestStructSkipAndRead(t *testing.T) {
	a := lsbNibbles(t)
	out, err := GenerateGroupBytesOrder([]schema.GroupComponent{
		&schema.Struct{Components: []schema.GroupComponent{
			&schema.Skip{Field: "color", Bits: 2},
			&schema.FieldRef{Field: "color", Bits: 2},
		}},
	}, a, bitstream.Lsb)
	require.NoError(t, err)
	assert.Equal(t, []byte{0b0011_0011}, out)
}

func TestPaddingOnlyStructRunsOnce(t *testing.T) {
	components := []schema.GroupComponent{
		&schema.Struct{Components: []schema.GroupComponent{
			&schema.Padding{Bits: 4, Value: 0b1010},
		}},
	}

	out, err := GenerateGroupBytesOrder(components, States{}, bitstream.Lsb)
	require.NoError(t, err)
	assert.Equal(t, []byte{0b0000_1010}, out)

	out, err = GenerateGroupBytes(components, States{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0b1010_0000}, out)
}

func TestArrayFullWidth(t *testing.T) {
	a := msbPairs(t)
	out, err := GenerateGroupBytes([]schema.GroupComponent{
		&schema.Array{Field: "hi"},
		&schema.Array{Field: "lo"},
	}, a)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAC, 0xBD}, out)
}

func TestStructInterleaveReproducesRecords(t *testing.T) {
	a := msbPairs(t)
	out, err := GenerateGroupBytes([]schema.GroupComponent{
		&schema.Struct{Components: []schema.GroupComponent{
			&schema.FieldRef{Field: "hi"},
			&schema.FieldRef{Field: "lo"},
		}},
	}, a)
	require.NoError(t, err)
	assert.Equal(t, a.RawEntries(), out)
}

func TestStructPaddingWithData(t *testing.T) {
	a := msbPairs(t)
	out, err := GenerateGroupBytes([]schema.GroupComponent{
		&schema.Struct{Components: []schema.GroupComponent{
			&schema.FieldRef{Field: "hi"},
			&schema.Padding{Bits: 4, Value: 0xF},
		}},
	}, a)
	require.NoError(t, err)
	// the pass that finds both readers exhausted still writes its pad
	assert.Equal(t, []byte{0xAF, 0xCF, 0xF0}, out)
}

func TestStructLeadingPaddingEndsWithPad(t *testing.T) {
	a := msbPairs(t)
	out, err := GenerateGroupBytes([]schema.GroupComponent{
		&schema.Struct{Components: []schema.GroupComponent{
			&schema.Padding{Bits: 4, Value: 0xF},
			&schema.FieldRef{Field: "hi"},
		}},
	}, a)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFA, 0xFC, 0xF0}, out)
}

func TestStructUnequalFields(t *testing.T) {
	x := ingest(t, "version: '1.0'\nroot:\n  fields:\n    x: 4\n", []byte{0x10, 0x20, 0x30})
	y := ingest(t, "version: '1.0'\nroot:\n  fields:\n    y: 4\n", []byte{0xA0, 0xB0})
	xs, _ := x.Field("x")
	ys, _ := y.Field("y")

	out, err := GenerateGroupBytes([]schema.GroupComponent{
		&schema.Struct{Components: []schema.GroupComponent{
			&schema.FieldRef{Field: "x"},
			&schema.FieldRef{Field: "y"},
		}},
	}, States{"x": xs, "y": ys})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1A, 0x2B, 0x30}, out)
}

func TestSynthesisErrors(t *testing.T) {
	a := msbPairs(t)
	tests := []struct {
		name       string
		components []schema.GroupComponent
		err        error
	}{
		{
			name:       "field at top level",
			components: []schema.GroupComponent{&schema.FieldRef{Field: "hi"}},
			err:        ErrInvalidComponentType,
		},
		{
			name:       "padding at top level",
			components: []schema.GroupComponent{&schema.Padding{Bits: 4}},
			err:        ErrInvalidComponentType,
		},
		{
			name: "array in struct",
			components: []schema.GroupComponent{&schema.Struct{Components: []schema.GroupComponent{
				&schema.Array{Field: "hi"},
			}}},
			err: ErrUnsupportedNestedComponent,
		},
		{
			name: "struct in struct",
			components: []schema.GroupComponent{&schema.Struct{Components: []schema.GroupComponent{
				&schema.Struct{},
			}}},
			err: ErrUnsupportedNestedComponent,
		},
		{
			name:       "unknown array field",
			components: []schema.GroupComponent{&schema.Array{Field: "nope"}},
			err:        ErrFieldNotFound,
		},
		{
			name: "unknown struct field",
			components: []schema.GroupComponent{&schema.Struct{Components: []schema.GroupComponent{
				&schema.FieldRef{Field: "nope"},
			}}},
			err: ErrFieldNotFound,
		},
		{
			name:       "slice too wide",
			components: []schema.GroupComponent{&schema.Array{Field: "hi", Offset: 2, Bits: 3}},
			err:        ErrInvalidComponentType,
		},
		{
			name: "zero skip",
			components: []schema.GroupComponent{&schema.Struct{Components: []schema.GroupComponent{
				&schema.Skip{Field: "hi"},
			}}},
			err: ErrInvalidComponentType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := GenerateGroupBytes(tt.components, a)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestEmptyLayout(t *testing.T) {
	out, err := GenerateGroupBytes(nil, States{})
	require.NoError(t, err)
	assert.Empty(t, out)
}
