/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: components.go
Description: Group components, the instructions of a layout recipe (array, struct, field,
skip, padding), plus the split and custom comparisons built from them and the byte/bit
conditions used by conditional offsets and record filters.
*/

package schema

import (
	"fmt"
	"math"

	"github.com/kleascm/bitlayout-analyzer/pkg/bitstream"
)

// ComponentKind discriminates the GroupComponent variants.
type ComponentKind int

const (
	ComponentArray ComponentKind = iota
	ComponentStruct
	ComponentField
	ComponentSkip
	ComponentPadding
)

func (k ComponentKind) String() string {
	switch k {
	case ComponentArray:
		return "array"
	case ComponentStruct:
		return "struct"
	case ComponentField:
		return "field"
	case ComponentSkip:
		return "skip"
	case ComponentPadding:
		return "padding"
	default:
		return fmt.Sprintf("ComponentKind(%d)", int(k))
	}
}

// GroupComponent is one of *Array, *Struct, *FieldRef, *Skip or *Padding.
// The set is closed; switch on ComponentKind().
type GroupComponent interface {
	ComponentKind() ComponentKind
	isGroupComponent()
}

// Array emits a slice of every element of a field's captured data.
// Each element contributes Bits bits starting Offset bits into the element.
type Array struct {
	Field  string `json:"field"`
	Offset int    `json:"offset"`
	Bits   int    `json:"bits"` // 0 means the field's full width
}

// Struct interleaves its components, one pass per captured instance.
// Only FieldRef, Skip and Padding are allowed inside.
type Struct struct {
	Components []GroupComponent `json:"fields"`
}

// FieldRef reads Bits bits of a field per struct iteration.
type FieldRef struct {
	Field string `json:"field"`
	Bits  int    `json:"bits"` // 0 means the field's full width
}

// Skip advances a field's reader by Bits bits without emitting output.
type Skip struct {
	Field string `json:"field"`
	Bits  int    `json:"bits"`
}

// Padding emits a literal value on every struct iteration.
type Padding struct {
	Bits  int    `json:"bits"`
	Value uint64 `json:"value"`
}

func (*Array) ComponentKind() ComponentKind    { return ComponentArray }
func (*Struct) ComponentKind() ComponentKind   { return ComponentStruct }
func (*FieldRef) ComponentKind() ComponentKind { return ComponentField }
func (*Skip) ComponentKind() ComponentKind     { return ComponentSkip }
func (*Padding) ComponentKind() ComponentKind  { return ComponentPadding }

func (*Array) isGroupComponent()    {}
func (*Struct) isGroupComponent()   {}
func (*FieldRef) isGroupComponent() {}
func (*Skip) isGroupComponent()     {}
func (*Padding) isGroupComponent()  {}

// ReferencedFields lists the field names used by components, in first-use order.
func ReferencedFields(components []GroupComponent) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	var walk func([]GroupComponent)
	walk = func(cs []GroupComponent) {
		for _, c := range cs {
			switch v := c.(type) {
			case *Array:
				add(v.Field)
			case *Struct:
				walk(v.Components)
			case *FieldRef:
				add(v.Field)
			case *Skip:
				add(v.Field)
			case *Padding:
			}
		}
	}
	walk(components)
	return names
}

// SplitComparison compares two groupings of the same fields.
// Group1 is measured interleaved, Group2 with every field stored separately.
type SplitComparison struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Group1      []string `json:"group_1"`
	Group2      []string `json:"group_2"`
}

// NamedLayout is one named list of components.
type NamedLayout struct {
	Name       string           `json:"name"`
	Components []GroupComponent `json:"components"`
}

// CustomComparison compares a baseline layout against any number of alternatives.
// BitOrder is the packing of every synthesized layout; it defaults to Msb.
type CustomComparison struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	BitOrder    bitstream.BitOrder `json:"bit_order"`
	Baseline    []GroupComponent   `json:"baseline"`
	Comparisons []NamedLayout      `json:"comparisons"`
}

// Condition tests Bits bits found at ByteOffset*8+BitOffset against Value.
type Condition struct {
	ByteOffset uint64             `json:"byte_offset"`
	BitOffset  int                `json:"bit_offset"`
	Bits       int                `json:"bits"`
	Value      uint64             `json:"value"`
	BitOrder   bitstream.BitOrder `json:"bit_order"`
}

// MaxConditionByteOffset is the largest byte_offset whose bit span still fits a
// signed 64-bit stream position.
const MaxConditionByteOffset = (math.MaxInt64 - 7 - 64) / 8

// StartBit returns the absolute bit position of the condition. It is only
// meaningful for a ByteOffset up to MaxConditionByteOffset.
func (c Condition) StartBit() uint64 { return c.ByteOffset*8 + uint64(c.BitOffset) }

// RequiredBytes is the data length needed to evaluate the condition.
func (c Condition) RequiredBytes() uint64 {
	return (c.StartBit() + uint64(c.Bits) + 7) / 8
}

// ConditionalOffset is a candidate data start guarded by conditions that must all hold.
type ConditionalOffset struct {
	Offset     uint64      `json:"offset"`
	Conditions []Condition `json:"conditions"`
}
