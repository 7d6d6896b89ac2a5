/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: schema.go
Description: Schema data model for fixed binary record formats. Describes fields, groups,
bit orders, conditional offsets and the layout comparisons to run over captured field data.
The model is immutable after loading and is shared read-only by the analyzer.
*/

package schema

import (
	"fmt"
	"strings"

	"github.com/kleascm/bitlayout-analyzer/pkg/bitstream"
)

// SupportedVersion is the only schema version accepted by Load.
const SupportedVersion = "1.0"

// Schema is the root of a loaded schema file.
type Schema struct {
	Version            string              `json:"version"`
	Metadata           Metadata            `json:"metadata"`
	BitOrder           bitstream.BitOrder  `json:"bit_order"` // bit order of the source file
	ConditionalOffsets []ConditionalOffset `json:"conditional_offsets,omitempty"`
	Root               *Group              `json:"root"`
	Analysis           AnalysisConfig      `json:"analysis"`
}

// Metadata holds descriptive information about the schema
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AnalysisConfig holds the layout comparisons declared by the schema.
type AnalysisConfig struct {
	SplitGroups   []SplitComparison  `json:"split_groups,omitempty"`
	CompareGroups []CustomComparison `json:"compare_groups,omitempty"`
}

// FieldKind discriminates the FieldDefinition variants.
type FieldKind int

const (
	KindField FieldKind = iota
	KindGroup
)

func (k FieldKind) String() string {
	if k == KindGroup {
		return "group"
	}
	return "field"
}

// FieldDefinition is either a *Field or a *Group. The set is closed; switch on Kind().
type FieldDefinition interface {
	Kind() FieldKind
	BitWidth() int
	isFieldDefinition()
}

// BitRange is a half-open range of bit positions; its width is End-Start.
// On a Field only the width is used: the field's position comes from the
// widths of the fields declared before it. Group components use Start and End
// as positions inside the group.
type BitRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Width returns the number of bits covered by the range
func (r BitRange) Width() int { return r.End - r.Start }

func (r BitRange) String() string { return fmt.Sprintf("%d..%d", r.Start, r.End) }

// Field is a leaf of fixed bit width.
type Field struct {
	Bits                  BitRange           `json:"bits"`
	Description           string             `json:"description,omitempty"`
	BitOrder              bitstream.BitOrder `json:"bit_order"`
	SkipIfNot             []Condition        `json:"skip_if_not,omitempty"`
	SkipFrequencyAnalysis bool               `json:"skip_frequency_analysis,omitempty"`
}

func (f *Field) Kind() FieldKind    { return KindField }
func (f *Field) BitWidth() int      { return f.Bits.Width() }
func (f *Field) isFieldDefinition() {}

// NamedField pairs a field definition with its name. Groups keep children
// in declaration order, which is also the order bits appear in a record.
type NamedField struct {
	Name       string          `json:"name"`
	Definition FieldDefinition `json:"definition"`
}

// GroupRange names a sub-range of bits inside a group.
type GroupRange struct {
	Name string   `json:"name"`
	Bits BitRange `json:"bits"`
}

// Group is a named collection of fields and nested groups.
type Group struct {
	Bits                  int          `json:"bits"`
	Description           string       `json:"description,omitempty"`
	Fields                []NamedField `json:"fields"`
	Components            []GroupRange `json:"components,omitempty"`
	SkipFrequencyAnalysis bool         `json:"skip_frequency_analysis,omitempty"`
}

func (g *Group) Kind() FieldKind    { return KindGroup }
func (g *Group) BitWidth() int      { return g.Bits }
func (g *Group) isFieldDefinition() {}

// Child returns the direct child with the given name.
func (g *Group) Child(name string) (FieldDefinition, bool) {
	for _, nf := range g.Fields {
		if nf.Name == name {
			return nf.Definition, true
		}
	}
	return nil, false
}

// ChildrenBits sums the widths of the direct children.
func (g *Group) ChildrenBits() int {
	total := 0
	for _, nf := range g.Fields {
		total += nf.Definition.BitWidth()
	}
	return total
}

// Leaf describes one basic field reached by walking the schema tree.
type Leaf struct {
	Name   string `json:"name"`
	Path   string `json:"path"`   // dot-joined names from the root
	Depth  int    `json:"depth"`  // 0 for fields directly under the root
	Offset int    `json:"offset"` // bit offset inside a record
	Field  *Field `json:"field"`
	// SkipFrequencyAnalysis is true when the field or any enclosing group disables value counting.
	SkipFrequencyAnalysis bool `json:"skip_frequency_analysis"`
}

// TotalBits returns the declared width of a whole record.
func (s *Schema) TotalBits() int {
	if s.Root == nil {
		return 0
	}
	return s.Root.Bits
}

// TotalBytes returns the record size in bytes, rounding partial bytes up.
func (s *Schema) TotalBytes() int {
	return (s.TotalBits() + 7) / 8
}

// Leaves returns every basic field in record order.
func (s *Schema) Leaves() []Leaf {
	if s.Root == nil {
		return nil
	}
	var leaves []Leaf
	offset := 0
	walkGroup(s.Root, "", 0, false, &offset, &leaves)
	return leaves
}

func walkGroup(g *Group, prefix string, depth int, skipFreq bool, offset *int, out *[]Leaf) {
	for _, nf := range g.Fields {
		path := joinPath(prefix, nf.Name)
		switch def := nf.Definition.(type) {
		case *Field:
			*out = append(*out, Leaf{
				Name:                  nf.Name,
				Path:                  path,
				Depth:                 depth,
				Offset:                *offset,
				Field:                 def,
				SkipFrequencyAnalysis: skipFreq || def.SkipFrequencyAnalysis,
			})
			*offset += def.BitWidth()
		case *Group:
			walkGroup(def, path, depth+1, skipFreq || def.SkipFrequencyAnalysis, offset, out)
		}
	}
}

// Lookup resolves a dotted path to its definition.
func (s *Schema) Lookup(path string) (FieldDefinition, bool) {
	if s.Root == nil || path == "" {
		return nil, false
	}
	var cur FieldDefinition = s.Root
	for _, part := range strings.Split(path, ".") {
		g, ok := cur.(*Group)
		if !ok {
			return nil, false
		}
		if cur, ok = g.Child(part); !ok {
			return nil, false
		}
	}
	return cur, true
}

// LeavesUnder returns the leaf paths covered by a name. The name may be a
// full path or a bare field/group name; a group expands to all its leaves.
func (s *Schema) LeavesUnder(name string) []string {
	var paths []string
	for _, leaf := range s.Leaves() {
		if leaf.Path == name || strings.HasPrefix(leaf.Path, name+".") {
			paths = append(paths, leaf.Path)
		}
	}
	if len(paths) > 0 {
		return paths
	}
	for _, leaf := range s.Leaves() {
		if leaf.Name == name || hasSegment(leaf.Path, name) {
			paths = append(paths, leaf.Path)
		}
	}
	return paths
}

func hasSegment(path, name string) bool {
	parts := strings.Split(path, ".")
	for _, p := range parts[:len(parts)-1] {
		if p == name {
			return true
		}
	}
	return false
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
