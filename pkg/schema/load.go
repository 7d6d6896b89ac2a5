/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: load.go
Description: YAML schema loader. Decodes schema text through yaml.v3 nodes so that field
declaration order, which is record bit order, is preserved. Every structural problem is
reported at load time; a schema is never partially applied.
*/

package schema

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kleascm/bitlayout-analyzer/pkg/bitstream"
	"gopkg.in/yaml.v3"
)

var (
	ErrMalformed          = errors.New("malformed schema")
	ErrInvalidVersion     = errors.New("unsupported schema version")
	ErrInvalidGroupType   = errors.New("invalid group type")
	ErrInvalidFieldType   = errors.New("invalid field type")
	ErrZeroWidth          = errors.New("zero bit width")
	ErrFieldTooWide       = errors.New("field wider than 64 bits")
	ErrGroupWidthMismatch = errors.New("group width does not match its children")
	ErrDuplicateField     = errors.New("duplicate field name")
	ErrCyclicReference    = errors.New("cyclic group reference")
	ErrInvalidComponent   = errors.New("invalid group component")
	ErrUnknownField       = errors.New("unknown field")
	ErrInvalidCondition   = errors.New("invalid condition")
)

// LoadFile reads and loads a schema file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	s, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Load parses and validates schema text.
func Load(text []byte) (*Schema, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(text, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformed)
	}
	top := doc.Content[0]
	pairs, err := mappingPairs("schema", top)
	if err != nil {
		return nil, err
	}

	s := &Schema{BitOrder: bitstream.Msb}
	p := &parser{onPath: make(map[*yaml.Node]bool)}

	versionNode := lookupKey(pairs, "version")
	if versionNode == nil {
		return nil, fmt.Errorf("missing version: %w", ErrInvalidVersion)
	}
	s.Version = versionNode.Value
	if s.Version != SupportedVersion {
		return nil, fmt.Errorf("version %q (want %q): %w", s.Version, SupportedVersion, ErrInvalidVersion)
	}

	var analysisNode *yaml.Node
	for _, kv := range pairs {
		key, val := kv[0].Value, resolveAlias(kv[1])
		switch key {
		case "version":
		case "metadata":
			if err := val.Decode(&s.Metadata); err != nil {
				return nil, fmt.Errorf("%w: metadata: %v", ErrMalformed, err)
			}
		case "bit_order":
			if s.BitOrder, err = parseBitOrder("schema", val); err != nil {
				return nil, err
			}
		case "conditional_offsets":
			if s.ConditionalOffsets, err = parseConditionalOffsets(val); err != nil {
				return nil, err
			}
		case "root":
			if s.Root, err = p.parseRoot(val); err != nil {
				return nil, err
			}
		case "analysis":
			analysisNode = val
		default:
			return nil, fmt.Errorf("%w: unknown key %q", ErrMalformed, key)
		}
	}
	if s.Root == nil {
		return nil, fmt.Errorf("%w: missing root group", ErrMalformed)
	}

	// comparisons reference fields, so they are parsed once the tree is known
	if analysisNode != nil {
		if s.Analysis, err = parseAnalysis(s, analysisNode); err != nil {
			return nil, err
		}
	}
	return s, nil
}

type parser struct {
	onPath map[*yaml.Node]bool
}

func (p *parser) parseRoot(n *yaml.Node) (*Group, error) {
	def, err := p.parseDefinition("root", n)
	if err != nil {
		return nil, err
	}
	g, ok := def.(*Group)
	if !ok {
		return nil, fmt.Errorf("root: %w: root must be a group", ErrInvalidGroupType)
	}
	return g, nil
}

func (p *parser) parseDefinition(path string, n *yaml.Node) (FieldDefinition, error) {
	n = resolveAlias(n)
	if p.onPath[n] {
		return nil, fmt.Errorf("%s: %w", path, ErrCyclicReference)
	}
	p.onPath[n] = true
	defer delete(p.onPath, n)

	switch n.Kind {
	case yaml.ScalarNode:
		bits, err := parseBitRange(path, n)
		if err != nil {
			return nil, err
		}
		return newField(path, bits, bitstream.Msb)
	case yaml.MappingNode:
		pairs, err := mappingPairs(path, n)
		if err != nil {
			return nil, err
		}
		typ := ""
		if t := lookupKey(pairs, "type"); t != nil {
			typ = t.Value
		}
		if typ == "group" || lookupKey(pairs, "fields") != nil {
			if typ != "" && typ != "group" {
				return nil, fmt.Errorf("%s: type %q: %w", path, typ, ErrInvalidGroupType)
			}
			return p.parseGroup(path, pairs)
		}
		if typ != "" && typ != "field" {
			return nil, fmt.Errorf("%s: type %q: %w", path, typ, ErrInvalidFieldType)
		}
		return parseField(path, pairs)
	default:
		return nil, fmt.Errorf("%w: %s: expected bit width or mapping", ErrMalformed, path)
	}
}

func (p *parser) parseGroup(path string, pairs [][2]*yaml.Node) (*Group, error) {
	g := &Group{}
	declared, hasDeclared := 0, false
	var componentsNode *yaml.Node

	for _, kv := range pairs {
		key, val := kv[0].Value, resolveAlias(kv[1])
		switch key {
		case "type":
		case "bits":
			v, err := parseInt(path, val)
			if err != nil {
				return nil, err
			}
			declared, hasDeclared = v, true
		case "description":
			g.Description = val.Value
		case "skip_frequency_analysis":
			if err := val.Decode(&g.SkipFrequencyAnalysis); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
			}
		case "components":
			componentsNode = val
		case "fields":
			children, err := mappingPairs(path, val)
			if err != nil {
				return nil, err
			}
			seen := make(map[string]bool, len(children))
			for _, child := range children {
				name := child[0].Value
				if name == "" || strings.Contains(name, ".") {
					return nil, fmt.Errorf("%w: %s: invalid field name %q", ErrMalformed, path, name)
				}
				if seen[name] {
					return nil, fmt.Errorf("%s.%s: %w", path, name, ErrDuplicateField)
				}
				seen[name] = true
				def, err := p.parseDefinition(path+"."+name, child[1])
				if err != nil {
					return nil, err
				}
				g.Fields = append(g.Fields, NamedField{Name: name, Definition: def})
			}
		default:
			return nil, fmt.Errorf("%w: %s: unknown key %q", ErrMalformed, path, key)
		}
	}

	if len(g.Fields) == 0 {
		return nil, fmt.Errorf("%s: group has no fields: %w", path, ErrZeroWidth)
	}
	sum := g.ChildrenBits()
	if hasDeclared && declared != sum {
		return nil, fmt.Errorf("%s: declared %d bits, children sum to %d: %w", path, declared, sum, ErrGroupWidthMismatch)
	}
	g.Bits = sum

	if componentsNode != nil {
		ranges, err := parseGroupRanges(path, componentsNode, g.Bits)
		if err != nil {
			return nil, err
		}
		g.Components = ranges
	}
	return g, nil
}

func parseField(path string, pairs [][2]*yaml.Node) (*Field, error) {
	bitsNode := lookupKey(pairs, "bits")
	if bitsNode == nil {
		return nil, fmt.Errorf("%s: missing bits: %w", path, ErrZeroWidth)
	}
	bits, err := parseBitRange(path, resolveAlias(bitsNode))
	if err != nil {
		return nil, err
	}
	f, err := newField(path, bits, bitstream.Msb)
	if err != nil {
		return nil, err
	}

	for _, kv := range pairs {
		key, val := kv[0].Value, resolveAlias(kv[1])
		switch key {
		case "type", "bits":
		case "description":
			f.Description = val.Value
		case "bit_order":
			if f.BitOrder, err = parseBitOrder(path, val); err != nil {
				return nil, err
			}
		case "skip_if_not":
			if f.SkipIfNot, err = parseConditions(path, val); err != nil {
				return nil, err
			}
		case "skip_frequency_analysis":
			if err := val.Decode(&f.SkipFrequencyAnalysis); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
			}
		default:
			return nil, fmt.Errorf("%w: %s: unknown key %q", ErrMalformed, path, key)
		}
	}
	return f, nil
}

func newField(path string, bits BitRange, order bitstream.BitOrder) (*Field, error) {
	if bits.Width() <= 0 {
		return nil, fmt.Errorf("%s: bits %s: %w", path, bits, ErrZeroWidth)
	}
	if bits.Width() > 64 {
		return nil, fmt.Errorf("%s: bits %s: %w", path, bits, ErrFieldTooWide)
	}
	return &Field{Bits: bits, BitOrder: order}, nil
}

// parseBitRange accepts either a width ("12") or a range ("4..16"). A field's
// range only sets its width; fields are laid out back to back in declaration order.
func parseBitRange(path string, n *yaml.Node) (BitRange, error) {
	if n.Kind != yaml.ScalarNode {
		return BitRange{}, fmt.Errorf("%w: %s: bits must be a scalar", ErrMalformed, path)
	}
	if start, end, ok := strings.Cut(n.Value, ".."); ok {
		s, err1 := strconv.ParseInt(strings.TrimSpace(start), 0, 32)
		e, err2 := strconv.ParseInt(strings.TrimSpace(end), 0, 32)
		if err1 != nil || err2 != nil || s < 0 {
			return BitRange{}, fmt.Errorf("%w: %s: bad bit range %q", ErrMalformed, path, n.Value)
		}
		return BitRange{Start: int(s), End: int(e)}, nil
	}
	w, err := parseInt(path, n)
	if err != nil {
		return BitRange{}, err
	}
	return BitRange{Start: 0, End: w}, nil
}

func parseInt(path string, n *yaml.Node) (int, error) {
	var v int
	if err := n.Decode(&v); err != nil {
		return 0, fmt.Errorf("%w: %s: expected integer, got %q", ErrMalformed, path, n.Value)
	}
	return v, nil
}

func parseBitOrder(path string, n *yaml.Node) (bitstream.BitOrder, error) {
	o, err := bitstream.ParseBitOrder(n.Value)
	if err != nil {
		return o, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	return o, nil
}

func parseGroupRanges(path string, n *yaml.Node, groupBits int) ([]GroupRange, error) {
	pairs, err := mappingPairs(path+".components", n)
	if err != nil {
		return nil, err
	}
	ranges := make([]GroupRange, 0, len(pairs))
	for _, kv := range pairs {
		name := kv[0].Value
		r, err := parseBitRange(path+"."+name, resolveAlias(kv[1]))
		if err != nil {
			return nil, err
		}
		if r.Width() <= 0 {
			return nil, fmt.Errorf("%s: component %q: %w", path, name, ErrZeroWidth)
		}
		if r.End > groupBits {
			return nil, fmt.Errorf("%w: %s: component %q range %s exceeds group width %d",
				ErrMalformed, path, name, r, groupBits)
		}
		ranges = append(ranges, GroupRange{Name: name, Bits: r})
	}
	return ranges, nil
}

type rawCondition struct {
	ByteOffset uint64 `yaml:"byte_offset"`
	BitOffset  int    `yaml:"bit_offset"`
	Bits       int    `yaml:"bits"`
	Value      uint64 `yaml:"value"`
	BitOrder   string `yaml:"bit_order"`
}

func parseConditions(path string, n *yaml.Node) ([]Condition, error) {
	var raws []rawCondition
	if err := n.Decode(&raws); err != nil {
		return nil, fmt.Errorf("%w: %s: conditions: %v", ErrMalformed, path, err)
	}
	conds := make([]Condition, 0, len(raws))
	for i, raw := range raws {
		order, err := bitstream.ParseBitOrder(raw.BitOrder)
		if err != nil {
			return nil, fmt.Errorf("%s: condition %d: %w: %v", path, i, ErrInvalidCondition, err)
		}
		c := Condition{
			ByteOffset: raw.ByteOffset,
			BitOffset:  raw.BitOffset,
			Bits:       raw.Bits,
			Value:      raw.Value,
			BitOrder:   order,
		}
		if err := ValidateCondition(c); err != nil {
			return nil, fmt.Errorf("%s: condition %d: %w", path, i, err)
		}
		conds = append(conds, c)
	}
	return conds, nil
}

// ValidateCondition checks a condition's position and width.
func ValidateCondition(c Condition) error {
	if c.ByteOffset > MaxConditionByteOffset {
		return fmt.Errorf("%w: byte_offset %d exceeds %d", ErrInvalidCondition, c.ByteOffset, uint64(MaxConditionByteOffset))
	}
	if c.BitOffset < 0 || c.BitOffset > 7 {
		return fmt.Errorf("%w: bit_offset %d outside 0..7", ErrInvalidCondition, c.BitOffset)
	}
	if c.Bits < 1 || c.Bits > 64 {
		return fmt.Errorf("%w: bits %d outside 1..64", ErrInvalidCondition, c.Bits)
	}
	return nil
}

func parseConditionalOffsets(n *yaml.Node) ([]ConditionalOffset, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: conditional_offsets must be a list", ErrMalformed)
	}
	offsets := make([]ConditionalOffset, 0, len(n.Content))
	for i, item := range n.Content {
		path := fmt.Sprintf("conditional_offsets[%d]", i)
		pairs, err := mappingPairs(path, resolveAlias(item))
		if err != nil {
			return nil, err
		}
		var co ConditionalOffset
		for _, kv := range pairs {
			key, val := kv[0].Value, resolveAlias(kv[1])
			switch key {
			case "offset":
				if err := val.Decode(&co.Offset); err != nil {
					return nil, fmt.Errorf("%w: %s: offset: %v", ErrMalformed, path, err)
				}
			case "conditions":
				if co.Conditions, err = parseConditions(path, val); err != nil {
					return nil, err
				}
			default:
				return nil, fmt.Errorf("%w: %s: unknown key %q", ErrMalformed, path, key)
			}
		}
		offsets = append(offsets, co)
	}
	return offsets, nil
}

func mappingPairs(path string, n *yaml.Node) ([][2]*yaml.Node, error) {
	n = resolveAlias(n)
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s: expected mapping", ErrMalformed, path)
	}
	pairs := make([][2]*yaml.Node, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		pairs = append(pairs, [2]*yaml.Node{n.Content[i], n.Content[i+1]})
	}
	return pairs, nil
}

func lookupKey(pairs [][2]*yaml.Node, key string) *yaml.Node {
	for _, kv := range pairs {
		if kv[0].Value == key {
			return kv[1]
		}
	}
	return nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}
