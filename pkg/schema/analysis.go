/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: analysis.go
Description: Parsing and validation of the analysis section: split comparisons, custom
comparisons and the group component recipes they are built from.
*/

package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type rawSplit struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Group1      []string `yaml:"group_1"`
	Group2      []string `yaml:"group_2"`
}

type rawComponent struct {
	Type   string    `yaml:"type"`
	Field  string    `yaml:"field"`
	Offset int       `yaml:"offset"`
	Bits   int       `yaml:"bits"`
	Value  uint64    `yaml:"value"`
	Fields yaml.Node `yaml:"fields"`
}

func parseAnalysis(s *Schema, n *yaml.Node) (AnalysisConfig, error) {
	var cfg AnalysisConfig
	pairs, err := mappingPairs("analysis", n)
	if err != nil {
		return cfg, err
	}
	for _, kv := range pairs {
		key, val := kv[0].Value, resolveAlias(kv[1])
		switch key {
		case "split_groups":
			var raws []rawSplit
			if err := val.Decode(&raws); err != nil {
				return cfg, fmt.Errorf("%w: split_groups: %v", ErrMalformed, err)
			}
			for _, raw := range raws {
				split := SplitComparison{
					Name:        raw.Name,
					Description: raw.Description,
					Group1:      raw.Group1,
					Group2:      raw.Group2,
				}
				if err := validateSplit(s, split); err != nil {
					return cfg, err
				}
				cfg.SplitGroups = append(cfg.SplitGroups, split)
			}
		case "compare_groups":
			if val.Kind != yaml.SequenceNode {
				return cfg, fmt.Errorf("%w: compare_groups must be a list", ErrMalformed)
			}
			for i, item := range val.Content {
				cmp, err := parseCustomComparison(fmt.Sprintf("compare_groups[%d]", i), resolveAlias(item))
				if err != nil {
					return cfg, err
				}
				if err := ValidateCustomComparison(s, cmp); err != nil {
					return cfg, err
				}
				cfg.CompareGroups = append(cfg.CompareGroups, cmp)
			}
		default:
			return cfg, fmt.Errorf("%w: analysis: unknown key %q", ErrMalformed, key)
		}
	}
	return cfg, nil
}

func parseCustomComparison(path string, n *yaml.Node) (CustomComparison, error) {
	var cmp CustomComparison
	pairs, err := mappingPairs(path, n)
	if err != nil {
		return cmp, err
	}
	for _, kv := range pairs {
		key, val := kv[0].Value, resolveAlias(kv[1])
		switch key {
		case "name":
			cmp.Name = val.Value
		case "description":
			cmp.Description = val.Value
		case "bit_order":
			if cmp.BitOrder, err = parseBitOrder(path, val); err != nil {
				return cmp, err
			}
		case "baseline":
			if cmp.Baseline, err = parseComponents(path+".baseline", val); err != nil {
				return cmp, err
			}
		case "comparisons":
			layouts, err := mappingPairs(path+".comparisons", val)
			if err != nil {
				return cmp, err
			}
			for _, layout := range layouts {
				name := layout[0].Value
				components, err := parseComponents(path+"."+name, resolveAlias(layout[1]))
				if err != nil {
					return cmp, err
				}
				cmp.Comparisons = append(cmp.Comparisons, NamedLayout{Name: name, Components: components})
			}
		default:
			return cmp, fmt.Errorf("%w: %s: unknown key %q", ErrMalformed, path, key)
		}
	}
	if cmp.Name == "" {
		return cmp, fmt.Errorf("%w: %s: comparison has no name", ErrMalformed, path)
	}
	return cmp, nil
}

// parseComponents decodes a list of components. A bare string is shorthand
// for a full-width field reference.
func parseComponents(path string, n *yaml.Node) ([]GroupComponent, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: %s: components must be a list", ErrMalformed, path)
	}
	components := make([]GroupComponent, 0, len(n.Content))
	for i, item := range n.Content {
		item = resolveAlias(item)
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		if item.Kind == yaml.ScalarNode {
			components = append(components, &FieldRef{Field: item.Value})
			continue
		}
		var raw rawComponent
		if err := item.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, itemPath, err)
		}
		c, err := raw.build(itemPath)
		if err != nil {
			return nil, err
		}
		components = append(components, c)
	}
	return components, nil
}

func (raw rawComponent) build(path string) (GroupComponent, error) {
	switch raw.Type {
	case "array":
		return &Array{Field: raw.Field, Offset: raw.Offset, Bits: raw.Bits}, nil
	case "struct":
		if raw.Fields.Kind == 0 {
			return nil, fmt.Errorf("%w: %s: struct without fields", ErrInvalidComponent, path)
		}
		nested, err := parseComponents(path+".fields", resolveAlias(&raw.Fields))
		if err != nil {
			return nil, err
		}
		return &Struct{Components: nested}, nil
	case "field":
		return &FieldRef{Field: raw.Field, Bits: raw.Bits}, nil
	case "skip":
		return &Skip{Field: raw.Field, Bits: raw.Bits}, nil
	case "padding":
		return &Padding{Bits: raw.Bits, Value: raw.Value}, nil
	default:
		return nil, fmt.Errorf("%w: %s: unknown component type %q", ErrInvalidComponent, path, raw.Type)
	}
}

func validateSplit(s *Schema, split SplitComparison) error {
	if split.Name == "" {
		return fmt.Errorf("%w: split group without name", ErrMalformed)
	}
	for _, group := range [][]string{split.Group1, split.Group2} {
		if len(group) == 0 {
			return fmt.Errorf("%w: split group %q has an empty side", ErrMalformed, split.Name)
		}
		for _, name := range group {
			if len(s.LeavesUnder(name)) == 0 {
				return fmt.Errorf("split group %q: %q: %w", split.Name, name, ErrUnknownField)
			}
		}
	}
	return nil
}

// ValidateCustomComparison checks every layout of a comparison.
func ValidateCustomComparison(s *Schema, cmp CustomComparison) error {
	if err := ValidateComponents(s, cmp.Baseline); err != nil {
		return fmt.Errorf("comparison %q baseline: %w", cmp.Name, err)
	}
	for _, layout := range cmp.Comparisons {
		if err := ValidateComponents(s, layout.Components); err != nil {
			return fmt.Errorf("comparison %q layout %q: %w", cmp.Name, layout.Name, err)
		}
	}
	return nil
}

// ValidateComponents checks nesting rules, widths and field references of a layout.
// Only Array and Struct may appear at the top level; a Struct may only hold
// Field, Skip and Padding.
func ValidateComponents(s *Schema, components []GroupComponent) error {
	for i, c := range components {
		switch v := c.(type) {
		case *Array:
			width, err := resolveWidth(s, v.Field)
			if err != nil {
				return fmt.Errorf("component %d: %w", i, err)
			}
			bits := v.Bits
			if bits == 0 {
				bits = width
			}
			if v.Offset < 0 || bits < 0 || v.Offset+bits > width {
				return fmt.Errorf("%w: component %d: array slice %d+%d exceeds field %q width %d",
					ErrInvalidComponent, i, v.Offset, bits, v.Field, width)
			}
		case *Struct:
			for j, inner := range v.Components {
				if err := validateStructMember(s, inner); err != nil {
					return fmt.Errorf("component %d.%d: %w", i, j, err)
				}
			}
		default:
			return fmt.Errorf("%w: component %d: %s not allowed at top level", ErrInvalidComponent, i, c.ComponentKind())
		}
	}
	return nil
}

func validateStructMember(s *Schema, c GroupComponent) error {
	switch v := c.(type) {
	case *FieldRef:
		_, err := resolveWidth(s, v.Field)
		if err == nil && (v.Bits < 0 || v.Bits > 64) {
			err = fmt.Errorf("%w: field %q reads %d bits", ErrInvalidComponent, v.Field, v.Bits)
		}
		return err
	case *Skip:
		_, err := resolveWidth(s, v.Field)
		if err == nil && v.Bits <= 0 {
			err = fmt.Errorf("%w: skip of %q needs a positive width", ErrInvalidComponent, v.Field)
		}
		return err
	case *Padding:
		if v.Bits <= 0 || v.Bits > 64 {
			return fmt.Errorf("%w: padding width %d outside 1..64", ErrInvalidComponent, v.Bits)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s nested in struct", ErrInvalidComponent, c.ComponentKind())
	}
}

// resolveWidth finds the single leaf a component name refers to.
func resolveWidth(s *Schema, name string) (int, error) {
	paths := s.LeavesUnder(name)
	if len(paths) != 1 {
		if len(paths) == 0 {
			return 0, fmt.Errorf("%q: %w", name, ErrUnknownField)
		}
		return 0, fmt.Errorf("%w: %q matches %d fields", ErrInvalidComponent, name, len(paths))
	}
	def, _ := s.Lookup(paths[0])
	return def.BitWidth(), nil
}
