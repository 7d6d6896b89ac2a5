/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: synthesis.go
Description: Builds alternate byte layouts by replaying captured field bits through a list of
group components. Arrays emit a slice of every element of one field; structs interleave
several fields, skips and padding until their fields run dry. Synthesis only reads field
state, so any number of layouts may be built concurrently from one analyzer.
*/

package synthesis

import (
	"errors"
	"fmt"
	"io"

	"github.com/kleascm/bitlayout-analyzer/pkg/analyzer"
	"github.com/kleascm/bitlayout-analyzer/pkg/bitstream"
	"github.com/kleascm/bitlayout-analyzer/pkg/schema"
)

var (
	ErrFieldNotFound              = analyzer.ErrFieldNotFound
	ErrInvalidComponentType       = errors.New("invalid component type")
	ErrUnsupportedNestedComponent = errors.New("unsupported nested component")
	ErrByteAlignmentFailed        = errors.New("byte alignment failed")
)

// StateLookup resolves the field names used by components.
// *analyzer.SchemaAnalyzer satisfies it.
type StateLookup interface {
	FieldByName(name string) (*analyzer.FieldState, error)
}

// States is a fixed name to state mapping.
type States map[string]*analyzer.FieldState

// FieldByName implements StateLookup.
func (s States) FieldByName(name string) (*analyzer.FieldState, error) {
	f, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrFieldNotFound)
	}
	return f, nil
}

// GenerateGroupBytes builds the layout described by components, packing the
// output most significant bit first.
func GenerateGroupBytes(components []schema.GroupComponent, states StateLookup) ([]byte, error) {
	return GenerateGroupBytesOrder(components, states, bitstream.Msb)
}

// GenerateGroupBytesOrder is GenerateGroupBytes with a chosen output bit order.
func GenerateGroupBytesOrder(components []schema.GroupComponent, states StateLookup, order bitstream.BitOrder) ([]byte, error) {
	out := bitstream.NewWriter(order)
	for i, c := range components {
		var err error
		switch v := c.(type) {
		case *schema.Array:
			err = writeArray(out, v, states)
		case *schema.Struct:
			err = writeStruct(out, v, states)
		default:
			err = fmt.Errorf("%w: %s at top level", ErrInvalidComponentType, c.ComponentKind())
		}
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
	}
	if err := out.ByteAlign(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrByteAlignmentFailed, err)
	}
	return out.Bytes(), nil
}

func lookup(states StateLookup, name string) (*analyzer.FieldState, error) {
	f, err := states.FieldByName(name)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("%q: %w", name, ErrFieldNotFound)
	}
	return f, nil
}

// writeArray emits bits [Offset, Offset+Bits) of every element of a field.
// The reader always moves on by the field's full width, so trailing bits of
// each element after the slice are dropped.
func writeArray(out *bitstream.Writer, c *schema.Array, states StateLookup) error {
	f, err := lookup(states, c.Field)
	if err != nil {
		return fmt.Errorf("array: %w", err)
	}
	width := f.Bits
	bits := c.Bits
	if bits == 0 {
		bits = width
	}
	if c.Offset < 0 || bits < 0 || c.Offset+bits > width {
		return fmt.Errorf("%w: array %q slice %d+%d exceeds width %d", ErrInvalidComponentType, c.Field, c.Offset, bits, width)
	}

	r := f.NewReader()
	for r.RemainingBits() >= int64(width) {
		start := r.Position()
		if _, err := r.Seek(int64(c.Offset), io.SeekCurrent); err != nil {
			return fmt.Errorf("array %q seek: %w", c.Field, err)
		}
		v, err := r.Read(bits)
		if err != nil {
			return fmt.Errorf("array %q read: %w", c.Field, err)
		}
		if err := out.Write(bits, v); err != nil {
			return fmt.Errorf("array %q write: %w", c.Field, err)
		}
		if _, err := r.Seek(start+int64(width), io.SeekStart); err != nil {
			return fmt.Errorf("array %q seek: %w", c.Field, err)
		}
	}
	return nil
}

// member is one resolved struct component. Components naming the same field share a reader.
type member struct {
	kind   schema.ComponentKind
	name   string
	reader *bitstream.Reader
	bits   int
	value  uint64
}

// resolveStruct builds the local reader table before any output is produced.
func resolveStruct(c *schema.Struct, states StateLookup) ([]member, error) {
	readers := make(map[string]*bitstream.Reader)
	reader := func(name string) (*bitstream.Reader, int, error) {
		f, err := lookup(states, name)
		if err != nil {
			return nil, 0, err
		}
		r, ok := readers[f.Path]
		if !ok {
			r = f.NewReader()
			readers[f.Path] = r
		}
		return r, f.Bits, nil
	}

	members := make([]member, 0, len(c.Components))
	for i, inner := range c.Components {
		switch v := inner.(type) {
		case *schema.FieldRef:
			r, width, err := reader(v.Field)
			if err != nil {
				return nil, fmt.Errorf("struct field %d: %w", i, err)
			}
			bits := v.Bits
			if bits == 0 {
				bits = width
			}
			members = append(members, member{kind: schema.ComponentField, name: v.Field, reader: r, bits: bits})
		case *schema.Skip:
			if v.Bits <= 0 {
				return nil, fmt.Errorf("%w: skip of %q needs a positive width", ErrInvalidComponentType, v.Field)
			}
			r, _, err := reader(v.Field)
			if err != nil {
				return nil, fmt.Errorf("struct skip %d: %w", i, err)
			}
			members = append(members, member{kind: schema.ComponentSkip, name: v.Field, reader: r, bits: v.Bits})
		case *schema.Padding:
			members = append(members, member{kind: schema.ComponentPadding, bits: v.Bits, value: v.Value})
		case *schema.Array, *schema.Struct:
			return nil, fmt.Errorf("%w: %s inside struct", ErrUnsupportedNestedComponent, inner.ComponentKind())
		default:
			return nil, fmt.Errorf("%w: %s inside struct", ErrInvalidComponentType, inner.ComponentKind())
		}
	}
	return members, nil
}

// writeStruct runs passes over the members until a pass reads no field data.
// A field that runs out simply contributes nothing to the pass. Padding is
// written on every pass, including the final one that ends the loop.
func writeStruct(out *bitstream.Writer, c *schema.Struct, states StateLookup) error {
	members, err := resolveStruct(c, states)
	if err != nil {
		return err
	}

	for {
		progress := false
		for _, m := range members {
			switch m.kind {
			case schema.ComponentField:
				v, err := m.reader.Read(m.bits)
				if errors.Is(err, bitstream.ErrEndOfStream) {
					continue
				}
				if err != nil {
					return fmt.Errorf("struct field %q: %w", m.name, err)
				}
				if err := out.Write(m.bits, v); err != nil {
					return fmt.Errorf("struct field %q write: %w", m.name, err)
				}
				progress = true
			case schema.ComponentSkip:
				err := m.reader.Skip(int64(m.bits))
				if errors.Is(err, bitstream.ErrEndOfStream) {
					continue
				}
				if err != nil {
					return fmt.Errorf("struct skip %q: %w", m.name, err)
				}
				progress = true
			case schema.ComponentPadding:
				if err := out.Write(m.bits, m.value); err != nil {
					return fmt.Errorf("struct padding: %w", err)
				}
			}
		}
		if !progress {
			return nil
		}
	}
}
