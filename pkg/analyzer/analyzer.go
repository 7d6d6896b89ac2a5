/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: analyzer.go
Description: SchemaAnalyzer ingests fixed-size records described by a schema. Every record is
split into its leaf fields, each field's bits are appended to that field's own buffer and the
field histograms are updated. An analyzer is owned by a single goroutine; analyze files in
parallel by creating one analyzer per file.
*/

package analyzer

import (
	"errors"
	"fmt"
	"io"

	"github.com/kleascm/bitlayout-analyzer/pkg/bitstream"
	"github.com/kleascm/bitlayout-analyzer/pkg/compression"
	"github.com/kleascm/bitlayout-analyzer/pkg/offset"
	"github.com/kleascm/bitlayout-analyzer/pkg/schema"
	"github.com/sirupsen/logrus"
)

var (
	ErrFieldNotFound  = errors.New("field not found")
	ErrAmbiguousField = errors.New("field name is ambiguous")
	ErrWidthMismatch  = errors.New("leaf widths do not add up to the record width")
)

// Options configures a SchemaAnalyzer.
type Options struct {
	// Compression is carried for the metrics computed after ingestion.
	Compression compression.Options
	Logger      logrus.FieldLogger
	// ExpectedEntries pre-sizes the per-field capture buffers. Zero lets them grow on demand.
	ExpectedEntries int
}

// leafPlan is the per-record work for one leaf, in record order.
type leafPlan struct {
	state   int
	bits    int
	filters []schema.Condition
}

// SchemaAnalyzer accumulates field state for every record it is given.
type SchemaAnalyzer struct {
	schema *schema.Schema
	opts   Options
	log    logrus.FieldLogger

	fields []*FieldState
	index  map[string]int
	plan   []leafPlan

	recordBits  int
	recordBytes int
	entries     uint64
	raw         []byte
}

// New builds one FieldState per schema leaf.
func New(s *schema.Schema, opts Options) (*SchemaAnalyzer, error) {
	if s == nil || s.Root == nil {
		return nil, fmt.Errorf("analyzer: schema has no root group")
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	a := &SchemaAnalyzer{
		schema:      s,
		opts:        opts,
		log:         log,
		index:       make(map[string]int),
		recordBits:  s.TotalBits(),
		recordBytes: s.TotalBytes(),
	}

	total := 0
	for _, leaf := range s.Leaves() {
		state := newFieldState(leaf.Name, leaf.Path, leaf.Depth, leaf.Field.BitWidth(),
			leaf.Field.BitOrder, leaf.SkipFrequencyAnalysis, opts.ExpectedEntries)
		a.index[leaf.Path] = len(a.fields)
		a.plan = append(a.plan, leafPlan{
			state:   len(a.fields),
			bits:    state.Bits,
			filters: leaf.Field.SkipIfNot,
		})
		a.fields = append(a.fields, state)
		total += state.Bits
	}
	if total != a.recordBits {
		return nil, fmt.Errorf("%w: leaves cover %d bits, root declares %d", ErrWidthMismatch, total, a.recordBits)
	}

	a.log.WithFields(logrus.Fields{
		"schema":      s.Metadata.Name,
		"fields":      len(a.fields),
		"record_bits": a.recordBits,
	}).Debug("Analyzer ready")
	return a, nil
}

// AddEntry ingests one record. The record must hold at least the schema's
// record width; a short record fails with bitstream.ErrEndOfStream and leaves
// the analyzer unchanged. Extra trailing bytes are ignored.
func (a *SchemaAnalyzer) AddEntry(record []byte) error {
	if int64(len(record))*8 < int64(a.recordBits) {
		return fmt.Errorf("record %d: %d bytes, need %d bits: %w",
			a.entries, len(record), a.recordBits, bitstream.ErrEndOfStream)
	}
	record = record[:a.recordBytes]

	r := bitstream.NewReader(record, a.schema.BitOrder)
	for _, p := range a.plan {
		raw, err := r.Read(p.bits)
		if err != nil {
			// unreachable after the length check unless the plan and schema disagree
			return fmt.Errorf("record %d field %q: %w", a.entries, a.fields[p.state].Path, err)
		}
		state := a.fields[p.state]
		if len(p.filters) > 0 && !offset.MatchesAll(p.filters, record) {
			state.Skipped++
			continue
		}
		if err := state.observe(raw, a.schema.BitOrder); err != nil {
			return fmt.Errorf("record %d: %w", a.entries, err)
		}
	}

	a.raw = append(a.raw, record...)
	a.entries++
	return nil
}

// AddEntries splits data into records and ingests them in order. It returns
// the number of records ingested. A trailing partial record is reported as
// an error after every complete record has been ingested.
func (a *SchemaAnalyzer) AddEntries(data []byte) (int, error) {
	n := 0
	for len(data) > 0 {
		size := a.recordBytes
		if size > len(data) {
			size = len(data)
		}
		if err := a.AddEntry(data[:size]); err != nil {
			return n, err
		}
		data = data[size:]
		n++
	}
	if n > 0 {
		a.log.WithFields(logrus.Fields{
			"records": n,
			"total":   a.entries,
		}).Debug("Records ingested")
	}
	return n, nil
}

// Schema returns the schema the analyzer was built from.
func (a *SchemaAnalyzer) Schema() *schema.Schema { return a.schema }

// Options returns the analyzer options.
func (a *SchemaAnalyzer) Options() Options { return a.opts }

// Logger returns the logger used by the analyzer
func (a *SchemaAnalyzer) Logger() logrus.FieldLogger { return a.log }

// Entries returns the number of ingested records.
func (a *SchemaAnalyzer) Entries() uint64 { return a.entries }

// RawEntries returns all ingested records concatenated.
func (a *SchemaAnalyzer) RawEntries() []byte { return a.raw }

// Fields returns the field states in record order.
func (a *SchemaAnalyzer) Fields() []*FieldState { return a.fields }

// Field returns the state for a full dotted path.
func (a *SchemaAnalyzer) Field(path string) (*FieldState, bool) {
	i, ok := a.index[path]
	if !ok {
		return nil, false
	}
	return a.fields[i], true
}

// FieldByName resolves a full path or a bare leaf name to exactly one field.
func (a *SchemaAnalyzer) FieldByName(name string) (*FieldState, error) {
	if f, ok := a.Field(name); ok {
		return f, nil
	}
	paths := a.schema.LeavesUnder(name)
	switch len(paths) {
	case 0:
		return nil, fmt.Errorf("%q: %w", name, ErrFieldNotFound)
	case 1:
		f, _ := a.Field(paths[0])
		return f, nil
	default:
		return nil, fmt.Errorf("%q matches %v: %w", name, paths, ErrAmbiguousField)
	}
}
