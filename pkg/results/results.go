/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: results.go
Description: Turns an analyzer's captured state into metrics. Every field buffer, the raw
records and every comparison layout are measured by the compression provider; layouts are
synthesized and measured in parallel since synthesis only reads field state.
*/

package results

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/kleascm/bitlayout-analyzer/pkg/analyzer"
	"github.com/kleascm/bitlayout-analyzer/pkg/bitstream"
	"github.com/kleascm/bitlayout-analyzer/pkg/compression"
	"github.com/kleascm/bitlayout-analyzer/pkg/schema"
	"github.com/kleascm/bitlayout-analyzer/pkg/synthesis"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Comparison kinds
const (
	KindSplit  = "split"
	KindCustom = "custom"
)

// FieldMetrics are the measurements of one field buffer.
type FieldMetrics struct {
	Name           string              `json:"name"`
	Path           string              `json:"path"`
	Depth          int                 `json:"depth"`
	Bits           int                 `json:"bits"`
	BitOrder       string              `json:"bit_order"`
	Count          uint64              `json:"count"`
	Skipped        uint64              `json:"skipped,omitempty"`
	DistinctValues int                 `json:"distinct_values"`
	Metrics        compression.Metrics `json:"metrics"`
	BitCounts      []analyzer.BitCount `json:"bit_counts"`
	ValueCounts    map[uint64]uint64   `json:"value_counts,omitempty"`
}

// LayoutMetrics are the measurements of one synthesized layout.
type LayoutMetrics struct {
	Name    string              `json:"name"`
	Metrics compression.Metrics `json:"metrics"`
	// Deltas against the baseline; zero for the baseline itself.
	SizeDelta          int     `json:"size_delta"`
	EstimatedSizeDelta float64 `json:"estimated_size_delta"`
}

// ComparisonResult holds a baseline layout and its alternatives.
type ComparisonResult struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Kind        string          `json:"kind"`
	Baseline    LayoutMetrics   `json:"baseline"`
	Comparisons []LayoutMetrics `json:"comparisons"`
}

// AnalysisResults is everything measured for one analysis run.
type AnalysisResults struct {
	RunID       string              `json:"run_id"`
	Schema      string              `json:"schema"`
	Sources     []string            `json:"sources,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	Entries     uint64              `json:"entries"`
	Record      compression.Metrics `json:"record"`
	Fields      []FieldMetrics      `json:"fields"`
	Comparisons []ComparisonResult  `json:"comparisons,omitempty"`
}

// Field returns the metrics for a field path.
func (r *AnalysisResults) Field(path string) (FieldMetrics, bool) {
	for _, f := range r.Fields {
		if f.Path == path {
			return f, true
		}
	}
	return FieldMetrics{}, false
}

// Comparison returns a comparison by name.
func (r *AnalysisResults) Comparison(name string) (ComparisonResult, bool) {
	for _, c := range r.Comparisons {
		if c.Name == name {
			return c, true
		}
	}
	return ComparisonResult{}, false
}

// layoutJob is one layout to synthesize and measure.
type layoutJob struct {
	comparison int
	layout     int // -1 for the baseline
	components []schema.GroupComponent
	order      bitstream.BitOrder
}

// Compute measures the analyzer's fields, records and comparison layouts.
func Compute(ctx context.Context, a *analyzer.SchemaAnalyzer, p *compression.Provider) (*AnalysisResults, error) {
	s := a.Schema()
	log := a.Logger()
	res := &AnalysisResults{
		RunID:     uuid.NewString(),
		Schema:    s.Metadata.Name,
		CreatedAt: time.Now(),
		Entries:   a.Entries(),
		Fields:    make([]FieldMetrics, len(a.Fields())),
	}

	comparisons, jobs := planComparisons(s)
	res.Comparisons = comparisons

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	g.Go(func() error {
		m, err := p.Measure(a.RawEntries())
		if err != nil {
			return fmt.Errorf("records: %w", err)
		}
		res.Record = m
		return nil
	})

	for i, f := range a.Fields() {
		i, f := i, f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := p.Measure(f.Data())
			if err != nil {
				return fmt.Errorf("field %q: %w", f.Path, err)
			}
			res.Fields[i] = fieldMetrics(f, m)
			return nil
		})
	}

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cmp := &res.Comparisons[job.comparison]
			data, err := synthesis.GenerateGroupBytesOrder(job.components, a, job.order)
			if err != nil {
				return fmt.Errorf("comparison %q: %w", cmp.Name, err)
			}
			m, err := p.Measure(data)
			if err != nil {
				return fmt.Errorf("comparison %q: %w", cmp.Name, err)
			}
			if job.layout < 0 {
				cmp.Baseline.Metrics = m
			} else {
				cmp.Comparisons[job.layout].Metrics = m
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range res.Comparisons {
		res.Comparisons[i].updateDeltas()
		log.WithFields(logrus.Fields{
			"comparison": res.Comparisons[i].Name,
			"kind":       res.Comparisons[i].Kind,
			"baseline":   res.Comparisons[i].Baseline.Metrics.CompressedSize,
		}).Debug("Comparison measured")
	}
	return res, nil
}

func fieldMetrics(f *analyzer.FieldState, m compression.Metrics) FieldMetrics {
	fm := FieldMetrics{
		Name:           f.Name,
		Path:           f.Path,
		Depth:          f.Depth,
		Bits:           f.Bits,
		BitOrder:       f.BitOrder.String(),
		Count:          f.Count,
		Skipped:        f.Skipped,
		DistinctValues: len(f.ValueCounts),
		Metrics:        m,
		BitCounts:      append([]analyzer.BitCount(nil), f.BitCounts...),
	}
	if f.ValueCounts != nil {
		fm.ValueCounts = make(map[uint64]uint64, len(f.ValueCounts))
		for v, c := range f.ValueCounts {
			fm.ValueCounts[v] = c
		}
	}
	return fm
}

// planComparisons lays out result slots for every comparison and the layouts that fill them.
func planComparisons(s *schema.Schema) ([]ComparisonResult, []layoutJob) {
	var (
		out  []ComparisonResult
		jobs []layoutJob
	)
	for _, split := range s.Analysis.SplitGroups {
		idx := len(out)
		out = append(out, ComparisonResult{
			Name:        split.Name,
			Description: split.Description,
			Kind:        KindSplit,
			Baseline:    LayoutMetrics{Name: "group_1"},
			Comparisons: []LayoutMetrics{{Name: "group_2"}},
		})
		interleaved, separated := SplitLayouts(s, split)
		jobs = append(jobs,
			layoutJob{comparison: idx, layout: -1, components: interleaved},
			layoutJob{comparison: idx, layout: 0, components: separated})
	}
	for _, cmp := range s.Analysis.CompareGroups {
		idx := len(out)
		res := ComparisonResult{
			Name:        cmp.Name,
			Description: cmp.Description,
			Kind:        KindCustom,
			Baseline:    LayoutMetrics{Name: "baseline"},
		}
		jobs = append(jobs, layoutJob{comparison: idx, layout: -1, components: cmp.Baseline, order: cmp.BitOrder})
		for i, layout := range cmp.Comparisons {
			res.Comparisons = append(res.Comparisons, LayoutMetrics{Name: layout.Name})
			jobs = append(jobs, layoutJob{comparison: idx, layout: i, components: layout.Components, order: cmp.BitOrder})
		}
		out = append(out, res)
	}
	return out, jobs
}

// SplitLayouts returns the two layouts of a split comparison. Group 1 interleaves
// its fields record by record; group 2 stores every field as its own array.
// Group names expand to all leaves below them.
func SplitLayouts(s *schema.Schema, split schema.SplitComparison) (interleaved, separated []schema.GroupComponent) {
	st := &schema.Struct{}
	for _, name := range split.Group1 {
		for _, path := range s.LeavesUnder(name) {
			st.Components = append(st.Components, &schema.FieldRef{Field: path})
		}
	}
	interleaved = []schema.GroupComponent{st}
	for _, name := range split.Group2 {
		for _, path := range s.LeavesUnder(name) {
			separated = append(separated, &schema.Array{Field: path})
		}
	}
	return interleaved, separated
}

func (c *ComparisonResult) updateDeltas() {
	base := c.Baseline.Metrics
	for i := range c.Comparisons {
		m := c.Comparisons[i].Metrics
		c.Comparisons[i].SizeDelta = m.CompressedSize - base.CompressedSize
		c.Comparisons[i].EstimatedSizeDelta = m.EstimatedSize - base.EstimatedSize
	}
}
