/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: merge.go
Description: Combines the results of several files analyzed with the same schema. Sizes and
counts are summed; entropy is averaged weighted by original size.
*/

package results

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kleascm/bitlayout-analyzer/pkg/analyzer"
	"github.com/kleascm/bitlayout-analyzer/pkg/compression"
)

// ErrIncompatibleResults is returned when merged results do not share a shape.
var ErrIncompatibleResults = errors.New("results are not compatible")

// Merge combines results into a new value under a fresh run ID. Inputs are not modified.
func Merge(all ...*AnalysisResults) (*AnalysisResults, error) {
	if len(all) == 0 {
		return nil, fmt.Errorf("merge: no results")
	}
	first := all[0]
	out := &AnalysisResults{
		RunID:       uuid.NewString(),
		Schema:      first.Schema,
		CreatedAt:   time.Now(),
		Fields:      make([]FieldMetrics, len(first.Fields)),
		Comparisons: make([]ComparisonResult, len(first.Comparisons)),
	}
	for i, f := range first.Fields {
		out.Fields[i] = FieldMetrics{
			Name:     f.Name,
			Path:     f.Path,
			Depth:    f.Depth,
			Bits:     f.Bits,
			BitOrder: f.BitOrder,
		}
	}
	for i, c := range first.Comparisons {
		out.Comparisons[i] = ComparisonResult{
			Name:        c.Name,
			Description: c.Description,
			Kind:        c.Kind,
			Baseline:    LayoutMetrics{Name: c.Baseline.Name},
			Comparisons: make([]LayoutMetrics, len(c.Comparisons)),
		}
		for j, l := range c.Comparisons {
			out.Comparisons[i].Comparisons[j].Name = l.Name
		}
	}

	for n, r := range all {
		if err := checkShape(first, r); err != nil {
			return nil, fmt.Errorf("merge result %d: %w", n, err)
		}
		out.Sources = append(out.Sources, r.Sources...)
		out.Entries += r.Entries
		out.Record = mergeMetrics(out.Record, r.Record)

		for i, f := range r.Fields {
			dst := &out.Fields[i]
			dst.Count += f.Count
			dst.Skipped += f.Skipped
			dst.Metrics = mergeMetrics(dst.Metrics, f.Metrics)
			dst.BitCounts = mergeBitCounts(dst.BitCounts, f.BitCounts)
			if f.ValueCounts != nil {
				if dst.ValueCounts == nil {
					dst.ValueCounts = make(map[uint64]uint64, len(f.ValueCounts))
				}
				for v, c := range f.ValueCounts {
					dst.ValueCounts[v] += c
				}
			}
		}

		for i, c := range r.Comparisons {
			dst := &out.Comparisons[i]
			dst.Baseline.Metrics = mergeMetrics(dst.Baseline.Metrics, c.Baseline.Metrics)
			for j, l := range c.Comparisons {
				dst.Comparisons[j].Metrics = mergeMetrics(dst.Comparisons[j].Metrics, l.Metrics)
			}
		}
	}

	for i := range out.Fields {
		out.Fields[i].DistinctValues = len(out.Fields[i].ValueCounts)
	}
	for i := range out.Comparisons {
		out.Comparisons[i].updateDeltas()
	}
	return out, nil
}

func checkShape(want, got *AnalysisResults) error {
	if want.Schema != got.Schema {
		return fmt.Errorf("%w: schema %q vs %q", ErrIncompatibleResults, want.Schema, got.Schema)
	}
	if len(want.Fields) != len(got.Fields) {
		return fmt.Errorf("%w: %d fields vs %d", ErrIncompatibleResults, len(want.Fields), len(got.Fields))
	}
	for i := range want.Fields {
		if want.Fields[i].Path != got.Fields[i].Path || want.Fields[i].Bits != got.Fields[i].Bits {
			return fmt.Errorf("%w: field %d is %q, want %q", ErrIncompatibleResults, i, got.Fields[i].Path, want.Fields[i].Path)
		}
	}
	if len(want.Comparisons) != len(got.Comparisons) {
		return fmt.Errorf("%w: %d comparisons vs %d", ErrIncompatibleResults, len(want.Comparisons), len(got.Comparisons))
	}
	for i := range want.Comparisons {
		w, g := want.Comparisons[i], got.Comparisons[i]
		if w.Name != g.Name || len(w.Comparisons) != len(g.Comparisons) {
			return fmt.Errorf("%w: comparison %d is %q, want %q", ErrIncompatibleResults, i, g.Name, w.Name)
		}
	}
	return nil
}

func mergeMetrics(a, b compression.Metrics) compression.Metrics {
	out := compression.Metrics{
		LZMatches:      a.LZMatches + b.LZMatches,
		CompressedSize: a.CompressedSize + b.CompressedSize,
		EstimatedSize:  a.EstimatedSize + b.EstimatedSize,
		OriginalSize:   a.OriginalSize + b.OriginalSize,
	}
	if out.OriginalSize > 0 {
		out.Entropy = (a.Entropy*float64(a.OriginalSize) + b.Entropy*float64(b.OriginalSize)) / float64(out.OriginalSize)
	}
	if a.CodecSizes != nil || b.CodecSizes != nil {
		out.CodecSizes = make(map[string]int, len(a.CodecSizes))
		for k, v := range a.CodecSizes {
			out.CodecSizes[k] += v
		}
		for k, v := range b.CodecSizes {
			out.CodecSizes[k] += v
		}
	}
	return out
}

func mergeBitCounts(dst, src []analyzer.BitCount) []analyzer.BitCount {
	if len(dst) < len(src) {
		grown := make([]analyzer.BitCount, len(src))
		copy(grown, dst)
		dst = grown
	}
	for i, bc := range src {
		dst[i].Zeros += bc.Zeros
		dst[i].Ones += bc.Ones
	}
	return dst
}
