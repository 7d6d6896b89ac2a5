/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: metrics.go
Description: Compression metric provider. Measures entropy, LZ matches, real codec sizes and
the estimated size for a buffer using a single set of options.
*/

package compression

import (
	"fmt"
)

// Default coefficients for the size estimator and the zstd level used for the primary metric.
const (
	DefaultZstdLevel         = 16
	DefaultLZMatchMultiplier = 0.375
	DefaultEntropyMultiplier = 1.0
)

// Options configures a Provider.
type Options struct {
	ZstdLevel         int
	LZMatchMultiplier float64
	EntropyMultiplier float64
	// Estimator defaults to DefaultSizeEstimator.
	Estimator SizeEstimator
	// Codecs lists extra codecs measured besides zstd.
	Codecs []string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		ZstdLevel:         DefaultZstdLevel,
		LZMatchMultiplier: DefaultLZMatchMultiplier,
		EntropyMultiplier: DefaultEntropyMultiplier,
		Estimator:         DefaultSizeEstimator,
	}
}

// Metrics are the compressibility measurements of one buffer.
type Metrics struct {
	Entropy        float64        `json:"entropy"`
	LZMatches      int            `json:"lz_matches"`
	CompressedSize int            `json:"zstd_size"`
	EstimatedSize  float64        `json:"estimated_size"`
	OriginalSize   int            `json:"original_size"`
	CodecSizes     map[string]int `json:"codec_sizes,omitempty"`
}

// Ratio returns compressed size over original size, 0 for empty input.
func (m Metrics) Ratio() float64 {
	if m.OriginalSize == 0 {
		return 0
	}
	return float64(m.CompressedSize) / float64(m.OriginalSize)
}

// Provider measures buffers. It holds no mutable state and is safe for concurrent use.
type Provider struct {
	opts   Options
	zstd   Codec
	extras []Codec
}

// NewProvider validates options and resolves the extra codecs.
func NewProvider(opts Options) (*Provider, error) {
	if opts.ZstdLevel < 1 || opts.ZstdLevel > 22 {
		return nil, fmt.Errorf("zstd level %d outside 1..22", opts.ZstdLevel)
	}
	if opts.LZMatchMultiplier < 0 || opts.EntropyMultiplier < 0 {
		return nil, fmt.Errorf("estimator multipliers must not be negative")
	}
	if opts.Estimator == nil {
		opts.Estimator = DefaultSizeEstimator
	}
	p := &Provider{opts: opts, zstd: zstdCodec{}}
	for _, name := range opts.Codecs {
		if name == "zstd" {
			continue
		}
		c, err := LookupCodec(name)
		if err != nil {
			return nil, err
		}
		p.extras = append(p.extras, c)
	}
	return p, nil
}

// Options returns the options the provider was built with.
func (p *Provider) Options() Options { return p.opts }

// Measure computes all metrics for data.
func (p *Provider) Measure(data []byte) (Metrics, error) {
	m := Metrics{
		Entropy:      Entropy(data),
		LZMatches:    EstimateLZMatches(data),
		OriginalSize: len(data),
	}
	size, err := p.zstd.CompressedSize(data, p.opts.ZstdLevel)
	if err != nil {
		return m, err
	}
	m.CompressedSize = size
	m.EstimatedSize = p.opts.Estimator(EstimatorInput{
		DataLen:           len(data),
		LZMatches:         m.LZMatches,
		Entropy:           m.Entropy,
		LZMatchMultiplier: p.opts.LZMatchMultiplier,
		EntropyMultiplier: p.opts.EntropyMultiplier,
	})
	if len(p.extras) > 0 {
		m.CodecSizes = make(map[string]int, len(p.extras))
		for _, c := range p.extras {
			n, err := c.CompressedSize(data, p.opts.ZstdLevel)
			if err != nil {
				return m, fmt.Errorf("%s: %w", c.Name(), err)
			}
			m.CodecSizes[c.Name()] = n
		}
	}
	return m, nil
}
