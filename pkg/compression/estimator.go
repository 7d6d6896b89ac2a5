/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: estimator.go
Description: Pluggable compressed-size estimator and the tunable coefficients it uses.
*/

package compression

import "math"

// EstimatorInput carries the signals an estimator combines.
type EstimatorInput struct {
	DataLen           int
	LZMatches         int
	Entropy           float64
	LZMatchMultiplier float64
	EntropyMultiplier float64
}

// SizeEstimator predicts a compressed size in bytes.
type SizeEstimator func(in EstimatorInput) float64

// DefaultSizeEstimator discounts matched bytes and codes the rest at the measured entropy.
func DefaultSizeEstimator(in EstimatorInput) float64 {
	literals := float64(in.DataLen) - float64(in.LZMatches)*in.LZMatchMultiplier
	if literals < 0 {
		literals = 0
	}
	return math.Ceil(literals * in.Entropy * in.EntropyMultiplier / 8)
}
