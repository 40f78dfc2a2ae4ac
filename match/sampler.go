package match

import (
	"math/rand"
)

// BalancedSampler draws a fixed size subsample of proposals holding the
// positive/negative ratio close to a target fraction
type BalancedSampler struct {
	// NumSamples is the total number of proposals to sample per image
	NumSamples int
	// PositiveFraction is the target fraction of positive samples.  When
	// there are not enough positives the remainder is filled with
	// negatives
	PositiveFraction float32
	// rng is the random source used to draw the subsets
	rng *rand.Rand
}

// NewBalancedSampler returns a BalancedSampler for the given sample count
// and positive fraction seeded from the default random source
func NewBalancedSampler(numSamples int, positiveFraction float32) *BalancedSampler {
	return &BalancedSampler{
		NumSamples:       numSamples,
		PositiveFraction: positiveFraction,
		rng:              rand.New(rand.NewSource(rand.Int63())),
	}
}

// NewBalancedSamplerWithSeed returns a BalancedSampler using a fixed seed
// for reproducible sampling
func NewBalancedSamplerWithSeed(numSamples int, positiveFraction float32,
	seed int64) *BalancedSampler {

	return &BalancedSampler{
		NumSamples:       numSamples,
		PositiveFraction: positiveFraction,
		rng:              rand.New(rand.NewSource(seed)),
	}
}

// Sample takes the per proposal matcher labels and returns the indices of
// the sampled positive and negative proposals.  Ignored proposals are never
// sampled.  The sampler decides membership only, final class identity of
// negatives is owned by the caller
func (s *BalancedSampler) Sample(labels []int8) (positive, negative []int) {

	var posIdx, negIdx []int

	for i, label := range labels {
		switch label {
		case Positive:
			posIdx = append(posIdx, i)
		case Negative:
			negIdx = append(negIdx, i)
		}
	}

	numPos := int(float32(s.NumSamples) * s.PositiveFraction)

	if numPos > len(posIdx) {
		numPos = len(posIdx)
	}

	numNeg := s.NumSamples - numPos

	if numNeg > len(negIdx) {
		numNeg = len(negIdx)
	}

	positive = s.subset(posIdx, numPos)
	negative = s.subset(negIdx, numNeg)

	return positive, negative
}

// subset draws n elements from idx without replacement
func (s *BalancedSampler) subset(idx []int, n int) []int {

	if n >= len(idx) {
		out := make([]int, len(idx))
		copy(out, idx)
		return out
	}

	out := make([]int, 0, n)

	for _, p := range s.rng.Perm(len(idx))[:n] {
		out = append(out, idx[p])
	}

	return out
}
