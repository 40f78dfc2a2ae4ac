package roihead

import (
	"errors"
	"fmt"

	"github.com/detkit/go-roihead/box"
)

// TrainingSamples holds the proposals selected for loss computation on one
// image.  Positive samples occupy the leading prefix of length NumPos,
// followed by the sampled negatives
type TrainingSamples struct {
	// Proposals are the sampled boxes, positives first
	Proposals []box.Box
	// MatchedIdx gives each sample's best matching ground truth index.
	// It is only meaningful for the positive prefix
	MatchedIdx []int
	// Labels are the assigned classes, the ground truth class for
	// positives and background 0 for negatives
	Labels []int
	// RegTargets holds 4 encoded regression values per positive sample
	RegTargets []float32
	// NumPos is the number of positive samples at the head of the set
	NumPos int
}

// SelectTrainingSamples matches the proposals of one image against its
// ground truth and subsamples them for loss computation.  The ground truth
// boxes are appended to the proposal set before matching so every instance
// has at least one exact match candidate: indices [0, len(proposals)) of
// the combined set are the original proposals and the remainder are ground
// truth boxes
func (r *ROIHead) SelectTrainingSamples(proposals []box.Box,
	target Target) (*TrainingSamples, error) {

	if len(target.Boxes) == 0 {
		return nil, errors.New("target has no ground truth boxes")
	}

	if len(target.Boxes) != len(target.Labels) {
		return nil, fmt.Errorf("target has %d boxes but %d labels",
			len(target.Boxes), len(target.Labels))
	}

	combined := make([]box.Box, 0, len(proposals)+len(target.Boxes))
	combined = append(combined, proposals...)
	combined = append(combined, target.Boxes...)

	ious := box.IoUMatrix(target.Boxes, combined)

	matchLabels, matchedIdx, err := r.matcher.Match(ious)

	if err != nil {
		return nil, err
	}

	posIdx, negIdx := r.sampler.Sample(matchLabels)

	samples := &TrainingSamples{
		Proposals:  make([]box.Box, 0, len(posIdx)+len(negIdx)),
		MatchedIdx: make([]int, 0, len(posIdx)+len(negIdx)),
		Labels:     make([]int, 0, len(posIdx)+len(negIdx)),
		RegTargets: make([]float32, 0, len(posIdx)*4),
		NumPos:     len(posIdx),
	}

	// positives carry their matched ground truth class and a regression
	// target encoding the transform onto the matched box
	for _, p := range posIdx {

		gt := matchedIdx[p]

		samples.Proposals = append(samples.Proposals, combined[p])
		samples.MatchedIdx = append(samples.MatchedIdx, gt)
		samples.Labels = append(samples.Labels, target.Labels[gt])
		samples.RegTargets = append(samples.RegTargets,
			r.coder.Encode(target.Boxes[gt], combined[p])...)
	}

	// negatives are forced to background class 0 regardless of their
	// best match
	for _, n := range negIdx {
		samples.Proposals = append(samples.Proposals, combined[n])
		samples.MatchedIdx = append(samples.MatchedIdx, matchedIdx[n])
		samples.Labels = append(samples.Labels, 0)
	}

	return samples, nil
}
