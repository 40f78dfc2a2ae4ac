package match

import (
	"errors"
)

// Label values assigned to each proposal by the Matcher
const (
	// Negative marks a proposal as background
	Negative int8 = 0
	// Positive marks a proposal as matching a ground truth object
	Positive int8 = 1
	// Ignore marks a proposal falling between the background and
	// foreground thresholds which is excluded from sampling
	Ignore int8 = -1
)

// Matcher assigns each proposal a positive/negative/ignore label based on
// its best IoU overlap with the ground truth boxes
type Matcher struct {
	// FgThreshold is the minimum IoU for a proposal to be considered
	// foreground
	FgThreshold float32
	// BgThreshold is the IoU below which a proposal is considered
	// background.  Proposals with best IoU in [BgThreshold, FgThreshold)
	// are ignored
	BgThreshold float32
}

// NewMatcher returns a Matcher using the given foreground and background
// IoU thresholds
func NewMatcher(fgThreshold, bgThreshold float32) Matcher {
	return Matcher{
		FgThreshold: fgThreshold,
		BgThreshold: bgThreshold,
	}
}

// Match takes the IoU matrix between ground truth boxes (rows) and
// proposals (columns) and returns a label per proposal along with the index
// of its best matching ground truth box.  The matched index is defined for
// every proposal but is only meaningful where the label is Positive
func (m Matcher) Match(ious [][]float32) ([]int8, []int, error) {

	if len(ious) == 0 {
		return nil, nil, errors.New("matcher requires at least one ground truth box")
	}

	numProposals := len(ious[0])

	labels := make([]int8, numProposals)
	matchedIdx := make([]int, numProposals)

	for j := 0; j < numProposals; j++ {

		bestIoU := ious[0][j]
		bestIdx := 0

		for i := 1; i < len(ious); i++ {
			if ious[i][j] > bestIoU {
				bestIoU = ious[i][j]
				bestIdx = i
			}
		}

		matchedIdx[j] = bestIdx

		switch {
		case bestIoU >= m.FgThreshold:
			labels[j] = Positive
		case bestIoU < m.BgThreshold:
			labels[j] = Negative
		default:
			labels[j] = Ignore
		}
	}

	return labels, matchedIdx, nil
}
