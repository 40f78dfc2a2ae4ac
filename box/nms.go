package box

import (
	"sort"
)

// NMS implements a greedy Non-Maximum Suppression algorithm.  Boxes are
// visited in order of descending score and any remaining box whose IoU with
// a kept box reaches the threshold is suppressed.  The returned indices of
// the kept boxes are ordered by descending score
func NMS(boxes []Box, scores []float32, threshold float32) []int {

	order := make([]int, len(boxes))

	for i := range order {
		order[i] = i
	}

	// sort candidate indices by descending score
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	suppressed := make([]bool, len(boxes))
	keep := make([]int, 0, len(boxes))

	for i, n := range order {

		if suppressed[n] {
			continue
		}

		keep = append(keep, n)

		for _, m := range order[i+1:] {

			if suppressed[m] {
				continue
			}

			if boxes[n].IoU(boxes[m]) >= threshold {
				suppressed[m] = true
			}
		}
	}

	return keep
}
