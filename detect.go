package roihead

import (
	"fmt"

	"github.com/detkit/go-roihead/box"
	"github.com/detkit/go-roihead/tensor"
)

// Detect converts raw box head outputs into final detections.  classLogits
// is N x numClasses, boxDeltas is N x numClasses*4 and proposals are the N
// boxes the predictions refer to.  Each foreground class is thresholded,
// decoded, clipped and suppressed independently, so a region may be
// returned under several class labels
func (r *ROIHead) Detect(classLogits, boxDeltas *tensor.Tensor,
	proposals []box.Box, imgW, imgH float32) ([]Detection, error) {

	if len(classLogits.Shape) != 2 {
		return nil, fmt.Errorf("expected 2D class logits, got shape %v",
			classLogits.Shape)
	}

	n := classLogits.Dim(0)
	numClasses := classLogits.Dim(1)

	if n != len(proposals) {
		return nil, fmt.Errorf("logit rows %d do not match proposal count %d",
			n, len(proposals))
	}

	if boxDeltas.Dim(0) != n || boxDeltas.Dim(1) != numClasses*4 {
		return nil, fmt.Errorf("expected box deltas %dx%d, got shape %v",
			n, numClasses*4, boxDeltas.Shape)
	}

	scores := classLogits.SoftmaxRows()

	detections := make([]Detection, 0)

	// class 0 is background and excluded from detection
	for c := 1; c < numClasses; c++ {

		var candBoxes []box.Box
		var candScores []float32

		for i := 0; i < n; i++ {

			score := scores.At(i, c)

			if score < r.Params.ScoreThreshold {
				continue
			}

			decoded := r.coder.Decode(boxDeltas.Row(i)[c*4:c*4+4],
				proposals[i])

			candBoxes = append(candBoxes, box.Clip(decoded, imgW, imgH))
			candScores = append(candScores, score)
		}

		// drop degenerate boxes before suppression
		sized := box.FilterSmall(candBoxes, minSize)

		keptBoxes := make([]box.Box, 0, len(sized))
		keptScores := make([]float32, 0, len(sized))

		for _, i := range sized {
			keptBoxes = append(keptBoxes, candBoxes[i])
			keptScores = append(keptScores, candScores[i])
		}

		keep := box.NMS(keptBoxes, keptScores, r.Params.NMSThreshold)

		if len(keep) > r.Params.MaxDetections {
			keep = keep[:r.Params.MaxDetections]
		}

		for _, i := range keep {
			detections = append(detections, Detection{
				Box:   keptBoxes[i],
				Class: c,
				Score: keptScores[i],
				ID:    r.idGen.getNext(),
			})
		}
	}

	return detections, nil
}
