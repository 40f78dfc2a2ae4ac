// Package loss implements the training objectives of the ROI head: the
// classification and box regression losses for sampled proposals and the
// per-instance binary mask loss.
package loss

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/detkit/go-roihead/box"
	"github.com/detkit/go-roihead/tensor"
)

// Detection calculates the classification and box regression losses for the
// sampled proposals.  classLogits is Nx(numClasses), boxDeltas is
// Nx(numClasses*4) and regTargets holds 4 encoded values per positive
// sample.  Positive samples must occupy the leading prefix of the sample
// set, with their count given by len(regTargets)/4
func Detection(classLogits, boxDeltas *tensor.Tensor, labels []int,
	regTargets []float32) (clsLoss, boxLoss float32, err error) {

	n := classLogits.Dim(0)

	if n != len(labels) {
		return 0, 0, fmt.Errorf("label count %d does not match logit rows %d",
			len(labels), n)
	}

	numPos := len(regTargets) / 4

	if numPos > n {
		return 0, 0, fmt.Errorf("positive count %d exceeds sample count %d",
			numPos, n)
	}

	clsLoss = CrossEntropy(classLogits, labels)

	if numPos == 0 {
		return clsLoss, 0, nil
	}

	// regression loss uses only the positive prefix, selecting each
	// sample's deltas at its ground truth class
	var reg float32

	for i := 0; i < numPos; i++ {

		row := boxDeltas.Row(i)
		c := labels[i]

		for k := 0; k < 4; k++ {
			reg += smoothL1(row[c*4+k] - regTargets[i*4+k])
		}
	}

	boxLoss = reg / float32(numPos)

	return clsLoss, boxLoss, nil
}

// CrossEntropy calculates the mean negative log likelihood of the given
// class labels under a softmax over the logit rows
func CrossEntropy(logits *tensor.Tensor, labels []int) float32 {

	n := logits.Dim(0)
	probs := logits.SoftmaxRows()

	var sum float32

	for i := 0; i < n; i++ {
		sum += -math32.Log(probs.At(i, labels[i]))
	}

	return sum / float32(n)
}

// smoothL1 is the Huber style regression penalty with transition point 1
func smoothL1(x float32) float32 {

	if x < 0 {
		x = -x
	}

	if x < 1 {
		return 0.5 * x * x
	}

	return x - 0.5
}

// Mask calculates the mean binary cross entropy between the predicted mask
// logits and the ground truth masks.  maskLogits is NxCxSxS covering the
// positive samples, proposals are their boxes, matchedIdx and labels give
// each positive's ground truth instance and class, and gtMasks holds one
// full image HxW binary mask per ground truth instance
func Mask(maskLogits *tensor.Tensor, proposals []box.Box, matchedIdx []int,
	labels []int, gtMasks []*tensor.Tensor) (float32, error) {

	n := maskLogits.Dim(0)
	size := maskLogits.Dim(2)

	if n != len(proposals) || n != len(matchedIdx) || n != len(labels) {
		return 0, fmt.Errorf("mask loss inputs disagree on sample count: "+
			"%d logits, %d proposals, %d matches, %d labels",
			n, len(proposals), len(matchedIdx), len(labels))
	}

	var sum float32
	count := 0

	for i := 0; i < n; i++ {

		gt := gtMasks[matchedIdx[i]]
		target := projectMask(gt, proposals[i], size)

		for r := 0; r < size; r++ {
			for c := 0; c < size; c++ {
				logit := maskLogits.At(i, labels[i], r, c)
				sum += bceWithLogits(logit, target.At(r, c))
				count++
			}
		}
	}

	if count == 0 {
		return 0, nil
	}

	return sum / float32(count), nil
}

// projectMask samples the region of the ground truth mask covered by the
// proposal box into a fixed size SxS grid using nearest neighbour lookup
func projectMask(gt *tensor.Tensor, b box.Box, size int) *tensor.Tensor {

	h := gt.Dim(0)
	w := gt.Dim(1)

	out := tensor.New(size, size)

	for r := 0; r < size; r++ {

		y := int(b.Y1 + (float32(r)+0.5)*b.Height()/float32(size))

		if y < 0 {
			y = 0
		}

		if y > h-1 {
			y = h - 1
		}

		for c := 0; c < size; c++ {

			x := int(b.X1 + (float32(c)+0.5)*b.Width()/float32(size))

			if x < 0 {
				x = 0
			}

			if x > w-1 {
				x = w - 1
			}

			out.Set(gt.At(y, x), r, c)
		}
	}

	return out
}

// bceWithLogits is the numerically stable binary cross entropy between a
// raw logit x and a target z in [0, 1]
func bceWithLogits(x, z float32) float32 {

	absX := x

	if absX < 0 {
		absX = -absX
	}

	loss := -x*z + math32.Log1p(math32.Exp(-absX))

	if x > 0 {
		loss += x
	}

	return loss
}
