package roihead

import (
	"errors"
	"fmt"

	"github.com/detkit/go-roihead/box"
	"github.com/detkit/go-roihead/loss"
	"github.com/detkit/go-roihead/tensor"
)

// trainMasks runs the mask branch over the positive sample prefix and adds
// the mask loss to losses.  An image without positive samples short
// circuits to a zero loss without invoking the pooler or predictor
func (r *ROIHead) trainMasks(features *tensor.Tensor,
	samples *TrainingSamples, target *Target, imgW, imgH float32,
	losses *Losses) error {

	if samples.NumPos == 0 {
		losses.Mask = 0
		return nil
	}

	if len(target.Masks) != len(target.Boxes) {
		return errors.New("mask branch requires one ground truth mask per box")
	}

	maskProposals := samples.Proposals[:samples.NumPos]
	posMatchedIdx := samples.MatchedIdx[:samples.NumPos]
	maskLabels := samples.Labels[:samples.NumPos]

	pooled, err := r.maskBranch.Pool.Pool(features, maskProposals, imgW, imgH)

	if err != nil {
		return fmt.Errorf("mask feature pooling failed: %w", err)
	}

	maskLogits, err := r.maskBranch.Predictor.Predict(pooled)

	if err != nil {
		return fmt.Errorf("mask prediction failed: %w", err)
	}

	losses.Mask, err = loss.Mask(maskLogits, maskProposals, posMatchedIdx,
		maskLabels, target.Masks)

	if err != nil {
		return fmt.Errorf("mask loss failed: %w", err)
	}

	return nil
}

// inferMasks runs the mask branch over the final detection boxes and
// attaches one SxS probability mask per detection to the result.  An image
// without detections short circuits to an empty mask set
func (r *ROIHead) inferMasks(features *tensor.Tensor, result *Result,
	imgW, imgH float32) error {

	if len(result.Detections) == 0 {
		result.Masks = make([]*tensor.Tensor, 0)
		return nil
	}

	boxes := make([]box.Box, len(result.Detections))

	for i, det := range result.Detections {
		boxes[i] = det.Box
	}

	pooled, err := r.maskBranch.Pool.Pool(features, boxes, imgW, imgH)

	if err != nil {
		return fmt.Errorf("mask feature pooling failed: %w", err)
	}

	maskLogits, err := r.maskBranch.Predictor.Predict(pooled)

	if err != nil {
		return fmt.Errorf("mask prediction failed: %w", err)
	}

	size := r.maskBranch.Size

	if len(maskLogits.Shape) != 4 || maskLogits.Dim(0) != len(boxes) ||
		maskLogits.Dim(2) != size || maskLogits.Dim(3) != size {
		return fmt.Errorf("expected mask logits %dxCx%dx%d, got shape %v",
			len(boxes), size, size, maskLogits.Shape)
	}

	numClasses := maskLogits.Dim(1)

	result.Masks = make([]*tensor.Tensor, len(result.Detections))

	// keep only the channel of each detection's predicted class
	for i, det := range result.Detections {

		if det.Class < 0 || det.Class >= numClasses {
			return fmt.Errorf("detection class %d outside mask channels %d",
				det.Class, numClasses)
		}

		start := (i*numClasses + det.Class) * size * size

		channel := make([]float32, size*size)
		copy(channel, maskLogits.Data[start:start+size*size])

		logits, err := tensor.FromData(channel, size, size)

		if err != nil {
			return err
		}

		result.Masks[i] = logits.Sigmoid()
	}

	return nil
}
