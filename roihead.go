package roihead

import (
	"errors"
	"fmt"

	"github.com/detkit/go-roihead/box"
	"github.com/detkit/go-roihead/loss"
	"github.com/detkit/go-roihead/match"
	"github.com/detkit/go-roihead/tensor"
)

// minSize is the smallest box side length kept during detection
// post processing
const minSize = 1

// Pooler extracts a fixed size feature window from the image feature map
// for each box
type Pooler interface {
	Pool(features *tensor.Tensor, boxes []box.Box,
		imgW, imgH float32) (*tensor.Tensor, error)
}

// BoxPredictor maps pooled box features to class logits (N x numClasses)
// and per class box regression deltas (N x numClasses*4)
type BoxPredictor interface {
	Predict(pooled *tensor.Tensor) (classLogits, boxDeltas *tensor.Tensor,
		err error)
}

// MaskPredictor maps pooled mask features to per class mask logits
// (N x numClasses x S x S)
type MaskPredictor interface {
	Predict(pooled *tensor.Tensor) (*tensor.Tensor, error)
}

// Target holds the ground truth annotations of one image used in training
// mode
type Target struct {
	// Boxes are the ground truth object boxes
	Boxes []box.Box
	// Labels are the 1-indexed object classes aligned to Boxes.  Class 0
	// is reserved for background
	Labels []int
	// Masks optionally holds one full image HxW binary mask per box,
	// required when the mask branch is enabled
	Masks []*tensor.Tensor
}

// Detection is a single detected object produced in inference mode
type Detection struct {
	// Box is the detected object location in image coordinates
	Box box.Box
	// Class is the 1-indexed object class label
	Class int
	// Score is the softmax confidence of the detection
	Score float32
	// ID is a unique ID assigned to the detection result
	ID int64
}

// Result holds the inference outputs of one image
type Result struct {
	// Detections are the kept boxes after score filtering and per class
	// NMS.  A region may appear under multiple classes when it passed
	// several class thresholds
	Detections []Detection
	// Masks holds one SxS probability mask per detection when the mask
	// branch is enabled, aligned by index to Detections
	Masks []*tensor.Tensor
}

// Losses holds the training outputs of one image
type Losses struct {
	// Classifier is the proposal classification loss
	Classifier float32
	// BoxReg is the box regression loss over positive samples
	BoxReg float32
	// Mask is the mask prediction loss, zero when the mask branch is
	// disabled or the image has no positive samples
	Mask float32
}

// MaskBranch pairs the mask feature pooler with the mask predictor.  The
// branch is optional, a ROIHead without one skips mask processing entirely
type MaskBranch struct {
	// Pool extracts mask features for a set of boxes
	Pool Pooler
	// Predictor maps mask features to per class mask logits
	Predictor MaskPredictor
	// Size is the expected spatial size of the predicted masks
	Size int
}

// Params defines the fixed per instance configuration of a ROIHead
type Params struct {
	// FgIoUThreshold is the minimum IoU for a proposal to match a ground
	// truth box as foreground
	FgIoUThreshold float32
	// BgIoUThreshold is the IoU below which a proposal is labelled
	// background.  Proposals between the two thresholds are ignored
	BgIoUThreshold float32
	// NumSamples is the number of proposals sampled per image in
	// training mode
	NumSamples int
	// PositiveFraction is the target fraction of positive samples drawn
	// by the balanced sampler
	PositiveFraction float32
	// RegWeights are the box coder regression weights (wx, wy, ww, wh)
	RegWeights [4]float32
	// ScoreThreshold is the minimum class confidence for a detection to
	// be considered during post processing
	ScoreThreshold float32
	// NMSThreshold is the Non-Maximum Suppression threshold used for
	// defining the maximum allowed Intersection Over Union (IoU) between
	// two bounding boxes for both to be kept
	NMSThreshold float32
	// MaxDetections is the maximum number of detections kept per class
	MaxDetections int
	// TrainMode selects between training (loss computation over sampled
	// proposals) and inference (detection post processing).  The mode is
	// fixed at construction
	TrainMode bool
}

// DefaultParams returns Params configured with common values for a Mask
// R-CNN style detector:
// - Foreground/background IoU thresholds: 0.5 / 0.5
// - Samples per image: 512 at 0.25 positive fraction
// - Regression weights: (10, 10, 5, 5)
// - Score threshold: 0.05
// - NMS threshold: 0.5
// - Maximum detections per class: 100
func DefaultParams() Params {
	return Params{
		FgIoUThreshold:   0.5,
		BgIoUThreshold:   0.5,
		NumSamples:       512,
		PositiveFraction: 0.25,
		RegWeights:       [4]float32{10, 10, 5, 5},
		ScoreThreshold:   0.05,
		NMSThreshold:     0.5,
		MaxDetections:    100,
		TrainMode:        false,
	}
}

// ROIHead is the region of interest processing stage of a two stage
// detector.  In training mode it matches proposals against ground truth,
// subsamples them and computes losses.  In inference mode it decodes and
// filters box predictions into final detections.  An optional mask branch
// predicts per instance segmentation masks in both modes
type ROIHead struct {
	// Params are the configuration parameters fixed at construction
	Params Params

	boxPool      Pooler
	boxPredictor BoxPredictor
	maskBranch   *MaskBranch

	matcher match.Matcher
	sampler *match.BalancedSampler
	coder   box.Coder
	idGen   *idGenerator
}

// NewROIHead returns a ROIHead using the given box feature pooler and box
// predictor
func NewROIHead(boxPool Pooler, boxPredictor BoxPredictor, p Params) *ROIHead {
	return &ROIHead{
		Params:       p,
		boxPool:      boxPool,
		boxPredictor: boxPredictor,
		matcher:      match.NewMatcher(p.FgIoUThreshold, p.BgIoUThreshold),
		sampler:      match.NewBalancedSampler(p.NumSamples, p.PositiveFraction),
		coder:        box.NewCoder(p.RegWeights),
		idGen:        newIDGenerator(),
	}
}

// EnableMaskBranch attaches the optional mask pooler and predictor.  size
// is the spatial size of the predicted masks
func (r *ROIHead) EnableMaskBranch(pool Pooler, predictor MaskPredictor, size int) {
	r.maskBranch = &MaskBranch{
		Pool:      pool,
		Predictor: predictor,
		Size:      size,
	}
}

// SetSamplerSeed reseeds the balanced sampler for reproducible training
// sample selection
func (r *ROIHead) SetSamplerSeed(seed int64) {
	r.sampler = match.NewBalancedSamplerWithSeed(r.Params.NumSamples,
		r.Params.PositiveFraction, seed)
}

// Forward runs the ROI head over one image.  In training mode target must
// hold the image's ground truth and the returned result is empty.  In
// inference mode target is ignored and the returned losses are zero
func (r *ROIHead) Forward(features *tensor.Tensor, proposals []box.Box,
	imgW, imgH float32, target *Target) (*Result, *Losses, error) {

	result := &Result{}
	losses := &Losses{}

	var samples *TrainingSamples

	if r.Params.TrainMode {

		if target == nil {
			return nil, nil, errors.New("training mode requires a target")
		}

		var err error
		samples, err = r.SelectTrainingSamples(proposals, *target)

		if err != nil {
			return nil, nil, fmt.Errorf("sample selection failed: %w", err)
		}

		proposals = samples.Proposals
	}

	pooled, err := r.boxPool.Pool(features, proposals, imgW, imgH)

	if err != nil {
		return nil, nil, fmt.Errorf("box feature pooling failed: %w", err)
	}

	classLogits, boxDeltas, err := r.boxPredictor.Predict(pooled)

	if err != nil {
		return nil, nil, fmt.Errorf("box prediction failed: %w", err)
	}

	if r.Params.TrainMode {

		losses.Classifier, losses.BoxReg, err = loss.Detection(classLogits,
			boxDeltas, samples.Labels, samples.RegTargets)

		if err != nil {
			return nil, nil, fmt.Errorf("detection loss failed: %w", err)
		}

		if r.maskBranch != nil {
			if err := r.trainMasks(features, samples, target,
				imgW, imgH, losses); err != nil {
				return nil, nil, err
			}
		}

		return result, losses, nil
	}

	result.Detections, err = r.Detect(classLogits, boxDeltas, proposals,
		imgW, imgH)

	if err != nil {
		return nil, nil, fmt.Errorf("detection post processing failed: %w", err)
	}

	if r.maskBranch != nil {
		if err := r.inferMasks(features, result, imgW, imgH); err != nil {
			return nil, nil, err
		}
	}

	return result, losses, nil
}
