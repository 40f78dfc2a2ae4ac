package head

import (
	"errors"
	"fmt"

	"github.com/detkit/go-roihead/tensor"
	"gonum.org/v1/gonum/mat"
)

// FastRCNNPredictor is a linear box head mapping pooled features to class
// logits and per class box regression deltas
type FastRCNNPredictor struct {
	// InFeatures is the flattened feature length per sample expected by
	// the weight matrices
	InFeatures int
	// NumClasses is the number of classes including background
	NumClasses int
	// ClassWeights is the InFeatures x NumClasses logit weight matrix
	ClassWeights *mat.Dense
	// ClassBias holds one bias per class
	ClassBias []float32
	// BoxWeights is the InFeatures x (NumClasses*4) regression weight
	// matrix
	BoxWeights *mat.Dense
	// BoxBias holds one bias per regression output
	BoxBias []float32
}

// NewFastRCNNPredictor returns a FastRCNNPredictor with zero initialised
// weights for the given flattened feature length and class count
func NewFastRCNNPredictor(inFeatures, numClasses int) *FastRCNNPredictor {
	return &FastRCNNPredictor{
		InFeatures:   inFeatures,
		NumClasses:   numClasses,
		ClassWeights: mat.NewDense(inFeatures, numClasses, nil),
		ClassBias:    make([]float32, numClasses),
		BoxWeights:   mat.NewDense(inFeatures, numClasses*4, nil),
		BoxBias:      make([]float32, numClasses*4),
	}
}

// Predict maps the pooled features to class logits (N x NumClasses) and box
// deltas (N x NumClasses*4)
func (p *FastRCNNPredictor) Predict(pooled *tensor.Tensor) (*tensor.Tensor,
	*tensor.Tensor, error) {

	x, err := flatten(pooled, p.InFeatures)

	if err != nil {
		return nil, nil, err
	}

	logits := linear(x, p.ClassWeights, p.ClassBias)
	deltas := linear(x, p.BoxWeights, p.BoxBias)

	return logits, deltas, nil
}

// MaskRCNNPredictor is a linear mask head mapping pooled features to per
// class mask logits
type MaskRCNNPredictor struct {
	// InFeatures is the flattened feature length per sample
	InFeatures int
	// NumClasses is the number of classes including background
	NumClasses int
	// MaskSize is the spatial size of the predicted mask logits
	MaskSize int
	// Weights is the InFeatures x (NumClasses*MaskSize*MaskSize) weight
	// matrix
	Weights *mat.Dense
	// Bias holds one bias per mask logit output
	Bias []float32
}

// NewMaskRCNNPredictor returns a MaskRCNNPredictor with zero initialised
// weights producing NumClasses channels of MaskSize x MaskSize logits
func NewMaskRCNNPredictor(inFeatures, numClasses, maskSize int) *MaskRCNNPredictor {

	outLen := numClasses * maskSize * maskSize

	return &MaskRCNNPredictor{
		InFeatures: inFeatures,
		NumClasses: numClasses,
		MaskSize:   maskSize,
		Weights:    mat.NewDense(inFeatures, outLen, nil),
		Bias:       make([]float32, outLen),
	}
}

// Predict maps the pooled features to mask logits shaped
// N x NumClasses x MaskSize x MaskSize
func (p *MaskRCNNPredictor) Predict(pooled *tensor.Tensor) (*tensor.Tensor, error) {

	x, err := flatten(pooled, p.InFeatures)

	if err != nil {
		return nil, err
	}

	flat := linear(x, p.Weights, p.Bias)

	out, err := tensor.FromData(flat.Data,
		flat.Dim(0), p.NumClasses, p.MaskSize, p.MaskSize)

	if err != nil {
		return nil, err
	}

	return out, nil
}

// flatten reshapes a pooled NxCxSxS tensor to an NxD sample matrix and
// verifies D against the weight matrix
func flatten(pooled *tensor.Tensor, inFeatures int) (*tensor.Tensor, error) {

	n := pooled.Dim(0)

	if n == 0 {
		return nil, errors.New("empty box set, nothing to predict")
	}

	d := pooled.Numel() / n

	if d != inFeatures {
		return nil, fmt.Errorf("pooled feature length %d does not match "+
			"predictor input size %d", d, inFeatures)
	}

	return tensor.FromData(pooled.Data, n, d)
}

// linear computes x*W + bias using gonum
func linear(x *tensor.Tensor, w *mat.Dense, bias []float32) *tensor.Tensor {

	n := x.Dim(0)
	d := x.Dim(1)

	data := make([]float64, n*d)

	for i, v := range x.Data {
		data[i] = float64(v)
	}

	var y mat.Dense
	y.Mul(mat.NewDense(n, d, data), w)

	out := tensor.FromDense(&y)

	for i := 0; i < out.Dim(0); i++ {
		row := out.Row(i)

		for j := range row {
			row[j] += bias[j]
		}
	}

	return out
}
