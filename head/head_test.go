package head

import (
	"testing"

	"github.com/detkit/go-roihead/box"
	"github.com/detkit/go-roihead/tensor"
)

func TestAlignPoolerConstantFeature(t *testing.T) {

	// a constant feature map pools to the same constant everywhere
	features := tensor.New(2, 8, 8)

	for i := range features.Data {
		features.Data[i] = 3.5
	}

	pooler := NewAlignPooler(4)

	pooled, err := pooler.Pool(features,
		[]box.Box{box.New(8, 8, 48, 48)}, 64, 64)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int{1, 2, 4, 4}

	for i, s := range pooled.Shape {
		if s != want[i] {
			t.Fatalf("expected shape %v, got %v", want, pooled.Shape)
		}
	}

	for i, v := range pooled.Data {
		if diff := v - 3.5; diff > 1e-5 || diff < -1e-5 {
			t.Errorf("element %d: expected 3.5, got %f", i, v)
		}
	}
}

func TestAlignPoolerGradient(t *testing.T) {

	// a feature map increasing left to right pools increasing values
	features := tensor.New(1, 8, 8)

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			features.Set(float32(x), 0, y, x)
		}
	}

	pooler := NewAlignPooler(2)

	pooled, err := pooler.Pool(features,
		[]box.Box{box.New(0, 0, 64, 64)}, 64, 64)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !(pooled.At(0, 0, 0, 1) > pooled.At(0, 0, 0, 0)) {
		t.Errorf("expected pooled values to increase along x, got %v",
			pooled.Data)
	}
}

func TestAlignPoolerBadShape(t *testing.T) {

	pooler := NewAlignPooler(2)

	if _, err := pooler.Pool(tensor.New(8, 8), nil, 64, 64); err == nil {
		t.Errorf("expected error for non 3D feature tensor")
	}
}

func TestFastRCNNPredictor(t *testing.T) {

	// 2 input features, 2 classes.  Class logit c = sum of feature f
	// weighted by W[f][c] plus bias
	p := NewFastRCNNPredictor(2, 2)
	p.ClassWeights.Set(0, 0, 1.0)
	p.ClassWeights.Set(1, 1, 2.0)
	p.ClassBias = []float32{0.5, -0.5}

	pooled, _ := tensor.FromData([]float32{3, 4}, 1, 2, 1, 1)

	logits, deltas, err := p.Predict(pooled)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := logits.At(0, 0); got != 3.5 {
		t.Errorf("expected logit 3.5, got %f", got)
	}

	if got := logits.At(0, 1); got != 7.5 {
		t.Errorf("expected logit 7.5, got %f", got)
	}

	if deltas.Dim(0) != 1 || deltas.Dim(1) != 8 {
		t.Errorf("expected deltas shape 1x8, got %v", deltas.Shape)
	}
}

func TestFastRCNNPredictorShapeMismatch(t *testing.T) {

	p := NewFastRCNNPredictor(16, 2)

	pooled := tensor.New(1, 2, 2, 2)

	if _, _, err := p.Predict(pooled); err == nil {
		t.Errorf("expected error for feature length mismatch")
	}
}

func TestFastRCNNPredictorEmptyBoxSet(t *testing.T) {

	p := NewFastRCNNPredictor(4, 3)

	// an image can end up with zero boxes to predict on, which must
	// surface as an error rather than a panic
	if _, _, err := p.Predict(tensor.New(0, 1, 2, 2)); err == nil {
		t.Errorf("expected error for empty box set")
	}
}

func TestMaskRCNNPredictorEmptyBoxSet(t *testing.T) {

	p := NewMaskRCNNPredictor(4, 3, 2)

	if _, err := p.Predict(tensor.New(0, 1, 2, 2)); err == nil {
		t.Errorf("expected error for empty box set")
	}
}

func TestMaskRCNNPredictor(t *testing.T) {

	p := NewMaskRCNNPredictor(4, 3, 2)

	// bias only prediction: channel 1 logits set to 9
	for k := 0; k < 4; k++ {
		p.Bias[1*4+k] = 9
	}

	pooled := tensor.New(2, 1, 2, 2)

	logits, err := p.Predict(pooled)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int{2, 3, 2, 2}

	for i, s := range logits.Shape {
		if s != want[i] {
			t.Fatalf("expected shape %v, got %v", want, logits.Shape)
		}
	}

	if got := logits.At(0, 1, 0, 0); got != 9 {
		t.Errorf("expected bias logit 9, got %f", got)
	}

	if got := logits.At(1, 2, 1, 1); got != 0 {
		t.Errorf("expected zero logit, got %f", got)
	}
}
