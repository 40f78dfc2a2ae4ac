package roihead

import (
	"testing"

	"github.com/detkit/go-roihead/box"
	"github.com/detkit/go-roihead/tensor"
)

// newDetectHead returns an inference mode ROIHead with identity regression
// weights so zero deltas decode back onto the proposal
func newDetectHead(scoreThresh, nmsThresh float32, maxDet int) *ROIHead {

	p := DefaultParams()
	p.ScoreThreshold = scoreThresh
	p.NMSThreshold = nmsThresh
	p.MaxDetections = maxDet

	return NewROIHead(&stubPooler{}, &stubBoxPredictor{}, p)
}

func TestDetectScoreThreshold(t *testing.T) {

	r := newDetectHead(0.5, 0.5, 100)

	// proposal 0 scores 0.982 on class 1, proposal 1 scores 0.018
	logits, _ := tensor.FromData([]float32{
		0, 4,
		0, -4,
	}, 2, 2)
	deltas := tensor.New(2, 8)

	proposals := []box.Box{
		box.New(10, 10, 50, 50),
		box.New(100, 100, 150, 150),
	}

	dets, err := r.Detect(logits, deltas, proposals, 640, 480)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dets) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(dets))
	}

	for _, d := range dets {
		if d.Score < 0.5 {
			t.Errorf("returned score %f below threshold", d.Score)
		}
	}
}

func TestDetectNMSSuppression(t *testing.T) {

	r := newDetectHead(0.5, 0.5, 100)

	// boxes A and B overlap with IoU 0.8; B scores higher so A must be
	// suppressed by the class 1 NMS pass
	boxA := box.New(0, 0, 10, 100)
	boxB := box.New(0, 0, 10, 80)

	// softmax logit differences for scores 0.9 and 0.95
	logits, _ := tensor.FromData([]float32{
		0, 2.1972246,
		0, 2.9444389,
	}, 2, 2)
	deltas := tensor.New(2, 8)

	dets, err := r.Detect(logits, deltas, []box.Box{boxA, boxB}, 640, 480)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dets) != 1 {
		t.Fatalf("expected 1 detection after NMS, got %d", len(dets))
	}

	if !near(dets[0].Score, 0.95, 1e-3) {
		t.Errorf("expected the higher scoring box kept, got score %f",
			dets[0].Score)
	}

	if !near(dets[0].Box.Y2, 80, 1e-2) {
		t.Errorf("expected box B kept, got %v", dets[0].Box)
	}
}

func TestDetectPerClassCap(t *testing.T) {

	r := newDetectHead(0.5, 0.5, 2)

	// three disjoint boxes all confident on class 1
	logits, _ := tensor.FromData([]float32{
		0, 4,
		0, 5,
		0, 3,
	}, 3, 2)
	deltas := tensor.New(3, 8)

	proposals := []box.Box{
		box.New(0, 0, 20, 20),
		box.New(100, 100, 120, 120),
		box.New(200, 200, 220, 220),
	}

	dets, err := r.Detect(logits, deltas, proposals, 640, 480)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dets) != 2 {
		t.Fatalf("expected cap of 2 detections, got %d", len(dets))
	}

	// kept detections are the two highest scoring ones
	if !(dets[0].Score > dets[1].Score) {
		t.Errorf("expected detections in descending score order")
	}

	if !near(dets[1].Score, 0.982, 1e-2) {
		t.Errorf("expected second detection score 0.982, got %f", dets[1].Score)
	}
}

func TestDetectCrossClassDuplicates(t *testing.T) {

	r := newDetectHead(0.3, 0.5, 100)

	// one proposal split evenly between class 1 and class 2: it passes
	// both thresholds and is returned under both labels
	logits, _ := tensor.FromData([]float32{-10, 1, 1}, 1, 3)
	deltas := tensor.New(1, 12)

	proposals := []box.Box{box.New(10, 10, 60, 60)}

	dets, err := r.Detect(logits, deltas, proposals, 640, 480)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dets) != 2 {
		t.Fatalf("expected the region under both classes, got %d detections",
			len(dets))
	}

	if dets[0].Class != 1 || dets[1].Class != 2 {
		t.Errorf("expected classes 1 and 2, got %d and %d",
			dets[0].Class, dets[1].Class)
	}

	if dets[0].Box != dets[1].Box {
		t.Errorf("expected identical boxes across classes")
	}
}

func TestDetectClipsToImage(t *testing.T) {

	r := newDetectHead(0.5, 0.5, 100)

	logits, _ := tensor.FromData([]float32{0, 4}, 1, 2)
	deltas := tensor.New(1, 8)

	// proposal extends past the image bounds
	proposals := []box.Box{box.New(-20, -20, 700, 500)}

	dets, err := r.Detect(logits, deltas, proposals, 640, 480)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dets) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(dets))
	}

	b := dets[0].Box

	if b.X1 < 0 || b.Y1 < 0 || b.X2 > 640 || b.Y2 > 480 {
		t.Errorf("detection box not clipped to image: %v", b)
	}
}

func TestDetectIdempotent(t *testing.T) {

	r := newDetectHead(0.5, 0.5, 100)

	logits, _ := tensor.FromData([]float32{
		0, 4,
		0, 3,
	}, 2, 2)
	deltas := tensor.New(2, 8)

	proposals := []box.Box{
		box.New(10, 10, 50, 50),
		box.New(100, 100, 150, 150),
	}

	first, err := r.Detect(logits, deltas, proposals, 640, 480)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := r.Detect(logits, deltas, proposals, 640, 480)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("detection counts differ: %d vs %d", len(first), len(second))
	}

	for i := range first {
		if first[i].Box != second[i].Box ||
			first[i].Class != second[i].Class ||
			first[i].Score != second[i].Score {
			t.Errorf("detection %d differs between runs: %+v vs %+v",
				i, first[i], second[i])
		}
	}
}

func TestDetectShapeErrors(t *testing.T) {

	r := newDetectHead(0.5, 0.5, 100)

	logits, _ := tensor.FromData([]float32{0, 4}, 1, 2)

	// wrong delta width for 2 classes
	badDeltas := tensor.New(1, 4)

	if _, err := r.Detect(logits, badDeltas,
		[]box.Box{box.New(0, 0, 10, 10)}, 640, 480); err == nil {
		t.Errorf("expected error for malformed box deltas")
	}

	deltas := tensor.New(1, 8)

	if _, err := r.Detect(logits, deltas, nil, 640, 480); err == nil {
		t.Errorf("expected error for proposal count mismatch")
	}
}
