package roihead

import (
	"testing"

	"github.com/detkit/go-roihead/box"
)

func TestSelectTrainingSamples(t *testing.T) {

	p := testParams()
	p.TrainMode = true

	r := NewROIHead(&stubPooler{}, &stubBoxPredictor{}, p)
	r.SetSamplerSeed(42)

	gtBox := box.New(100, 100, 200, 200)

	// 3 proposals overlap the ground truth above the 0.5 threshold, the
	// remaining 97 are far away
	proposals := []box.Box{
		box.New(100, 100, 200, 190),
		box.New(110, 100, 200, 200),
		box.New(100, 110, 200, 200),
	}

	for i := 0; i < 97; i++ {
		x := float32(300 + (i%10)*60)
		y := float32(300 + (i/10)*60)
		proposals = append(proposals, box.New(x, y, x+50, y+50))
	}

	target := Target{
		Boxes:  []box.Box{gtBox},
		Labels: []int{2},
	}

	samples, err := r.SelectTrainingSamples(proposals, target)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// the 3 overlapping proposals plus the appended ground truth box
	if samples.NumPos != 4 {
		t.Errorf("expected 4 positives, got %d", samples.NumPos)
	}

	if len(samples.Proposals) != len(samples.Labels) ||
		len(samples.Proposals) != len(samples.MatchedIdx) {
		t.Fatalf("sample slices disagree on length: %d proposals, %d labels, %d matches",
			len(samples.Proposals), len(samples.Labels), len(samples.MatchedIdx))
	}

	if len(samples.RegTargets) != samples.NumPos*4 {
		t.Errorf("expected %d regression values, got %d",
			samples.NumPos*4, len(samples.RegTargets))
	}

	// positives carry the ground truth class
	for i := 0; i < samples.NumPos; i++ {
		if samples.Labels[i] != 2 {
			t.Errorf("positive %d: expected class 2, got %d", i, samples.Labels[i])
		}

		if samples.MatchedIdx[i] != 0 {
			t.Errorf("positive %d: expected matched index 0, got %d",
				i, samples.MatchedIdx[i])
		}
	}

	// negatives are forced to background regardless of their match
	for i := samples.NumPos; i < len(samples.Labels); i++ {
		if samples.Labels[i] != 0 {
			t.Errorf("negative %d: expected background 0, got %d",
				i, samples.Labels[i])
		}
	}

	// the appended ground truth box must be among the positives as an
	// exact match candidate
	foundExact := false

	for i := 0; i < samples.NumPos; i++ {
		if samples.Proposals[i] == gtBox {
			foundExact = true
		}
	}

	if !foundExact {
		t.Errorf("appended ground truth box missing from positive samples")
	}

	// sample budget: 16 positives requested but only 4 available, the
	// remainder filled with negatives up to the 64 sample budget
	if len(samples.Proposals) != 64 {
		t.Errorf("expected 64 sampled proposals, got %d", len(samples.Proposals))
	}
}

func TestSelectTrainingSamplesExactMatchEncoding(t *testing.T) {

	p := testParams()
	p.TrainMode = true
	p.NumSamples = 4
	p.PositiveFraction = 1.0

	r := NewROIHead(&stubPooler{}, &stubBoxPredictor{}, p)
	r.SetSamplerSeed(9)

	target := Target{
		Boxes:  []box.Box{box.New(10, 10, 30, 30)},
		Labels: []int{1},
	}

	// no proposals at all: the appended ground truth is the only sample
	samples, err := r.SelectTrainingSamples(nil, target)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if samples.NumPos != 1 {
		t.Fatalf("expected 1 positive, got %d", samples.NumPos)
	}

	// encoding a box against itself gives a zero regression target
	for k, v := range samples.RegTargets {
		if !near(v, 0, 1e-5) {
			t.Errorf("regression value %d: expected 0, got %f", k, v)
		}
	}
}

func TestSelectTrainingSamplesErrors(t *testing.T) {

	p := testParams()
	p.TrainMode = true

	r := NewROIHead(&stubPooler{}, &stubBoxPredictor{}, p)

	if _, err := r.SelectTrainingSamples(nil, Target{}); err == nil {
		t.Errorf("expected error for empty ground truth")
	}

	badTarget := Target{
		Boxes:  []box.Box{box.New(0, 0, 10, 10)},
		Labels: []int{1, 2},
	}

	if _, err := r.SelectTrainingSamples(nil, badTarget); err == nil {
		t.Errorf("expected error for box/label count mismatch")
	}
}
