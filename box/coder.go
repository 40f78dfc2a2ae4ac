package box

import (
	"github.com/chewxy/math32"
)

// decode clamp stops exploding exp() results for degenerate regression
// outputs, matching the limit of a box 1000px wide on a 16px reference
var bboxXformClip = math32.Log(1000.0 / 16.0)

// Coder converts between absolute box coordinates and normalized
// center/size regression deltas relative to a reference box
type Coder struct {
	// Weights are the regression weights (wx, wy, ww, wh) applied to the
	// delta during encoding and divided out during decoding
	Weights [4]float32
}

// NewCoder returns a Coder using the given regression weights
func NewCoder(weights [4]float32) Coder {
	return Coder{Weights: weights}
}

// Encode calculates the regression delta that transforms the reference box
// into the target box.  The returned slice has 4 elements (dx, dy, dw, dh)
func (c Coder) Encode(target, reference Box) []float32 {

	refW := reference.Width()
	refH := reference.Height()

	dx := c.Weights[0] * (target.CenterX() - reference.CenterX()) / refW
	dy := c.Weights[1] * (target.CenterY() - reference.CenterY()) / refH
	dw := c.Weights[2] * math32.Log(target.Width()/refW)
	dh := c.Weights[3] * math32.Log(target.Height()/refH)

	return []float32{dx, dy, dw, dh}
}

// Decode applies the regression delta (dx, dy, dw, dh) to the reference box
// and returns the resulting box
func (c Coder) Decode(delta []float32, reference Box) Box {

	refW := reference.Width()
	refH := reference.Height()

	dx := delta[0] / c.Weights[0]
	dy := delta[1] / c.Weights[1]
	dw := delta[2] / c.Weights[2]
	dh := delta[3] / c.Weights[3]

	if dw > bboxXformClip {
		dw = bboxXformClip
	}

	if dh > bboxXformClip {
		dh = bboxXformClip
	}

	ctrX := dx*refW + reference.CenterX()
	ctrY := dy*refH + reference.CenterY()
	w := math32.Exp(dw) * refW
	h := math32.Exp(dh) * refH

	return Box{
		X1: ctrX - w/2,
		Y1: ctrY - h/2,
		X2: ctrX + w/2,
		Y2: ctrY + h/2,
	}
}
