// Package head provides reference implementations of the ROI head
// collaborators: a bilinear ROIAlign feature pooler and linear prediction
// heads for classification, box regression and mask logits.
package head

import (
	"fmt"

	"github.com/detkit/go-roihead/box"
	"github.com/detkit/go-roihead/tensor"
)

// AlignPooler extracts a fixed size feature window per box from a CxHxW
// feature map using bilinear sampling at each output cell center
type AlignPooler struct {
	// OutputSize is the spatial size of the pooled output window
	OutputSize int
}

// NewAlignPooler returns an AlignPooler producing OutputSize x OutputSize
// windows
func NewAlignPooler(outputSize int) *AlignPooler {
	return &AlignPooler{OutputSize: outputSize}
}

// Pool maps the feature tensor and boxes to a NxCxSxS tensor.  Box
// coordinates are given in image space and scaled onto the feature grid
// using the ratio between the feature map and image dimensions
func (p *AlignPooler) Pool(features *tensor.Tensor, boxes []box.Box,
	imgW, imgH float32) (*tensor.Tensor, error) {

	if len(features.Shape) != 3 {
		return nil, fmt.Errorf("expected CxHxW feature tensor, got shape %v",
			features.Shape)
	}

	channels := features.Dim(0)
	featH := features.Dim(1)
	featW := features.Dim(2)

	scaleX := float32(featW) / imgW
	scaleY := float32(featH) / imgH

	size := p.OutputSize
	out := tensor.New(len(boxes), channels, size, size)

	for n, b := range boxes {

		// box projected onto the feature grid
		x1 := b.X1 * scaleX
		y1 := b.Y1 * scaleY
		binW := b.Width() * scaleX / float32(size)
		binH := b.Height() * scaleY / float32(size)

		for c := 0; c < channels; c++ {
			for i := 0; i < size; i++ {

				y := y1 + (float32(i)+0.5)*binH

				for j := 0; j < size; j++ {
					x := x1 + (float32(j)+0.5)*binW
					out.Set(bilinear(features, c, y, x, featH, featW),
						n, c, i, j)
				}
			}
		}
	}

	return out, nil
}

// bilinear samples the feature map at fractional coordinates (y, x) on
// channel c, interpolating between the four surrounding cells
func bilinear(features *tensor.Tensor, c int, y, x float32,
	featH, featW int) float32 {

	// sample positions relative to cell centers
	y -= 0.5
	x -= 0.5

	if y < 0 {
		y = 0
	}

	if x < 0 {
		x = 0
	}

	y0 := int(y)
	x0 := int(x)

	if y0 > featH-1 {
		y0 = featH - 1
	}

	if x0 > featW-1 {
		x0 = featW - 1
	}

	y1 := y0 + 1
	x1 := x0 + 1

	if y1 > featH-1 {
		y1 = featH - 1
	}

	if x1 > featW-1 {
		x1 = featW - 1
	}

	fy := y - float32(y0)
	fx := x - float32(x0)

	if fy > 1 {
		fy = 1
	}

	if fx > 1 {
		fx = 1
	}

	v00 := features.At(c, y0, x0)
	v01 := features.At(c, y0, x1)
	v10 := features.At(c, y1, x0)
	v11 := features.At(c, y1, x1)

	top := v00 + (v01-v00)*fx
	bottom := v10 + (v11-v10)*fx

	return top + (bottom-top)*fy
}
