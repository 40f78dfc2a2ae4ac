package render

import (
	"gocv.io/x/gocv"
	"image/color"
)

// Font defines how detection and segment labels are drawn.  Labels are
// always centered horizontally over their bounding box or mask outline
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	// PadX and PadY give the horizontal and vertical padding between the
	// label text and the edges of its background box
	PadX int
	PadY int
}

// DefaultFont returns font settings sized for instance segmentation labels
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.5,
		Color:     White,
		Thickness: 1,
		LineType:  gocv.LineAA,
		PadX:      4,
		PadY:      5,
	}
}
