package render

import (
	"fmt"
	"github.com/detkit/go-roihead"
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

// boxLabel defines where the detection object label should be rendered on
// source image
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// makeBoxLabel lays out a label centered at centerX with its baseline
// sitting on top of the given y coordinate
func makeBoxLabel(text string, centerX, topY int, clr color.RGBA,
	font Font) boxLabel {

	textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

	return boxLabel{
		rect: image.Rect(centerX-textSize.X/2-font.PadX,
			topY-textSize.Y-2*font.PadY,
			centerX+textSize.X/2+font.PadX, topY),
		clr:     clr,
		text:    text,
		textPos: image.Pt(centerX-textSize.X/2, topY-font.PadY),
	}
}

// drawBoxLabels paints the precalculated labels as the top most layer on the
// image so they don't get overlapped with boxes or segment contour lines
func drawBoxLabels(img *gocv.Mat, boxLabels []boxLabel, font Font) {

	for _, lbl := range boxLabels {
		// draw box text gets written on
		gocv.Rectangle(img, lbl.rect, lbl.clr, -1)

		// Draw the label over box
		gocv.PutTextWithParams(img, lbl.text, lbl.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}

// DetectionBoxes renders the bounding boxes around the objects detected
func DetectionBoxes(img *gocv.Mat, detections []roihead.Detection,
	classNames []string, font Font, lineThickness int) {

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0)

	// draw detection boxes
	for i, det := range detections {

		useClr := ClassColor(i)

		boxLeft := int(det.Box.X1)
		boxTop := int(det.Box.Y1)
		boxRight := int(det.Box.X2)
		boxBottom := int(det.Box.Y2)

		// draw rectangle around detected object
		rect := image.Rect(boxLeft, boxTop, boxRight, boxBottom)
		gocv.Rectangle(img, rect, useClr, lineThickness)

		// create text for label
		text := fmt.Sprintf("%s %.2f", classNames[det.Class], det.Score)

		// record label rendering details, centered over the box
		boxLabels = append(boxLabels,
			makeBoxLabel(text, (boxLeft+boxRight)/2, boxTop, useClr, font))
	}

	drawBoxLabels(img, boxLabels, font)
}
