package render

import (
	"fmt"
	clipper "github.com/ctessum/go.clipper"
	"github.com/detkit/go-roihead"
	"github.com/detkit/go-roihead/tensor"
	"gocv.io/x/gocv"
	"image"
)

// PasteMasks resizes each detections fixed size probability mask onto its
// bounding box region and merges them into a single full image segment mask.
// Each pixel of the returned mask holds the object number (1..N) it belongs
// to, with 0 being the background.  Probabilities at or above threshold are
// treated as part of the object.
func PasteMasks(masks []*tensor.Tensor, detections []roihead.Detection,
	width, height int, threshold float32) ([]uint8, error) {

	if len(masks) != len(detections) {
		return nil, fmt.Errorf("have %d masks for %d detections",
			len(masks), len(detections))
	}

	segMask := make([]uint8, width*height)

	for i, m := range masks {

		if len(m.Shape) != 2 {
			return nil, fmt.Errorf("mask %d: expected 2 dimensions, got %d",
				i, len(m.Shape))
		}

		size := m.Dim(0)

		// threshold the probability mask into a binary mask
		bin := make([]uint8, size*size)

		for k, v := range m.Data {
			if v >= threshold {
				bin[k] = 255
			}
		}

		binMat, err := gocv.NewMatFromBytes(size, size, gocv.MatTypeCV8U, bin)

		if err != nil {
			return nil, fmt.Errorf("mask %d: error creating Mat: %w", i, err)
		}

		det := detections[i]

		boxLeft := clampi(int(det.Box.X1), 0, width)
		boxTop := clampi(int(det.Box.Y1), 0, height)
		boxRight := clampi(int(det.Box.X2), 0, width)
		boxBottom := clampi(int(det.Box.Y2), 0, height)

		boxW := boxRight - boxLeft
		boxH := boxBottom - boxTop

		if boxW <= 0 || boxH <= 0 {
			binMat.Close()
			continue
		}

		// scale the binary mask up to the bounding box size
		objMask := gocv.NewMat()
		gocv.Resize(binMat, &objMask, image.Pt(boxW, boxH), 0, 0,
			gocv.InterpolationLinear)
		binMat.Close()

		objData := objMask.ToBytes()
		objMask.Close()

		// paste the object into the full image mask, later objects do not
		// overwrite earlier higher scoring ones
		for y := 0; y < boxH; y++ {
			for x := 0; x < boxW; x++ {

				if objData[y*boxW+x] < 128 {
					continue
				}

				idx := (boxTop+y)*width + boxLeft + x

				if segMask[idx] == 0 {
					segMask[idx] = uint8(i + 1)
				}
			}
		}
	}

	return segMask, nil
}

// SegmentMask renders the provided segment mask as a transparent overlay on
// top of the whole image.  Each object ID is painted in its palette color
func SegmentMask(img *gocv.Mat, segMask []uint8, alpha float32) {

	width := img.Cols()
	height := img.Rows()

	// manipulating pixels one at a time through GoCV is too slow over CGO,
	// so blend directly into a copy of the image bytes and write it back in
	// one Mat operation
	imgData := img.ToBytes()

	for idx, id := range segMask {

		if id == 0 {
			continue
		}

		useClr := ClassColor(int(id) - 1)

		// BGR pixel position in the byte slice
		pixelPos := idx * 3

		b, g, r := imgData[pixelPos+0], imgData[pixelPos+1], imgData[pixelPos+2]

		imgData[pixelPos+0] = uint8(float32(b)*(1-alpha) + float32(useClr.B)*alpha)
		imgData[pixelPos+1] = uint8(float32(g)*(1-alpha) + float32(useClr.G)*alpha)
		imgData[pixelPos+2] = uint8(float32(r)*(1-alpha) + float32(useClr.R)*alpha)
	}

	tmpImg, _ := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, imgData)
	defer tmpImg.Close()
	tmpImg.CopyTo(img)
}

// findTopPoint finds the highest point (Y axis) of the given point vector
func findTopPoint(approx gocv.PointVector) image.Point {
	topPoint := approx.At(0)
	for i := 1; i < approx.Size(); i++ {
		pt := approx.At(i)
		if pt.Y < topPoint.Y {
			topPoint = pt
		}
	}
	return topPoint
}

// isContourInsideBox checks if the bounding box of a contour fits inside
// the bounding box of the detection result plus a pad
func isContourInsideBox(contourRect image.Rectangle, det roihead.Detection,
	pad int) bool {

	return contourRect.Min.X >= int(det.Box.X1)-pad &&
		contourRect.Min.Y >= int(det.Box.Y1)-pad &&
		contourRect.Max.X <= int(det.Box.X2)+pad &&
		contourRect.Max.Y <= int(det.Box.Y2)+pad
}

// expandContour grows the contour polygon outward by the given number of
// pixels so the drawn outline sits outside the object instead of on its edge
func expandContour(approx gocv.PointVector, padding float64) []image.Point {

	// convert the contour points to a Clipper Path
	var path clipper.Path

	for i := 0; i < approx.Size(); i++ {
		pt := approx.At(i)
		path = append(path, &clipper.IntPoint{
			X: clipper.CInt(pt.X), Y: clipper.CInt(pt.Y),
		})
	}

	// create a ClipperOffset object and add the path
	co := clipper.NewClipperOffset()
	co.AddPath(path, clipper.JtRound, clipper.EtClosedPolygon)

	// execute the offset operation
	solution := co.Execute(padding)

	// convert the solution back to points
	var points []image.Point

	for _, sol := range solution {
		for _, pt := range sol {
			points = append(points, image.Point{X: int(pt.X), Y: int(pt.Y)})
		}
	}

	return points
}

// SegmentOutline renders the segment mask object outlines for all objects.
// The padding value grows each outline outward by that many pixels
func SegmentOutline(img *gocv.Mat, segMask []uint8,
	detections []roihead.Detection, minArea float64, padding float64,
	classNames []string, font Font, lineThickness int) error {

	width := img.Cols()
	height := img.Rows()
	boxesNum := len(detections)

	// create a Mat from the segMask
	maskMat, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8U, segMask)

	if err != nil {
		return fmt.Errorf("error creating mask Mat: %w", err)
	}

	defer maskMat.Close()

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0)

	// iterate over each unique object ID to isolate the mask
	for objID := 1; objID < boxesNum+1; objID++ {

		// Create a binary mask for the current object (isolate the object by objID)
		objMask := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8U)
		lowerBound := gocv.Scalar{Val1: float64(objID)}
		upperBound := gocv.Scalar{Val1: float64(objID)}
		gocv.InRangeWithScalar(maskMat, lowerBound, upperBound, &objMask)
		defer objMask.Close()

		// Find contours for this object
		contours := gocv.FindContours(objMask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
		defer contours.Close()

		useClr := ClassColor(objID - 1)

		det := detections[objID-1]
		label := classNames[det.Class]

		// Calculate the horizontal center of the bounding box
		centerX := int(det.Box.X1+det.Box.X2) / 2

		// Draw contours
		for i := 0; i < contours.Size(); i++ {
			contour := contours.At(i)

			// filter out small contours picked up from aliasing/noise in binary mask
			area := gocv.ContourArea(contour)

			if area < minArea {
				continue
			}

			// Check if the contour's bounding rectangle is inside the object's bounding box
			contourRect := gocv.BoundingRect(contour)
			if !isContourInsideBox(contourRect, det, 10+int(padding)) {
				continue
			}

			approx := gocv.ApproxPolyDP(contour, 3, true)

			drawPts := approx

			if padding > 0 {
				expanded := expandContour(approx, padding)

				if len(expanded) > 0 {
					drawPts = gocv.NewPointVectorFromPoints(expanded)
					defer drawPts.Close()
				}
			}

			// Create a PointsVector to hold our PointVector
			ptsVec := gocv.NewPointsVector()

			// Add our PointVector to PointsVector
			ptsVec.Append(drawPts)

			// Draw polygon lines using PointsVector
			gocv.Polylines(img, ptsVec, true, useClr, lineThickness)

			// record label rendering details, centered over the box and
			// sitting above the topmost contour point
			topPoint := findTopPoint(approx)
			text := fmt.Sprintf("%s %.2f", label, det.Score)

			boxLabels = append(boxLabels,
				makeBoxLabel(text, centerX, topPoint.Y, useClr, font))

			approx.Close()
			ptsVec.Close()
		}
	}

	drawBoxLabels(img, boxLabels, font)

	return nil
}

// clampi restricts a value between a minimum and maximum
func clampi(x, min, max int) int {

	if x < min {
		return min
	} else if x > max {
		return max
	}

	return x
}
