package box

// Box is an axis aligned bounding box in (x1, y1, x2, y2) corner format
// using continuous pixel coordinates
type Box struct {
	X1 float32
	Y1 float32
	X2 float32
	Y2 float32
}

// New creates a Box from the given corner coordinates
func New(x1, y1, x2, y2 float32) Box {
	return Box{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Width returns the width of the box
func (b Box) Width() float32 {
	return b.X2 - b.X1
}

// Height returns the height of the box
func (b Box) Height() float32 {
	return b.Y2 - b.Y1
}

// Area returns the area of the box
func (b Box) Area() float32 {
	return b.Width() * b.Height()
}

// CenterX returns the x coordinate of the box center
func (b Box) CenterX() float32 {
	return b.X1 + b.Width()/2
}

// CenterY returns the y coordinate of the box center
func (b Box) CenterY() float32 {
	return b.Y1 + b.Height()/2
}

// IoU calculates the Intersection over Union with another box
func (b Box) IoU(other Box) float32 {

	ix1 := maxf(b.X1, other.X1)
	iy1 := maxf(b.Y1, other.Y1)
	ix2 := minf(b.X2, other.X2)
	iy2 := minf(b.Y2, other.Y2)

	iw := maxf(0, ix2-ix1)
	ih := maxf(0, iy2-iy1)
	intersection := iw * ih

	union := b.Area() + other.Area() - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// IoUMatrix calculates the pairwise IoU between two sets of boxes.  The
// result has len(aBoxes) rows and len(bBoxes) columns
func IoUMatrix(aBoxes, bBoxes []Box) [][]float32 {

	var ious [][]float32

	if len(aBoxes)*len(bBoxes) == 0 {
		return ious
	}

	ious = make([][]float32, len(aBoxes))

	for i := range ious {
		ious[i] = make([]float32, len(bBoxes))
	}

	for i, a := range aBoxes {
		for j, b := range bBoxes {
			ious[i][j] = a.IoU(b)
		}
	}

	return ious
}

// Clip restricts the box coordinates to lie within an image of the given
// width and height
func Clip(b Box, width, height float32) Box {
	return Box{
		X1: clampf(b.X1, 0, width),
		Y1: clampf(b.Y1, 0, height),
		X2: clampf(b.X2, 0, width),
		Y2: clampf(b.Y2, 0, height),
	}
}

// FilterSmall returns the indices of boxes whose width and height are both
// at least minSize
func FilterSmall(boxes []Box, minSize float32) []int {

	keep := make([]int, 0, len(boxes))

	for i, b := range boxes {
		if b.Width() >= minSize && b.Height() >= minSize {
			keep = append(keep, i)
		}
	}

	return keep
}

// clampf restricts the value x to be within the range min and max
func clampf(x, min, max float32) float32 {

	if x < min {
		return min
	}

	if x > max {
		return max
	}

	return x
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
