package tensor

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Tensor is a dense row-major float32 tensor.  It is the common data
// carrier between feature poolers, prediction heads and post processing
type Tensor struct {
	// Data holds the elements in row-major order
	Data []float32
	// Shape holds the size of each dimension
	Shape []int
}

// New returns a zero filled Tensor of the given shape
func New(shape ...int) *Tensor {

	n := 1

	for _, s := range shape {
		n *= s
	}

	return &Tensor{
		Data:  make([]float32, n),
		Shape: shape,
	}
}

// FromData wraps an existing float32 slice as a Tensor of the given shape.
// The slice is not copied
func FromData(data []float32, shape ...int) (*Tensor, error) {

	n := 1

	for _, s := range shape {
		n *= s
	}

	if n != len(data) {
		return nil, fmt.Errorf("data length %d does not match shape %v",
			len(data), shape)
	}

	return &Tensor{Data: data, Shape: shape}, nil
}

// Numel returns the total number of elements
func (t *Tensor) Numel() int {

	n := 1

	for _, s := range t.Shape {
		n *= s
	}

	return n
}

// Dim returns the size of dimension i
func (t *Tensor) Dim(i int) int {
	return t.Shape[i]
}

// offset calculates the flat index for the given coordinates
func (t *Tensor) offset(idx ...int) int {

	off := 0

	for i, x := range idx {
		off = off*t.Shape[i] + x
	}

	return off
}

// At returns the element at the given coordinates
func (t *Tensor) At(idx ...int) float32 {
	return t.Data[t.offset(idx...)]
}

// Set stores val at the given coordinates
func (t *Tensor) Set(val float32, idx ...int) {
	t.Data[t.offset(idx...)] = val
}

// Row returns the i'th row of a 2D tensor as a slice sharing the
// underlying data
func (t *Tensor) Row(i int) []float32 {
	cols := t.Shape[len(t.Shape)-1]
	return t.Data[i*cols : (i+1)*cols]
}

// SoftmaxRows applies a numerically stable softmax along the last dimension
// of a 2D tensor and returns the result as a new Tensor
func (t *Tensor) SoftmaxRows() *Tensor {

	rows := t.Shape[0]
	cols := t.Shape[1]

	out := New(rows, cols)

	for i := 0; i < rows; i++ {

		in := t.Row(i)

		// subtract the row max before exponentiation
		rowMax := in[0]

		for _, v := range in[1:] {
			if v > rowMax {
				rowMax = v
			}
		}

		var sum float32
		o := out.Row(i)

		for j, v := range in {
			o[j] = math32.Exp(v - rowMax)
			sum += o[j]
		}

		for j := range o {
			o[j] /= sum
		}
	}

	return out
}

// Sigmoid applies the logistic function elementwise and returns the result
// as a new Tensor
func (t *Tensor) Sigmoid() *Tensor {

	out := New(t.Shape...)

	for i, v := range t.Data {
		out.Data[i] = 1.0 / (1.0 + math32.Exp(-v))
	}

	return out
}
