package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MatMul multiplies two 2D tensors (a MxK, b KxN) and returns the MxN
// product.  The multiplication is delegated to gonum
func MatMul(a, b *Tensor) (*Tensor, error) {

	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, fmt.Errorf("matmul requires 2D tensors, got %v and %v",
			a.Shape, b.Shape)
	}

	if a.Shape[1] != b.Shape[0] {
		return nil, fmt.Errorf("matmul shape mismatch: %v x %v",
			a.Shape, b.Shape)
	}

	var c mat.Dense
	c.Mul(a.dense(), b.dense())

	out := New(a.Shape[0], b.Shape[1])

	for i := 0; i < out.Shape[0]; i++ {
		for j := 0; j < out.Shape[1]; j++ {
			out.Set(float32(c.At(i, j)), i, j)
		}
	}

	return out, nil
}

// dense converts a 2D tensor to a gonum Dense matrix
func (t *Tensor) dense() *mat.Dense {

	data := make([]float64, len(t.Data))

	for i, v := range t.Data {
		data[i] = float64(v)
	}

	return mat.NewDense(t.Shape[0], t.Shape[1], data)
}

// FromDense converts a gonum matrix into a 2D Tensor
func FromDense(m mat.Matrix) *Tensor {

	rows, cols := m.Dims()
	out := New(rows, cols)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(float32(m.At(i, j)), i, j)
		}
	}

	return out
}
