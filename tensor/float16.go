package tensor

import "github.com/x448/float16"

var f16LookupTable [65536]float32

func init() {
	// precompute float16 lookup table for faster conversion to float32
	for i := range f16LookupTable {
		f16 := float16.Frombits(uint16(i))
		f16LookupTable[i] = f16.Float32()
	}
}

// FromFloat16 converts raw float16 bits, such as a feature map exported by
// an accelerator runtime, into a float32 Tensor of the given shape
func FromFloat16(bits []uint16, shape ...int) (*Tensor, error) {

	data := make([]float32, len(bits))

	for i, b := range bits {
		data[i] = f16LookupTable[b]
	}

	return FromData(data, shape...)
}
