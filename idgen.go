package roihead

import "sync/atomic"

// idGenerator hands out unique incremental detection IDs, safe for
// concurrent use
type idGenerator struct {
	id atomic.Int64
}

func newIDGenerator() *idGenerator {
	return &idGenerator{}
}

// getNext returns the next incremental number
func (g *idGenerator) getNext() int64 {
	return g.id.Add(1)
}
