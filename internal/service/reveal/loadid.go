package reveal

import (
	"fmt"
	"sync/atomic"
)

// LoadIDGenerator issues a distinct id for every slide load so consumers can
// discard commands that belong to an earlier load.
type LoadIDGenerator struct {
	counter uint64
}

// NewLoadIDGenerator creates a generator starting at 1.
func NewLoadIDGenerator() *LoadIDGenerator {
	return &LoadIDGenerator{}
}

// Next returns "<slideID>-load-<n>".
func (g *LoadIDGenerator) Next(slideID string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-load-%d", slideID, n)
}
