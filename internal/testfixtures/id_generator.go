package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator produces deterministic identifiers for tests.
type IDGenerator struct {
	mu      sync.Mutex
	prefix  string
	counter uint64
}

// NewIDGenerator constructs a generator that yields identifiers with the given
// prefix. When prefix is empty, "id" is used.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier in the sequence.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("%s-%d", g.prefix, g.counter)
}

// NextFunc exposes Next as a function suitable for dependency injection.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// SeriesIDs produces deterministic numeric series identifiers for tests.
type SeriesIDs struct {
	mu      sync.Mutex
	counter int64
}

// NewSeriesIDs constructs a sequential series id source starting at one.
func NewSeriesIDs() *SeriesIDs {
	return &SeriesIDs{}
}

// Next returns the next series id in the sequence.
func (g *SeriesIDs) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return g.counter
}

// NextFunc exposes Next as a function suitable for dependency injection.
func (g *SeriesIDs) NextFunc() func() int64 {
	if g == nil {
		return func() int64 { return 0 }
	}
	return g.Next
}
