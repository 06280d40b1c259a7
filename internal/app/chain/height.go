// Package chain supplies the block-height clock for the option layer. The
// escrow engine only needs a monotonically increasing height; where no real
// chain is attached, a simulated clock derives the height from wall time.
package chain

import (
	"context"
	"sync"
	"time"
)

// HeightSource reports the current block height.
type HeightSource interface {
	BlockHeight(ctx context.Context) (uint64, error)
}

// Simulated derives the height from elapsed wall time: one block per
// interval, starting at the genesis height. Heights are monotonic across
// calls as long as the process clock is.
type Simulated struct {
	genesis  uint64
	start    time.Time
	interval time.Duration
}

var _ HeightSource = (*Simulated)(nil)

// NewSimulated creates a simulated chain clock. A non-positive interval
// defaults to one second per block.
func NewSimulated(genesis uint64, interval time.Duration) *Simulated {
	if interval <= 0 {
		interval = time.Second
	}
	return &Simulated{genesis: genesis, start: time.Now(), interval: interval}
}

func (s *Simulated) BlockHeight(_ context.Context) (uint64, error) {
	elapsed := time.Since(s.start)
	return s.genesis + uint64(elapsed/s.interval), nil
}

// Manual is a height source set explicitly, for tests and tooling.
type Manual struct {
	mu     sync.RWMutex
	height uint64
}

var _ HeightSource = (*Manual)(nil)

// NewManual starts a manual source at the given height.
func NewManual(height uint64) *Manual {
	return &Manual{height: height}
}

func (m *Manual) BlockHeight(_ context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.height, nil
}

// SetHeight moves the clock to the given height.
func (m *Manual) SetHeight(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height = height
}

// Advance moves the clock forward by n blocks.
func (m *Manual) Advance(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height += n
}
