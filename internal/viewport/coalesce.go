package viewport

import (
	"context"
	"sync"
	"time"
)

// DefaultFrame is the recompute interval used when none is given (~60 Hz).
const DefaultFrame = 16 * time.Millisecond

// Coalescer collapses bursts of container resizes so that bounds are
// recomputed at most once per frame. Request is cheap and safe to call from
// many goroutines; only the latest size of a burst is ever computed.
type Coalescer struct {
	mu         sync.Mutex
	naturalW   int
	naturalH   int
	pendingW   float64
	pendingH   float64
	pending    bool
	current    Bounds
	have       bool
	recomputes int
}

// NewCoalescer creates a coalescer for one image size.
func NewCoalescer(naturalW, naturalH int) (*Coalescer, error) {
	if _, err := ComputeBounds(naturalW, naturalH, 1, 1); err != nil {
		return nil, err
	}
	return &Coalescer{naturalW: naturalW, naturalH: naturalH}, nil
}

// Request records a new container size to be applied on the next flush.
func (c *Coalescer) Request(containerW, containerH float64) {
	c.mu.Lock()
	c.pendingW, c.pendingH = containerW, containerH
	c.pending = true
	c.mu.Unlock()
}

// Flush recomputes bounds for the latest requested size, if any. It returns
// the current bounds and whether a recompute happened. A request for the size
// already in effect is dropped without recomputing.
func (c *Coalescer) Flush() (Bounds, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.pending {
		return c.current, false
	}
	c.pending = false

	if c.have && c.current.ContainerW == c.pendingW && c.current.ContainerH == c.pendingH {
		return c.current, false
	}

	b, err := ComputeBounds(c.naturalW, c.naturalH, c.pendingW, c.pendingH)
	if err != nil {
		// natural size was validated in NewCoalescer
		return c.current, false
	}
	c.current = b
	c.have = true
	c.recomputes++
	return b, true
}

// Current returns the last computed bounds.
func (c *Coalescer) Current() (Bounds, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.have
}

// Recomputes returns how many times bounds were actually recomputed.
func (c *Coalescer) Recomputes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recomputes
}

// Run flushes once per frame until ctx is done, calling publish with every
// freshly computed Bounds.
func (c *Coalescer) Run(ctx context.Context, frame time.Duration, publish func(Bounds)) {
	if frame <= 0 {
		frame = DefaultFrame
	}
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if b, ok := c.Flush(); ok && publish != nil {
				publish(b)
			}
		}
	}
}
