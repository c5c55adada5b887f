package interview

import (
	"sync"
	"time"
)

// Countdown ticks a per-question timer down to zero. Reaching zero has no effect besides the display.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	interval  time.Duration
	stop      chan struct{}
	onTick    func(remaining int)
}

func NewCountdown(seconds int, interval time.Duration, onTick func(remaining int)) *Countdown {
	if seconds < 0 {
		seconds = 0
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{remaining: seconds, interval: interval, onTick: onTick}
}

// Start begins or resumes ticking. Calling it while running is a no-op.
func (c *Countdown) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil || c.remaining == 0 {
		return
	}
	stop := make(chan struct{})
	c.stop = stop
	go c.run(stop)
}

// Stop halts ticking and keeps the remaining value. It does not wait for an in-progress tick callback.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

func (c *Countdown) run(stop chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.stop != stop {
				c.mu.Unlock()
				return
			}
			if c.remaining > 0 {
				c.remaining--
			}
			remaining := c.remaining
			if remaining == 0 {
				c.stop = nil
			}
			c.mu.Unlock()

			if c.onTick != nil {
				c.onTick(remaining)
			}
			if remaining == 0 {
				return
			}
		}
	}
}
