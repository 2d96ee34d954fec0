// Package resource bounds access to the VexFS device.
//
// Every ioctl blocks a calling thread in the kernel, so an unbounded number
// of concurrent device calls can exhaust OS threads on a slow or wedged
// device. The controller gates device calls behind a weighted semaphore and
// an optional rate limiter.
package resource

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds device admission limits.
type Config struct {
	// MaxInflight is the maximum number of concurrent device calls.
	// If 0, defaults to 16.
	MaxInflight int64

	// OpsPerSec is the maximum rate of device calls.
	// If 0, unlimited.
	OpsPerSec float64

	// Burst is the rate limiter burst size. If 0, defaults to 1.
	Burst int
}

// Controller admits device calls according to Config.
type Controller struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter // nil if unlimited
}

// NewController creates a new admission controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxInflight <= 0 {
		cfg.MaxInflight = 16
	}
	c := &Controller{
		sem: semaphore.NewWeighted(cfg.MaxInflight),
	}
	if cfg.OpsPerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.OpsPerSec), burst)
	}
	return c
}

// Acquire blocks until the call is admitted or ctx is done.
// Every successful Acquire must be paired with a Release.
func (c *Controller) Acquire(ctx context.Context) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.sem.Release(1)
			return err
		}
	}
	return nil
}

// Release returns an admission slot.
func (c *Controller) Release() {
	c.sem.Release(1)
}
