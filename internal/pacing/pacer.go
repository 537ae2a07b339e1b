// File: internal/pacing/pacer.go
package pacing

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer draws random delays from a fixed window. The batch runner uses one
// between accounts and the login controller one between navigation retries.
type Pacer struct {
	lo, hi time.Duration
}

// New creates a Pacer drawing delays uniformly from [lo, hi]. An inverted
// window collapses to lo.
func New(lo, hi time.Duration) *Pacer {
	if hi < lo {
		hi = lo
	}
	return &Pacer{lo: lo, hi: hi}
}

// Next returns the next delay.
func (p *Pacer) Next() time.Duration {
	if p.hi <= p.lo {
		return p.lo
	}
	return p.lo + rand.N(p.hi-p.lo+1)
}

// Wait sleeps for Next() or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return Sleep(ctx, p.Next())
}

// Sleep waits for d or until ctx is done. A non-positive d only reports
// ctx.Err().
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
