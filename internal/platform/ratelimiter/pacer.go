package ratelimiter

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces repeated calls to at most one per interval. The first Wait
// returns immediately.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer; a non-positive interval defaults to one second.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		interval = time.Second
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next call is allowed. When the context deadline
// would pass first it returns an error matching context.DeadlineExceeded
// instead of the limiter's own message.
func (p *Pacer) Wait(ctx context.Context) error {
	err := p.limiter.Wait(ctx)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return errors.Join(context.DeadlineExceeded, err)
	}
	return err
}
