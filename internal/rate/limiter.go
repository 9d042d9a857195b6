package rate

import (
	"context"
	"fmt"
	"time"
)

// Limiter gates outbound calls so we stay inside the management API's
// request-rate ceiling.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Unlimited is the limiter used when throttling is disabled.
type Unlimited struct{}

// Wait returns immediately.
func (Unlimited) Wait(context.Context) error { return nil }

// TokenBucket implements a simple fixed-rate token bucket limiter.
type TokenBucket struct {
	ticker   *time.Ticker
	tokens   chan struct{}
	stop     chan struct{}
	stopDone chan struct{}
}

// NewTokenBucket returns a limiter that releases rps tokens per second.
func NewTokenBucket(rps int) *TokenBucket {
	if rps <= 0 {
		rps = 1
	}
	tb := &TokenBucket{
		ticker:   time.NewTicker(time.Second / time.Duration(rps)),
		tokens:   make(chan struct{}, rps),
		stop:     make(chan struct{}),
		stopDone: make(chan struct{}),
	}
	// allow the first call to proceed immediately
	tb.tokens <- struct{}{}
	go tb.run()
	return tb
}

// run feeds tokens until Stop. Ticker.Stop never closes the tick channel, so
// ranging over it alone would leave this goroutine blocked forever; the stop
// channel is what ends the loop.
func (t *TokenBucket) run() {
	defer close(t.stopDone)
	for {
		select {
		case <-t.stop:
			return
		case <-t.ticker.C:
			select {
			case t.tokens <- struct{}{}:
			default:
			}
		}
	}
}

// Wait blocks until a token is available or the context is canceled.
func (t *TokenBucket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate wait canceled: %w", ctx.Err())
	case <-t.tokens:
		return nil
	}
}

// Stop releases resources held by the limiter and waits for the feeding
// goroutine to exit. Stop must be called exactly once.
func (t *TokenBucket) Stop() {
	t.ticker.Stop()
	close(t.stop)
	<-t.stopDone
}

var (
	_ Limiter = (*TokenBucket)(nil)
	_ Limiter = Unlimited{}
)
