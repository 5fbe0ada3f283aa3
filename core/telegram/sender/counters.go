package sender

import (
	"context"
	"sync/atomic"
)

// Counters tracks what one update sent back to Telegram.
type Counters struct {
	messages atomic.Int64
	keyboard atomic.Bool
}

type countersKey struct{}

// WithCounters returns ctx carrying fresh counters.
func WithCounters(ctx context.Context) (context.Context, *Counters) {
	c := &Counters{}
	return context.WithValue(ctx, countersKey{}, c), c
}

// CountersFrom returns the counters attached by WithCounters, or nil.
func CountersFrom(ctx context.Context) *Counters {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(countersKey{}).(*Counters)
	return c
}

func (c *Counters) add(withKeyboard bool) {
	if c == nil {
		return
	}
	c.messages.Add(1)
	if withKeyboard {
		c.keyboard.Store(true)
	}
}

// Messages returns how many messages were sent.
func (c *Counters) Messages() int {
	if c == nil {
		return 0
	}
	return int(c.messages.Load())
}

// Keyboard reports whether any sent message carried reply markup.
func (c *Counters) Keyboard() bool {
	return c != nil && c.keyboard.Load()
}
