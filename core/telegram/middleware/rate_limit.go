package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/chatbots/core/logger"
	tghelpers "github.com/m3rciful/chatbots/core/telegram/helpers"
)

// RateLimitOptions configures RateLimitMiddleware. Exclude holds update
// kinds ("message", "callback", "inline_query") that are never limited.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// limiter remembers when each user was last let through. Entries older than
// the interval are swept once the map grows past sweepAt.
type limiter struct {
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	seen    map[int64]time.Time
	sweepAt int
}

func newLimiter(interval time.Duration) *limiter {
	return &limiter{interval: interval, now: time.Now, seen: make(map[int64]time.Time), sweepAt: 1024}
}

// allow records userID and reports whether it was outside the interval.
func (l *limiter) allow(userID int64) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.seen[userID]; ok && now.Sub(last) < l.interval {
		return false
	}
	l.seen[userID] = now
	if len(l.seen) >= l.sweepAt {
		for id, t := range l.seen {
			if now.Sub(t) >= l.interval {
				delete(l.seen, id)
			}
		}
		l.sweepAt = max(1024, 2*len(l.seen))
	}
	return true
}

// RateLimitMiddleware drops updates from a user arriving sooner than
// Interval after the last one let through.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	lim := newLimiter(opts.Interval)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := updateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip || lim.allow(user.ID) {
				return next(c)
			}
			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}
