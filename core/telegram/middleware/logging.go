package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/chatbots/core/logger"
	"github.com/m3rciful/chatbots/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/chatbots/core/telegram/helpers"
)

// receipts remembers recently logged update ids so webhook redeliveries do
// not log twice.
type receipts struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[int]time.Time
}

var received = &receipts{ttl: 10 * time.Second, seen: make(map[int]time.Time)}

// first reports whether updateID was not seen within the ttl.
func (r *receipts) first(updateID int, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ts := range r.seen {
		if now.Sub(ts) > r.ttl {
			delete(r.seen, id)
		}
	}
	if _, dup := r.seen[updateID]; dup {
		return false
	}
	r.seen[updateID] = now
	return true
}

// LoggerMiddleware builds the logging context of the update, exposes its
// request id as "rid" and logs a sampled receipt line.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		c.Set("rid", logger.RIDFrom(ctx))

		upd := c.Update()
		if logger.ShouldSampleDebug() && received.first(upd.ID, time.Now()) {
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", receiptAttrs(c, upd)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context, upd tele.Update) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok"), slog.String("kind", updateKind(upd))}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	switch {
	case upd.Callback != nil:
		unique, payload := callbacks.Split(upd.Callback)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(unique, 128)),
			slog.String("payload", logger.SanitizeLimit(payload, 256)),
		)
	case upd.Message != nil:
		if t := c.Text(); t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		}
	}
	return attrs
}
