package telegram

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/chatbots/core/config"
	"github.com/m3rciful/chatbots/core/telegram/middleware"
)

// Middleware is a named global middleware registered with bot.Use in order.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// DefaultMiddlewares returns the chain shared by every bot: the logging
// context first, then outbound counters and panic recovery. Rate limiting is
// appended when rate_limit.interval_ms is set; onLimited may be nil.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	mws := []Middleware{
		{Name: "logger", Use: middleware.LoggerMiddleware},
		{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}
	if rl, ok := rateLimit(cfg, onLimited); ok {
		mws = append(mws, rl)
	}
	return mws
}

func rateLimit(cfg *coreconfig.Config, onLimited tele.HandlerFunc) (Middleware, bool) {
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return Middleware{}, false
	}
	exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
	for _, kind := range cfg.RateLimit.ExcludeUpdates {
		exclude[strings.ToLower(strings.TrimSpace(kind))] = struct{}{}
	}
	return Middleware{Name: "rate_limit", Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
		Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
		Exclude:   exclude,
		OnLimited: onLimited,
	})}, true
}
