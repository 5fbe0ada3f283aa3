package router

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/chatbots/core/apperr"
	"github.com/m3rciful/chatbots/core/logger"
	"github.com/m3rciful/chatbots/core/telegram/handler"
	"github.com/m3rciful/chatbots/core/telegram/sender"
)

// Outcomes reported in the handler summary.
const (
	outcomeHandled = "handled"
	outcomeGated   = "gated"
	outcomeDropped = "dropped"
	outcomeFailed  = "fail"
)

func logHandlerSummary(ev *handler.Event, handlerName string, start time.Time, outcome string, err error, extras ...slog.Attr) {
	ctx := logger.WithHandler(ev.Context(), handlerName)
	counters := sender.CountersFrom(ctx)

	status := "ok"
	switch {
	case err != nil:
		status = "fail"
	case outcome == outcomeGated || outcome == outcomeDropped:
		status = "skip"
	}

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", handlerName),
		slog.String("kind", string(ev.Kind)),
		slog.String("outcome", outcome),
		slog.Int("messages", counters.Messages()),
		slog.Bool("kb", counters.Keyboard()),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	switch ev.Kind {
	case handler.KindCommand:
		attrs = append(attrs, slog.String("command", ev.Command))
	case handler.KindCallback:
		attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(ev.CallbackUnique, 128)))
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
			slog.String("cause", handlerName),
		)
	}
	attrs = append(attrs, extras...)
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	return string(apperr.KindUnknown)
}
