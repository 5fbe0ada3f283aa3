package middleware

import (
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/chatbots/core/logger"
	tghelpers "github.com/m3rciful/chatbots/core/telegram/helpers"
)

// RecoverMiddleware catches panics that escape the dispatcher and keeps the
// update loop alive.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelError, "tg.panic",
					slog.String("status", "fail"),
					slog.String("err", logger.SanitizeLimit(fmt.Sprint(r), 256)),
				)
				err = nil
			}
		}()
		return next(c)
	}
}
