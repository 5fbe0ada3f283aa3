package middleware

import (
	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/chatbots/core/telegram/helpers"
	"github.com/m3rciful/chatbots/core/telegram/sender"
)

// MessageMetricsMiddleware attaches outbound counters to the update context
// so the handler summary can report how many messages were sent.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx, _ := sender.WithCounters(tghelpers.BuildContext(c))
		tghelpers.StoreContext(c, ctx)
		return next(c)
	}
}
