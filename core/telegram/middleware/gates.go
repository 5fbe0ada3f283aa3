package middleware

import (
	"github.com/m3rciful/chatbots/core/telegram/handler"
)

// Gate names shared by every bot. Handlers override a bot-level gate by
// declaring one with the same name.
const (
	GateStarted = "start"
	GateAwake   = "sleep"
	GateGroup   = "group"
	GatePrivate = "private"
	GateAdmin   = "admin"
)

// Started passes once /start has been issued in the chat.
func Started() handler.Gate {
	return handler.NewGate(GateStarted, func(bot handler.Bot, ev *handler.Event) bool {
		return bot.Chat(ev.ChatID).Started()
	})
}

// Awake passes while the chat is not put to sleep.
func Awake() handler.Gate {
	return handler.NewGate(GateAwake, func(bot handler.Bot, ev *handler.Event) bool {
		return bot.Chat(ev.ChatID).Awake()
	})
}

// Group passes for group and supergroup chats.
func Group() handler.Gate {
	return handler.NewGate(GateGroup, func(_ handler.Bot, ev *handler.Event) bool {
		return ev.IsGroup()
	})
}

// Private passes for one-to-one chats.
func Private() handler.Gate {
	return handler.NewGate(GatePrivate, func(_ handler.Bot, ev *handler.Event) bool {
		return ev.IsPrivate()
	})
}

// AdminOnly passes only for adminID. A zero adminID disables the check.
func AdminOnly(adminID int64) handler.Gate {
	return handler.NewGate(GateAdmin, func(_ handler.Bot, ev *handler.Event) bool {
		return adminID == 0 || ev.UserID == adminID
	})
}
