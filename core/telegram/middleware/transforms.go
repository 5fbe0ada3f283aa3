package middleware

import (
	"log/slog"

	"github.com/m3rciful/chatbots/core/logger"
	"github.com/m3rciful/chatbots/core/telegram/handler"
	"github.com/m3rciful/chatbots/core/telegram/state"
)

// ChatKey is the event value set by WithChat.
const ChatKey = "chat"

// WithChat exposes the chat state of the event as ChatKey.
func WithChat() handler.Transform {
	return handler.Transform{Name: "with_chat", Apply: func(bot handler.Bot, ev *handler.Event) (*handler.Event, error) {
		return ev.With(ChatKey, bot.Chat(ev.ChatID)), nil
	}}
}

// ChatFrom returns the chat stored by WithChat.
func ChatFrom(ev *handler.Event) (*state.Chat, bool) {
	c, ok := ev.Value(ChatKey).(*state.Chat)
	return c, ok && c != nil
}

// CacheMessage appends text and photo messages to the chat cache.
func CacheMessage() handler.Transform {
	return handler.Transform{Name: "cache_message", Apply: func(bot handler.Bot, ev *handler.Event) (*handler.Event, error) {
		if ev.Kind == handler.KindCallback || (ev.Text == "" && ev.PhotoID == "") {
			return nil, nil
		}
		bot.Chat(ev.ChatID).Append(state.Message{
			ID:       ev.MessageID,
			UserID:   ev.UserID,
			Username: ev.Username,
			Text:     ev.Text,
			PhotoID:  ev.PhotoID,
			Unix:     ev.Unix,
		})
		logger.LogEvent(ev.Context(), logger.Store, slog.LevelDebug, "chat.cached",
			slog.Int64("chat_id", ev.ChatID),
			slog.Int("message_id", ev.MessageID),
		)
		return nil, nil
	}}
}
