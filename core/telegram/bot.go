package telegram

import (
	"github.com/m3rciful/chatbots/core/telegram/handler"
	"github.com/m3rciful/chatbots/core/telegram/sender"
	"github.com/m3rciful/chatbots/core/telegram/state"
)

// Bot is the handle every gate, transform and handler body receives.
type Bot struct {
	name    string
	store   *state.Store
	gateway sender.Gateway
}

var _ handler.Bot = (*Bot)(nil)

// NewBot binds a bot name to its chat state store and outbound gateway.
func NewBot(name string, store *state.Store, gw sender.Gateway) *Bot {
	if store == nil {
		store = state.NewStore(nil)
	}
	return &Bot{name: name, store: store, gateway: gw}
}

// Name returns the configured bot name.
func (b *Bot) Name() string { return b.name }

// Username returns the Telegram username reported by the gateway.
func (b *Bot) Username() string {
	if b.gateway == nil {
		return ""
	}
	return b.gateway.Username()
}

// Chat returns the state of chatID, creating it on first access.
func (b *Bot) Chat(chatID int64) *state.Chat { return b.store.Chat(chatID) }

// Store exposes the chat state store.
func (b *Bot) Store() *state.Store { return b.store }

// Gateway exposes the outbound messaging gateway.
func (b *Bot) Gateway() sender.Gateway { return b.gateway }
