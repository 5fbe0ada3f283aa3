// Package handler models inbound events and compiles gate predicates and
// transform pipelines into one closure per handler.
package handler

import (
	"context"
	"maps"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/chatbots/core/telegram/state"
)

// Kind is the category of an inbound event and of the handler serving it.
type Kind string

const (
	KindCommand  Kind = "command"
	KindMessage  Kind = "message"
	KindCallback Kind = "callback"
	KindError    Kind = "error"
)

// Bot is what gates, transforms and handlers see of the running bot.
type Bot interface {
	Name() string
	Username() string
	Chat(chatID int64) *state.Chat
}

// Entity is a message entity with its text already cut out of the message.
type Entity struct {
	Type   string
	Text   string
	UserID int64
}

// Event is the normalised form of one Telegram update. Events are treated as
// immutable: the With* methods return modified copies.
type Event struct {
	Kind     Kind
	UpdateID int

	ChatID    int64
	ChatType  string
	ChatTitle string

	UserID   int64
	Username string
	FullName string

	MessageID int
	Unix      int64
	Text      string
	Entities  []Entity

	// Command is lower-cased without slash; CommandTarget holds the bot
	// username after '@', if any.
	Command       string
	CommandTarget string
	Payload       string
	Args          []string

	PhotoID     string
	AnimationID string

	CallbackID     string
	CallbackUnique string
	CallbackData   string

	Err error

	// Raw is the telebot context the event came from; nil in tests.
	Raw tele.Context

	ctx    context.Context
	values map[string]any
}

// Context returns the logging context of the event.
func (e *Event) Context() context.Context {
	if e == nil || e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

// WithContext returns a copy carrying ctx.
func (e *Event) WithContext(ctx context.Context) *Event {
	cp := e.clone()
	cp.ctx = ctx
	return cp
}

// With returns a copy where key maps to v.
func (e *Event) With(key string, v any) *Event {
	cp := e.clone()
	cp.values = maps.Clone(e.values)
	if cp.values == nil {
		cp.values = make(map[string]any, 1)
	}
	cp.values[key] = v
	return cp
}

// Value returns the value stored under key by a transform.
func (e *Event) Value(key string) any {
	if e == nil {
		return nil
	}
	return e.values[key]
}

// WithError returns a copy carrying err, used to feed error handlers.
func (e *Event) WithError(err error) *Event {
	cp := e.clone()
	cp.Err = err
	return cp
}

func (e *Event) clone() *Event {
	cp := *e
	return &cp
}

// IsGroup reports whether the event comes from a group or supergroup.
func (e *Event) IsGroup() bool {
	return e.ChatType == string(tele.ChatGroup) || e.ChatType == string(tele.ChatSuperGroup)
}

// IsPrivate reports whether the event comes from a private chat.
func (e *Event) IsPrivate() bool {
	return e.ChatType == string(tele.ChatPrivate)
}
