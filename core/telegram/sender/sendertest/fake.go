// Package sendertest provides an in-memory sender.Gateway for tests.
package sendertest

import (
	"context"
	"sync"

	"github.com/m3rciful/chatbots/core/telegram/sender"
)

// Sent is one recorded outbound call.
type Sent struct {
	ChatID     int64
	Text       string
	Media      *sender.Media
	Opts       sender.SendOpts
	CallbackID string
	Answer     *sender.Answer
}

// Gateway records every call. Err, when set, is returned by all methods.
type Gateway struct {
	Name string
	Err  error

	mu   sync.Mutex
	sent []Sent
}

// New returns a fake gateway for a bot with the given username.
func New(username string) *Gateway { return &Gateway{Name: username} }

func (g *Gateway) record(s Sent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return g.Err
	}
	g.sent = append(g.sent, s)
	return nil
}

// SendMessage implements sender.Gateway.
func (g *Gateway) SendMessage(_ context.Context, chatID int64, text string, opts sender.SendOpts) error {
	return g.record(Sent{ChatID: chatID, Text: text, Opts: opts})
}

// SendMedia implements sender.Gateway.
func (g *Gateway) SendMedia(_ context.Context, chatID int64, media sender.Media, opts sender.SendOpts) error {
	return g.record(Sent{ChatID: chatID, Text: media.Caption, Media: &media, Opts: opts})
}

// AnswerCallback implements sender.Gateway.
func (g *Gateway) AnswerCallback(_ context.Context, callbackID string, ans sender.Answer) error {
	return g.record(Sent{CallbackID: callbackID, Text: ans.Text, Answer: &ans})
}

// Username implements sender.Gateway.
func (g *Gateway) Username() string { return g.Name }

// Sent returns a copy of the recorded calls.
func (g *Gateway) Sent() []Sent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Sent(nil), g.sent...)
}

// To returns the texts sent to chatID in order.
func (g *Gateway) To(chatID int64) []string {
	var out []string
	for _, s := range g.Sent() {
		if s.ChatID == chatID && s.CallbackID == "" {
			out = append(out, s.Text)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (g *Gateway) Reset() {
	g.mu.Lock()
	g.sent = nil
	g.mu.Unlock()
}
