package sender

import (
	"context"
	"errors"

	tele "gopkg.in/telebot.v4"
)

// ErrNotBound is returned by TeleGateway before Bind.
var ErrNotBound = errors.New("telegram gateway: bot not bound")

// MediaKind selects the Telegram media method.
type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaAnimation MediaKind = "animation"
)

// Media is a photo or animation referenced by Telegram file id or local path.
type Media struct {
	Kind    MediaKind
	FileID  string
	Path    string
	Caption string
}

// SendOpts are the optional parts of an outbound message.
type SendOpts struct {
	Markup    *tele.ReplyMarkup
	ParseMode tele.ParseMode
	Silent    bool
	// ReplyTo threads the message under an earlier one when non-zero.
	ReplyTo int
}

// Answer is the reply to a callback query. A URL opens a deep link.
type Answer struct {
	Text  string
	URL   string
	Alert bool
}

// Gateway is the outbound side of the bot.
type Gateway interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts SendOpts) error
	SendMedia(ctx context.Context, chatID int64, media Media, opts SendOpts) error
	AnswerCallback(ctx context.Context, callbackID string, ans Answer) error
	Username() string
}

// TeleGateway implements Gateway over a telebot bot with retries.
type TeleGateway struct {
	bot    *tele.Bot
	sender *Sender
}

// NewTeleGateway returns an unbound gateway. Bind it once the bot exists.
func NewTeleGateway(s *Sender) *TeleGateway {
	if s == nil {
		s = New(Options{})
	}
	return &TeleGateway{sender: s}
}

// Bind attaches the telebot instance.
func (g *TeleGateway) Bind(b *tele.Bot) { g.bot = b }

// Username returns the bot username without '@', empty before Bind.
func (g *TeleGateway) Username() string {
	if g.bot == nil || g.bot.Me == nil {
		return ""
	}
	return g.bot.Me.Username
}

// SendMessage sends a text message.
func (g *TeleGateway) SendMessage(ctx context.Context, chatID int64, text string, opts SendOpts) error {
	if g.bot == nil {
		return ErrNotBound
	}
	err := g.sender.Do(ctx, "send_message", "sendMessage", func() error {
		_, err := g.bot.Send(tele.ChatID(chatID), text, opts.telebot())
		return err
	})
	if err == nil {
		CountersFrom(ctx).add(opts.Markup != nil)
	}
	return err
}

// SendMedia sends a photo or an animation with an optional caption.
func (g *TeleGateway) SendMedia(ctx context.Context, chatID int64, media Media, opts SendOpts) error {
	if g.bot == nil {
		return ErrNotBound
	}
	file := tele.File{FileID: media.FileID}
	if media.FileID == "" {
		file = tele.FromDisk(media.Path)
	}
	var (
		what     any
		endpoint string
	)
	switch media.Kind {
	case MediaAnimation:
		what, endpoint = &tele.Animation{File: file, Caption: media.Caption}, "sendAnimation"
	default:
		what, endpoint = &tele.Photo{File: file, Caption: media.Caption}, "sendPhoto"
	}
	err := g.sender.Do(ctx, "send_media", endpoint, func() error {
		_, err := g.bot.Send(tele.ChatID(chatID), what, opts.telebot())
		return err
	})
	if err == nil {
		CountersFrom(ctx).add(opts.Markup != nil)
	}
	return err
}

// AnswerCallback answers a callback query.
func (g *TeleGateway) AnswerCallback(ctx context.Context, callbackID string, ans Answer) error {
	if g.bot == nil {
		return ErrNotBound
	}
	return g.sender.Do(ctx, "answer_callback", "answerCallbackQuery", func() error {
		return g.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{
			Text:      ans.Text,
			URL:       ans.URL,
			ShowAlert: ans.Alert,
		})
	})
}

func (o SendOpts) telebot() *tele.SendOptions {
	opts := &tele.SendOptions{
		ReplyMarkup:         o.Markup,
		ParseMode:           o.ParseMode,
		DisableNotification: o.Silent,
	}
	if o.ReplyTo != 0 {
		opts.ReplyTo = &tele.Message{ID: o.ReplyTo}
	}
	return opts
}
