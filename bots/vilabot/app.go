// Package vilabot is a small echo bot. It stays quiet until /start, can be
// put to sleep per chat and answers mentions in thread.
package vilabot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/chatbots/core/apperr"
	"github.com/m3rciful/chatbots/core/bootstrap"
	corecmd "github.com/m3rciful/chatbots/core/cmd"
	"github.com/m3rciful/chatbots/core/logger"
	tg "github.com/m3rciful/chatbots/core/telegram"
	"github.com/m3rciful/chatbots/core/telegram/filters"
	"github.com/m3rciful/chatbots/core/telegram/format"
	"github.com/m3rciful/chatbots/core/telegram/handler"
	"github.com/m3rciful/chatbots/core/telegram/middleware"
	"github.com/m3rciful/chatbots/core/telegram/router"
	"github.com/m3rciful/chatbots/core/telegram/sender"
	"github.com/m3rciful/chatbots/core/telegram/state"
)

// Name identifies the bot in logs and snapshots.
const Name = "vilabot"

const (
	textStart   = "Aaauuuuuuuuu!"
	textSleep   = "Zzz... send /wake when you miss me."
	textWake    = "I'm back!"
	textUnknown = "Unknown command: "
)

// App wires the echo handlers onto the framework.
type App struct {
	cfg  *Config
	bot  *tg.Bot
	reg  *tg.Registry
	disp *router.Dispatcher

	identity string
	res      *bootstrap.Result
	tele     *sender.TeleGateway
}

// New builds the bot over store and gw.
func New(cfg *Config, store *state.Store, gw sender.Gateway) (*App, error) {
	a := &App{cfg: cfg, bot: tg.NewBot(Name, store, gw), identity: Name}
	reg, err := a.Definition().Build(a.bot)
	if err != nil {
		return nil, err
	}
	a.reg = reg
	a.disp = router.New(reg, a.bot, router.Options{})
	return a, nil
}

// Definition declares every vilabot handler. Nothing runs in a chat before
// /start or while the chat sleeps, except the commands that change that.
func (a *App) Definition() *tg.Definition {
	started, awake := middleware.Started(), middleware.Awake()
	return tg.NewDefinition(Name).
		Gate(started, awake).
		Transform(middleware.CacheMessage()).
		Command("start", a.start, handler.Describe("Wake the wolf up"),
			handler.WithGates(started.Cancel(), awake.Cancel())).
		Command("sleep", a.sleep, handler.Describe("Stop answering in this chat")).
		Command("wake", a.wake, handler.Describe("Answer again"), handler.WithGates(awake.Cancel())).
		Command("help", a.help, handler.Describe("List commands")).
		Message("mention", []handler.Filter{filters.Text, filters.Not(filters.Command), filters.MentionOf(a.bot.Username)}, a.mention).
		Message("echo", []handler.Filter{filters.Text, filters.Not(filters.Command)}, a.echo).
		UnknownCommand(a.unknownCommand).
		Error(a.onError)
}

func (a *App) send(ev *handler.Event, text string, opts sender.SendOpts) error {
	return a.bot.Gateway().SendMessage(ev.Context(), ev.ChatID, text, opts)
}

func (a *App) start(ev *handler.Event) error {
	chat := a.bot.Chat(ev.ChatID)
	chat.Wake()
	if !chat.Start() {
		return nil
	}
	return a.send(ev, textStart, sender.SendOpts{})
}

func (a *App) sleep(ev *handler.Event) error {
	a.bot.Chat(ev.ChatID).Sleep()
	return a.send(ev, textSleep, sender.SendOpts{})
}

func (a *App) wake(ev *handler.Event) error {
	chat := a.bot.Chat(ev.ChatID)
	if chat.Awake() {
		return nil
	}
	chat.Wake()
	return a.send(ev, textWake, sender.SendOpts{})
}

func (a *App) help(ev *handler.Event) error {
	cmds := a.reg.ListCommands(true)
	lines := make([]string, 0, len(cmds))
	for _, c := range cmds {
		lines = append(lines, fmt.Sprintf("/%s - %s", c.Text, c.Description))
	}
	return a.send(ev, strings.Join(lines, "\n"), sender.SendOpts{})
}

func (a *App) mention(ev *handler.Event) error {
	return a.send(ev, ev.Text, sender.SendOpts{ReplyTo: ev.MessageID})
}

func (a *App) echo(ev *handler.Event) error {
	return a.send(ev, ev.Text, sender.SendOpts{})
}

func (a *App) unknownCommand(ev *handler.Event) error {
	return a.send(ev, textUnknown+format.Code(ev.Text), sender.SendOpts{ParseMode: tele.ModeMarkdownV2})
}

func (a *App) onError(ev *handler.Event) error {
	logger.LogEvent(ev.Context(), logger.TG, slog.LevelError, "handler.error",
		slog.String("status", "fail"),
		slog.String("err", logger.SanitizeLimit(ev.Err.Error(), 256)),
		slog.String("err_code", string(apperr.KindOf(ev.Err))),
	)
	return nil
}

// Bootstrap prepares logging and storage and builds the app.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("vilabot: unexpected config type %T", carrier)
	}
	res, err := bootstrap.Run(bootstrap.Options{Name: Name, Config: &cfg.Config, Database: cfg.Database})
	if err != nil {
		return nil, err
	}
	gw := sender.NewTeleGateway(sender.New(sender.Options{MaxRetries: cfg.Telegram.SendRetries}))
	a, err := New(cfg, res.Store, gw)
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	a.identity, a.res, a.tele = res.Identity, res, gw
	return a, nil
}

// Dispatcher exposes the event dispatcher.
func (a *App) Dispatcher() *router.Dispatcher { return a.disp }

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	return tg.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    a.reg,
		Gateway:     a.tele,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, nil),
		Routes:      a.disp.Routes(),
	}, nil
}

// LoadState implements cmd.Persistent.
func (a *App) LoadState(ctx context.Context) error {
	return a.bot.Store().Load(ctx, a.identity)
}

// SaveState implements cmd.Persistent and releases the storage afterwards.
func (a *App) SaveState(ctx context.Context) error {
	err := a.bot.Store().Save(ctx, a.identity)
	if cerr := a.res.Close(); err == nil {
		err = cerr
	}
	return err
}
