// Package gugubot is a photo hunt party game: the arbiter of each round
// judges the photos other players send for the current prompt.
package gugubot

import (
	"context"
	"fmt"

	"github.com/m3rciful/chatbots/core/bootstrap"
	corecmd "github.com/m3rciful/chatbots/core/cmd"
	"github.com/m3rciful/chatbots/core/game"
	tg "github.com/m3rciful/chatbots/core/telegram"
	"github.com/m3rciful/chatbots/core/telegram/handler"
	"github.com/m3rciful/chatbots/core/telegram/router"
	"github.com/m3rciful/chatbots/core/telegram/sender"
	"github.com/m3rciful/chatbots/core/telegram/state"
)

// Name identifies the bot in logs and snapshots.
const Name = "gugubot"

// Common bucket key holding total wins per user id.
const winsKey = "wins"

// App wires the game onto the framework.
type App struct {
	cfg      *Config
	bot      *tg.Bot
	reg      *tg.Registry
	disp     *router.Dispatcher
	coord    *game.Coordinator
	prompts  []string
	gameOpts []game.Option

	// cur is the context of the event being dispatched.
	cur context.Context

	identity string
	res      *bootstrap.Result
	tele     *sender.TeleGateway
}

// New builds the bot over store and gw. extra options are applied to every
// game after the built-in ones.
func New(cfg *Config, store *state.Store, gw sender.Gateway, extra ...game.Option) (*App, error) {
	prompts, err := cfg.Game.Prompts()
	if err != nil {
		return nil, err
	}
	a := &App{
		cfg:      cfg,
		bot:      tg.NewBot(Name, store, gw),
		coord:    game.NewCoordinator(),
		prompts:  prompts,
		gameOpts: extra,
		identity: Name,
	}
	a.reg, err = a.Definition().Build(a.bot)
	if err != nil {
		return nil, err
	}
	a.disp = router.New(a.reg, a.bot, router.Options{
		OnReceived:   func(ev *handler.Event) { a.cur = ev.Context() },
		OnDispatched: func(*handler.Event) { a.coord.Tick() },
	})
	return a, nil
}

// Bootstrap prepares logging and storage and builds the app.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("gugubot: unexpected config type %T", carrier)
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

// Registry exposes the compiled handlers.
func (a *App) Registry() *tg.Registry { return a.reg }

// Coordinator exposes the running games.
func (a *App) Coordinator() *game.Coordinator { return a.coord }

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
