package gugubot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/m3rciful/chatbots/core/game"
	"github.com/m3rciful/chatbots/core/telegram/handler"
	"github.com/m3rciful/chatbots/core/telegram/sender"
)

// eventContext is the context of the event being dispatched. Session hooks
// fire from handler bodies and from Tick, so they read it from here.
func (a *App) eventContext() context.Context {
	if a.cur == nil {
		return context.Background()
	}
	return a.cur
}

// sessionOptions configures a new game created by ev. The review handler
// advances rounds itself so the score line precedes the next round.
func (a *App) sessionOptions(ev *handler.Event) []game.Option {
	title := ev.ChatTitle
	if title == "" {
		title = "this group"
	}
	organiser := displayName(ev)
	opts := []game.Option{
		game.WithTitle(title),
		game.WithPrompts(a.prompts),
		game.WithMinPlayers(a.cfg.Game.MinPlayers),
		game.OnStart(func(s *game.Session) error { return a.announceStart(a.eventContext(), s, organiser) }),
		game.OnRound(func(s *game.Session) error { return a.announceRound(a.eventContext(), s) }),
		game.OnFinish(func(s *game.Session) error { return a.announceFinish(a.eventContext(), s) }),
		game.OnUpdate(func(*game.Session) error { return nil }),
	}
	return append(opts, a.gameOpts...)
}

func (a *App) announce(ctx context.Context, chatID int64, animation, text string, opts sender.SendOpts) error {
	if animation == "" {
		return a.gw().SendMessage(ctx, chatID, text, opts)
	}
	return a.gw().SendMedia(ctx, chatID, sender.Media{Kind: sender.MediaAnimation, Path: animation, Caption: text}, opts)
}

func (a *App) announceStart(ctx context.Context, s *game.Session, organiser string) error {
	return a.announce(ctx, s.ChatID, a.cfg.Game.StartAnimation,
		fmt.Sprintf(textGameStarted, organiser),
		sender.SendOpts{Markup: joinMarkup(s.ChatID)})
}

func (a *App) announceRound(ctx context.Context, s *game.Session) error {
	arbiter, ok := s.Arbiter()
	if !ok {
		return nil
	}
	if err := a.gw().SendMessage(ctx, s.ChatID, fmt.Sprintf(textRound, arbiter, s.Prompt()), sender.SendOpts{}); err != nil {
		return err
	}
	return a.gw().SendMessage(ctx, arbiter.ChatID, fmt.Sprintf(textArbiter, s.Prompt()), sender.SendOpts{})
}

func (a *App) announceFinish(ctx context.Context, s *game.Session) error {
	winner, err := s.Winner()
	if errors.Is(err, game.ErrNoPlayers) {
		return a.gw().SendMessage(ctx, s.ChatID, textNoWinner, sender.SendOpts{})
	}
	if err != nil {
		return err
	}
	wins := map[string]int{}
	if _, err := a.bot.Store().Common(winsKey, &wins); err != nil {
		return err
	}
	key := strconv.FormatInt(winner.UserID, 10)
	wins[key]++
	// A failed announcement rolls the finish back, so the win is kept only
	// once it has been announced.
	if err := a.announce(ctx, s.ChatID, a.cfg.Game.FinishAnimation,
		fmt.Sprintf(textWinner, winner, winner.Score, wins[key]), sender.SendOpts{}); err != nil {
		return err
	}
	return a.bot.Store().SetCommon(winsKey, wins)
}
