package gugubot

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/chatbots/core/apperr"
	"github.com/m3rciful/chatbots/core/game"
	"github.com/m3rciful/chatbots/core/logger"
	tg "github.com/m3rciful/chatbots/core/telegram"
	"github.com/m3rciful/chatbots/core/telegram/callbacks"
	"github.com/m3rciful/chatbots/core/telegram/filters"
	"github.com/m3rciful/chatbots/core/telegram/format"
	"github.com/m3rciful/chatbots/core/telegram/handler"
	"github.com/m3rciful/chatbots/core/telegram/keyboard"
	"github.com/m3rciful/chatbots/core/telegram/middleware"
	"github.com/m3rciful/chatbots/core/telegram/sender"
)

// Callback keys.
const (
	cbJoin   = "join"
	cbReview = "review"

	verdictYes = "yes"
	verdictNo  = "no"
)

// Definition declares every gugubot handler.
func (a *App) Definition() *tg.Definition {
	return tg.NewDefinition(Name).
		Command("start", a.start, handler.Describe("Join a game or say hello")).
		Command("create_game", a.createGame, handler.Alias("create-game"), handler.Describe("Create a game in this group")).
		Command("join", a.join, handler.Describe("Get your link to join the game")).
		Command("leave", a.leave, handler.Describe("Leave the game")).
		Command("list_players", a.listPlayers, handler.Alias("list-players"), handler.Describe("List players")).
		Command("list_commands", a.listCommands, handler.Alias("list-commands"), handler.Describe("List commands")).
		Command("scores", a.scores, handler.Describe("Show the scoreboard")).
		Command("end_game", a.endGame, handler.AdminOnly(), handler.Describe("End the game"),
			handler.WithGates(middleware.AdminOnly(a.cfg.Telegram.AdminID))).
		Message("photo", []handler.Filter{filters.Photo, filters.Group}, a.photo,
			handler.WithTransforms(middleware.CacheMessage())).
		Callback(cbJoin, a.joinButton).
		Callback(cbReview, a.review).
		UnknownCommand(a.unknownCommand).
		Error(a.onError)
}

func (a *App) gw() sender.Gateway { return a.bot.Gateway() }

func (a *App) reply(ev *handler.Event, text string) error {
	return a.gw().SendMessage(ev.Context(), ev.ChatID, text, sender.SendOpts{})
}

func (a *App) answer(ev *handler.Event, text string) error {
	return a.gw().AnswerCallback(ev.Context(), ev.CallbackID, sender.Answer{Text: text})
}

func displayName(ev *handler.Event) string {
	if ev.FullName != "" {
		return ev.FullName
	}
	if ev.Username != "" {
		return "@" + ev.Username
	}
	return strconv.FormatInt(ev.UserID, 10)
}

func (a *App) deepLink(token string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", a.bot.Username(), token)
}

// groupGame resolves the game of a group chat, replying when there is none.
func (a *App) groupGame(ev *handler.Event) (*game.Session, bool, error) {
	if !ev.IsGroup() {
		return nil, false, a.reply(ev, textNeedGroup)
	}
	s, err := a.coord.Game(ev.ChatID)
	if errors.Is(err, game.ErrNoGame) {
		return nil, false, a.reply(ev, textNoGame)
	}
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

func (a *App) start(ev *handler.Event) error {
	a.bot.Chat(ev.ChatID).Start()
	if !ev.IsPrivate() {
		return a.reply(ev, textGreeting)
	}

	var (
		chatID int64
		err    error
	)
	if ev.Payload != "" {
		chatID, err = a.coord.RedeemToken(ev.UserID, ev.Payload)
	} else {
		chatID, err = a.coord.RedeemJoin(ev.UserID)
	}
	if apperr.IsKind(err, apperr.KindJoinResolution) {
		return a.reply(ev, textUseJoinButton)
	}
	if err != nil {
		return err
	}

	s, err := a.coord.Game(chatID)
	if err != nil {
		return a.reply(ev, textGameGone)
	}
	name := displayName(ev)
	if err := s.AddPlayer(game.Player{UserID: ev.UserID, ChatID: ev.ChatID, Name: name}); err != nil {
		if errors.Is(err, game.ErrFinished) {
			return a.reply(ev, textGameGone)
		}
		return err
	}
	if err := a.reply(ev, fmt.Sprintf(textJoinedPrivate, s.Title)); err != nil {
		return err
	}
	return a.gw().SendMessage(ev.Context(), chatID, fmt.Sprintf(textJoinedGroup, name), sender.SendOpts{Silent: true})
}

func (a *App) createGame(ev *handler.Event) error {
	if !ev.IsGroup() {
		return a.reply(ev, textNeedGroup)
	}
	_, err := a.coord.CreateGame(ev.ChatID, a.sessionOptions(ev)...)
	if errors.Is(err, game.ErrGameExists) {
		return a.reply(ev, textGameExists)
	}
	return err
}

func joinMarkup(chatID int64) *tele.ReplyMarkup {
	return keyboard.Row(keyboard.Button{Text: textJoinButton, Unique: cbJoin, Data: strconv.FormatInt(chatID, 10)})
}

func (a *App) join(ev *handler.Event) error {
	if _, ok, err := a.groupGame(ev); !ok {
		return err
	}
	token := a.coord.RegisterJoinToken(ev.UserID, ev.ChatID)
	markup := keyboard.Row(keyboard.Button{Text: textOpenChat, URL: a.deepLink(token)})
	return a.gw().SendMessage(ev.Context(), ev.ChatID, fmt.Sprintf(textJoinLink, displayName(ev)), sender.SendOpts{Markup: markup})
}

func (a *App) joinButton(ev *handler.Event) error {
	chatID, err := callbacks.Int64At(ev.CallbackData, 0)
	if err != nil {
		return err
	}
	if _, err := a.coord.Game(chatID); err != nil {
		return a.answer(ev, textGameGone)
	}
	token := a.coord.RegisterJoinToken(ev.UserID, chatID)
	return a.gw().AnswerCallback(ev.Context(), ev.CallbackID, sender.Answer{URL: a.deepLink(token)})
}

func (a *App) leave(ev *handler.Event) error {
	s, ok, err := a.groupGame(ev)
	if !ok {
		return err
	}
	if err := s.RemovePlayer(ev.UserID); err != nil {
		if errors.Is(err, game.ErrPlayerNotFound) {
			return a.reply(ev, textNotPlaying)
		}
		return err
	}
	return a.reply(ev, fmt.Sprintf(textLeft, displayName(ev)))
}

func (a *App) listPlayers(ev *handler.Event) error {
	s, ok, err := a.groupGame(ev)
	if !ok {
		return err
	}
	players := s.Players()
	if len(players) == 0 {
		return a.reply(ev, textNoPlayers)
	}
	names := make([]string, 0, len(players))
	for _, p := range players {
		names = append(names, p.String())
	}
	return a.reply(ev, fmt.Sprintf(textPlayers, strings.Join(names, "\n")))
}

func (a *App) scores(ev *handler.Event) error {
	s, ok, err := a.groupGame(ev)
	if !ok {
		return err
	}
	players := s.Scores()
	if len(players) == 0 {
		return a.reply(ev, textNoPlayers)
	}
	lines := make([]string, 0, len(players))
	for _, p := range players {
		lines = append(lines, fmt.Sprintf("%s: %d", p, p.Score))
	}
	return a.reply(ev, fmt.Sprintf(textScores, strings.Join(lines, "\n")))
}

func (a *App) listCommands(ev *handler.Event) error {
	cmds := a.reg.ListCommands(true)
	lines := make([]string, 0, len(cmds))
	for _, c := range cmds {
		lines = append(lines, fmt.Sprintf("/%s - %s", c.Text, c.Description))
	}
	return a.reply(ev, strings.Join(lines, "\n"))
}

func (a *App) endGame(ev *handler.Event) error {
	if _, ok, err := a.groupGame(ev); !ok {
		return err
	}
	_, err := a.coord.EndGame(ev.ChatID)
	return err
}

func (a *App) photo(ev *handler.Event) error {
	s, err := a.coord.Game(ev.ChatID)
	if err != nil || !s.Has(ev.UserID) {
		return nil
	}
	arbiter, ok := s.Arbiter()
	if !ok || arbiter.UserID == ev.UserID {
		return nil
	}
	if err := s.Submit(ev.UserID, ev.PhotoID); err != nil {
		return err
	}
	if _, busy := s.Reviewing(); busy {
		return nil
	}
	return a.serveNext(ev, s)
}

// serveNext moves the oldest queued photo under review and shows it to the
// arbiter. An empty queue is not an error.
func (a *App) serveNext(ev *handler.Event, s *game.Session) error {
	if _, err := s.NextForReview(); err != nil {
		if errors.Is(err, game.ErrNoSubmissions) {
			return nil
		}
		return err
	}
	return a.showReviewing(ev, s)
}

func (a *App) review(ev *handler.Event) error {
	fields := callbacks.Fields(ev.CallbackData)
	if len(fields) != 2 {
		return fmt.Errorf("review payload %q", ev.CallbackData)
	}
	chatID, err := callbacks.Int64At(ev.CallbackData, 1)
	if err != nil {
		return err
	}
	s, err := a.coord.Game(chatID)
	if err != nil {
		return a.answer(ev, textGameGone)
	}
	if arbiter, ok := s.Arbiter(); !ok || arbiter.UserID != ev.UserID {
		return a.answer(ev, textNotArbiter)
	}
	if _, ok := s.Reviewing(); !ok {
		return a.answer(ev, textNothingLeft)
	}

	switch fields[0] {
	case verdictYes:
		prompt := s.Prompt()
		p, err := s.Accept()
		if err != nil {
			return err
		}
		if err := a.answer(ev, ""); err != nil {
			return err
		}
		if err := a.gw().SendMessage(ev.Context(), chatID, fmt.Sprintf(textPoint, p, prompt, p.Score), sender.SendOpts{}); err != nil {
			return err
		}
		return s.Advance()
	case verdictNo:
		_, err := s.Reject()
		if errors.Is(err, game.ErrNoSubmissions) {
			return a.answer(ev, textWaiting)
		}
		if err != nil {
			return err
		}
		if err := a.answer(ev, ""); err != nil {
			return err
		}
		// Reject already moved the next photo under review.
		return a.showReviewing(ev, s)
	default:
		return fmt.Errorf("unknown verdict %q", fields[0])
	}
}

func (a *App) showReviewing(ev *handler.Event, s *game.Session) error {
	sub, ok := s.Reviewing()
	if !ok {
		return nil
	}
	arbiter, _ := s.Arbiter()
	author, _ := s.Player(sub.UserID)
	chat := strconv.FormatInt(s.ChatID, 10)
	markup := keyboard.Row(
		keyboard.Button{Text: textYes, Unique: cbReview, Data: callbacks.Join(verdictYes, chat)},
		keyboard.Button{Text: textNo, Unique: cbReview, Data: callbacks.Join(verdictNo, chat)},
	)
	media := sender.Media{Kind: sender.MediaPhoto, FileID: sub.Payload, Caption: fmt.Sprintf(textReview, s.Prompt(), author)}
	return a.gw().SendMedia(ev.Context(), arbiter.ChatID, media, sender.SendOpts{Markup: markup})
}

func (a *App) unknownCommand(ev *handler.Event) error {
	text := textUnknown + format.Code(ev.Text)
	return a.gw().SendMessage(ev.Context(), ev.ChatID, text, sender.SendOpts{ParseMode: tele.ModeMarkdownV2})
}

func (a *App) onError(ev *handler.Event) error {
	logger.LogEvent(ev.Context(), logger.Game, slog.LevelWarn, "handler.error",
		slog.String("status", "fail"),
		slog.String("err", logger.SanitizeLimit(ev.Err.Error(), 256)),
		slog.String("err_code", string(apperr.KindOf(ev.Err))),
	)
	if ev.Kind == handler.KindCallback && ev.CallbackID != "" {
		return a.gw().AnswerCallback(ev.Context(), ev.CallbackID, sender.Answer{Text: textFailure, Alert: true})
	}
	if ev.ChatID == 0 {
		return nil
	}
	return a.reply(ev, textFailure)
}
