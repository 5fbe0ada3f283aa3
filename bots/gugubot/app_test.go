package gugubot

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/chatbots/core/game"
	"github.com/m3rciful/chatbots/core/telegram/handler"
	"github.com/m3rciful/chatbots/core/telegram/sender/sendertest"
	"github.com/m3rciful/chatbots/core/telegram/state"
)

const groupID = -100

type harness struct {
	t   *testing.T
	app *App
	gw  *sendertest.Gateway
}

func newHarness(t *testing.T, prompts ...string) *harness {
	t.Helper()
	cfg := &Config{}
	cfg.Game.MinPlayers = 2
	gw := sendertest.New("gugu_bot")
	app, err := New(cfg, state.NewStore(nil), gw,
		game.WithPrompts(prompts),
		game.WithRand(rand.New(rand.NewPCG(1, 2))),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &harness{t: t, app: app, gw: gw}
}

func (h *harness) groupCommand(userID int64, text string) {
	h.t.Helper()
	name, _, payload, _ := handler.ParseCommand(text)
	h.app.Dispatcher().Dispatch(&handler.Event{
		Kind: handler.KindCommand, ChatID: groupID, ChatType: string(tele.ChatSuperGroup), ChatTitle: "Sunday Club",
		UserID: userID, FullName: "user" + strconv.FormatInt(userID, 10), Text: text, Command: name, Payload: payload,
	})
}

func (h *harness) callback(userID int64, unique, data string) sendertest.Sent {
	h.t.Helper()
	h.gw.Reset()
	h.app.Dispatcher().Dispatch(&handler.Event{
		Kind: handler.KindCallback, ChatID: userID, ChatType: string(tele.ChatPrivate), UserID: userID,
		CallbackID: "cb" + strconv.FormatInt(userID, 10), CallbackUnique: unique, CallbackData: data,
	})
	for _, s := range h.gw.Sent() {
		if s.Answer != nil {
			return s
		}
	}
	h.t.Fatalf("callback %s was not answered", unique)
	return sendertest.Sent{}
}

// join walks a player through the join button and the deep link.
func (h *harness) join(userID int64) {
	h.t.Helper()
	ans := h.callback(userID, cbJoin, strconv.Itoa(groupID))
	_, token, ok := strings.Cut(ans.Answer.URL, "https://t.me/gugu_bot?start=")
	if !ok || token == "" {
		h.t.Fatalf("join answer URL = %q", ans.Answer.URL)
	}
	h.app.Dispatcher().Dispatch(&handler.Event{
		Kind: handler.KindCommand, ChatID: userID, ChatType: string(tele.ChatPrivate), UserID: userID,
		FullName: "user" + strconv.FormatInt(userID, 10), Text: "/start " + token, Command: "start", Payload: token,
	})
}

func (h *harness) photo(userID int64, fileID string) {
	h.app.Dispatcher().Dispatch(&handler.Event{
		Kind: handler.KindMessage, ChatID: groupID, ChatType: string(tele.ChatSuperGroup), UserID: userID, PhotoID: fileID,
	})
}

func (h *harness) session() *game.Session {
	h.t.Helper()
	s, err := h.app.Coordinator().Game(groupID)
	if err != nil {
		h.t.Fatalf("Game: %v", err)
	}
	return s
}

func lastTo(gw *sendertest.Gateway, chatID int64) string {
	texts := gw.To(chatID)
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func TestFullGame(t *testing.T) {
	h := newHarness(t, "a banana")

	h.groupCommand(1, "/create_game")
	sent := h.gw.Sent()
	if len(sent) != 1 || sent[0].ChatID != groupID || sent[0].Opts.Markup == nil {
		t.Fatalf("start announcement = %+v", sent)
	}
	h.groupCommand(1, "/create-game")
	if got := lastTo(h.gw, groupID); got != textGameExists {
		t.Fatalf("second create replied %q", got)
	}

	h.join(1)
	if s := h.session(); len(s.Players()) != 1 {
		t.Fatalf("players = %v", s.Players())
	}
	if _, ok := h.session().Arbiter(); ok {
		t.Fatal("round opened with a single player")
	}
	h.join(2)
	s := h.session()
	arbiter, ok := s.Arbiter()
	if !ok || s.Prompt() != "a banana" {
		t.Fatalf("round not opened: arbiter=%v prompt=%q", arbiter, s.Prompt())
	}
	hunter := int64(3) - arbiter.UserID

	h.gw.Reset()
	h.photo(arbiter.UserID, "own")
	h.photo(99, "stranger")
	if len(h.gw.Sent()) != 0 || s.Pending() != 0 {
		t.Fatal("photos from the arbiter or strangers must be ignored")
	}
	h.photo(hunter, "ph1")
	sent = h.gw.Sent()
	if len(sent) != 1 || sent[0].ChatID != arbiter.ChatID || sent[0].Media == nil || sent[0].Media.FileID != "ph1" {
		t.Fatalf("review request = %+v", sent)
	}

	if ans := h.callback(hunter, cbReview, "yes|"+strconv.Itoa(groupID)); ans.Text != textNotArbiter {
		t.Fatalf("non-arbiter answer = %q", ans.Text)
	}
	h.callback(arbiter.UserID, cbReview, "yes|"+strconv.Itoa(groupID))

	if _, err := h.app.Coordinator().Game(groupID); !errors.Is(err, game.ErrNoGame) {
		t.Fatalf("finished game still active: %v", err)
	}
	texts := h.gw.To(groupID)
	if len(texts) != 2 || !strings.Contains(texts[0], "found a banana") || !strings.Contains(texts[1], "won the photo hunt with 1 points") {
		t.Fatalf("group messages = %q", texts)
	}
	wins := map[string]int{}
	if ok, err := h.app.bot.Store().Common(winsKey, &wins); !ok || err != nil || wins[strconv.FormatInt(hunter, 10)] != 1 {
		t.Fatalf("wins = %v ok=%v err=%v", wins, ok, err)
	}
}

func TestRejectServesNextPhoto(t *testing.T) {
	h := newHarness(t, "a hat", "a dog")
	h.groupCommand(1, "/create_game")
	for _, id := range []int64{1, 2, 3} {
		h.join(id)
	}
	s := h.session()
	arbiter, _ := s.Arbiter()
	var hunters []int64
	for _, id := range []int64{1, 2, 3} {
		if id != arbiter.UserID {
			hunters = append(hunters, id)
		}
	}
	h.photo(hunters[0], "first")
	h.photo(hunters[1], "second")
	if sub, ok := s.Reviewing(); !ok || sub.Payload != "first" || s.Pending() != 1 {
		t.Fatalf("reviewing=%v pending=%d", sub, s.Pending())
	}

	data := "no|" + strconv.Itoa(groupID)
	h.callback(arbiter.UserID, cbReview, data)
	if sub, ok := s.Reviewing(); !ok || sub.Payload != "second" {
		t.Fatalf("after first reject reviewing=%v", sub)
	}
	var shown bool
	for _, sent := range h.gw.Sent() {
		if sent.Media != nil && sent.Media.FileID == "second" && sent.ChatID == arbiter.ChatID {
			shown = true
		}
	}
	if !shown {
		t.Fatal("second photo was not shown to the arbiter")
	}
	if ans := h.callback(arbiter.UserID, cbReview, data); ans.Text != textWaiting {
		t.Fatalf("empty queue answer = %q", ans.Text)
	}
	if ans := h.callback(arbiter.UserID, cbReview, data); ans.Text != textNothingLeft {
		t.Fatalf("nothing to review answer = %q", ans.Text)
	}
	for _, p := range s.Players() {
		if p.Score != 0 {
			t.Fatalf("rejected photos scored: %v", p)
		}
	}
}

func TestStartWithoutPendingJoin(t *testing.T) {
	h := newHarness(t, "a cup")
	h.app.Dispatcher().Dispatch(&handler.Event{
		Kind: handler.KindCommand, ChatID: 5, ChatType: string(tele.ChatPrivate), UserID: 5, Text: "/start", Command: "start",
	})
	if got := lastTo(h.gw, 5); got != textUseJoinButton {
		t.Fatalf("reply = %q", got)
	}
	if !h.app.bot.Chat(5).Started() {
		t.Fatal("/start must mark the chat started")
	}
}

func TestGroupOnlyCommands(t *testing.T) {
	h := newHarness(t, "a cup")
	h.app.Dispatcher().Dispatch(&handler.Event{
		Kind: handler.KindCommand, ChatID: 5, ChatType: string(tele.ChatPrivate), UserID: 5, Text: "/create_game", Command: "create_game",
	})
	if got := lastTo(h.gw, 5); got != textNeedGroup {
		t.Fatalf("reply = %q", got)
	}
	h.groupCommand(1, "/list_players")
	if got := lastTo(h.gw, groupID); got != textNoGame {
		t.Fatalf("reply = %q", got)
	}
	h.groupCommand(1, "/create_game")
	h.groupCommand(1, "/leave")
	if got := lastTo(h.gw, groupID); got != textNotPlaying {
		t.Fatalf("reply = %q", got)
	}
	h.join(1)
	h.groupCommand(1, "/list-players")
	if got := lastTo(h.gw, groupID); got != "Players:\nuser1" {
		t.Fatalf("reply = %q", got)
	}
}

func TestEndGameAnnouncesWinner(t *testing.T) {
	h := newHarness(t, "a cup", "a pen")
	h.groupCommand(1, "/create_game")
	h.join(1)
	h.groupCommand(1, "/end_game")
	if _, err := h.app.Coordinator().Game(groupID); !errors.Is(err, game.ErrNoGame) {
		t.Fatalf("game still active: %v", err)
	}
	if got := lastTo(h.gw, groupID); !strings.HasPrefix(got, "user1 won") {
		t.Fatalf("reply = %q", got)
	}
}

func TestUnknownCommandEscaped(t *testing.T) {
	h := newHarness(t, "a cup")
	h.groupCommand(1, "/dance_`now`")
	sent := h.gw.Sent()
	if len(sent) != 1 || sent[0].Text != "Unknown command: `/dance_\\`now\\``" || sent[0].Opts.ParseMode != tele.ModeMarkdownV2 {
		t.Fatalf("sent = %+v", sent)
	}
}

func TestListCommands(t *testing.T) {
	h := newHarness(t, "a cup")
	h.groupCommand(1, "/list_commands")
	got := lastTo(h.gw, groupID)
	if !strings.Contains(got, "/create_game - Create a game in this group") || strings.Contains(got, "end_game") {
		t.Fatalf("reply = %q", got)
	}
}

func TestFailedFinishDoesNotRecordWin(t *testing.T) {
	h := newHarness(t, "a cup")
	h.groupCommand(1, "/create_game")
	h.join(1)
	h.gw.Err = errors.New("network down")
	for range 3 {
		if _, err := h.app.Coordinator().EndGame(groupID); err == nil {
			t.Fatal("EndGame succeeded with a failing gateway")
		}
	}
	wins := map[string]int{}
	if _, err := h.app.bot.Store().Common(winsKey, &wins); err != nil || len(wins) != 0 {
		t.Fatalf("wins after failed finishes = %v (err %v)", wins, err)
	}
	h.gw.Err = nil
	if _, err := h.app.Coordinator().EndGame(groupID); err != nil {
		t.Fatalf("EndGame: %v", err)
	}
	if _, err := h.app.bot.Store().Common(winsKey, &wins); err != nil || wins["1"] != 1 {
		t.Fatalf("wins = %v (err %v)", wins, err)
	}
}

func TestUnmatchedEventRefreshesHookContext(t *testing.T) {
	type key struct{}
	h := newHarness(t, "a cup")
	h.groupCommand(1, "/create_game")
	ev := (&handler.Event{Kind: handler.KindMessage, ChatID: groupID, ChatType: string(tele.ChatSuperGroup), UserID: 2}).
		WithContext(context.WithValue(context.Background(), key{}, "sticker"))
	if h.app.Dispatcher().Dispatch(ev) {
		t.Fatal("empty message must not match a handler")
	}
	if got := h.app.eventContext().Value(key{}); got != "sticker" {
		t.Fatalf("hook context value = %v", got)
	}
}
