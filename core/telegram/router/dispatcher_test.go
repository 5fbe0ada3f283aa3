package router

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/m3rciful/chatbots/core/apperr"
	tg "github.com/m3rciful/chatbots/core/telegram"
	"github.com/m3rciful/chatbots/core/telegram/filters"
	"github.com/m3rciful/chatbots/core/telegram/handler"
	"github.com/m3rciful/chatbots/core/telegram/middleware"
	"github.com/m3rciful/chatbots/core/telegram/sender"
	"github.com/m3rciful/chatbots/core/telegram/sender/sendertest"
	"github.com/m3rciful/chatbots/core/telegram/state"
)

type fixture struct {
	bot   *tg.Bot
	gw    *sendertest.Gateway
	calls []string
	errs  []error
}

func (f *fixture) record(name string) handler.Target {
	return func(*handler.Event) error {
		f.calls = append(f.calls, name)
		return nil
	}
}

func newFixture(t *testing.T, build func(f *fixture, d *tg.Definition)) (*fixture, *Dispatcher) {
	t.Helper()
	f := &fixture{gw: sendertest.New("vila_bot")}
	f.bot = tg.NewBot("vilabot", state.NewStore(nil), f.gw)
	def := tg.NewDefinition("vilabot")
	build(f, def)
	reg, err := def.Build(f.bot)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return f, New(reg, f.bot, Options{})
}

func command(name string) *handler.Event {
	return &handler.Event{Kind: handler.KindCommand, ChatID: 1, Command: name, Text: "/" + name}
}

func TestCommandRoutingWithAliasesAndFallback(t *testing.T) {
	f, d := newFixture(t, func(f *fixture, def *tg.Definition) {
		def.Command("list_players", f.record("list_players"), handler.Alias("list-players")).
			UnknownCommand(f.record("unknown"))
	})
	d.Dispatch(command("list_players"))
	d.Dispatch(command("list-players"))
	d.Dispatch(command("nope"))
	if diff := cmp.Diff([]string{"list_players", "list_players", "unknown"}, f.calls); diff != "" {
		t.Fatalf("calls (-want +got):\n%s", diff)
	}
}

func TestCommandForAnotherBotIsDropped(t *testing.T) {
	f, d := newFixture(t, func(f *fixture, def *tg.Definition) {
		def.Command("start", f.record("start"))
	})
	ev := command("start")
	ev.CommandTarget = "other_bot"
	if d.Dispatch(ev) {
		t.Fatal("command addressed to another bot must be dropped")
	}
	ev.CommandTarget = "Vila_Bot"
	if !d.Dispatch(ev) || len(f.calls) != 1 {
		t.Fatalf("calls = %v", f.calls)
	}
}

func TestMessageFirstMatchWins(t *testing.T) {
	f, d := newFixture(t, func(f *fixture, def *tg.Definition) {
		def.Message("mention", []handler.Filter{filters.Text, filters.Mention("vila_bot")}, f.record("mention")).
			Message("echo", []handler.Filter{filters.Text}, f.record("echo"))
	})
	d.Dispatch(&handler.Event{Kind: handler.KindMessage, Text: "hey @vila_bot", Entities: []handler.Entity{{Type: "mention", Text: "@vila_bot"}}})
	d.Dispatch(&handler.Event{Kind: handler.KindMessage, Text: "hey"})
	if d.Dispatch(&handler.Event{Kind: handler.KindMessage, PhotoID: "p"}) {
		t.Fatal("photo without text must not match")
	}
	if diff := cmp.Diff([]string{"mention", "echo"}, f.calls); diff != "" {
		t.Fatalf("calls (-want +got):\n%s", diff)
	}
}

func TestGatedHandlerDoesNotRun(t *testing.T) {
	f, d := newFixture(t, func(f *fixture, def *tg.Definition) {
		def.Gate(middleware.Started()).
			Command("start", f.record("start"), handler.WithGates(middleware.Started().Invert())).
			Command("help", f.record("help"))
	})
	if d.Dispatch(command("help")) {
		t.Fatal("help ran before start")
	}
	f.bot.Chat(1).Start()
	if !d.Dispatch(command("help")) || d.Dispatch(command("start")) {
		t.Fatalf("calls = %v", f.calls)
	}
}

func TestErrorsAndPanicsReachErrorHandler(t *testing.T) {
	boom := apperr.Errorf(apperr.KindStateTransition, "game.start", "already started")
	f, d := newFixture(t, func(f *fixture, def *tg.Definition) {
		def.Command("fail", func(*handler.Event) error { return boom }).
			Command("panic", func(*handler.Event) error { panic("kaput") }).
			Error(func(ev *handler.Event) error {
				f.errs = append(f.errs, ev.Err)
				if ev.Command == "" {
					t.Fatal("error handler must receive the full event")
				}
				return errors.New("error handler fails too")
			})
	})
	d.Dispatch(command("fail"))
	d.Dispatch(command("panic"))
	if len(f.errs) != 2 || !errors.Is(f.errs[0], boom) || f.errs[1] == nil {
		t.Fatalf("errors = %v", f.errs)
	}
	if got := deriveErrorCode(f.errs[0]); got != "STATE_TRANSITION" {
		t.Fatalf("err_code = %q", got)
	}
	if got := deriveErrorCode(errors.New("plain")); got != string(apperr.KindUnknown) {
		t.Fatalf("plain err_code = %q", got)
	}
}

func TestErrorHandlerSkipsBotLevelPipeline(t *testing.T) {
	transformed := 0
	f, d := newFixture(t, func(f *fixture, def *tg.Definition) {
		def.Gate(middleware.Awake()).
			Transform(handler.Transform{Name: "count", Apply: func(_ handler.Bot, ev *handler.Event) (*handler.Event, error) {
				transformed++
				return ev, nil
			}}).
			Command("sleep", func(*handler.Event) error {
				f.bot.Chat(1).Sleep()
				return errors.New("send failed")
			}).
			Error(func(ev *handler.Event) error {
				f.errs = append(f.errs, ev.Err)
				return nil
			})
	})
	d.Dispatch(command("sleep"))
	if len(f.errs) != 1 || f.errs[0] == nil {
		t.Fatalf("error handler gated by bot-level state: errors = %v", f.errs)
	}
	if transformed != 1 {
		t.Fatalf("bot-level transform ran %d times", transformed)
	}
}

func TestUnknownCallbackAnswered(t *testing.T) {
	f, d := newFixture(t, func(f *fixture, def *tg.Definition) {
		def.Callback("join", f.record("join"))
	})
	d.Dispatch(&handler.Event{Kind: handler.KindCallback, CallbackID: "cb1", CallbackUnique: "join"})
	d.Dispatch(&handler.Event{Kind: handler.KindCallback, CallbackID: "cb2", CallbackUnique: "old"})
	sent := f.gw.Sent()
	if len(f.calls) != 1 || len(sent) != 1 || sent[0].CallbackID != "cb2" || sent[0].Text != UnsupportedAction {
		t.Fatalf("calls=%v sent=%+v", f.calls, sent)
	}
}

func TestOnDispatchedRunsForEveryEvent(t *testing.T) {
	f := &fixture{gw: sendertest.New("b")}
	f.bot = tg.NewBot("b", state.NewStore(nil), f.gw)
	reg, err := tg.NewDefinition("b").Command("start", f.record("start")).Build(f.bot)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	n, received := 0, 0
	d := New(reg, f.bot, Options{
		OnReceived: func(ev *handler.Event) {
			if sender.CountersFrom(ev.Context()) == nil {
				t.Fatal("OnReceived saw an event without send counters")
			}
			received++
		},
		OnDispatched: func(*handler.Event) { n++ },
	})
	d.Dispatch(command("start"))
	d.Dispatch(command("missing"))
	if n != 2 || received != 2 {
		t.Fatalf("OnDispatched ran %d times, OnReceived %d", n, received)
	}
}

func TestRoutesCoverInboundEndpoints(t *testing.T) {
	_, d := newFixture(t, func(*fixture, *tg.Definition) {})
	if got := len(d.Routes()); got != 8 {
		t.Fatalf("routes = %d", got)
	}
}
