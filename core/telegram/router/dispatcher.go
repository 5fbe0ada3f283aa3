// Package router turns telebot updates into events and dispatches them to
// the compiled handlers of a registry.
package router

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/chatbots/core/logger"
	tg "github.com/m3rciful/chatbots/core/telegram"
	"github.com/m3rciful/chatbots/core/telegram/handler"
	"github.com/m3rciful/chatbots/core/telegram/sender"
)

// UnsupportedAction is answered to callbacks nobody handles.
const UnsupportedAction = "Unsupported action"

// Options configures a Dispatcher.
type Options struct {
	// OnReceived runs before routing, for every event.
	OnReceived func(ev *handler.Event)
	// OnDispatched runs after every event, handled or not.
	OnDispatched func(ev *handler.Event)
}

// Dispatcher routes events one at a time.
type Dispatcher struct {
	reg          *tg.Registry
	bot          *tg.Bot
	onReceived   func(ev *handler.Event)
	onDispatched func(ev *handler.Event)
}

// New returns a dispatcher serving reg on behalf of bot.
func New(reg *tg.Registry, bot *tg.Bot, opts Options) *Dispatcher {
	return &Dispatcher{reg: reg, bot: bot, onReceived: opts.OnReceived, onDispatched: opts.OnDispatched}
}

// Handle is the telebot entry point. It never returns an error so the update
// loop keeps running.
func (d *Dispatcher) Handle(c tele.Context) error {
	d.Dispatch(handler.Normalize(c))
	return nil
}

// Routes binds Handle to every inbound endpoint the bots react to.
func (d *Dispatcher) Routes() []tg.Route {
	endpoints := []string{
		tele.OnText, tele.OnPhoto, tele.OnAnimation, tele.OnVideo,
		tele.OnDocument, tele.OnSticker, tele.OnVoice, tele.OnCallback,
	}
	routes := make([]tg.Route, 0, len(endpoints))
	for _, ep := range endpoints {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: d.Handle})
	}
	return routes
}

// Dispatch selects the handler for ev and runs it. It reports whether a
// handler body ran.
func (d *Dispatcher) Dispatch(ev *handler.Event) bool {
	if sender.CountersFrom(ev.Context()) == nil {
		ctx, _ := sender.WithCounters(ev.Context())
		ev = ev.WithContext(ctx)
	}
	if d.onReceived != nil {
		d.onReceived(ev)
	}
	if d.onDispatched != nil {
		defer d.onDispatched(ev)
	}

	start := time.Now()
	entry, ok := d.route(ev)
	if !ok {
		if ev.Kind == handler.KindCallback {
			d.answerUnsupported(ev)
		}
		logHandlerSummary(ev, "none", start, outcomeDropped, nil)
		return false
	}
	return d.run(entry, ev, start)
}

func (d *Dispatcher) route(ev *handler.Event) (*tg.Entry, bool) {
	switch ev.Kind {
	case handler.KindCommand:
		if ev.CommandTarget != "" && !strings.EqualFold(ev.CommandTarget, d.bot.Username()) {
			return nil, false
		}
		if e, ok := d.reg.LookupCommand(ev.Command); ok {
			return e, true
		}
		return d.reg.UnknownCommand()
	case handler.KindCallback:
		if e, ok := d.reg.Callback(ev.CallbackUnique); ok {
			return e, true
		}
		return d.reg.UnknownCallback()
	default:
		for _, e := range d.reg.Messages() {
			if e.Matches(ev) {
				return e, true
			}
		}
		return nil, false
	}
}

func (d *Dispatcher) run(e *tg.Entry, ev *handler.Event, start time.Time) bool {
	name := normalizeHandlerName(e.Name)
	ev = ev.WithContext(logger.WithHandler(ev.Context(), name))

	ran, err := invoke(e, ev)
	switch {
	case err != nil:
		logHandlerSummary(ev, name, start, outcomeFailed, err)
		d.fail(ev, err)
	case ran:
		logHandlerSummary(ev, name, start, outcomeHandled, nil)
	default:
		logHandlerSummary(ev, name, start, outcomeGated, nil)
	}
	return ran
}

// fail forwards err to the error handler. Its own failures are logged only.
func (d *Dispatcher) fail(ev *handler.Event, err error) {
	eh, ok := d.reg.ErrorHandler()
	if !ok {
		return
	}
	start := time.Now()
	errEv := ev.WithError(err)
	ran, herr := invoke(eh, errEv)
	switch {
	case herr != nil:
		logHandlerSummary(errEv, "error", start, outcomeFailed, herr)
	case ran:
		logHandlerSummary(errEv, "error", start, outcomeHandled, nil)
	default:
		logHandlerSummary(errEv, "error", start, outcomeGated, nil)
	}
}

func (d *Dispatcher) answerUnsupported(ev *handler.Event) {
	gw := d.bot.Gateway()
	if gw == nil || ev.CallbackID == "" {
		return
	}
	if err := gw.AnswerCallback(ev.Context(), ev.CallbackID, sender.Answer{Text: UnsupportedAction}); err != nil {
		logger.LogEvent(ev.Context(), logger.TG, slog.LevelWarn, "callback.answer",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}

func invoke(e *tg.Entry, ev *handler.Event) (ran bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ran, err = false, fmt.Errorf("handler %s panicked: %v", e.Name, r)
		}
	}()
	return e.Run(ev)
}
