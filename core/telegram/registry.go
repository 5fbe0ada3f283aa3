package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/chatbots/core/apperr"
	"github.com/m3rciful/chatbots/core/logger"
	"github.com/m3rciful/chatbots/core/telegram/handler"
)

var (
	commandNameRe = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)
	aliasNameRe   = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)
)

// Names reserved for the declaration keywords themselves.
var reservedNames = map[string]struct{}{"gate": {}, "transform": {}}

// Definition collects the declarations of one bot. Build validates and
// compiles it into a Registry.
type Definition struct {
	name       string
	gates      []handler.Gate
	transforms []handler.Transform
	handlers   []handler.Descriptor

	errorHandler    *handler.Descriptor
	unknownCommand  *handler.Descriptor
	unknownCallback *handler.Descriptor
}

// NewDefinition starts an empty definition for the bot called name.
func NewDefinition(name string) *Definition {
	return &Definition{name: name}
}

// Gate adds bot-level gates applied to every handler.
func (d *Definition) Gate(gates ...handler.Gate) *Definition {
	d.gates = append(d.gates, gates...)
	return d
}

// Transform appends bot-level transforms applied to every handler.
func (d *Definition) Transform(ts ...handler.Transform) *Definition {
	d.transforms = append(d.transforms, ts...)
	return d
}

func (d *Definition) declare(desc handler.Descriptor, opts []handler.Option) handler.Descriptor {
	desc.Index = len(d.handlers)
	for _, opt := range opts {
		if opt != nil {
			opt(&desc)
		}
	}
	return desc
}

// Command declares a handler for /name.
func (d *Definition) Command(name string, target handler.Target, opts ...handler.Option) *Definition {
	desc := d.declare(handler.Descriptor{Kind: handler.KindCommand, Name: name, Command: name, Target: target}, opts)
	d.handlers = append(d.handlers, desc)
	return d
}

// Message declares a handler for plain messages accepted by every filter.
func (d *Definition) Message(name string, filters []handler.Filter, target handler.Target, opts ...handler.Option) *Definition {
	desc := d.declare(handler.Descriptor{Kind: handler.KindMessage, Name: name, Filters: filters, Target: target}, opts)
	d.handlers = append(d.handlers, desc)
	return d
}

// Callback declares a handler for inline buttons carrying unique.
func (d *Definition) Callback(unique string, target handler.Target, opts ...handler.Option) *Definition {
	desc := d.declare(handler.Descriptor{Kind: handler.KindCallback, Name: unique, Unique: unique, Target: target}, opts)
	d.handlers = append(d.handlers, desc)
	return d
}

// Error declares the handler receiving failed events. A later declaration
// replaces an earlier one.
func (d *Definition) Error(target handler.Target, opts ...handler.Option) *Definition {
	desc := d.declare(handler.Descriptor{Kind: handler.KindError, Name: "error", Target: target}, opts)
	d.errorHandler = &desc
	return d
}

// UnknownCommand declares the fallback for commands without a handler.
func (d *Definition) UnknownCommand(target handler.Target, opts ...handler.Option) *Definition {
	desc := d.declare(handler.Descriptor{Kind: handler.KindCommand, Name: "unknown_command", Target: target}, opts)
	d.unknownCommand = &desc
	return d
}

// UnknownCallback declares the fallback for callbacks without a handler.
func (d *Definition) UnknownCallback(target handler.Target, opts ...handler.Option) *Definition {
	desc := d.declare(handler.Descriptor{Kind: handler.KindCallback, Name: "unknown_callback", Target: target}, opts)
	d.unknownCallback = &desc
	return d
}

// Entry is a declared handler together with its compiled closure.
type Entry struct {
	handler.Descriptor
	Run handler.Compiled
}

// Registry is the immutable, compiled form of a Definition.
type Registry struct {
	name      string
	commands  map[string]*Entry
	canonical []*Entry
	messages  []*Entry
	callbacks map[string]*Entry

	errorHandler    *Entry
	unknownCommand  *Entry
	unknownCallback *Entry
}

func configErr(format string, args ...any) error {
	return apperr.E(apperr.KindConfiguration, "telegram.build", fmt.Errorf(format, args...))
}

// Build validates the definition and compiles every handler against bot.
// Malformed declarations yield a configuration error.
func (d *Definition) Build(bot handler.Bot) (*Registry, error) {
	botLevel := handler.Pipeline{Gates: d.gates, Transforms: d.transforms}
	if err := validatePipeline("bot "+d.name, botLevel); err != nil {
		return nil, err
	}

	reg := &Registry{
		name:      d.name,
		commands:  make(map[string]*Entry),
		callbacks: make(map[string]*Entry),
	}
	compileWith := func(outer handler.Pipeline, desc handler.Descriptor) (*Entry, error) {
		if desc.Target == nil {
			return nil, configErr("handler %q has no target", desc.Name)
		}
		if err := validatePipeline("handler "+desc.Name, desc.Pipeline); err != nil {
			return nil, err
		}
		return &Entry{Descriptor: desc, Run: handler.Compile(bot, outer, desc.Pipeline, desc.Target)}, nil
	}
	compile := func(desc handler.Descriptor) (*Entry, error) { return compileWith(botLevel, desc) }

	for _, desc := range d.handlers {
		entry, err := compile(desc)
		if err != nil {
			return nil, err
		}
		switch desc.Kind {
		case handler.KindCommand:
			if !commandNameRe.MatchString(desc.Command) {
				return nil, configErr("invalid command name %q", desc.Command)
			}
			if err := reg.addCommand(desc.Command, entry); err != nil {
				return nil, err
			}
			for _, alias := range desc.Aliases {
				if !aliasNameRe.MatchString(alias) {
					return nil, configErr("invalid alias %q of command %q", alias, desc.Command)
				}
				if err := reg.addCommand(alias, entry); err != nil {
					return nil, err
				}
			}
			reg.canonical = append(reg.canonical, entry)
		case handler.KindMessage:
			if len(desc.Filters) == 0 {
				return nil, configErr("message handler %q has no filters", desc.Name)
			}
			for _, f := range desc.Filters {
				if f == nil {
					return nil, configErr("message handler %q has a nil filter", desc.Name)
				}
			}
			reg.messages = append(reg.messages, entry)
		case handler.KindCallback:
			if desc.Unique == "" || strings.ContainsAny(desc.Unique, "|\f") {
				return nil, configErr("invalid callback key %q", desc.Unique)
			}
			if _, dup := reg.callbacks[desc.Unique]; dup {
				return nil, configErr("duplicate callback %q", desc.Unique)
			}
			reg.callbacks[desc.Unique] = entry
		}
	}

	var err error
	// The error handler sees the event the failed handler saw; bot-level
	// gates and transforms already ran for it.
	if d.errorHandler != nil {
		if reg.errorHandler, err = compileWith(handler.Pipeline{}, *d.errorHandler); err != nil {
			return nil, err
		}
	}
	if d.unknownCommand != nil {
		if reg.unknownCommand, err = compile(*d.unknownCommand); err != nil {
			return nil, err
		}
	}
	if d.unknownCallback != nil {
		if reg.unknownCallback, err = compile(*d.unknownCallback); err != nil {
			return nil, err
		}
	}

	logger.LogEvent(context.Background(), logger.TWire, slog.LevelDebug, "registry.built",
		slog.String("bot", d.name),
		slog.Int("commands", len(reg.canonical)),
		slog.Int("messages", len(reg.messages)),
		slog.Int("callbacks", len(reg.callbacks)),
	)
	return reg, nil
}

func (r *Registry) addCommand(key string, entry *Entry) error {
	if _, dup := r.commands[key]; dup {
		return configErr("duplicate command %q", key)
	}
	r.commands[key] = entry
	return nil
}

func validatePipeline(scope string, p handler.Pipeline) error {
	seen := make(map[string]struct{}, len(p.Gates))
	for _, g := range p.Gates {
		if g.Name == "" || g.Allow == nil {
			return configErr("%s: gate %q has no name or predicate", scope, g.Name)
		}
		if _, ok := reservedNames[g.Name]; ok {
			return configErr("%s: gate name %q is reserved", scope, g.Name)
		}
		if _, dup := seen[g.Name]; dup {
			return configErr("%s: duplicate gate %q", scope, g.Name)
		}
		seen[g.Name] = struct{}{}
	}
	seen = make(map[string]struct{}, len(p.Transforms))
	for _, t := range p.Transforms {
		if t.Name == "" || t.Apply == nil {
			return configErr("%s: transform %q has no name or function", scope, t.Name)
		}
		if _, ok := reservedNames[t.Name]; ok {
			return configErr("%s: transform name %q is reserved", scope, t.Name)
		}
		if _, dup := seen[t.Name]; dup {
			return configErr("%s: duplicate transform %q", scope, t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	return nil
}

// Name returns the bot name the registry was built for.
func (r *Registry) Name() string { return r.name }

// LookupCommand resolves a command name or alias.
func (r *Registry) LookupCommand(name string) (*Entry, bool) {
	e, ok := r.commands[strings.TrimPrefix(name, "/")]
	return e, ok
}

// Messages returns the message handlers in declaration order.
func (r *Registry) Messages() []*Entry { return r.messages }

// Callback resolves a callback unique.
func (r *Registry) Callback(unique string) (*Entry, bool) {
	e, ok := r.callbacks[unique]
	return e, ok
}

// ErrorHandler returns the error handler, if declared.
func (r *Registry) ErrorHandler() (*Entry, bool) { return r.errorHandler, r.errorHandler != nil }

// UnknownCommand returns the unknown-command fallback, if declared.
func (r *Registry) UnknownCommand() (*Entry, bool) { return r.unknownCommand, r.unknownCommand != nil }

// UnknownCallback returns the unknown-callback fallback, if declared.
func (r *Registry) UnknownCallback() (*Entry, bool) { return r.unknownCallback, r.unknownCallback != nil }

// ListCommands returns the canonical commands sorted by name, optionally
// without hidden and admin-only ones.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	list := make([]tele.Command, 0, len(r.canonical))
	for _, e := range r.canonical {
		if visibleOnly && (e.Hidden || e.AdminOnly) {
			continue
		}
		desc := e.Description
		if desc == "" {
			desc = e.Command
		}
		list = append(list, tele.Command{Text: e.Command, Description: desc})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// InitBotCommands sets the Telegram bot commands shown in the command menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	if bot == nil || reg == nil {
		return
	}
	if err := bot.SetCommands(reg.ListCommands(true)); err != nil {
		logger.LogEvent(context.Background(), logger.TWire, slog.LevelError, "register.commands.set_failed",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}
