// Package filters provides trigger conditions for message handlers.
package filters

import (
	"strings"

	"github.com/m3rciful/chatbots/core/telegram/handler"
)

// Text matches events carrying text or a caption.
func Text(ev *handler.Event) bool { return ev.Text != "" }

// Command matches command events.
func Command(ev *handler.Event) bool { return ev.Kind == handler.KindCommand }

// Photo matches photo messages.
func Photo(ev *handler.Event) bool { return ev.PhotoID != "" }

// Animation matches GIF messages.
func Animation(ev *handler.Event) bool { return ev.AnimationID != "" }

// Group matches group and supergroup chats.
func Group(ev *handler.Event) bool { return ev.IsGroup() }

// Private matches private chats.
func Private(ev *handler.Event) bool { return ev.IsPrivate() }

// Entity matches events carrying an entity of the given type.
func Entity(typ string) handler.Filter {
	return func(ev *handler.Event) bool {
		for _, e := range ev.Entities {
			if e.Type == typ {
				return true
			}
		}
		return false
	}
}

// Mention matches events that @-mention username (case-insensitive).
func Mention(username string) handler.Filter {
	want := "@" + strings.TrimPrefix(strings.ToLower(username), "@")
	return func(ev *handler.Event) bool {
		for _, e := range ev.Entities {
			if e.Type == "mention" && strings.ToLower(e.Text) == want {
				return true
			}
		}
		return false
	}
}

// Not negates f.
func Not(f handler.Filter) handler.Filter {
	return func(ev *handler.Event) bool { return !f(ev) }
}

// MentionOf is Mention for a username only known once the bot is running.
func MentionOf(username func() string) handler.Filter {
	return func(ev *handler.Event) bool {
		return Mention(username())(ev)
	}
}
