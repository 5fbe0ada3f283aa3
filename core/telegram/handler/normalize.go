package handler

import (
	"strings"
	"unicode/utf16"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/chatbots/core/telegram/callbacks"
	"github.com/m3rciful/chatbots/core/telegram/helpers"
)

// Normalize converts a telebot context into an Event.
func Normalize(c tele.Context) *Event {
	ev := &Event{Kind: KindMessage, Raw: c, ctx: helpers.BuildContext(c)}
	ev.UpdateID = c.Update().ID

	if chat := c.Chat(); chat != nil {
		ev.ChatID = chat.ID
		ev.ChatType = string(chat.Type)
		ev.ChatTitle = chat.Title
	}
	if u := c.Sender(); u != nil {
		ev.UserID = u.ID
		ev.Username = u.Username
		ev.FullName = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}

	if cb := c.Callback(); cb != nil {
		ev.Kind = KindCallback
		ev.CallbackID = cb.ID
		ev.CallbackUnique, ev.CallbackData = callbacks.Split(cb)
		if cb.Message != nil {
			ev.MessageID = cb.Message.ID
		}
		return ev
	}

	m := c.Message()
	if m == nil {
		return ev
	}
	ev.MessageID = m.ID
	ev.Unix = m.Unixtime
	ev.Text = m.Text
	entities := m.Entities
	if ev.Text == "" {
		ev.Text = m.Caption
		entities = m.CaptionEntities
	}
	ev.Entities = cutEntities(ev.Text, entities)

	switch {
	case m.Photo != nil:
		ev.PhotoID = m.Photo.FileID
	case m.Animation != nil:
		ev.AnimationID = m.Animation.FileID
	}

	if cmd, target, payload, ok := ParseCommand(m.Text); ok {
		ev.Kind = KindCommand
		ev.Command = cmd
		ev.CommandTarget = target
		ev.Payload = payload
		ev.Args = strings.Fields(payload)
	}
	return ev
}

// ParseCommand splits "/Name@bot payload" into its lower-cased name, the
// addressed bot and the trimmed payload.
func ParseCommand(text string) (name, target, payload string, ok bool) {
	if !strings.HasPrefix(text, "/") || len(text) < 2 {
		return "", "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if i := strings.IndexAny(head, "\n\t"); i >= 0 {
		rest = head[i+1:] + " " + rest
		head = head[:i]
	}
	head, target, _ = strings.Cut(head, "@")
	if head == "" {
		return "", "", "", false
	}
	return strings.ToLower(head), target, strings.TrimSpace(rest), true
}

// cutEntities resolves the UTF-16 offsets Telegram uses into substrings.
func cutEntities(text string, entities []tele.MessageEntity) []Entity {
	if len(entities) == 0 {
		return nil
	}
	units := utf16.Encode([]rune(text))
	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		ent := Entity{Type: string(e.Type)}
		if e.User != nil {
			ent.UserID = e.User.ID
		}
		end := e.Offset + e.Length
		if e.Offset >= 0 && e.Length >= 0 && end <= len(units) {
			ent.Text = string(utf16.Decode(units[e.Offset:end]))
		}
		out = append(out, ent)
	}
	return out
}
