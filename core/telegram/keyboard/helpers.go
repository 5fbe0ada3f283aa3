// Package keyboard builds inline keyboards.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button describes one inline button. A non-empty URL makes it a link
// button; otherwise Unique and Data form the callback payload.
type Button struct {
	Text   string
	Unique string
	Data   string
	URL    string
}

// Inline builds an inline keyboard from rows of buttons.
func Inline(rows ...[]Button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			var btn tele.Btn
			if b.URL != "" {
				btn = markup.URL(b.Text, b.URL)
			} else {
				btn = markup.Data(b.Text, b.Unique, b.Data)
			}
			r = append(r, *btn.Inline())
		}
		inline = append(inline, r)
	}
	markup.InlineKeyboard = inline
	return markup
}

// Row places buttons side by side in a single-row keyboard.
func Row(buttons ...Button) *tele.ReplyMarkup {
	return Inline(buttons)
}
