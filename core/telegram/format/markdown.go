package format

import (
	"fmt"
	"strings"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

const (
	mdV1Specials     = "_*`["
	mdV2Specials     = "_*[]()~`>#+-=|{}.!\\"
	mdV2CodeSpecials = "`\\"
	mdV2LinkSpecials = ")\\"
)

// EscapeMarkdown escapes special characters for MarkdownV1 or V2. For V2,
// entityType "pre", "code" or "text_link" selects the reduced escaping
// Telegram applies inside those entities.
func EscapeMarkdown(text string, version int, entityType string) (string, error) {
	switch version {
	case MarkdownV1:
		return escapeSet(text, mdV1Specials), nil
	case MarkdownV2:
		switch entityType {
		case "pre", "code":
			return escapeSet(text, mdV2CodeSpecials), nil
		case "text_link":
			return escapeSet(text, mdV2LinkSpecials), nil
		default:
			return escapeSet(text, mdV2Specials), nil
		}
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

// Code wraps text in a MarkdownV2 inline code span.
func Code(text string) string {
	escaped, _ := EscapeMarkdown(text, MarkdownV2, "code")
	return "`" + escaped + "`"
}

func escapeSet(text, specials string) string {
	var b strings.Builder
	b.Grow(len(text) + 8)
	for _, r := range text {
		if strings.ContainsRune(specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
