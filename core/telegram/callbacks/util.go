// Package callbacks decodes inline button payloads.
package callbacks

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Sep separates fields inside a callback payload.
const Sep = "|"

// ParseData parses telebot's "\f<unique>|<payload>" encoding. Data without
// the leading form feed is returned as payload with an empty unique.
func ParseData(raw string) (unique, payload string) {
	if !strings.HasPrefix(raw, "\f") {
		return "", raw
	}
	unique, payload, _ = strings.Cut(raw[1:], Sep)
	return strings.TrimSpace(unique), payload
}

// Split returns the unique key and payload of cb. Telebot fills cb.Unique
// only for buttons with a dedicated endpoint; otherwise Data is decoded.
func Split(cb *tele.Callback) (unique, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	return ParseData(cb.Data)
}

// Join builds a payload from fields.
func Join(fields ...string) string {
	return strings.Join(fields, Sep)
}

// Fields splits a payload built by Join.
func Fields(payload string) []string {
	if payload == "" {
		return nil
	}
	return strings.Split(payload, Sep)
}

// Int64At parses field i of payload as int64.
func Int64At(payload string, i int) (int64, error) {
	f := Fields(payload)
	if i < 0 || i >= len(f) {
		return 0, fmt.Errorf("callback payload %q has no field %d", payload, i)
	}
	return strconv.ParseInt(f[i], 10, 64)
}
