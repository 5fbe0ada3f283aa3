package logger

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestHandler(format logFormat) (*structuredHandler, *asyncWriter, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	h := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	return h, aw, buf
}

func drain(t *testing.T, aw *asyncWriter, buf *bytes.Buffer) string {
	t.Helper()
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	h, aw, buf := newTestHandler(formatKV)
	ctx := WithRID(Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	log := slog.New(h).With("component", "game")
	LogEvent(ctx, log, slog.LevelInfo, "game.started",
		slog.String("status", "OK"),
		slog.Int("players", 3),
	)

	tokens := strings.Split(drain(t, aw, buf), " ")
	expected := []string{"ts=", "level=INFO", "component=game", "event=game.started", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9", "players=3"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%v)", len(tokens), tokens)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	h, aw, buf := newTestHandler(formatJSON)
	ctx := WithRID(Background(), "rid-json")

	log := slog.New(h).With("component", "store")
	LogEvent(ctx, log, slog.LevelError, "store.load",
		slog.String("status", "fail"),
		slog.String("identity", "gugubot"),
		slog.String("err_code", "PERSISTENCE_LOAD"),
	)

	line := drain(t, aw, buf)
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"store"`, `"event":"store.load"`, `"status":"fail"`, `"rid":"rid-json"`, `"identity":"gugubot"`, `"err_code":"PERSISTENCE_LOAD"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	tests := []struct {
		name     string
		format   logFormat
		wantRID  string
		wantFull bool
	}{
		{name: "kv", format: formatKV, wantRID: "rid=" + CompactRID("123:456:789")},
		{name: "json", format: formatJSON, wantRID: `"rid":"` + CompactRID("123:456:789") + `"`, wantFull: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, aw, buf := newTestHandler(tt.format)
			ctx := WithRID(Background(), "123:456:789")
			LogEvent(ctx, slog.New(h), slog.LevelInfo, "rid.test")

			line := drain(t, aw, buf)
			if !strings.Contains(line, tt.wantRID) {
				t.Fatalf("expected compact rid, got %s", line)
			}
			if got := strings.Contains(line, "rid_full"); got != tt.wantFull {
				t.Fatalf("rid_full present = %v, want %v: %s", got, tt.wantFull, line)
			}
		})
	}
}

func TestStructuredHandlerDurationAndDefaults(t *testing.T) {
	h, aw, buf := newTestHandler(formatKV)
	slog.New(h).Info("dispatch.done", slog.Duration("duration", 1500*time.Microsecond), slog.String("empty", ""))

	line := drain(t, aw, buf)
	for _, want := range []string{"component=app", "event=dispatch.done", "duration_ms=2"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %s", want, line)
		}
	}
	if strings.Contains(line, "empty=") {
		t.Fatalf("empty attrs must be pruned: %s", line)
	}
}

func TestCompactRIDPassThrough(t *testing.T) {
	if got := CompactRID("not-a-rid"); got != "not-a-rid" {
		t.Fatalf("CompactRID = %q", got)
	}
	if got := CompactRID("35:36:1"); got != "z.10.1" {
		t.Fatalf("CompactRID = %q", got)
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("hé\x00llo​", 3); got != "hél" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
}
