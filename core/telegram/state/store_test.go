package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/m3rciful/chatbots/core/apperr"
)

func TestChatGetOrCreate(t *testing.T) {
	s := NewStore(nil)
	if _, ok := s.Lookup(5); ok {
		t.Fatal("chat must not exist before first access")
	}
	c := s.Chat(5)
	if c != s.Chat(5) {
		t.Fatal("Chat must return the same instance for one id")
	}
	if c.Started() || !c.Awake() {
		t.Fatalf("fresh chat flags: started=%v awake=%v", c.Started(), c.Awake())
	}
	if !c.Start() || c.Start() {
		t.Fatal("Start reports true only on the first call")
	}
}

func TestCacheIsAppendOnlyCopy(t *testing.T) {
	c := NewStore(nil).Chat(1)
	c.Append(Message{ID: 1, Text: "a"})
	got := c.Cache()
	got[0].Text = "mutated"
	c.Append(Message{ID: 2, Text: "b"})

	want := []Message{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}}
	if diff := cmp.Diff(want, c.Cache()); diff != "" {
		t.Fatalf("cache mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := NewFileBackend(t.TempDir())

	src := NewStore(backend)
	c := src.Chat(-100)
	c.Start()
	c.Sleep()
	c.Append(Message{ID: 7, UserID: 42, Username: "ana", Text: "oi", Unix: 1700000000})
	src.Chat(3)
	if err := src.SetCommon("prompts", []string{"cat", "dog"}); err != nil {
		t.Fatalf("set common: %v", err)
	}
	if err := src.Save(ctx, "gugubot"); err != nil {
		t.Fatalf("save: %v", err)
	}

	dst := NewStore(backend)
	if err := dst.Load(ctx, "gugubot"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(src.Snapshot(), dst.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-saved +loaded):\n%s", diff)
	}

	var prompts []string
	ok, err := dst.Common("prompts", &prompts)
	if err != nil || !ok {
		t.Fatalf("common lookup: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff([]string{"cat", "dog"}, prompts); diff != "" {
		t.Fatalf("common mismatch:\n%s", diff)
	}
	dst.DeleteCommon("prompts")
	if ok, _ := dst.Common("prompts", &prompts); ok {
		t.Fatal("deleted key still present")
	}
	if diff := cmp.Diff([]int64{-100, 3}, dst.ChatIDs()); diff != "" {
		t.Fatalf("chat ids (-want +got):\n%s", diff)
	}
}

func TestSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	backend := NewFileBackend(t.TempDir())
	s := NewStore(backend)
	s.Chat(1)
	if err := s.Save(ctx, "bot"); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.Clear()
	s.Chat(2)
	if err := s.Save(ctx, "bot"); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := NewStore(backend)
	if err := loaded.Load(ctx, "bot"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]int64{2}, loaded.ChatIDs()); diff != "" {
		t.Fatalf("chat ids mismatch:\n%s", diff)
	}
	entries, err := os.ReadDir(backend.Dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestLoadMissingKeepsDefault(t *testing.T) {
	s := NewStore(NewFileBackend(t.TempDir()))
	s.Chat(9)
	if err := s.Load(context.Background(), "absent"); err != nil {
		t.Fatalf("load missing: %v", err)
	}
	want := Snapshot{Version: SnapshotVersion, Chats: map[int64]ChatState{}, Common: map[string]json.RawMessage{}}
	if diff := cmp.Diff(want, s.Snapshot()); diff != "" {
		t.Fatalf("expected empty default (-want +got):\n%s", diff)
	}
}

func TestLoadCorruptIsPersistenceError(t *testing.T) {
	tests := map[string]string{
		"garbage":         "not json",
		"missing version": `{"chats":{}}`,
		"future version":  `{"version":2,"chats":{}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			backend := NewFileBackend(dir)
			if err := os.WriteFile(filepath.Join(dir, "bot"+FileSuffix), []byte(body), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			err := NewStore(backend).Load(context.Background(), "bot")
			if !apperr.IsKind(err, apperr.KindPersistenceLoad) {
				t.Fatalf("expected persistence load error, got %v", err)
			}
		})
	}
}
