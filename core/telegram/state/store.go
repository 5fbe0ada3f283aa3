package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/m3rciful/chatbots/core/apperr"
	"github.com/m3rciful/chatbots/core/logger"
)

// SnapshotVersion is the schema version written by Save.
const SnapshotVersion = 1

// ErrNotFound is returned by a Backend when no snapshot exists for an identity.
var ErrNotFound = errors.New("snapshot not found")

// Backend reads and writes whole snapshots.
type Backend interface {
	Load(ctx context.Context, identity string) ([]byte, error)
	Save(ctx context.Context, identity string, payload []byte) error
}

// Snapshot is the persisted content of a Store.
type Snapshot struct {
	Version int                        `json:"version"`
	Chats   map[int64]ChatState        `json:"chats"`
	Common  map[string]json.RawMessage `json:"common"`
}

// Store maps chat ids to chat state. The zero value is not usable; call NewStore.
type Store struct {
	backend Backend

	mu     sync.RWMutex
	chats  map[int64]*Chat
	common map[string]json.RawMessage
}

// NewStore returns an empty store persisted through backend.
func NewStore(backend Backend) *Store {
	s := &Store{backend: backend}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.chats = make(map[int64]*Chat)
	s.common = make(map[string]json.RawMessage)
}

// Load replaces the store content with the snapshot stored for identity.
// A missing snapshot leaves the store empty.
func (s *Store) Load(ctx context.Context, identity string) error {
	const op = "state.load"
	if s.backend == nil {
		return apperr.Errorf(apperr.KindConfiguration, op, "no backend configured")
	}
	data, err := s.backend.Load(ctx, identity)
	if errors.Is(err, ErrNotFound) {
		s.Clear()
		logger.LogEvent(ctx, logger.Store, slog.LevelInfo, "store.load",
			slog.String("status", "skip"),
			slog.String("identity", identity),
			slog.String("cause", "not_found"),
		)
		return nil
	}
	if err != nil {
		return apperr.E(apperr.KindPersistenceLoad, op, err)
	}
	snap, err := decodeSnapshot(data)
	if err != nil {
		return apperr.E(apperr.KindPersistenceLoad, op, err)
	}

	s.mu.Lock()
	s.reset()
	for id, st := range snap.Chats {
		st.ID = id
		s.chats[id] = chatFromState(st)
	}
	for k, v := range snap.Common {
		s.common[k] = v
	}
	n := len(s.chats)
	s.mu.Unlock()

	logger.LogEvent(ctx, logger.Store, slog.LevelInfo, "store.load",
		slog.String("status", "ok"),
		slog.String("identity", identity),
		slog.Int("chats", n),
	)
	return nil
}

func decodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return snap, nil
}

// Save writes the full current snapshot for identity, replacing any previous one.
func (s *Store) Save(ctx context.Context, identity string) error {
	const op = "state.save"
	if s.backend == nil {
		return apperr.Errorf(apperr.KindConfiguration, op, "no backend configured")
	}
	snap := s.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}
	if err := s.backend.Save(ctx, identity, data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.LogEvent(ctx, logger.Store, slog.LevelInfo, "store.save",
		slog.String("status", "ok"),
		slog.String("identity", identity),
		slog.Int("chats", len(snap.Chats)),
	)
	return nil
}

// Clear resets the store to the empty default snapshot.
func (s *Store) Clear() {
	s.mu.Lock()
	s.reset()
	s.mu.Unlock()
}

// Chat returns the state for chatID, creating it on first access.
func (s *Store) Chat(chatID int64) *Chat {
	s.mu.RLock()
	c, ok := s.chats[chatID]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[chatID]; ok {
		return c
	}
	c = newChat(chatID)
	s.chats[chatID] = c
	return c
}

// Lookup returns the state for chatID without creating it.
func (s *Store) Lookup(chatID int64) (*Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[chatID]
	return c, ok
}

// ChatIDs lists known chats in ascending order.
func (s *Store) ChatIDs() []int64 {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.chats))
	for id := range s.chats {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SetCommon stores v in the shared bucket under key.
func (s *Store) SetCommon(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("state.common %q: %w", key, err)
	}
	s.mu.Lock()
	s.common[key] = raw
	s.mu.Unlock()
	return nil
}

// Common decodes the shared value under key into out. It reports false when
// the key is absent.
func (s *Store) Common(key string, out any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.common[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("state.common %q: %w", key, err)
	}
	return true, nil
}

// DeleteCommon removes key from the shared bucket.
func (s *Store) DeleteCommon(key string) {
	s.mu.Lock()
	delete(s.common, key)
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the current content.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Version: SnapshotVersion,
		Chats:   make(map[int64]ChatState, len(s.chats)),
		Common:  make(map[string]json.RawMessage, len(s.common)),
	}
	for id, c := range s.chats {
		snap.Chats[id] = c.State()
	}
	for k, v := range s.common {
		snap.Common[k] = append(json.RawMessage(nil), v...)
	}
	return snap
}
