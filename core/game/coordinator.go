package game

import (
	"context"
	_ "embed"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/m3rciful/chatbots/core/apperr"
	"github.com/m3rciful/chatbots/core/logger"
)

//go:embed prompts.txt
var defaultPrompts string

// DefaultPrompts returns the built-in prompt list.
func DefaultPrompts() []string {
	return ParsePrompts(defaultPrompts)
}

// ParsePrompts splits text into non-empty lines, skipping '#' comments.
func ParsePrompts(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

type pendingJoin struct {
	token  string
	chatID int64
}

// Coordinator owns at most one Session per chat and the pending join links.
// It is driven from the single dispatch loop and does no locking.
type Coordinator struct {
	games    map[int64]*Session
	pending  map[int64]pendingJoin
	defaults []Option
	newToken func() string
}

// NewCoordinator returns a coordinator whose sessions start with defaults.
func NewCoordinator(defaults ...Option) *Coordinator {
	return &Coordinator{
		games:    make(map[int64]*Session),
		pending:  make(map[int64]pendingJoin),
		defaults: defaults,
		newToken: uuid.NewString,
	}
}

// CreateGame creates and starts a session for chatID. The session is kept
// only when Start succeeds.
func (c *Coordinator) CreateGame(chatID int64, opts ...Option) (*Session, error) {
	if _, ok := c.games[chatID]; ok {
		return nil, stateErr("game.create", ErrGameExists)
	}
	all := append(append([]Option(nil), c.defaults...), opts...)
	s := NewSession(chatID, all...)
	if err := s.Start(); err != nil {
		return nil, err
	}
	c.games[chatID] = s
	return s, nil
}

// Game returns the active session for chatID.
func (c *Coordinator) Game(chatID int64) (*Session, error) {
	s, ok := c.games[chatID]
	if !ok {
		return nil, stateErr("game.lookup", ErrNoGame)
	}
	return s, nil
}

// Games lists active chat ids in ascending order.
func (c *Coordinator) Games() []int64 {
	ids := make([]int64, 0, len(c.games))
	for id := range c.games {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// EndGame finishes the session for chatID and forgets it.
func (c *Coordinator) EndGame(chatID int64) (*Session, error) {
	s, err := c.Game(chatID)
	if err != nil {
		return nil, err
	}
	if err := s.Finish(); err != nil {
		return s, err
	}
	delete(c.games, chatID)
	return s, nil
}

// RegisterJoinToken records that userID wants to join chatID and returns the
// token to embed in the deep link. A previous pending join for the user is replaced.
func (c *Coordinator) RegisterJoinToken(userID, chatID int64) string {
	token := c.newToken()
	c.pending[userID] = pendingJoin{token: token, chatID: chatID}
	return token
}

// PendingJoin reports the chat a user is about to join.
func (c *Coordinator) PendingJoin(userID int64) (int64, bool) {
	p, ok := c.pending[userID]
	return p.chatID, ok
}

// RedeemJoin consumes the pending join of userID and returns its chat id.
func (c *Coordinator) RedeemJoin(userID int64) (int64, error) {
	p, ok := c.pending[userID]
	if !ok {
		return 0, apperr.E(apperr.KindJoinResolution, "game.redeem", ErrNoPendingJoin)
	}
	delete(c.pending, userID)
	return p.chatID, nil
}

// RedeemToken is RedeemJoin that also requires the deep link token to match.
// A mismatching token leaves the pending join in place.
func (c *Coordinator) RedeemToken(userID int64, token string) (int64, error) {
	p, ok := c.pending[userID]
	if !ok {
		return 0, apperr.E(apperr.KindJoinResolution, "game.redeem", ErrNoPendingJoin)
	}
	if p.token != token {
		return 0, apperr.E(apperr.KindJoinResolution, "game.redeem", ErrTokenMismatch)
	}
	delete(c.pending, userID)
	return p.chatID, nil
}

// Tick runs every session's tick and drops finished sessions. Tick errors are
// logged; the failing session stays.
func (c *Coordinator) Tick() {
	for _, id := range c.Games() {
		s := c.games[id]
		if err := s.Tick(); err != nil {
			logger.LogEvent(context.Background(), logger.Game, slog.LevelWarn, "game.tick",
				slog.String("status", "fail"),
				slog.Int64("chat_id", id),
				slog.String("err", err.Error()),
				slog.String("err_code", string(apperr.KindOf(err))),
			)
		}
		if s.State() == Finished {
			delete(c.games, id)
		}
	}
}
