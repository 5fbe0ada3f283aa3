package game

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"

	"github.com/m3rciful/chatbots/core/apperr"
	"github.com/m3rciful/chatbots/core/logger"
)

// Hook is a session callback. A failing start or finish hook rolls the
// transition back.
type Hook func(*Session) error

// Option configures a Session.
type Option func(*Session)

// WithTitle sets the chat title shown to players.
func WithTitle(title string) Option { return func(s *Session) { s.Title = title } }

// WithPrompts sets the prompt pool shuffled into the prompt queue at start.
func WithPrompts(prompts []string) Option {
	return func(s *Session) { s.pool = append([]string(nil), prompts...) }
}

// WithRand sets the random source used for shuffling.
func WithRand(r *rand.Rand) Option { return func(s *Session) { s.rng = r } }

// WithMinPlayers sets how many players Tick waits for before opening the first round.
func WithMinPlayers(n int) Option { return func(s *Session) { s.minPlayers = n } }

// OnStart runs at the end of the start transition.
func OnStart(h Hook) Option { return func(s *Session) { s.onStart = h } }

// OnFinish runs at the end of the finish transition, after the winner is known.
func OnFinish(h Hook) Option { return func(s *Session) { s.onFinish = h } }

// OnRound runs whenever a new arbiter and prompt were chosen.
func OnRound(h Hook) Option { return func(s *Session) { s.onRound = h } }

// OnUpdate replaces the continuation run after an accepted submission.
// The default is Advance.
func OnUpdate(h Hook) Option { return func(s *Session) { s.onUpdate = h } }

// OnTick runs on every coordinator tick while the session is running.
func OnTick(h Hook) Option { return func(s *Session) { s.onTick = h } }

// Session is the game state of one chat. It is not safe for concurrent use.
type Session struct {
	ChatID int64
	Title  string

	state   State
	players map[int64]*Player
	order   []int64

	turns      []int64
	prompts    []string
	pool       []string
	queue      []Submission
	arbiter    int64
	prompt     string
	reviewing  *Submission
	winner     *Player
	minPlayers int

	rng *rand.Rand

	onStart, onFinish, onRound, onUpdate, onTick Hook
}

// NewSession returns a NotStarted session for chatID.
func NewSession(chatID int64, opts ...Option) *Session {
	s := &Session{
		ChatID:     chatID,
		players:    make(map[int64]*Player),
		minPlayers: 2,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// State returns the lifecycle stage.
func (s *Session) State() State { return s.state }

func stateErr(op string, err error) error {
	return apperr.E(apperr.KindStateTransition, op, err)
}

// Start moves the session to Running, shuffling the turn and prompt queues.
// Any failure restores NotStarted.
func (s *Session) Start() (err error) {
	const op = "game.start"
	if s.state != NotStarted {
		return stateErr(op, ErrAlreadyStarted)
	}
	s.state = Running
	defer func() {
		if err != nil {
			s.state = NotStarted
			s.turns, s.prompts = nil, nil
		}
	}()

	if len(s.pool) == 0 {
		return stateErr(op, ErrNoPrompts)
	}
	s.turns = s.shuffledPlayers()
	s.prompts = append([]string(nil), s.pool...)
	s.rng.Shuffle(len(s.prompts), func(i, j int) { s.prompts[i], s.prompts[j] = s.prompts[j], s.prompts[i] })

	if s.onStart != nil {
		if err := s.onStart(s); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	s.log(slog.LevelInfo, "game.started", slog.Int("players", len(s.players)))
	return nil
}

// Finish moves the session to Finished and records the winner.
// Any failure restores Running.
func (s *Session) Finish() (err error) {
	const op = "game.finish"
	if s.state != Running {
		if s.state == Finished {
			return stateErr(op, ErrFinished)
		}
		return stateErr(op, ErrNotRunning)
	}
	s.state = Finished
	defer func() {
		if err != nil {
			s.state = Running
			s.winner = nil
		}
	}()

	s.winner = s.leader()
	if s.onFinish != nil {
		if err := s.onFinish(s); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	attrs := []slog.Attr{slog.Int("players", len(s.players))}
	if s.winner != nil {
		attrs = append(attrs, slog.Int64("user_id", s.winner.UserID), slog.Int("score", s.winner.Score))
	}
	s.log(slog.LevelInfo, "game.finished", attrs...)
	return nil
}

// leader returns the highest score, ties going to the earliest joiner.
func (s *Session) leader() *Player {
	var best *Player
	for _, id := range s.order {
		p := s.players[id]
		if best == nil || p.Score > best.Score {
			best = p
		}
	}
	if best == nil {
		return nil
	}
	cp := *best
	return &cp
}

// Winner is valid once the session is Finished.
func (s *Session) Winner() (Player, error) {
	if s.state != Finished {
		return Player{}, stateErr("game.winner", ErrNotFinished)
	}
	if s.winner == nil {
		return Player{}, stateErr("game.winner", ErrNoPlayers)
	}
	return *s.winner, nil
}

// AddPlayer adds p or overwrites the entry with the same user id, keeping its
// join position. Players joining a running game enter the current rotation.
func (s *Session) AddPlayer(p Player) error {
	if s.state == Finished {
		return stateErr("game.add_player", ErrFinished)
	}
	if old, ok := s.players[p.UserID]; ok {
		*old = p
		return nil
	}
	s.players[p.UserID] = &p
	s.order = append(s.order, p.UserID)
	if s.state == Running {
		s.turns = append(s.turns, p.UserID)
	}
	return nil
}

// RemovePlayer drops the player, its turn slot and its queued submissions.
func (s *Session) RemovePlayer(userID int64) error {
	const op = "game.remove_player"
	if s.state == Finished {
		return stateErr(op, ErrFinished)
	}
	if _, ok := s.players[userID]; !ok {
		return stateErr(op, ErrPlayerNotFound)
	}
	delete(s.players, userID)
	s.order = without(s.order, userID)
	s.turns = without(s.turns, userID)

	kept := s.queue[:0]
	for _, sub := range s.queue {
		if sub.UserID != userID {
			kept = append(kept, sub)
		}
	}
	s.queue = kept
	if s.reviewing != nil && s.reviewing.UserID == userID {
		s.reviewing = nil
	}
	if s.arbiter == userID {
		s.arbiter = 0
		s.queue = nil
		s.reviewing = nil
	}
	return nil
}

func without(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Has reports whether userID is in the roster.
func (s *Session) Has(userID int64) bool {
	_, ok := s.players[userID]
	return ok
}

// Player returns a copy of the roster entry for userID.
func (s *Session) Player(userID int64) (Player, bool) {
	p, ok := s.players[userID]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Players returns the roster in join order.
func (s *Session) Players() []Player {
	out := make([]Player, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.players[id])
	}
	return out
}

// Scores returns the roster ordered by score, ties in join order.
func (s *Session) Scores() []Player {
	out := s.Players()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (s *Session) shuffledPlayers() []int64 {
	ids := append([]int64(nil), s.order...)
	s.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	return ids
}

// NextArbiter pops the next player of the rotation. A new shuffled rotation
// starts when the current one is used up. It reports false without players.
func (s *Session) NextArbiter() (Player, bool) {
	if len(s.turns) == 0 {
		s.turns = s.shuffledPlayers()
	}
	for len(s.turns) > 0 {
		id := s.turns[0]
		s.turns = s.turns[1:]
		if p, ok := s.players[id]; ok {
			s.arbiter = id
			return *p, true
		}
	}
	s.arbiter = 0
	return Player{}, false
}

// NextPrompt pops the next prompt. It reports false when the queue is empty.
func (s *Session) NextPrompt() (string, bool) {
	if len(s.prompts) == 0 {
		s.prompt = ""
		return "", false
	}
	s.prompt = s.prompts[0]
	s.prompts = s.prompts[1:]
	return s.prompt, true
}

// Arbiter returns the player reviewing the current round.
func (s *Session) Arbiter() (Player, bool) {
	if s.arbiter == 0 {
		return Player{}, false
	}
	return s.Player(s.arbiter)
}

// Prompt returns the current round prompt, empty between rounds.
func (s *Session) Prompt() string { return s.prompt }

// PromptsLeft reports how many prompts remain queued.
func (s *Session) PromptsLeft() int { return len(s.prompts) }

// Reviewing returns the submission currently shown to the arbiter.
func (s *Session) Reviewing() (Submission, bool) {
	if s.reviewing == nil {
		return Submission{}, false
	}
	return *s.reviewing, true
}

// Pending reports how many submissions wait for review.
func (s *Session) Pending() int { return len(s.queue) }

// Submit appends a submission to the review queue.
func (s *Session) Submit(userID int64, payload string) error {
	const op = "game.submit"
	if s.state != Running {
		return stateErr(op, ErrNotRunning)
	}
	if !s.Has(userID) {
		return stateErr(op, ErrPlayerNotFound)
	}
	s.queue = append(s.queue, Submission{UserID: userID, Payload: payload})
	return nil
}

// NextForReview moves the oldest queued submission under review.
func (s *Session) NextForReview() (Submission, error) {
	const op = "game.next_for_review"
	if s.state != Running {
		return Submission{}, stateErr(op, ErrNotRunning)
	}
	if len(s.queue) == 0 {
		s.reviewing = nil
		return Submission{}, stateErr(op, ErrNoSubmissions)
	}
	sub := s.queue[0]
	s.queue = s.queue[1:]
	s.reviewing = &sub
	return sub, nil
}

// Accept credits the submission under review and runs the update hook.
// It returns the credited player.
func (s *Session) Accept() (Player, error) {
	const op = "game.accept"
	if s.state != Running {
		return Player{}, stateErr(op, ErrNotRunning)
	}
	if s.reviewing == nil {
		return Player{}, stateErr(op, ErrNotReviewing)
	}
	sub := *s.reviewing
	s.reviewing = nil
	p, ok := s.players[sub.UserID]
	if !ok {
		return Player{}, stateErr(op, ErrPlayerNotFound)
	}
	p.Score++
	credited := *p
	s.log(slog.LevelInfo, "game.accepted", slog.Int64("user_id", p.UserID), slog.Int("score", p.Score))

	update := s.onUpdate
	if update == nil {
		update = (*Session).Advance
	}
	if err := update(s); err != nil {
		return credited, fmt.Errorf("%s: %w", op, err)
	}
	return credited, nil
}

// Reject discards the submission under review for good and serves the next one.
func (s *Session) Reject() (Submission, error) {
	const op = "game.reject"
	if s.state != Running {
		return Submission{}, stateErr(op, ErrNotRunning)
	}
	if s.reviewing == nil {
		return Submission{}, stateErr(op, ErrNotReviewing)
	}
	s.reviewing = nil
	return s.NextForReview()
}

// Advance opens the next round: stale submissions are dropped, the next
// arbiter and prompt are chosen and OnRound runs. The session finishes when
// the prompts are used up.
func (s *Session) Advance() error {
	if s.state != Running {
		return stateErr("game.advance", ErrNotRunning)
	}
	s.queue = nil
	s.reviewing = nil
	if _, ok := s.NextPrompt(); !ok {
		s.arbiter = 0
		return s.Finish()
	}
	if _, ok := s.NextArbiter(); !ok {
		return nil
	}
	s.log(slog.LevelDebug, "game.round", slog.Int64("arbiter_id", s.arbiter), slog.String("prompt", s.prompt))
	if s.onRound != nil {
		return s.onRound(s)
	}
	return nil
}

// Tick opens the first round once enough players joined, then runs OnTick.
func (s *Session) Tick() error {
	if s.state != Running {
		return nil
	}
	if s.arbiter == 0 && len(s.players) >= s.minPlayers {
		if err := s.Advance(); err != nil {
			return err
		}
	}
	if s.onTick != nil && s.state == Running {
		return s.onTick(s)
	}
	return nil
}

func (s *Session) log(level slog.Level, event string, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{
		slog.Int64("chat_id", s.ChatID),
		slog.String("game_state", s.state.String()),
	}, attrs...)
	logger.LogEvent(context.Background(), logger.Game, level, event, attrs...)
}
