// Package game implements a turn based party game: a per-chat Session with a
// player roster, arbiter rotation, prompt queue and FIFO submission review, and
// a Coordinator that owns one session per chat plus pending join tokens.
package game

import (
	"errors"
	"fmt"
)

// State is the lifecycle stage of a Session.
type State int

const (
	// NotStarted is the initial state.
	NotStarted State = iota
	// Running accepts players, submissions and reviews.
	Running
	// Finished is terminal.
	Finished
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Player is a participant. ChatID is the private chat used to reach the player.
type Player struct {
	UserID int64
	ChatID int64
	Name   string
	Score  int
}

func (p Player) String() string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("user %d", p.UserID)
}

// Submission is an item a player offered for review.
type Submission struct {
	UserID  int64
	Payload string
}

var (
	ErrAlreadyStarted = errors.New("game already started")
	ErrNotRunning     = errors.New("game is not running")
	ErrNotFinished    = errors.New("game is not finished")
	ErrFinished       = errors.New("game is finished")
	ErrGameExists     = errors.New("a game is already active in this chat")
	ErrNoGame         = errors.New("no game in this chat")
	ErrNoSubmissions  = errors.New("no submissions to review")
	ErrNotReviewing   = errors.New("no submission under review")
	ErrPlayerNotFound = errors.New("player not found")
	ErrNoPlayers      = errors.New("no players")
	ErrNoPrompts      = errors.New("no prompts configured")
	ErrNoPendingJoin  = errors.New("no pending join for user")
	ErrTokenMismatch  = errors.New("join token does not match")
)
