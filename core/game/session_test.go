package game

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/m3rciful/chatbots/core/apperr"
)

func seeded() Option { return WithRand(rand.New(rand.NewPCG(1, 2))) }

func newRunning(t *testing.T, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{seeded(), WithPrompts([]string{"cat", "dog", "hat"})}, opts...)
	s := NewSession(100, opts...)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return s
}

func mustAdd(t *testing.T, s *Session, players ...Player) {
	t.Helper()
	for _, p := range players {
		if err := s.AddPlayer(p); err != nil {
			t.Fatalf("add %v: %v", p, err)
		}
	}
}

func mustSubmit(t *testing.T, s *Session, userID int64, payload string) {
	t.Helper()
	if err := s.Submit(userID, payload); err != nil {
		t.Fatalf("submit %s: %v", payload, err)
	}
}

var (
	alice = Player{UserID: 1, ChatID: 11, Name: "A"}
	bob   = Player{UserID: 2, ChatID: 22, Name: "B"}
	carol = Player{UserID: 3, ChatID: 33, Name: "C"}
)

func TestStartTwiceKeepsRunning(t *testing.T) {
	s := newRunning(t)
	err := s.Start()
	if !errors.Is(err, ErrAlreadyStarted) || !apperr.IsKind(err, apperr.KindStateTransition) {
		t.Fatalf("second start error = %v", err)
	}
	if s.State() != Running {
		t.Fatalf("state = %s, want running", s.State())
	}
}

func TestFinishBeforeStart(t *testing.T) {
	s := NewSession(1, WithPrompts([]string{"x"}))
	err := s.Finish()
	if !errors.Is(err, ErrNotRunning) || !apperr.IsKind(err, apperr.KindStateTransition) {
		t.Fatalf("finish error = %v", err)
	}
	if s.State() != NotStarted {
		t.Fatalf("state = %s, want not_started", s.State())
	}
}

func TestStartRollsBackOnFailure(t *testing.T) {
	boom := errors.New("animation upload failed")
	s := NewSession(1, WithPrompts([]string{"x"}), OnStart(func(*Session) error { return boom }))
	if err := s.Start(); !errors.Is(err, boom) {
		t.Fatalf("start error = %v", err)
	}
	if s.State() != NotStarted {
		t.Fatalf("state = %s after failed start", s.State())
	}

	empty := NewSession(2)
	if err := empty.Start(); !errors.Is(err, ErrNoPrompts) {
		t.Fatalf("start without prompts = %v", err)
	}
	if empty.State() != NotStarted {
		t.Fatalf("state = %s after failed start", empty.State())
	}
}

func TestFinishRollsBackOnFailure(t *testing.T) {
	calls := 0
	s := newRunning(t, OnFinish(func(*Session) error {
		calls++
		if calls == 1 {
			return errors.New("send failed")
		}
		return nil
	}))
	mustAdd(t, s, alice)
	if err := s.Finish(); err == nil {
		t.Fatal("expected finish failure")
	}
	if s.State() != Running {
		t.Fatalf("state = %s, want running after rollback", s.State())
	}
	if _, err := s.Winner(); !errors.Is(err, ErrNotFinished) {
		t.Fatalf("winner before finish = %v", err)
	}
	if err := s.Finish(); err != nil {
		t.Fatalf("second finish: %v", err)
	}
	if err := s.Finish(); !errors.Is(err, ErrFinished) {
		t.Fatalf("finish on finished = %v", err)
	}
}

func TestSubmissionsAreFIFO(t *testing.T) {
	s := newRunning(t)
	mustAdd(t, s, alice, bob)
	mustSubmit(t, s, alice.UserID, "s1")
	mustSubmit(t, s, bob.UserID, "s2")
	mustSubmit(t, s, alice.UserID, "s3")

	var got []string
	for {
		sub, err := s.NextForReview()
		if errors.Is(err, ErrNoSubmissions) {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		got = append(got, sub.Payload)
	}
	if diff := cmp.Diff([]string{"s1", "s2", "s3"}, got); diff != "" {
		t.Fatalf("review order (-want +got):\n%s", diff)
	}
	if !apperr.IsKind(func() error { _, err := s.NextForReview(); return err }(), apperr.KindStateTransition) {
		t.Fatal("empty queue must be a state transition error")
	}
}

func TestRejectedNeverResurfaces(t *testing.T) {
	s := newRunning(t)
	mustAdd(t, s, alice, bob)
	mustSubmit(t, s, alice.UserID, "p1")
	mustSubmit(t, s, bob.UserID, "p2")

	if sub, err := s.NextForReview(); err != nil || sub.Payload != "p1" {
		t.Fatalf("first review = %v, %v", sub, err)
	}
	next, err := s.Reject()
	if err != nil || next.Payload != "p2" {
		t.Fatalf("reject served %v, %v", next, err)
	}
	if _, err := s.Reject(); !errors.Is(err, ErrNoSubmissions) {
		t.Fatalf("reject on last = %v", err)
	}
	if _, err := s.NextForReview(); !errors.Is(err, ErrNoSubmissions) {
		t.Fatalf("rejected items must not come back: %v", err)
	}
}

func TestAddPlayerOverwritesInPlace(t *testing.T) {
	s := NewSession(1)
	mustAdd(t, s, alice, bob, Player{UserID: alice.UserID, ChatID: 99, Name: "Alice"})

	want := []Player{{UserID: 1, ChatID: 99, Name: "Alice"}, bob}
	if diff := cmp.Diff(want, s.Players()); diff != "" {
		t.Fatalf("roster (-want +got):\n%s", diff)
	}
}

func TestRemovePlayer(t *testing.T) {
	s := newRunning(t)
	mustAdd(t, s, alice, bob)
	mustSubmit(t, s, alice.UserID, "a1")
	mustSubmit(t, s, bob.UserID, "b1")
	mustSubmit(t, s, alice.UserID, "a2")

	if err := s.RemovePlayer(alice.UserID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if s.Has(alice.UserID) || s.Pending() != 1 {
		t.Fatalf("alice still present or submissions kept: pending=%d", s.Pending())
	}
	if err := s.RemovePlayer(alice.UserID); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("second remove = %v", err)
	}
	if err := s.Submit(alice.UserID, "late"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("submit by removed player = %v", err)
	}
}

func TestRosterClosedWhenFinished(t *testing.T) {
	s := newRunning(t)
	mustAdd(t, s, alice)
	if err := s.Finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := s.AddPlayer(bob); !errors.Is(err, ErrFinished) {
		t.Fatalf("add after finish = %v", err)
	}
	if err := s.RemovePlayer(alice.UserID); !errors.Is(err, ErrFinished) {
		t.Fatalf("remove after finish = %v", err)
	}
}

func TestWinnerTieGoesToFirstJoiner(t *testing.T) {
	s := newRunning(t)
	mustAdd(t, s, bob, alice)
	if err := s.Finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
	w, err := s.Winner()
	if err != nil || w.UserID != bob.UserID {
		t.Fatalf("winner = %v, %v; want bob", w, err)
	}
}

func TestTickOpensFirstRound(t *testing.T) {
	rounds := 0
	s := newRunning(t, WithMinPlayers(2), OnRound(func(*Session) error { rounds++; return nil }))
	mustAdd(t, s, alice)
	if err := s.Tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if _, ok := s.Arbiter(); ok || rounds != 0 {
		t.Fatal("round must wait for the minimum number of players")
	}

	mustAdd(t, s, bob)
	if err := s.Tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	arb, ok := s.Arbiter()
	if !ok || rounds != 1 || s.Prompt() == "" {
		t.Fatalf("round not opened: arbiter=%v ok=%v rounds=%d prompt=%q", arb, ok, rounds, s.Prompt())
	}
	if s.PromptsLeft() != 2 {
		t.Fatalf("prompts left = %d", s.PromptsLeft())
	}
}

func TestArbiterRotation(t *testing.T) {
	s := newRunning(t)
	mustAdd(t, s, alice, bob)
	mustAdd(t, s, carol) // joins the running rotation

	seen := map[int64]int{}
	for i := 0; i < 3; i++ {
		p, ok := s.NextArbiter()
		if !ok {
			t.Fatal("expected an arbiter")
		}
		seen[p.UserID]++
	}
	if diff := cmp.Diff(map[int64]int{1: 1, 2: 1, 3: 1}, seen); diff != "" {
		t.Fatalf("each player arbitrates once per rotation (-want +got):\n%s", diff)
	}
	if _, ok := s.NextArbiter(); !ok {
		t.Fatal("a new rotation must start when the previous one is used up")
	}
}

func TestAcceptAdvancesAndFinishesWhenPromptsRunOut(t *testing.T) {
	s := NewSession(7, seeded(), WithPrompts([]string{"only"}))
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	mustAdd(t, s, alice, bob)
	if err := s.Tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	arb, _ := s.Arbiter()
	submitter := alice
	if arb.UserID == alice.UserID {
		submitter = bob
	}
	mustSubmit(t, s, submitter.UserID, "photo")
	mustSubmit(t, s, submitter.UserID, "stale")
	if _, err := s.NextForReview(); err != nil {
		t.Fatalf("next: %v", err)
	}
	credited, err := s.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if credited.Score != 1 || credited.UserID != submitter.UserID {
		t.Fatalf("credited = %+v", credited)
	}
	if s.State() != Finished {
		t.Fatalf("state = %s, want finished once prompts are used up", s.State())
	}
	if w, _ := s.Winner(); w.UserID != submitter.UserID {
		t.Fatalf("winner = %+v", w)
	}
}

func TestAcceptWithoutReview(t *testing.T) {
	s := newRunning(t)
	if _, err := s.Accept(); !errors.Is(err, ErrNotReviewing) {
		t.Fatalf("accept = %v", err)
	}
	if _, err := s.Reject(); !errors.Is(err, ErrNotReviewing) {
		t.Fatalf("reject = %v", err)
	}
}
