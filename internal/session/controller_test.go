package session

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibeparty/vibeparty/internal/store"
)

type emission struct {
	event   string
	payload any
}

type fakeChannel struct {
	mu          sync.Mutex
	connected   bool
	disconnects int
	emissions   []emission
}

func (f *fakeChannel) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emissions = append(f.emissions, emission{event: event, payload: payload})
	return nil
}

func (f *fakeChannel) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeChannel) Connect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
}

func (f *fakeChannel) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnects++
}

func (f *fakeChannel) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.emissions {
		if e.event == event {
			n++
		}
	}
	return n
}

var testSelf = Participant{ID: "user-1", Name: "Alice", Avatar: "😎", Online: true}

func newTestController(ch Channel) *Controller {
	return New(ch, store.NewMemory(), testSelf, zerolog.Nop())
}

func pushState(t *testing.T, c *Controller, s State) {
	t.Helper()
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal push: %v", err)
	}
	c.HandleEvent(EventRoomUpdate, data)
}

func TestEnterRoomRestoresPersistedRound(t *testing.T) {
	mem := store.NewMemory()
	if err := mem.Save("friendship-1", int(RoundBlindChat)); err != nil {
		t.Fatalf("save: %v", err)
	}
	c := New(nil, mem, testSelf, zerolog.Nop())
	defer c.Close()

	c.EnterRoom("friendship-1")
	if c.Round() != RoundBlindChat {
		t.Fatalf("expected restored round %d, got %d", RoundBlindChat, c.Round())
	}
}

func TestEnterRoomDifferentRoomStartsFresh(t *testing.T) {
	mem := store.NewMemory()
	if err := mem.Save("friendship-1", int(RoundHumor)); err != nil {
		t.Fatalf("save: %v", err)
	}
	c := New(nil, mem, testSelf, zerolog.Nop())
	defer c.Close()

	c.EnterRoom("travel-9")
	if c.Round() != RoundQuestions {
		t.Fatalf("expected fresh round 0, got %d", c.Round())
	}
	if c.Started() || c.Finished() {
		t.Fatal("fresh start must clear started/finished flags")
	}
	room, round, ok := mem.Load()
	if !ok || room != "travel-9" || round != 0 {
		t.Fatalf("expected persisted (travel-9, 0), got (%s, %d, %v)", room, round, ok)
	}
}

func TestEnterRoomInvalidPersistedRoundResets(t *testing.T) {
	mem := store.NewMemory()
	if err := mem.Save("friendship-1", 17); err != nil {
		t.Fatalf("save: %v", err)
	}
	c := New(nil, mem, testSelf, zerolog.Nop())
	defer c.Close()

	c.EnterRoom("friendship-1")
	if c.Round() != RoundQuestions {
		t.Fatalf("out-of-range persisted round should reset to 0, got %d", c.Round())
	}
}

func TestJoinRoomResetsEverything(t *testing.T) {
	ch := &fakeChannel{connected: true}
	c := newTestController(ch)
	defer c.Close()

	c.EnterRoom("friendship-1")
	c.mu.Lock()
	c.round = RoundResults
	c.finished = true
	c.started = true
	c.mu.Unlock()

	c.JoinRoom("friendship-1")
	if c.Round() != RoundQuestions {
		t.Fatalf("join must reset round to 0, got %d", c.Round())
	}
	if c.Started() || c.Finished() {
		t.Fatal("join must clear started/finished flags")
	}
	if ch.count(EventJoinRoom) == 0 {
		t.Fatal("join-room should be emitted while connected")
	}
}

func TestStartGameBelowQuorumGoesOffline(t *testing.T) {
	ch := &fakeChannel{connected: true}
	c := newTestController(ch)
	defer c.Close()

	c.EnterRoom("travel-ab12") // fills with simulated users, 1 real
	c.StartGame()

	if ch.count(EventStartGame) != 1 {
		t.Fatalf("expected start-game emitted once, got %d", ch.count(EventStartGame))
	}
	if ch.Connected() {
		t.Fatal("below quorum the transport must disconnect")
	}
	if !c.Started() {
		t.Fatal("started flag should be set")
	}
	snap := c.Snapshot()
	if snap.GameState != "questions" {
		t.Fatalf("expected questions round, got %q", snap.GameState)
	}
	if snap.TimeLeft != 30 {
		t.Fatalf("expected 30s timer, got %d", snap.TimeLeft)
	}
	if snap.ActiveChallenge == nil || snap.ActiveChallenge.Prompt != "Beach, mountains, city, or countryside?" {
		t.Fatalf("expected first travel prompt, got %+v", snap.ActiveChallenge)
	}
}

func TestQuestionProgressionIntoSynergy(t *testing.T) {
	c := newTestController(nil)
	defer c.Close()
	c.EnterRoom("mentorship-7")
	c.StartGame()

	for want := 2; want <= 5; want++ {
		c.mu.Lock()
		c.advanceLocked()
		c.mu.Unlock()
		snap := c.Snapshot()
		if snap.RoundData.QuestionCount != want {
			t.Fatalf("expected question %d, got %d", want, snap.RoundData.QuestionCount)
		}
		if snap.TimeLeft != 30 {
			t.Fatalf("question advance should reset timer to 30, got %d", snap.TimeLeft)
		}
		if len(snap.RoundData.Responses) != 0 {
			t.Fatal("question advance should reset responses")
		}
	}

	// question 5 done: the next advance leaves the questions round
	c.mu.Lock()
	c.advanceLocked()
	c.mu.Unlock()
	snap := c.Snapshot()
	if c.Round() != RoundSynergy || snap.GameState != "synergy" {
		t.Fatalf("expected synergy after 5 questions, got %q", snap.GameState)
	}
	if snap.TimeLeft != 60 {
		t.Fatalf("synergy timer should be 60, got %d", snap.TimeLeft)
	}
	if snap.RoundData.Prompt != "Solve a career dilemma together" {
		t.Fatalf("expected mentorship synergy prompt, got %q", snap.RoundData.Prompt)
	}
}

func TestCountdownExpiryAdvances(t *testing.T) {
	c := newTestController(nil)
	defer c.Close()
	c.EnterRoom("friendship-x")
	c.StartGame()

	c.mu.Lock()
	c.state.TimeLeft = 1
	c.tickLocked()
	c.mu.Unlock()

	snap := c.Snapshot()
	if snap.RoundData.QuestionCount != 2 {
		t.Fatalf("timer expiry should advance to question 2, got %d", snap.RoundData.QuestionCount)
	}
	if snap.TimeLeft != 30 {
		t.Fatalf("expected reset timer, got %d", snap.TimeLeft)
	}

	// at question 5 the expiry leaves the round instead
	c.mu.Lock()
	c.questionNum = 5
	c.state.RoundData.QuestionCount = 5
	c.state.TimeLeft = 1
	c.tickLocked()
	c.mu.Unlock()

	if c.Round() != RoundSynergy {
		t.Fatalf("expected synergy after question 5 expiry, got %q", c.Round().Name())
	}
}

func TestAllSubmittedSignalsOnceAndFallsBack(t *testing.T) {
	ch := &fakeChannel{connected: true}
	c := newTestController(ch)
	defer c.Close()
	c.SetTransitionFallback(20 * time.Millisecond)

	c.EnterRoom("friendship-x")
	c.mu.Lock()
	c.enterRoundLocked(RoundQuestions)
	c.state.Users = []Participant{testSelf, {ID: "u2", Name: "Bob"}, {ID: "u3", Name: "Carol"}}
	c.state.RoundData.Responses = map[string]string{"u2": "a", "u3": "b"}
	c.mu.Unlock()

	c.SubmitRound("mine")
	if got := ch.count(EventRoundCompleted); got != 1 {
		t.Fatalf("expected exactly one roundCompleted signal, got %d", got)
	}

	// racing a second completion while the lock is held is dropped
	c.mu.Lock()
	c.completeRoundLocked()
	c.mu.Unlock()
	if got := ch.count(EventRoundCompleted); got != 1 {
		t.Fatalf("duplicate signal should be suppressed, got %d", got)
	}

	// no ack arrives: the fallback commits locally
	time.Sleep(60 * time.Millisecond)
	if got := c.Snapshot().RoundData.QuestionCount; got != 2 {
		t.Fatalf("fallback should advance to question 2, got question %d", got)
	}

	// the late ack for the same signal is a no-op
	c.HandleEvent(EventRoundCompleted, nil)
	if got := c.Snapshot().RoundData.QuestionCount; got != 2 {
		t.Fatalf("late ack must not advance again, got question %d", got)
	}
}

func TestServerAckWinsOverFallback(t *testing.T) {
	ch := &fakeChannel{connected: true}
	c := newTestController(ch)
	defer c.Close()
	c.SetTransitionFallback(25 * time.Millisecond)

	c.EnterRoom("friendship-x")
	c.mu.Lock()
	c.enterRoundLocked(RoundHumor)
	c.mu.Unlock()

	c.mu.Lock()
	c.completeRoundLocked()
	c.mu.Unlock()

	c.HandleEvent(EventRoundCompleted, nil)
	if c.Round() != RoundResults {
		t.Fatalf("ack should commit the transition, got %q", c.Round().Name())
	}
	if !c.Finished() {
		t.Fatal("entering results must set the finished flag")
	}

	// the fallback fires later and must be a no-op
	time.Sleep(60 * time.Millisecond)
	if c.Round() != RoundResults {
		t.Fatalf("fallback after ack must not double-advance, got %q", c.Round().Name())
	}
	if !c.Finished() {
		t.Fatal("finished flag must stay latched")
	}
}

func TestFinishedLatchedUntilRestart(t *testing.T) {
	ch := &fakeChannel{connected: true}
	c := newTestController(ch)
	defer c.Close()

	c.EnterRoom("friendship-x")
	c.mu.Lock()
	c.enterRoundLocked(RoundResults)
	c.mu.Unlock()
	if !c.Finished() {
		t.Fatal("results entry should set finished")
	}

	pushState(t, c, State{ID: "friendship-x", GameState: "results", Users: []Participant{testSelf}})
	if !c.Finished() {
		t.Fatal("reconciliation must not clear finished")
	}

	c.JoinRoom("friendship-x")
	if c.Finished() {
		t.Fatal("a fresh join must clear finished")
	}
}

func TestTimerUpdateIgnoredDuringQuestions(t *testing.T) {
	c := newTestController(nil)
	defer c.Close()
	c.EnterRoom("friendship-x")
	c.StartGame()

	c.HandleEvent(EventTimerUpdate, []byte("99"))
	if got := c.Snapshot().TimeLeft; got == 99 {
		t.Fatal("questions round must keep its local countdown")
	}

	c.mu.Lock()
	c.enterRoundLocked(RoundSynergy)
	c.mu.Unlock()
	c.HandleEvent(EventTimerUpdate, []byte("42"))
	if got := c.Snapshot().TimeLeft; got != 42 {
		t.Fatalf("synergy should accept the server countdown, got %d", got)
	}
}

func TestSendMessageEchoesLocallyWhenDisconnected(t *testing.T) {
	ch := &fakeChannel{connected: false}
	c := newTestController(ch)
	defer c.Close()
	c.EnterRoom("friendship-x")

	c.SendMessage("hello?")
	snap := c.Snapshot()
	if len(snap.Messages) != 1 || snap.Messages[0].Message != "hello?" {
		t.Fatalf("expected local echo, got %+v", snap.Messages)
	}

	// with no offline fallback the remaining emits are silent no-ops
	c.SubmitCaption("caption")
	c.SubmitReaction("u2", "🔥")
	c.UpdateTeamText("shared")
	if ch.count(EventSubmitCaption)+ch.count(EventReactMeme)+ch.count(EventUpdateTeamText) != 0 {
		t.Fatal("disconnected emits without fallback should be dropped")
	}
}
