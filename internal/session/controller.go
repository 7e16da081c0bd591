// Package session implements the round-progression core of a party
// game client: it reconciles authoritative server pushes with local
// optimistic state, drives the fixed round sequence, persists progress
// across restarts and falls back to an offline simulated mode when no
// server is reachable.
package session

import (
	"encoding/json"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibeparty/vibeparty/internal/catalog"
	"github.com/vibeparty/vibeparty/internal/store"
)

// Quorum is the number of real participants below which StartGame
// treats the room as a solo/demo session and goes offline.
const Quorum = 4

// DefaultTransitionFallback is how long the controller waits for a
// server acknowledgement of a round completion before committing the
// transition locally.
const DefaultTransitionFallback = 1500 * time.Millisecond

// Channel is the bidirectional event channel to the authority server.
// Implementations reconnect on their own; the controller only needs to
// know whether emissions currently reach a live server.
type Channel interface {
	Emit(event string, payload any) error
	Connected() bool
	Connect()
	Disconnect()
}

// Controller owns the session state machine. All mutation funnels
// through its methods under one mutex, so timer ticks, transport
// deliveries and user actions are serialized.
type Controller struct {
	mu       sync.Mutex
	log      zerolog.Logger
	ch       Channel
	progress store.Progress
	self     Participant

	roomID      string
	state       *State
	round       Round
	questionNum int // 1-based counter within the questions round
	started     bool
	finished    bool

	// Transition lock: at most one committed transition per completion
	// signal. Cleared on server reconciliation or the fallback firing.
	transitioning bool
	fallback      *time.Timer
	fallbackDelay time.Duration
	// Set when the fallback commits a transition locally, so the late
	// server acknowledgement of the same signal becomes a no-op.
	ackSquelched bool

	// Generation counter for the per-round countdown goroutine. Only a
	// round-identity change starts a new generation, which keeps a
	// single ticker alive per round.
	timerGen int

	updates chan struct{}
}

// New creates a controller for the given local user. ch may be nil for
// a purely offline session.
func New(ch Channel, progress store.Progress, self Participant, log zerolog.Logger) *Controller {
	if progress == nil {
		progress = store.NewMemory()
	}
	return &Controller{
		log:           log.With().Str("component", "session").Logger(),
		ch:            ch,
		progress:      progress,
		self:          self,
		questionNum:   1,
		fallbackDelay: DefaultTransitionFallback,
		updates:       make(chan struct{}, 1),
	}
}

// SetTransitionFallback overrides the server-ack wait. Zero or negative
// values are ignored.
func (c *Controller) SetTransitionFallback(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.fallbackDelay = d
	c.mu.Unlock()
}

// Updates signals after state changes. The channel is coalescing; a
// reader sees at least one signal per burst of changes.
func (c *Controller) Updates() <-chan struct{} { return c.updates }

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

func (c *Controller) Round() Round {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.round
}

func (c *Controller) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *Controller) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// Close stops timers. The controller must not be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timerGen++
	c.clearTransitionLocked()
}

// EnterRoom is the navigation entry point: it decides between resuming
// persisted progress and a fresh start, then makes sure a local session
// exists so the game can run even before (or without) a server push.
func (c *Controller) EnterRoom(roomID string) {
	c.mu.Lock()
	c.roomID = roomID
	savedRoom, savedRound, ok := c.progress.Load()
	if ok && savedRoom == roomID {
		r := Round(savedRound)
		if r.Valid() {
			c.log.Info().Str("room", roomID).Int("round", savedRound).Msg("resuming persisted round")
			c.round = r
		} else {
			c.log.Warn().Int("round", savedRound).Msg("persisted round out of range, resetting")
			c.round = RoundQuestions
			_ = c.progress.Clear()
		}
	} else {
		c.round = RoundQuestions
		c.started = false
		c.finished = false
		_ = c.progress.Clear()
	}

	c.ensureSessionLocked()
	c.persistLocked()
	c.notifyLocked()
	ch := c.ch
	self := c.self
	c.mu.Unlock()

	// Entering a room announces the user to the server without
	// resetting progress, so a refreshed client resumes its round.
	if ch != nil && ch.Connected() {
		_ = ch.Emit(EventJoinRoom, JoinRoomPayload{RoomID: roomID, User: self})
	}
}

// JoinRoom fully resets progress and requests room entry from the
// server when a connection is available.
func (c *Controller) JoinRoom(roomID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.questionNum = 1
	c.started = false
	c.finished = false
	c.clearTransitionLocked()
	_ = c.progress.Clear()
	c.enterRoundLocked(RoundQuestions)
	c.ensureSessionLocked()
	c.notifyLocked()
	ch := c.ch
	self := c.self
	c.mu.Unlock()

	if ch != nil {
		if !ch.Connected() {
			ch.Connect()
		}
		_ = ch.Emit(EventJoinRoom, JoinRoomPayload{RoomID: roomID, User: self})
	}
}

// StartGame begins the round sequence. With a live connection and at
// least one real participant it signals the server; a room below the
// real-participant quorum is treated as a solo/demo session: the
// transport is disconnected and the questions round runs locally.
func (c *Controller) StartGame() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.questionNum = 1
	c.finished = false
	c.started = true
	c.clearTransitionLocked()
	c.ensureSessionLocked()

	total := len(c.state.Users)
	real := 0
	for _, u := range c.state.Users {
		if !u.IsSimulated {
			real++
		}
	}

	if c.ch != nil && c.ch.Connected() {
		if real >= 1 {
			c.log.Info().Str("room", c.roomID).Msg("starting game via server")
			_ = c.ch.Emit(EventStartGame, c.roomID)
		}
		if total >= 1 && real < Quorum {
			// Below quorum the server would keep reverting our state;
			// run the demo session locally instead.
			c.log.Info().Int("real", real).Msg("below quorum, disconnecting for simulated game")
			c.ch.Disconnect()
			c.enterRoundLocked(RoundQuestions)
		}
	} else if total >= 1 {
		c.log.Info().Str("room", c.roomID).Msg("starting game offline")
		c.enterRoundLocked(RoundQuestions)
	}
	c.persistLocked()
	c.notifyLocked()
}

// SubmitRound records the local user's answer for the current round and
// raises the round-completion signal once every participant has one.
func (c *Controller) SubmitRound(response string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return
	}

	if c.ch != nil && c.ch.Connected() {
		_ = c.ch.Emit(EventSubmitRound, SubmitRoundPayload{
			RoomID: c.roomID, UserID: c.self.ID, Response: response,
		})
	}

	if c.state.RoundData == nil {
		c.state.RoundData = &RoundData{}
	}
	if c.state.RoundData.Responses == nil {
		c.state.RoundData.Responses = make(map[string]string)
	}
	c.state.RoundData.Responses[c.self.ID] = response

	answered := len(c.state.RoundData.Responses)
	total := len(c.state.Users)
	c.log.Debug().Int("answered", answered).Int("total", total).Msg("round submission")
	if total > 0 && answered >= total {
		c.completeRoundLocked()
	}
	c.notifyLocked()
}

// SendMessage emits a chat message; while disconnected the message is
// echoed into the local log so solo sessions still see their own chat.
func (c *Controller) SendMessage(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return
	}
	payload := ChatPayload{
		RoomID:  c.roomID,
		Message: text,
		User:    MessageUser{ID: c.self.ID, Name: c.self.Name},
	}
	connected := c.ch != nil && c.ch.Connected()
	if c.ch != nil {
		_ = c.ch.Emit(EventSendMessage, payload)
	}
	if !connected {
		c.state.Messages = append(c.state.Messages, Message{
			User:      payload.User,
			Message:   text,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		c.notifyLocked()
	}
}

// UpdateTeamText shares a collaborative text edit. No offline fallback.
func (c *Controller) UpdateTeamText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil || !c.ch.Connected() || c.state == nil {
		return
	}
	_ = c.ch.Emit(EventUpdateTeamText, TeamTextPayload{RoomID: c.roomID, Text: text})
}

// SubmitCaption submits a meme caption. No offline fallback.
func (c *Controller) SubmitCaption(caption string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil || !c.ch.Connected() || c.state == nil {
		return
	}
	_ = c.ch.Emit(EventSubmitCaption, CaptionPayload{RoomID: c.roomID, UserID: c.self.ID, Caption: caption})
}

// SubmitReaction reacts to another participant's caption. No offline
// fallback.
func (c *Controller) SubmitReaction(captionAuthorID, reaction string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil || !c.ch.Connected() || c.state == nil {
		return
	}
	_ = c.ch.Emit(EventReactMeme, ReactionPayload{
		RoomID: c.roomID, UserID: c.self.ID, CaptionAuthorID: captionAuthorID, Reaction: reaction,
	})
}

// HandleEvent dispatches one inbound transport event. The transport
// calls this from its read loop; payloads that fail to decode are
// logged and dropped.
func (c *Controller) HandleEvent(event string, data []byte) {
	switch event {
	case EventRoomUpdate:
		var push State
		if err := json.Unmarshal(data, &push); err != nil {
			c.log.Warn().Err(err).Msg("malformed room-update")
			return
		}
		c.mu.Lock()
		c.reconcileLocked(&push)
		c.notifyLocked()
		c.mu.Unlock()

	case EventTimerUpdate:
		var secs int
		if err := json.Unmarshal(data, &secs); err != nil {
			return
		}
		c.mu.Lock()
		// The questions round runs its own countdown; server ticks
		// would fight it and cause visible jumps.
		if c.state != nil && c.round != RoundQuestions {
			c.state.TimeLeft = secs
			c.notifyLocked()
		}
		c.mu.Unlock()

	case EventRoundCompleted:
		c.mu.Lock()
		if c.ackSquelched {
			// We already committed this transition via the local
			// fallback; the ack lost the race.
			c.ackSquelched = false
			c.mu.Unlock()
			return
		}
		c.log.Info().Str("round", c.round.Name()).Msg("round completion acknowledged by server")
		c.clearTransitionLocked()
		c.advanceLocked()
		c.notifyLocked()
		c.mu.Unlock()

	case EventNewMessage:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		c.mu.Lock()
		if c.state != nil {
			c.state.Messages = append(c.state.Messages, msg)
			c.notifyLocked()
		}
		c.mu.Unlock()

	case EventTeamTextUpdated:
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return
		}
		c.mu.Lock()
		if c.state != nil {
			if c.state.RoundData == nil {
				c.state.RoundData = &RoundData{}
			}
			c.state.RoundData.TeamText = text
			c.notifyLocked()
		}
		c.mu.Unlock()

	case EventGameStarted:
		c.log.Info().Msg("game started")
	}
}

// completeRoundLocked raises the round-completion signal exactly once.
// Competing signals are dropped until the transition commits, either
// via a server acknowledgement or the local fallback timeout.
func (c *Controller) completeRoundLocked() {
	if c.transitioning {
		c.log.Debug().Msg("round transition already pending, skipping")
		return
	}
	c.transitioning = true
	c.ackSquelched = false

	if c.ch != nil && c.ch.Connected() && c.state != nil {
		_ = c.ch.Emit(EventRoundCompleted, RoundCompletedPayload{RoomID: c.roomID})
	}

	if c.fallback != nil {
		c.fallback.Stop()
	}
	c.fallback = time.AfterFunc(c.fallbackDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.transitioning {
			return // the server ack won the race
		}
		c.log.Info().Str("round", c.round.Name()).Msg("no server ack, committing transition locally")
		c.clearTransitionLocked()
		if c.ch != nil && c.ch.Connected() {
			c.ackSquelched = true
		}
		c.advanceLocked()
		c.notifyLocked()
	})
}

func (c *Controller) clearTransitionLocked() {
	c.transitioning = false
	if c.fallback != nil {
		c.fallback.Stop()
		c.fallback = nil
	}
}

// advanceLocked applies the per-round advance rule: next question while
// fewer than five were shown, otherwise the next round in the sequence.
func (c *Controller) advanceLocked() {
	if c.state == nil || c.round.Terminal() {
		return
	}

	if c.round == RoundQuestions {
		count := c.questionNum
		if c.state.RoundData != nil && c.state.RoundData.QuestionCount > count {
			count = c.state.RoundData.QuestionCount
		}
		if count < catalog.QuestionsPerRound {
			next := count + 1
			c.questionNum = next
			ch := catalog.Question(c.roomID, next)
			c.state.ActiveChallenge = &ch
			c.state.CurrentChallengeIndex = next - 1
			c.state.TimeLeft = RoundQuestions.Seconds()
			if c.state.RoundData == nil {
				c.state.RoundData = &RoundData{}
			}
			c.state.RoundData.QuestionCount = next
			c.state.RoundData.Question = ch.Prompt
			c.state.RoundData.Responses = make(map[string]string)
			c.log.Info().Int("question", next).Msg("advancing to next question")
			return
		}
	}

	c.enterRoundLocked(c.round.Next())
	c.persistLocked()
}

// enterRoundLocked commits a round-identity change: payload, timer and
// derived display fields all reset to the round's initial shape.
func (c *Controller) enterRoundLocked(r Round) {
	from := c.round
	c.round = r
	if c.state == nil {
		return
	}
	c.state.GameState = r.Name()
	c.state.CurrentRound = int(r) + 1
	c.state.TimeLeft = r.Seconds()

	switch r {
	case RoundQuestions:
		c.questionNum = 1
		ch := catalog.Question(c.roomID, 1)
		c.state.ActiveChallenge = &ch
		c.state.CurrentChallengeIndex = 0
		c.state.RoundData = &RoundData{
			QuestionCount: 1,
			Question:      ch.Prompt,
			Responses:     make(map[string]string),
		}
	case RoundSynergy:
		c.state.ActiveChallenge = nil
		c.state.RoundData = &RoundData{
			Type:      "team-task",
			Prompt:    catalog.SynergyPrompt(c.roomID),
			Responses: make(map[string]string),
		}
	case RoundBlindChat:
		c.state.RoundData = &RoundData{
			Type:      "blind-chat",
			Prompt:    "Blind Chat: You are paired anonymously!",
			Responses: make(map[string]string),
		}
	case RoundHumor:
		c.state.RoundData = &RoundData{
			Phase:     PhaseCaptioning,
			Responses: make(map[string]string),
		}
	case RoundResults:
		c.finished = true
	}

	if from != r {
		c.log.Info().Str("from", from.Name()).Str("to", r.Name()).Msg("round transition")
	}
	c.restartCountdownLocked()
}

// ensureSessionLocked bootstraps a local session when none exists yet,
// so offline/demo play works before any server push arrives.
func (c *Controller) ensureSessionLocked() {
	if c.state != nil && c.state.ID == c.roomID {
		c.fillSimulatedLocked()
		return
	}
	c.state = &State{
		ID:       c.roomID,
		Users:    []Participant{c.self},
		Messages: []Message{},
	}
	c.enterRoundLocked(c.round)
	c.fillSimulatedLocked()
}

// restartCountdownLocked starts the round countdown goroutine for the
// current round generation. Ticks for rounds other than questions only
// count down while disconnected; a connected server owns those timers.
func (c *Controller) restartCountdownLocked() {
	c.timerGen++
	if c.round.Terminal() {
		return
	}
	gen := c.timerGen
	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for range t.C {
			c.mu.Lock()
			if c.timerGen != gen || c.state == nil {
				c.mu.Unlock()
				return
			}
			c.tickLocked()
			c.mu.Unlock()
		}
	}()
}

// tickLocked applies one second of local countdown.
func (c *Controller) tickLocked() {
	if c.round.Terminal() {
		return
	}
	if c.round != RoundQuestions && c.ch != nil && c.ch.Connected() {
		return // server-pushed countdown is authoritative here
	}
	if c.state.TimeLeft <= 1 {
		c.log.Debug().Str("round", c.round.Name()).Msg("local countdown expired")
		c.advanceLocked()
	} else {
		c.state.TimeLeft--
	}
	c.notifyLocked()
}

func (c *Controller) persistLocked() {
	if c.roomID == "" {
		return
	}
	if err := c.progress.Save(c.roomID, int(c.round)); err != nil {
		c.log.Warn().Err(err).Msg("persisting round progress failed")
	}
}

func (c *Controller) notifyLocked() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// synthesizeMatches builds pairwise match scores between the local user
// and every other participant, sorted best first.
func synthesizeMatches(self Participant, users []Participant) []Match {
	matches := make([]Match, 0, len(users))
	for _, u := range users {
		if u.ID == self.ID {
			continue
		}
		matches = append(matches, Match{User1: self, User2: u, Score: 80 + rand.Intn(21)})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches
}
