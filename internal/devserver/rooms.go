package devserver

import (
	"errors"
	"sync"
	"time"

	"github.com/vibeparty/vibeparty/internal/catalog"
	"github.com/vibeparty/vibeparty/internal/session"
)

var ErrRoomNotFound = errors.New("room not found")

// Room is one live game room on the authority side.
type Room struct {
	mu    sync.Mutex
	state session.State
	round session.Round

	timerStop chan struct{}
}

// RoomManager tracks rooms by id.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[string]*Room)}
}

// Ensure returns the room, creating it in the lobby state if needed.
func (rm *RoomManager) Ensure(roomID string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if r := rm.rooms[roomID]; r != nil {
		return r
	}
	r := &Room{
		state: session.State{
			ID:        roomID,
			Users:     []session.Participant{},
			GameState: "lobby",
			Messages:  []session.Message{},
		},
	}
	rm.rooms[roomID] = r
	return r
}

func (rm *RoomManager) Get(roomID string) (*Room, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	r := rm.rooms[roomID]
	if r == nil {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Join adds the participant unless already present.
func (r *Room) Join(user session.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, u := range r.state.Users {
		if u.ID == user.ID {
			r.state.Users[i] = user
			return
		}
	}
	user.Online = true
	r.state.Users = append(r.state.Users, user)
}

// Start puts the room into the questions round.
func (r *Room) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enterRound(session.RoundQuestions)
}

// Advance moves the room to the next round. Question sub-steps are the
// client's business; a roundCompleted request always means the whole
// round is done on the authority side.
func (r *Room) Advance() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enterRound(r.round.Next())
}

func (r *Room) enterRound(next session.Round) {
	r.round = next
	r.state.GameState = next.Name()
	r.state.CurrentRound = int(next) + 1
	r.state.TimeLeft = next.Seconds()
	switch next {
	case session.RoundQuestions:
		ch := catalog.Question(r.state.ID, 1)
		r.state.ActiveChallenge = &ch
		r.state.CurrentChallengeIndex = 0
		r.state.RoundData = &session.RoundData{
			QuestionCount: 1,
			Question:      ch.Prompt,
			Responses:     make(map[string]string),
		}
	case session.RoundSynergy:
		r.state.ActiveChallenge = nil
		r.state.RoundData = &session.RoundData{
			Type:      "team-task",
			Prompt:    catalog.SynergyPrompt(r.state.ID),
			Responses: make(map[string]string),
		}
	case session.RoundBlindChat:
		r.state.RoundData = &session.RoundData{
			Type:      "blind-chat",
			Prompt:    "Blind Chat: You are paired anonymously!",
			Responses: make(map[string]string),
		}
	case session.RoundHumor:
		r.state.RoundData = &session.RoundData{
			Phase:     session.PhaseCaptioning,
			Responses: make(map[string]string),
		}
	case session.RoundResults:
	}
}

// RecordResponse stores a question-round answer and reports whether
// every participant has now answered.
func (r *Room) RecordResponse(userID, response string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.RoundData == nil {
		r.state.RoundData = &session.RoundData{}
	}
	if r.state.RoundData.Responses == nil {
		r.state.RoundData.Responses = make(map[string]string)
	}
	r.state.RoundData.Responses[userID] = response
	return len(r.state.Users) > 0 && len(r.state.RoundData.Responses) >= len(r.state.Users)
}

// AddMessage appends a chat message and returns it with a timestamp.
func (r *Room) AddMessage(user session.MessageUser, text string) session.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := session.Message{User: user, Message: text, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	r.state.Messages = append(r.state.Messages, msg)
	return msg
}

// AddCaption records a humor-round caption, replacing any earlier one
// by the same author. Once every participant has a caption the round
// moves to the voting phase.
func (r *Room) AddCaption(userID, caption string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.RoundData == nil {
		r.state.RoundData = &session.RoundData{Phase: session.PhaseCaptioning}
	}
	for i, c := range r.state.RoundData.Captions {
		if c.UserID == userID {
			r.state.RoundData.Captions[i].Caption = caption
			return
		}
	}
	r.state.RoundData.Captions = append(r.state.RoundData.Captions, session.Caption{
		UserID: userID, Caption: caption, Reactions: make(map[string]string),
	})
	if len(r.state.Users) > 0 && len(r.state.RoundData.Captions) >= len(r.state.Users) {
		r.state.RoundData.Phase = session.PhaseVoting
	}
}

// React records a reaction to another participant's caption.
func (r *Room) React(userID, captionAuthorID, reaction string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.RoundData == nil {
		return
	}
	for i, c := range r.state.RoundData.Captions {
		if c.UserID == captionAuthorID {
			if r.state.RoundData.Captions[i].Reactions == nil {
				r.state.RoundData.Captions[i].Reactions = make(map[string]string)
			}
			r.state.RoundData.Captions[i].Reactions[userID] = reaction
			return
		}
	}
}

// SetTeamText updates the shared synergy text.
func (r *Room) SetTeamText(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.RoundData == nil {
		r.state.RoundData = &session.RoundData{}
	}
	r.state.RoundData.TeamText = text
}

// Tick decrements the round countdown by one second and reports the
// remaining time along with whether a server-timed round just expired.
func (r *Room) Tick() (secs int, expired bool, round session.Round) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.round.Terminal() || r.state.GameState == "lobby" {
		return r.state.TimeLeft, false, r.round
	}
	if r.state.TimeLeft > 0 {
		r.state.TimeLeft--
	}
	return r.state.TimeLeft, r.state.TimeLeft == 0 && r.round != session.RoundQuestions, r.round
}

// Snapshot returns a copy of the room state for broadcasting.
func (r *Room) Snapshot() session.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// Round returns the room's current round.
func (r *Room) Round() session.Round {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.round
}
