package session

import (
	"github.com/vibeparty/vibeparty/internal/catalog"
)

// Participant is one member of a room. Simulated participants are
// synthesized locally when a room is underpopulated; they never come
// from the network.
type Participant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar,omitempty"`
	Score       int    `json:"score"`
	IsSimulated bool   `json:"isSimulated,omitempty"`
	Online      bool   `json:"online,omitempty"`
}

type MessageUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Message struct {
	User      MessageUser `json:"user"`
	Message   string      `json:"message"`
	Timestamp string      `json:"timestamp"`
}

// Match pairs the local user with another participant and a synthesized
// compatibility score in [80, 100].
type Match struct {
	User1 Participant `json:"user1"`
	User2 Participant `json:"user2"`
	Score int         `json:"score"`
}

type Caption struct {
	UserID    string            `json:"userId"`
	Caption   string            `json:"caption"`
	Reactions map[string]string `json:"reactions,omitempty"`
}

// Humor round phases.
const (
	PhaseCaptioning = "captioning"
	PhaseVoting     = "voting"
)

// RoundData carries the payload of the current round. Which fields are
// populated depends on the round.
type RoundData struct {
	Question      string            `json:"question,omitempty"`
	Prompt        string            `json:"prompt,omitempty"`
	Type          string            `json:"type,omitempty"`
	QuestionCount int               `json:"questionCount,omitempty"`
	Responses     map[string]string `json:"responses,omitempty"`
	TeamText      string            `json:"teamText,omitempty"`
	Phase         string            `json:"phase,omitempty"`
	MemeURL       string            `json:"memeUrl,omitempty"`
	Captions      []Caption         `json:"captions,omitempty"`
}

// State is the full session snapshot, both as pushed by the server over
// room-update and as held locally between pushes.
type State struct {
	ID                    string             `json:"id"`
	Users                 []Participant      `json:"users"`
	CurrentRound          int                `json:"currentRound"`
	GameState             string             `json:"gameState"`
	Messages              []Message          `json:"messages"`
	TimeLeft              int                `json:"timeLeft"`
	ActiveChallenge       *catalog.Challenge `json:"activeChallenge,omitempty"`
	CurrentChallengeIndex int                `json:"currentChallengeIndex"`
	Teams                 [][]Participant    `json:"teams,omitempty"`
	RoundData             *RoundData         `json:"roundData,omitempty"`
	Matches               []Match            `json:"matches,omitempty"`
}

// Clone returns a deep enough copy of the state for handing out to
// callers without aliasing the owner's mutable slices and maps.
func (s *State) Clone() State {
	if s == nil {
		return State{}
	}
	out := *s
	out.Users = append([]Participant(nil), s.Users...)
	out.Messages = append([]Message(nil), s.Messages...)
	out.Matches = append([]Match(nil), s.Matches...)
	if s.Teams != nil {
		out.Teams = make([][]Participant, len(s.Teams))
		for i, t := range s.Teams {
			out.Teams[i] = append([]Participant(nil), t...)
		}
	}
	if s.ActiveChallenge != nil {
		ch := *s.ActiveChallenge
		out.ActiveChallenge = &ch
	}
	if s.RoundData != nil {
		rd := *s.RoundData
		if s.RoundData.Responses != nil {
			rd.Responses = make(map[string]string, len(s.RoundData.Responses))
			for k, v := range s.RoundData.Responses {
				rd.Responses[k] = v
			}
		}
		rd.Captions = make([]Caption, len(s.RoundData.Captions))
		for i, c := range s.RoundData.Captions {
			cc := c
			if c.Reactions != nil {
				cc.Reactions = make(map[string]string, len(c.Reactions))
				for k, v := range c.Reactions {
					cc.Reactions[k] = v
				}
			}
			rd.Captions[i] = cc
		}
		out.RoundData = &rd
	}
	return out
}
