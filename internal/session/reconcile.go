package session

import (
	"github.com/vibeparty/vibeparty/internal/catalog"
)

// reconcileLocked merges an authoritative server push into local state.
// The push wins on principle, but a handful of compatibility and
// anti-regression rules run first:
//
//  1. legacy round names are remapped to the canonical sequence
//  2. a "lobby" push while we are inside a room becomes "questions"
//     (servers lag behind room entry), with round data synthesized
//     from the catalog when missing
//  3. synergy/blindChat pushes without teams get participants split
//     into two halves
//  4. a results push without matches gets them synthesized locally
//  5. during questions, the visible question never regresses and the
//     locally-driven countdown is preserved
//
// Afterwards the canonical index is corrected to the pushed round name
// and the transition lock is cleared.
func (c *Controller) reconcileLocked(push *State) {
	name := push.GameState
	if r, ok := legacyNames[name]; ok && name != "playing" {
		c.log.Debug().Str("from", name).Str("to", r.Name()).Msg("remapping legacy round name")
		name = r.Name()
	}

	if name == "lobby" && c.roomID != "" {
		c.log.Debug().Msg("forcing lobby push to questions inside room")
		name = RoundQuestions.Name()
		if push.RoundData == nil || push.RoundData.Question == "" {
			ch := catalog.Question(c.roomID, 1)
			push.ActiveChallenge = &ch
			push.CurrentChallengeIndex = 0
			push.RoundData = &RoundData{
				QuestionCount: 1,
				Question:      ch.Prompt,
				Responses:     make(map[string]string),
			}
			push.TimeLeft = RoundQuestions.Seconds()
		}
	}

	if (name == RoundSynergy.Name() || name == RoundBlindChat.Name()) && len(push.Teams) == 0 && len(push.Users) > 0 {
		half := (len(push.Users) + 1) / 2
		push.Teams = [][]Participant{push.Users[:half], push.Users[half:]}
	}

	if name == RoundResults.Name() && len(push.Matches) == 0 {
		push.Matches = synthesizeMatches(c.self, push.Users)
	}

	if name == "playing" || name == RoundQuestions.Name() {
		name = RoundQuestions.Name()
		serverCount := 1
		if push.RoundData != nil && push.RoundData.QuestionCount > 0 {
			serverCount = push.RoundData.QuestionCount
		}
		// Local timer-driven advances may race ahead of room broadcasts;
		// never regress the visible question.
		safeCount := serverCount
		if c.questionNum > safeCount {
			safeCount = c.questionNum
		}
		ch := catalog.Question(push.ID, safeCount)
		push.ActiveChallenge = &ch
		push.CurrentChallengeIndex = ch.ID - 1
		if push.RoundData == nil {
			push.RoundData = &RoundData{}
		}
		push.RoundData.Question = ch.Prompt
		push.RoundData.QuestionCount = safeCount
		c.questionNum = safeCount

		// A room broadcast unrelated to the timer must not jump the
		// visible countdown.
		if c.state != nil {
			push.TimeLeft = c.state.TimeLeft
		}
	}

	push.GameState = name
	if push.ID == "" {
		push.ID = c.roomID
	}
	c.state = push

	if r, ok := RoundFromName(name); ok && r != c.round {
		c.log.Info().Str("name", name).Int("index", int(r)).Msg("syncing round index to pushed state")
		c.enterRoundFromPushLocked(r)
	}
	if !c.round.Valid() {
		c.round = ClampRound(int(c.round))
	}

	c.fillSimulatedLocked()
	c.clearTransitionLocked()
	c.ackSquelched = false
	c.persistLocked()
}

// enterRoundFromPushLocked adopts a round identity dictated by the
// server without rebuilding the pushed payload. Timer management and
// the finished flag still follow the round change.
func (c *Controller) enterRoundFromPushLocked(r Round) {
	from := c.round
	c.round = r
	c.state.CurrentRound = int(r) + 1
	if r == RoundQuestions && c.questionNum == 0 {
		c.questionNum = 1
	}
	if r.Terminal() {
		c.finished = true
	}
	c.log.Info().Str("from", from.Name()).Str("to", r.Name()).Msg("round transition (server)")
	c.restartCountdownLocked()
}
