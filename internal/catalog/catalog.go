// Package catalog holds the per-theme challenge and synergy prompts.
// It is a pure lookup table: room ids resolve to a theme by substring
// match, with a default theme for unrecognized rooms.
package catalog

import "strings"

type Challenge struct {
	ID     int    `json:"id"`
	Type   string `json:"type"`
	Prompt string `json:"prompt"`
	Time   int    `json:"time"` // seconds
}

// QuestionsPerRound is how many question prompts a theme provides.
const QuestionsPerRound = 5

const DefaultTheme = "default"

var roomChallenges = map[string][]Challenge{
	"friendship": {
		{ID: 1, Type: "question", Prompt: "What's the most important quality you look for in a best friend?", Time: 30},
		{ID: 2, Type: "question", Prompt: "What's your favorite memory with a friend?", Time: 30},
		{ID: 3, Type: "question", Prompt: "How do you show appreciation to your friends?", Time: 30},
		{ID: 4, Type: "question", Prompt: "What's a deal-breaker for you in a friendship?", Time: 30},
		{ID: 5, Type: "question", Prompt: "If you could go on a road trip with 3 friends, where would you go?", Time: 30},
	},
	"collaborators": {
		{ID: 1, Type: "question", Prompt: "Describe your work style in 3 words and explain why", Time: 30},
		{ID: 2, Type: "question", Prompt: "What's your biggest professional achievement?", Time: 30},
		{ID: 3, Type: "teamTask", Prompt: "You have $10k budget - design an app feature together", Time: 30},
		{ID: 4, Type: "question", Prompt: "How do you handle disagreements in a team?", Time: 30},
		{ID: 5, Type: "problem", Prompt: "Your product launch is in 2 days but there's a bug. What do you do?", Time: 30},
	},
	"mentorship": {
		{ID: 1, Type: "question", Prompt: "What's a challenge you're currently facing?", Time: 30},
		{ID: 2, Type: "question", Prompt: "What skills do you want to develop in the next 6 months?", Time: 30},
		{ID: 3, Type: "question", Prompt: "Who has been your biggest inspiration and why?", Time: 30},
		{ID: 4, Type: "teamTask", Prompt: "Create a 30-day learning plan together", Time: 30},
		{ID: 5, Type: "scenario", Prompt: "You failed at something important. How do you bounce back?", Time: 30},
	},
	"travel": {
		{ID: 1, Type: "choice", Prompt: "Beach, mountains, city, or countryside?", Time: 30},
		{ID: 2, Type: "question", Prompt: "What's your most memorable travel experience?", Time: 30},
		{ID: 3, Type: "teamTask", Prompt: "Plan a dream 3-day trip together with $3000 budget", Time: 30},
		{ID: 4, Type: "meme", Prompt: "Funniest travel disaster story as a meme", Time: 30},
		{ID: 5, Type: "question", Prompt: "Luxury hotel or local homestay? Why?", Time: 30},
	},
	"gamers": {
		{ID: 1, Type: "question", Prompt: "What was the first video game you ever fell in love with?", Time: 30},
		{ID: 2, Type: "choice", Prompt: "Console, PC, or Mobile? Defend your choice.", Time: 30},
		{ID: 3, Type: "question", Prompt: "What is the most difficult boss fight you've ever beaten?", Time: 30},
		{ID: 4, Type: "question", Prompt: "If you could live in any game world, which one would it be?", Time: 30},
		{ID: 5, Type: "choice", Prompt: "Single-player narrative or Multiplayer chaos?", Time: 30},
	},
	"love-connection": {
		{ID: 1, Type: "question", Prompt: "What makes you laugh the most?", Time: 30},
		{ID: 2, Type: "question", Prompt: "Describe your perfect date night in detail", Time: 30},
		{ID: 3, Type: "question", Prompt: "What's your love language and why?", Time: 30},
		{ID: 4, Type: "teamTask", Prompt: "Create a bucket list of 10 things to do together", Time: 30},
		{ID: 5, Type: "deeptalk", Prompt: "What does 'partnership' mean to you?", Time: 30},
	},
	DefaultTheme: {
		{ID: 1, Type: "question", Prompt: "What brings you here today?", Time: 30},
		{ID: 2, Type: "question", Prompt: "What's something you're grateful for?", Time: 30},
		{ID: 3, Type: "meme", Prompt: "Create a meme about 'vibes'", Time: 30},
		{ID: 4, Type: "question", Prompt: "What's your hidden talent?", Time: 30},
		{ID: 5, Type: "quickfire", Prompt: "Morning or Night? Sweet or Savory?", Time: 30},
	},
}

var roomSynergy = map[string]string{
	"friendship":      "Plan a surprise birthday with 3 items",
	"collaborators":   "Design a startup idea in 60 sec",
	"mentorship":      "Solve a career dilemma together",
	"travel":          "Plan 1-day itinerary under budget",
	"love-connection": "Plan the perfect first date",
	DefaultTheme:      "Plan a team event together",
}

// placeholder is returned when a theme has no challenge at the requested
// position. It keeps callers rendering instead of crashing.
var placeholder = Challenge{ID: 999, Type: "error", Prompt: "Loading question... (Error)", Time: 30}

// ThemeFor resolves a room id to a theme key. Room ids embed the theme
// ("travel-ab12" -> "travel"); anything unrecognized falls back to the
// default theme.
func ThemeFor(roomID string) string {
	id := strings.ToLower(roomID)
	for key := range roomChallenges {
		if key == DefaultTheme {
			continue
		}
		if strings.Contains(id, key) {
			return key
		}
	}
	return DefaultTheme
}

// Challenges returns the ordered question prompts for the room's theme.
func Challenges(roomID string) []Challenge {
	if cs, ok := roomChallenges[ThemeFor(roomID)]; ok && len(cs) > 0 {
		return cs
	}
	return roomChallenges[DefaultTheme]
}

// Question returns the challenge at the given 1-based question number,
// clamped to the last available prompt.
func Question(roomID string, number int) Challenge {
	cs := Challenges(roomID)
	if len(cs) == 0 {
		return placeholder
	}
	idx := number - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(cs) {
		idx = len(cs) - 1
	}
	return cs[idx]
}

// SynergyPrompt returns the team task prompt for the room's theme.
func SynergyPrompt(roomID string) string {
	if p, ok := roomSynergy[ThemeFor(roomID)]; ok {
		return p
	}
	return roomSynergy[DefaultTheme]
}
