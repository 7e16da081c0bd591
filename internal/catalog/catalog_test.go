package catalog

import "testing"

func TestThemeFor(t *testing.T) {
	cases := map[string]string{
		"travel-ab12":        "travel",
		"TRAVEL-ZZ":          "travel",
		"friendship-1":       "friendship",
		"love-connection-x9": "love-connection",
		"mentorship":         "mentorship",
		"unknown-room":       DefaultTheme,
		"":                   DefaultTheme,
	}
	for roomID, want := range cases {
		if got := ThemeFor(roomID); got != want {
			t.Fatalf("ThemeFor(%q): expected %q, got %q", roomID, want, got)
		}
	}
}

func TestChallengesAlwaysFive(t *testing.T) {
	for _, roomID := range []string{"travel-1", "gamers-x", "no-such-theme"} {
		cs := Challenges(roomID)
		if len(cs) != QuestionsPerRound {
			t.Fatalf("room %q: expected %d challenges, got %d", roomID, QuestionsPerRound, len(cs))
		}
		for i, c := range cs {
			if c.ID != i+1 {
				t.Fatalf("room %q: challenge %d has id %d", roomID, i, c.ID)
			}
			if c.Prompt == "" {
				t.Fatalf("room %q: challenge %d has no prompt", roomID, i)
			}
		}
	}
}

func TestQuestionClampsOutOfRange(t *testing.T) {
	first := Question("travel-1", 1)
	if first.Prompt != "Beach, mountains, city, or countryside?" {
		t.Fatalf("unexpected first travel question: %q", first.Prompt)
	}
	if got := Question("travel-1", 0); got != first {
		t.Fatalf("number 0 should clamp to the first question, got %+v", got)
	}
	last := Question("travel-1", QuestionsPerRound)
	if got := Question("travel-1", 99); got != last {
		t.Fatalf("past-the-end numbers should clamp to the last question, got %+v", got)
	}
}

func TestSynergyPromptFallsBack(t *testing.T) {
	if got := SynergyPrompt("mentorship-7"); got != "Solve a career dilemma together" {
		t.Fatalf("unexpected mentorship prompt: %q", got)
	}
	// gamers has questions but no synergy prompt of its own
	if got := SynergyPrompt("gamers-1"); got != roomSynergy[DefaultTheme] {
		t.Fatalf("themes without a synergy prompt should fall back, got %q", got)
	}
	if got := SynergyPrompt("???"); got != "Plan a team event together" {
		t.Fatalf("unknown rooms should use the default prompt, got %q", got)
	}
}
