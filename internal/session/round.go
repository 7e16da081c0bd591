package session

// Round identifies one step of the fixed round sequence. The numeric
// index is the source of truth; the wire name is derived from it.
type Round int

const (
	RoundQuestions Round = iota
	RoundSynergy
	RoundBlindChat
	RoundHumor
	RoundResults

	RoundCount = 5
)

var roundNames = [RoundCount]string{"questions", "synergy", "blindChat", "humor", "results"}

// roundSeconds is the nominal duration of each round in seconds.
var roundSeconds = [RoundCount]int{30, 60, 120, 45, 0}

// legacyNames maps round names used by older server builds onto the
// canonical sequence. "playing" and "round-1" both predate the split of
// the question round from the generic playing state.
var legacyNames = map[string]Round{
	"round-1": RoundQuestions,
	"round-2": RoundSynergy,
	"round-3": RoundBlindChat,
	"playing": RoundQuestions,
}

func (r Round) Valid() bool { return r >= 0 && r < RoundCount }

// Terminal reports whether no further transitions leave this round.
func (r Round) Terminal() bool { return r == RoundResults }

func (r Round) Name() string {
	if !r.Valid() {
		return roundNames[0]
	}
	return roundNames[r]
}

// Seconds is the countdown the round starts with.
func (r Round) Seconds() int {
	if !r.Valid() {
		return roundSeconds[0]
	}
	return roundSeconds[r]
}

// Next returns the following round. Transitions are strictly forward;
// the terminal round returns itself.
func (r Round) Next() Round {
	if !r.Valid() {
		return RoundQuestions
	}
	if r.Terminal() {
		return r
	}
	return r + 1
}

// RoundFromName maps a wire name (canonical or legacy) to its round.
func RoundFromName(name string) (Round, bool) {
	for i, n := range roundNames {
		if n == name {
			return Round(i), true
		}
	}
	if r, ok := legacyNames[name]; ok {
		return r, true
	}
	return 0, false
}

// ClampRound corrects an out-of-range index to the first round.
func ClampRound(i int) Round {
	r := Round(i)
	if !r.Valid() {
		return RoundQuestions
	}
	return r
}
