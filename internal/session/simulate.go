package session

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// ParticipantFloor is the room size the simulator fills up to.
const ParticipantFloor = 20

var simulatedNames = []string{
	"Aditya", "Priya", "Neha", "Arjun", "Kavya", "Rahul",
	"Sina", "Lara", "Marco", "Elena", "Yuki", "Hana",
	"Zayn", "Omar", "Leo", "Mia", "Noah", "Sofia",
	"Rohan", "Ishaan", "Aarav", "Mira", "Tara", "Vihaan",
}

var simulatedAvatars = []string{"😎", "🦄", "🚀", "🍕", "👾", "🌈", "🍦", "🍩", "🏀", "🎸"}

// fillSimulatedLocked appends simulated participants until the room
// reaches the floor. Growth is monotonic and the call is idempotent:
// at or above the floor it mutates nothing.
func (c *Controller) fillSimulatedLocked() {
	if c.state == nil || len(c.state.Users) >= ParticipantFloor {
		return
	}

	existing := make(map[string]struct{}, len(c.state.Users))
	for _, u := range c.state.Users {
		existing[u.Name] = struct{}{}
	}

	needed := ParticipantFloor - len(c.state.Users)
	for i := 0; i < needed; i++ {
		name := simulatedNames[rand.Intn(len(simulatedNames))]
		if _, taken := existing[name]; taken {
			name = fmt.Sprintf("%s %d", name, i)
		}
		if _, taken := existing[name]; taken {
			continue
		}
		existing[name] = struct{}{}
		c.state.Users = append(c.state.Users, Participant{
			ID:          "sim-" + uuid.NewString(),
			Name:        name,
			Avatar:      simulatedAvatars[rand.Intn(len(simulatedAvatars))],
			Score:       rand.Intn(50),
			IsSimulated: true,
			Online:      true,
		})
	}
}
