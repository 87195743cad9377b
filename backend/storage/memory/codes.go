package memory

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	codeAdjectives = []string{"Cool", "Fire", "Epic", "Lit", "Vibe", "Wave", "Beat", "Flow", "Chill", "Wild"}
	codeNouns      = []string{"Cats", "Beats", "Vibes", "Squad", "Crew", "Gang", "Wave", "Zone", "Party", "Club"}
)

// NewRoomCode returns adjective+noun+[0,999] in upper case, e.g. FIREBEATS42.
// Codes are not checked against live rooms.
func NewRoomCode() string {
	adj := codeAdjectives[rand.IntN(len(codeAdjectives))]
	noun := codeNouns[rand.IntN(len(codeNouns))]
	return strings.ToUpper(adj + noun + strconv.Itoa(rand.IntN(1000)))
}

// NewParticipantID returns user_ + 12 random chars + base36 millisecond clock.
func NewParticipantID() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return "user_" + random + strconv.FormatInt(time.Now().UnixMilli(), 36)
}
