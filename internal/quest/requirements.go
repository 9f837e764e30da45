package quest

import (
	"strconv"
	"strings"

	"github.com/lawnchairsociety/questkeeper/internal/logger"
)

// PlayerSnapshot is the read-only player state requirements are checked against.
type PlayerSnapshot struct {
	Level     int
	Class     string
	Completed map[string]bool // Quest IDs in the completed set
	Items     map[string]int
	Stats     map[string]int
}

// PlayerProvider reports the current player state. It is polled at evaluation
// time, never cached.
type PlayerProvider interface {
	PlayerSnapshot() PlayerSnapshot
}

// IsSatisfied reports whether every requirement holds for player.
func IsSatisfied(requirements []Requirement, player PlayerSnapshot) bool {
	for _, req := range requirements {
		if !clauseSatisfied(req, player) {
			return false
		}
	}
	return true
}

func clauseSatisfied(req Requirement, player PlayerSnapshot) bool {
	switch req.Kind {
	case RequireLevel:
		min, err := strconv.Atoi(strings.TrimSpace(req.Value))
		if err != nil {
			logger.Warning("Malformed level requirement", "value", req.Value)
			return false
		}
		return player.Level >= min
	case RequirePrereq:
		return player.Completed[req.Value]
	case RequireClass:
		return strings.EqualFold(player.Class, strings.TrimSpace(req.Value))
	case RequireItem, RequireStat:
		// Not wired to inventory or attributes yet.
		return true
	default:
		logger.Warning("Unknown requirement kind", "kind", req.Kind)
		return false
	}
}
