package gametime

import (
	"github.com/lawnchairsociety/questkeeper/internal/logger"
	"github.com/lawnchairsociety/questkeeper/internal/quest"
)

// Resetter re-arms every turned-in quest of a category.
type Resetter interface {
	ResetCategory(category quest.Category) int
}

// Rollover resets daily quests each game day and weekly quests every
// weeklyEvery days.
type Rollover struct {
	clock       *GameClock
	quests      Resetter
	weeklyEvery int
}

// NewRollover creates a rollover over clock. weeklyEvery defaults to 7.
func NewRollover(clock *GameClock, quests Resetter, weeklyEvery int) *Rollover {
	if weeklyEvery <= 0 {
		weeklyEvery = 7
	}
	return &Rollover{clock: clock, quests: quests, weeklyEvery: weeklyEvery}
}

// Tick advances the clock one hour and performs any resets that fall due.
// It returns how many quests were reset.
func (r *Rollover) Tick() int {
	if !r.clock.AdvanceHour() {
		return 0
	}

	day := r.clock.Day()
	reset := r.quests.ResetCategory(quest.CategoryDaily)
	if day%r.weeklyEvery == 0 {
		reset += r.quests.ResetCategory(quest.CategoryWeekly)
	}
	logger.Info("Game day rolled over", "day", day, "quests_reset", reset)
	return reset
}
