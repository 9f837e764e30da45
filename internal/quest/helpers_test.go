package quest

import (
	"time"

	"github.com/lawnchairsociety/questkeeper/internal/events"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakePlayer struct {
	snap PlayerSnapshot
}

func (p *fakePlayer) PlayerSnapshot() PlayerSnapshot { return p.snap }

type harness struct {
	catalog   *Catalog
	manager   *Manager
	scheduler *ManualScheduler
	recorder  *events.Recorder
	player    *fakePlayer
}

func newHarness(templates ...*Template) *harness {
	h := &harness{
		catalog:   NewCatalog(),
		scheduler: NewManualScheduler(testEpoch),
		recorder:  &events.Recorder{},
		player:    &fakePlayer{snap: PlayerSnapshot{Level: 1, Class: "warrior"}},
	}
	for _, t := range templates {
		h.catalog.Register(t)
	}
	h.manager = NewManager(h.catalog, Options{
		Player:    h.player,
		Publisher: h.recorder,
		Scheduler: h.scheduler,
	})
	return h
}

// tutorialTemplate is the first quest a new character gets.
func tutorialTemplate() *Template {
	return &Template{
		ID:       "tutorial_001",
		Name:     "First Steps",
		Category: CategoryTutorial,
		Objectives: []Objective{
			{Type: ObjectiveKill, Target: WildcardTarget, Required: 3},
			{Type: ObjectiveLevelUp, Target: "2", Required: 1},
		},
		Rewards: []Reward{
			{Kind: RewardExperience, Amount: 100},
			{Kind: RewardGold, Amount: 50},
			{Kind: RewardSkillPoint, Amount: 1},
		},
	}
}

func killTemplate(id, target string, required int) *Template {
	return &Template{
		ID:         id,
		Name:       id,
		Category:   CategorySide,
		Objectives: []Objective{{Type: ObjectiveKill, Target: target, Required: required}},
	}
}
