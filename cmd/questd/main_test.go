package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnchairsociety/questkeeper/internal/character"
	"github.com/lawnchairsociety/questkeeper/internal/quest"
	"github.com/lawnchairsociety/questkeeper/internal/store"
)

func newSession(t *testing.T) *session {
	t.Helper()
	catalog, err := loadCatalog("../../data/quests")
	require.NoError(t, err)

	hero := character.New("Aria", "warrior")
	m := quest.NewManager(catalog, quest.Options{
		Player:    hero,
		Scheduler: quest.NewManualScheduler(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	})
	hero.BindManager(m)
	t.Cleanup(m.Close)
	return &session{slot: "test", hero: hero, manager: m}
}

func TestLoadCatalog(t *testing.T) {
	dir, err := loadCatalog("../../data/quests")
	require.NoError(t, err)
	file, err := loadCatalog("../../data/quests/main.yaml")
	require.NoError(t, err)
	assert.Greater(t, dir.Count(), file.Count())

	_, err = loadCatalog("../../data/nope")
	assert.Error(t, err)
}

func TestSession_NewSlotAutoAcceptsTutorial(t *testing.T) {
	s := newSession(t)
	mem := store.NewMemoryStore()

	require.NoError(t, s.load(mem))
	assert.Equal(t, quest.StatusActive, s.manager.Status("tutorial_001"))
}

func TestSession_AutosaveThenResume(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()

	s := newSession(t)
	require.NoError(t, s.load(mem))
	s.manager.OnGameplayEvent(quest.ObjectiveKill, "goblin", 2)
	s.hero.GainExperience(50)

	saver := store.NewSaver(mem, 4, time.Second)
	require.NoError(t, s.submit(saver))
	require.NoError(t, saver.Close())
	assert.ElementsMatch(t, []string{"test", "test:character"}, mem.Keys())

	resumed := newSession(t)
	require.NoError(t, resumed.load(mem))
	in, ok := resumed.manager.Instance("tutorial_001")
	require.True(t, ok)
	assert.Equal(t, 2, in.Objectives[0].Current)
	assert.Equal(t, 50, resumed.hero.Experience())

	resumed.hero.GainExperience(1000)
	require.NoError(t, resumed.save(ctx, mem))
	data, found, err := mem.Get(ctx, "test:character")
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, string(data), `"experience":1050`)
}
