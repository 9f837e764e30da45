package character

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lawnchairsociety/questkeeper/internal/quest"
)

// State is the persisted form of a Character.
type State struct {
	Name         string         `json:"name"`
	Class        string         `json:"class"`
	Level        int            `json:"level"`
	Experience   int            `json:"experience"`
	Gold         int            `json:"gold"`
	SkillPoints  int            `json:"skill_points"`
	TalentPoints int            `json:"talent_points"`
	Items        map[string]int `json:"items,omitempty"`
	Currencies   map[string]int `json:"currencies,omitempty"`
}

// Snapshot captures the character's current state.
func (c *Character) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Name:         c.name,
		Class:        c.class,
		Level:        c.level,
		Experience:   c.experience,
		Gold:         c.gold,
		SkillPoints:  c.skillPoints,
		TalentPoints: c.talentPoints,
		Items:        copyCounts(c.items),
		Currencies:   copyCounts(c.currencies),
	}
}

// Restore replaces the character's state without firing hooks.
func (c *Character) Restore(st State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = st.Name
	c.class = st.Class
	c.level = max(st.Level, 1)
	c.experience = st.Experience
	c.gold = st.Gold
	c.skillPoints = st.SkillPoints
	c.talentPoints = st.TalentPoints
	c.items = copyCounts(st.Items)
	c.currencies = copyCounts(st.Currencies)
}

// Save writes the character under key.
func (c *Character) Save(ctx context.Context, store quest.Store, key string) error {
	data, err := json.Marshal(c.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to encode character: %w", err)
	}
	return store.Set(ctx, key, data)
}

// Load restores the character from key. It reports false when nothing was saved.
func (c *Character) Load(ctx context.Context, store quest.Store, key string) (bool, error) {
	data, found, err := store.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return false, fmt.Errorf("failed to decode character %s: %w", key, err)
	}
	c.Restore(st)
	return true, nil
}

func copyCounts(src map[string]int) map[string]int {
	out := make(map[string]int, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
