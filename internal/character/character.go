// Package character is the player collaborator of the quest engine: it
// answers requirement checks and banks the rewards quests pay out.
package character

import (
	"fmt"
	"sync"

	"github.com/lawnchairsociety/questkeeper/internal/events"
	"github.com/lawnchairsociety/questkeeper/internal/leveling"
	"github.com/lawnchairsociety/questkeeper/internal/logger"
	"github.com/lawnchairsociety/questkeeper/internal/quest"
)

// LevelHook is called after the character gains one or more levels.
type LevelHook func(oldLevel, newLevel int)

// ExperienceHook is called after the character gains experience.
type ExperienceHook func(amount int)

// Character holds progression and inventory for one player.
type Character struct {
	mu sync.Mutex

	name         string
	class        string
	level        int
	experience   int
	gold         int
	skillPoints  int
	talentPoints int
	items        map[string]int
	currencies   map[string]int

	levelHooks      []LevelHook
	experienceHooks []ExperienceHook
}

// New creates a level 1 character.
func New(name, class string) *Character {
	return &Character{
		name:       name,
		class:      class,
		level:      1,
		items:      make(map[string]int),
		currencies: make(map[string]int),
	}
}

// AddLevelHook registers fn for level gains.
func (c *Character) AddLevelHook(fn LevelHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.levelHooks = append(c.levelHooks, fn)
}

// AddExperienceHook registers fn for experience gains.
func (c *Character) AddExperienceHook(fn ExperienceHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.experienceHooks = append(c.experienceHooks, fn)
}

// BindManager reports level gains and experience to m.
func (c *Character) BindManager(m *quest.Manager) {
	c.AddExperienceHook(func(amount int) {
		m.OnGameplayEvent(quest.ObjectiveGainExperience, quest.WildcardTarget, amount)
	})
	c.AddLevelHook(m.OnLevelUp)
}

// PlayerSnapshot implements quest.PlayerProvider.
func (c *Character) PlayerSnapshot() quest.PlayerSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make(map[string]int, len(c.items))
	for id, n := range c.items {
		items[id] = n
	}
	return quest.PlayerSnapshot{
		Level: c.level,
		Class: c.class,
		Items: items,
		Stats: map[string]int{
			"experience":    c.experience,
			"gold":          c.gold,
			"skill_points":  c.skillPoints,
			"talent_points": c.talentPoints,
		},
	}
}

// GainExperience adds amount and levels up along the curve. Hooks run after
// the character's own lock is released, so they may read it back.
func (c *Character) GainExperience(amount int) leveling.LevelUpInfo {
	if amount <= 0 {
		return leveling.LevelUpInfo{OldLevel: c.Level(), NewLevel: c.Level()}
	}

	c.mu.Lock()
	c.experience += amount
	info := leveling.LevelUpInfo{OldLevel: c.level, NewLevel: c.level}
	if next := leveling.LevelForXP(c.experience); next > c.level {
		c.level = next
		info.NewLevel = next
	}
	levelHooks := append([]LevelHook(nil), c.levelHooks...)
	xpHooks := append([]ExperienceHook(nil), c.experienceHooks...)
	c.mu.Unlock()

	for _, fn := range xpHooks {
		fn(amount)
	}
	if info.Gained() > 0 {
		logger.Info("Character leveled up", "character", c.name, "old_level", info.OldLevel, "new_level", info.NewLevel)
		for _, fn := range levelHooks {
			fn(info.OldLevel, info.NewLevel)
		}
	}
	return info
}

// SetLevel raises the character to level, topping experience up to the
// level's threshold. Lower levels are ignored. It returns the previous level.
func (c *Character) SetLevel(level int) int {
	if level > leveling.MaxPlayerLevel {
		level = leveling.MaxPlayerLevel
	}

	c.mu.Lock()
	old := c.level
	if level <= old {
		c.mu.Unlock()
		return old
	}
	c.level = level
	if floor := leveling.XPForLevel(level); c.experience < floor {
		c.experience = floor
	}
	hooks := append([]LevelHook(nil), c.levelHooks...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(old, level)
	}
	return old
}

// Subscribe registers the character's reward handlers on bus.
func (c *Character) Subscribe(bus *events.Bus) {
	for _, kind := range []quest.RewardKind{
		quest.RewardExperience,
		quest.RewardGold,
		quest.RewardItem,
		quest.RewardSkillPoint,
		quest.RewardTalentPoint,
		quest.RewardCurrency,
	} {
		bus.Subscribe(quest.RewardEventName(kind), c.HandleReward)
	}
}

// HandleReward banks one reward event. Unexpected payloads are errors, which
// the distributor treats as an undelivered reward.
func (c *Character) HandleReward(e events.Event) error {
	switch grant := e.Payload.(type) {
	case quest.ExperienceGrant:
		c.GainExperience(grant.Amount)
	case quest.GoldGrant:
		c.mu.Lock()
		c.gold += grant.Amount
		c.mu.Unlock()
	case quest.ItemGrant:
		c.mu.Lock()
		c.items[grant.ItemID] += grant.Quantity
		c.mu.Unlock()
	case quest.PointGrant:
		c.mu.Lock()
		if grant.Kind == quest.RewardTalentPoint {
			c.talentPoints += grant.Amount
		} else {
			c.skillPoints += grant.Amount
		}
		c.mu.Unlock()
	case quest.CurrencyGrant:
		c.mu.Lock()
		c.currencies[grant.CurrencyID] += grant.Amount
		c.mu.Unlock()
	default:
		return fmt.Errorf("character %s: unexpected payload %T for %s", c.name, e.Payload, e.Name)
	}
	logger.Debug("Reward banked", "character", c.name, "event", e.Name, "quest", e.QuestID)
	return nil
}

// Name returns the character's name.
func (c *Character) Name() string { return c.name }

// Level returns the current level.
func (c *Character) Level() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// Experience returns total experience.
func (c *Character) Experience() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.experience
}

// Gold returns the gold balance.
func (c *Character) Gold() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gold
}

// Points returns unspent skill and talent points.
func (c *Character) Points() (skill, talent int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skillPoints, c.talentPoints
}

// ItemCount returns how many of item the character carries.
func (c *Character) ItemCount(item string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[item]
}

// Currency returns the balance of a named currency.
func (c *Character) Currency(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currencies[id]
}
