package quest

import (
	"strings"
	"time"
)

// WildcardTarget matches any concrete target of the same objective type,
// on either the objective or the event side.
const WildcardTarget = "any"

// ObjectiveType defines what kind of gameplay event advances an objective
type ObjectiveType string

const (
	ObjectiveKill           ObjectiveType = "kill"            // Defeat enemies
	ObjectiveCollect        ObjectiveType = "collect"         // Pick up items
	ObjectiveReachLocation  ObjectiveType = "reach_location"  // Visit a place
	ObjectiveUseSkill       ObjectiveType = "use_skill"       // Use a skill or spell
	ObjectiveCraft          ObjectiveType = "craft"           // Create items
	ObjectiveGainExperience ObjectiveType = "gain_experience" // Earn experience points
	ObjectiveLevelUp        ObjectiveType = "level_up"        // Reach a level (target is the level)
	ObjectiveCompleteQuest  ObjectiveType = "complete_quest"  // Complete another quest
	ObjectiveInteractNPC    ObjectiveType = "interact_npc"    // Talk to or use an NPC
	ObjectiveSurviveTime    ObjectiveType = "survive_time"    // Stay alive for an amount of seconds
)

var objectiveTypes = map[ObjectiveType]bool{
	ObjectiveKill: true, ObjectiveCollect: true, ObjectiveReachLocation: true,
	ObjectiveUseSkill: true, ObjectiveCraft: true, ObjectiveGainExperience: true,
	ObjectiveLevelUp: true, ObjectiveCompleteQuest: true, ObjectiveInteractNPC: true,
	ObjectiveSurviveTime: true,
}

// Valid reports whether t is a known objective type.
func (t ObjectiveType) Valid() bool { return objectiveTypes[t] }

// Category defines the category of quest
type Category string

const (
	CategoryMain        Category = "main"
	CategorySide        Category = "side"
	CategoryDaily       Category = "daily"
	CategoryWeekly      Category = "weekly"
	CategoryAchievement Category = "achievement"
	CategoryTutorial    Category = "tutorial"
	CategoryEvent       Category = "event"
)

// Status is the lifecycle state of a quest. Locked and Available are
// projections of a template; the rest describe an instance.
type Status string

const (
	StatusLocked    Status = "locked"
	StatusAvailable Status = "available"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusTurnedIn  Status = "turned_in"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusTurnedIn || s == StatusFailed || s == StatusExpired
}

// Objective is one measurable sub-goal. On a template Current is always zero.
type Objective struct {
	ID          string        `json:"id"`
	Type        ObjectiveType `json:"type"`
	Target      string        `json:"target"`
	Description string        `json:"description,omitempty"`
	Required    int           `json:"required"`
	Current     int           `json:"current"`
	Optional    bool          `json:"optional,omitempty"`
	Hidden      bool          `json:"hidden,omitempty"`
	Completed   bool          `json:"completed"`
}

// RequirementKind names the kind of gate a requirement applies
type RequirementKind string

const (
	RequireLevel  RequirementKind = "level"
	RequirePrereq RequirementKind = "prerequisite_quest"
	RequireItem   RequirementKind = "item"
	RequireClass  RequirementKind = "class"
	RequireStat   RequirementKind = "stat"
)

// Requirement is one clause that must hold before a quest can be accepted.
type Requirement struct {
	Kind  RequirementKind `json:"kind"`
	Value string          `json:"value"`
}

// Template is an authored quest definition. Templates are never mutated after
// registration; instances take deep copies.
type Template struct {
	ID               string
	Name             string
	Description      string
	Category         Category
	Objectives       []Objective
	Rewards          []Reward
	Requirements     []Requirement
	RecommendedLevel int
	Priority         int // Higher sorts first

	Repeatable   bool
	AutoComplete bool // Turn in as soon as objectives are done
	AutoAccept   bool // Accept as soon as requirements pass

	Duration  time.Duration // Zero means no time limit
	NextQuest string        // Successor unlocked on turn-in
	Group     string
}

// HasDuration reports whether instances of t expire.
func (t *Template) HasDuration() bool {
	return t.Duration > 0
}

// HasPrereq reports whether t lists questID as a prerequisite.
func (t *Template) HasPrereq(questID string) bool {
	for _, req := range t.Requirements {
		if req.Kind == RequirePrereq && req.Value == questID {
			return true
		}
	}
	return false
}

// IsTimed reports whether the template's category is reset by a rollover.
func (t *Template) IsTimed() bool {
	return t.Category == CategoryDaily || t.Category == CategoryWeekly
}

func normalizeTarget(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return WildcardTarget
	}
	return target
}
