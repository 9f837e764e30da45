package quest

import (
	"time"
)

// Instance is the runtime copy of a template for one play session.
type Instance struct {
	QuestID     string
	Status      Status
	Objectives  []Objective
	Rewards     []Reward
	StartedAt   time.Time
	ExpiresAt   time.Time // Zero when the quest has no duration
	CompletedAt time.Time

	timer Token
}

// newInstance clones t with all progress reset.
func newInstance(t *Template, now time.Time) *Instance {
	in := &Instance{
		QuestID:    t.ID,
		Status:     StatusActive,
		Objectives: make([]Objective, len(t.Objectives)),
		Rewards:    make([]Reward, len(t.Rewards)),
		StartedAt:  now,
	}
	for i, obj := range t.Objectives {
		obj.Current = 0
		obj.Completed = false
		in.Objectives[i] = obj
	}
	for i, r := range t.Rewards {
		r.Claimed = false
		in.Rewards[i] = r
	}
	if t.HasDuration() {
		in.ExpiresAt = now.Add(t.Duration)
	}
	return in
}

// copy returns a detached copy safe to hand to callers.
func (in *Instance) copy() Instance {
	out := *in
	out.Objectives = append([]Objective(nil), in.Objectives...)
	out.Rewards = append([]Reward(nil), in.Rewards...)
	out.timer = 0
	return out
}

// Progress is the share of non-optional objectives completed. A quest with no
// required objectives counts as done.
func (in *Instance) Progress() float64 {
	total, done := 0, 0
	for _, obj := range in.Objectives {
		if obj.Optional {
			continue
		}
		total++
		if obj.Completed {
			done++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(done) / float64(total)
}

// objectivesDone reports whether every non-optional objective is completed.
func (in *Instance) objectivesDone() bool {
	for _, obj := range in.Objectives {
		if !obj.Optional && !obj.Completed {
			return false
		}
	}
	return true
}

// matches reports whether an event of objType on target advances obj.
// The wildcard works from either side.
func matches(obj Objective, objType ObjectiveType, target string) bool {
	if obj.Type != objType {
		return false
	}
	return obj.Target == target || obj.Target == WildcardTarget || target == WildcardTarget
}

// apply advances every matching, not yet completed objective by amount, clamped
// to Required. It returns the indexes touched and whether any crossed into completed.
func (in *Instance) apply(objType ObjectiveType, target string, amount int) (touched []int, crossed bool) {
	for i := range in.Objectives {
		obj := &in.Objectives[i]
		if obj.Completed || !matches(*obj, objType, target) {
			continue
		}
		// Compare against the remainder so huge amounts cannot overflow.
		if amount >= obj.Required-obj.Current {
			obj.Current = obj.Required
		} else {
			obj.Current += amount
		}
		if obj.Current >= obj.Required {
			obj.Completed = true
			crossed = true
		}
		touched = append(touched, i)
	}
	return touched, crossed
}

// normalize re-establishes 0 <= Current <= Required and Completed == (Current >= Required).
func (obj *Objective) normalize() {
	if obj.Current < 0 {
		obj.Current = 0
	}
	if obj.Current > obj.Required {
		obj.Current = obj.Required
	}
	obj.Completed = obj.Current >= obj.Required
}
