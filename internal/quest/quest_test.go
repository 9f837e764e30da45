package quest

import (
	"math/rand"
	"testing"
)

func TestMatchesWildcardSymmetry(t *testing.T) {
	tests := []struct {
		name      string
		objTarget string
		objType   ObjectiveType
		evType    ObjectiveType
		evTarget  string
		want      bool
	}{
		{"exact target", "rat", ObjectiveKill, ObjectiveKill, "rat", true},
		{"different target", "rat", ObjectiveKill, ObjectiveKill, "wolf", false},
		{"objective wildcard", WildcardTarget, ObjectiveKill, ObjectiveKill, "wolf", true},
		{"event wildcard", "rat", ObjectiveKill, ObjectiveKill, WildcardTarget, true},
		{"both wildcard", WildcardTarget, ObjectiveKill, ObjectiveKill, WildcardTarget, true},
		{"type mismatch beats wildcard", WildcardTarget, ObjectiveKill, ObjectiveCollect, "rat", false},
		{"type mismatch with event wildcard", "rat", ObjectiveKill, ObjectiveCollect, WildcardTarget, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := Objective{Type: tt.objType, Target: tt.objTarget, Required: 1}
			if got := matches(obj, tt.evType, tt.evTarget); got != tt.want {
				t.Errorf("matches(%s/%s, %s/%s) = %v, want %v",
					tt.objType, tt.objTarget, tt.evType, tt.evTarget, got, tt.want)
			}
		})
	}
}

func TestApplyClampsAndCompletes(t *testing.T) {
	in := newInstance(&Template{
		ID: "clamp",
		Objectives: []Objective{
			{Type: ObjectiveCollect, Target: "ore", Required: 5},
			{Type: ObjectiveCollect, Target: WildcardTarget, Required: 2},
		},
	}, testEpoch)

	touched, crossed := in.apply(ObjectiveCollect, "ore", 3)
	if len(touched) != 2 || !crossed {
		t.Fatalf("touched = %v crossed = %v, want both objectives and a crossing", touched, crossed)
	}
	if in.Objectives[1].Current != 2 || !in.Objectives[1].Completed {
		t.Errorf("wildcard objective = %+v, want clamped to 2 and completed", in.Objectives[1])
	}

	touched, _ = in.apply(ObjectiveCollect, "ore", 100)
	if len(touched) != 1 {
		t.Errorf("completed objectives should not be touched again, got %v", touched)
	}
	if in.Objectives[0].Current != 5 {
		t.Errorf("current = %d, want clamped to 5", in.Objectives[0].Current)
	}
}

// Random event streams never break the objective invariants.
func TestObjectiveInvariantsUnderRandomEvents(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	types := []ObjectiveType{ObjectiveKill, ObjectiveCollect, ObjectiveCraft}
	targets := []string{"rat", "wolf", "ore", WildcardTarget}

	tmpl := &Template{ID: "fuzz"}
	for i := 0; i < 8; i++ {
		tmpl.Objectives = append(tmpl.Objectives, Objective{
			Type:     types[rng.Intn(len(types))],
			Target:   targets[rng.Intn(len(targets))],
			Required: 1 + rng.Intn(10),
			Optional: i%3 == 0,
		})
	}
	in := newInstance(tmpl, testEpoch)

	for step := 0; step < 500; step++ {
		in.apply(types[rng.Intn(len(types))], targets[rng.Intn(len(targets))], 1+rng.Intn(4))
		for i, obj := range in.Objectives {
			if obj.Current < 0 || obj.Current > obj.Required {
				t.Fatalf("step %d objective %d out of range: %d/%d", step, i, obj.Current, obj.Required)
			}
			if obj.Completed != (obj.Current >= obj.Required) {
				t.Fatalf("step %d objective %d completed=%v with %d/%d", step, i, obj.Completed, obj.Current, obj.Required)
			}
		}
		p := in.Progress()
		if p < 0 || p > 1 {
			t.Fatalf("progress %f outside [0,1]", p)
		}
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name string
		objs []Objective
		want float64
	}{
		{"no objectives", nil, 1},
		{"only optional", []Objective{{Optional: true, Required: 1}}, 1},
		{"half", []Objective{{Required: 1, Current: 1, Completed: true}, {Required: 1}}, 0.5},
		{"optional ignored", []Objective{{Required: 1, Current: 1, Completed: true}, {Required: 1, Optional: true}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &Instance{Objectives: tt.objs}
			if got := in.Progress(); got != tt.want {
				t.Errorf("Progress() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewInstanceResetsProgress(t *testing.T) {
	tmpl := &Template{
		ID:         "copy",
		Duration:   90,
		Objectives: []Objective{{Type: ObjectiveKill, Target: "rat", Required: 2, Current: 2, Completed: true}},
		Rewards:    []Reward{{Kind: RewardGold, Amount: 5, Claimed: true}},
	}
	in := newInstance(tmpl, testEpoch)

	if in.Objectives[0].Current != 0 || in.Objectives[0].Completed {
		t.Errorf("objective not reset: %+v", in.Objectives[0])
	}
	if in.Rewards[0].Claimed {
		t.Error("reward claim not reset")
	}
	if !in.ExpiresAt.Equal(testEpoch.Add(90)) {
		t.Errorf("ExpiresAt = %v, want start + duration", in.ExpiresAt)
	}

	in.Objectives[0].Current = 1
	if tmpl.Objectives[0].Current != 2 {
		t.Error("instance shares objective storage with template")
	}
}

func TestIsSatisfied(t *testing.T) {
	player := PlayerSnapshot{
		Level:     5,
		Class:     "Cleric",
		Completed: map[string]bool{"intro": true},
	}

	tests := []struct {
		name string
		reqs []Requirement
		want bool
	}{
		{"no requirements", nil, true},
		{"level met", []Requirement{{Kind: RequireLevel, Value: "5"}}, true},
		{"level not met", []Requirement{{Kind: RequireLevel, Value: "6"}}, false},
		{"malformed level", []Requirement{{Kind: RequireLevel, Value: "five"}}, false},
		{"prerequisite met", []Requirement{{Kind: RequirePrereq, Value: "intro"}}, true},
		{"prerequisite missing", []Requirement{{Kind: RequirePrereq, Value: "finale"}}, false},
		{"class case-insensitive", []Requirement{{Kind: RequireClass, Value: "cleric"}}, true},
		{"class mismatch", []Requirement{{Kind: RequireClass, Value: "rogue"}}, false},
		{"item placeholder", []Requirement{{Kind: RequireItem, Value: "key"}}, true},
		{"stat placeholder", []Requirement{{Kind: RequireStat, Value: "str:20"}}, true},
		{"unknown kind", []Requirement{{Kind: "karma", Value: "1"}}, false},
		{"all clauses ANDed", []Requirement{{Kind: RequireLevel, Value: "3"}, {Kind: RequireClass, Value: "rogue"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSatisfied(tt.reqs, player); got != tt.want {
				t.Errorf("IsSatisfied() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestObjectiveTypeValid(t *testing.T) {
	if !ObjectiveSurviveTime.Valid() {
		t.Error("survive_time should be valid")
	}
	if ObjectiveType("fish").Valid() {
		t.Error("fish should not be valid")
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusTurnedIn, StatusFailed, StatusExpired} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusLocked, StatusAvailable, StatusActive, StatusCompleted} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
