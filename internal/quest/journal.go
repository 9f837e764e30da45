package quest

import (
	"fmt"
	"strings"
)

// Journal renders the active and unclaimed quests as plain text.
func (m *Manager) Journal() string {
	active := m.Active()
	unclaimed := m.Unclaimed()
	completedCount := len(m.Completed())

	if len(active) == 0 && len(unclaimed) == 0 {
		if completedCount == 0 {
			return "Your quest journal is empty."
		}
		return fmt.Sprintf("You have no active quests. Completed Quests: %d", completedCount)
	}

	var sb strings.Builder
	sb.WriteString("=== Active Quests ===\n\n")

	for _, in := range append(active, unclaimed...) {
		name := in.QuestID
		if t, ok := m.catalog.Get(in.QuestID); ok && t.Name != "" {
			name = t.Name
		}

		statusTag := "[IN PROGRESS]"
		if in.Status == StatusCompleted {
			statusTag = "[COMPLETE]"
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", statusTag, name))

		for _, obj := range in.Objectives {
			if obj.Hidden && !obj.Completed {
				continue
			}
			line := fmt.Sprintf("  - %s %s: %d/%d", objectiveVerb(obj.Type), obj.Target, obj.Current, obj.Required)
			if obj.Optional {
				line += " (optional)"
			}
			sb.WriteString(line + "\n")
		}
		if !in.ExpiresAt.IsZero() && in.Status == StatusActive {
			sb.WriteString(fmt.Sprintf("  Expires: %s\n", in.ExpiresAt.UTC().Format("2006-01-02 15:04:05")))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("Completed Quests: %d", completedCount))

	return sb.String()
}

func objectiveVerb(t ObjectiveType) string {
	switch t {
	case ObjectiveKill:
		return "Kill"
	case ObjectiveCollect:
		return "Collect"
	case ObjectiveReachLocation:
		return "Reach"
	case ObjectiveUseSkill:
		return "Use"
	case ObjectiveCraft:
		return "Craft"
	case ObjectiveGainExperience:
		return "Gain experience from"
	case ObjectiveLevelUp:
		return "Reach level"
	case ObjectiveCompleteQuest:
		return "Complete"
	case ObjectiveInteractNPC:
		return "Talk to"
	case ObjectiveSurviveTime:
		return "Survive"
	default:
		return "Complete"
	}
}
