package quest

import (
	"fmt"

	"github.com/lawnchairsociety/questkeeper/internal/events"
	"github.com/lawnchairsociety/questkeeper/internal/logger"
)

// RewardKind defines the type of reward
type RewardKind string

const (
	RewardExperience  RewardKind = "experience"
	RewardGold        RewardKind = "gold"
	RewardItem        RewardKind = "item"
	RewardSkillPoint  RewardKind = "skill_point"
	RewardTalentPoint RewardKind = "talent_point"
	RewardCurrency    RewardKind = "currency"
)

// Reward is one thing granted on turn-in. Claimed only ever goes false -> true.
type Reward struct {
	Kind        RewardKind `json:"kind"`
	Amount      int        `json:"amount"`
	ItemID      string     `json:"item,omitempty"`
	CurrencyID  string     `json:"currency,omitempty"`
	Description string     `json:"description,omitempty"`
	Claimed     bool       `json:"claimed"`
}

// Grant payloads, one per reward kind.
type (
	ExperienceGrant struct {
		QuestID string `json:"quest"`
		Amount  int    `json:"amount"`
	}
	GoldGrant struct {
		QuestID string `json:"quest"`
		Amount  int    `json:"amount"`
	}
	ItemGrant struct {
		QuestID  string `json:"quest"`
		ItemID   string `json:"item"`
		Quantity int    `json:"quantity"`
	}
	// PointGrant covers skill and talent points; Kind tells which.
	PointGrant struct {
		QuestID string     `json:"quest"`
		Kind    RewardKind `json:"kind"`
		Amount  int        `json:"amount"`
	}
	CurrencyGrant struct {
		QuestID    string `json:"quest"`
		CurrencyID string `json:"currency"`
		Amount     int    `json:"amount"`
	}
)

// RewardEventName returns the event published when a reward of kind is delivered.
func RewardEventName(kind RewardKind) string {
	return "reward:" + string(kind)
}

// grant builds the kind-specific payload for r.
func (r Reward) grant(questID string) (any, error) {
	switch r.Kind {
	case RewardExperience:
		return ExperienceGrant{QuestID: questID, Amount: r.Amount}, nil
	case RewardGold:
		return GoldGrant{QuestID: questID, Amount: r.Amount}, nil
	case RewardItem:
		if r.ItemID == "" {
			return nil, fmt.Errorf("item reward without item id")
		}
		qty := r.Amount
		if qty <= 0 {
			qty = 1
		}
		return ItemGrant{QuestID: questID, ItemID: r.ItemID, Quantity: qty}, nil
	case RewardSkillPoint, RewardTalentPoint:
		return PointGrant{QuestID: questID, Kind: r.Kind, Amount: r.Amount}, nil
	case RewardCurrency:
		if r.CurrencyID == "" {
			return nil, fmt.Errorf("currency reward without currency id")
		}
		return CurrencyGrant{QuestID: questID, CurrencyID: r.CurrencyID, Amount: r.Amount}, nil
	default:
		return nil, fmt.Errorf("unknown reward kind %q", r.Kind)
	}
}

// Distributor turns a quest's rewards into published reward events.
type Distributor struct {
	publisher events.Publisher
	clock     Clock
}

// NewDistributor creates a distributor publishing to pub.
func NewDistributor(pub events.Publisher, clock Clock) *Distributor {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Distributor{publisher: pub, clock: clock}
}

// Distribute publishes one event per reward and returns the delivered rewards,
// marked claimed. A reward that cannot be built or whose publication fails is
// logged and skipped; the rest are still attempted.
func (d *Distributor) Distribute(questID string, rewards []Reward) []Reward {
	delivered := make([]Reward, 0, len(rewards))
	for _, r := range rewards {
		if r.Claimed {
			continue
		}
		payload, err := r.grant(questID)
		if err != nil {
			logger.Warning("Skipping malformed reward", "quest", questID, "kind", r.Kind, "error", err)
			continue
		}
		evt := events.Event{
			Name:    RewardEventName(r.Kind),
			QuestID: questID,
			Payload: payload,
			At:      d.clock.Now(),
		}
		if err := d.publisher.Publish(evt); err != nil {
			logger.Error("Reward delivery failed", "quest", questID, "kind", r.Kind, "error", err)
			continue
		}
		r.Claimed = true
		delivered = append(delivered, r)
		logger.Always("Reward delivered", "quest", questID, "kind", r.Kind, "amount", r.Amount,
			"item", r.ItemID, "currency", r.CurrencyID)
	}
	return delivered
}
