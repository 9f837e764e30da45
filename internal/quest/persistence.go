package quest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lawnchairsociety/questkeeper/internal/logger"
)

// StateVersion is written into every State.
const StateVersion = 1

// InstanceRecord is the persisted form of an Instance. Times are UTC.
type InstanceRecord struct {
	QuestID     string      `json:"quest"`
	Status      Status      `json:"status"`
	Objectives  []Objective `json:"objectives"`
	Rewards     []Reward    `json:"rewards"`
	StartedAt   time.Time   `json:"started_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
	CompletedAt time.Time   `json:"completed_at"`
}

// State is one session's quest state. Every list is sorted by quest ID, so
// equal states marshal to equal bytes.
type State struct {
	Version   int              `json:"version"`
	Active    []InstanceRecord `json:"active"`
	Unclaimed []InstanceRecord `json:"unclaimed"`
	Completed []string         `json:"completed"`
	Failed    []string         `json:"failed"`
}

// Store is the key-value interface quest state is saved through.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
}

func recordOf(in *Instance) InstanceRecord {
	return InstanceRecord{
		QuestID:     in.QuestID,
		Status:      in.Status,
		Objectives:  append([]Objective{}, in.Objectives...),
		Rewards:     append([]Reward{}, in.Rewards...),
		StartedAt:   in.StartedAt.UTC(),
		ExpiresAt:   in.ExpiresAt.UTC(),
		CompletedAt: in.CompletedAt.UTC(),
	}
}

func (rec InstanceRecord) instance(status Status) *Instance {
	in := &Instance{
		QuestID:     rec.QuestID,
		Status:      status,
		Objectives:  append([]Objective{}, rec.Objectives...),
		Rewards:     append([]Reward{}, rec.Rewards...),
		StartedAt:   rec.StartedAt,
		ExpiresAt:   rec.ExpiresAt,
		CompletedAt: rec.CompletedAt,
	}
	for i := range in.Objectives {
		in.Objectives[i].normalize()
	}
	return in
}

// Snapshot captures the manager's state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := State{
		Version:   StateVersion,
		Active:    make([]InstanceRecord, 0, len(m.active)),
		Unclaimed: make([]InstanceRecord, 0, len(m.unclaimed)),
		Completed: sortedKeys(m.completed),
		Failed:    sortedKeys(m.failed),
	}
	for _, id := range sortedKeys(m.active) {
		st.Active = append(st.Active, recordOf(m.active[id]))
	}
	for _, id := range sortedKeys(m.unclaimed) {
		st.Unclaimed = append(st.Unclaimed, recordOf(m.unclaimed[id]))
	}
	return st
}

// Restore replaces the manager's state with st. Requirements are not
// re-checked. Active quests whose expiry has passed are expired at once; the
// rest get fresh timers. Records for templates missing from the catalog are
// skipped. Availability is not recomputed; call Refresh afterwards.
func (m *Manager) Restore(st State) {
	m.mu.Lock()
	defer m.unlock()

	for _, in := range m.active {
		m.cancelTimerLocked(in)
	}
	m.resetLocked()

	for _, id := range st.Completed {
		m.completed[id] = true
	}
	for _, id := range st.Failed {
		m.failed[id] = true
	}

	now := m.clock.Now()
	var overdue []*Instance
	for _, rec := range st.Active {
		if _, ok := m.catalog.Get(rec.QuestID); !ok {
			logger.Error("Saved quest references unknown template", "quest", rec.QuestID)
			continue
		}
		in := rec.instance(StatusActive)
		m.active[in.QuestID] = in
		if in.ExpiresAt.IsZero() {
			continue
		}
		if !now.Before(in.ExpiresAt) {
			overdue = append(overdue, in)
			continue
		}
		m.scheduleLocked(in)
	}
	for _, rec := range st.Unclaimed {
		if _, ok := m.catalog.Get(rec.QuestID); !ok {
			logger.Error("Saved quest references unknown template", "quest", rec.QuestID)
			continue
		}
		in := rec.instance(StatusCompleted)
		m.unclaimed[in.QuestID] = in
		m.completed[in.QuestID] = true
	}

	for _, in := range overdue {
		m.expireLocked(in)
	}

	logger.Info("Quest state restored",
		"active", len(m.active),
		"unclaimed", len(m.unclaimed),
		"completed", len(m.completed),
		"failed", len(m.failed),
		"expired_on_load", len(overdue))
}

// MarshalState encodes st as JSON.
func MarshalState(st State) ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to encode quest state: %w", err)
	}
	return data, nil
}

// UnmarshalState decodes JSON produced by MarshalState.
func UnmarshalState(data []byte) (State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("failed to decode quest state: %w", err)
	}
	if st.Version > StateVersion {
		return State{}, fmt.Errorf("quest state version %d is newer than supported %d", st.Version, StateVersion)
	}
	return st, nil
}

// SaveState writes st under key.
func SaveState(ctx context.Context, store Store, key string, st State) error {
	data, err := MarshalState(st)
	if err != nil {
		return err
	}
	if err := store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("failed to save quest state %s: %w", key, err)
	}
	return nil
}

// LoadState reads the state under key. found is false when nothing was saved.
func LoadState(ctx context.Context, store Store, key string) (st State, found bool, err error) {
	data, found, err := store.Get(ctx, key)
	if err != nil {
		return State{}, false, fmt.Errorf("failed to load quest state %s: %w", key, err)
	}
	if !found {
		return State{}, false, nil
	}
	st, err = UnmarshalState(data)
	if err != nil {
		return State{}, false, err
	}
	return st, true, nil
}

// Save snapshots the manager and writes it under key.
func (m *Manager) Save(ctx context.Context, store Store, key string) error {
	return SaveState(ctx, store, key, m.Snapshot())
}

// Load restores the state saved under key and refreshes availability. It
// reports whether a saved state existed; without one the manager is left as is.
func (m *Manager) Load(ctx context.Context, store Store, key string) (bool, error) {
	st, found, err := LoadState(ctx, store, key)
	if err != nil || !found {
		return false, err
	}
	m.Restore(st)
	m.Refresh()
	return true, nil
}
