package quest

import (
	"sort"
	"strconv"
	"sync"

	"github.com/lawnchairsociety/questkeeper/internal/events"
	"github.com/lawnchairsociety/questkeeper/internal/logger"
)

// DefaultMaxActive is the active quest cap used when Options.MaxActive is zero.
const DefaultMaxActive = 20

// Options configures a Manager. Every field is optional.
type Options struct {
	MaxActive int
	Player    PlayerProvider
	Publisher events.Publisher
	Scheduler Scheduler
	Clock     Clock // Defaults to the scheduler when it is also a Clock
}

// Manager owns one play session's quest state and runs the lifecycle.
// All methods are safe for concurrent use. Events raised by a call are
// published after the manager's lock is released, in the order raised.
type Manager struct {
	catalog     *Catalog
	player      PlayerProvider
	publisher   events.Publisher
	scheduler   Scheduler
	clock       Clock
	distributor *Distributor
	maxActive   int

	mu        sync.Mutex
	active    map[string]*Instance
	unclaimed map[string]*Instance // COMPLETED, awaiting turn-in
	completed map[string]bool      // COMPLETED or TURNED_IN
	failed    map[string]bool
	available map[string]bool

	outbox     []events.Event
	deliveries []delivery
}

type delivery struct {
	questID string
	rewards []Reward
}

type gameplayEvent struct {
	objType ObjectiveType
	target  string
	amount  int
}

type nobody struct{}

func (nobody) PlayerSnapshot() PlayerSnapshot { return PlayerSnapshot{Level: 1} }

type discard struct{}

func (discard) Publish(events.Event) error { return nil }

// NewManager creates a manager over catalog.
func NewManager(catalog *Catalog, opts Options) *Manager {
	if opts.MaxActive <= 0 {
		opts.MaxActive = DefaultMaxActive
	}
	if opts.Player == nil {
		opts.Player = nobody{}
	}
	if opts.Publisher == nil {
		opts.Publisher = discard{}
	}
	if opts.Clock == nil {
		if c, ok := opts.Scheduler.(Clock); ok {
			opts.Clock = c
		} else {
			opts.Clock = SystemClock{}
		}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = NewTimerScheduler(opts.Clock)
	}

	m := &Manager{
		catalog:     catalog,
		player:      opts.Player,
		publisher:   opts.Publisher,
		scheduler:   opts.Scheduler,
		clock:       opts.Clock,
		distributor: NewDistributor(opts.Publisher, opts.Clock),
		maxActive:   opts.MaxActive,
	}
	m.resetLocked()
	return m
}

func (m *Manager) resetLocked() {
	m.active = make(map[string]*Instance)
	m.unclaimed = make(map[string]*Instance)
	m.completed = make(map[string]bool)
	m.failed = make(map[string]bool)
	m.available = make(map[string]bool)
}

// Catalog returns the catalog the manager was built with.
func (m *Manager) Catalog() *Catalog {
	return m.catalog
}

// unlock releases the lock, publishes queued events and runs queued reward
// deliveries. Must be called with m.mu held.
func (m *Manager) unlock() {
	out := m.outbox
	pending := m.deliveries
	m.outbox = nil
	m.deliveries = nil
	m.mu.Unlock()

	for _, evt := range out {
		if err := m.publisher.Publish(evt); err != nil {
			logger.Error("Event handler failed", "event", evt.Name, "quest", evt.QuestID, "error", err)
		}
	}
	for _, d := range pending {
		m.deliver(d)
	}
}

func (m *Manager) emit(name, questID string, payload any) {
	m.outbox = append(m.outbox, events.Event{
		Name:    name,
		QuestID: questID,
		Payload: payload,
		At:      m.clock.Now(),
	})
}

// deliver distributes rewards for a turned-in quest, then announces it and
// unlocks whatever depended on it. Runs without the lock held so reward
// handlers may call back into the manager.
func (m *Manager) deliver(d delivery) {
	delivered := m.distributor.Distribute(d.questID, d.rewards)

	m.mu.Lock()
	m.emit(EventTurnedIn, d.questID, TurnInResult{QuestID: d.questID, Rewards: delivered})
	m.cascadeLocked(d.questID)
	m.unlock()
}

func (m *Manager) snapshotLocked() PlayerSnapshot {
	snap := m.player.PlayerSnapshot()
	snap.Completed = make(map[string]bool, len(m.completed))
	for id := range m.completed {
		snap.Completed[id] = true
	}
	return snap
}

// Refresh evaluates every template's requirements, publishing quest:available
// for those that newly pass. Hosts call it at startup and after Restore.
func (m *Manager) Refresh() {
	m.mu.Lock()
	defer m.unlock()
	m.evaluateAllLocked()
}

// OnLevelUp routes one level_up event per level gained, targeted at the new
// level, then re-evaluates every template.
func (m *Manager) OnLevelUp(oldLevel, newLevel int) {
	if newLevel <= oldLevel {
		logger.Warning("Ignoring level change that is not a gain", "old", oldLevel, "new", newLevel)
		return
	}

	m.mu.Lock()
	defer m.unlock()

	for lvl := oldLevel + 1; lvl <= newLevel; lvl++ {
		m.routeLocked(gameplayEvent{objType: ObjectiveLevelUp, target: strconv.Itoa(lvl), amount: 1})
	}
	m.evaluateAllLocked()
}

// OnGameplayEvent advances every matching objective of every active quest.
// It reports whether anything matched.
func (m *Manager) OnGameplayEvent(objType ObjectiveType, target string, amount int) bool {
	if !objType.Valid() {
		logger.Warning("Unknown gameplay event type", "type", objType)
		return false
	}
	if amount <= 0 {
		logger.Warning("Ignoring non-positive gameplay event", "type", objType, "target", target, "amount", amount)
		return false
	}

	m.mu.Lock()
	defer m.unlock()
	matched := m.routeLocked(gameplayEvent{objType: objType, target: normalizeTarget(target), amount: amount})
	if objType == ObjectiveLevelUp {
		m.evaluateAllLocked()
	}
	return matched
}

// routeLocked applies ev and every complete_quest event its completions raise.
func (m *Manager) routeLocked(ev gameplayEvent) bool {
	matched := false
	queue := []gameplayEvent{ev}
	for len(queue) > 0 {
		ev := queue[0]
		queue = queue[1:]

		for _, id := range sortedKeys(m.active) {
			in, ok := m.active[id]
			if !ok {
				continue
			}
			touched, _ := in.apply(ev.objType, ev.target, ev.amount)
			if len(touched) == 0 {
				continue
			}
			matched = true
			for _, i := range touched {
				m.emit(EventObjectiveUpdated, id, ObjectiveUpdate{QuestID: id, Objective: in.Objectives[i]})
			}
			m.emit(EventProgressUpdated, id, ProgressUpdate{QuestID: id, Progress: in.Progress()})

			if in.objectivesDone() && m.completeLocked(id) {
				queue = append(queue, gameplayEvent{objType: ObjectiveCompleteQuest, target: id, amount: 1})
			}
		}
	}
	return matched
}

// Accept starts a quest. It fails if the template is unknown, already in
// progress or completed, failed, over the active cap, or its requirements do
// not pass.
func (m *Manager) Accept(id string) bool {
	m.mu.Lock()
	defer m.unlock()
	return m.acceptLocked(id)
}

func (m *Manager) acceptLocked(id string) bool {
	t, exists := m.catalog.Get(id)
	if !exists {
		logger.Warning("Accept failed: unknown quest", "quest", id)
		return false
	}
	if _, ok := m.active[id]; ok {
		logger.Warning("Accept failed: quest already active", "quest", id)
		return false
	}
	if m.completed[id] {
		logger.Warning("Accept failed: quest already completed", "quest", id)
		return false
	}
	if m.failed[id] {
		logger.Warning("Accept failed: quest was abandoned", "quest", id)
		return false
	}
	if len(m.active) >= m.maxActive {
		logger.Warning("Accept failed: active quest cap reached", "quest", id, "cap", m.maxActive)
		return false
	}
	if !IsSatisfied(t.Requirements, m.snapshotLocked()) {
		logger.Warning("Accept failed: requirements not met", "quest", id)
		return false
	}

	in := newInstance(t, m.clock.Now())
	m.active[id] = in
	delete(m.available, id)
	if t.HasDuration() {
		m.scheduleLocked(in)
	}
	m.emit(EventAccepted, id, Transition{QuestID: id, From: StatusAvailable, To: StatusActive})
	logger.Info("Quest accepted", "quest", id, "expires_at", in.ExpiresAt)
	return true
}

func (m *Manager) scheduleLocked(in *Instance) {
	var tok Token
	tok = m.scheduler.Schedule(in.QuestID, in.ExpiresAt, func(questID string) {
		m.expire(questID, &tok)
	})
	in.timer = tok
}

func (m *Manager) cancelTimerLocked(in *Instance) {
	if in.timer == 0 {
		return
	}
	m.scheduler.Cancel(in.timer)
	in.timer = 0
}

// Abandon fails an active quest. The quest cannot be accepted again.
func (m *Manager) Abandon(id string) bool {
	m.mu.Lock()
	defer m.unlock()

	in, ok := m.active[id]
	if !ok {
		logger.Warning("Abandon failed: quest not active", "quest", id)
		return false
	}
	m.cancelTimerLocked(in)
	in.Status = StatusFailed
	delete(m.active, id)
	m.failed[id] = true
	m.emit(EventFailed, id, Transition{QuestID: id, From: StatusActive, To: StatusFailed})
	logger.Info("Quest abandoned", "quest", id)
	return true
}

// expire is the scheduler callback. A firing whose token no longer belongs to
// the live instance is ignored.
func (m *Manager) expire(id string, tok *Token) {
	m.mu.Lock()
	defer m.unlock()

	in, ok := m.active[id]
	if !ok || in.timer != *tok {
		logger.Error("Expiry fired for a quest that is not active", "quest", id, "token", *tok)
		return
	}
	in.timer = 0
	m.expireLocked(in)
}

func (m *Manager) expireLocked(in *Instance) {
	id := in.QuestID
	m.cancelTimerLocked(in)
	in.Status = StatusExpired
	delete(m.active, id)
	m.emit(EventExpired, id, Transition{QuestID: id, From: StatusActive, To: StatusExpired})
	logger.Info("Quest expired", "quest", id)

	// Back to AVAILABLE for the player to pick up again; auto-accept only
	// fires on the first unlock.
	t, ok := m.catalog.Get(id)
	if ok && !m.available[id] && IsSatisfied(t.Requirements, m.snapshotLocked()) {
		m.markAvailableLocked(t, false)
	}
}

// Complete moves an active quest whose required objectives are all done to
// COMPLETED. Auto-complete quests are turned in straight away.
func (m *Manager) Complete(id string) bool {
	m.mu.Lock()
	defer m.unlock()

	in, ok := m.active[id]
	if !ok {
		logger.Warning("Complete failed: quest not active", "quest", id)
		return false
	}
	if !in.objectivesDone() {
		logger.Warning("Complete failed: objectives outstanding", "quest", id, "progress", in.Progress())
		return false
	}
	if !m.completeLocked(id) {
		return false
	}
	m.routeLocked(gameplayEvent{objType: ObjectiveCompleteQuest, target: id, amount: 1})
	return true
}

func (m *Manager) completeLocked(id string) bool {
	in, ok := m.active[id]
	if !ok {
		return false
	}
	m.cancelTimerLocked(in)
	in.Status = StatusCompleted
	in.CompletedAt = m.clock.Now()
	delete(m.active, id)
	m.unclaimed[id] = in
	m.completed[id] = true
	m.emit(EventCompleted, id, Transition{QuestID: id, From: StatusActive, To: StatusCompleted})
	logger.Info("Quest completed", "quest", id)

	if t, ok := m.catalog.Get(id); ok && t.AutoComplete {
		m.turnInLocked(id)
	}
	return true
}

// TurnIn claims a completed quest's rewards. Only the first call for a
// completion succeeds.
func (m *Manager) TurnIn(id string) bool {
	m.mu.Lock()
	defer m.unlock()
	return m.turnInLocked(id)
}

func (m *Manager) turnInLocked(id string) bool {
	in, ok := m.unclaimed[id]
	if !ok || in.Status != StatusCompleted {
		logger.Warning("Turn-in failed: quest not awaiting turn-in", "quest", id)
		return false
	}
	in.Status = StatusTurnedIn
	delete(m.unclaimed, id)
	m.deliveries = append(m.deliveries, delivery{
		questID: id,
		rewards: append([]Reward(nil), in.Rewards...),
	})
	return true
}

// cascadeLocked re-evaluates the successor of questID and every template that
// lists it as a prerequisite.
func (m *Manager) cascadeLocked(questID string) {
	t, ok := m.catalog.Get(questID)
	if ok && t.NextQuest != "" {
		if next, ok := m.catalog.Get(t.NextQuest); ok {
			m.evaluateLocked(next)
		} else {
			logger.Warning("Successor quest not in catalog", "quest", questID, "next", t.NextQuest)
		}
	}
	for _, dep := range m.catalog.Dependents(questID) {
		m.evaluateLocked(dep)
	}
}

func (m *Manager) evaluateAllLocked() {
	for _, t := range m.catalog.All() {
		m.evaluateLocked(t)
	}
}

// evaluateLocked moves t from LOCKED to AVAILABLE when its requirements pass.
// It reports whether t became available.
func (m *Manager) evaluateLocked(t *Template) bool {
	id := t.ID
	if m.available[id] || m.completed[id] || m.failed[id] {
		return false
	}
	if _, ok := m.active[id]; ok {
		return false
	}
	if !IsSatisfied(t.Requirements, m.snapshotLocked()) {
		return false
	}
	m.markAvailableLocked(t, true)
	return true
}

func (m *Manager) markAvailableLocked(t *Template, autoAccept bool) {
	m.available[t.ID] = true
	m.emit(EventAvailable, t.ID, Transition{QuestID: t.ID, From: StatusLocked, To: StatusAvailable})
	if autoAccept && t.AutoAccept {
		m.acceptLocked(t.ID)
	}
}

// ResetRepeatable re-arms a turned-in repeatable quest so it can be accepted again.
func (m *Manager) ResetRepeatable(id string) bool {
	m.mu.Lock()
	defer m.unlock()
	return m.resetRepeatableLocked(id)
}

func (m *Manager) resetRepeatableLocked(id string) bool {
	t, ok := m.catalog.Get(id)
	if !ok {
		logger.Warning("Reset failed: unknown quest", "quest", id)
		return false
	}
	if !t.Repeatable {
		logger.Warning("Reset failed: quest is not repeatable", "quest", id)
		return false
	}
	if !m.completed[id] {
		return false
	}
	if _, waiting := m.unclaimed[id]; waiting {
		logger.Warning("Reset failed: quest awaiting turn-in", "quest", id)
		return false
	}
	delete(m.completed, id)
	m.markAvailableLocked(t, true)
	return true
}

// ResetCategory re-arms every turned-in repeatable quest in category and
// returns how many were reset.
func (m *Manager) ResetCategory(category Category) int {
	m.mu.Lock()
	defer m.unlock()

	n := 0
	for _, t := range m.catalog.ByCategory(category) {
		if t.Repeatable && m.completed[t.ID] && m.resetRepeatableLocked(t.ID) {
			n++
		}
	}
	if n > 0 {
		logger.Info("Repeatable quests reset", "category", category, "count", n)
	}
	return n
}

// Status reports where id is in its lifecycle. Unknown ids report LOCKED.
func (m *Manager) Status(id string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	if in, ok := m.active[id]; ok {
		return in.Status
	}
	if _, ok := m.unclaimed[id]; ok {
		return StatusCompleted
	}
	switch {
	case m.completed[id]:
		return StatusTurnedIn
	case m.failed[id]:
		return StatusFailed
	case m.available[id]:
		return StatusAvailable
	}
	return StatusLocked
}

// Instance returns a copy of the live instance for id, active or awaiting turn-in.
func (m *Manager) Instance(id string) (Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if in, ok := m.active[id]; ok {
		return in.copy(), true
	}
	if in, ok := m.unclaimed[id]; ok {
		return in.copy(), true
	}
	return Instance{}, false
}

// Active returns copies of all active instances sorted by quest ID.
func (m *Manager) Active() []Instance {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Instance, 0, len(m.active))
	for _, id := range sortedKeys(m.active) {
		out = append(out, m.active[id].copy())
	}
	return out
}

// Unclaimed returns copies of completed instances awaiting turn-in.
func (m *Manager) Unclaimed() []Instance {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Instance, 0, len(m.unclaimed))
	for _, id := range sortedKeys(m.unclaimed) {
		out = append(out, m.unclaimed[id].copy())
	}
	return out
}

// Available returns the IDs of quests that can be accepted, sorted.
func (m *Manager) Available() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.available)
}

// Completed returns the completed quest IDs, sorted.
func (m *Manager) Completed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.completed)
}

// Failed returns the failed quest IDs, sorted.
func (m *Manager) Failed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.failed)
}

// ActiveCount returns the number of active quests.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// LiveTimers returns the number of instances holding a scheduler entry.
func (m *Manager) LiveTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, in := range m.active {
		if in.timer != 0 {
			n++
		}
	}
	return n
}

// Close cancels every pending expiry. The manager stays usable but no quest
// will expire until the next Restore or Accept.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, in := range m.active {
		m.cancelTimerLocked(in)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
