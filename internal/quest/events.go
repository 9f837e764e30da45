package quest

// Published event names. Consumers (UI, feed, economy) subscribe by these.
const (
	EventAvailable        = "quest:available"
	EventAccepted         = "quest:accepted"
	EventObjectiveUpdated = "quest:objective_updated"
	EventProgressUpdated  = "quest:progress_updated"
	EventCompleted        = "quest:completed"
	EventFailed           = "quest:failed"
	EventExpired          = "quest:expired"
	EventTurnedIn         = "quest:turned_in"
)

// Transition is the payload of lifecycle events.
type Transition struct {
	QuestID string `json:"quest"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

// ObjectiveUpdate is the payload of quest:objective_updated.
type ObjectiveUpdate struct {
	QuestID   string    `json:"quest"`
	Objective Objective `json:"objective"`
}

// ProgressUpdate is the payload of quest:progress_updated. Progress is in [0, 1].
type ProgressUpdate struct {
	QuestID  string  `json:"quest"`
	Progress float64 `json:"progress"`
}

// TurnInResult is the payload of quest:turned_in; Rewards holds only what was delivered.
type TurnInResult struct {
	QuestID string   `json:"quest"`
	Rewards []Reward `json:"rewards"`
}
