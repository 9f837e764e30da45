// Package feed streams quest events to WebSocket clients and accepts quest
// commands from them.
package feed

import (
	"fmt"
	"strings"

	"github.com/lawnchairsociety/questkeeper/internal/quest"
)

// Command ops.
const (
	OpAccept   = "accept"
	OpAbandon  = "abandon"
	OpComplete = "complete"
	OpTurnIn   = "turn_in"
	OpEvent    = "event"
	OpLevelUp  = "level_up"
	OpJournal  = "journal"
)

// Command is one inbound client request.
type Command struct {
	Op     string `json:"op"`
	Quest  string `json:"quest,omitempty"`
	Type   string `json:"type,omitempty"`
	Target string `json:"target,omitempty"`
	Amount int    `json:"amount,omitempty"`
	Level  int    `json:"level,omitempty"`
}

// Reply answers exactly one Command.
type Reply struct {
	Op   string `json:"op"`
	OK   bool   `json:"ok"`
	Text string `json:"text"`
}

// Commander executes client commands.
type Commander interface {
	Execute(cmd Command) Reply
}

// LevelSetter moves the player to a new level and returns the previous one.
// Implementations fire their own level-up hooks.
type LevelSetter interface {
	SetLevel(level int) (old int)
}

// Engine routes commands to a quest manager.
type Engine struct {
	Manager *quest.Manager

	// Levels handles level_up. When nil the manager is told directly that
	// the player gained a single level.
	Levels LevelSetter
}

// Execute implements Commander.
func (e *Engine) Execute(cmd Command) Reply {
	reply := Reply{Op: cmd.Op}
	m := e.Manager

	switch cmd.Op {
	case OpAccept, OpAbandon, OpComplete, OpTurnIn:
		if cmd.Quest == "" {
			reply.Text = "Which quest?"
			return reply
		}
		name := e.questName(cmd.Quest)
		switch cmd.Op {
		case OpAccept:
			reply.OK = m.Accept(cmd.Quest)
			reply.Text = outcome(reply.OK, "Quest accepted: "+name, "You cannot accept "+name+" right now.")
		case OpAbandon:
			reply.OK = m.Abandon(cmd.Quest)
			reply.Text = outcome(reply.OK, "Quest abandoned: "+name, "You are not on "+name+".")
		case OpComplete:
			reply.OK = m.Complete(cmd.Quest)
			reply.Text = outcome(reply.OK, "Quest complete: "+name, name+" is not ready to complete.")
		case OpTurnIn:
			reply.OK = m.TurnIn(cmd.Quest)
			reply.Text = outcome(reply.OK, "Quest turned in: "+name, name+" has nothing to turn in.")
		}

	case OpEvent:
		objType := quest.ObjectiveType(strings.ToLower(strings.TrimSpace(cmd.Type)))
		if !objType.Valid() {
			reply.Text = fmt.Sprintf("Unknown objective type %q.", cmd.Type)
			return reply
		}
		amount := cmd.Amount
		if amount == 0 {
			amount = 1
		}
		reply.OK = m.OnGameplayEvent(objType, cmd.Target, amount)
		reply.Text = outcome(reply.OK, "Progress recorded.", "No active quest tracks that.")

	case OpLevelUp:
		if cmd.Level < 1 {
			reply.Text = "Level must be at least 1."
			return reply
		}
		if e.Levels != nil {
			old := e.Levels.SetLevel(cmd.Level)
			reply.OK = cmd.Level > old
		} else {
			m.OnLevelUp(cmd.Level-1, cmd.Level)
			reply.OK = true
		}
		reply.Text = outcome(reply.OK, fmt.Sprintf("You are now level %d.", cmd.Level), "You are already past that level.")

	case OpJournal:
		reply.OK = true
		reply.Text = m.Journal()

	default:
		reply.Text = fmt.Sprintf("Unknown command %q.", cmd.Op)
	}
	return reply
}

func (e *Engine) questName(id string) string {
	if t, ok := e.Manager.Catalog().Get(id); ok && t.Name != "" {
		return t.Name
	}
	return id
}

func outcome(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
