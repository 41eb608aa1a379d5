package runtime

import (
	"context"
	"strings"

	"github.com/aretw0/convo/pkg/domain"
)

// Command is a reserved free-text navigation input.
type Command string

const (
	CommandNone    Command = ""
	CommandMenu    Command = "menu"
	CommandBack    Command = "back"
	CommandRestart Command = "restart"
)

var commandAliases = map[string]Command{
	"menu":       CommandMenu,
	"main":       CommandMenu,
	"main menu":  CommandMenu,
	"back":       CommandBack,
	"previous":   CommandBack,
	"restart":    CommandRestart,
	"start over": CommandRestart,
}

// ParseCommand normalizes input and reports the navigation command it names.
func ParseCommand(input string) Command {
	return commandAliases[strings.ToLower(strings.TrimSpace(input))]
}

// navigate intercepts navigation commands. It reports whether the input was
// consumed; the walk re-enters the normal chain pipeline at the target.
func (t *turn) navigate(ctx context.Context, input string) (bool, error) {
	cmd := ParseCommand(input)
	if cmd == CommandNone {
		return false, nil
	}

	var target string
	switch cmd {
	case CommandMenu:
		target = t.graph.Definition().StartNodeID
		delete(t.sess.Context, domain.KeyAISessionID)
	case CommandBack:
		target = t.previousNode()
		if target == "" {
			return false, nil
		}
	case CommandRestart:
		target = t.graph.Definition().StartNodeID
		t.sess.History = []domain.HistoryEntry{}
		t.sess.Completed = false
	}

	t.command = string(cmd)
	t.log.Info("navigation command", "command", cmd, "from", t.sess.CurrentNodeID, "to", target)
	t.sess.Record(domain.RoleUser, input, t.sess.CurrentNodeID, t.e.events.now())

	if current, ok := t.graph.Node(t.sess.CurrentNodeID); ok {
		return true, t.leaveTo(ctx, current, target)
	}
	return true, t.chain(ctx, target)
}

// previousNode walks the transcript backwards for the last assistant entry
// on a different node that would stop and wait for input if re-entered.
func (t *turn) previousNode() string {
	current := t.sess.CurrentNodeID
	for i := len(t.sess.History) - 1; i >= 0; i-- {
		entry := t.sess.History[i]
		if entry.Role != domain.RoleAssistant || entry.NodeID == "" || entry.NodeID == current {
			continue
		}
		node, ok := t.graph.Node(entry.NodeID)
		if !ok {
			continue
		}
		if node.Type == domain.NodeEnd || (node.Type.PassThrough() && !node.CollectInput) {
			continue
		}
		return node.ID
	}
	return ""
}
