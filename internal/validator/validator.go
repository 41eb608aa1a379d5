package validator

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/aretw0/convo/internal/runtime"
	"github.com/aretw0/convo/pkg/domain"
)

// Report carries the non-fatal findings of a successful validation.
type Report struct {
	// Reachable lists node ids reachable from the start node, in crawl order.
	Reachable []string
	// Unreachable lists node ids no path from the start node leads to.
	Unreachable []string
}

// Warnings renders the report as human-readable lines.
func (r *Report) Warnings() []string {
	out := make([]string, 0, len(r.Unreachable))
	for _, id := range r.Unreachable {
		out = append(out, fmt.Sprintf("node %q is unreachable from the start node", id))
	}
	return out
}

// ValidateDefinition checks a convo for structural errors. It returns a
// *domain.DefinitionError listing every problem found; unreachable nodes are
// reported as warnings only.
func ValidateDefinition(def *domain.Definition) (*Report, error) {
	var issues []domain.Issue
	fail := func(nodeID, format string, args ...any) {
		issues = append(issues, domain.Issue{NodeID: nodeID, Message: fmt.Sprintf(format, args...)})
	}

	if def.ID == "" {
		fail("", "convo id is required")
	}
	if len(def.Nodes) == 0 {
		fail("", "convo has no nodes")
	}

	ids := make(map[string]bool, len(def.Nodes))
	for i := range def.Nodes {
		n := &def.Nodes[i]
		if n.ID == "" {
			fail("", "node #%d has no id", i+1)
			continue
		}
		if ids[n.ID] {
			fail(n.ID, "duplicate node id")
		}
		ids[n.ID] = true
	}

	if def.StartNodeID == "" {
		fail("", "start_node_id is required")
	} else if !ids[def.StartNodeID] {
		fail("", "start node %q not found", def.StartNodeID)
	}

	ref := func(nodeID, what, target string) {
		if target != "" && !ids[target] {
			fail(nodeID, "%s target %q not found", what, target)
		}
	}

	for i := range def.Nodes {
		n := &def.Nodes[i]
		if n.ID == "" {
			continue
		}
		if !n.Type.Valid() {
			fail(n.ID, "unknown node type %q", n.Type)
		}
		for j, t := range n.Transitions {
			if t.TargetNodeID == "" {
				fail(n.ID, "transition #%d has no target_node_id", j+1)
			}
			ref(n.ID, "transition", t.TargetNodeID)
			if t.Condition != nil {
				checkCondition(n.ID, t.Condition, fail)
			}
		}
		ref(n.ID, "default_transition", n.DefaultTransition)

		for _, a := range n.Actions {
			ref(n.ID, "on_success", a.OnSuccess)
			ref(n.ID, "on_failure", a.OnFailure)
			if a.Type == domain.ActionAPICall && (a.API == nil || a.API.URL == "") {
				fail(n.ID, "api_call action requires api_action.url")
			}
		}

		switch n.Type {
		case domain.NodeAIChat:
			if n.AIConfig == nil {
				fail(n.ID, "ai_chat node requires ai_config")
			} else {
				ref(n.ID, "exit_node_id", n.AIConfig.ExitNodeID)
			}
		case domain.NodeProcessMedia:
			if n.MediaConfig == nil {
				fail(n.ID, "process_media node requires process_media_config")
			} else {
				checkMedia(n.ID, n.MediaConfig, fail)
			}
		}
	}

	if len(issues) > 0 {
		return nil, &domain.DefinitionError{ConvoID: def.ID, Issues: issues}
	}
	return crawl(def), nil
}

func checkCondition(nodeID string, c *domain.Condition, fail func(string, string, ...any)) {
	switch c.Kind {
	case domain.CondRegex:
		if _, err := regexp.Compile(c.Value.Text()); err != nil {
			fail(nodeID, "invalid regex condition: %v", err)
		}
	case domain.CondCustom:
		if err := runtime.CompileExpression(c.Expression()); err != nil {
			fail(nodeID, "invalid custom condition: %v", err)
		}
	default:
		if !c.Kind.Valid() {
			fail(nodeID, "unknown condition type %q", c.Kind)
		}
	}
}

func checkMedia(nodeID string, cfg *domain.MediaConfig, fail func(string, string, ...any)) {
	switch cfg.ActionType {
	case domain.MediaService:
		if cfg.Service == nil || cfg.Service.URL == "" {
			fail(nodeID, "service media action requires service_config.url")
		}
	case domain.MediaEmail:
		if cfg.Email == nil || cfg.Email.To == "" {
			fail(nodeID, "email media action requires email_config.to_email")
		}
	case domain.MediaAIService:
		if cfg.AIService == nil {
			fail(nodeID, "ai_service media action requires ai_service_config")
		}
	case domain.MediaOCR, domain.MediaOther:
	default:
		fail(nodeID, "unknown media action type %q", cfg.ActionType)
	}
}

// crawl walks every edge from the start node breadth-first.
func crawl(def *domain.Definition) *Report {
	g := domain.NewGraph(def)
	visited := make(map[string]bool, len(def.Nodes))
	queue := []string{def.StartNodeID}
	report := &Report{}

	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]
		if visited[currentID] {
			continue
		}
		visited[currentID] = true
		report.Reachable = append(report.Reachable, currentID)

		node, ok := g.Node(currentID)
		if !ok {
			continue
		}
		for _, target := range Edges(node) {
			if !visited[target] {
				queue = append(queue, target)
			}
		}
	}

	for _, n := range def.Nodes {
		if !visited[n.ID] {
			report.Unreachable = append(report.Unreachable, n.ID)
		}
	}
	sort.Strings(report.Unreachable)
	return report
}

// Edges lists every node id a node can lead to: transitions, the default
// transition, action jumps and the AI exit node.
func Edges(n *domain.Node) []string {
	var out []string
	for _, t := range n.Transitions {
		out = append(out, t.TargetNodeID)
	}
	if n.DefaultTransition != "" {
		out = append(out, n.DefaultTransition)
	}
	for _, a := range n.Actions {
		if a.OnSuccess != "" {
			out = append(out, a.OnSuccess)
		}
		if a.OnFailure != "" {
			out = append(out, a.OnFailure)
		}
	}
	if n.AIConfig != nil && n.AIConfig.ExitNodeID != "" {
		out = append(out, n.AIConfig.ExitNodeID)
	}
	return out
}
