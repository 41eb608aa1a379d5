package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/convo/pkg/domain"
)

// GraphOverlay contains session state to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFromSession marks every node the session has touched, plus its current node.
func OverlayFromSession(sess *domain.Session) *GraphOverlay {
	if sess == nil {
		return nil
	}
	overlay := &GraphOverlay{CurrentNode: sess.CurrentNodeID}
	for _, entry := range sess.History {
		if entry.NodeID != "" {
			overlay.VisitedNodes = append(overlay.VisitedNodes, entry.NodeID)
		}
	}
	return overlay
}

// GenerateMermaid produces a Mermaid flowchart for a convo definition.
// Node shapes follow the node type:
//   - start, end: ((Circle)) and ([Stadium])
//   - menu: {{Hexagon}}
//   - condition: {Rhombus}
//   - question, collect_input, validation: [/Parallelogram/]
//   - action, api_call: [[Subroutine]]
//   - ai_chat: >Flag]
//   - process_media: [(Cylinder)]
//
// Default and action jumps are drawn dotted.
func GenerateMermaid(def *domain.Definition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for i := range def.Nodes {
		node := &def.Nodes[i]
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := shape(node, def.StartNodeID)
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escape(node.DisplayName()), closer)

		for _, t := range node.Transitions {
			safeTo := sanitizeMermaidID(t.TargetNodeID)
			if label := transitionLabel(t); label != "" {
				fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, escape(label), safeTo)
				continue
			}
			fmt.Fprintf(&sb, "    %s --> %s\n", safeID, safeTo)
		}
		if node.DefaultTransition != "" {
			fmt.Fprintf(&sb, "    %s -. default .-> %s\n", safeID, sanitizeMermaidID(node.DefaultTransition))
		}
		for _, a := range node.Actions {
			if a.OnSuccess != "" {
				fmt.Fprintf(&sb, "    %s -. \"✓ %s\" .-> %s\n", safeID, a.Type, sanitizeMermaidID(a.OnSuccess))
			}
			if a.OnFailure != "" {
				fmt.Fprintf(&sb, "    %s -. \"✗ %s\" .-> %s\n", safeID, a.Type, sanitizeMermaidID(a.OnFailure))
			}
		}
		if node.AIConfig != nil && node.AIConfig.ExitNodeID != "" {
			fmt.Fprintf(&sb, "    %s -. exit .-> %s\n", safeID, sanitizeMermaidID(node.AIConfig.ExitNodeID))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text for contrast regardless of theme.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if safeID == "" || seen[safeID] {
				continue
			}
			seen[safeID] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func shape(node *domain.Node, startID string) (string, string) {
	switch {
	case node.ID == startID || node.Type == domain.NodeStart:
		return "((", "))"
	case node.Type == domain.NodeEnd:
		return "([", "])"
	case node.Type == domain.NodeMenu:
		return "{{", "}}"
	case node.Type == domain.NodeCondition:
		return "{", "}"
	case node.Type == domain.NodeQuestion, node.Type == domain.NodeCollectInput, node.Type == domain.NodeValidation:
		return "[/", "/]"
	case node.Type == domain.NodeAction, node.Type == domain.NodeAPICall:
		return "[[", "]]"
	case node.Type == domain.NodeAIChat:
		return ">", "]"
	case node.Type == domain.NodeProcessMedia:
		return "[(", ")]"
	}
	return "[", "]"
}

func transitionLabel(t domain.Transition) string {
	if t.Label != "" {
		return t.Label
	}
	c := t.Condition
	if c == nil || c.Kind == domain.CondAlways {
		return ""
	}
	if c.Kind == domain.CondCustom {
		return c.Expression()
	}
	subject := "input"
	if c.Field != "" {
		subject = c.Field
	}
	return fmt.Sprintf("%s %s %s", subject, c.Kind, c.Value.Text())
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
