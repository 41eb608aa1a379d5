package runtime

import (
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aretw0/convo/pkg/domain"
)

// MatchVia records which rule selected a transition.
type MatchVia string

const (
	ViaIndex     MatchVia = "index"
	ViaLabel     MatchVia = "label"
	ViaCondition MatchVia = "condition"
	ViaDefault   MatchVia = "default"
)

// Match is the outcome of transition resolution.
type Match struct {
	Target string
	Via    MatchVia
}

// Evaluator resolves which transition a node takes.
type Evaluator struct {
	logger   *slog.Logger
	renderer *Renderer
	exprs    *exprCache

	mu      sync.RWMutex
	regexes map[string]*regexp.Regexp
}

// NewEvaluator creates an Evaluator. A nil logger discards diagnostics.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = discardLogger()
	}
	return &Evaluator{
		logger:   logger,
		renderer: NewRenderer(logger),
		exprs:    newExprCache(),
		regexes:  make(map[string]*regexp.Regexp),
	}
}

// Resolve picks the transition for a user input. First match wins: on menu
// nodes the 1-based position of a transition, then a case-insensitive label;
// on every node conditions by descending priority, then the default
// transition. A transition without a condition always matches, except on
// menu nodes where it is an option reachable only by position or label.
func (ev *Evaluator) Resolve(node *domain.Node, input string, ctx domain.Context) (Match, bool) {
	if node.Type == domain.NodeMenu {
		if m, ok := ev.ResolveChoice(node, input, ctx); ok {
			return m, true
		}
	}
	for _, t := range byPriority(node.Transitions) {
		if t.Condition == nil && node.Type == domain.NodeMenu {
			continue
		}
		if t.Condition == nil || ev.Evaluate(t.Condition, input, ctx) {
			return Match{Target: t.TargetNodeID, Via: ViaCondition}, true
		}
	}
	if node.DefaultTransition != "" {
		return Match{Target: node.DefaultTransition, Via: ViaDefault}, true
	}
	return Match{}, false
}

// ResolveChoice matches input against transition positions and labels only.
func (ev *Evaluator) ResolveChoice(node *domain.Node, input string, ctx domain.Context) (Match, bool) {
	choice := strings.TrimSpace(input)
	if choice == "" {
		return Match{}, false
	}
	for i, t := range node.Transitions {
		if choice == strconv.Itoa(i+1) {
			return Match{Target: t.TargetNodeID, Via: ViaIndex}, true
		}
	}
	for _, t := range node.Transitions {
		if t.Label == "" {
			continue
		}
		if strings.EqualFold(choice, t.Label) || strings.EqualFold(choice, ev.renderer.Render(t.Label, ctx)) {
			return Match{Target: t.TargetNodeID, Via: ViaLabel}, true
		}
	}
	return Match{}, false
}

// ResolvePassThrough picks where a non-interactive node continues:
// unconditional transitions first, then conditions against empty input,
// then the default transition.
func (ev *Evaluator) ResolvePassThrough(node *domain.Node, ctx domain.Context) (Match, bool) {
	sorted := byPriority(node.Transitions)
	for _, t := range sorted {
		if t.Condition == nil || t.Condition.Kind == domain.CondAlways {
			return Match{Target: t.TargetNodeID, Via: ViaCondition}, true
		}
	}
	for _, t := range sorted {
		if ev.Evaluate(t.Condition, "", ctx) {
			return Match{Target: t.TargetNodeID, Via: ViaCondition}, true
		}
	}
	if node.DefaultTransition != "" {
		return Match{Target: node.DefaultTransition, Via: ViaDefault}, true
	}
	return Match{}, false
}

// Evaluate tests a single condition. The subject is the context value named
// by Field (dotted path, then deep search) or the trimmed user input. A
// missing field or a non-numeric operand never matches.
func (ev *Evaluator) Evaluate(cond *domain.Condition, input string, ctx domain.Context) bool {
	input = strings.TrimSpace(input)

	switch cond.Kind {
	case domain.CondAlways:
		return true
	case domain.CondCustom:
		ok, err := ev.exprs.evalBool(cond.Expression(), input, ctx)
		if err != nil {
			ev.logger.Error("error evaluating condition", "expression", cond.Expression(), "error", err)
			return false
		}
		return ok
	}

	subject := domain.String(input)
	if cond.Field != "" {
		v, ok := ctx.Lookup(cond.Field)
		if !ok {
			v, ok = ctx.Find(cond.Field)
		}
		if !ok {
			return false
		}
		subject = v
	}
	text := subject.Text()

	switch cond.Kind {
	case domain.CondEquals:
		for _, alt := range cond.Alternatives() {
			if text == alt {
				return true
			}
		}
	case domain.CondContains:
		for _, alt := range cond.Alternatives() {
			if strings.Contains(text, alt) {
				return true
			}
		}
	case domain.CondRegex:
		re := ev.regex(cond.Value.Text())
		return re != nil && re.MatchString(text)
	case domain.CondGreaterThan, domain.CondLessThan:
		a, ok := subject.Numeric()
		if !ok {
			return false
		}
		b, ok := cond.Value.Numeric()
		if !ok {
			return false
		}
		if cond.Kind == domain.CondGreaterThan {
			return a > b
		}
		return a < b
	case domain.CondInList:
		for _, item := range listValues(cond.Value) {
			if item.Equal(subject) || item.Text() == text {
				return true
			}
		}
	default:
		ev.logger.Warn("unknown condition type", "type", cond.Kind)
	}
	return false
}

func (ev *Evaluator) regex(pattern string) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	ev.mu.RLock()
	re, ok := ev.regexes[pattern]
	ev.mu.RUnlock()
	if ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		ev.logger.Error("invalid condition pattern", "pattern", pattern, "error", err)
	}
	ev.mu.Lock()
	ev.regexes[pattern] = re
	ev.mu.Unlock()
	return re
}

// listValues accepts a literal list or a separator-joined string.
func listValues(v domain.Value) []domain.Value {
	if v.IsList() {
		return v.Items()
	}
	if v.IsNull() {
		return nil
	}
	parts := strings.Split(v.Text(), domain.AlternativeSeparator)
	out := make([]domain.Value, 0, len(parts))
	for _, p := range parts {
		out = append(out, domain.String(strings.TrimSpace(p)))
	}
	return out
}

// byPriority returns transitions sorted by descending priority, stable on ties.
func byPriority(ts []domain.Transition) []domain.Transition {
	sorted := append([]domain.Transition(nil), ts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return sorted
}
