package runtime_test

import (
	"testing"

	"github.com/aretw0/convo/internal/runtime"
	"github.com/aretw0/convo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cond(kind domain.ConditionKind, field string, value domain.Value) *domain.Condition {
	return &domain.Condition{Kind: kind, Field: field, Value: value}
}

func TestEvaluator_Evaluate(t *testing.T) {
	ctx := domain.Context{
		"age":    domain.Int(30),
		"status": domain.String("Premium member"),
		"plan":   domain.String("gold"),
		"profile": domain.Map(map[string]domain.Value{
			"tier": domain.String("vip"),
		}),
		"tags": domain.List(domain.String("a"), domain.String("b")),
	}

	tests := []struct {
		name     string
		cond     *domain.Condition
		input    string
		expected bool
	}{
		{"Equals input", cond(domain.CondEquals, "", domain.String("yes")), "yes", true},
		{"Equals input trimmed", cond(domain.CondEquals, "", domain.String("yes")), "  yes ", true},
		{"Equals is case-sensitive", cond(domain.CondEquals, "", domain.String("yes")), "YES", false},
		{"Equals alternatives", cond(domain.CondEquals, "", domain.String("y|yes|ok")), "ok", true},
		{"Equals list alternatives", cond(domain.CondEquals, "", domain.List(domain.String("y"), domain.String("n"))), "n", true},
		{"Equals field", cond(domain.CondEquals, "plan", domain.String("gold")), "whatever", true},
		{"Equals nested field by deep search", cond(domain.CondEquals, "tier", domain.String("vip")), "", true},
		{"Equals dotted field", cond(domain.CondEquals, "profile.tier", domain.String("vip")), "", true},
		{"Missing field never matches", cond(domain.CondEquals, "nope", domain.String("")), "", false},
		{"Contains input", cond(domain.CondContains, "", domain.String("help")), "I need help now", true},
		{"Contains is case-sensitive", cond(domain.CondContains, "", domain.String("help")), "HELP", false},
		{"Contains field", cond(domain.CondContains, "status", domain.String("Premium")), "", true},
		{"Contains alternatives", cond(domain.CondContains, "", domain.String("refund|cancel")), "please cancel it", true},
		{"Regex partial", cond(domain.CondRegex, "", domain.String(`\d{3}`)), "code 123 here", true},
		{"Regex no match", cond(domain.CondRegex, "", domain.String(`^\d+$`)), "abc", false},
		{"Invalid regex never matches", cond(domain.CondRegex, "", domain.String(`(`)), "(", false},
		{"Greater than field", cond(domain.CondGreaterThan, "age", domain.Int(18)), "", true},
		{"Greater than input", cond(domain.CondGreaterThan, "", domain.String("10")), "11.5", true},
		{"Greater than non-numeric", cond(domain.CondGreaterThan, "", domain.Int(1)), "abc", false},
		{"Less than", cond(domain.CondLessThan, "age", domain.Int(18)), "", false},
		{"Less than non-numeric value", cond(domain.CondLessThan, "age", domain.String("x")), "", false},
		{"In list", cond(domain.CondInList, "", domain.List(domain.String("red"), domain.String("green"))), "green", true},
		{"In list miss", cond(domain.CondInList, "", domain.List(domain.String("red"))), "blue", false},
		{"In list field number", cond(domain.CondInList, "age", domain.List(domain.Int(30), domain.Int(40))), "", true},
		{"Always", cond(domain.CondAlways, "nope", domain.Null()), "", true},
		{"Custom comparison", cond(domain.CondCustom, "", domain.String(`age >= 18 && plan == "gold"`)), "", true},
		{"Custom on input", cond(domain.CondCustom, "", domain.String(`lower(user_input) == "yes"`)), "YES", true},
		{"Custom input alias", cond(domain.CondCustom, "", domain.String(`input != ""`)), "", false},
		{"Custom nested", cond(domain.CondCustom, "", domain.String(`profile.tier == "vip"`)), "", true},
		{"Custom unknown variable is false", cond(domain.CondCustom, "", domain.String(`ghost == 1`)), "", false},
		{"Custom syntax error is false", cond(domain.CondCustom, "", domain.String(`age >`)), "", false},
		{"Custom non-boolean is false", cond(domain.CondCustom, "", domain.String(`"text"`)), "", false},
	}

	ev := runtime.NewEvaluator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ev.Evaluate(tt.cond, tt.input, ctx))
		})
	}
}

func TestEvaluator_CustomUsesOperator(t *testing.T) {
	ev := runtime.NewEvaluator(nil)
	c := &domain.Condition{Kind: domain.CondCustom, Operator: `age > 10`, Value: domain.String("ignored")}
	assert.True(t, ev.Evaluate(c, "", domain.Context{"age": domain.Int(11)}))
}

func menuNode() *domain.Node {
	return &domain.Node{
		ID:   "menu",
		Type: domain.NodeMenu,
		Transitions: []domain.Transition{
			{TargetNodeID: "sales", Label: "Sales"},
			{TargetNodeID: "support", Label: "Support"},
			{TargetNodeID: "billing", Label: "Billing"},
		},
	}
}

func TestEvaluator_Resolve_Menu(t *testing.T) {
	ev := runtime.NewEvaluator(nil)
	node := menuNode()

	for k, want := range []string{"sales", "support", "billing"} {
		m, ok := ev.Resolve(node, []string{"1", "2", "3"}[k], nil)
		require.True(t, ok)
		assert.Equal(t, want, m.Target)
		assert.Equal(t, runtime.ViaIndex, m.Via)
	}

	m, ok := ev.Resolve(node, "  support ", nil)
	require.True(t, ok)
	assert.Equal(t, "support", m.Target)

	m, ok = ev.Resolve(node, "BILLING", nil)
	require.True(t, ok)
	assert.Equal(t, "billing", m.Target)
	assert.Equal(t, runtime.ViaLabel, m.Via)

	for _, input := range []string{"0", "4", "hello", ""} {
		_, ok := ev.Resolve(node, input, nil)
		assert.False(t, ok, "input %q should not match", input)
	}
}

func TestEvaluator_Resolve_NumericAnswerOnQuestionUsesConditions(t *testing.T) {
	ev := runtime.NewEvaluator(nil)
	node := &domain.Node{
		ID:           "ask_age",
		Type:         domain.NodeQuestion,
		CollectInput: true,
		InputField:   "age",
		Transitions: []domain.Transition{
			{TargetNodeID: "adult", Label: "Adult", Condition: cond(domain.CondGreaterThan, "age", domain.Int(17))},
			{TargetNodeID: "minor"},
		},
	}

	tests := []struct {
		name  string
		input string
		age   int
		want  string
	}{
		{"Position of first transition", "1", 1, "minor"},
		{"Position of second transition", "2", 2, "minor"},
		{"Label is not a choice", "adult", 0, "minor"},
		{"Condition matches", "40", 40, "adult"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := domain.Context{"age": domain.Int(tt.age)}
			m, ok := ev.Resolve(node, tt.input, ctx)
			require.True(t, ok)
			assert.Equal(t, tt.want, m.Target)
			assert.Equal(t, runtime.ViaCondition, m.Via)
		})
	}
}

func TestEvaluator_Resolve_MenuFallsThroughToConditionsAndDefault(t *testing.T) {
	ev := runtime.NewEvaluator(nil)
	node := menuNode()
	node.Transitions = append(node.Transitions, domain.Transition{
		TargetNodeID: "human",
		Condition:    cond(domain.CondContains, "", domain.String("agent")),
	})

	m, ok := ev.Resolve(node, "talk to an agent", nil)
	require.True(t, ok)
	assert.Equal(t, "human", m.Target)
	assert.Equal(t, runtime.ViaCondition, m.Via)

	node.DefaultTransition = "fallback"
	m, ok = ev.Resolve(node, "99", nil)
	require.True(t, ok)
	assert.Equal(t, "fallback", m.Target)
	assert.Equal(t, runtime.ViaDefault, m.Via)
}

func TestEvaluator_Resolve_Priority(t *testing.T) {
	ev := runtime.NewEvaluator(nil)
	node := &domain.Node{
		ID:   "q",
		Type: domain.NodeQuestion,
		Transitions: []domain.Transition{
			{TargetNodeID: "low", Condition: cond(domain.CondContains, "", domain.String("a")), Priority: 1},
			{TargetNodeID: "high", Condition: cond(domain.CondContains, "", domain.String("a")), Priority: 5},
			{TargetNodeID: "tie", Condition: cond(domain.CondContains, "", domain.String("a")), Priority: 5},
		},
	}

	m, ok := ev.Resolve(node, "banana", nil)
	require.True(t, ok)
	assert.Equal(t, "high", m.Target)
}

func TestEvaluator_Resolve_UnconditionalAtItsRank(t *testing.T) {
	ev := runtime.NewEvaluator(nil)
	node := &domain.Node{
		ID:   "q",
		Type: domain.NodeQuestion,
		Transitions: []domain.Transition{
			{TargetNodeID: "any"},
			{TargetNodeID: "vip", Condition: cond(domain.CondEquals, "", domain.String("vip")), Priority: 10},
		},
	}

	m, _ := ev.Resolve(node, "vip", nil)
	assert.Equal(t, "vip", m.Target)

	m, _ = ev.Resolve(node, "other", nil)
	assert.Equal(t, "any", m.Target)
}

func TestEvaluator_ResolvePassThrough(t *testing.T) {
	ev := runtime.NewEvaluator(nil)
	ctx := domain.Context{"vip": domain.Bool(true)}

	node := &domain.Node{
		ID:   "m",
		Type: domain.NodeMessage,
		Transitions: []domain.Transition{
			{TargetNodeID: "conditional", Condition: cond(domain.CondEquals, "vip", domain.String("true")), Priority: 10},
			{TargetNodeID: "unconditional"},
		},
		DefaultTransition: "default",
	}
	m, ok := ev.ResolvePassThrough(node, ctx)
	require.True(t, ok)
	assert.Equal(t, "unconditional", m.Target)

	node.Transitions = node.Transitions[:1]
	m, _ = ev.ResolvePassThrough(node, ctx)
	assert.Equal(t, "conditional", m.Target)

	m, _ = ev.ResolvePassThrough(node, domain.Context{})
	assert.Equal(t, "default", m.Target)

	node.DefaultTransition = ""
	_, ok = ev.ResolvePassThrough(node, domain.Context{})
	assert.False(t, ok)
}

func TestCompileExpression(t *testing.T) {
	assert.NoError(t, runtime.CompileExpression(`a > 1 || b == "x"`))
	assert.Error(t, runtime.CompileExpression(`a >`))
}
