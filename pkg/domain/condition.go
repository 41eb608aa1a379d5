package domain

import "strings"

// ConditionKind selects the variant of a TransitionCondition.
type ConditionKind string

const (
	CondEquals      ConditionKind = "equals"
	CondContains    ConditionKind = "contains"
	CondRegex       ConditionKind = "regex"
	CondGreaterThan ConditionKind = "greater_than"
	CondLessThan    ConditionKind = "less_than"
	CondInList      ConditionKind = "in_list"
	CondAlways      ConditionKind = "always"
	CondCustom      ConditionKind = "custom"
)

// AlternativeSeparator joins OR-alternatives inside an equals/contains value.
const AlternativeSeparator = "|"

// Valid reports whether k is a known condition kind.
func (k ConditionKind) Valid() bool {
	switch k {
	case CondEquals, CondContains, CondRegex, CondGreaterThan, CondLessThan, CondInList, CondAlways, CondCustom:
		return true
	}
	return false
}

// Condition guards a transition. Field names a context path; when empty the
// raw user input is tested. For custom conditions the expression lives in
// Operator, or in Value when Operator is empty.
type Condition struct {
	Kind     ConditionKind `json:"type" yaml:"type"`
	Field    string        `json:"field,omitempty" yaml:"field,omitempty"`
	Value    Value         `json:"value,omitzero" yaml:"value,omitempty"`
	Operator string        `json:"operator,omitempty" yaml:"operator,omitempty"`
}

// Alternatives returns the candidate strings encoded in Value: list elements,
// or a string split on AlternativeSeparator.
func (c *Condition) Alternatives() []string {
	if c.Value.IsList() {
		items := c.Value.Items()
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, item.Text())
		}
		return out
	}
	if c.Value.IsNull() {
		return nil
	}
	parts := strings.Split(c.Value.Text(), AlternativeSeparator)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Expression returns the source of a custom condition.
func (c *Condition) Expression() string {
	if c.Operator != "" {
		return c.Operator
	}
	return c.Value.Text()
}
