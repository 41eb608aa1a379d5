package domain

// RuleType names an input validation rule.
type RuleType string

const (
	RuleRequired     RuleType = "required"
	RuleMinLength    RuleType = "min_length"
	RuleMaxLength    RuleType = "max_length"
	RuleLength       RuleType = "length"
	RuleEmail        RuleType = "email"
	RulePhone        RuleType = "phone"
	RuleNumber       RuleType = "number"
	RuleInteger      RuleType = "integer"
	RuleRegex        RuleType = "regex"
	RuleRange        RuleType = "range"
	RuleURL          RuleType = "url"
	RuleDate         RuleType = "date"
	RuleAlphanumeric RuleType = "alphanumeric"
	RuleAlpha        RuleType = "alpha"
	RuleInList       RuleType = "in_list"
	RuleNotInList    RuleType = "not_in_list"
)

// ValidationRule accepts or rejects raw user input.
type ValidationRule struct {
	Type         RuleType         `json:"type" yaml:"type"`
	Params       map[string]Value `json:"params,omitempty" yaml:"params,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}
