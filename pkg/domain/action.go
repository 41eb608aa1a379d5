package domain

import (
	"strings"
	"time"
)

// ActionType names a node side effect.
type ActionType string

const (
	ActionSaveToContext ActionType = "save_to_context"
	ActionAPICall       ActionType = "api_call"
	ActionSendEmail     ActionType = "send_email"
)

// DefaultAPITimeout applies when an APIAction sets no timeout.
const DefaultAPITimeout = 30 * time.Second

// Action is a side effect executed when a node is visited.
type Action struct {
	Type      ActionType       `json:"type" yaml:"type"`
	Params    map[string]Value `json:"params,omitempty" yaml:"params,omitempty"`
	API       *APIAction       `json:"api_action,omitempty" yaml:"api_action,omitempty"`
	OnSuccess string           `json:"on_success,omitempty" yaml:"on_success,omitempty"`
	OnFailure string           `json:"on_failure,omitempty" yaml:"on_failure,omitempty"`
}

// APIAction describes an outbound HTTP call. Input names context variables
// sent as the body (or query for GET); Output names keys searched for in the
// response and copied into context.
type APIAction struct {
	URL     string            `json:"url" yaml:"url"`
	Method  string            `json:"method,omitempty" yaml:"method,omitempty"`
	Input   []string          `json:"input,omitempty" yaml:"input,omitempty"`
	Output  []string          `json:"output,omitempty" yaml:"output,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	// Timeout in seconds.
	Timeout int `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// HTTPMethod returns the upper-cased method, POST by default.
func (a *APIAction) HTTPMethod() string {
	if a.Method == "" {
		return "POST"
	}
	return strings.ToUpper(a.Method)
}

// TimeoutDuration returns the per-call timeout.
func (a *APIAction) TimeoutDuration() time.Duration {
	if a.Timeout <= 0 {
		return DefaultAPITimeout
	}
	return time.Duration(a.Timeout) * time.Second
}

// EmailParams are the params of a send_email action. Fields are templates.
type EmailParams struct {
	To      string `mapstructure:"to"`
	Subject string `mapstructure:"subject"`
	Body    string `mapstructure:"body"`
	From    string `mapstructure:"from"`
}
