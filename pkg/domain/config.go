package domain

// DefaultMaxHistoryMessages bounds the chat history sent to the answer service.
const DefaultMaxHistoryMessages = 10

// AIConfig configures an ai_chat node.
type AIConfig struct {
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	LLMModel     string `json:"llm_model,omitempty" yaml:"llm_model,omitempty"`
	LLMProvider  string `json:"llm_provider,omitempty" yaml:"llm_provider,omitempty"`
	QueryType    string `json:"query_type,omitempty" yaml:"query_type,omitempty"`

	// IncludeChatHistory defaults to true when unset.
	IncludeChatHistory *bool `json:"include_chat_history,omitempty" yaml:"include_chat_history,omitempty"`
	MaxHistoryMessages int   `json:"max_history_messages,omitempty" yaml:"max_history_messages,omitempty"`

	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`

	// ContextVariables are prepended to the query as "key: value" lines.
	ContextVariables []string `json:"context_variables,omitempty" yaml:"context_variables,omitempty"`

	// ExitKeywords leave AI mode when any of them occurs in the input (case-insensitive).
	ExitKeywords []string `json:"exit_keywords,omitempty" yaml:"exit_keywords,omitempty"`
	ExitNodeID   string   `json:"exit_node_id,omitempty" yaml:"exit_node_id,omitempty"`
}

// HistoryEnabled reports whether recent history is sent along with the query.
func (c *AIConfig) HistoryEnabled() bool {
	return c.IncludeChatHistory == nil || *c.IncludeChatHistory
}

// HistoryLimit returns the history window size.
func (c *AIConfig) HistoryLimit() int {
	if c.MaxHistoryMessages <= 0 {
		return DefaultMaxHistoryMessages
	}
	return c.MaxHistoryMessages
}

// Mode returns the query type, "agent" by default.
func (c *AIConfig) Mode() string {
	if c.QueryType == "" {
		return "agent"
	}
	return c.QueryType
}

// MediaActionType selects what a process_media node does with the media.
type MediaActionType string

const (
	MediaService   MediaActionType = "service"
	MediaEmail     MediaActionType = "email"
	MediaAIService MediaActionType = "ai_service"
	MediaOCR       MediaActionType = "ocr"
	MediaOther     MediaActionType = "other"
)

// MediaConfig configures a process_media node.
type MediaConfig struct {
	ActionType MediaActionType `json:"action_type" yaml:"action_type"`

	// Service forwards the file as a multipart upload.
	Service *APIAction `json:"service_config,omitempty" yaml:"service_config,omitempty"`
	// Email sends the file as an attachment.
	Email *EmailConfig `json:"email_config,omitempty" yaml:"email_config,omitempty"`
	// AIService asks the answer service about the file.
	AIService *AIMediaConfig `json:"ai_service_config,omitempty" yaml:"ai_service_config,omitempty"`

	// OutputVariable receives the result description.
	OutputVariable string `json:"output_variable,omitempty" yaml:"output_variable,omitempty"`
}

// EmailConfig is an outbound email. To, Subject and Body are templates.
type EmailConfig struct {
	To         string `json:"to_email" yaml:"to_email"`
	Subject    string `json:"subject" yaml:"subject"`
	Body       string `json:"body" yaml:"body"`
	From       string `json:"from_email,omitempty" yaml:"from_email,omitempty"`
	SMTPServer string `json:"smtp_server,omitempty" yaml:"smtp_server,omitempty"`
	SMTPPort   int    `json:"smtp_port,omitempty" yaml:"smtp_port,omitempty"`
	Username   string `json:"username,omitempty" yaml:"username,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
}

// AIMediaConfig asks the answer service about an attached image. Query is a template.
type AIMediaConfig struct {
	Query              string           `json:"query" yaml:"query"`
	SystemMessage      string           `json:"system_message,omitempty" yaml:"system_message,omitempty"`
	LLMModel           string           `json:"llm_model,omitempty" yaml:"llm_model,omitempty"`
	LLMProvider        string           `json:"llm_provider,omitempty" yaml:"llm_provider,omitempty"`
	Temperature        *float64         `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	IncludeChatHistory bool             `json:"include_chat_history,omitempty" yaml:"include_chat_history,omitempty"`
	MaxHistoryMessages int              `json:"max_history_messages,omitempty" yaml:"max_history_messages,omitempty"`
	Metadata           map[string]Value `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}
