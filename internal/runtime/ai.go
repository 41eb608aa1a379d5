package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/ports"
)

// handleAI delegates the message to the answer service, or leaves AI mode
// when the input contains an exit keyword.
func (t *turn) handleAI(ctx context.Context, node *domain.Node, input string) error {
	cfg := node.AIConfig
	if cfg == nil {
		return &domain.InternalError{NodeID: node.ID, Err: errors.New("ai_chat node without ai_config")}
	}

	if exit := exitTarget(node, input); exit != "" {
		t.log.Info("exiting AI chat", "node_id", node.ID, "to", exit)
		return t.leaveTo(ctx, node, exit)
	}

	hint := ""
	if len(cfg.ExitKeywords) > 0 {
		hint = fmt.Sprintf(msgExitHint, cfg.ExitKeywords[0])
	}

	if t.e.ai == nil {
		t.log.Warn("ai_chat node visited without an AI answerer", "node_id", node.ID)
		t.reply(node.ID, msgAIUnavailable+hint)
		return nil
	}

	aiSession := t.sess.Context.Text(domain.KeyAISessionID)
	if aiSession == "" {
		aiSession = t.e.newID()
		t.sess.Context[domain.KeyAISessionID] = domain.String(aiSession)
	}

	var history []domain.HistoryEntry
	if cfg.HistoryEnabled() {
		// The current message was already recorded; exclude it.
		history = nodeHistory(t.sess.History[:len(t.sess.History)-1], node.ID, cfg.HistoryLimit())
	}

	query := ports.AIQuery{
		SessionID:    aiSession,
		Query:        aiQueryText(cfg, input, t.sess.Context),
		History:      history,
		SystemPrompt: t.render(cfg.SystemPrompt),
		Model:        cfg.LLMModel,
		Provider:     cfg.LLMProvider,
		QueryType:    cfg.Mode(),
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	}

	started := t.e.events.now()
	t.e.events.actionCall(ctx, t.sess, node.ID, "ai_chat")
	answer, err := t.e.ai.Answer(ctx, query)
	t.e.events.actionReturn(ctx, t.sess, node.ID, "ai_chat", "", started, err)

	if err != nil {
		t.log.Error("ai answer failed", "node_id", node.ID, "error", err)
		t.reply(node.ID, degradedAIMessage(err)+hint)
		return nil
	}
	t.reply(node.ID, answer+hint)
	return nil
}

// exitTarget returns where an exit keyword in input leads, or "".
func exitTarget(node *domain.Node, input string) string {
	cfg := node.AIConfig
	lowered := strings.ToLower(strings.TrimSpace(input))
	if lowered == "" {
		return ""
	}
	for _, kw := range cfg.ExitKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || !strings.Contains(lowered, kw) {
			continue
		}
		if cfg.ExitNodeID != "" {
			return cfg.ExitNodeID
		}
		return node.DefaultTransition
	}
	return ""
}

// aiQueryText prefixes the user input with the configured context variables.
func aiQueryText(cfg *domain.AIConfig, input string, ctx domain.Context) string {
	var lines []string
	for _, name := range cfg.ContextVariables {
		if v, ok := ctx[name]; ok {
			lines = append(lines, name+": "+v.Text())
		}
	}
	if len(lines) == 0 {
		return input
	}
	return "Context:\n" + strings.Join(lines, "\n") + "\n\nUser: " + input
}

// nodeHistory returns the last limit transcript entries exchanged on nodeID.
func nodeHistory(entries []domain.HistoryEntry, nodeID string, limit int) []domain.HistoryEntry {
	var out []domain.HistoryEntry
	for _, entry := range entries {
		if entry.NodeID == nodeID && entry.Content != "" {
			out = append(out, entry)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func degradedAIMessage(err error) string {
	var cerr *domain.CollaboratorError
	if errors.As(err, &cerr) {
		switch cerr.Kind {
		case domain.KindTimeout:
			return msgAITimeout
		case domain.KindConnectivity, domain.KindTransport:
			return msgAIConnectivity
		}
	}
	return msgAIService
}
