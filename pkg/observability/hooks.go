package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/convo/pkg/domain"
)

// LoggingHooks logs every lifecycle event at debug level, and failed actions
// at warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter", "session_id", e.SessionID, "node_id", e.NodeID, "type", e.NodeType)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_leave", "session_id", e.SessionID, "node_id", e.NodeID)
		},
		OnActionCall: func(ctx context.Context, e *domain.ActionEvent) {
			logger.DebugContext(ctx, "action_call", "session_id", e.SessionID, "node_id", e.NodeID, "action", e.ActionType)
		},
		OnActionReturn: func(ctx context.Context, e *domain.ActionEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "action_return", "session_id", e.SessionID, "node_id", e.NodeID,
					"action", e.ActionType, "duration", e.Duration, "error", e.Err)
				return
			}
			logger.DebugContext(ctx, "action_return", "session_id", e.SessionID, "node_id", e.NodeID,
				"action", e.ActionType, "duration", e.Duration, "jump", e.Jump)
		},
		OnTurnComplete: func(ctx context.Context, e *domain.TurnEvent) {
			logger.DebugContext(ctx, "turn_complete", "session_id", e.SessionID, "node_id", e.NodeID,
				"hops", e.Hops, "command", e.Command, "completed", e.Completed)
		},
	}
}

// Combine fans every event out to each set of hooks in order.
func Combine(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range hooks {
		out.OnNodeEnter = chain(out.OnNodeEnter, h.OnNodeEnter)
		out.OnNodeLeave = chain(out.OnNodeLeave, h.OnNodeLeave)
		out.OnActionCall = chain(out.OnActionCall, h.OnActionCall)
		out.OnActionReturn = chain(out.OnActionReturn, h.OnActionReturn)
		out.OnTurnComplete = chain(out.OnTurnComplete, h.OnTurnComplete)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
