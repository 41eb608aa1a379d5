package runtime

import (
	"context"
	"time"

	"github.com/aretw0/convo/pkg/domain"
)

// emitter fans engine events out to the configured LifecycleHooks.
type emitter struct {
	hooks domain.LifecycleHooks
	now   func() time.Time
}

func (em *emitter) base(typ domain.EventType, sess *domain.Session) domain.EventBase {
	return domain.EventBase{
		Timestamp: em.now(),
		Type:      typ,
		SessionID: sess.ID,
		ConvoID:   sess.ConvoID,
	}
}

func (em *emitter) nodeEnter(ctx context.Context, sess *domain.Session, node *domain.Node) {
	if em.hooks.OnNodeEnter == nil {
		return
	}
	em.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		EventBase: em.base(domain.EventNodeEnter, sess),
		NodeID:    node.ID,
		NodeType:  node.Type,
	})
}

func (em *emitter) nodeLeave(ctx context.Context, sess *domain.Session, node *domain.Node) {
	if em.hooks.OnNodeLeave == nil {
		return
	}
	em.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
		EventBase: em.base(domain.EventNodeLeave, sess),
		NodeID:    node.ID,
		NodeType:  node.Type,
	})
}

func (em *emitter) actionCall(ctx context.Context, sess *domain.Session, nodeID, actionType string) {
	if em.hooks.OnActionCall == nil {
		return
	}
	em.hooks.OnActionCall(ctx, &domain.ActionEvent{
		EventBase:  em.base(domain.EventActionCall, sess),
		NodeID:     nodeID,
		ActionType: actionType,
	})
}

func (em *emitter) actionReturn(ctx context.Context, sess *domain.Session, nodeID, actionType, jump string, started time.Time, err error) {
	if em.hooks.OnActionReturn == nil {
		return
	}
	em.hooks.OnActionReturn(ctx, &domain.ActionEvent{
		EventBase:  em.base(domain.EventActionReturn, sess),
		NodeID:     nodeID,
		ActionType: actionType,
		Jump:       jump,
		Duration:   em.now().Sub(started),
		Err:        err,
	})
}

func (em *emitter) turnComplete(ctx context.Context, sess *domain.Session, hops int, command string) {
	if em.hooks.OnTurnComplete == nil {
		return
	}
	em.hooks.OnTurnComplete(ctx, &domain.TurnEvent{
		EventBase: em.base(domain.EventTurnComplete, sess),
		NodeID:    sess.CurrentNodeID,
		Hops:      hops,
		Command:   command,
		Completed: sess.Completed,
	})
}
