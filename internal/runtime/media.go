package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/ports"
)

// handleMedia fetches the media referenced by media_url, hands it to the
// media handler and then continues like a pass-through node.
func (t *turn) handleMedia(ctx context.Context, node *domain.Node) error {
	cfg := node.MediaConfig
	if cfg == nil {
		return &domain.InternalError{NodeID: node.ID, Err: errors.New("process_media node without process_media_config")}
	}

	ref := t.sess.Context.Text(domain.KeyMediaURL)
	if ref == "" {
		t.log.Warn("process_media node without media_url", "node_id", node.ID)
		t.reply(node.ID, t.render(node.Message))
		return nil
	}

	result := t.processMedia(ctx, node, ref)
	if cfg.OutputVariable != "" {
		t.sess.Context[cfg.OutputVariable] = domain.String(result)
	}
	t.sess.Context[domain.KeyProcessedMediaResult] = domain.String(result)

	if m, ok := t.e.evaluator.ResolvePassThrough(node, t.sess.Context); ok {
		return t.leaveTo(ctx, node, m.Target)
	}
	msg := node.Message
	if msg == "" {
		msg = fmt.Sprintf(msgMediaComplete, result)
	}
	t.reply(node.ID, t.render(msg))
	return nil
}

// processMedia returns the result description stored in context.
func (t *turn) processMedia(ctx context.Context, node *domain.Node, ref string) string {
	if t.e.fetcher == nil || t.e.media == nil {
		t.log.Error("process_media node visited without media collaborators", "node_id", node.ID)
		return MsgMediaFailed
	}

	started := t.e.events.now()
	t.e.events.actionCall(ctx, t.sess, node.ID, "process_media")

	handle, err := t.e.fetcher.Fetch(ctx, ref)
	if err != nil {
		t.log.Error("failed to download media file", "node_id", node.ID, "ref", ref, "error", err)
		t.e.events.actionReturn(ctx, t.sess, node.ID, "process_media", "", started, err)
		return MsgMediaFailed
	}
	t.sess.Context[domain.KeyMediaLocalPath] = domain.String(handle.Path)
	defer func() {
		if err := t.e.fetcher.Release(ctx, handle); err != nil {
			t.log.Warn("failed to release media file", "path", handle.Path, "error", err)
		}
		delete(t.sess.Context, domain.KeyMediaLocalPath)
	}()

	res, err := t.e.media.Handle(ctx, ports.MediaJob{
		SessionID: t.sess.ID,
		Ref:       ref,
		Handle:    handle,
		Config:    t.renderMediaConfig(node.MediaConfig),
		Context:   t.sess.Context.Clone(),
		History:   t.sess.History,
	})
	t.e.events.actionReturn(ctx, t.sess, node.ID, "process_media", "", started, err)
	if err != nil {
		t.log.Error("error processing media", "node_id", node.ID, "error", err)
		return "Error: " + err.Error()
	}
	t.sess.Context.Merge(res.Outputs)
	return res.Summary
}

// renderMediaConfig expands the templated fields of a media destination.
func (t *turn) renderMediaConfig(cfg *domain.MediaConfig) domain.MediaConfig {
	out := *cfg
	if cfg.Service != nil {
		svc := *cfg.Service
		svc.URL = t.render(svc.URL)
		out.Service = &svc
	}
	if cfg.Email != nil {
		email := *cfg.Email
		email.To = t.render(email.To)
		email.Subject = t.render(email.Subject)
		email.Body = t.render(email.Body)
		out.Email = &email
	}
	if cfg.AIService != nil {
		ai := *cfg.AIService
		ai.Query = t.render(ai.Query)
		out.AIService = &ai
	}
	return out
}
