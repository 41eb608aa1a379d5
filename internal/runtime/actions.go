package runtime

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/ports"
	"github.com/mitchellh/mapstructure"
)

var (
	errNoHTTPClient  = errors.New("no HTTP action client configured")
	errNoEmailSender = errors.New("no email sender configured")
	errNoAPIAction   = errors.New("api_call action without api_action")
)

// ActionExecutor runs node side effects.
type ActionExecutor struct {
	http   ports.HTTPActionClient
	email  ports.EmailSender
	logger *slog.Logger
	events *emitter
}

// Execute runs the node's actions in order against the session context. It
// returns the first jump target an action yields; the remaining actions are
// skipped. Collaborator failures are recorded under api_error and never
// returned.
func (x *ActionExecutor) Execute(ctx context.Context, sess *domain.Session, node *domain.Node, r *Renderer) string {
	for i := range node.Actions {
		action := &node.Actions[i]
		started := x.events.now()
		x.events.actionCall(ctx, sess, node.ID, string(action.Type))

		jump, err := x.run(ctx, sess, node, action, r)

		x.events.actionReturn(ctx, sess, node.ID, string(action.Type), jump, started, err)
		if jump != "" {
			return jump
		}
	}
	return ""
}

func (x *ActionExecutor) run(ctx context.Context, sess *domain.Session, node *domain.Node, action *domain.Action, r *Renderer) (string, error) {
	var err error
	switch action.Type {
	case domain.ActionSaveToContext:
		for k, v := range action.Params {
			sess.Context[k] = v.Clone()
		}
		return "", nil
	case domain.ActionAPICall:
		err = x.callAPI(ctx, sess, node, action, r)
	case domain.ActionSendEmail:
		err = x.sendEmail(ctx, sess, action, r)
	default:
		x.logger.Warn("unknown action type", "node_id", node.ID, "type", action.Type)
		return "", nil
	}

	if err != nil {
		x.logger.Error("action failed", "node_id", node.ID, "type", action.Type, "error", err)
		sess.Context[domain.KeyAPIError] = domain.String(err.Error())
		return action.OnFailure, err
	}
	return action.OnSuccess, nil
}

func (x *ActionExecutor) callAPI(ctx context.Context, sess *domain.Session, node *domain.Node, action *domain.Action, r *Renderer) error {
	api := action.API
	if api == nil {
		return errNoAPIAction
	}
	if x.http == nil {
		return domain.NewCollaboratorError("api_call", domain.KindTransport, errNoHTTPClient)
	}

	body := make(map[string]domain.Value, len(api.Input))
	for _, name := range api.Input {
		v, ok := sess.Context[name]
		if !ok {
			x.logger.Warn("input variable not found in session context", "node_id", node.ID, "variable", name)
			continue
		}
		body[name] = v
	}
	headers := make(map[string]string, len(api.Headers)+1)
	for k, v := range api.Headers {
		headers[k] = r.Render(v, sess.Context)
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "application/json"
	}

	resp, err := x.http.Do(ctx, ports.HTTPRequest{
		Method:  api.HTTPMethod(),
		URL:     r.Render(api.URL, sess.Context),
		Headers: headers,
		Body:    body,
		Timeout: api.TimeoutDuration(),
	})
	if err != nil {
		return err
	}

	delete(sess.Context, domain.KeyAPIError)
	for _, name := range api.Output {
		v, ok := resp.Body.Find(name)
		if !ok {
			x.logger.Warn("output variable not found in response", "node_id", node.ID, "variable", name)
			continue
		}
		sess.Context[name] = v.Clone()
	}
	return nil
}

func (x *ActionExecutor) sendEmail(ctx context.Context, sess *domain.Session, action *domain.Action, r *Renderer) error {
	var params domain.EmailParams
	raw := make(map[string]any, len(action.Params))
	for k, v := range action.Params {
		raw[k] = v.Any()
	}
	if err := mapstructure.WeakDecode(raw, &params); err != nil {
		return err
	}
	if x.email == nil {
		return domain.NewCollaboratorError("send_email", domain.KindService, errNoEmailSender)
	}
	return x.email.Send(ctx, ports.Email{
		From:    r.Render(params.From, sess.Context),
		To:      r.Render(params.To, sess.Context),
		Subject: r.Render(params.Subject, sess.Context),
		Body:    r.Render(params.Body, sess.Context),
	})
}
