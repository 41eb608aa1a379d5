package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/ports"
	"github.com/google/uuid"
)

// User-facing messages produced by the engine itself.
const (
	MsgNoTransition   = "I'm not sure how to proceed. Please try again or type 'menu' to return to the main menu."
	msgInvalidMenu    = "⚠️ Invalid selection for %s. Please choose from the options provided.\n\nType 'menu' to return to main menu."
	msgExitHint       = "\n\n(Type '%s' to exit AI chat)"
	MsgMediaFailed    = "Failed to retrieve media file"
	msgMediaComplete  = "Media processing complete: %s"
	msgAIUnavailable  = "The AI assistant is not available right now. Please try again later."
	msgAITimeout      = "The AI assistant took too long to respond. Please try again."
	msgAIConnectivity = "I couldn't reach the AI assistant right now. Please try again later."
	msgAIService      = "The AI assistant returned an error. Please try again."
)

// Engine is the turn state machine. It is stateless between calls: the
// caller loads the definition and session, and persists the session after.
type Engine struct {
	logger    *slog.Logger
	events    *emitter
	evaluator *Evaluator
	inputs    *InputValidator
	actions   *ActionExecutor

	httpClient ports.HTTPActionClient
	email      ports.EmailSender
	ai         ports.AIAnswerer
	fetcher    ports.MediaFetcher
	media      ports.MediaHandler

	newID   func() string
	maxHops int
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.events.hooks = hooks
	}
}

// WithHTTPClient sets the collaborator used by api_call actions.
func WithHTTPClient(c ports.HTTPActionClient) Option {
	return func(e *Engine) {
		e.httpClient = c
	}
}

// WithEmailSender sets the collaborator used by send_email actions.
func WithEmailSender(s ports.EmailSender) Option {
	return func(e *Engine) {
		e.email = s
	}
}

// WithAIAnswerer sets the collaborator used by ai_chat nodes.
func WithAIAnswerer(a ports.AIAnswerer) Option {
	return func(e *Engine) {
		e.ai = a
	}
}

// WithMediaFetcher sets the collaborator that downloads media for process_media nodes.
func WithMediaFetcher(f ports.MediaFetcher) Option {
	return func(e *Engine) {
		e.fetcher = f
	}
}

// WithMediaHandler sets the collaborator that processes downloaded media.
func WithMediaHandler(h ports.MediaHandler) Option {
	return func(e *Engine) {
		e.media = h
	}
}

// WithClock overrides the time source used for history timestamps and events.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.events.now = now
	}
}

// WithIDGenerator overrides how AI session ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.newID = gen
	}
}

// WithMaxChainHops overrides the auto-chain bound (default domain.MaxChainHops).
func WithMaxChainHops(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxHops = n
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:  discardLogger(),
		events:  &emitter{now: func() time.Time { return time.Now().UTC() }},
		newID:   uuid.NewString,
		maxHops: domain.MaxChainHops,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.evaluator = NewEvaluator(e.logger)
	e.inputs = NewInputValidator(e.logger)
	e.actions = &ActionExecutor{
		http:   e.httpClient,
		email:  e.email,
		logger: e.logger,
		events: e.events,
	}
	return e
}

// Start renders the definition's start node into a fresh session, chaining
// through pass-through nodes.
func (e *Engine) Start(ctx context.Context, def *domain.Definition, sess *domain.Session) (*domain.TurnResponse, error) {
	t := e.newTurn(def, sess)
	if err := t.chain(ctx, def.StartNodeID); err != nil {
		return nil, err
	}
	t.finish(ctx)
	return t.response(), nil
}

// Turn processes one user message against the session. The session is
// mutated in place; the caller persists it afterwards.
func (e *Engine) Turn(ctx context.Context, def *domain.Definition, sess *domain.Session, input string) (*domain.TurnResponse, error) {
	t := e.newTurn(def, sess)

	handled, err := t.navigate(ctx, input)
	if err != nil {
		return nil, err
	}
	if !handled {
		node, err := t.node(sess.CurrentNodeID)
		if err != nil {
			return nil, err
		}
		sess.Record(domain.RoleUser, input, node.ID, e.events.now())

		switch node.Type {
		case domain.NodeAIChat:
			err = t.handleAI(ctx, node, input)
		case domain.NodeProcessMedia:
			err = t.handleMedia(ctx, node)
		default:
			err = t.handleInput(ctx, node, input)
		}
		if err != nil {
			return nil, err
		}
	}

	t.finish(ctx)
	return t.response(), nil
}

// turn is the working state of one Start or Turn call.
type turn struct {
	e        *Engine
	graph    *domain.Graph
	sess     *domain.Session
	log      *slog.Logger
	renderer *Renderer

	messages []string
	hops     int
	command  string
}

func (e *Engine) newTurn(def *domain.Definition, sess *domain.Session) *turn {
	if sess.Context == nil {
		sess.Context = domain.Context{}
	}
	log := e.logger.With("session_id", sess.ID, "convo_id", def.ID)
	return &turn{
		e:        e,
		graph:    domain.NewGraph(def),
		sess:     sess,
		log:      log,
		renderer: NewRenderer(log),
	}
}

func (t *turn) node(id string) (*domain.Node, error) {
	node, ok := t.graph.Node(id)
	if !ok {
		return nil, &domain.InternalError{NodeID: id, Err: domain.ErrNodeNotFound}
	}
	return node, nil
}

func (t *turn) render(tmpl string) string {
	return t.renderer.Render(tmpl, t.sess.Context)
}

// say adds a rendered message to the turn output and the transcript.
func (t *turn) say(nodeID, msg string) {
	if msg != "" {
		t.messages = append(t.messages, msg)
	}
	t.sess.Record(domain.RoleAssistant, msg, nodeID, t.e.events.now())
}

// reply replaces the accumulated output with a single message while staying put.
func (t *turn) reply(nodeID, msg string) {
	t.messages = nil
	t.say(nodeID, msg)
}

func (t *turn) finish(ctx context.Context) {
	t.sess.LastActivity = t.e.events.now()
	t.e.events.turnComplete(ctx, t.sess, t.hops, t.command)
}

// handleInput validates and stores input, runs post-input actions, then
// resolves the next node.
func (t *turn) handleInput(ctx context.Context, node *domain.Node, input string) error {
	if node.CollectInput {
		if err := t.e.inputs.Validate(input, node.Validations); err != nil {
			t.log.Debug("input rejected", "node_id", node.ID, "error", err)
			t.reply(node.ID, err.Error())
			return nil
		}
		if node.InputField != "" {
			t.sess.Context[node.InputField] = domain.String(input)
		}
		if jump := t.e.actions.Execute(ctx, t.sess, node, t.renderer); jump != "" {
			return t.leaveTo(ctx, node, jump)
		}
	}

	m, ok := t.e.evaluator.Resolve(node, input, t.sess.Context)
	if ok {
		return t.leaveTo(ctx, node, m.Target)
	}

	switch {
	case node.Type == domain.NodeMenu && len(node.Transitions) > 0:
		t.reply(node.ID, fmt.Sprintf(msgInvalidMenu, node.DisplayName()))
	case len(node.Transitions) > 0 || node.DefaultTransition != "":
		t.reply(node.ID, MsgNoTransition)
	default:
		t.reply(node.ID, t.render(node.Message))
	}
	return nil
}

func (t *turn) leaveTo(ctx context.Context, from *domain.Node, target string) error {
	t.e.events.nodeLeave(ctx, t.sess, from)
	return t.chain(ctx, target)
}

// chain walks from target through pass-through nodes, rendering each one,
// until a node needs input, an end node is reached, or the hop bound trips.
func (t *turn) chain(ctx context.Context, target string) error {
	next := target
	var prev *domain.Node
	for next != "" {
		if t.hops >= t.e.maxHops {
			t.log.Error("infinite loop detected in node chaining", "node_id", next, "error", domain.ErrChainLimit)
			return nil
		}
		t.hops++

		node, err := t.node(next)
		if err != nil {
			return err
		}
		if prev != nil {
			t.e.events.nodeLeave(ctx, t.sess, prev)
		}
		t.sess.CurrentNodeID = node.ID
		t.e.events.nodeEnter(ctx, t.sess, node)

		var jump string
		if !node.CollectInput {
			jump = t.e.actions.Execute(ctx, t.sess, node, t.renderer)
		}
		t.say(node.ID, t.render(node.Message))

		if node.Type == domain.NodeEnd {
			t.sess.Completed = true
			return nil
		}

		prev, next = node, ""
		if jump != "" {
			next = jump
			continue
		}
		if node.Type.PassThrough() && !node.CollectInput {
			if m, ok := t.e.evaluator.ResolvePassThrough(node, t.sess.Context); ok {
				next = m.Target
			}
		}
	}
	return nil
}

// response assembles the transport-agnostic result for the settled node.
func (t *turn) response() *domain.TurnResponse {
	resp := &domain.TurnResponse{
		SessionID: t.sess.ID,
		ConvoID:   t.sess.ConvoID,
		Message:   strings.Join(t.messages, "\n\n"),
		NodeID:    t.sess.CurrentNodeID,
		Options:   []domain.Option{},
		Completed: t.sess.Completed,
		Context:   t.sess.Context.Clone(),
	}
	node, ok := t.graph.Node(t.sess.CurrentNodeID)
	if !ok {
		return resp
	}
	resp.NodeType = node.Type
	resp.ExpectsInput = expectsInput(node) && !t.sess.Completed

	switch {
	case node.CollectInput:
		resp.InputType = node.InputType
		if resp.InputType == "" {
			resp.InputType = "text"
		}
		resp.InputField = node.InputField
	case node.Type == domain.NodeAIChat:
		resp.InputType = "text"
	case node.Type == domain.NodeProcessMedia:
		resp.InputType = "media"
	}

	if node.Type == domain.NodeMenu {
		for i, tr := range node.Transitions {
			label := tr.Label
			if label == "" {
				label = fmt.Sprintf("Option %d", i+1)
			}
			resp.Options = append(resp.Options, domain.Option{
				Value:        fmt.Sprint(i + 1),
				Label:        t.render(label),
				TargetNodeID: tr.TargetNodeID,
			})
		}
	}
	if len(node.Metadata) > 0 {
		resp.Metadata = make(map[string]domain.Value, len(node.Metadata))
		for k, v := range node.Metadata {
			resp.Metadata[k] = v.Clone()
		}
	}
	return resp
}

func expectsInput(node *domain.Node) bool {
	if node.Type == domain.NodeEnd {
		return false
	}
	if node.CollectInput {
		return true
	}
	switch node.Type {
	case domain.NodeMenu, domain.NodeQuestion, domain.NodeAIChat, domain.NodeProcessMedia:
		return true
	}
	return false
}
