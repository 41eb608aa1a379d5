package runtime_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/convo/internal/runtime"
	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(opts ...runtime.Option) *runtime.Engine {
	opts = append([]runtime.Option{
		runtime.WithClock(func() time.Time { return fixedNow }),
		runtime.WithIDGenerator(func() string { return "ai-1" }),
	}, opts...)
	return runtime.New(opts...)
}

func supportConvo() *domain.Definition {
	return &domain.Definition{
		ID:          "support",
		Name:        "Support",
		StartNodeID: "welcome",
		Nodes: []domain.Node{
			{
				ID: "welcome", Type: domain.NodeStart, Message: "Welcome {{name}}!",
				Transitions: []domain.Transition{{TargetNodeID: "main"}},
			},
			{
				ID: "main", Name: "Main Menu", Type: domain.NodeMenu, Message: "How can we help?",
				Transitions: []domain.Transition{
					{TargetNodeID: "ask_email", Label: "Newsletter"},
					{TargetNodeID: "bye", Label: "Quit"},
				},
			},
			{
				ID: "ask_email", Type: domain.NodeQuestion, Message: "What's your email?",
				CollectInput: true, InputField: "email", InputType: "email",
				Validations: []domain.ValidationRule{{Type: domain.RuleEmail}},
				Transitions: []domain.Transition{{TargetNodeID: "thanks"}},
			},
			{
				ID: "thanks", Type: domain.NodeMessage, Message: "Subscribed {{email}}.",
				Transitions: []domain.Transition{{TargetNodeID: "bye"}},
			},
			{ID: "bye", Type: domain.NodeEnd, Message: "Goodbye!"},
		},
	}
}

func TestEngine_StartChainsIntoMenu(t *testing.T) {
	def := supportConvo()
	sess := newSession(def)
	sess.Context["name"] = domain.String("Ada")

	resp, err := newEngine().Start(context.Background(), def, sess)
	require.NoError(t, err)

	assert.Equal(t, "Welcome Ada!\n\nHow can we help?", resp.Message)
	assert.Equal(t, "main", resp.NodeID)
	assert.Equal(t, domain.NodeMenu, resp.NodeType)
	assert.True(t, resp.ExpectsInput)
	assert.False(t, resp.Completed)
	require.Len(t, resp.Options, 2)
	assert.Equal(t, domain.Option{Value: "1", Label: "Newsletter", TargetNodeID: "ask_email"}, resp.Options[0])
	assert.Equal(t, "main", sess.CurrentNodeID)
	require.Len(t, sess.History, 2)
	assert.Equal(t, domain.RoleAssistant, sess.History[0].Role)
	assert.Equal(t, "welcome", sess.History[0].NodeID)
}

func TestEngine_ThreeMessageChain(t *testing.T) {
	def := &domain.Definition{
		ID: "chain", StartNodeID: "a",
		Nodes: []domain.Node{
			{ID: "a", Type: domain.NodeMessage, Message: "A", Transitions: []domain.Transition{{TargetNodeID: "b"}}},
			{ID: "b", Type: domain.NodeMessage, Message: "B", Transitions: []domain.Transition{{TargetNodeID: "c"}}},
			{ID: "c", Type: domain.NodeQuestion, Message: "C", Transitions: []domain.Transition{{TargetNodeID: "a"}}},
		},
	}

	resp, err := newEngine().Start(context.Background(), def, newSession(def))
	require.NoError(t, err)
	assert.Equal(t, "A\n\nB\n\nC", resp.Message)
	assert.Equal(t, "c", resp.NodeID)
}

func TestEngine_StartOnEndNode(t *testing.T) {
	def := &domain.Definition{
		ID: "short", StartNodeID: "done",
		Nodes: []domain.Node{{ID: "done", Type: domain.NodeEnd, Message: "Nothing to do."}},
	}
	sess := newSession(def)

	resp, err := newEngine().Start(context.Background(), def, sess)
	require.NoError(t, err)
	assert.True(t, resp.Completed)
	assert.False(t, resp.ExpectsInput)
	assert.True(t, sess.Completed)
}

func TestEngine_MenuSelection(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantNode string
		wantMsg  string
	}{
		{"By index", "1", "ask_email", "What's your email?"},
		{"By label", "newsletter", "ask_email", "What's your email?"},
		{"Into end", "2", "bye", "Goodbye!"},
		{"Out of range", "3", "main", "⚠️ Invalid selection for Main Menu. Please choose from the options provided.\n\nType 'menu' to return to main menu."},
		{"Zero", "0", "main", "⚠️ Invalid selection for Main Menu. Please choose from the options provided.\n\nType 'menu' to return to main menu."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := supportConvo()
			sess := newSession(def)
			eng := newEngine()
			_, err := eng.Start(context.Background(), def, sess)
			require.NoError(t, err)

			resp, err := eng.Turn(context.Background(), def, sess, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNode, resp.NodeID)
			assert.Equal(t, tt.wantMsg, resp.Message)
			assert.Equal(t, tt.wantNode, sess.CurrentNodeID)
		})
	}
}

func TestEngine_CollectInput(t *testing.T) {
	def := supportConvo()
	sess := newSession(def)
	eng := newEngine()
	ctx := context.Background()

	_, err := eng.Start(ctx, def, sess)
	require.NoError(t, err)
	resp, err := eng.Turn(ctx, def, sess, "1")
	require.NoError(t, err)
	assert.Equal(t, "email", resp.InputField)
	assert.Equal(t, "email", resp.InputType)
	assert.True(t, resp.ExpectsInput)

	t.Run("Invalid input stays put", func(t *testing.T) {
		resp, err := eng.Turn(ctx, def, sess, "not-an-email")
		require.NoError(t, err)
		assert.Equal(t, "Please enter a valid email address.", resp.Message)
		assert.Equal(t, "ask_email", resp.NodeID)
		_, stored := sess.Context["email"]
		assert.False(t, stored)
	})

	t.Run("Valid input is stored and chained", func(t *testing.T) {
		resp, err := eng.Turn(ctx, def, sess, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, "Subscribed ada@example.com.\n\nGoodbye!", resp.Message)
		assert.Equal(t, "bye", resp.NodeID)
		assert.True(t, resp.Completed)
		assert.Equal(t, "ada@example.com", resp.Context.Text("email"))
	})
}

func TestEngine_NoMatchingTransition(t *testing.T) {
	def := &domain.Definition{
		ID: "q", StartNodeID: "ask",
		Nodes: []domain.Node{
			{
				ID: "ask", Type: domain.NodeQuestion, Message: "Yes or no?",
				Transitions: []domain.Transition{
					{TargetNodeID: "yes", Condition: &domain.Condition{Kind: domain.CondEquals, Value: domain.String("yes")}},
				},
			},
			{ID: "yes", Type: domain.NodeEnd, Message: "Great"},
			{ID: "lonely", Type: domain.NodeQuestion, Message: "Anything?"},
		},
	}
	eng := newEngine()
	sess := newSession(def)
	_, err := eng.Start(context.Background(), def, sess)
	require.NoError(t, err)

	resp, err := eng.Turn(context.Background(), def, sess, "maybe")
	require.NoError(t, err)
	assert.Equal(t, runtime.MsgNoTransition, resp.Message)
	assert.Equal(t, "ask", resp.NodeID)

	sess.CurrentNodeID = "lonely"
	resp, err = eng.Turn(context.Background(), def, sess, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Anything?", resp.Message)
	assert.Equal(t, "lonely", resp.NodeID)
}

func TestEngine_ChainLimit(t *testing.T) {
	def := &domain.Definition{
		ID: "loop", StartNodeID: "a",
		Nodes: []domain.Node{
			{ID: "a", Type: domain.NodeMessage, Message: "a", Transitions: []domain.Transition{{TargetNodeID: "b"}}},
			{ID: "b", Type: domain.NodeMessage, Message: "b", Transitions: []domain.Transition{{TargetNodeID: "a"}}},
		},
	}
	var hops int
	eng := newEngine(runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnTurnComplete: func(_ context.Context, e *domain.TurnEvent) { hops = e.Hops },
	}))

	resp, err := eng.Start(context.Background(), def, newSession(def))
	require.NoError(t, err)
	assert.Equal(t, domain.MaxChainHops, hops)
	assert.Equal(t, domain.MaxChainHops, strings.Count(resp.Message, "\n\n")+1)
	assert.Equal(t, "b", resp.NodeID)
}

func TestEngine_MissingNodeIsInternalError(t *testing.T) {
	def := supportConvo()
	sess := newSession(def)
	sess.CurrentNodeID = "ghost"

	_, err := newEngine().Turn(context.Background(), def, sess, "hi")
	var ierr *domain.InternalError
	require.ErrorAs(t, err, &ierr)
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	assert.Equal(t, "ghost", ierr.NodeID)
}

func apiConvo() *domain.Definition {
	return &domain.Definition{
		ID: "api", StartNodeID: "ask",
		Nodes: []domain.Node{
			{
				ID: "ask", Type: domain.NodeQuestion, Message: "Order number?",
				CollectInput: true, InputField: "order_id",
				Actions: []domain.Action{
					{Type: domain.ActionSaveToContext, Params: map[string]domain.Value{"source": domain.String("bot")}},
					{
						Type: domain.ActionAPICall,
						API: &domain.APIAction{
							URL:    "https://orders.example.com/{{order_id}}",
							Method: "get",
							Input:  []string{"order_id", "missing"},
							Output: []string{"status", "eta"},
						},
						OnSuccess: "status",
						OnFailure: "node_err",
					},
					{Type: domain.ActionSaveToContext, Params: map[string]domain.Value{"never": domain.Bool(true)}},
				},
				Transitions: []domain.Transition{{TargetNodeID: "ask"}},
			},
			{ID: "status", Type: domain.NodeMessage, Message: "Order is {{status}}, ETA {{eta}}.", Transitions: []domain.Transition{{TargetNodeID: "ask"}}},
			{ID: "node_err", Type: domain.NodeQuestion, Message: "Lookup failed."},
		},
	}
}

func TestEngine_APICallSuccess(t *testing.T) {
	def := apiConvo()
	client := &fakeHTTP{resp: &ports.HTTPResponse{StatusCode: 200, Body: domain.Map(map[string]domain.Value{
		"data": domain.Map(map[string]domain.Value{
			"status": domain.String("shipped"),
			"items":  domain.List(domain.Map(map[string]domain.Value{"eta": domain.String("tomorrow")})),
		}),
	})}}
	eng := newEngine(runtime.WithHTTPClient(client))
	sess := newSession(def)
	sess.Context[domain.KeyAPIError] = domain.String("stale")
	_, err := eng.Start(context.Background(), def, sess)
	require.NoError(t, err)

	resp, err := eng.Turn(context.Background(), def, sess, "A-17")
	require.NoError(t, err)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "https://orders.example.com/A-17", req.URL)
	assert.Equal(t, "application/json", req.Headers["Content-Type"])
	assert.Equal(t, map[string]domain.Value{"order_id": domain.String("A-17")}, req.Body)
	assert.Equal(t, domain.DefaultAPITimeout, req.Timeout)

	assert.Contains(t, resp.Message, "Order is shipped, ETA tomorrow.")
	assert.Equal(t, "bot", sess.Context.Text("source"))
	_, ran := sess.Context["never"]
	assert.False(t, ran, "actions after a jump must not run")
	_, stale := sess.Context[domain.KeyAPIError]
	assert.False(t, stale)
}

func TestEngine_APICallFailureRoutesToOnFailure(t *testing.T) {
	def := apiConvo()
	client := &fakeHTTP{err: &domain.CollaboratorError{
		Op: "api_call", Kind: domain.KindStatus, StatusCode: 503, Err: errors.New("service unavailable"),
	}}
	eng := newEngine(runtime.WithHTTPClient(client))
	sess := newSession(def)
	_, err := eng.Start(context.Background(), def, sess)
	require.NoError(t, err)

	resp, err := eng.Turn(context.Background(), def, sess, "A-17")
	require.NoError(t, err)
	assert.Equal(t, "node_err", resp.NodeID)
	assert.Equal(t, "Lookup failed.", resp.Message)
	assert.NotEmpty(t, resp.Context.Text(domain.KeyAPIError))
}

func TestEngine_EntryActionJump(t *testing.T) {
	def := &domain.Definition{
		ID: "entry", StartNodeID: "check",
		Nodes: []domain.Node{
			{
				ID: "check", Type: domain.NodeAction, Message: "Checking...",
				Actions: []domain.Action{{
					Type:      domain.ActionSendEmail,
					Params:    map[string]domain.Value{"to": domain.String("{{email}}"), "subject": domain.String("Hi"), "body": domain.String("Hello {{name}}")},
					OnSuccess: "sent",
				}},
			},
			{ID: "sent", Type: domain.NodeEnd, Message: "Mail sent."},
		},
	}
	mailer := &fakeEmail{}
	sess := newSession(def)
	sess.Context["email"] = domain.String("ada@example.com")
	sess.Context["name"] = domain.String("Ada")

	resp, err := newEngine(runtime.WithEmailSender(mailer)).Start(context.Background(), def, sess)
	require.NoError(t, err)
	assert.Equal(t, "Checking...\n\nMail sent.", resp.Message)
	assert.True(t, resp.Completed)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "ada@example.com", mailer.sent[0].To)
	assert.Equal(t, "Hello Ada", mailer.sent[0].Body)
}

func TestEngine_Hooks(t *testing.T) {
	def := supportConvo()
	var entered, left []string
	var turns int
	eng := newEngine(runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnNodeEnter:    func(_ context.Context, e *domain.NodeEvent) { entered = append(entered, e.NodeID) },
		OnNodeLeave:    func(_ context.Context, e *domain.NodeEvent) { left = append(left, e.NodeID) },
		OnTurnComplete: func(_ context.Context, e *domain.TurnEvent) { turns++ },
	}))
	sess := newSession(def)

	_, err := eng.Start(context.Background(), def, sess)
	require.NoError(t, err)
	_, err = eng.Turn(context.Background(), def, sess, "2")
	require.NoError(t, err)

	assert.Equal(t, []string{"welcome", "main", "bye"}, entered)
	assert.Equal(t, []string{"welcome", "main"}, left)
	assert.Equal(t, 2, turns)
}

func TestEngine_QuestionRoutesNumericAnswerByCondition(t *testing.T) {
	def := &domain.Definition{
		ID: "age", StartNodeID: "ask_age",
		Nodes: []domain.Node{
			{
				ID: "ask_age", Type: domain.NodeQuestion, Message: "How old are you?",
				CollectInput: true, InputField: "age",
				Validations: []domain.ValidationRule{{Type: domain.RuleInteger}},
				Transitions: []domain.Transition{
					{TargetNodeID: "adult", Condition: &domain.Condition{Kind: domain.CondGreaterThan, Field: "age", Value: domain.Int(17)}},
					{TargetNodeID: "minor"},
				},
			},
			{ID: "adult", Type: domain.NodeEnd, Message: "Welcome."},
			{ID: "minor", Type: domain.NodeEnd, Message: "Sorry."},
		},
	}

	for input, want := range map[string]string{"1": "minor", "2": "minor", "18": "adult"} {
		t.Run(input, func(t *testing.T) {
			sess := newSession(def)
			eng := newEngine()
			_, err := eng.Start(context.Background(), def, sess)
			require.NoError(t, err)

			resp, err := eng.Turn(context.Background(), def, sess, input)
			require.NoError(t, err)
			assert.Equal(t, want, resp.NodeID)
		})
	}
}
