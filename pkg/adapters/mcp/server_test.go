package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aretw0/convo"
	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/dsl"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	engine := convo.New(convo.WithIDGenerator(func() string { return "sess-1" }))
	b := dsl.New("quiz")
	b.Add("start").Start("Hi {{name}}").Go("ask")
	b.Add("ask").Question("2+2?").Equals("4", "right").Default("wrong")
	b.Add("right").End("Correct")
	b.Add("wrong").End("Nope")
	_, err := engine.CreateConvo(context.Background(), b.MustBuild())
	require.NoError(t, err)
	return NewServer(engine, "test")
}

func TestServer_StartAndSend(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	resp, err := s.handleStart(ctx, mcp.CallToolRequest{}, StartArgs{ConvoID: "quiz", Context: `{"name":"Ana"}`})
	require.NoError(t, err)
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, "Hi Ana\n\n2+2?", resp.Message)
	assert.True(t, resp.ExpectsInput)

	resp, err = s.handleMessage(ctx, mcp.CallToolRequest{}, MessageArgs{SessionID: "sess-1", Input: "4"})
	require.NoError(t, err)
	assert.Equal(t, "Correct", resp.Message)
	assert.True(t, resp.Completed)
}

func TestServer_ToolErrors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleStart(ctx, mcp.CallToolRequest{}, StartArgs{ConvoID: "quiz", Context: `not json`})
	assert.Error(t, err)

	_, err = s.handleStart(ctx, mcp.CallToolRequest{}, StartArgs{ConvoID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrConvoNotFound)

	_, err = s.handleMessage(ctx, mcp.CallToolRequest{}, MessageArgs{SessionID: "ghost", Input: "hi"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = s.handleMessage(ctx, mcp.CallToolRequest{}, MessageArgs{SessionID: "sess-1", Input: strings.Repeat("x", 10000)})
	assert.Error(t, err)
}

func TestServer_Validate(t *testing.T) {
	s := newTestServer(t)

	b := dsl.New("ok")
	b.Add("start").End("bye")
	valid, err := json.Marshal(b.Definition())
	require.NoError(t, err)

	tests := []struct {
		name       string
		definition string
		valid      bool
		issues     int
		wantErr    bool
	}{
		{name: "valid", definition: string(valid), valid: true},
		{name: "broken target", definition: `{"id":"x","start_node_id":"a","nodes":[{"id":"a","type":"message","default_transition":"zzz"}]}`, issues: 1},
		{name: "not json", definition: `{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.handleValidate(context.Background(), mcp.CallToolRequest{}, ValidateArgs{Definition: tt.definition})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)
			assert.Len(t, res.Issues, tt.issues)
			assert.NotNil(t, res.Warnings)
		})
	}
}

func TestServer_Graph(t *testing.T) {
	s := newTestServer(t)

	req := mcp.CallToolRequest{}
	req.Params.Name = "get_graph"
	req.Params.Arguments = map[string]any{"convo_id": "quiz"}

	res, err := s.handleGraph(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, `ask -- "input equals 4" --> right`)

	req.Params.Arguments = map[string]any{"convo_id": "ghost"}
	res, err = s.handleGraph(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
