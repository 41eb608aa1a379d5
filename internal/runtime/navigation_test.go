package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/convo/internal/runtime"
	"github.com/aretw0/convo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := map[string]runtime.Command{
		"menu":        runtime.CommandMenu,
		"  Main Menu ": runtime.CommandMenu,
		"MAIN":        runtime.CommandMenu,
		"back":        runtime.CommandBack,
		"Previous":    runtime.CommandBack,
		"restart":     runtime.CommandRestart,
		"start over":  runtime.CommandRestart,
		"menus":       runtime.CommandNone,
		"go back":     runtime.CommandNone,
	}
	for input, want := range tests {
		assert.Equal(t, want, runtime.ParseCommand(input), "input %q", input)
	}
}

func TestEngine_MenuCommand(t *testing.T) {
	def := supportConvo()
	sess := newSession(def)
	eng := newEngine()
	ctx := context.Background()

	_, err := eng.Start(ctx, def, sess)
	require.NoError(t, err)
	_, err = eng.Turn(ctx, def, sess, "1")
	require.NoError(t, err)
	require.Equal(t, "ask_email", sess.CurrentNodeID)

	sess.Context["plan"] = domain.String("gold")
	sess.Context[domain.KeyAISessionID] = domain.String("ai-old")

	resp, err := eng.Turn(ctx, def, sess, "Menu")
	require.NoError(t, err)
	assert.Equal(t, "main", resp.NodeID)
	assert.Equal(t, "Welcome {{name}}!\n\nHow can we help?", resp.Message)
	assert.Equal(t, "gold", sess.Context.Text("plan"))
	_, kept := sess.Context[domain.KeyAISessionID]
	assert.False(t, kept)
}

func TestEngine_BackCommand(t *testing.T) {
	def := supportConvo()
	sess := newSession(def)
	eng := newEngine()
	ctx := context.Background()

	_, err := eng.Start(ctx, def, sess)
	require.NoError(t, err)
	_, err = eng.Turn(ctx, def, sess, "1")
	require.NoError(t, err)

	resp, err := eng.Turn(ctx, def, sess, "back")
	require.NoError(t, err)
	assert.Equal(t, "main", resp.NodeID)
	assert.Equal(t, "How can we help?", resp.Message)
	assert.Len(t, resp.Options, 2)
}

func TestEngine_BackWithoutHistoryIsOrdinaryInput(t *testing.T) {
	def := supportConvo()
	sess := newSession(def)
	eng := newEngine()

	_, err := eng.Start(context.Background(), def, sess)
	require.NoError(t, err)

	resp, err := eng.Turn(context.Background(), def, sess, "back")
	require.NoError(t, err)
	assert.Equal(t, "main", resp.NodeID)
	assert.Contains(t, resp.Message, "Invalid selection")
}

func TestEngine_RestartKeepsContext(t *testing.T) {
	def := supportConvo()
	sess := newSession(def)
	eng := newEngine()
	ctx := context.Background()

	_, err := eng.Start(ctx, def, sess)
	require.NoError(t, err)
	_, err = eng.Turn(ctx, def, sess, "1")
	require.NoError(t, err)
	_, err = eng.Turn(ctx, def, sess, "ada@example.com")
	require.NoError(t, err)
	require.True(t, sess.Completed)

	resp, err := eng.Turn(ctx, def, sess, "start over")
	require.NoError(t, err)
	assert.False(t, resp.Completed)
	assert.Equal(t, "main", resp.NodeID)
	assert.Equal(t, "ada@example.com", sess.Context.Text("email"))
	// user command + welcome + main
	assert.Len(t, sess.History, 3)
}
