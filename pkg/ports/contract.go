package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/convo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")
	def := &domain.Definition{ID: "contract-convo", StartNodeID: "start"}
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("Save and Load", func(t *testing.T) {
		sess := domain.NewSession(sessionID, def, "user-1", "tenant-1", domain.Context{
			"name":  domain.String("Ada"),
			"count": domain.Int(42),
			"tags":  domain.List(domain.String("a"), domain.String("b")),
		}, now)
		sess.Record(domain.RoleAssistant, "hello", "start", now)

		require.NoError(t, store.Save(ctx, sess), "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, "start", loaded.CurrentNodeID)
		assert.Equal(t, "contract-convo", loaded.ConvoID)
		assert.Equal(t, "user-1", loaded.UserID)
		assert.Equal(t, "Ada", loaded.Context.Text("name"))
		assert.Equal(t, "42", loaded.Context.Text("count"))
		assert.Len(t, loaded.Context["tags"].Items(), 2)
		require.Len(t, loaded.History, 1)
		assert.Equal(t, "hello", loaded.History[0].Content)
	})

	t.Run("Save Replaces", func(t *testing.T) {
		sess, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		sess.CurrentNodeID = "next"
		sess.Completed = true
		require.NoError(t, store.Save(ctx, sess))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "next", loaded.CurrentNodeID)
		assert.True(t, loaded.Completed)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, sessionID), "Delete should not return error")

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, domain.NewSession(id1, def, "", "", nil, now)))
		require.NoError(t, store.Save(ctx, domain.NewSession(id2, def, "", "", nil, now)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// RunDefinitionStoreContract runs a suite of tests to verify that a
// DefinitionStore implementation adheres to the interface contract.
func RunDefinitionStoreContract(t *testing.T, store DefinitionStore) {
	ctx := context.Background()
	convoID := "contract-convo-" + time.Now().Format("20060102150405")

	def := &domain.Definition{
		ID:          convoID,
		Name:        "Contract",
		StartNodeID: "start",
		TenantUID:   "tenant-1",
		Nodes: []domain.Node{
			{
				ID:      "start",
				Type:    domain.NodeMenu,
				Message: "Pick one",
				Transitions: []domain.Transition{
					{TargetNodeID: "end", Label: "Finish", Condition: &domain.Condition{
						Kind: domain.CondEquals, Value: domain.String("done|finish"),
					}},
				},
			},
			{ID: "end", Type: domain.NodeEnd, Message: "Bye"},
		},
	}

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, def))

		loaded, err := store.Load(ctx, convoID)
		require.NoError(t, err)
		assert.Equal(t, def.StartNodeID, loaded.StartNodeID)
		assert.Equal(t, "tenant-1", loaded.TenantUID)
		require.Len(t, loaded.Nodes, 2)
		require.Len(t, loaded.Nodes[0].Transitions, 1)
		cond := loaded.Nodes[0].Transitions[0].Condition
		require.NotNil(t, cond)
		assert.Equal(t, domain.CondEquals, cond.Kind)
		assert.Equal(t, []string{"done", "finish"}, cond.Alternatives())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+convoID)
		assert.ErrorIs(t, err, domain.ErrConvoNotFound)
	})

	t.Run("List", func(t *testing.T) {
		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, convoID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, convoID))
		_, err := store.Load(ctx, convoID)
		assert.ErrorIs(t, err, domain.ErrConvoNotFound)
	})
}
