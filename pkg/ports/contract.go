package ports

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBotStoreContract runs a suite of tests to verify that a BotStore implementation
// adheres to the defined interface contract.
func RunBotStoreContract(t *testing.T, store BotStore) {
	ctx := context.Background()
	botID := "contract-test-bot-" + time.Now().Format("20060102150405")

	t.Run("Put and Load without instance", func(t *testing.T) {
		err := store.Put(ctx, &domain.Bot{ID: botID, Name: "Contract", Trigger: "oi"})
		require.NoError(t, err, "Put should not return error")

		loaded, err := store.Load(ctx, botID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, botID, loaded.ID)
		assert.Equal(t, "oi", loaded.Trigger)
		assert.Nil(t, loaded.Instance, "a never-edited bot has no instance")
	})

	t.Run("SaveInstance round trip", func(t *testing.T) {
		instance := contractGraph(t)
		err := store.SaveInstance(ctx, botID, instance)
		require.NoError(t, err, "SaveInstance should not return error")

		loaded, err := store.Load(ctx, botID)
		require.NoError(t, err)
		require.NotNil(t, loaded.Instance)
		assert.Equal(t, "Contract", loaded.Name, "saving the instance keeps the record")
		assertSameJSON(t, instance, *loaded.Instance)
	})

	t.Run("Last save wins", func(t *testing.T) {
		first := contractGraph(t)
		second := contractGraph(t)
		second.Nodes[0].Payload.Text = "changed"

		require.NoError(t, store.SaveInstance(ctx, botID, first))
		require.NoError(t, store.SaveInstance(ctx, botID, second))

		loaded, err := store.Load(ctx, botID)
		require.NoError(t, err)
		assert.Equal(t, "changed", loaded.Instance.Nodes[0].Payload.Text)
	})

	t.Run("Loaded copies are independent", func(t *testing.T) {
		loaded, err := store.Load(ctx, botID)
		require.NoError(t, err)
		loaded.Instance.Nodes[0].Payload.Text = "mutated by caller"

		again, err := store.Load(ctx, botID)
		require.NoError(t, err)
		assert.NotEqual(t, "mutated by caller", again.Instance.Nodes[0].Payload.Text)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+botID)
		assert.ErrorIs(t, err, domain.ErrBotNotFound)
	})

	t.Run("SaveInstance Non-Existent", func(t *testing.T) {
		err := store.SaveInstance(ctx, "non-existent-"+botID, contractGraph(t))
		assert.ErrorIs(t, err, domain.ErrBotNotFound)
	})

	t.Run("List", func(t *testing.T) {
		id1 := botID + "-1"
		id2 := botID + "-2"
		_ = store.Put(ctx, &domain.Bot{ID: id1, Trigger: "a"})
		_ = store.Put(ctx, &domain.Bot{ID: id2, Trigger: "b"})

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		bots, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, bots, id1)
		assert.Contains(t, bots, id2)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Delete(ctx, botID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, botID)
		assert.ErrorIs(t, err, domain.ErrBotNotFound, "Load after Delete should return ErrBotNotFound")

		assert.NoError(t, store.Delete(ctx, botID), "Delete is idempotent")
	})
}

// contractGraph returns a two-node instance carrying fields the editor does
// not interpret, so adapters are also checked for lossless storage.
func contractGraph(t *testing.T) domain.FlowGraph {
	t.Helper()
	g, err := domain.ParseGraph([]byte(`{
		"nodes": [
			{"id": "node_0", "type": "response", "position": {"x": 0, "y": 0}, "data": {"value": "oi"}, "width": 250},
			{"id": "node_1", "type": "message", "position": {"x": 0, "y": 200},
			 "data": {"value": "hello", "actions": [{"target": "pause", "settings": {"minutes": 5}}], "custom": true}}
		],
		"edges": [{"id": "enode_0-node_1", "source": "node_0", "target": "node_1", "animated": true}],
		"viewport": {"x": 10, "y": 20, "zoom": 1.5},
		"version": 2
	}`))
	require.NoError(t, err)
	return g
}

func assertSameJSON(t *testing.T, want, got domain.FlowGraph) {
	t.Helper()
	a, err := json.Marshal(want)
	require.NoError(t, err)
	b, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}
