package generation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BeginCancelsPriorEntry(t *testing.T) {
	registry := NewCancelRegistry()

	firstCtx, firstEpoch := registry.Begin(context.Background(), "r1")
	secondCtx, secondEpoch := registry.Begin(context.Background(), "r1")

	assert.Error(t, firstCtx.Err(), "superseded context is cancelled")
	assert.NoError(t, secondCtx.Err())
	assert.NotEqual(t, firstEpoch, secondEpoch)
	assert.False(t, registry.IsCurrent("r1", firstEpoch))
	assert.True(t, registry.IsCurrent("r1", secondEpoch))
	assert.Equal(t, 1, registry.Active())
}

func TestRegistry_CompleteRunsCommitOnlyWhenCurrent(t *testing.T) {
	registry := NewCancelRegistry()

	_, staleEpoch := registry.Begin(context.Background(), "r1")
	_, currentEpoch := registry.Begin(context.Background(), "r1")

	var committed []string
	assert.False(t, registry.Complete("r1", staleEpoch, func() {
		committed = append(committed, "stale")
	}))
	assert.True(t, registry.Complete("r1", currentEpoch, func() {
		committed = append(committed, "current")
	}))

	require.Equal(t, []string{"current"}, committed)
	assert.Equal(t, 0, registry.Active())

	// Completing again is a no-op
	assert.False(t, registry.Complete("r1", currentEpoch, func() {
		committed = append(committed, "again")
	}))
}

func TestRegistry_FinishRemovesOnlyCurrentEpoch(t *testing.T) {
	registry := NewCancelRegistry()

	_, staleEpoch := registry.Begin(context.Background(), "r1")
	_, currentEpoch := registry.Begin(context.Background(), "r1")

	registry.Finish("r1", staleEpoch)
	assert.True(t, registry.IsCurrent("r1", currentEpoch), "stale finish leaves the entry")

	registry.Finish("r1", currentEpoch)
	assert.Equal(t, 0, registry.Active())
}

func TestRegistry_Cancel(t *testing.T) {
	registry := NewCancelRegistry()

	ctx, _ := registry.Begin(context.Background(), "r1")
	assert.True(t, registry.Cancel("r1"))
	assert.Error(t, ctx.Err())
	assert.Equal(t, 0, registry.Active())

	assert.False(t, registry.Cancel("r1"), "nothing left to cancel")
}

func TestRegistry_CancelAll(t *testing.T) {
	registry := NewCancelRegistry()

	ctx1, _ := registry.Begin(context.Background(), "r1")
	ctx2, _ := registry.Begin(context.Background(), "r2")

	assert.Equal(t, 2, registry.CancelAll())
	assert.Error(t, ctx1.Err())
	assert.Error(t, ctx2.Err())
	assert.Equal(t, 0, registry.Active())
}
