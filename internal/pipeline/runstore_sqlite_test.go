package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteRunStore(t *testing.T, dir string) *SQLiteRunStore {
	t.Helper()
	store, err := NewSQLiteRunStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteRunStore_PutGet(t *testing.T) {
	store := newSQLiteRunStore(t, t.TempDir())
	ctx := context.Background()

	snap := Snapshot{
		RunID:    "run-1",
		State:    StatePaused,
		Hints:    []string{"substitution residual"},
		Attempts: map[Stage]int{StageParser: 1, StageSolver: 2},
		Events:   []TraceEvent{{Seq: 1, Kind: EventStage}, {Seq: 2, Kind: EventPause}},
		Pause:    &PauseRequest{Stage: StageParser, Reason: "low confidence"},
	}
	require.NoError(t, store.Put(ctx, snap))

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatePaused, got.State)
	assert.Equal(t, []string{"substitution residual"}, got.Hints)
	assert.Equal(t, 2, got.Attempts[StageSolver])
	assert.Len(t, got.Events, 2)
	require.NotNil(t, got.Pause)
	assert.Equal(t, StageParser, got.Pause.Stage)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestSQLiteRunStore_GetMissing(t *testing.T) {
	store := newSQLiteRunStore(t, t.TempDir())

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSQLiteRunStore_PutReplaces(t *testing.T) {
	store := newSQLiteRunStore(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, Snapshot{RunID: "run-1", State: StateSolving}))
	require.NoError(t, store.Put(ctx, Snapshot{RunID: "run-1", State: StateDone}))

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StateDone, got.State)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, ids)
}

func TestSQLiteRunStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewSQLiteRunStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, Snapshot{
		RunID:      "run-1",
		State:      StatePaused,
		PausedFrom: StateVerifying,
		Pause:      &PauseRequest{Stage: StageVerifier, Reason: "rejected"},
	}))
	require.NoError(t, store.Close())

	reopened := newSQLiteRunStore(t, dir)
	got, err := reopened.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatePaused, got.State)
	assert.Equal(t, StateVerifying, got.PausedFrom)
	require.NotNil(t, got.Pause)
	assert.Equal(t, "rejected", got.Pause.Reason)
}

func TestSQLiteRunStore_List(t *testing.T) {
	store := newSQLiteRunStore(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, Snapshot{RunID: "a"}))
	require.NoError(t, store.Put(ctx, Snapshot{RunID: "b"}))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}
