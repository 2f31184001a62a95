package history

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(),
		filepath.Join(t.TempDir(), "history.db"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestRecordAndRecall(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	id, err := store.Record(ctx, Invocation{
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Source:     "/home/u/renders",
		Mode:       "directory",
		Succeeded:  2,
		Failed:     1,
	}, []TaskRecord{
		{Name: "a.png", RemoteID: "r1", WebViewLink: "https://x/1", SizeBytes: 512, Attempts: 1, Status: StatusUploaded},
		{Name: "b.png", RemoteID: "r2", SizeBytes: 1024, Attempts: 3, Status: StatusPartial, Error: "sharing failed"},
		{Name: "c.png", Attempts: 4, Status: StatusFailed, Error: "server error"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	invs, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.Equal(t, id, invs[0].ID)
	assert.Equal(t, "/home/u/renders", invs[0].Source)
	assert.Equal(t, "directory", invs[0].Mode)
	assert.Equal(t, 2, invs[0].Succeeded)
	assert.Equal(t, 1, invs[0].Failed)
	assert.Equal(t, started.Unix(), invs[0].StartedAt.Unix())

	tasks, err := store.Tasks(ctx, id)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "a.png", tasks[0].Name)
	assert.Equal(t, StatusUploaded, tasks[0].Status)
	assert.Equal(t, 3, tasks[1].Attempts)
	assert.Equal(t, StatusPartial, tasks[1].Status)
	assert.Equal(t, "server error", tasks[2].Error)
}

func TestRecentOrderingAndLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	for i := range 3 {
		_, err := store.Record(ctx, Invocation{
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
			Source:     "/src",
			Mode:       "file",
			Succeeded:  1,
		}, nil)
		require.NoError(t, err)
	}

	invs, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, invs, 2)
	assert.True(t, invs[0].StartedAt.After(invs[1].StartedAt))
}

func TestTasksUnknownInvocation(t *testing.T) {
	store := openTestStore(t)

	tasks, err := store.Tasks(context.Background(), "no-such-id")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")
	logger := slog.New(slog.DiscardHandler)
	ctx := context.Background()

	store, err := Open(ctx, path, logger)
	require.NoError(t, err)

	_, err = store.Record(ctx, Invocation{
		StartedAt: time.Now(), FinishedAt: time.Now(), Source: "/s", Mode: "file", Succeeded: 1,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening must not re-run migrations or lose rows.
	store, err = Open(ctx, path, logger)
	require.NoError(t, err)
	defer store.Close()

	invs, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, invs, 1)
}
