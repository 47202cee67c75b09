// ABOUTME: Tests for the SQLite invocation audit store.
// ABOUTME: Covers schema creation, recording, recent queries, and aggregation.

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewSQLiteStoreCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "audit.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestRecordAndQueryInvocations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordToolCall(ctx, "echo", "req-1", 5*time.Millisecond, false))
	require.NoError(t, s.RecordToolCall(ctx, "read_file", "req-2", 12*time.Millisecond, true))

	invs, err := s.RecentInvocations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, invs, 2)

	// Newest first.
	require.Equal(t, "read_file", invs[0].Tool)
	require.Equal(t, "req-2", invs[0].RequestID)
	require.True(t, invs[0].IsError)
	require.Equal(t, 12*time.Millisecond, invs[0].Elapsed)

	require.Equal(t, "echo", invs[1].Tool)
	require.False(t, invs[1].IsError)
	require.NotEmpty(t, invs[1].ID)
	require.False(t, invs[1].CreatedAt.IsZero())
}

func TestRecentInvocationsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordToolCall(ctx, "echo", "req", time.Millisecond, false))
	}

	invs, err := s.RecentInvocations(ctx, 3)
	require.NoError(t, err)
	require.Len(t, invs, 3)

	// Non-positive limit falls back to the default.
	invs, err = s.RecentInvocations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, invs, 5)
}

func TestRecentInvocationsEmpty(t *testing.T) {
	s := newTestStore(t)

	invs, err := s.RecentInvocations(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, invs)
}

func TestStatsByTool(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordToolCall(ctx, "echo", "r1", 5*time.Millisecond, false))
	require.NoError(t, s.RecordToolCall(ctx, "echo", "r2", 7*time.Millisecond, true))
	require.NoError(t, s.RecordToolCall(ctx, "write_file", "r3", 3*time.Millisecond, false))

	stats, err := s.StatsByTool(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	// Ordered by call count descending.
	require.Equal(t, "echo", stats[0].Tool)
	require.Equal(t, int64(2), stats[0].Calls)
	require.Equal(t, int64(1), stats[0].Errors)
	require.Equal(t, int64(12), stats[0].TotalMs)
	require.False(t, stats[0].LastCalled.IsZero())

	require.Equal(t, "write_file", stats[1].Tool)
	require.Equal(t, int64(1), stats[1].Calls)
	require.Equal(t, int64(0), stats[1].Errors)
}

func TestReopenPreservesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordToolCall(ctx, "echo", "r1", time.Millisecond, false))
	require.NoError(t, s.Close())

	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	invs, err := s2.RecentInvocations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, invs, 1)
	require.Equal(t, "echo", invs[0].Tool)
}
