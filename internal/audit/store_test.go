package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndListRecent(t *testing.T) {
	s := openTestStore(t)

	rec := NewRecord("alice", "uptime", []string{"web1", "web2"}, 2, 0,
		time.Now().Add(-time.Minute), 1500*time.Millisecond)
	require.NoError(t, s.Record(context.Background(), rec))

	list, err := s.ListRecent(10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got := list[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "alice", got.Who)
	assert.Equal(t, "uptime", got.Command)
	assert.Equal(t, []string{"web1", "web2"}, got.Targets)
	assert.Equal(t, 2, got.Succeeded)
	assert.Equal(t, 0, got.Failed)
	assert.Equal(t, int64(1500), got.WallClockMs)
}

func TestListFiltered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	require.NoError(t, s.Record(ctx, NewRecord("alice", "uptime", []string{"web1"}, 1, 0, base, time.Second)))
	require.NoError(t, s.Record(ctx, NewRecord("bob", "df -h", []string{"db1"}, 0, 1, base.Add(time.Minute), time.Second)))

	byHost, err := s.ListFiltered(10, "db1", "")
	require.NoError(t, err)
	require.Len(t, byHost, 1)
	assert.Equal(t, "df -h", byHost[0].Command)

	byCmd, err := s.ListFiltered(10, "", "uptime")
	require.NoError(t, err)
	require.Len(t, byCmd, 1)
	assert.Equal(t, "alice", byCmd[0].Who)
}

func TestCleanupByMaxRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		rec := NewRecord("alice", "uptime", []string{"web1"}, 1, 0, base.Add(time.Duration(i)*time.Minute), time.Second)
		require.NoError(t, s.Record(ctx, rec))
	}

	require.NoError(t, s.Cleanup(0, 2))

	list, err := s.ListRecent(10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestNewRecordAssignsID(t *testing.T) {
	a := NewRecord("alice", "uptime", nil, 0, 0, time.Now(), 0)
	b := NewRecord("alice", "uptime", nil, 0, 0, time.Now(), 0)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}
