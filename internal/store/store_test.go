package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/agentic-research/shelf/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock advances one second per call so insertion order is visible in
// added_at.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	return createTestStoreAt(t, filepath.Join(t.TempDir(), "shelf.db"), opts...)
}

func createTestStoreAt(t *testing.T, path string, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithLogger(testLogger()), WithClock(newStepClock().Now)}, opts...)
	s, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustUpsert(t *testing.T, s *Store, k *api.Kind, rec Record, a Annotation) UpsertResult {
	t.Helper()
	res, err := s.Upsert(context.Background(), k, rec, a)
	require.NoError(t, err)
	return res
}

func keys(es []Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Key()
	}
	return out
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "papers.db")
	s := createTestStoreAt(t, path)

	assert.Equal(t, path, s.Path())
	require.NoError(t, s.EnsureSchema(context.Background(), api.Paper))
	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := createTestStore(t, WithBusyTimeout(1234*time.Millisecond))

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, s.db.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 1234, timeout)
}

func TestTimestamp_RoundTrip(t *testing.T) {
	at := time.Date(2025, 3, 4, 5, 6, 7, 890, time.UTC)
	s := &Store{now: func() time.Time { return at }}

	ts := s.timestamp()
	assert.Equal(t, "2025-03-04T05:06:07.000000890Z", ts)
	assert.True(t, at.Equal(parseTimestamp(ts)))
	assert.True(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Equal(parseTimestamp("2024-01-02T03:04:05Z")))
}
