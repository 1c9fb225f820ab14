package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(path, "test.slot")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, path
}

func TestSQLiteLoadEmpty(t *testing.T) {
	t.Parallel()

	s, _ := newTestSQLite(t)

	data, ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestSQLiteSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	s, _ := newTestSQLite(t)

	require.NoError(t, s.Save([]byte(`{"balance":1000}`)))

	data, ok, err := s.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`{"balance":1000}`), data)
}

func TestSQLiteSaveOverwrites(t *testing.T) {
	t.Parallel()

	s, _ := newTestSQLite(t)

	require.NoError(t, s.Save([]byte("first")))
	require.NoError(t, s.Save([]byte("second")))

	data, ok, err := s.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("second"), data)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	t.Parallel()

	s, path := newTestSQLite(t)
	require.NoError(t, s.Save([]byte("durable")))
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(path, "test.slot")
	require.NoError(t, err)
	defer reopened.Close()

	data, ok, err := reopened.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("durable"), data)
}

func TestSQLiteKeysAreIndependent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.db")

	a, err := NewSQLite(path, "slot.a")
	require.NoError(t, err)
	defer a.Close()
	b, err := NewSQLite(path, "slot.b")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Save([]byte("A")))

	_, ok, err := b.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySlot(t *testing.T) {
	t.Parallel()

	m := NewMemory()

	_, ok, err := m.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Save([]byte("x")))
	data, ok, err := m.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("x"), data)
}
