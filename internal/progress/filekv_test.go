package progress

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileKVRoundTrip(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)

	_, err = kv.Get("progress")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set("progress", []byte(`{"points":5}`)))
	data, err := kv.Get("progress")
	require.NoError(t, err)
	require.JSONEq(t, `{"points":5}`, string(data))

	// Last write wins.
	require.NoError(t, kv.Set("progress", []byte(`{"points":9}`)))
	data, err = kv.Get("progress")
	require.NoError(t, err)
	require.JSONEq(t, `{"points":9}`, string(data))
}

func TestFileKVRejectsPathKeys(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	require.Error(t, kv.Set("../escape", []byte("x")))
	_, err = kv.Get("a/b")
	require.Error(t, err)
}

func TestFileKVCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	kv, err := NewFileKV(dir)
	require.NoError(t, err)
	require.NoError(t, kv.Set("progress", []byte("{}")))
}

func TestStoreOverFileKV(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	s := NewStore(kv, testConfig())

	_, err = s.AwardPoints(50, "scan-1")
	require.NoError(t, err)
	require.NoError(t, s.UnlockModule("advanced-scanner"))

	// A fresh store over the same directory sees the persisted ledger.
	s2 := NewStore(kv, testConfig())
	rec := s2.LoadProgress()
	require.Equal(t, 50, rec.Points)
	require.Contains(t, rec.UnlockedModules, "advanced-scanner")
	require.Contains(t, rec.TasksCompleted, "scan-1")
}
