package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rec struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestEmptyStore(t *testing.T) {
	t.Parallel()

	s := Open(filepath.Join(t.TempDir(), "missing"), "thing")
	_, err := s.Latest()
	assert.True(t, errors.Is(err, ErrNotFound))

	var r rec
	_, err = s.LoadLatest(&r)
	assert.True(t, errors.Is(err, ErrNotFound))

	vs, err := s.Versions()
	require.NoError(t, err)
	assert.Empty(t, vs)
}

func TestWriteAdvancesLatest(t *testing.T) {
	t.Parallel()

	s := Open(t.TempDir(), "cost")

	v1, p1, err := s.Write(rec{"a", 0.1})
	require.NoError(t, err)
	v2, p2, err := s.Write(rec{"b", 1.0 / 3.0})
	require.NoError(t, err)

	assert.Equal(t, int64(1), v1)
	assert.Equal(t, int64(2), v2)
	assert.NotEqual(t, p1, p2)

	var r rec
	v, err := s.LoadLatest(&r)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
	assert.Equal(t, "b", r.Name)
	assert.Equal(t, 1.0/3.0, r.Value)

	// older versions remain readable
	var old rec
	_, err = s.Load(1, &old)
	require.NoError(t, err)
	assert.Equal(t, "a", old.Name)
}

func TestPublishRepointsAndRejectsUnknown(t *testing.T) {
	t.Parallel()

	s := Open(t.TempDir(), "policy")
	_, _, err := s.Write(rec{"a", 1})
	require.NoError(t, err)
	_, _, err = s.Write(rec{"b", 2})
	require.NoError(t, err)

	require.NoError(t, s.Publish(1))
	v, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	err = s.Publish(7)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := Open(dir, "hazard")
	for i := 0; i < 3; i++ {
		_, _, err := s.Write(rec{"x", float64(i)})
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"hazard-v000001.json", "hazard-v000002.json", "hazard-v000003.json", "hazard.latest",
	}, names)
}

func TestReadersSeeCompleteVersions(t *testing.T) {
	t.Parallel()

	s := Open(t.TempDir(), "cost")
	_, _, err := s.Write(rec{"seed", 0})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 20; i++ {
			_, _, _ = s.Write(rec{"w", float64(i)})
		}
	}()

	for i := 0; i < 100; i++ {
		var r rec
		_, err := s.LoadLatest(&r)
		require.NoError(t, err)
		assert.NotEmpty(t, r.Name)
	}
	wg.Wait()
}
