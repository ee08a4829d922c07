package session

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestPathsFor(t *testing.T) {
	p := PathsFor("/data/recordings", "2024-03-05_09-07-01")

	assert.Equal(t, "2024-03-05_09-07-01", p.ID)
	assert.Equal(t, filepath.Join("/data/recordings", "2024-03-05_09-07-01"), p.Dir)
	assert.Equal(t, filepath.Join(p.Dir, "input.raw"), p.Raw)
	assert.Equal(t, filepath.Join(p.Dir, "input_16k.wav"), p.Wav)
	assert.Equal(t, filepath.Join(p.Dir, "transcript.txt"), p.Transcript)

	for _, path := range []string{p.Raw, p.Wav, p.Transcript} {
		assert.Equal(t, p.Dir, filepath.Dir(path))
	}
	assert.Equal(t, p.ID, filepath.Base(p.Dir))
}

func TestIDRoundTrip(t *testing.T) {
	ts := time.Date(2024, 12, 31, 23, 59, 58, 900, time.Local)
	id := IDFor(ts)
	assert.Equal(t, "2024-12-31_23-59-58", id)

	parsed, err := ParseID(id)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts.Truncate(time.Second)))
}

func TestAllocateCreatesDirectory(t *testing.T) {
	base := filepath.Join(t.TempDir(), "recordings", "nested")
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)

	p, err := NewAllocator(base, fixedClock(ts), nil).Allocate()
	require.NoError(t, err)

	assert.Equal(t, "2024-01-02_03-04-05", p.ID)
	info, err := os.Stat(p.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestAllocateSameSecondReusesDirectory(t *testing.T) {
	base := t.TempDir()
	alloc := NewAllocator(base, fixedClock(time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)), nil)

	first, err := alloc.Allocate()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(first.Transcript, []byte("keep"), 0o644))

	second, err := alloc.Allocate()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	data, err := os.ReadFile(second.Transcript)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}

func TestAllocateEmptyBase(t *testing.T) {
	_, err := NewAllocator("", nil, nil).Allocate()
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestAllocateDirectoryCreateError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := NewAllocator(blocker, nil, nil).Allocate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDirectoryCreate))
}

func TestBeginNeverOverwrites(t *testing.T) {
	st := NewStore()
	first := &Session{Paths: Paths{ID: "first"}}
	second := &Session{Paths: Paths{ID: "second"}}

	assert.True(t, st.Begin(first))
	assert.False(t, st.Begin(second))
	assert.True(t, st.Busy())

	got := st.Take()
	assert.Same(t, first, got)
	assert.False(t, st.Busy())
}

func TestTakeEmpty(t *testing.T) {
	st := NewStore()
	assert.Nil(t, st.Take())
	assert.Nil(t, st.Take())
	assert.Equal(t, Status{}, st.Status())
}

func TestStatus(t *testing.T) {
	st := NewStore()
	started := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	st.Begin(&Session{Paths: Paths{ID: "abc"}, DeviceID: "1", StartedAt: started})

	assert.Equal(t, Status{Active: true, ID: "abc", DeviceID: "1", StartedAt: started}, st.Status())
}

func TestConcurrentBeginSingleWinner(t *testing.T) {
	st := NewStore()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if st.Begin(&Session{}) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.NotNil(t, st.Take())
	assert.Nil(t, st.Take())
}
