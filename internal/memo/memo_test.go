package memo

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestGetFillsOncePerWindow(t *testing.T) {
	clock := newFakeClock()
	cache := New[string, int](time.Second, clock.Now)

	calls := 0
	fill := func() (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 5; i++ {
		v, err := cache.Get("k", fill)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, 1, calls)
}

func TestGetRefillsAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	cache := New[string, int](time.Second, clock.Now)

	calls := 0
	fill := func() (int, error) {
		calls++
		return calls, nil
	}

	v, err := cache.Get("k", fill)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// Still inside the window.
	clock.Advance(999 * time.Millisecond)
	v, err = cache.Get("k", fill)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clock.Advance(time.Millisecond)
	v, err = cache.Get("k", fill)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, calls)
}

func TestGetZeroTTLNeverExpires(t *testing.T) {
	clock := newFakeClock()
	cache := New[string, string](0, clock.Now)

	calls := 0
	fill := func() (string, error) {
		calls++
		return "v1.2.3", nil
	}

	_, err := cache.Get("version", fill)
	require.NoError(t, err)

	clock.Advance(365 * 24 * time.Hour)
	v, err := cache.Get("version", fill)
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", v)
	assert.Equal(t, 1, calls)
}

func TestGetErrorIsNotCached(t *testing.T) {
	clock := newFakeClock()
	cache := New[string, int](time.Second, clock.Now)

	boom := errors.New("upstream down")
	calls := 0
	_, err := cache.Get("k", func() (int, error) {
		calls++
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cache.Len())

	v, err := cache.Get("k", func() (int, error) {
		calls++
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, calls)
}

func TestInvalidateForcesRefill(t *testing.T) {
	clock := newFakeClock()
	cache := New[string, int](time.Minute, clock.Now)

	calls := 0
	fill := func() (int, error) {
		calls++
		return calls, nil
	}

	_, err := cache.Get("k", fill)
	require.NoError(t, err)

	cache.Invalidate("k")

	v, err := cache.Get("k", fill)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestConcurrentGetCoalesces(t *testing.T) {
	clock := newFakeClock()
	cache := New[struct{}, int](time.Second, clock.Now)

	calls := 0
	fill := func() (int, error) {
		calls++
		time.Sleep(10 * time.Millisecond)
		return 1, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cache.Get(struct{}{}, fill)
			assert.NoError(t, err)
			assert.Equal(t, 1, v)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
}
