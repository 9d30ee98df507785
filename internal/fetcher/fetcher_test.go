package fetcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jobhack/web/internal/backend"
	"github.com/jobhack/web/internal/job"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	calls   atomic.Int32
	mu      sync.Mutex
	results map[job.Query]job.Result
	err     error
	gate    chan struct{}
	seen    []job.Query
}

func (s *fakeSource) Jobs(ctx context.Context, tk *backend.Tokens, q job.Query) (job.Result, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, q)
	if s.err != nil {
		return nil, s.err
	}
	if res, ok := s.results[q]; ok {
		return res, nil
	}
	return job.PlainResult{Jobs: []job.Job{{ID: 1}}}, nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newFetcher(t *testing.T, src Source) (*Fetcher, *clock) {
	t.Helper()
	f, err := New(src, 5*time.Second, zerolog.Nop())
	require.NoError(t, err)
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	f.now = c.now
	return f, c
}

func TestFetchReusesResultWithinWindow(t *testing.T) {
	src := &fakeSource{}
	f, c := newFetcher(t, src)
	ctx := context.Background()
	q := job.Query{Keyword: "go"}

	_, err := f.Fetch(ctx, nil, q, Options{})
	require.NoError(t, err)
	c.advance(4 * time.Second)
	_, err = f.Fetch(ctx, nil, q, Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.calls.Load())

	c.advance(time.Second)
	_, err = f.Fetch(ctx, nil, q, Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.calls.Load(), "stale entry is refetched")
}

func TestFetchForceAlwaysRefetches(t *testing.T) {
	src := &fakeSource{}
	f, _ := newFetcher(t, src)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.Fetch(ctx, nil, job.Query{}, Options{Force: true})
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, src.calls.Load())
}

func TestFetchOnlySavedSharesCacheEntry(t *testing.T) {
	src := &fakeSource{}
	f, _ := newFetcher(t, src)
	ctx := context.Background()

	_, err := f.Fetch(ctx, nil, job.Query{Keyword: "go"}, Options{})
	require.NoError(t, err)
	_, err = f.Fetch(ctx, nil, job.Query{Keyword: "go", OnlySaved: true}, Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.calls.Load())
	for _, q := range src.seen {
		assert.False(t, q.OnlySaved)
	}
}

func TestFetchCacheIsPerViewer(t *testing.T) {
	src := &fakeSource{}
	f, _ := newFetcher(t, src)
	ctx := context.Background()

	_, err := f.Fetch(ctx, &backend.Tokens{Access: "premium"}, job.Query{}, Options{})
	require.NoError(t, err)
	_, err = f.Fetch(ctx, nil, job.Query{}, Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestFetchKeepsTieredShapeThroughCache(t *testing.T) {
	q := job.Query{Sort: job.SortMatch}
	src := &fakeSource{results: map[job.Query]job.Result{
		q: job.TieredResult{Warning: "Premium required for sort=match", Jobs: []job.Job{{ID: 3, ScoreHint: job.Pct(40), Locked: true}}},
	}}
	f, _ := newFetcher(t, src)
	ctx := context.Background()

	_, err := f.Fetch(ctx, nil, q, Options{})
	require.NoError(t, err)
	res, err := f.Fetch(ctx, nil, q, Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.calls.Load())

	tiered, ok := res.(job.TieredResult)
	require.True(t, ok)
	assert.Equal(t, "Premium required for sort=match", tiered.Warning)
	require.Len(t, tiered.Jobs, 1)
	assert.Equal(t, 40, tiered.Jobs[0].ScoreHint.Clamp())
	assert.True(t, tiered.Jobs[0].Locked)
}

func TestFetchErrorsAreNotCached(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	f, _ := newFetcher(t, src)
	ctx := context.Background()

	_, err := f.Fetch(ctx, nil, job.Query{}, Options{})
	require.Error(t, err)

	src.mu.Lock()
	src.err = nil
	src.mu.Unlock()
	res, err := f.Fetch(ctx, nil, job.Query{}, Options{})
	require.NoError(t, err)
	assert.Len(t, res.Listing(), 1)
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestFetchCollapsesConcurrentQueries(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{})}
	f, _ := newFetcher(t, src)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Fetch(ctx, nil, job.Query{Keyword: "go"}, Options{})
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	// let the waiters join the flight before releasing it
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestFetchCancelledCallerReturnsEarly(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{})}
	f, _ := newFetcher(t, src)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, nil, job.Query{}, Options{})
		done <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	close(src.gate)
}

func TestFetchPropagatesRefreshedToken(t *testing.T) {
	src := refreshingSource{}
	f, _ := newFetcher(t, src)
	tk := &backend.Tokens{Access: "old", Refresh: "r"}
	_, err := f.Fetch(context.Background(), tk, job.Query{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "new", tk.Access)
	assert.True(t, tk.Refreshed)
}

type refreshingSource struct{}

func (refreshingSource) Jobs(_ context.Context, tk *backend.Tokens, _ job.Query) (job.Result, error) {
	tk.Access = "new"
	tk.Refreshed = true
	return job.PlainResult{}, nil
}

func TestInvalidate(t *testing.T) {
	src := &fakeSource{}
	f, _ := newFetcher(t, src)
	ctx := context.Background()
	_, err := f.Fetch(ctx, nil, job.Query{}, Options{})
	require.NoError(t, err)
	f.Invalidate()
	_, err = f.Fetch(ctx, nil, job.Query{}, Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestCachedNeverCallsBackend(t *testing.T) {
	src := &fakeSource{}
	f, c := newFetcher(t, src)
	tk := &backend.Tokens{Access: "premium"}

	_, ok := f.Cached(tk, job.Query{Keyword: "go"})
	assert.False(t, ok)

	_, err := f.Fetch(context.Background(), tk, job.Query{Keyword: "go"}, Options{})
	require.NoError(t, err)
	res, ok := f.Cached(tk, job.Query{Keyword: "go", OnlySaved: true})
	require.True(t, ok)
	assert.Len(t, res.Listing(), 1)

	_, ok = f.Cached(nil, job.Query{Keyword: "go"})
	assert.False(t, ok, "other viewers miss")

	c.advance(5 * time.Second)
	_, ok = f.Cached(tk, job.Query{Keyword: "go"})
	assert.False(t, ok, "stale entries miss")
	assert.EqualValues(t, 1, src.calls.Load())
}
