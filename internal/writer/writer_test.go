package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"us-ingest/internal/point"
)

// fakeSink records every write; fail decides the outcome of call n (1-based).
type fakeSink struct {
	mu     sync.Mutex
	calls  int
	writes []string
	fail   func(call int, data string) error
}

func (s *fakeSink) Write(_ context.Context, data []byte) error {
	s.mu.Lock()
	s.calls++
	call := s.calls
	fail := s.fail
	s.mu.Unlock()

	if fail != nil {
		if err := fail(call, string(data)); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.writes = append(s.writes, string(data))
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

func (s *fakeSink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recorder struct {
	mu        sync.Mutex
	successes []*Batch
	retries   int
	errors    int
	delays    []time.Duration
	points    []point.StockPoint
}

func (r *recorder) OnSuccess(b *Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, b)
	r.points = append(r.points, b.Points...)
}

func (r *recorder) OnRetry(_ *Batch, _ error, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
	r.delays = append(r.delays, delay)
}

func (r *recorder) OnError(*Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
}

func fastOptions() Options {
	return Options{
		BatchSize:       100,
		FlushInterval:   time.Hour,
		JitterInterval:  time.Millisecond,
		RetryInterval:   time.Millisecond,
		MaxRetries:      5,
		MaxRetryDelay:   5 * time.Millisecond,
		ExponentialBase: 2,
		Workers:         1,
		WriteTimeout:    time.Second,
	}
}

func makePoints(n int) []point.StockPoint {
	points := make([]point.StockPoint, n)
	for i := range points {
		points[i] = point.StockPoint{
			Ticker:    fmt.Sprintf("T%04d", i),
			Timestamp: int64(i) * 1_000_000,
			Open:      1, High: 2, Close: 1.5, Volume: int64(i), VWAP: 1.4, Transactions: 3,
		}
	}
	return points
}

func TestWriteAllPartitionsIntoBatches(t *testing.T) {
	tests := []struct {
		n, size, want int
	}{
		{0, 100, 0},
		{1, 100, 1},
		{100, 100, 1},
		{101, 100, 2},
		{1234, 100, 13},
		{1000, 500, 2},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.n, tt.size), func(t *testing.T) {
			sink := &fakeSink{}
			rec := &recorder{}
			opts := fastOptions()
			opts.BatchSize = tt.size
			points := makePoints(tt.n)

			s, err := WriteAll(context.Background(), sink, opts, rec, points)
			require.NoError(t, err)

			assert.Equal(t, tt.want, s.Batches)
			assert.Equal(t, tt.want, s.Succeeded)
			assert.Equal(t, tt.n, s.Points)
			assert.Equal(t, tt.n, s.PointsWritten)
			assert.True(t, s.OK())
			assert.Len(t, sink.Writes(), tt.want)
			for _, b := range rec.successes {
				assert.LessOrEqual(t, b.Len(), tt.size)
				assert.Equal(t, StateSucceeded, b.State)
			}

			// single worker: every point exactly once, in order
			assert.Equal(t, len(points), len(rec.points))
			for i := range points {
				assert.Equal(t, points[i], rec.points[i])
			}
		})
	}
}

func TestWriteAllConcurrentWorkersLoseNothing(t *testing.T) {
	sink := &fakeSink{}
	rec := &recorder{}
	opts := fastOptions()
	opts.BatchSize = 7
	opts.Workers = 4
	points := makePoints(250)

	s, err := WriteAll(context.Background(), sink, opts, rec, points)
	require.NoError(t, err)
	assert.Equal(t, 36, s.Batches)

	seen := make(map[string]int)
	for _, p := range rec.points {
		seen[p.Ticker]++
	}
	require.Len(t, seen, len(points))
	for tk, n := range seen {
		assert.Equal(t, 1, n, tk)
	}

	var lines int
	for _, w := range sink.Writes() {
		lines += strings.Count(w, "\n")
	}
	assert.Equal(t, len(points), lines)
}

func TestRetryThenSuccess(t *testing.T) {
	sink := &fakeSink{fail: func(call int, _ string) error {
		if call <= 2 {
			return errors.New("service unavailable")
		}
		return nil
	}}
	rec := &recorder{}

	s, err := WriteAll(context.Background(), sink, fastOptions(), rec, makePoints(10))
	require.NoError(t, err)

	assert.Len(t, rec.successes, 1)
	assert.Equal(t, 2, rec.retries)
	assert.Equal(t, 0, rec.errors)
	assert.Equal(t, StateSucceeded, rec.successes[0].State)
	assert.Equal(t, 3, rec.successes[0].Attempts)
	assert.Equal(t, 2, s.Retries)
	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, 0, s.Failed)
}

func TestRetryExhausted(t *testing.T) {
	sink := &fakeSink{fail: func(int, string) error { return errors.New("connection refused") }}
	rec := &recorder{}
	opts := fastOptions()

	s, err := WriteAll(context.Background(), sink, opts, rec, makePoints(10))
	require.NoError(t, err)

	assert.Equal(t, opts.MaxRetries, rec.retries)
	assert.Equal(t, 1, rec.errors)
	assert.Empty(t, rec.successes)
	assert.Equal(t, opts.MaxRetries+1, sink.Calls())
	for _, d := range rec.delays {
		assert.GreaterOrEqual(t, d, opts.RetryInterval)
		assert.LessOrEqual(t, d, opts.MaxRetryDelay)
	}

	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 10, s.PointsLost)
	require.Len(t, s.Failures, 1)
	assert.Equal(t, opts.MaxRetries+1, s.Failures[0].Attempts)
	assert.Contains(t, s.Failures[0].Reason, "connection refused")
	assert.False(t, s.OK())
}

func TestPermanentErrorIsNotRetried(t *testing.T) {
	sink := &fakeSink{fail: func(int, string) error { return Permanent(errors.New("unauthorized")) }}
	rec := &recorder{}

	s, err := WriteAll(context.Background(), sink, fastOptions(), rec, makePoints(3))
	require.NoError(t, err)
	assert.Equal(t, 0, rec.retries)
	assert.Equal(t, 1, rec.errors)
	assert.Equal(t, 1, sink.Calls())
	assert.Equal(t, 1, s.Failed)
}

func TestFailedBatchDoesNotAbortOthers(t *testing.T) {
	sink := &fakeSink{fail: func(_ int, data string) error {
		if strings.Contains(data, "ticker=T0150") {
			return errors.New("bad gateway")
		}
		return nil
	}}
	rec := &recorder{}
	opts := fastOptions()
	opts.MaxRetries = 1

	s, err := WriteAll(context.Background(), sink, opts, rec, makePoints(300))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Batches)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 200, s.PointsWritten)
	assert.Equal(t, 100, s.PointsLost)
	require.Len(t, s.Failures, 1)
	assert.Equal(t, 2, s.Failures[0].Batch)
}

func TestFlushIntervalFlushesPartialBatch(t *testing.T) {
	sink := &fakeSink{}
	opts := fastOptions()
	opts.BatchSize = 10
	opts.FlushInterval = 20 * time.Millisecond

	w := New(context.Background(), sink, opts, nil)
	require.NoError(t, w.Add(context.Background(), makePoints(3)...))

	require.Eventually(t, func() bool { return len(sink.Writes()) == 1 }, time.Second, 5*time.Millisecond)

	s := w.Close()
	assert.Equal(t, 1, s.Batches)
	assert.Equal(t, 3, s.PointsWritten)
}

func TestFlushForcesPartialBatch(t *testing.T) {
	sink := &fakeSink{}
	w := New(context.Background(), sink, fastOptions(), nil)
	require.NoError(t, w.Add(context.Background(), makePoints(5)...))
	require.NoError(t, w.Flush(context.Background()))
	require.NoError(t, w.Add(context.Background(), makePoints(5)...))

	s := w.Close()
	assert.Equal(t, 2, s.Batches)
	assert.Equal(t, 10, s.PointsWritten)
}

func TestAddAfterClose(t *testing.T) {
	w := New(context.Background(), &fakeSink{}, fastOptions(), nil)
	w.Close()
	assert.ErrorIs(t, w.Add(context.Background(), makePoints(1)...), ErrClosed)
	assert.Equal(t, 0, w.Close().Points)
}

func TestCancelledContextStopsNewBatches(t *testing.T) {
	sink := &fakeSink{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := WriteAll(ctx, sink, fastOptions(), nil, makePoints(250))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, sink.Calls())
	assert.Equal(t, 250, s.Points)
	assert.Equal(t, 250, s.Dropped)
	assert.False(t, s.OK())
}

func TestCancelDuringBackoffFailsBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &fakeSink{fail: func(int, string) error {
		cancel()
		return errors.New("timeout")
	}}
	rec := &recorder{}
	opts := fastOptions()
	opts.RetryInterval = time.Minute
	opts.MaxRetryDelay = time.Minute

	w := New(ctx, sink, opts, rec)
	require.NoError(t, w.Add(context.Background(), makePoints(100)...))
	s := w.Close()

	assert.Equal(t, 1, rec.retries)
	assert.Equal(t, 1, rec.errors)
	assert.Equal(t, 1, s.Failed)
	require.Len(t, s.Failures, 1)
	assert.Contains(t, s.Failures[0].Reason, context.Canceled.Error())
}

func TestEncodeFailureIsTerminal(t *testing.T) {
	sink := &fakeSink{}
	rec := &recorder{}
	bad := []point.StockPoint{{Ticker: "", Timestamp: 1}}

	s, err := WriteAll(context.Background(), sink, fastOptions(), rec, bad)
	require.NoError(t, err)
	assert.Equal(t, 0, sink.Calls())
	assert.Equal(t, 1, rec.errors)
	assert.Equal(t, 1, s.Failed)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "succeeded", StateSucceeded.String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateRetrying.Terminal())
}

func TestFailedReasons(t *testing.T) {
	var s Summary
	for i := 1; i <= 8; i++ {
		s.add(&Batch{ID: i, State: StateFailed, Err: errors.New("boom")})
	}
	r := s.FailedReasons()
	assert.True(t, strings.HasPrefix(r, "batch 1: boom"))
	assert.Contains(t, r, "(+3 more)")
}
