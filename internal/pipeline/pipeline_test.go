package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"us-ingest/internal/model"
	"us-ingest/internal/point"
	"us-ingest/internal/writer"
)

type fakeSource struct {
	records []model.Record
	err     error
}

func (s *fakeSource) GetName() string { return "Fake" }

func (s *fakeSource) Records(context.Context) ([]model.Record, error) {
	return s.records, s.err
}

func (s *fakeSource) Close() error { return nil }

type fakeStore struct {
	mu     sync.Mutex
	data   []string
	fail   error
	closed int
}

func (s *fakeStore) Write(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.data = append(s.data, string(data))
	return nil
}

func (s *fakeStore) Close() error {
	s.closed++
	return nil
}

func opener(s *fakeStore, opened *int) OpenStore {
	return func() (Store, error) {
		*opened++
		return s, nil
	}
}

func options() writer.Options {
	o := writer.DefaultOptions()
	o.BatchSize = 2
	o.RetryInterval = time.Millisecond
	o.JitterInterval = 0
	o.MaxRetryDelay = time.Millisecond
	o.MaxRetries = 1
	return o
}

func TestRunWritesPoints(t *testing.T) {
	src := &fakeSource{records: []model.Record{
		{"ticker": "AAPL", "timestamp": int64(1700000000000), "open": 190.1, "high": 191.5, "low": 189.2, "close": 191.0, "volume": 1000.0, "vwap": 190.7, "transactions": 50.0},
		{"ticker": "MSFT", "timestamp": int64(1700000000000), "open": 370.0, "close": 371.25, "volume": 2e6},
		{"ticker": "NVDA", "timestamp": int64(1700000000000), "close": 480.0},
	}}
	store := &fakeStore{}
	var opened int
	var archived []model.Record

	p := &Pipeline{
		Source:  src,
		Open:    opener(store, &opened),
		Options: options(),
		Archive: func(records []model.Record) error {
			archived = records
			return errors.New("disk full")
		},
	}
	s, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, store.closed)
	assert.Equal(t, 3, s.Points)
	assert.Equal(t, 2, s.Batches)
	assert.Equal(t, 3, s.PointsWritten)
	assert.True(t, s.OK())

	lines := strings.Split(strings.TrimSpace(strings.Join(store.data, "")), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "stocks,ticker=AAPL open=190.1,"), lines[0])
	assert.Contains(t, lines[0], "volume=1000i")
	assert.Contains(t, lines[0], "transactions=50i")
	assert.NotContains(t, lines[0], "low=")
	assert.True(t, strings.HasSuffix(lines[0], " 1700000000000000000"), lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "stocks,ticker=NVDA "), lines[2])
	assert.Contains(t, lines[2], "volume=0i")

	require.Len(t, archived, 3)
	assert.Equal(t, 0.0, archived[2][model.FieldOpen])
}

func TestRunSourceErrorIsFatal(t *testing.T) {
	var opened int
	p := &Pipeline{
		Source:  &fakeSource{err: errors.New("connection reset")},
		Open:    opener(&fakeStore{}, &opened),
		Options: options(),
	}
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Fake")
	assert.Equal(t, 0, opened)
}

func TestRunMappingErrorIsFatal(t *testing.T) {
	var opened int
	p := &Pipeline{
		Source: &fakeSource{records: []model.Record{
			{"ticker": "AAPL", "timestamp": int64(1), "open": 1.0},
			{"ticker": "MSFT", "timestamp": int64(1), "open": "abc"},
		}},
		Open:    opener(&fakeStore{}, &opened),
		Options: options(),
	}
	_, err := p.Run(context.Background())
	var me *point.MappingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, 1, me.Index)
	assert.Equal(t, model.FieldOpen, me.Field)
	assert.Equal(t, 0, opened)
}

func TestRunWriteFailuresInSummary(t *testing.T) {
	store := &fakeStore{fail: errors.New("503")}
	var opened int
	p := &Pipeline{
		Source: &fakeSource{records: []model.Record{
			{"ticker": "AAPL", "timestamp": int64(1)},
		}},
		Open:    opener(store, &opened),
		Options: options(),
	}
	s, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Retries)
	assert.Equal(t, 1, store.closed)
}

func TestRunStoreOpenError(t *testing.T) {
	p := &Pipeline{
		Source:  &fakeSource{records: []model.Record{{"ticker": "AAPL", "timestamp": int64(1)}}},
		Open:    func() (Store, error) { return nil, errors.New("bad host") },
		Options: options(),
	}
	_, err := p.Run(context.Background())
	assert.ErrorContains(t, err, "bad host")
}
