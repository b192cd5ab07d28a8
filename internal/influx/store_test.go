package influx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/InfluxCommunity/influxdb3-go/v2/influxdb3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"us-ingest/internal/writer"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		status    int
		permanent bool
	}{
		{400, true},
		{401, true},
		{403, true},
		{404, true},
		{413, true},
		{422, true},
		{429, false},
		{500, false},
		{503, false},
	}
	for _, tt := range tests {
		err := fmt.Errorf("write: %w", &influxdb3.ServerError{StatusCode: tt.status, Message: "nope"})
		got := classify(err)
		assert.Equal(t, tt.permanent, writer.IsPermanent(got), "status %d", tt.status)
		var se *influxdb3.ServerError
		assert.True(t, errors.As(got, &se), "status %d", tt.status)
	}
}

func TestClassifyTransportError(t *testing.T) {
	err := errors.New("dial tcp: connection refused")
	assert.False(t, writer.IsPermanent(classify(err)))
}

func TestOpenRequiresHostAndDatabase(t *testing.T) {
	_, err := Open(Config{Database: "stocks"})
	require.Error(t, err)
	_, err = Open(Config{Host: "http://localhost:8181"})
	require.Error(t, err)
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{Host: "http://localhost:8181", Token: "t", Database: "stocks"})
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestStoreWriteStatus(t *testing.T) {
	tests := []struct {
		status    int
		ok        bool
		permanent bool
	}{
		{http.StatusNoContent, true, false},
		{http.StatusBadRequest, false, true},
		{http.StatusUnauthorized, false, true},
		{http.StatusServiceUnavailable, false, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls atomic.Int32
			var body, bucket, auth string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				b, _ := io.ReadAll(r.Body)
				body = string(b)
				bucket = r.URL.Query().Get("bucket")
				auth = r.Header.Get("Authorization")
				if tt.status != http.StatusNoContent {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(tt.status)
					_, _ = w.Write([]byte(`{"code":"invalid","message":"rejected"}`))
					return
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			s, err := Open(Config{Host: srv.URL, Token: "secret", Database: "stocks"})
			require.NoError(t, err)
			defer s.Close()

			line := "stocks,ticker=AAPL close=100.5 1700000000000000\n"
			err = s.Write(context.Background(), []byte(line))

			assert.Equal(t, int32(1), calls.Load())
			assert.Equal(t, line, body)
			assert.Equal(t, "stocks", bucket)
			assert.Contains(t, auth, "secret")
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.permanent, writer.IsPermanent(err))
			var se *influxdb3.ServerError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Contains(t, err.Error(), "stocks")
		})
	}
}

func TestStoreWriteTransportErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s, err := Open(Config{Host: url, Token: "t", Database: "stocks"})
	require.NoError(t, err)
	defer s.Close()

	err = s.Write(context.Background(), []byte("stocks,ticker=AAPL close=1 1\n"))
	require.Error(t, err)
	assert.False(t, writer.IsPermanent(err))
}
