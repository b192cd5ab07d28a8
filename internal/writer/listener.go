package writer

import (
	"log/slog"
	"time"
)

// Listener receives batch outcomes. Methods may be called from several
// workers at once.
type Listener interface {
	// OnSuccess is called once the store accepted the batch.
	OnSuccess(b *Batch)
	// OnRetry is called after a failed attempt, before waiting delay.
	OnRetry(b *Batch, err error, delay time.Duration)
	// OnError is called once when the batch is given up.
	OnError(b *Batch, err error)
}

// Listeners fans every event out to each listener in order.
type Listeners []Listener

func (ls Listeners) OnSuccess(b *Batch) {
	for _, l := range ls {
		l.OnSuccess(b)
	}
}

func (ls Listeners) OnRetry(b *Batch, err error, delay time.Duration) {
	for _, l := range ls {
		l.OnRetry(b, err, delay)
	}
}

func (ls Listeners) OnError(b *Batch, err error) {
	for _, l := range ls {
		l.OnError(b, err)
	}
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) OnSuccess(*Batch) {}
func (NopListener) OnRetry(*Batch, error, time.Duration) {}
func (NopListener) OnError(*Batch, error) {}

// LogListener logs batch events. The line protocol is only logged at debug.
type LogListener struct {
	Logger *slog.Logger
}

func (l LogListener) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l LogListener) OnSuccess(b *Batch) {
	l.logger().Info("batch written", "batch", b.ID, "points", b.Len(), "bytes", len(b.Data), "attempts", b.Attempts)
	l.logger().Debug("batch data", "batch", b.ID, "data", string(b.Data))
}

func (l LogListener) OnRetry(b *Batch, err error, delay time.Duration) {
	l.logger().Warn("batch write failed, retrying", "batch", b.ID, "points", b.Len(), "attempt", b.Attempts, "retry_in", delay, "error", err)
	l.logger().Debug("batch data", "batch", b.ID, "data", string(b.Data))
}

func (l LogListener) OnError(b *Batch, err error) {
	l.logger().Error("batch write failed", "batch", b.ID, "points", b.Len(), "attempts", b.Attempts, "error", err)
	l.logger().Debug("batch data", "batch", b.ID, "data", string(b.Data))
}
