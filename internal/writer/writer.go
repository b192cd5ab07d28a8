// Package writer buffers points and writes them to a store in bounded
// batches, retrying transient failures with jittered exponential backoff.
package writer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"us-ingest/internal/point"
)

// Sink is the store side of the writer. Write sends one serialized batch.
// Errors wrapped with Permanent are not retried.
type Sink interface {
	Write(ctx context.Context, data []byte) error
}

// Writer accumulates points and dispatches full batches to a pool of
// workers. A partial batch is flushed once its oldest point has waited
// FlushInterval. Add blocks while every worker is busy.
type Writer struct {
	ctx      context.Context
	sink     Sink
	opts     Options
	listener Listener
	jitter   func(time.Duration) time.Duration

	mu     sync.Mutex
	buf    []point.StockPoint
	oldest time.Time
	nextID int
	closed bool

	kick          chan struct{}
	batches       chan *Batch
	results       chan *Batch
	stopFlusher   chan struct{}
	stopHeartbeat chan struct{}

	senders     sync.WaitGroup
	flusherWg   sync.WaitGroup
	workers     sync.WaitGroup
	collectorWg sync.WaitGroup
	bg          sync.WaitGroup

	received atomic.Int64
	dropped  atomic.Int64

	statsMu sync.Mutex
	summary Summary

	closeOnce sync.Once
}

// New starts a writer. ctx bounds the run: once it is done no new batch is
// dispatched and batches waiting for a retry give up. Writes already in
// flight are not interrupted.
func New(ctx context.Context, sink Sink, opts Options, listener Listener) *Writer {
	return newWriter(ctx, sink, opts, listener, randomJitter)
}

func newWriter(ctx context.Context, sink Sink, opts Options, listener Listener, jitter func(time.Duration) time.Duration) *Writer {
	opts = opts.sanitize()
	if listener == nil {
		listener = NopListener{}
	}
	w := &Writer{
		ctx:           ctx,
		sink:          sink,
		opts:          opts,
		listener:      listener,
		jitter:        jitter,
		buf:           make([]point.StockPoint, 0, opts.BatchSize),
		kick:          make(chan struct{}, 1),
		batches:       make(chan *Batch, opts.Workers),
		results:       make(chan *Batch, opts.Workers),
		stopFlusher:   make(chan struct{}),
		stopHeartbeat: make(chan struct{}),
	}

	w.workers.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go w.runWorker()
	}
	w.collectorWg.Add(1)
	go w.runCollector()
	w.flusherWg.Add(1)
	go w.runFlusher()
	w.bg.Add(1)
	go w.runHeartbeat(opts.HeartbeatInterval, slog.Default())
	return w
}

// Add buffers points, dispatching a batch each time BatchSize is reached.
// When ctx is done the remaining points are dropped and ctx.Err is returned.
func (w *Writer) Add(ctx context.Context, points ...point.StockPoint) error {
	w.received.Add(int64(len(points)))
	for len(points) > 0 {
		if err := ctx.Err(); err != nil {
			w.dropped.Add(int64(len(points)))
			return err
		}

		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			w.received.Add(-int64(len(points)))
			return ErrClosed
		}
		if len(w.buf) == 0 {
			w.oldest = time.Now()
			w.signalFlusher()
		}
		n := min(w.opts.BatchSize-len(w.buf), len(points))
		w.buf = append(w.buf, points[:n]...)
		points = points[n:]
		var b *Batch
		if len(w.buf) >= w.opts.BatchSize {
			b = w.takeLocked()
		}
		w.mu.Unlock()

		if b != nil {
			if err := w.send(ctx, b); err != nil {
				w.dropped.Add(int64(len(points)))
				return err
			}
		}
	}
	return nil
}

// Flush dispatches the buffered points now, whatever their age.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	if w.closed || len(w.buf) == 0 {
		w.mu.Unlock()
		return nil
	}
	b := w.takeLocked()
	w.mu.Unlock()
	return w.send(ctx, b)
}

// Close flushes the remaining points, waits for every batch to reach a
// terminal state and returns the run summary. It is safe to call twice.
func (w *Writer) Close() Summary {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		var b *Batch
		if len(w.buf) > 0 {
			b = w.takeLocked()
		}
		w.mu.Unlock()

		close(w.stopFlusher)
		w.flusherWg.Wait()
		if b != nil {
			_ = w.send(w.ctx, b)
		}
		w.senders.Wait()
		close(w.batches)
		w.workers.Wait()
		close(w.results)
		w.collectorWg.Wait()
		close(w.stopHeartbeat)
		w.bg.Wait()
	})

	s := w.Snapshot()
	s.Points = int(w.received.Load())
	s.Dropped = int(w.dropped.Load())
	return s
}

// Snapshot returns the outcomes collected so far.
func (w *Writer) Snapshot() Summary {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	s := w.summary
	s.Failures = append([]BatchFailure(nil), w.summary.Failures...)
	return s
}

// WriteAll writes points through a fresh writer and closes it.
// The error is only set when ctx ended before every point was dispatched;
// failed batches are reported in the summary.
func WriteAll(ctx context.Context, sink Sink, opts Options, listener Listener, points []point.StockPoint) (Summary, error) {
	w := New(ctx, sink, opts, listener)
	err := w.Add(ctx, points...)
	return w.Close(), err
}

// takeLocked moves the buffer into a new pending batch. Callers hold mu and
// must pass the batch to send.
func (w *Writer) takeLocked() *Batch {
	w.nextID++
	b := &Batch{
		ID:     w.nextID,
		Points: w.buf,
		State:  StatePending,
	}
	w.buf = make([]point.StockPoint, 0, w.opts.BatchSize)
	w.senders.Add(1)
	return b
}

func (w *Writer) send(ctx context.Context, b *Batch) error {
	defer w.senders.Done()
	if err := ctx.Err(); err != nil {
		w.dropped.Add(int64(b.Len()))
		return err
	}
	select {
	case w.batches <- b:
		return nil
	case <-ctx.Done():
		w.dropped.Add(int64(b.Len()))
		return ctx.Err()
	}
}

func (w *Writer) signalFlusher() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

func (w *Writer) runFlusher() {
	defer w.flusherWg.Done()
	for {
		var b *Batch
		var due <-chan time.Time

		w.mu.Lock()
		if len(w.buf) > 0 && !w.closed {
			wait := time.Until(w.oldest.Add(w.opts.FlushInterval))
			if wait <= 0 {
				b = w.takeLocked()
			} else {
				due = time.After(wait)
			}
		}
		w.mu.Unlock()

		if b != nil {
			_ = w.send(w.ctx, b)
			continue
		}

		select {
		case <-w.stopFlusher:
			return
		case <-w.kick:
		case <-due:
		}
	}
}

func (w *Writer) runWorker() {
	defer w.workers.Done()
	for b := range w.batches {
		w.process(b)
		w.results <- b
	}
}

func (w *Writer) runCollector() {
	defer w.collectorWg.Done()
	for b := range w.results {
		w.statsMu.Lock()
		w.summary.add(b)
		w.statsMu.Unlock()
	}
}

// process drives one batch to a terminal state.
func (w *Writer) process(b *Batch) {
	data, err := point.EncodeLines(b.Points)
	if err != nil {
		w.fail(b, Permanent(fmt.Errorf("encode batch: %w", err)))
		return
	}
	b.Data = data

	for attempt := 0; ; attempt++ {
		b.State = StateInFlight
		b.Attempts++
		err := w.write(b.Data)
		if err == nil {
			b.State = StateSucceeded
			b.Err = nil
			w.listener.OnSuccess(b)
			return
		}
		if IsPermanent(err) || attempt >= w.opts.MaxRetries {
			w.fail(b, err)
			return
		}

		delay := w.opts.RetryDelay(attempt, w.jitter(w.opts.JitterInterval))
		b.State = StateRetrying
		b.Retries++
		b.Err = err
		w.listener.OnRetry(b, err, delay)

		if werr := w.wait(delay); werr != nil {
			w.fail(b, fmt.Errorf("%w (last error: %v)", werr, err))
			return
		}
	}
}

func (w *Writer) fail(b *Batch, err error) {
	b.State = StateFailed
	b.Err = err
	w.listener.OnError(b, err)
}

// write runs one attempt. The run context's cancellation is not passed on
// so an attempt already started is allowed to finish.
func (w *Writer) write(data []byte) error {
	ctx := context.WithoutCancel(w.ctx)
	if w.opts.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.WriteTimeout)
		defer cancel()
	}
	return w.sink.Write(ctx, data)
}

func (w *Writer) wait(d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-w.ctx.Done():
		return w.ctx.Err()
	case <-t.C:
		return nil
	}
}
