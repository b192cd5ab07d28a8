package writer

import (
	"log/slog"
	"time"
)

func (w *Writer) runHeartbeat(interval time.Duration, logger *slog.Logger) {
	defer w.bg.Done()
	if interval <= 0 {
		<-w.stopHeartbeat
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopHeartbeat:
			return
		case <-ticker.C:
			s := w.Snapshot()
			logger.Info("heartbeat",
				"batches", s.Batches, "succeeded", s.Succeeded, "failed", s.Failed,
				"retries", s.Retries, "points_written", s.PointsWritten, "received", w.received.Load())
		}
	}
}
