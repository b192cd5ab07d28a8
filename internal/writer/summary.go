package writer

import (
	"fmt"
	"strings"
)

// BatchFailure describes a batch that was given up.
type BatchFailure struct {
	Batch    int    `json:"batch"`
	Points   int    `json:"points"`
	Attempts int    `json:"attempts"`
	Reason   string `json:"reason"`
}

// Summary aggregates every batch of one writer.
type Summary struct {
	Points        int            `json:"points"`
	Batches       int            `json:"batches"`
	Succeeded     int            `json:"succeeded"`
	Failed        int            `json:"failed"`
	Retries       int            `json:"retries"`
	PointsWritten int            `json:"points_written"`
	PointsLost    int            `json:"points_lost"`
	Dropped       int            `json:"dropped"`
	Failures      []BatchFailure `json:"failures,omitempty"`
}

// OK reports whether every point reached the store.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Dropped == 0
}

// add folds a finished batch into the summary.
func (s *Summary) add(b *Batch) {
	s.Batches++
	s.Retries += b.Retries
	switch b.State {
	case StateSucceeded:
		s.Succeeded++
		s.PointsWritten += b.Len()
	default:
		s.Failed++
		s.PointsLost += b.Len()
		reason := "unknown"
		if b.Err != nil {
			reason = b.Err.Error()
		}
		s.Failures = append(s.Failures, BatchFailure{
			Batch:    b.ID,
			Points:   b.Len(),
			Attempts: b.Attempts,
			Reason:   reason,
		})
	}
}

// FailedReasons joins the first few failure reasons for a log line.
func (s Summary) FailedReasons() string {
	if len(s.Failures) == 0 {
		return ""
	}
	var b strings.Builder
	for i, f := range s.Failures {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "batch %d: %s", f.Batch, f.Reason)
		if i >= 4 && len(s.Failures) > 6 {
			fmt.Fprintf(&b, " (+%d more)", len(s.Failures)-5)
			break
		}
	}
	return b.String()
}
