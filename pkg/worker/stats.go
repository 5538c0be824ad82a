package worker

import (
	"time"

	"github.com/screa/duco-miner/pkg/types"
)

// SummaryEvery is the number of accepted+rejected shares between summaries
const SummaryEvery = 10

// Summary reports share counters and the time since the previous summary
type Summary struct {
	Accepted uint64
	Rejected uint64
	Uptime   time.Duration
}

// Stats counts shares for one worker. Counters live for the whole process;
// only the epoch restarts at each summary.
type Stats struct {
	Accepted uint64
	Rejected uint64

	epoch time.Time
	now   func() time.Time
}

// NewStats starts the first epoch now. A nil clock means time.Now.
func NewStats(now func() time.Time) *Stats {
	if now == nil {
		now = time.Now
	}
	return &Stats{epoch: now(), now: now}
}

// Record applies fb to the counters. ok is true when the share total just
// reached a multiple of SummaryEvery.
func (s *Stats) Record(fb types.Feedback) (sum Summary, ok bool) {
	switch fb.Kind {
	case types.FeedbackAccepted:
		s.Accepted++
	case types.FeedbackRejected:
		s.Rejected++
	default:
		return Summary{}, false
	}

	total := s.Accepted + s.Rejected
	if total == 0 || total%SummaryEvery != 0 {
		return Summary{}, false
	}
	now := s.now()
	sum = Summary{
		Accepted: s.Accepted,
		Rejected: s.Rejected,
		Uptime:   now.Sub(s.epoch),
	}
	s.epoch = now
	return sum, true
}
