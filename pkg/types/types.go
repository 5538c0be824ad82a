package types

import (
	"strconv"
	"time"
)

// ProcessRunID correlates the shares submitted by every worker of one process run.
// It is drawn once at startup and passed by value afterwards.
type ProcessRunID uint32

// Bounds of the ProcessRunID range, inclusive.
const (
	MinProcessRunID ProcessRunID = 10000
	MaxProcessRunID ProcessRunID = 99999
)

func (id ProcessRunID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Job represents one unit of work handed out by the pool
type Job struct {
	Base       string
	Target     []byte
	Difficulty uint64
}

// Solution represents a nonce that satisfies a Job
type Solution struct {
	Nonce   uint64
	Elapsed time.Duration
}

// ElapsedMicros returns the search time with microsecond resolution.
func (s Solution) ElapsedMicros() int64 {
	return s.Elapsed.Microseconds()
}

// FeedbackKind enumerates the pool's verdicts on a submitted share
type FeedbackKind int

const (
	FeedbackOther FeedbackKind = iota
	FeedbackAccepted
	FeedbackRejected
	FeedbackNewBlock
)

func (k FeedbackKind) String() string {
	switch k {
	case FeedbackAccepted:
		return "accepted"
	case FeedbackRejected:
		return "rejected"
	case FeedbackNewBlock:
		return "block"
	default:
		return "other"
	}
}

// Feedback is the classified response line that follows a submission.
// Reason is set for rejections, Raw holds the untouched line for Other.
type Feedback struct {
	Kind   FeedbackKind
	Reason string
	Raw    string
}
