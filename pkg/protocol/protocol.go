package protocol

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/screa/duco-miner/internal/crypto"
	"github.com/screa/duco-miner/pkg/types"
)

// ClientName is the software token sent with every submission
const ClientName = "GoDucoMiner"

// Wire tokens
const (
	jobVerb        = "JOB"
	jobVerbXXHash  = "JOBXX"
	feedbackGood   = "GOOD"
	feedbackBad    = "BAD,"
	feedbackBlock  = "BLOCK"
	jobFieldCount  = 3
	fieldSeparator = ","
)

// RequestVerb returns the job request verb that makes the pool hand out
// jobs for alg
func RequestVerb(alg crypto.Algorithm) string {
	if alg == crypto.XXHash {
		return jobVerbXXHash
	}
	return jobVerb
}

// JobRequest builds the line asking the pool for a job hashed with alg
func JobRequest(alg crypto.Algorithm, username, difficulty, miningKey string) string {
	return strings.Join([]string{RequestVerb(alg), username, difficulty, miningKey}, fieldSeparator)
}

// Submission builds the line reporting a solved nonce
func Submission(sol types.Solution, rate float64, rigID string, runID types.ProcessRunID) string {
	return fmt.Sprintf("%d,%.2f,%s,%s,%s", sol.Nonce, rate, ClientName, rigID, runID)
}

// ParseJob splits a job line into base, target and difficulty. A line without
// exactly three fields yields a KindMalformedJob error and no job. A
// KindFieldDecode error comes back together with a usable, defaulted job.
func ParseJob(line string) (types.Job, error) {
	parts := strings.Split(line, fieldSeparator)
	if len(parts) != jobFieldCount {
		return types.Job{}, types.NewError(types.KindMalformedJob, "parse job",
			fmt.Errorf("got %d fields, want %d", len(parts), jobFieldCount))
	}
	return DecodeJob(parts[0], parts[1], parts[2])
}

// DecodeJob converts raw job fields. Undecodable hex becomes an empty target and
// an unparsable difficulty becomes zero; the returned KindFieldDecode error
// describes what was masked so callers can log it.
func DecodeJob(base, targetHex, difficulty string) (types.Job, error) {
	job := types.Job{Base: base}
	var errs []error

	target, err := hex.DecodeString(targetHex)
	if err != nil {
		errs = append(errs, fmt.Errorf("target %q: %w", targetHex, err))
		target = nil
	}
	job.Target = target

	diff, err := strconv.ParseUint(difficulty, 10, 64)
	if err != nil {
		errs = append(errs, fmt.Errorf("difficulty %q: %w", difficulty, err))
		diff = 0
	}
	job.Difficulty = diff

	if len(errs) > 0 {
		return job, types.NewError(types.KindFieldDecode, "decode job", errors.Join(errs...))
	}
	return job, nil
}

// ClassifyFeedback maps a trimmed feedback line onto exactly one variant
func ClassifyFeedback(line string) types.Feedback {
	switch {
	case line == feedbackGood:
		return types.Feedback{Kind: types.FeedbackAccepted, Raw: line}
	case strings.HasPrefix(line, feedbackBad):
		return types.Feedback{Kind: types.FeedbackRejected, Reason: line[len(feedbackBad):], Raw: line}
	case line == feedbackBlock:
		return types.Feedback{Kind: types.FeedbackNewBlock, Raw: line}
	default:
		return types.Feedback{Kind: types.FeedbackOther, Raw: line}
	}
}
