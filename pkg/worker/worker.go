package worker

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/screa/duco-miner/internal/logger"
	"github.com/screa/duco-miner/pkg/backoff"
	"github.com/screa/duco-miner/pkg/hashrate"
	"github.com/screa/duco-miner/pkg/pool"
	"github.com/screa/duco-miner/pkg/session"
	"github.com/screa/duco-miner/pkg/types"
)

// Worker drives sessions against the pool one after another, forever
type Worker struct {
	id      int
	opts    session.Options
	locator pool.Locator
	dialer  pool.Dialer
	backoff backoff.Policy
	logger  *logger.Logger
	stats   *Stats

	// sessions counts sessions started, for logging
	sessions uint64
}

// NewWorker creates a new worker instance
func NewWorker(id int, opts session.Options, locator pool.Locator, dialer pool.Dialer, policy backoff.Policy, log *logger.Logger) *Worker {
	return &Worker{
		id:      id,
		opts:    opts,
		locator: locator,
		dialer:  dialer,
		backoff: policy,
		logger:  log.Worker(id),
		stats:   NewStats(nil),
	}
}

// Stats returns the worker's share counters. Only read it once Run has returned.
func (w *Worker) Stats() *Stats {
	return w.stats
}

// Run keeps a session alive until ctx is done. Session failures, panics
// included, are logged and followed by the session backoff delay.
func (w *Worker) Run(ctx context.Context) error {
	for {
		err := w.runSession(ctx)
		if ctx.Err() != nil {
			w.logger.Debug().Msg("worker-stopped")
			return nil
		}

		kind := types.KindOf(err)
		w.logger.Warn().Err(err).Stringer("kind", kind).Msg("lost-connection-reconnecting")
		if err := backoff.Sleep(ctx, w.backoff.Delay(types.KindSessionIO, 1)); err != nil {
			return nil
		}
	}
}

func (w *Worker) runSession(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("worker-panic-recovered")
			err = fmt.Errorf("worker %d: panic: %v", w.id, r)
		}
	}()

	w.sessions++
	w.logger.Debug().Uint64("session", w.sessions).Msg("session-start")
	s := session.New(w.opts, w.locator, w.dialer, w.backoff, w.logger)
	return s.Run(ctx, w.handleShare)
}

func (w *Worker) handleShare(share session.Share) {
	fb := share.Feedback
	sum, summary := w.stats.Record(fb)

	switch fb.Kind {
	case types.FeedbackAccepted:
		w.logger.Info().
			Str("hashrate", hashrate.Format(share.Hashrate)).
			Uint64("accepted", w.stats.Accepted).
			Msg("share-accepted")
	case types.FeedbackRejected:
		w.logger.Warn().
			Str("reason", fb.Reason).
			Uint64("rejected", w.stats.Rejected).
			Msg("share-rejected")
	case types.FeedbackNewBlock:
		w.logger.Info().Str("hashrate", hashrate.Format(share.Hashrate)).Msg("new-block")
	default:
		w.logger.Info().Str("feedback", fb.Raw).Msg("pool-message")
	}

	if summary {
		w.logger.Info().
			Uint64("accepted", sum.Accepted).
			Uint64("rejected", sum.Rejected).
			Str("uptime", fmt.Sprintf("%.1fs", sum.Uptime.Seconds())).
			Msg("shares-summary")
	}
}
