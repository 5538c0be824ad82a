package session

import (
	"context"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/screa/duco-miner/internal/config"
	"github.com/screa/duco-miner/internal/logger"
	"github.com/screa/duco-miner/pkg/backoff"
	"github.com/screa/duco-miner/pkg/hashrate"
	"github.com/screa/duco-miner/pkg/pool"
	"github.com/screa/duco-miner/pkg/protocol"
	"github.com/screa/duco-miner/pkg/solver"
	"github.com/screa/duco-miner/pkg/types"
)

// State is a step of the request/solve/submit cycle
type State int

const (
	Disconnected State = iota
	Connecting
	Handshaking
	RequestingJob
	AwaitingJob
	Solving
	Submitting
	AwaitingFeedback
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Handshaking:
		return "handshaking"
	case RequestingJob:
		return "requesting job"
	case AwaitingJob:
		return "awaiting job"
	case Solving:
		return "solving"
	case Submitting:
		return "submitting"
	case AwaitingFeedback:
		return "awaiting feedback"
	default:
		return "disconnected"
	}
}

// Share is one submitted solution together with the pool's verdict
type Share struct {
	Job      types.Job
	Solution types.Solution
	Hashrate float64
	Feedback types.Feedback
}

// Options are the per-session protocol parameters
type Options struct {
	Username   string
	Difficulty string
	MiningKey  string
	RigID      string
	RunID      types.ProcessRunID
	Solver     solver.Options
}

// OptionsFromConfig copies the protocol fields out of cfg
func OptionsFromConfig(cfg config.Config, runID types.ProcessRunID) Options {
	return Options{
		Username:   cfg.Username,
		Difficulty: cfg.Difficulty,
		MiningKey:  cfg.MiningKey,
		RigID:      cfg.RigIdentifier,
		RunID:      runID,
		Solver: solver.Options{
			Algorithm:  cfg.HashAlgorithm(),
			Multiplier: cfg.SearchMultiplier,
		},
	}
}

// Session owns one pool connection. It is not reusable: once Run returns
// the session is discarded and a new one is built.
type Session struct {
	opts    Options
	locator pool.Locator
	dialer  pool.Dialer
	backoff backoff.Policy
	log     *logger.Logger

	state  State
	conn   pool.Conn
	banner string
}

// New creates a disconnected session
func New(opts Options, locator pool.Locator, dialer pool.Dialer, policy backoff.Policy, log *logger.Logger) *Session {
	return &Session{
		opts:    opts,
		locator: locator,
		dialer:  dialer,
		backoff: policy,
		log:     log,
	}
}

// Run connects, retrying discovery and dial failures until it succeeds, then
// cycles request/solve/submit/feedback calling onShare for every verdict.
// It returns a KindSessionIO error when the connection fails, or ctx.Err()
// once ctx is done.
func (s *Session) Run(ctx context.Context, onShare func(Share)) error {
	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	s.conn = conn
	defer s.teardown()

	// unblock pending reads on shutdown
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s.handshake()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		share, err := s.cycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if share != nil && onShare != nil {
			onShare(*share)
		}
	}
}

func (s *Session) connect(ctx context.Context) (pool.Conn, error) {
	return retry.DoWithData(
		func() (pool.Conn, error) {
			s.state = Connecting
			addr, err := s.locator.Locate(ctx)
			if err != nil {
				if types.KindOf(err) == types.KindUnknown {
					err = types.NewError(types.KindDiscovery, "locate pool", err)
				}
				return nil, err
			}
			s.log.Info().Str("addr", addr).Msg("connecting")
			conn, err := s.dialer.Dial(ctx, addr)
			if err != nil {
				if types.KindOf(err) == types.KindUnknown {
					err = types.NewError(types.KindConnect, "dial "+addr, err)
				}
				return nil, err
			}
			return conn, nil
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, err error, _ *retry.Config) time.Duration {
			return s.backoff.Delay(types.KindOf(err), n)
		}),
		retry.OnRetry(func(n uint, err error) {
			s.log.Warn().Err(err).
				Stringer("kind", types.KindOf(err)).
				Uint("attempt", n+1).
				Msg("connect-failed")
		}),
	)
}

// handshake reads the version banner. A missing banner does not abort the
// session; a dead connection surfaces on the first job request instead.
func (s *Session) handshake() {
	s.state = Handshaking
	line, err := s.conn.ReadLine()
	if err != nil {
		s.log.Debug().Err(err).Msg("no-server-banner")
		return
	}
	s.banner = strings.TrimSpace(line)
	s.log.Info().
		Str("addr", s.conn.RemoteAddr()).
		Str("server_version", s.banner).
		Msg("connected")
}

// cycle runs one request/solve/submit/feedback round. A nil share with a nil
// error means the job was dropped and the next one should be requested.
func (s *Session) cycle(ctx context.Context) (*Share, error) {
	s.state = RequestingJob
	req := protocol.JobRequest(s.opts.Solver.Algorithm, s.opts.Username, s.opts.Difficulty, s.opts.MiningKey)
	if err := s.conn.WriteLine(req); err != nil {
		return nil, s.ioError(err)
	}

	s.state = AwaitingJob
	line, err := s.conn.ReadLine()
	if err != nil {
		return nil, s.ioError(err)
	}
	job, err := protocol.ParseJob(strings.TrimSpace(line))
	switch types.KindOf(err) {
	case types.KindMalformedJob:
		// re-request straight away, the connection stays up
		s.log.Debug().Err(err).Str("line", line).Msg("malformed-job")
		return nil, backoff.Sleep(ctx, s.backoff.Delay(types.KindMalformedJob, 1))
	case types.KindFieldDecode:
		s.log.Debug().Err(err).Str("line", line).Msg("job-fields-defaulted")
	}

	s.state = Solving
	sol, ok := solver.Solve(job, s.opts.Solver)
	if !ok {
		s.log.Debug().
			Str("base", job.Base).
			Uint64("difficulty", job.Difficulty).
			Msg("job-unsolved")
		return nil, nil
	}

	s.state = Submitting
	rate := hashrate.Of(sol)
	if err := s.conn.WriteLine(protocol.Submission(sol, rate, s.opts.RigID, s.opts.RunID)); err != nil {
		return nil, s.ioError(err)
	}

	s.state = AwaitingFeedback
	line, err = s.conn.ReadLine()
	if err != nil {
		return nil, s.ioError(err)
	}

	return &Share{
		Job:      job,
		Solution: sol,
		Hashrate: rate,
		Feedback: protocol.ClassifyFeedback(strings.TrimSpace(line)),
	}, nil
}

func (s *Session) ioError(err error) error {
	return types.NewError(types.KindSessionIO, s.state.String(), err)
}

func (s *Session) teardown() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = nil
	s.state = Disconnected
}
