package miner

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"lukechampine.com/frand"

	"github.com/screa/duco-miner/internal/config"
	"github.com/screa/duco-miner/internal/logger"
	"github.com/screa/duco-miner/pkg/backoff"
	"github.com/screa/duco-miner/pkg/pool"
	"github.com/screa/duco-miner/pkg/session"
	"github.com/screa/duco-miner/pkg/types"
	"github.com/screa/duco-miner/pkg/worker"
)

// Miner launches one worker per configured thread and waits on them
type Miner struct {
	config  config.Config
	logger  *logger.Logger
	runID   types.ProcessRunID
	locator pool.Locator
	dialer  pool.Dialer
	backoff backoff.Policy
	workers []*worker.Worker

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewProcessRunID draws a run id uniformly from [MinProcessRunID, MaxProcessRunID]
func NewProcessRunID() types.ProcessRunID {
	span := int(types.MaxProcessRunID-types.MinProcessRunID) + 1
	return types.MinProcessRunID + types.ProcessRunID(frand.Intn(span))
}

// NewMiner creates a new miner instance. The configuration is copied so
// later changes to cfg are not seen by the workers.
func NewMiner(cfg *config.Config, log *logger.Logger) (*Miner, error) {
	dialer, err := pool.NewDialer(cfg.Transport, cfg.DialTimeout, cfg.IOTimeout)
	if err != nil {
		return nil, err
	}

	var locator pool.Locator
	if cfg.PoolAddress != "" {
		locator = pool.StaticLocator(cfg.PoolAddress)
	} else {
		locator = pool.NewHTTPLocator(cfg.PoolURL, cfg.DiscoveryTimeout)
	}

	return &Miner{
		config:  *cfg,
		logger:  log,
		runID:   NewProcessRunID(),
		locator: locator,
		dialer:  dialer,
		backoff: backoff.FromConfig(cfg.Backoff),
	}, nil
}

// startedWorkers returns the workers launched by the last Mine call
func (m *Miner) startedWorkers() []*worker.Worker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workers
}

// Mine starts the workers and blocks until every one of them has returned,
// which only happens once ctx is done or Stop is called.
func (m *Miner) Mine(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.logger.Info().
		Int("workers", m.config.ThreadCount).
		Stringer("run_id", m.runID).
		Str("pool", m.config.PoolDescription()).
		Str("algorithm", string(m.config.HashAlgorithm())).
		Msg("mining-started")

	opts := session.OptionsFromConfig(m.config, m.runID)
	workers := make([]*worker.Worker, m.config.ThreadCount)
	for i := range workers {
		workers[i] = worker.NewWorker(i, opts, m.locator, m.dialer, m.backoff, m.logger)
	}

	m.mu.Lock()
	m.cancel = cancel
	m.workers = workers
	m.mu.Unlock()

	var g errgroup.Group
	for _, w := range workers {
		w := w
		g.Go(func() error {
			return w.Run(ctx)
		})
	}

	err := g.Wait()

	// every worker has returned, their counters are stable now
	var accepted, rejected uint64
	for _, w := range workers {
		accepted += w.Stats().Accepted
		rejected += w.Stats().Rejected
	}
	m.logger.Info().
		Uint64("accepted", accepted).
		Uint64("rejected", rejected).
		Msg("mining-stopped")
	return err
}

// Stop stops the mining process
func (m *Miner) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
}
