package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/screa/duco-miner/internal/config"
	"github.com/screa/duco-miner/internal/logger"
	"github.com/screa/duco-miner/internal/pooltest"
	"github.com/screa/duco-miner/pkg/backoff"
	"github.com/screa/duco-miner/pkg/pool"
	"github.com/screa/duco-miner/pkg/session"
	"github.com/screa/duco-miner/pkg/solver"
	"github.com/screa/duco-miner/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastBackoff = backoff.FromConfig(config.Backoff{
	Discovery: time.Millisecond,
	Connect:   time.Millisecond,
	Session:   time.Millisecond,
})

func testOptions() session.Options {
	return session.Options{
		Username:   "alice",
		Difficulty: "LOW",
		RigID:      "rig",
		RunID:      types.ProcessRunID(20000),
		Solver:     solver.DefaultOptions(),
	}
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func TestStatsSummaryEveryTenShares(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := NewStats(clock.now)

	accepted := types.Feedback{Kind: types.FeedbackAccepted}
	rejected := types.Feedback{Kind: types.FeedbackRejected, Reason: "low"}

	summaries := 0
	for i := 0; i < 10; i++ {
		clock.t = clock.t.Add(time.Second)
		fb := accepted
		if i%3 == 0 {
			fb = rejected
		}
		if sum, ok := s.Record(fb); ok {
			summaries++
			assert.Equal(t, uint64(6), sum.Accepted)
			assert.Equal(t, uint64(4), sum.Rejected)
			assert.Equal(t, 10*time.Second, sum.Uptime)
		}
	}
	assert.Equal(t, 1, summaries)

	// new epoch starts at the summary, counters carry on
	clock.t = clock.t.Add(3 * time.Second)
	for i := 0; i < 9; i++ {
		_, ok := s.Record(accepted)
		assert.False(t, ok)
	}
	sum, ok := s.Record(rejected)
	require.True(t, ok)
	assert.Equal(t, uint64(15), sum.Accepted)
	assert.Equal(t, uint64(5), sum.Rejected)
	assert.Equal(t, 3*time.Second, sum.Uptime)
}

func TestStatsIgnoresBlockAndOther(t *testing.T) {
	s := NewStats(nil)
	for i := 0; i < 10; i++ {
		s.Record(types.Feedback{Kind: types.FeedbackAccepted})
	}
	_, ok := s.Record(types.Feedback{Kind: types.FeedbackNewBlock})
	assert.False(t, ok)
	_, ok = s.Record(types.Feedback{Kind: types.FeedbackOther, Raw: "WEIRD123"})
	assert.False(t, ok)
	assert.Equal(t, uint64(10), s.Accepted)
	assert.Equal(t, uint64(0), s.Rejected)
}

// servePool hands out one solvable job per connection, answers with
// feedback and reports once the miner asked for the following job.
func servePool(t *testing.T, feedback string, served chan<- int, hangUp bool) *pooltest.Server {
	var conns atomic.Int32
	return pooltest.NewServer(t, func(p *pooltest.Peer) {
		n := int(conns.Add(1))
		_ = p.Send("3.0")
		if _, err := p.Recv(); err != nil {
			return
		}
		_ = p.Send(pooltest.JobLine("seed1", 42, 100))
		if _, err := p.Recv(); err != nil {
			return
		}
		_ = p.Send(feedback)
		if _, err := p.Recv(); err != nil {
			return
		}
		select {
		case served <- n:
		default:
		}
		if hangUp {
			return
		}
		for {
			if _, err := p.Recv(); err != nil {
				return
			}
		}
	})
}

func runWorker(w *Worker) (cancel func() error) {
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return func() error {
		stop()
		return <-done
	}
}

func TestWorkerAcceptedShare(t *testing.T) {
	served := make(chan int, 1)
	srv := servePool(t, "GOOD", served, false)

	var buf bytes.Buffer
	var mu sync.Mutex
	w := NewWorker(0, testOptions(), pool.StaticLocator(srv.Addr), pool.TCPDialer{Timeout: time.Second},
		fastBackoff, logger.NewWriter(&lockedWriter{w: &buf, mu: &mu}))
	stop := runWorker(w)

	select {
	case <-served:
	case <-time.After(10 * time.Second):
		t.Fatal("no share served")
	}
	require.NoError(t, stop())

	assert.Equal(t, uint64(1), w.Stats().Accepted)
	assert.Equal(t, uint64(0), w.Stats().Rejected)
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, buf.String(), "share-accepted")
	assert.Contains(t, buf.String(), `"worker":0`)
}

func TestWorkerCountersSurviveReconnect(t *testing.T) {
	served := make(chan int, 2)
	srv := servePool(t, "BAD,too slow", served, true)

	w := NewWorker(1, testOptions(), pool.StaticLocator(srv.Addr), pool.TCPDialer{Timeout: time.Second},
		fastBackoff, logger.NewWriter(io.Discard))
	stop := runWorker(w)

	for i := 0; i < 2; i++ {
		select {
		case <-served:
		case <-time.After(10 * time.Second):
			t.Fatal("worker did not reconnect")
		}
	}
	require.NoError(t, stop())
	assert.GreaterOrEqual(t, w.Stats().Rejected, uint64(2))
	assert.GreaterOrEqual(t, w.sessions, uint64(2))
}

type panickyLocator struct {
	addr  string
	calls atomic.Int32
}

func (l *panickyLocator) Locate(ctx context.Context) (string, error) {
	if l.calls.Add(1) == 1 {
		panic("locator exploded")
	}
	return l.addr, nil
}

func TestWorkerRecoversFromPanic(t *testing.T) {
	served := make(chan int, 1)
	srv := servePool(t, "GOOD", served, false)

	loc := &panickyLocator{addr: srv.Addr}
	w := NewWorker(2, testOptions(), loc, pool.TCPDialer{Timeout: time.Second},
		fastBackoff, logger.NewWriter(io.Discard))
	stop := runWorker(w)

	select {
	case <-served:
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
	require.NoError(t, stop())
	assert.Equal(t, uint64(1), w.Stats().Accepted)
	assert.GreaterOrEqual(t, loc.calls.Load(), int32(2))
}

func TestRunSessionReturnsPanicAsError(t *testing.T) {
	w := NewWorker(3, testOptions(), &panickyLocator{}, pool.TCPDialer{}, fastBackoff, logger.NewWriter(io.Discard))
	err := w.runSession(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locator exploded")
}

type lockedWriter struct {
	w  io.Writer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func logEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var e map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestHandleShareLogsRecordedCounters(t *testing.T) {
	var buf bytes.Buffer
	w := NewWorker(4, testOptions(), pool.StaticLocator("unused:1"), pool.TCPDialer{}, fastBackoff, logger.NewWriter(&buf))

	for i := 0; i < 7; i++ {
		w.handleShare(session.Share{Feedback: types.Feedback{Kind: types.FeedbackAccepted}, Hashrate: 1500})
	}
	for i := 0; i < 3; i++ {
		w.handleShare(session.Share{Feedback: types.Feedback{Kind: types.FeedbackRejected, Reason: "stale"}})
	}
	w.handleShare(session.Share{Feedback: types.Feedback{Kind: types.FeedbackNewBlock}})

	var accepted, rejected []float64
	summaries := 0
	for _, e := range logEntries(t, &buf) {
		switch e["message"] {
		case "share-accepted":
			accepted = append(accepted, e["accepted"].(float64))
			assert.Equal(t, "1.50 kH/s", e["hashrate"])
		case "share-rejected":
			rejected = append(rejected, e["rejected"].(float64))
			assert.Equal(t, "stale", e["reason"])
		case "shares-summary":
			summaries++
			assert.Equal(t, float64(7), e["accepted"])
			assert.Equal(t, float64(3), e["rejected"])
		}
	}
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7}, accepted)
	assert.Equal(t, []float64{1, 2, 3}, rejected)
	assert.Equal(t, 1, summaries)
	assert.Equal(t, uint64(7), w.Stats().Accepted)
	assert.Equal(t, uint64(3), w.Stats().Rejected)
}
