package backoff

import (
	"context"
	"time"

	"github.com/screa/duco-miner/internal/config"
	"github.com/screa/duco-miner/pkg/types"
)

// Policy decides how long to wait after a failure of the given kind.
// attempt counts consecutive failures, starting at 1.
type Policy interface {
	Delay(kind types.ErrorKind, attempt uint) time.Duration
}

// Fixed waits a constant duration per error kind regardless of attempt.
// Kinds without an entry wait Fallback.
type Fixed struct {
	Delays   map[types.ErrorKind]time.Duration
	Fallback time.Duration
}

// Default returns the stock delays: 5s discovery, 3s connect, 2s session,
// no wait for malformed jobs.
func Default() Fixed {
	return FromConfig(config.NewConfig().Backoff)
}

// FromConfig builds a fixed policy from configured delays
func FromConfig(b config.Backoff) Fixed {
	return Fixed{
		Delays: map[types.ErrorKind]time.Duration{
			types.KindDiscovery:    b.Discovery,
			types.KindConnect:      b.Connect,
			types.KindSessionIO:    b.Session,
			types.KindMalformedJob: 0,
		},
		Fallback: b.Session,
	}
}

// Delay implements Policy
func (f Fixed) Delay(kind types.ErrorKind, _ uint) time.Duration {
	if d, ok := f.Delays[kind]; ok {
		return d
	}
	return f.Fallback
}

// Sleep waits for d or until ctx is done, whichever comes first
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
