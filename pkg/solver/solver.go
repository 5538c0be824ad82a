package solver

import (
	"bytes"
	"math"
	"time"

	"github.com/screa/duco-miner/internal/crypto"
	"github.com/screa/duco-miner/pkg/types"
)

// DefaultMultiplier bounds the search to difficulty*DefaultMultiplier nonces
const DefaultMultiplier = 100

// Options tune a search
type Options struct {
	Algorithm  crypto.Algorithm
	Multiplier uint64
}

// DefaultOptions returns DUCO-S1 with the standard bound
func DefaultOptions() Options {
	return Options{
		Algorithm:  crypto.DUCOS1,
		Multiplier: DefaultMultiplier,
	}
}

// Bound returns the highest nonce that will be tried for job. The product
// saturates at math.MaxUint64 instead of wrapping.
func (o Options) Bound(job types.Job) uint64 {
	m := o.Multiplier
	if m == 0 {
		m = DefaultMultiplier
	}
	d := job.Difficulty
	if d != 0 && m > math.MaxUint64/d {
		return math.MaxUint64
	}
	return d * m
}

// Solve searches nonces 0..Bound(job) in increasing order and returns the first
// whose hash of base+decimal(nonce) equals the job target. ok is false when the
// bound is exhausted without a match.
func Solve(job types.Job, opts Options) (sol types.Solution, ok bool) {
	start := time.Now()
	nonce, _, found := search(job, opts)
	if !found {
		return types.Solution{}, false
	}
	return types.Solution{
		Nonce:   nonce,
		Elapsed: time.Since(start),
	}, true
}

// search returns the matching nonce and the number of candidates hashed
func search(job types.Job, opts Options) (nonce, evaluated uint64, found bool) {
	bound := opts.Bound(job)
	h := crypto.NewNonceHasher(opts.Algorithm, job.Base)

	for n := uint64(0); ; n++ {
		evaluated++
		if bytes.Equal(h.Sum(n), job.Target) {
			return n, evaluated, true
		}
		if n == bound {
			return 0, evaluated, false
		}
	}
}
