package hashrate

import (
	"fmt"

	"github.com/screa/duco-miner/pkg/types"
)

// Of returns nonces per second for a solution. A zero elapsed time is
// clamped to one microsecond so the rate stays finite.
func Of(sol types.Solution) float64 {
	micros := sol.ElapsedMicros()
	if micros <= 0 {
		micros = 1
	}
	return 1e6 * float64(sol.Nonce) / float64(micros)
}

// Format renders a rate with the largest unit whose threshold it reaches
func Format(rate float64) string {
	switch {
	case rate >= 1e9:
		return fmt.Sprintf("%.2f GH/s", rate/1e9)
	case rate >= 1e6:
		return fmt.Sprintf("%.2f MH/s", rate/1e6)
	case rate >= 1e3:
		return fmt.Sprintf("%.2f kH/s", rate/1e3)
	default:
		return fmt.Sprintf("%.2f H/s", rate)
	}
}
