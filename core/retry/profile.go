package retry

import (
	"strings"
	"time"
)

// Profile is a named retry preset. Instances are read-only process-wide
// configuration, safe for concurrent use.
type Profile struct {
	Name              string
	MaxRetries        int
	MaxRequotes       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool
}

var (
	// ProfileAuto is the balanced default.
	ProfileAuto = Profile{
		Name:              "auto",
		MaxRetries:        5,
		MaxRequotes:       2,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2,
		Jitter:            true,
	}

	// ProfileFast gives up quickly so the caller can requote at fresh prices.
	ProfileFast = Profile{
		Name:              "fast",
		MaxRetries:        2,
		MaxRequotes:       1,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          2 * time.Second,
		BackoffMultiplier: 2,
		Jitter:            false,
	}

	// ProfileCheap waits out congestion instead of paying for priority.
	ProfileCheap = Profile{
		Name:              "cheap",
		MaxRetries:        3,
		MaxRequotes:       1,
		InitialDelay:      1000 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
		Jitter:            true,
	}
)

// ProfileByName resolves a profile from its wire name, falling back to auto.
func ProfileByName(name string) Profile {
	switch strings.ToLower(name) {
	case "fast":
		return ProfileFast
	case "cheap":
		return ProfileCheap
	default:
		return ProfileAuto
	}
}

// ExecutionBudget is the worst-case wall time one execution may spend waiting
// between attempts, used as the engine-level timeout.
func (p Profile) ExecutionBudget() time.Duration {
	budget := time.Duration(0)
	for i := 0; i < p.MaxRetries+p.MaxRequotes; i++ {
		budget += BackoffDelay(i, p, 0)
	}
	// headroom for the network calls themselves
	return budget + time.Duration(p.MaxRetries+p.MaxRequotes+1)*30*time.Second
}
