package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/flowmintdao/solana_swap_engine/core/errclass"
)

// State tracks one execution's retry history. It is local to a single
// execution and never shared across goroutines. Attempts and Requotes only
// ever grow.
type State struct {
	Attempts int
	Requotes int
	Errors   []errclass.ClassifiedError
	Start    time.Time
}

func NewState() *State {
	return &State{Start: time.Now()}
}

// RecordFailure notes a failed attempt and bumps the relevant counters.
func (s *State) RecordFailure(ce errclass.ClassifiedError) {
	s.Errors = append(s.Errors, ce)
	s.Attempts++
	if ce.RequiresRequote {
		s.Requotes++
	}
}

// LastError returns the most recent classified failure, if any.
func (s *State) LastError() (errclass.ClassifiedError, bool) {
	if len(s.Errors) == 0 {
		return errclass.ClassifiedError{}, false
	}
	return s.Errors[len(s.Errors)-1], true
}

type Decision struct {
	Retry  bool
	Delay  time.Duration
	Reason string
}

// Decide applies the retry policy in fixed order: fatal short-circuits,
// then the requote ceiling, then the attempt ceiling.
func Decide(ce errclass.ClassifiedError, st *State, p Profile) Decision {
	if ce.Category == errclass.CategoryFatal {
		return Decision{Retry: false, Reason: "Fatal error, not retryable"}
	}

	if ce.RequiresRequote && st.Requotes >= p.MaxRequotes {
		return Decision{Retry: false, Reason: "Max requotes exceeded"}
	}

	if st.Attempts >= p.MaxRetries {
		return Decision{Retry: false, Reason: "Max retries exceeded"}
	}

	return Decision{Retry: true, Delay: BackoffDelay(st.Attempts, p, ce.SuggestedDelay)}
}

// BackoffDelay computes the wait before attempt+1. An upstream-suggested
// delay wins but is clamped to the profile ceiling. Jitter adds up to 20%
// without ever exceeding MaxDelay.
func BackoffDelay(attempt int, p Profile, suggested time.Duration) time.Duration {
	if suggested > 0 {
		if suggested > p.MaxDelay {
			return p.MaxDelay
		}
		return suggested
	}

	delay := time.Duration(float64(p.InitialDelay) * math.Pow(p.BackoffMultiplier, float64(attempt)))
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}

	if p.Jitter {
		delay += time.Duration(rand.Int63n(int64(delay)/5 + 1))
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return delay
}

// Sleep waits for d with a cancellable timer so an engine-level timeout can
// abort a pending retry wait.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
