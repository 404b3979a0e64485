package redis

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned for writes shed while the breaker is open.
var ErrCircuitOpen = errors.New("redis writes suspended: circuit open")

// State is the breaker position.
type State int

const (
	StateClosed   State = iota // writes pass through
	StateOpen                  // writes shed until the cooldown elapses
	StateHalfOpen              // probe write in flight
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreaker sheds publisher writes while Redis is unreachable.
// Mirrored state is best effort, so a dead server must cost one fast
// error per tick, not a dial timeout. After threshold consecutive
// failures the breaker opens; once the cooldown passes, a single probe
// write decides whether it closes again.
type CircuitBreaker struct {
	mu            sync.Mutex
	state         State
	streak        int // consecutive failures
	threshold     int
	cooldown      time.Duration
	lastFailureAt time.Time

	OnStateChange func(from, to State) // optional, called on transitions
}

// NewCircuitBreaker creates a closed breaker that trips after
// threshold consecutive failures and probes again after cooldown.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown}
}

// Execute runs one write through the breaker, shedding it with
// ErrCircuitOpen while the breaker is open inside its cooldown.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err)
	return err
}

// CurrentState returns the breaker position.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// allow admits the write, moving an open breaker to half-open once the
// cooldown has elapsed.
func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen {
		if time.Since(cb.lastFailureAt) <= cb.cooldown {
			return false
		}
		cb.transition(StateHalfOpen)
	}
	return true
}

// record books the write outcome: any failure during a probe reopens,
// a failure streak at the threshold trips, success closes and resets.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.streak++
		cb.lastFailureAt = time.Now()
		if cb.state == StateHalfOpen || cb.streak >= cb.threshold {
			cb.transition(StateOpen)
		}
		return
	}
	if cb.state == StateHalfOpen {
		cb.transition(StateClosed)
	}
	cb.streak = 0
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	if to == StateClosed {
		cb.streak = 0
	}
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}
