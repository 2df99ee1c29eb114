// Package resilience guards calls to upstream data sources with a circuit
// breaker so a failing upstream is not hammered by every estimate request.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// State is the state of a Breaker.
type State int

const (
	// Closed lets calls through.
	Closed State = iota
	// Open rejects calls until the cooldown elapses.
	Open
	// HalfOpen lets one probe through to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when a call is rejected because the breaker is open.
var ErrOpen = eris.New("upstream circuit is open")

// BreakerOptions controls a Breaker.
type BreakerOptions struct {
	// Threshold is the number of consecutive failures that opens the
	// breaker. Default: 5.
	Threshold int
	// Cooldown is how long the breaker stays open before a probe. Default: 30s.
	Cooldown time.Duration
	// ShouldTrip reports whether a non-nil err counts as a failure. Nil
	// counts every error. Cancelled calls are never recorded either way.
	ShouldTrip func(err error) bool
	// OnStateChange is called with the lock held on every transition.
	OnStateChange func(from, to State)
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	opts BreakerOptions

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
	nowFunc  func() time.Time
}

// NewBreaker creates a closed Breaker.
func NewBreaker(opts BreakerOptions) *Breaker {
	if opts.Threshold <= 0 {
		opts.Threshold = 5
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Second
	}
	if opts.ShouldTrip == nil {
		opts.ShouldTrip = defaultShouldTrip
	}
	return &Breaker{opts: opts, nowFunc: time.Now}
}

func defaultShouldTrip(err error) bool {
	return err != nil
}

// Do runs fn unless the breaker is open, and records its outcome.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// DoVal is Do for functions that return a value.
func DoVal[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var val T
	err := b.Do(ctx, func(ctx context.Context) error {
		var err error
		val, err = fn(ctx)
		return err
	})
	return val, err
}

// State returns the current state. An open breaker whose cooldown has
// elapsed reports HalfOpen.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.nowFunc().Sub(b.openedAt) >= b.opts.Cooldown {
		return HalfOpen
	}
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.nowFunc().Sub(b.openedAt) < b.opts.Cooldown {
			return ErrOpen
		}
		b.transition(HalfOpen)
		b.probing = true
		return nil
	case HalfOpen:
		// One probe at a time.
		if b.probing {
			return ErrOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.probing = false
	}

	// A cancelled call says nothing about the upstream. Leave the counters
	// and state alone; a half-open breaker admits the next probe.
	if errors.Is(err, context.Canceled) {
		return
	}

	if err == nil || !b.opts.ShouldTrip(err) {
		b.failures = 0
		if b.state != Closed {
			b.transition(Closed)
		}
		return
	}

	b.failures++
	switch b.state {
	case Closed:
		if b.failures >= b.opts.Threshold {
			b.open()
		}
	case HalfOpen:
		b.open()
	}
}

func (b *Breaker) open() {
	b.openedAt = b.nowFunc()
	b.transition(Open)
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if b.opts.OnStateChange != nil && from != to {
		b.opts.OnStateChange(from, to)
	}
}
