package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrOpen is returned when the breaker rejects a call without attempting it.
var ErrOpen = errors.New("circuit breaker open")

// State enumerates breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes the failure detection window.
type BreakerConfig struct {
	Name         string
	FailureRatio float64
	MinRequests  int
	OpenFor      time.Duration
	Window       time.Duration
}

// Breaker is a sliding-window circuit breaker guarding upstream calls.
type Breaker struct {
	cfg     BreakerConfig
	log     zerolog.Logger
	metrics *BreakerMetrics

	mu          sync.Mutex
	state       State
	windowStart time.Time
	requests    int
	failures    int
	openedAt    time.Time
	probing     bool

	now func() time.Time
}

// NewBreaker creates a breaker in the Closed state.
func NewBreaker(cfg BreakerConfig, log zerolog.Logger, metrics *BreakerMetrics) *Breaker {
	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		cfg.FailureRatio = 0.5
	}
	if cfg.MinRequests <= 0 {
		cfg.MinRequests = 10
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	b := &Breaker{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		state:   Closed,
		now:     time.Now,
	}
	b.windowStart = b.now()
	b.reportState()
	return b
}

// Allow reports whether a call may proceed. In HalfOpen only a single probe
// request is admitted at a time.
func (b *Breaker) Allow(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if b.now().Sub(b.openedAt) >= b.cfg.OpenFor {
			b.transition(HalfOpen)
			b.probing = true
			return nil
		}
		if b.metrics != nil {
			b.metrics.Rejected.WithLabelValues(b.cfg.Name).Inc()
		}
		return ErrOpen
	case HalfOpen:
		if b.probing {
			if b.metrics != nil {
				b.metrics.Rejected.WithLabelValues(b.cfg.Name).Inc()
			}
			return ErrOpen
		}
		b.probing = true
		return nil
	}
	return nil
}

// Record reports the result of a call previously admitted by Allow.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.probing = false
		if err != nil {
			b.openedAt = b.now()
			b.transition(Open)
			return
		}
		b.resetWindow()
		b.transition(Closed)
		return
	case Closed:
		if b.now().Sub(b.windowStart) > b.cfg.Window {
			b.resetWindow()
		}
		b.requests++
		if err != nil {
			b.failures++
		}
		if b.requests >= b.cfg.MinRequests &&
			float64(b.failures)/float64(b.requests) >= b.cfg.FailureRatio {
			b.openedAt = b.now()
			b.transition(Open)
		}
	}
}

// CurrentState returns the breaker state for health reporting.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) resetWindow() {
	b.windowStart = b.now()
	b.requests = 0
	b.failures = 0
}

func (b *Breaker) transition(next State) {
	if b.state == next {
		return
	}
	prev := b.state
	b.state = next
	b.log.Warn().
		Str("breaker", b.cfg.Name).
		Str("from", prev.String()).
		Str("to", next.String()).
		Msg("circuit breaker state change")
	b.reportState()
	if b.metrics != nil {
		b.metrics.Transitions.WithLabelValues(b.cfg.Name, next.String()).Inc()
	}
}

func (b *Breaker) reportState() {
	if b.metrics == nil {
		return
	}
	b.metrics.State.WithLabelValues(b.cfg.Name).Set(float64(b.state))
}
