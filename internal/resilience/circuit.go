package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the breaker refuses a call because the
// upstream dependency is considered down.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

var breakerNopLogger = zerolog.Nop()

type breakerState uint8

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

func (s breakerState) gauge() float64 {
	switch s {
	case stateClosed:
		return 0
	case stateOpen:
		return 1
	case stateHalfOpen:
		return 2
	default:
		return -1
	}
}

// counters tracks call outcomes inside the closed state.
type counters struct {
	ok   int
	fail int
}

func (c *counters) total() int { return c.ok + c.fail }

func (c *counters) failureRatio() float64 {
	total := c.total()
	if total == 0 {
		return 0
	}
	return float64(c.fail) / float64(total)
}

// decay halves both counters so one bad burst ages out instead of tainting
// the ratio forever.
func (c *counters) decay() {
	c.ok = int(math.Ceil(float64(c.ok) * 0.5))
	c.fail = int(math.Ceil(float64(c.fail) * 0.5))
}

func (c *counters) reset() { *c = counters{} }

// Breaker guards an upstream API (sales, customer directory, receipt webhook)
// with a failure-ratio circuit. While open it sheds calls immediately so one
// dead upstream cannot stall every checkout on the floor.
type Breaker struct {
	mu        sync.Mutex
	state     breakerState
	calls     counters
	minCalls  int
	threshold float64
	openedAt  time.Time
	cooldown  time.Duration
	target    string
	logger    *zerolog.Logger
}

// NewBreaker returns a closed breaker that opens when the failure ratio over
// at least minCalls outcomes reaches threshold, and probes again after
// cooldown.
func NewBreaker(minCalls int, threshold float64, cooldown time.Duration) *Breaker {
	if minCalls <= 0 {
		minCalls = 1
	}
	if threshold <= 0 {
		threshold = 0.5
	}
	if threshold > 1 {
		threshold = 1
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		state:     stateClosed,
		minCalls:  minCalls,
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// WithTarget names the guarded upstream for metric labels and transition logs.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = strings.TrimSpace(target)
	b.publishStateLocked()
	return b
}

// WithLogger sets the fallback logger for transition events when the request
// context carries none.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = &logger
	return b
}

// Allow reports whether a call may proceed. An open breaker admits nothing
// until the cooldown elapses, then moves to half-open and lets a single probe
// through to test the upstream.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != stateOpen {
		return true
	}
	if time.Since(b.openedAt) < b.cooldown {
		return false
	}
	b.transitionLocked(ctx, stateHalfOpen)
	return true
}

// Report feeds a call outcome into the state machine. A half-open probe
// decides immediately: success closes the breaker, failure reopens it.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		return
	case stateHalfOpen:
		if success {
			b.transitionLocked(ctx, stateClosed)
		} else {
			b.transitionLocked(ctx, stateOpen)
		}
		return
	}

	if success {
		b.calls.ok++
	} else {
		b.calls.fail++
	}
	if b.calls.total() < b.minCalls {
		return
	}
	if b.calls.failureRatio() >= b.threshold {
		b.transitionLocked(ctx, stateOpen)
	} else if b.calls.total() > b.minCalls*2 {
		b.calls.decay()
	}
}

func (b *Breaker) transitionLocked(ctx context.Context, next breakerState) {
	prev := b.state
	if prev == next {
		b.publishStateLocked()
		return
	}
	b.state = next
	switch next {
	case stateOpen:
		b.openedAt = time.Now()
	case stateClosed:
		b.openedAt = time.Time{}
	}
	b.calls.reset()
	b.publishStateLocked()

	label := b.label()
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(label, prev.String(), next.String()).Inc()
	}
	if next == stateOpen && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(label).Inc()
	}
	evt := b.transitionLogger(ctx).Info().
		Str("target", label).
		Str("from_state", prev.String()).
		Str("to_state", next.String())
	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		evt = evt.Str("trace_id", span.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) publishStateLocked() {
	if BreakerState == nil {
		return
	}
	BreakerState.WithLabelValues(b.label()).Set(b.state.gauge())
}

func (b *Breaker) label() string {
	if b.target == "" {
		return "default"
	}
	return b.target
}

func (b *Breaker) transitionLogger(ctx context.Context) *zerolog.Logger {
	if ctxLogger := zerolog.Ctx(ctx); ctxLogger != nil && ctxLogger.GetLevel() != zerolog.Disabled {
		return ctxLogger
	}
	if b.logger != nil {
		return b.logger
	}
	return &breakerNopLogger
}

// Backoff returns the exponential delay before retry number attempt, with
// jitter expressed as a fraction of the delay.
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitter <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * float64(d) * jitter
	return d + time.Duration(delta)
}
