package eventbus

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"quorum/internal/eventbus/metrics"
	"quorum/pkg/platform/circuit"
)

// Relay moves envelopes from command handlers to the bus. Commands enqueue
// after their save commits and return immediately; the relay owns retries
// with exponential backoff and dead-letters envelopes that exhaust their
// attempts. One consumer goroutine drains the inbox sequentially, which
// keeps per-aggregate ordering intact at the cost of head-of-line blocking
// during a broker outage; the breaker caps how long that lasts per attempt.
type Relay struct {
	publisher   Publisher
	deadLetters DeadLetterStore
	inbox       chan Envelope
	breaker     *circuit.Breaker
	logger      *slog.Logger
	metrics     *metrics.Metrics
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// RelayOption customizes a Relay.
type RelayOption func(*Relay)

func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) RelayOption {
	return func(r *Relay) { r.metrics = m }
}

func WithMaxAttempts(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func WithBackoff(base, max time.Duration) RelayOption {
	return func(r *Relay) {
		if base > 0 {
			r.baseBackoff = base
		}
		if max > 0 {
			r.maxBackoff = max
		}
	}
}

func WithInboxSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.inbox = make(chan Envelope, n)
		}
	}
}

// NewRelay builds a relay. Defaults: 256 queued envelopes, 5 attempts,
// 100ms base backoff capped at 5s.
func NewRelay(publisher Publisher, deadLetters DeadLetterStore, opts ...RelayOption) *Relay {
	r := &Relay{
		publisher:   publisher,
		deadLetters: deadLetters,
		inbox:       make(chan Envelope, 256),
		breaker:     circuit.New("event-publish", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
		logger:      slog.Default(),
		maxAttempts: 5,
		baseBackoff: 100 * time.Millisecond,
		maxBackoff:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enqueue hands envelopes to the relay, blocking while the inbox is full.
// A context expiry mid-enqueue returns the error; callers log it but never
// fail the command, since the state change is already durable.
func (r *Relay) Enqueue(ctx context.Context, envelopes ...Envelope) error {
	for _, envelope := range envelopes {
		select {
		case r.inbox <- envelope:
			r.metrics.SetQueueDepth(len(r.inbox))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Run consumes the inbox until ctx is cancelled, then drains whatever is
// already queued with one final attempt per envelope before returning.
func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return ctx.Err()
		case envelope := <-r.inbox:
			r.metrics.SetQueueDepth(len(r.inbox))
			r.deliver(ctx, envelope)
		}
	}
}

// deliver retries until success, attempt exhaustion, or shutdown. Exhaustion
// and shutdown both dead-letter the envelope so nothing is silently lost.
func (r *Relay) deliver(ctx context.Context, envelope Envelope) {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := r.publisher.Publish(ctx, envelope)
		if err == nil {
			_, change := r.breaker.RecordSuccess()
			if change.Closed {
				r.metrics.SetBreakerOpen(false)
				r.logger.InfoContext(ctx, "publish breaker closed")
			}
			r.metrics.IncPublished(envelope.Name)
			return
		}
		lastErr = err
		_, change := r.breaker.RecordFailure()
		if change.Opened {
			r.metrics.SetBreakerOpen(true)
			r.logger.WarnContext(ctx, "publish breaker opened",
				"event", envelope.Name,
				"member_id", envelope.MemberID.String(),
			)
		}
		r.metrics.IncRetry(envelope.Name)

		if attempt == r.maxAttempts {
			break
		}
		select {
		case <-time.After(r.backoff(attempt)):
		case <-ctx.Done():
			r.deadLetter(envelope, attempt, lastErr)
			return
		}
	}
	r.deadLetter(envelope, r.maxAttempts, lastErr)
}

func (r *Relay) deadLetter(envelope Envelope, attempts int, cause error) {
	letter := DeadLetter{
		Envelope: envelope,
		Attempts: attempts,
		FailedAt: time.Now(),
	}
	if cause != nil {
		letter.LastError = cause.Error()
	}
	// Dead-letter writes use a fresh context: the command context is long
	// gone and shutdown must not lose the record.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.deadLetters.Append(ctx, letter); err != nil {
		r.logger.ErrorContext(ctx, "dead-letter append failed, envelope lost",
			"event", envelope.Name,
			"member_id", envelope.MemberID.String(),
			"error", err,
		)
		return
	}
	r.metrics.IncDeadLettered(envelope.Name)
	r.logger.ErrorContext(ctx, "envelope dead-lettered",
		"event", envelope.Name,
		"member_id", envelope.MemberID.String(),
		"attempts", attempts,
		"error", letter.LastError,
	)
}

// drain gives queued envelopes one last delivery attempt during shutdown.
func (r *Relay) drain() {
	for {
		select {
		case envelope := <-r.inbox:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := r.publisher.Publish(ctx, envelope); err != nil {
				r.deadLetter(envelope, 1, err)
			} else {
				r.metrics.IncPublished(envelope.Name)
			}
			cancel()
		default:
			return
		}
	}
}

func (r *Relay) backoff(attempt int) time.Duration {
	// Double up to the cap instead of shifting in one go. A single shift
	// overflows time.Duration once attempts climb past the mid-thirties.
	backoff := r.baseBackoff
	for i := 1; i < attempt && backoff < r.maxBackoff; i++ {
		backoff <<= 1
	}
	if backoff > r.maxBackoff {
		backoff = r.maxBackoff
	}
	// Full jitter keeps concurrent retries from synchronizing.
	return time.Duration(rand.Int63n(int64(backoff)) + int64(backoff)/2)
}
