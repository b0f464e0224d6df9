package mailer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrQueueFull is returned when the backlog is at capacity.
	ErrQueueFull = errors.New("mail queue full")
	// ErrQueueClosed is returned after Close.
	ErrQueueClosed = errors.New("mail queue closed")
)

// QueueConfig controls backlog size and retry cadence.
type QueueConfig struct {
	Size        int           // pending jobs held before ErrQueueFull
	MaxAttempts int           // attempts per job including the first
	BaseDelay   time.Duration // delay after the first failure, doubled each time
	MaxDelay    time.Duration // backoff ceiling
	Timeout     time.Duration // per-attempt deadline
}

type welcomeJob struct {
	email, name, clientURL string
}

// Queue is a Sender that accepts welcome mails immediately and delivers
// them from a single background worker, retrying failures with exponential
// backoff. Jobs still pending at shutdown are dropped and logged.
type Queue struct {
	next   Sender
	cfg    QueueConfig
	log    zerolog.Logger
	jobs   chan welcomeJob
	closed chan struct{}
	once   sync.Once
}

// NewQueue wraps next. Zero config fields take defaults.
func NewQueue(next Sender, cfg QueueConfig, log zerolog.Logger) *Queue {
	if cfg.Size <= 0 {
		cfg.Size = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Queue{
		next:   next,
		cfg:    cfg,
		log:    log,
		jobs:   make(chan welcomeJob, cfg.Size),
		closed: make(chan struct{}),
	}
}

// SendWelcome enqueues the mail without blocking.
func (q *Queue) SendWelcome(_ context.Context, email, name, clientURL string) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}
	select {
	case q.jobs <- welcomeJob{email: email, name: name, clientURL: clientURL}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued jobs.
func (q *Queue) Pending() int { return len(q.jobs) }

// Close stops accepting jobs and makes Run return.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.closed) })
}

// Run delivers jobs until ctx is canceled or Close is called.
func (q *Queue) Run(ctx context.Context) {
	q.log.Info().Int("size", q.cfg.Size).Int("max_attempts", q.cfg.MaxAttempts).Msg("mail queue starting")
	for {
		select {
		case <-ctx.Done():
			q.stop()
			return
		case <-q.closed:
			q.stop()
			return
		case j := <-q.jobs:
			q.deliver(ctx, j)
		}
	}
}

func (q *Queue) stop() {
	if n := len(q.jobs); n > 0 {
		q.log.Warn().Int("dropped", n).Msg("mail queue stopping with pending jobs")
	} else {
		q.log.Info().Msg("mail queue stopping")
	}
}

func (q *Queue) deliver(ctx context.Context, j welcomeJob) {
	for attempt := 0; attempt < q.cfg.MaxAttempts; attempt++ {
		actx, cancel := context.WithTimeout(ctx, q.cfg.Timeout)
		err := q.next.SendWelcome(actx, j.email, j.name, j.clientURL)
		cancel()
		if err == nil {
			return
		}
		q.log.Warn().Err(err).Str("to", j.email).Int("attempt", attempt+1).Msg("welcome email failed")
		if attempt+1 == q.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-q.closed:
			return
		case <-time.After(q.backoff(attempt)):
		}
	}
	q.log.Error().Str("to", j.email).Int("attempts", q.cfg.MaxAttempts).Msg("welcome email abandoned")
}

// backoff returns BaseDelay * 2^attempt capped at MaxDelay.
func (q *Queue) backoff(attempt int) time.Duration {
	d := q.cfg.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= q.cfg.MaxDelay {
			return q.cfg.MaxDelay
		}
	}
	return d
}
