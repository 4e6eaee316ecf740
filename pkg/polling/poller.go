// Package polling implements the client-side wait loop for async AI jobs: a
// fixed-interval poll of the job endpoint that settles exactly once per run,
// on the first terminal status it observes or on attempt exhaustion.
package polling

import (
	"context"
	"sync"
	"time"

	"github.com/kariro/kariro/pkg/models"
)

// State of a polling run.
const (
	StateIdle       = "idle"
	StateProcessing = "processing"
	StateCompleted  = "completed"
	StateFailed     = "failed"
)

const (
	// DefaultInterval is the wait between polls.
	DefaultInterval = 2 * time.Second
	// DefaultMaxAttempts bounds a run; at the default interval that is five
	// minutes of waiting.
	DefaultMaxAttempts = 150
)

const timeoutMessage = "The job timed out. Please try again."

// FetchFunc retrieves the tracking record for a job id.
type FetchFunc func(ctx context.Context, jobID string) (*models.AIJob, error)

// Callbacks receive the outcome of a run. Exactly one of OnCompleted or
// OnFailed fires per run unless the run is superseded or reset first.
type Callbacks struct {
	OnCompleted func(job *models.AIJob)
	OnFailed    func(message string)
}

// Poller drives the polling state machine. Start supersedes any run already
// in progress, so a Poller tracks at most one job at a time. Safe for
// concurrent use.
type Poller struct {
	fetch       FetchFunc
	interval    time.Duration
	maxAttempts int

	mu         sync.Mutex
	generation int
	state      string
	attempts   int
	timer      *time.Timer
}

// New creates a Poller. Non-positive interval or maxAttempts fall back to the
// defaults.
func New(fetch FetchFunc, interval time.Duration, maxAttempts int) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Poller{
		fetch:       fetch,
		interval:    interval,
		maxAttempts: maxAttempts,
		state:       StateIdle,
	}
}

// State returns the current run state.
func (p *Poller) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Attempts returns the number of polls made in the current run.
func (p *Poller) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Start begins polling jobID. Any run already in progress is cancelled and
// its callbacks never fire again.
func (p *Poller) Start(ctx context.Context, jobID string, cb Callbacks) {
	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.state = StateProcessing
	p.attempts = 0
	p.stopTimerLocked()
	p.mu.Unlock()

	p.poll(ctx, gen, jobID, cb)
}

// Reset cancels any run in progress and returns to idle.
func (p *Poller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation++
	p.state = StateIdle
	p.attempts = 0
	p.stopTimerLocked()
}

func (p *Poller) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// poll makes one attempt for the given generation. Every transition re-checks
// the generation under the lock, so a superseded run can never fire callbacks
// or reschedule.
func (p *Poller) poll(ctx context.Context, gen int, jobID string, cb Callbacks) {
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return
	}
	p.attempts++
	attempt := p.attempts
	p.mu.Unlock()

	job, err := p.fetch(ctx, jobID)

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return
	}

	switch {
	case err != nil:
		p.state = StateFailed
		p.mu.Unlock()
		if cb.OnFailed != nil {
			cb.OnFailed("Failed to check the job status. Please try again.")
		}
		return

	case job.Status == models.JobStatusCompleted:
		p.state = StateCompleted
		p.mu.Unlock()
		if cb.OnCompleted != nil {
			cb.OnCompleted(job)
		}
		return

	case job.Status == models.JobStatusFailed:
		p.state = StateFailed
		p.mu.Unlock()
		message := timeoutMessage
		if job.Error != nil && *job.Error != "" {
			message = *job.Error
		}
		if cb.OnFailed != nil {
			cb.OnFailed(message)
		}
		return

	case attempt >= p.maxAttempts:
		p.state = StateFailed
		p.mu.Unlock()
		if cb.OnFailed != nil {
			cb.OnFailed(timeoutMessage)
		}
		return
	}

	// Still processing; schedule the next attempt.
	p.timer = time.AfterFunc(p.interval, func() {
		p.poll(ctx, gen, jobID, cb)
	})
	p.mu.Unlock()
}
