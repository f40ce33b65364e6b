package publish

// runner.go serializes publication runs. Scheduled, file-triggered and API
// runs of the same service share one slot: a trigger that finds the slot
// taken waits up to maxWait and then gives up with ErrRunInProgress. The
// next trigger picks up whatever changed meanwhile, since skipped countries
// are detected from file times.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/facility-etl/internal/schema"
)

// ErrRunInProgress is returned when a run of the same service is still going.
var ErrRunInProgress = errors.New("a publication run is already in progress")

// DefaultMaxWait is how long a trigger waits for the running job.
const DefaultMaxWait = 5 * time.Second

// Runner owns one pipeline per service.
type Runner struct {
	pipelines map[schema.Service]*Pipeline
	slots     map[schema.Service]chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
	last   map[schema.Service]*Result
}

// NewRunner creates a runner over the given pipelines.
func NewRunner(maxWait time.Duration, pipelines ...*Pipeline) *Runner {
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	r := &Runner{
		pipelines: make(map[schema.Service]*Pipeline, len(pipelines)),
		slots:     make(map[schema.Service]chan struct{}, len(pipelines)),
		maxWait:   maxWait,
		last:      make(map[schema.Service]*Result),
	}
	for _, p := range pipelines {
		s := p.layout.Spec.Service
		r.pipelines[s] = p
		r.slots[s] = make(chan struct{}, 1)
	}
	return r
}

// Services returns the services the runner can publish.
func (r *Runner) Services() []schema.Service {
	var out []schema.Service
	for _, spec := range schema.All() {
		if _, ok := r.pipelines[spec.Service]; ok {
			out = append(out, spec.Service)
		}
	}
	return out
}

// Pipeline returns the pipeline of a service.
func (r *Runner) Pipeline(s schema.Service) (*Pipeline, bool) {
	p, ok := r.pipelines[s]
	return p, ok
}

// Run publishes service s once the slot is free.
func (r *Runner) Run(ctx context.Context, s schema.Service, trigger string) (*Result, error) {
	p, ok := r.pipelines[s]
	if !ok {
		return nil, fmt.Errorf("service %q is not configured", s)
	}
	if err := r.acquire(ctx, s); err != nil {
		return nil, err
	}
	defer r.release(s)

	res, err := p.Run(ctx, trigger)
	r.mu.Lock()
	r.last[s] = res
	r.mu.Unlock()
	return res, err
}

// Last returns the most recent result of a service, nil before the first run.
func (r *Runner) Last(s schema.Service) *Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last[s]
}

func (r *Runner) acquire(ctx context.Context, s schema.Service) error {
	waitCtx, cancel := context.WithTimeout(ctx, r.maxWait)
	defer cancel()

	select {
	case r.slots[s] <- struct{}{}:
		r.mu.Lock()
		r.active++
		r.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrRunInProgress
	}
}

func (r *Runner) release(s schema.Service) {
	r.mu.Lock()
	r.active--
	r.mu.Unlock()
	<-r.slots[s]
}

// ActiveCount returns the number of runs in progress.
func (r *Runner) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// WaitForDrain blocks until every run completes or ctx is done.
func (r *Runner) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if r.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
