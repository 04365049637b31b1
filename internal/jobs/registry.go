// Package jobs runs long pipeline operations in the background and keeps a
// record of each run that clients can poll by id.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Kinds of job started by the front-ends.
const (
	KindInbox      = "inbox"
	KindTimeline   = "timeline"
	KindTranscript = "transcript"
)

// DefaultLimit is the number of finished jobs kept in memory.
const DefaultLimit = 100

// Job is a snapshot of one run.
type Job struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Status    Status    `json:"status"`
	Messages  []string  `json:"messages"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Finished reports whether the job has reached a terminal status.
func (j Job) Finished() bool {
	return j.Status == StatusDone || j.Status == StatusFailed
}

// Func is the work of a job. logf appends a line to the job's message log.
type Func func(ctx context.Context, logf func(format string, args ...any)) (any, error)

// Registry tracks jobs in memory.
type Registry struct {
	ctx    context.Context
	mu     sync.RWMutex
	jobs   map[string]*Job
	wg     sync.WaitGroup
	limit  int
	notify func(Job)
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes a Registry.
type Option func(*Registry)

// WithNotifier is called with a snapshot after every status change.
func WithNotifier(fn func(Job)) Option {
	return func(r *Registry) { r.notify = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithLimit caps the number of finished jobs retained.
func WithLimit(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.limit = n
		}
	}
}

// NewRegistry returns a Registry whose jobs run under ctx. Cancelling ctx
// cancels every running job.
func NewRegistry(ctx context.Context, opts ...Option) *Registry {
	r := &Registry{
		ctx:    ctx,
		jobs:   make(map[string]*Job),
		limit:  DefaultLimit,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start records a pending job and runs fn in its own goroutine.
func (r *Registry) Start(kind string, fn Func) Job {
	now := r.now()
	job := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusPending,
		Messages:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.pruneLocked()
	snap := snapshot(job)
	r.mu.Unlock()
	r.emit(snap)

	r.wg.Add(1)
	go r.run(job.ID, fn)
	return snap
}

func (r *Registry) run(id string, fn Func) {
	defer r.wg.Done()

	r.update(id, func(j *Job) { j.Status = StatusRunning })
	r.logger.Info("jobs: started", slog.String("id", id))

	logf := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		r.mu.Lock()
		if j, ok := r.jobs[id]; ok {
			j.Messages = append(j.Messages, msg)
			j.UpdatedAt = r.now()
		}
		r.mu.Unlock()
	}

	result, err := r.call(fn, logf)
	r.update(id, func(j *Job) {
		j.Result = result
		if err != nil {
			j.Status = StatusFailed
			j.Error = err.Error()
			return
		}
		j.Status = StatusDone
	})

	if err != nil {
		r.logger.Error("jobs: failed", slog.String("id", id), slog.String("error", err.Error()))
	} else {
		r.logger.Info("jobs: done", slog.String("id", id))
	}
}

// call runs fn and turns a panic into a job failure.
func (r *Registry) call(fn Func, logf func(string, ...any)) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("jobs: panic: %v", p)
		}
	}()
	return fn(r.ctx, logf)
}

func (r *Registry) update(id string, fn func(*Job)) {
	r.mu.Lock()
	j, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	fn(j)
	j.UpdatedAt = r.now()
	snap := snapshot(j)
	r.mu.Unlock()
	r.emit(snap)
}

func (r *Registry) emit(j Job) {
	if r.notify != nil {
		r.notify(j)
	}
}

// Get returns a snapshot of the job with id.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return snapshot(j), true
}

// List returns snapshots of all retained jobs, newest first.
func (r *Registry) List() []Job {
	r.mu.RLock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, snapshot(j))
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out
}

// Wait blocks until every started job has finished.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// pruneLocked drops the oldest finished jobs beyond the limit.
func (r *Registry) pruneLocked() {
	if len(r.jobs) <= r.limit {
		return
	}
	var finished []*Job
	for _, j := range r.jobs {
		if j.Finished() {
			finished = append(finished, j)
		}
	}
	sort.Slice(finished, func(i, k int) bool { return finished[i].CreatedAt.Before(finished[k].CreatedAt) })
	for _, j := range finished {
		if len(r.jobs) <= r.limit {
			return
		}
		delete(r.jobs, j.ID)
	}
}

func snapshot(j *Job) Job {
	c := *j
	c.Messages = append([]string(nil), j.Messages...)
	return c
}
