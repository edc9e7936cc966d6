// Package jobs runs exports one at a time in the background
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status of a job
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Done reports whether the status is final
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ErrNotFound is returned for unknown job ids
var ErrNotFound = errors.New("job not found")

// Output is what a finished job produced
type Output struct {
	FileName string
	Data     []byte
	Pages    int
}

// RunFunc does the work of a job. report takes a fraction in [0,1].
type RunFunc func(ctx context.Context, report func(float64)) (*Output, error)

// Job is a snapshot of a queued export
type Job struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Label      string    `json:"label"`
	Status     Status    `json:"status"`
	Progress   float64   `json:"progress"`
	Error      string    `json:"error,omitempty"`
	FileName   string    `json:"file_name,omitempty"`
	Pages      int       `json:"pages,omitempty"`
	Size       int       `json:"size,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	run    RunFunc
	cancel context.CancelFunc
	data   []byte
}

// Event types
const (
	EventProgress  = "export_progress"
	EventCompleted = "export_completed"
	EventFailed    = "export_failed"
	EventCancelled = "export_cancelled"
)

// Event reports a job state change
type Event struct {
	Type string `json:"type"`
	Job  *Job   `json:"job"`
}

// Queue runs jobs sequentially on a single worker
type Queue struct {
	jobs    []*Job
	mu      sync.Mutex
	onEvent func(Event)
	log     *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewQueue creates a new queue and starts its worker
func NewQueue(onEvent func(Event), logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		jobs:    make([]*Job, 0),
		onEvent: onEvent,
		log:     logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	q.wg.Add(1)
	go q.worker()

	return q
}

// Submit queues run and returns the job id
func (q *Queue) Submit(kind, label string, run RunFunc) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		Label:     label,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
		run:       run,
	}
	q.jobs = append(q.jobs, job)
	q.log.Info("job queued", "job", job.ID, "kind", kind, "label", label)

	return job.ID
}

func (q *Queue) worker() {
	defer q.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			for q.processNextJob() {
				if q.ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// processNextJob runs the oldest queued job; false when there was none
func (q *Queue) processNextJob() bool {
	q.mu.Lock()
	var job *Job
	for _, j := range q.jobs {
		if j.Status == StatusQueued {
			job = j
			break
		}
	}
	if job == nil {
		q.mu.Unlock()
		return false
	}

	ctx, cancel := context.WithCancel(q.ctx)
	job.Status = StatusRunning
	job.StartedAt = time.Now()
	job.cancel = cancel
	run := job.run
	q.mu.Unlock()

	defer cancel()

	report := func(fraction float64) {
		q.mu.Lock()
		if fraction > job.Progress {
			job.Progress = fraction
		}
		snapshot := job.snapshot()
		q.mu.Unlock()
		q.emit(EventProgress, snapshot)
	}

	out, err := run(ctx, report)

	q.mu.Lock()
	job.FinishedAt = time.Now()
	job.cancel = nil
	job.run = nil

	var event string
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		job.Status = StatusCancelled
		event = EventCancelled
		q.log.Warn("⚠️  job cancelled", "job", job.ID)
	case err != nil:
		job.Status = StatusFailed
		job.Error = err.Error()
		event = EventFailed
		q.log.Error("❌ job failed", "job", job.ID, "err", err)
	default:
		job.Status = StatusCompleted
		job.Progress = 1
		if out != nil {
			job.FileName = out.FileName
			job.Pages = out.Pages
			job.Size = len(out.Data)
			job.data = out.Data
		}
		event = EventCompleted
		q.log.Info("✅ job completed", "job", job.ID, "file", job.FileName, "pages", job.Pages)
	}
	snapshot := job.snapshot()
	q.mu.Unlock()

	q.emit(event, snapshot)
	return true
}

func (q *Queue) emit(kind string, job *Job) {
	if q.onEvent != nil {
		q.onEvent(Event{Type: kind, Job: job})
	}
}

// snapshot copies the exported fields; caller holds q.mu
func (j *Job) snapshot() *Job {
	return &Job{
		ID:         j.ID,
		Kind:       j.Kind,
		Label:      j.Label,
		Status:     j.Status,
		Progress:   j.Progress,
		Error:      j.Error,
		FileName:   j.FileName,
		Pages:      j.Pages,
		Size:       j.Size,
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}

// Cancel stops a queued or running job
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	job := q.find(id)
	if job == nil {
		q.mu.Unlock()
		return ErrNotFound
	}

	switch job.Status {
	case StatusQueued:
		job.Status = StatusCancelled
		job.FinishedAt = time.Now()
		job.run = nil
		snapshot := job.snapshot()
		q.mu.Unlock()
		q.emit(EventCancelled, snapshot)
		return nil
	case StatusRunning:
		if job.cancel != nil {
			job.cancel()
		}
		q.mu.Unlock()
		return nil
	default:
		status := job.Status
		q.mu.Unlock()
		return fmt.Errorf("job %s already %s", id, status)
	}
}

// GetJob returns a copy of a job, or nil
func (q *Queue) GetJob(id string) *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job := q.find(id); job != nil {
		return job.snapshot()
	}
	return nil
}

// GetAllJobs returns copies of every job in submission order
func (q *Queue) GetAllJobs() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := make([]*Job, len(q.jobs))
	for i, job := range q.jobs {
		jobs[i] = job.snapshot()
	}
	return jobs
}

// Output returns the document a completed job produced
func (q *Queue) Output(id string) (*Output, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job := q.find(id)
	if job == nil {
		return nil, ErrNotFound
	}
	if job.Status != StatusCompleted {
		return nil, fmt.Errorf("job %s is %s", id, job.Status)
	}
	return &Output{FileName: job.FileName, Data: job.data, Pages: job.Pages}, nil
}

// ClearCompleted removes finished jobs and returns how many were removed
func (q *Queue) ClearCompleted() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	filtered := make([]*Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		if !job.Status.Done() {
			filtered = append(filtered, job)
		}
	}
	removed := len(q.jobs) - len(filtered)
	q.jobs = filtered
	return removed
}

// Stop cancels every job and waits for the worker
func (q *Queue) Stop() {
	q.cancel()
	q.wg.Wait()
}

func (q *Queue) find(id string) *Job {
	for _, job := range q.jobs {
		if job.ID == id {
			return job
		}
	}
	return nil
}
