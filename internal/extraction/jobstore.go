package extraction

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrJobNotFound is returned for unknown or expired job IDs.
var ErrJobNotFound = errors.New("job not found")

// JobStatus is the lifecycle state of an async extraction job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is one asynchronous statement extraction.
type Job struct {
	ID        string           `json:"id"`
	Status    JobStatus        `json:"status"`
	Filename  string           `json:"filename,omitempty"`
	FileType  FileType         `json:"fileType"`
	Result    *StatementResult `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// NewJob creates a pending job with a random ID.
func NewJob(filename string, fileType FileType) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Status:    JobPending,
		Filename:  filename,
		FileType:  fileType,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore manages in-memory async extraction jobs. Jobs older than the
// TTL are dropped by a background sweep.
type JobStore struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	ttl      time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewJobStore creates a new job store with background cleanup.
func NewJobStore(ttl time.Duration) *JobStore {
	js := &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go js.cleanup()
	return js
}

// Create stores a new extraction job.
func (js *JobStore) Create(job *Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	js.mu.Lock()
	defer js.mu.Unlock()
	if _, ok := js.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	c := *job
	js.jobs[job.ID] = &c
	return nil
}

// Get returns a copy of the job.
func (js *JobStore) Get(id string) (*Job, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()
	job, ok := js.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	c := *job
	return &c, nil
}

// Update applies fn to the stored job under the store lock.
func (js *JobStore) Update(id string, fn func(*Job)) error {
	js.mu.Lock()
	defer js.mu.Unlock()
	job, ok := js.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	fn(job)
	job.UpdatedAt = time.Now()
	return nil
}

// Len returns the number of tracked jobs.
func (js *JobStore) Len() int {
	js.mu.RLock()
	defer js.mu.RUnlock()
	return len(js.jobs)
}

// Stop signals the background cleanup goroutine to exit. Safe to call twice.
func (js *JobStore) Stop() {
	js.stopOnce.Do(func() { close(js.done) })
}

// Sweep deletes jobs created more than the TTL before now and returns how
// many were removed.
func (js *JobStore) Sweep(now time.Time) int {
	js.mu.Lock()
	defer js.mu.Unlock()
	removed := 0
	for id, job := range js.jobs {
		if now.Sub(job.CreatedAt) > js.ttl {
			delete(js.jobs, id)
			removed++
		}
	}
	return removed
}

func (js *JobStore) cleanup() {
	interval := 5 * time.Minute
	if js.ttl > 0 && js.ttl < interval {
		interval = js.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-js.done:
			return
		case <-ticker.C:
			js.Sweep(time.Now())
		}
	}
}
