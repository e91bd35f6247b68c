package orchestrator

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Job statuses.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job is one admitted generation request.
type Job struct {
	SessionID string
	StartedAt time.Time
	Request   GenerationRequest

	scratch *Scratch

	mu     sync.Mutex
	status string
}

// LessonID returns the caller's passthrough label.
func (j *Job) LessonID() string { return j.Request.LessonID }

// Status returns the job's current status.
func (j *Job) Status() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) setStatus(s string) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

// Scratch returns the job's scratch files.
func (j *Job) Scratch() *Scratch { return j.scratch }

// JobInfo is a snapshot of an active job.
type JobInfo struct {
	SessionID string    `json:"session_id"`
	LessonID  string    `json:"lesson_id"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	// Elapsed is in seconds.
	Elapsed float64 `json:"duration"`
}

// Registry holds the in-flight jobs and enforces the concurrency limit.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	limit int
}

func NewRegistry(limit int) *Registry {
	if limit <= 0 {
		limit = 1
	}
	return &Registry{jobs: make(map[string]*Job), limit: limit}
}

// Limit returns the maximum number of concurrent jobs.
func (r *Registry) Limit() int { return r.limit }

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Full reports whether a new job would be rejected.
func (r *Registry) Full() bool {
	return r.Len() >= r.limit
}

// Add registers j, or returns ErrBusy when the registry is at capacity.
func (r *Registry) Add(j *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.jobs) >= r.limit {
		return ErrBusy
	}
	r.jobs[j.SessionID] = j
	return nil
}

func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	delete(r.jobs, sessionID)
	r.mu.Unlock()
}

func (r *Registry) Get(sessionID string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[sessionID]
	return j, ok
}

// Snapshot lists active jobs, oldest first.
func (r *Registry) Snapshot(now time.Time) []JobInfo {
	r.mu.RLock()
	out := make([]JobInfo, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, JobInfo{
			SessionID: j.SessionID,
			LessonID:  j.LessonID(),
			Status:    j.Status(),
			StartedAt: j.StartedAt,
			Elapsed:   math.Round(now.Sub(j.StartedAt).Seconds()*100) / 100,
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		if out[a].StartedAt.Equal(out[b].StartedAt) {
			return out[a].SessionID < out[b].SessionID
		}
		return out[a].StartedAt.Before(out[b].StartedAt)
	})
	return out
}
