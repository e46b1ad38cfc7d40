package handlers

import (
	"slices"
	"sync"
	"time"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/constants"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// AddJob tracks one asynchronous post creation.
type AddJob struct {
	EventBroadcaster

	ID          string
	PostID      int64
	Status      JobStatus
	Stage       string
	Error       string
	ErrorStatus int
	StartedAt   time.Time
	CompletedAt *time.Time
	Result      *AddResultView
}

// AddJobView is the JSON form of an AddJob.
type AddJobView struct {
	ID          string         `json:"id"`
	PostID      int64          `json:"post_id"`
	Status      JobStatus      `json:"status"`
	Stage       string         `json:"stage,omitempty"`
	Error       string         `json:"error,omitempty"`
	ErrorStatus int            `json:"error_status,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Result      *AddResultView `json:"result,omitempty"`
}

// View returns a consistent copy of the job for encoding.
func (j *AddJob) View() AddJobView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return AddJobView{
		ID:          j.ID,
		PostID:      j.PostID,
		Status:      j.Status,
		Stage:       j.Stage,
		Error:       j.Error,
		ErrorStatus: j.ErrorStatus,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Result:      j.Result,
	}
}

// GetStatus returns the current job status (implements SSEJob).
func (j *AddJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

func (j *AddJob) setStage(stage string) {
	j.mu.Lock()
	j.Status = JobStatusRunning
	j.Stage = stage
	j.mu.Unlock()
	j.SendEvent(JobEvent{Type: "progress", Message: stage})
}

func (j *AddJob) complete(view *AddResultView) {
	now := time.Now()
	j.mu.Lock()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.Result = view
	j.mu.Unlock()
	j.SendEvent(JobEvent{Type: "completed", Data: view})
}

func (j *AddJob) fail(message string, status int) {
	now := time.Now()
	j.mu.Lock()
	j.Status = JobStatusFailed
	j.Error = message
	j.ErrorStatus = status
	j.CompletedAt = &now
	j.mu.Unlock()
	j.SendEvent(JobEvent{Type: "job_error", Message: message, Data: map[string]int{"status": status}})
}

func (j *AddJob) finished() bool {
	return isJobTerminal(j.GetStatus())
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async jobs.
type JobManager struct {
	jobs  map[string]*AddJob
	order []string
	mu    sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*AddJob),
	}
}

// CreateJob registers a pending add job. Finished jobs beyond
// constants.JobRetention are forgotten, oldest first.
func (m *JobManager) CreateJob(id string, postID int64) *AddJob {
	job := &AddJob{
		ID:        id,
		PostID:    postID,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[id] = job
	m.order = append(m.order, id)
	m.prune()

	return job
}

// prune must be called with m.mu held.
func (m *JobManager) prune() {
	excess := len(m.order) - constants.JobRetention
	if excess <= 0 {
		return
	}
	m.order = slices.DeleteFunc(m.order, func(id string) bool {
		if excess == 0 {
			return false
		}
		job := m.jobs[id]
		if job != nil && !job.finished() {
			return false
		}
		delete(m.jobs, id)
		excess--
		return true
	})
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *AddJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	m.order = slices.DeleteFunc(m.order, func(other string) bool { return other == id })
}

// ListJobs returns all jobs, oldest first.
func (m *JobManager) ListJobs() []*AddJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*AddJob, 0, len(m.order))
	for _, id := range m.order {
		jobs = append(jobs, m.jobs[id])
	}
	return jobs
}
