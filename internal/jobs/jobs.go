// Package jobs runs upload processing asynchronously. An uploaded CSV
// is parsed, classified, summarized and persisted off the request path;
// clients follow progress over the WebSocket channel.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Processing stages reported to clients while an upload runs.
const (
	StageParse     = "parse"
	StageClassify  = "classify"
	StageSummarize = "summarize"
	StagePersist   = "persist"
)

// Job is one queued upload-processing run.
type Job struct {
	ID           string     `json:"id"`
	BuildingName string     `json:"building_name,omitempty"`
	Filename     string     `json:"filename"`
	UploadPath   string     `json:"-"`
	RequestedBy  string     `json:"requested_by"`
	Status       Status     `json:"status"`
	Stage        string     `json:"stage,omitempty"`
	Progress     int        `json:"progress"`
	Message      string     `json:"message,omitempty"`
	Error        string     `json:"error,omitempty"`
	InspectionID string     `json:"inspection_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a pending job for an uploaded file.
func NewJob(filename, uploadPath, buildingName, requestedBy string) *Job {
	return &Job{
		ID:           uuid.New().String(),
		BuildingName: buildingName,
		Filename:     filename,
		UploadPath:   uploadPath,
		RequestedBy:  requestedBy,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
}

// Filter selects jobs when listing.
type Filter struct {
	Status      Status
	RequestedBy string
	Limit       int
}

// ErrNotFound is returned when no job matches the requested ID.
var ErrNotFound = fmt.Errorf("job not found")

// memoryStore keeps job records in memory. Jobs are transient progress
// trackers; the durable outcome is the persisted inspection.
type memoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func newMemoryStore() *memoryStore {
	return &memoryStore{jobs: make(map[string]*Job)}
}

func (s *memoryStore) put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
}

func (s *memoryStore) get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *memoryStore) list(filter Filter) []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Job
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.RequestedBy != "" && job.RequestedBy != filter.RequestedBy {
			continue
		}
		copied := *job
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// prune drops terminal jobs older than the retention window.
func (s *memoryStore) prune(olderThan time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int
	for id, job := range s.jobs {
		if job.CompletedAt == nil || job.CompletedAt.After(olderThan) {
			continue
		}
		delete(s.jobs, id)
		removed++
	}
	return removed
}

// Executor runs the actual processing for a job. Implementations report
// progress through the callback; the queue forwards it to subscribers.
type Executor interface {
	Execute(ctx context.Context, job *Job, progress func(stage string, pct int, message string)) (inspectionID string, err error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, job *Job, progress func(stage string, pct int, message string)) (string, error)

func (f ExecutorFunc) Execute(ctx context.Context, job *Job, progress func(stage string, pct int, message string)) (string, error) {
	return f(ctx, job, progress)
}
