package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu        sync.Mutex
	progress  []string
	completed []string
	failed    []string
}

func (n *recordingNotifier) JobProgress(jobID, stage string, progress int, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress = append(n.progress, stage)
}

func (n *recordingNotifier) JobCompleted(jobID, inspectionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, jobID)
}

func (n *recordingNotifier) JobFailed(jobID string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, jobID)
}

func waitForStatus(t *testing.T, q *Queue, id string, want Status) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := q.Get(id)
		require.NoError(t, err)
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", id, want)
	return nil
}

func TestQueueRunsJobToCompletion(t *testing.T) {
	notifier := &recordingNotifier{}
	executor := ExecutorFunc(func(ctx context.Context, job *Job, progress func(string, int, string)) (string, error) {
		progress(StageParse, 25, "parsing")
		progress(StagePersist, 90, "saving")
		return "insp-1", nil
	})

	q := NewQueue(1, executor, notifier, nil)
	q.Start(context.Background())
	defer q.Stop(time.Second)

	job := NewJob("upload.csv", "/tmp/upload.csv", "Tower A", "inspector1")
	require.NoError(t, q.Enqueue(job))

	done := waitForStatus(t, q, job.ID, StatusCompleted)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, "insp-1", done.InspectionID)
	require.NotNil(t, done.CompletedAt)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, []string{StageParse, StagePersist}, notifier.progress)
	assert.Equal(t, []string{job.ID}, notifier.completed)
}

func TestQueueRecordsFailure(t *testing.T) {
	notifier := &recordingNotifier{}
	executor := ExecutorFunc(func(ctx context.Context, job *Job, progress func(string, int, string)) (string, error) {
		return "", errors.New("malformed export")
	})

	q := NewQueue(1, executor, notifier, nil)
	q.Start(context.Background())
	defer q.Stop(time.Second)

	job := NewJob("bad.csv", "/tmp/bad.csv", "", "inspector1")
	require.NoError(t, q.Enqueue(job))

	failed := waitForStatus(t, q, job.ID, StatusFailed)
	assert.Contains(t, failed.Error, "malformed export")

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, []string{job.ID}, notifier.failed)
}

func TestQueueRecoversFromPanic(t *testing.T) {
	executor := ExecutorFunc(func(ctx context.Context, job *Job, progress func(string, int, string)) (string, error) {
		panic("boom")
	})

	q := NewQueue(1, executor, nil, nil)
	q.Start(context.Background())
	defer q.Stop(time.Second)

	job := NewJob("panic.csv", "/tmp/panic.csv", "", "inspector1")
	require.NoError(t, q.Enqueue(job))

	failed := waitForStatus(t, q, job.ID, StatusFailed)
	assert.Contains(t, failed.Error, "internal error")
}

func TestQueueCancelRunningJob(t *testing.T) {
	started := make(chan struct{})
	executor := ExecutorFunc(func(ctx context.Context, job *Job, progress func(string, int, string)) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})

	q := NewQueue(1, executor, nil, nil)
	q.Start(context.Background())
	defer q.Stop(time.Second)

	job := NewJob("slow.csv", "/tmp/slow.csv", "", "inspector1")
	require.NoError(t, q.Enqueue(job))

	<-started
	require.NoError(t, q.Cancel(job.ID))
	waitForStatus(t, q, job.ID, StatusCancelled)
}

func TestQueueListAndPrune(t *testing.T) {
	executor := ExecutorFunc(func(ctx context.Context, job *Job, progress func(string, int, string)) (string, error) {
		return "insp", nil
	})

	q := NewQueue(1, executor, nil, nil)
	q.Start(context.Background())
	defer q.Stop(time.Second)

	first := NewJob("a.csv", "/tmp/a.csv", "", "inspector1")
	second := NewJob("b.csv", "/tmp/b.csv", "", "inspector2")
	require.NoError(t, q.Enqueue(first))
	require.NoError(t, q.Enqueue(second))

	waitForStatus(t, q, first.ID, StatusCompleted)
	waitForStatus(t, q, second.ID, StatusCompleted)

	assert.Len(t, q.List(Filter{}), 2)
	assert.Len(t, q.List(Filter{RequestedBy: "inspector1"}), 1)

	// Everything just completed, so nothing is older than the window.
	assert.Zero(t, q.Prune(time.Hour))
	assert.Equal(t, 2, q.Prune(0))
	assert.Empty(t, q.List(Filter{}))
}
