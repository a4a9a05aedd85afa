package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bnb-chain/verivid-hub/db"
)

// MemoryQueue is a single process Queue with the same lease semantics as DBQueue.
type MemoryQueue struct {
	mu    sync.Mutex
	jobs  map[string]*db.Job
	lease time.Duration
	now   func() time.Time
}

func NewMemoryQueue(lease time.Duration) *MemoryQueue {
	return &MemoryQueue{
		jobs:  make(map[string]*db.Job),
		lease: lease,
		now:   time.Now,
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job *db.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.jobs[job.Id]; ok {
		return fmt.Errorf("job %s: %w", job.Id, db.ErrDuplicateEntry)
	}
	now := q.now()
	cp := *job
	cp.CreatedAt, cp.UpdatedAt = now, now
	q.jobs[job.Id] = &cp
	return nil
}

func (q *MemoryQueue) Poll(_ context.Context) (*db.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	due := make([]*db.Job, 0)
	for _, job := range q.jobs {
		switch {
		case job.Status == db.JobPending && !job.NextRunAt.After(now):
			due = append(due, job)
		case job.Status == db.JobProcessing && job.LeaseUntil != nil && job.LeaseUntil.Before(now):
			due = append(due, job)
		}
	}
	if len(due) == 0 {
		return nil, ErrQueueEmpty
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextRunAt.Equal(due[j].NextRunAt) {
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		}
		return due[i].NextRunAt.Before(due[j].NextRunAt)
	})
	job := due[0]
	leaseUntil := now.Add(q.lease)
	job.Status = db.JobProcessing
	job.Attempts++
	job.LeaseUntil = &leaseUntil
	job.UpdatedAt = now
	cp := *job
	return &cp, nil
}

func (q *MemoryQueue) update(id string, fn func(job *db.Job)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	fn(job)
	job.UpdatedAt = q.now()
	return nil
}

func (q *MemoryQueue) Ack(_ context.Context, id string) error {
	return q.update(id, func(job *db.Job) {
		now := q.now()
		job.Status = db.JobCompleted
		job.LeaseUntil = nil
		job.LastError = ""
		job.CompletedAt = &now
	})
}

func (q *MemoryQueue) Retry(_ context.Context, id string, runAt time.Time, cause string) error {
	return q.update(id, func(job *db.Job) {
		if job.Status != db.JobProcessing {
			return
		}
		job.Status = db.JobPending
		job.NextRunAt = runAt
		job.LeaseUntil = nil
		job.LastError = cause
	})
}

func (q *MemoryQueue) Fail(_ context.Context, id string, cause string) error {
	return q.update(id, func(job *db.Job) {
		now := q.now()
		job.Status = db.JobFailed
		job.LeaseUntil = nil
		job.LastError = cause
		job.CompletedAt = &now
	})
}

func (q *MemoryQueue) MarkAlerted(_ context.Context, id string) error {
	return q.update(id, func(job *db.Job) {
		job.Alerted = true
	})
}

func (q *MemoryQueue) Get(_ context.Context, id string) (*db.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (q *MemoryQueue) ListByAsset(_ context.Context, assetID string) ([]*db.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	jobs := make([]*db.Job, 0)
	for _, job := range q.jobs {
		if job.AssetId == assetID {
			cp := *job
			jobs = append(jobs, &cp)
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (q *MemoryQueue) Depth(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var depth int64
	for _, job := range q.jobs {
		if !job.Terminal() {
			depth++
		}
	}
	return depth, nil
}
