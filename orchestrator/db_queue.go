package orchestrator

import (
	"context"
	"time"

	"github.com/bnb-chain/verivid-hub/db"
	"github.com/bnb-chain/verivid-hub/logging"
)

const pollBatch = 16

// DBQueue keeps jobs in the job table. Claims are conditional updates, so any number of workers in
// any number of processes can poll the same table.
type DBQueue struct {
	jobDB db.JobDB
	lease time.Duration
	now   func() time.Time
}

func NewDBQueue(jobDB db.JobDB, lease time.Duration) *DBQueue {
	return &DBQueue{
		jobDB: jobDB,
		lease: lease,
		now:   time.Now,
	}
}

func (q *DBQueue) Enqueue(ctx context.Context, job *db.Job) error {
	return q.jobDB.CreateJob(ctx, job)
}

func (q *DBQueue) Poll(ctx context.Context) (*db.Job, error) {
	now := q.now()
	jobs, err := q.jobDB.ListDueJobs(ctx, now, pollBatch)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		leaseUntil := now.Add(q.lease)
		claimed, err := q.jobDB.ClaimJob(ctx, job, now, leaseUntil)
		if err != nil {
			return nil, err
		}
		if !claimed {
			continue
		}
		if job.Status == db.JobProcessing {
			logging.Logger.Warningf("reclaimed job with expired lease, job=%s, type=%s", job.Id, job.Type)
		}
		job.Status = db.JobProcessing
		job.Attempts++
		job.LeaseUntil = &leaseUntil
		return job, nil
	}
	return nil, ErrQueueEmpty
}

func (q *DBQueue) Ack(ctx context.Context, id string) error {
	return q.jobDB.CompleteJob(ctx, id, q.now())
}

func (q *DBQueue) Retry(ctx context.Context, id string, runAt time.Time, cause string) error {
	return q.jobDB.RescheduleJob(ctx, id, runAt, cause)
}

func (q *DBQueue) Fail(ctx context.Context, id string, cause string) error {
	return q.jobDB.FailJob(ctx, id, cause, q.now())
}

func (q *DBQueue) MarkAlerted(ctx context.Context, id string) error {
	return q.jobDB.MarkJobAlerted(ctx, id)
}

func (q *DBQueue) Get(ctx context.Context, id string) (*db.Job, error) {
	return q.jobDB.GetJob(ctx, id)
}

func (q *DBQueue) ListByAsset(ctx context.Context, assetID string) ([]*db.Job, error) {
	return q.jobDB.ListJobsByAsset(ctx, assetID)
}

func (q *DBQueue) Depth(ctx context.Context) (int64, error) {
	pending, err := q.jobDB.CountJobsByStatus(ctx, db.JobPending)
	if err != nil {
		return 0, err
	}
	processing, err := q.jobDB.CountJobsByStatus(ctx, db.JobProcessing)
	if err != nil {
		return 0, err
	}
	return pending + processing, nil
}
