package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bnb-chain/verivid-hub/config"
	"github.com/bnb-chain/verivid-hub/db"
	"github.com/bnb-chain/verivid-hub/external/notify"
	"github.com/bnb-chain/verivid-hub/logging"
	"github.com/bnb-chain/verivid-hub/metrics"
	"github.com/bnb-chain/verivid-hub/types"
)

// ErrPermanent marks a stage failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent failure")

// Handler runs one stage for one job. It must be idempotent: a job can be delivered more than once.
type Handler func(ctx context.Context, job *db.Job) error

type StageStatus struct {
	Type      types.JobType `json:"type"`
	JobID     string        `json:"jobId"`
	Status    db.JobStatus  `json:"status"`
	Attempts  int           `json:"attempts"`
	LastError string        `json:"lastError,omitempty"`
}

// Progress is the pipeline state of one asset. Complete means every stage is terminal.
type Progress struct {
	AssetID  string         `json:"assetId"`
	Stages   []*StageStatus `json:"stages"`
	Complete bool           `json:"complete"`
	Failed   bool           `json:"failed"`
}

type Orchestrator struct {
	queue    Queue
	handlers map[types.JobType]Handler
	cfg      *config.PipelineConfig
	notifier notify.Notifier
	now      func() time.Time
}

func NewOrchestrator(queue Queue, cfg *config.PipelineConfig, notifier notify.Notifier) *Orchestrator {
	return &Orchestrator{
		queue:    queue,
		handlers: make(map[types.JobType]Handler),
		cfg:      cfg,
		notifier: notifier,
		now:      time.Now,
	}
}

// Register binds the handler of a job type. It is not safe to call once Run started.
func (o *Orchestrator) Register(jobType types.JobType, handler Handler) {
	o.handlers[jobType] = handler
}

func (o *Orchestrator) Enqueue(ctx context.Context, jobType types.JobType, assetID string, payload interface{}) (*db.Job, error) {
	if !jobType.Valid() {
		return nil, fmt.Errorf("unknown job type %s", jobType)
	}
	var raw string
	if payload != nil {
		bz, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = string(bz)
	}
	job := &db.Job{
		Id:          uuid.NewString(),
		Type:        jobType,
		AssetId:     assetID,
		Payload:     raw,
		Status:      db.JobPending,
		NextRunAt:   o.now(),
		MaxAttempts: o.cfg.MaxAttempts,
	}
	if err := o.queue.Enqueue(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// EnqueuePipeline dispatches every stage for the asset in the fixed stage order.
func (o *Orchestrator) EnqueuePipeline(ctx context.Context, assetID string) ([]*db.Job, error) {
	jobs := make([]*db.Job, 0, len(types.PipelineStages))
	for _, stage := range types.PipelineStages {
		job, err := o.Enqueue(ctx, stage, assetID, nil)
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (o *Orchestrator) Status(ctx context.Context, jobID string) (*db.Job, error) {
	return o.queue.Get(ctx, jobID)
}

func (o *Orchestrator) AssetProgress(ctx context.Context, assetID string) (*Progress, error) {
	jobs, err := o.queue.ListByAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	progress := &Progress{AssetID: assetID, Stages: make([]*StageStatus, 0, len(jobs))}
	for _, job := range jobs {
		progress.Stages = append(progress.Stages, &StageStatus{
			Type:      job.Type,
			JobID:     job.Id,
			Status:    job.Status,
			Attempts:  job.Attempts,
			LastError: job.LastError,
		})
	}
	sort.SliceStable(progress.Stages, func(i, j int) bool {
		return stageIndex(progress.Stages[i].Type) < stageIndex(progress.Stages[j].Type)
	})
	progress.Complete = len(jobs) > 0
	for _, job := range jobs {
		if !job.Terminal() {
			progress.Complete = false
		}
		if job.Status == db.JobFailed {
			progress.Failed = true
		}
	}
	return progress, nil
}

func stageIndex(t types.JobType) int {
	for i, stage := range types.PipelineStages {
		if stage == t {
			return i
		}
	}
	return len(types.PipelineStages)
}

// Run starts the worker pool and blocks until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < o.cfg.WorkerNum; i++ {
		workerID := i
		g.Go(func() error {
			o.work(ctx, workerID)
			return nil
		})
	}
	logging.Logger.Infof("pipeline started with %d workers", o.cfg.WorkerNum)
	return g.Wait()
}

func (o *Orchestrator) work(ctx context.Context, workerID int) {
	ticker := time.NewTicker(o.cfg.PollInterval())
	defer ticker.Stop()
	for {
		// drain due jobs before waiting for the next tick
		for {
			processed, err := o.RunOnce(ctx)
			if err != nil {
				logging.Logger.Errorf("worker %d failed to poll queue, err=%s", workerID, err.Error())
				break
			}
			if !processed || ctx.Err() != nil {
				break
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce processes at most one due job and reports whether it found one.
func (o *Orchestrator) RunOnce(ctx context.Context) (bool, error) {
	job, err := o.queue.Poll(ctx)
	if err != nil {
		if errors.Is(err, ErrQueueEmpty) {
			return false, nil
		}
		return false, err
	}
	if job.Attempts > job.MaxAttempts {
		// only a reclaimed lease gets past the ceiling, the handler never returned for the last attempt
		o.fail(ctx, job, fmt.Errorf("lease expired after %d attempts", job.MaxAttempts))
		return true, nil
	}
	o.process(ctx, job)
	return true, nil
}

func (o *Orchestrator) process(ctx context.Context, job *db.Job) {
	handler, ok := o.handlers[job.Type]
	var err error
	if !ok {
		err = fmt.Errorf("no handler for job type %s: %w", job.Type, ErrPermanent)
	} else {
		stageCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout())
		err = runHandler(stageCtx, handler, job)
		cancel()
	}
	if err == nil {
		if err = o.queue.Ack(ctx, job.Id); err != nil {
			logging.Logger.Errorf("failed to ack job, job=%s, err=%s", job.Id, err.Error())
		}
		metrics.PipelineJobsCounter.WithLabelValues(string(job.Type), metrics.ResultSuccess).Inc()
		logging.Logger.Infof("job done, job=%s, type=%s, asset=%s", job.Id, job.Type, job.AssetId)
		return
	}

	if ctx.Err() != nil {
		// shutting down, the lease lets another worker pick the job up
		return
	}
	if errors.Is(err, ErrPermanent) || job.Attempts >= job.MaxAttempts {
		o.fail(ctx, job, err)
		return
	}
	runAt := o.now().Add(o.backoff(job.Attempts))
	if rerr := o.queue.Retry(ctx, job.Id, runAt, err.Error()); rerr != nil {
		logging.Logger.Errorf("failed to reschedule job, job=%s, err=%s", job.Id, rerr.Error())
	}
	metrics.PipelineJobsCounter.WithLabelValues(string(job.Type), metrics.ResultRetry).Inc()
	logging.Logger.Warningf("job failed, retry at %s, job=%s, type=%s, attempts=%d, err=%s",
		runAt.Format(time.RFC3339), job.Id, job.Type, job.Attempts, err.Error())
}

func runHandler(ctx context.Context, handler Handler, job *db.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}

// backoff is BaseBackoff * 2^(attempts-1), capped at MaxBackoff.
func (o *Orchestrator) backoff(attempts int) time.Duration {
	delay := o.cfg.BaseBackoff()
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= o.cfg.MaxBackoff() {
			return o.cfg.MaxBackoff()
		}
	}
	if delay > o.cfg.MaxBackoff() {
		return o.cfg.MaxBackoff()
	}
	return delay
}

func (o *Orchestrator) fail(ctx context.Context, job *db.Job, cause error) {
	if err := o.queue.Fail(ctx, job.Id, cause.Error()); err != nil {
		logging.Logger.Errorf("failed to mark job failed, job=%s, err=%s", job.Id, err.Error())
		return
	}
	metrics.PipelineJobsCounter.WithLabelValues(string(job.Type), metrics.ResultFailure).Inc()
	metrics.PipelineJobFailedCounter.WithLabelValues(string(job.Type)).Inc()
	logging.Logger.Criticalf("job failed permanently, job=%s, type=%s, asset=%s, attempts=%d, err=%s",
		job.Id, job.Type, job.AssetId, job.Attempts, cause.Error())
	if o.cfg.AlertEmail != "" && o.notifier != nil {
		subject := fmt.Sprintf("Pipeline job %s failed", job.Type)
		body := fmt.Sprintf("Job %s for asset %s failed after %d attempts: %s", job.Id, job.AssetId, job.Attempts, cause.Error())
		if err := o.notifier.Notify(ctx, o.cfg.AlertEmail, subject, body); err != nil {
			logging.Logger.Errorf("failed to send job alert, job=%s, err=%s", job.Id, err.Error())
		}
	}
	if err := o.queue.MarkAlerted(ctx, job.Id); err != nil {
		logging.Logger.Errorf("failed to mark job alerted, job=%s, err=%s", job.Id, err.Error())
	}
}
