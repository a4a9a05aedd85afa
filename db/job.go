package db

import (
	"time"

	"github.com/bnb-chain/verivid-hub/types"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

type Job struct {
	Id          string        `gorm:"primaryKey;size:36"`
	Type        types.JobType `gorm:"NOT NULL;size:32"`
	AssetId     string        `gorm:"NOT NULL;index:idx_job_asset;size:36"`
	Payload     string        `gorm:"type:text"`
	Status      JobStatus     `gorm:"NOT NULL;index:idx_job_status_run_at,priority:1;size:16"`
	NextRunAt   time.Time     `gorm:"NOT NULL;index:idx_job_status_run_at,priority:2"`
	Attempts    int           `gorm:"NOT NULL"`
	MaxAttempts int           `gorm:"NOT NULL"`
	LeaseUntil  *time.Time
	LastError   string `gorm:"type:text"`
	Alerted     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

func (*Job) TableName() string {
	return "job"
}

func (j *Job) Terminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}
