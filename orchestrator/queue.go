package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/bnb-chain/verivid-hub/db"
)

var ErrQueueEmpty = errors.New("no due job")

// Queue is a durable set of pipeline jobs. Poll leases one due job to the caller; a job whose lease
// runs out before it is acked becomes due again, so delivery is at least once.
type Queue interface {
	Enqueue(ctx context.Context, job *db.Job) error
	Poll(ctx context.Context) (*db.Job, error)
	Ack(ctx context.Context, id string) error
	Retry(ctx context.Context, id string, runAt time.Time, cause string) error
	Fail(ctx context.Context, id string, cause string) error
	MarkAlerted(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*db.Job, error)
	ListByAsset(ctx context.Context, assetID string) ([]*db.Job, error)
	// Depth counts jobs that are not terminal yet.
	Depth(ctx context.Context) (int64, error)
}
