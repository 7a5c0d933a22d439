package worker

import (
	"context"

	"github.com/cuongbtq/texter-jobs/internal/worker/domain"
)

// Executor runs one job type. The returned map is stored as the job result.
type Executor interface {
	Execute(ctx context.Context, job *domain.Job) (map[string]interface{}, error)
}

// zoneResolver resolves a zip code to an "<offset>_<dst>" string
type zoneResolver interface {
	Resolve(ctx context.Context, zip string) (string, error)
}
