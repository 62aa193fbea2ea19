package ports

import (
	"context"

	"github.com/vshulcz/prefect-exporter/internal/domain"
)

// Connector opens sessions against the orchestration service.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

// Session is a cycle-scoped view of the orchestration API. Callers must Close it.
// Methods may be called concurrently.
type Session interface {
	CountFlowRuns(ctx context.Context, f domain.FlowRunFilter) (int, error)
	ReadDeployments(ctx context.Context, f domain.DeploymentFilter) ([]domain.Deployment, error)
	ReadFlows(ctx context.Context, f domain.FlowFilter) ([]domain.Flow, error)
	Close() error
}
