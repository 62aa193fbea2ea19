// Package domain holds the orchestration objects the exporter reads and the state groupings it reports on.
package domain

// State names grouped by how the exporter reports them.
// The groups are disjoint: a run is counted in at most one of them.
var (
	SuccessStateNames = []string{"Completed", "Cached"}
	ErrorStateNames   = []string{"RolledBack", "Failed", "TimedOut", "Crashed", "Suspended"}
	WarningStateNames = []string{"Cancelling", "Cancelled", "Paused", "Retrying"}
)

// DeploymentStatus reports whether a deployment has a worker able to pick up its runs.
type DeploymentStatus string

const (
	DeploymentReady    DeploymentStatus = "READY"
	DeploymentNotReady DeploymentStatus = "NOT_READY"
)

// FlowRun is a single execution of a flow.
type FlowRun struct {
	ID        string
	Name      string
	FlowID    string
	StateName string
	StateType string
}

// Flow is a registered workflow definition.
type Flow struct {
	ID   string
	Name string
}

// Deployment is a named, schedulable configuration of a flow.
type Deployment struct {
	ID     string
	Name   string
	FlowID string
	Status DeploymentStatus
}

// Ready reports whether the deployment status is READY.
func (d Deployment) Ready() bool {
	return d.Status == DeploymentReady
}

// FlowRunFilter restricts a flow run query. An empty StateNames matches every run.
type FlowRunFilter struct {
	StateNames []string
}

// DeploymentFilter selects deployments by the name of the flow they deploy.
type DeploymentFilter struct {
	FlowNames []string
}

// FlowFilter selects flows by name. An empty Names matches every flow.
type FlowFilter struct {
	Names []string
}
