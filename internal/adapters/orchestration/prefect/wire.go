package prefect

import "github.com/vshulcz/prefect-exporter/internal/domain"

// Request bodies follow the Prefect filter schema: every field is optional and
// an omitted field does not constrain the query.

type anyOf struct {
	Any []string `json:"any_"`
}

type nameFilter struct {
	Name *anyOf `json:"name,omitempty"`
}

type flowRunFilter struct {
	State *nameFilter `json:"state,omitempty"`
}

type countFlowRunsRequest struct {
	FlowRuns *flowRunFilter `json:"flow_runs,omitempty"`
}

type readDeploymentsRequest struct {
	Flows  *nameFilter `json:"flows,omitempty"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

type readFlowsRequest struct {
	Flows  *nameFilter `json:"flows,omitempty"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

func names(vals []string) *nameFilter {
	if len(vals) == 0 {
		return nil
	}
	return &nameFilter{Name: &anyOf{Any: append([]string(nil), vals...)}}
}

func newCountFlowRunsRequest(f domain.FlowRunFilter) countFlowRunsRequest {
	if len(f.StateNames) == 0 {
		return countFlowRunsRequest{}
	}
	return countFlowRunsRequest{FlowRuns: &flowRunFilter{State: names(f.StateNames)}}
}

func newReadDeploymentsRequest(f domain.DeploymentFilter, limit, offset int) readDeploymentsRequest {
	return readDeploymentsRequest{Flows: names(f.FlowNames), Limit: limit, Offset: offset}
}

func newReadFlowsRequest(f domain.FlowFilter, limit, offset int) readFlowsRequest {
	return readFlowsRequest{Flows: names(f.Names), Limit: limit, Offset: offset}
}

type deploymentResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	FlowID string `json:"flow_id"`
	Status string `json:"status"`
}

func (d deploymentResponse) toDomain() domain.Deployment {
	return domain.Deployment{
		ID:     d.ID,
		Name:   d.Name,
		FlowID: d.FlowID,
		Status: domain.DeploymentStatus(d.Status),
	}
}

type flowResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (f flowResponse) toDomain() domain.Flow {
	return domain.Flow{ID: f.ID, Name: f.Name}
}
