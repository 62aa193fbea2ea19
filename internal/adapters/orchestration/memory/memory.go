// Package memory implements an in-memory orchestration service with the same
// filter semantics as the Prefect adapter.
package memory

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vshulcz/prefect-exporter/internal/domain"
	"github.com/vshulcz/prefect-exporter/internal/ports"
)

// Op names a session operation for fault injection.
type Op string

const (
	OpCountFlowRuns   Op = "count_flow_runs"
	OpReadDeployments Op = "read_deployments"
	OpReadFlows       Op = "read_flows"
)

var errClosed = errors.New("memory session closed")

// Store holds flows, flow runs and deployments behind a single RW lock.
type Store struct {
	flows       map[string]domain.Flow
	runs        []domain.FlowRun
	deployments []domain.Deployment
	failures    map[Op]error
	latency     map[Op]time.Duration
	connectErr  error
	sessions    int
	open        int
	mu          sync.RWMutex
}

var _ ports.Connector = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		flows:    make(map[string]domain.Flow),
		failures: make(map[Op]error),
		latency:  make(map[Op]time.Duration),
	}
}

// AddFlow returns the flow with the given name, creating it when missing.
func (s *Store) AddFlow(name string) domain.Flow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flowLocked(name)
}

func (s *Store) flowLocked(name string) domain.Flow {
	for _, f := range s.flows {
		if f.Name == name {
			return f
		}
	}
	f := domain.Flow{ID: uuid.NewString(), Name: name}
	s.flows[f.ID] = f
	return f
}

// AddFlowRun records a run of flowName currently in stateName.
func (s *Store) AddFlowRun(flowName, stateName string) domain.FlowRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flowLocked(flowName)
	r := domain.FlowRun{ID: uuid.NewString(), FlowID: f.ID, StateName: stateName}
	s.runs = append(s.runs, r)
	return r
}

// SetFlowRunState moves an existing run to a new state.
func (s *Store) SetFlowRunState(id, stateName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].ID == id {
			s.runs[i].StateName = stateName
			return true
		}
	}
	return false
}

// AddDeployment records a deployment of flowName.
func (s *Store) AddDeployment(name, flowName string, status domain.DeploymentStatus) domain.Deployment {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flowLocked(flowName)
	d := domain.Deployment{ID: uuid.NewString(), Name: name, FlowID: f.ID, Status: status}
	s.deployments = append(s.deployments, d)
	return d
}

// FailConnect makes Connect return err; nil clears it.
func (s *Store) FailConnect(err error) {
	s.mu.Lock()
	s.connectErr = err
	s.mu.Unlock()
}

// FailOn makes every call of op return err; nil clears it.
func (s *Store) FailOn(op Op, err error) {
	s.mu.Lock()
	if err == nil {
		delete(s.failures, op)
	} else {
		s.failures[op] = err
	}
	s.mu.Unlock()
}

// Delay makes op wait d (or until its context ends) before answering.
func (s *Store) Delay(op Op, d time.Duration) {
	s.mu.Lock()
	s.latency[op] = d
	s.mu.Unlock()
}

// Sessions reports how many sessions were opened and how many are still open.
func (s *Store) Sessions() (opened, open int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions, s.open
}

// Connect opens a session.
func (s *Store) Connect(ctx context.Context) (ports.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectErr != nil {
		return nil, s.connectErr
	}
	s.sessions++
	s.open++
	return &session{store: s}, nil
}

type session struct {
	store  *Store
	once   sync.Once
	closed bool
	mu     sync.Mutex
}

func (ss *session) enter(ctx context.Context, op Op) error {
	ss.mu.Lock()
	closed := ss.closed
	ss.mu.Unlock()
	if closed {
		return errClosed
	}

	ss.store.mu.RLock()
	err := ss.store.failures[op]
	d := ss.store.latency[op]
	ss.store.mu.RUnlock()

	if d > 0 {
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}

func (ss *session) CountFlowRuns(ctx context.Context, f domain.FlowRunFilter) (int, error) {
	if err := ss.enter(ctx, OpCountFlowRuns); err != nil {
		return 0, err
	}
	ss.store.mu.RLock()
	defer ss.store.mu.RUnlock()
	if len(f.StateNames) == 0 {
		return len(ss.store.runs), nil
	}
	n := 0
	for _, r := range ss.store.runs {
		if slices.Contains(f.StateNames, r.StateName) {
			n++
		}
	}
	return n, nil
}

func (ss *session) ReadDeployments(ctx context.Context, f domain.DeploymentFilter) ([]domain.Deployment, error) {
	if err := ss.enter(ctx, OpReadDeployments); err != nil {
		return nil, err
	}
	ss.store.mu.RLock()
	defer ss.store.mu.RUnlock()
	var out []domain.Deployment
	for _, d := range ss.store.deployments {
		if len(f.FlowNames) == 0 || slices.Contains(f.FlowNames, ss.store.flows[d.FlowID].Name) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (ss *session) ReadFlows(ctx context.Context, f domain.FlowFilter) ([]domain.Flow, error) {
	if err := ss.enter(ctx, OpReadFlows); err != nil {
		return nil, err
	}
	ss.store.mu.RLock()
	defer ss.store.mu.RUnlock()
	out := make([]domain.Flow, 0, len(ss.store.flows))
	for _, fl := range ss.store.flows {
		if len(f.Names) == 0 || slices.Contains(f.Names, fl.Name) {
			out = append(out, fl)
		}
	}
	slices.SortFunc(out, func(a, b domain.Flow) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (ss *session) Close() error {
	ss.once.Do(func() {
		ss.mu.Lock()
		ss.closed = true
		ss.mu.Unlock()

		ss.store.mu.Lock()
		ss.store.open--
		ss.store.mu.Unlock()
	})
	return nil
}
