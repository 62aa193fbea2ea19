package prefect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vshulcz/prefect-exporter/internal/domain"
	"github.com/vshulcz/prefect-exporter/internal/misc"
	"github.com/vshulcz/prefect-exporter/internal/ports"
)

// pageSize matches the server-side default maximum for filter endpoints.
const pageSize = 200

var errSessionClosed = errors.New("prefect session closed")

// Session issues API calls over its own transport; closing it drops the
// transport's idle connections so nothing is shared with the next cycle.
type Session struct {
	client    *Client
	hc        *http.Client
	transport *http.Transport
	closed    atomic.Bool
}

var _ ports.Session = (*Session)(nil)

// CountFlowRuns calls POST /flow_runs/count.
func (s *Session) CountFlowRuns(ctx context.Context, f domain.FlowRunFilter) (int, error) {
	var n int
	if err := s.do(ctx, http.MethodPost, "/flow_runs/count", newCountFlowRunsRequest(f), &n); err != nil {
		return 0, err
	}
	return n, nil
}

// ReadDeployments calls POST /deployments/filter, following pages until a short one.
func (s *Session) ReadDeployments(ctx context.Context, f domain.DeploymentFilter) ([]domain.Deployment, error) {
	var out []domain.Deployment
	for offset := 0; ; offset += pageSize {
		var page []deploymentResponse
		req := newReadDeploymentsRequest(f, pageSize, offset)
		if err := s.do(ctx, http.MethodPost, "/deployments/filter", req, &page); err != nil {
			return nil, err
		}
		for _, d := range page {
			out = append(out, d.toDomain())
		}
		if len(page) < pageSize {
			return out, nil
		}
	}
}

// ReadFlows calls POST /flows/filter, following pages until a short one.
func (s *Session) ReadFlows(ctx context.Context, f domain.FlowFilter) ([]domain.Flow, error) {
	var out []domain.Flow
	for offset := 0; ; offset += pageSize {
		var page []flowResponse
		req := newReadFlowsRequest(f, pageSize, offset)
		if err := s.do(ctx, http.MethodPost, "/flows/filter", req, &page); err != nil {
			return nil, err
		}
		for _, fl := range page {
			out = append(out, fl.toDomain())
		}
		if len(page) < pageSize {
			return out, nil
		}
	}
}

// Close is idempotent.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.transport != nil {
		s.transport.CloseIdleConnections()
	}
	return nil
}

func (s *Session) health(ctx context.Context) error {
	var healthy bool
	if err := s.do(ctx, http.MethodGet, "/health", nil, &healthy); err != nil {
		return err
	}
	if !healthy {
		return errors.New("health endpoint reported false")
	}
	return nil
}

func (s *Session) do(ctx context.Context, method, path string, payload, out any) error {
	if s.closed.Load() {
		return errSessionClosed
	}

	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", path, err)
		}
		body = b
	}

	log := s.client.log
	op := func() error {
		return s.roundTrip(ctx, method, path, body, out)
	}
	onRetry := func(attempt int, err error) {
		log.Debug("retrying prefect request",
			zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
	}
	return misc.Retry(ctx, s.client.backoff, isRetryableHTTP, onRetry, op)
}

func (s *Session) roundTrip(ctx context.Context, method, path string, body []byte, out any) (retErr error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.client.endpoint(path), rd)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if s.client.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.client.apiKey)
	}

	resp, err := s.hc.Do(req)
	if err != nil {
		return fmt.Errorf("http do %s: %w", path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		if cerr := resp.Body.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close response body: %w", cerr)
		}
	}()

	if err := checkHTTPStatus(path, resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
