package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/dispatch-core/internal/model"
	"github.com/nurpe/dispatch-core/internal/service"
)

const defaultTimeout = 10 * time.Second

// Client talks to the dispatch HTTP API on behalf of one bearer token. It
// satisfies service.OpenRequestLister and service.RequestReader, so the feed
// poller and the status tracker run unchanged against a remote server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client

	// pollInterval is the last interval the server advertised on the feed.
	pollInterval atomic.Int64
}

func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

type openRequest struct {
	ID           uuid.UUID       `json:"id"`
	ServiceName  string          `json:"service_name"`
	CustomerName string          `json:"customer_name"`
	Address      string          `json:"address"`
	Total        decimal.Decimal `json:"total"`
	CreatedAt    time.Time       `json:"created_at"`
}

type claimBody struct {
	Result       service.ClaimOutcome  `json:"result"`
	AlreadyOwned bool                  `json:"already_owned"`
	Reason       string                `json:"reason"`
	Request      *model.ServiceRequest `json:"request"`
}

type statusBody struct {
	Request model.ServiceRequest `json:"request"`
	Label   string               `json:"label"`
}

func (c *Client) ListOpenRequests(ctx context.Context) ([]model.ServiceRequest, error) {
	var body struct {
		Requests []openRequest `json:"requests"`
	}
	_, header, err := c.send(ctx, http.MethodGet, "/requests/open", nil, &body)
	if err != nil {
		return nil, err
	}
	if advertised, err := time.ParseDuration(header.Get(service.PollIntervalHeader)); err == nil && advertised > 0 {
		c.pollInterval.Store(int64(advertised))
	}

	rows := make([]model.ServiceRequest, 0, len(body.Requests))
	for _, item := range body.Requests {
		rows = append(rows, model.ServiceRequest{
			ID:           item.ID,
			CreatedAt:    item.CreatedAt,
			Status:       model.RequestStatusSearching,
			ServiceName:  item.ServiceName,
			CustomerName: item.CustomerName,
			Address:      item.Address,
			Price:        model.PriceSnapshot{Total: item.Total},
		})
	}
	return rows, nil
}

// PollInterval returns the feed poll interval the server advertised on the
// last ListOpenRequests call, or zero when it never sent one.
func (c *Client) PollInterval() time.Duration {
	return time.Duration(c.pollInterval.Load())
}

func (c *Client) Get(ctx context.Context, id uuid.UUID) (*model.ServiceRequest, error) {
	var body statusBody
	if _, err := c.do(ctx, http.MethodGet, "/requests/"+id.String()+"/status", nil, &body); err != nil {
		return nil, err
	}
	return &body.Request, nil
}

// Claim sends exactly one claim attempt. A 409 is a LOST result, not an error.
func (c *Client) Claim(ctx context.Context, id uuid.UUID) (service.ClaimResult, error) {
	var body claimBody
	status, err := c.do(ctx, http.MethodPost, "/requests/"+id.String()+"/claim", nil, &body)
	if err != nil && status != http.StatusConflict {
		return service.ClaimResult{}, err
	}
	if status == http.StatusConflict {
		if body.Reason == "" {
			body.Reason = service.ErrClaimLost.Error()
		}
		return service.ClaimResult{Outcome: service.ClaimLost, Reason: body.Reason}, nil
	}
	return service.ClaimResult{
		Outcome:      body.Result,
		Request:      body.Request,
		AlreadyOwned: body.AlreadyOwned,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) (int, error) {
	status, _, err := c.send(ctx, method, path, in, out)
	return status, err
}

func (c *Client) send(ctx context.Context, method, path string, in, out interface{}) (int, http.Header, error) {
	var payload io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, nil, err
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, fmt.Errorf("%w: %v", service.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, resp.Header, fmt.Errorf("%w: read body: %v", service.ErrStoreUnavailable, err)
	}

	if resp.StatusCode == http.StatusConflict && out != nil {
		_ = json.Unmarshal(raw, out)
	}
	if err := statusError(resp.StatusCode, raw); err != nil {
		return resp.StatusCode, resp.Header, err
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, resp.Header, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, resp.Header, nil
}

func statusError(code int, body []byte) error {
	if code < 300 {
		return nil
	}

	var payload struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	msg := payload.Error
	if msg == "" {
		msg = http.StatusText(code)
	}

	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", service.ErrNotFound, msg)
	case code == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", service.ErrInvalidInput, msg)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", service.ErrPermissionDenied, msg)
	case code == http.StatusConflict:
		return fmt.Errorf("%w: %s", service.ErrInvalidTransition, msg)
	case code >= 500:
		return fmt.Errorf("%w: %s", service.ErrStoreUnavailable, msg)
	default:
		return fmt.Errorf("unexpected status %d: %s", code, msg)
	}
}
