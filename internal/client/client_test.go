package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/dispatch-core/internal/model"
	"github.com/nurpe/dispatch-core/internal/service"
)

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "token-1", srv.Client())
}

func TestClient_ListOpenRequests(t *testing.T) {
	id := uuid.New()
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/requests/open" || r.Header.Get("Authorization") != "Bearer token-1" {
			t.Errorf("unexpected request %s %q", r.URL.Path, r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{"requests":[{"id":"` + id.String() + `","service_name":"Blood Pressure Check","total":"28.00","created_at":"2026-03-01T10:00:00Z"}]}`))
	})

	rows, err := c.ListOpenRequests(context.Background())
	if err != nil {
		t.Fatalf("ListOpenRequests() error = %v", err)
	}
	if len(rows) != 1 || rows[0].ID != id || rows[0].Status != model.RequestStatusSearching {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].Price.Total.String() != "28" {
		t.Errorf("total = %s", rows[0].Price.Total)
	}
}

func TestClient_PollInterval(t *testing.T) {
	var advertise atomic.Value
	advertise.Store("")
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if v := advertise.Load().(string); v != "" {
			w.Header().Set(service.PollIntervalHeader, v)
		}
		_, _ = w.Write([]byte(`{"requests":[]}`))
	})

	tests := []struct {
		header string
		want   time.Duration
	}{
		{header: "", want: 0},
		{header: "3s", want: 3 * time.Second},
		{header: "garbage", want: 3 * time.Second},
		{header: "-1s", want: 3 * time.Second},
		{header: "750ms", want: 750 * time.Millisecond},
	}
	for _, tt := range tests {
		advertise.Store(tt.header)
		if _, err := c.ListOpenRequests(context.Background()); err != nil {
			t.Fatalf("ListOpenRequests() error = %v", err)
		}
		if got := c.PollInterval(); got != tt.want {
			t.Errorf("after %q PollInterval() = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusNotFound, service.ErrNotFound},
		{http.StatusForbidden, service.ErrPermissionDenied},
		{http.StatusBadRequest, service.ErrInvalidInput},
		{http.StatusServiceUnavailable, service.ErrStoreUnavailable},
		{http.StatusInternalServerError, service.ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(`{"error":"boom"}`))
			})
			_, err := c.Get(context.Background(), uuid.New())
			if !errors.Is(err, tt.want) {
				t.Errorf("Get() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClient_TransportFailureIsUnavailable(t *testing.T) {
	c := New("http://127.0.0.1:1", "", &http.Client{Timeout: time.Second})
	_, err := c.ListOpenRequests(context.Background())
	if !errors.Is(err, service.ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
}

func TestClient_Claim(t *testing.T) {
	id := uuid.New()

	t.Run("won", func(t *testing.T) {
		c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/requests/"+id.String()+"/claim" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			_, _ = w.Write([]byte(`{"result":"WON","request":{"id":"` + id.String() + `","status":"CLAIMED"}}`))
		})
		result, err := c.Claim(context.Background(), id)
		if err != nil {
			t.Fatalf("Claim() error = %v", err)
		}
		if !result.Won() || result.Request == nil || result.Request.Status != model.RequestStatusClaimed {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("lost", func(t *testing.T) {
		c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"result":"LOST","reason":"another professional already accepted this request"}`))
		})
		result, err := c.Claim(context.Background(), id)
		if err != nil {
			t.Fatalf("Claim() error = %v", err)
		}
		if result.Won() || result.Reason != service.ErrClaimLost.Error() {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("server failure", func(t *testing.T) {
		c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		if _, err := c.Claim(context.Background(), id); !errors.Is(err, service.ErrStoreUnavailable) {
			t.Errorf("Claim() error = %v, want ErrStoreUnavailable", err)
		}
	})
}

func TestClient_DrivesTracker(t *testing.T) {
	id := uuid.New()
	var calls atomic.Int32
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		status := "SEARCHING"
		if calls.Add(1) > 2 {
			status = "CLAIMED"
		}
		_, _ = w.Write([]byte(`{"request":{"id":"` + id.String() + `","status":"` + status + `"},"label":"x"}`))
	})

	tracker := service.NewTrackerService(c, 5*time.Millisecond, service.ReadRetry{}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	snapshots, err := tracker.Observe(ctx, id)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	var seen []model.RequestStatus
	for snap := range snapshots {
		seen = append(seen, snap.Request.Status)
	}
	if len(seen) != 2 || seen[0] != model.RequestStatusSearching || seen[1] != model.RequestStatusClaimed {
		t.Errorf("statuses = %v, want [SEARCHING CLAIMED]", seen)
	}
}
