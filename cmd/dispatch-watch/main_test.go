package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/dispatch-core/internal/auth"
	"github.com/nurpe/dispatch-core/internal/model"
	"github.com/nurpe/dispatch-core/internal/service"
)

type fakeAPI struct {
	claimResult service.ClaimResult
	claimErr    error
	row         *model.ServiceRequest
	claimCalls  int
	getCalls    int
}

func (f *fakeAPI) Claim(context.Context, uuid.UUID) (service.ClaimResult, error) {
	f.claimCalls++
	return f.claimResult, f.claimErr
}

func (f *fakeAPI) Get(context.Context, uuid.UUID) (*model.ServiceRequest, error) {
	f.getCalls++
	if f.row == nil {
		return nil, service.ErrNotFound
	}
	return f.row, nil
}

func TestParseFlags(t *testing.T) {
	t.Setenv("DISPATCH_TOKEN", "")

	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "feed", args: []string{"--token", "t"}},
		{name: "claim", args: []string{"--token", "t", "--claim", "--interval", "2s"}},
		{name: "observe", args: []string{"--token", "t", "--observe", uuid.NewString()}},
		{name: "missing token", args: nil, wantErr: true},
		{name: "zero interval", args: []string{"--token", "t", "--interval", "0s"}, wantErr: true},
		{name: "claim with observe", args: []string{"--token", "t", "--claim", "--observe", "x"}, wantErr: true},
		{name: "extra argument", args: []string{"--token", "t", "extra"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args, io.Discard)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseFlags_IntervalSet(t *testing.T) {
	opts, err := parseFlags([]string{"--token", "t"}, io.Discard)
	if err != nil || opts.intervalSet {
		t.Errorf("default interval: intervalSet = %v, err = %v", opts.intervalSet, err)
	}
	opts, err = parseFlags([]string{"--token", "t", "--interval", "5s"}, io.Discard)
	if err != nil || !opts.intervalSet {
		t.Errorf("explicit interval: intervalSet = %v, err = %v", opts.intervalSet, err)
	}
}

func TestProfessionalFromToken(t *testing.T) {
	id := uuid.New()
	token, err := auth.NewParser("secret").Issue(model.Principal{UserID: id, Role: model.RoleProfessional}, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if got := professionalFromToken(token); got != id {
		t.Errorf("professionalFromToken() = %v, want %v", got, id)
	}
	if got := professionalFromToken("garbage"); got != uuid.Nil {
		t.Errorf("professionalFromToken(garbage) = %v", got)
	}
}

func newWatcher(api *fakeAPI, self uuid.UUID) (*watcher, *bytes.Buffer) {
	var out bytes.Buffer
	return &watcher{
		api:   api,
		claim: true,
		self:  self,
		out:   &out,
		log:   zerolog.Nop(),
		tried: make(map[uuid.UUID]struct{}),
	}, &out
}

func TestWatcher_AlertsOnlyOnArrival(t *testing.T) {
	api := &fakeAPI{claimResult: service.ClaimResult{Outcome: service.ClaimWon}}
	w, out := newWatcher(api, uuid.New())

	req := model.ServiceRequest{ID: uuid.New(), ServiceName: "Blood Pressure Check"}
	w.onUpdate(context.Background(), service.FeedUpdate{Requests: []model.ServiceRequest{req}, IDs: []uuid.UUID{req.ID}})
	if out.Len() != 0 || api.claimCalls != 0 {
		t.Fatalf("no-arrival update produced output %q, %d claims", out.String(), api.claimCalls)
	}

	update := service.FeedUpdate{Requests: []model.ServiceRequest{req}, IDs: []uuid.UUID{req.ID}, NewArrival: true}
	w.onUpdate(context.Background(), update)
	w.onUpdate(context.Background(), update)

	if strings.Count(out.String(), "new request") != 2 {
		t.Errorf("alerts = %q, want one per arrival cycle", out.String())
	}
	if api.claimCalls != 1 {
		t.Errorf("claim calls = %d, want 1 per request id", api.claimCalls)
	}
	if !strings.Contains(out.String(), "claimed "+req.ID.String()) {
		t.Errorf("output = %q, want claimed line", out.String())
	}
}

func TestWatcher_ResolvesAmbiguousClaimByReading(t *testing.T) {
	self := uuid.New()
	other := uuid.New()
	unavailable := errors.Join(service.ErrStoreUnavailable, errors.New("connection reset"))

	tests := []struct {
		name    string
		self    uuid.UUID
		row     *model.ServiceRequest
		wantOut string
	}{
		{
			name:    "owned by self",
			self:    self,
			row:     &model.ServiceRequest{Status: model.RequestStatusClaimed, ProfessionalID: &self},
			wantOut: "claimed",
		},
		{
			name:    "owned by other",
			self:    self,
			row:     &model.ServiceRequest{Status: model.RequestStatusClaimed, ProfessionalID: &other},
			wantOut: "lost",
		},
		{
			name:    "owned by self but canceled",
			self:    self,
			row:     &model.ServiceRequest{Status: model.RequestStatusCanceled, ProfessionalID: &self},
			wantOut: "lost",
		},
		{
			name:    "still searching",
			self:    self,
			row:     &model.ServiceRequest{Status: model.RequestStatusSearching},
			wantOut: "",
		},
		{
			name:    "unknown self",
			self:    uuid.Nil,
			row:     &model.ServiceRequest{Status: model.RequestStatusClaimed, ProfessionalID: &other},
			wantOut: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{claimErr: unavailable, row: tt.row}
			w, out := newWatcher(api, tt.self)

			w.claimNewest(context.Background(), model.ServiceRequest{ID: uuid.New()})

			if api.claimCalls != 1 {
				t.Errorf("claim calls = %d, want 1", api.claimCalls)
			}
			if api.getCalls != 1 {
				t.Errorf("get calls = %d, want 1", api.getCalls)
			}
			got := out.String()
			if tt.wantOut == "" && got != "" {
				t.Errorf("output = %q, want none", got)
			}
			if tt.wantOut != "" && !strings.HasPrefix(got, tt.wantOut) {
				t.Errorf("output = %q, want prefix %q", got, tt.wantOut)
			}
		})
	}
}

type fakeFeed struct {
	advertised time.Duration
	err        error
	calls      int
}

func (f *fakeFeed) ListOpenRequests(context.Context) ([]model.ServiceRequest, error) {
	f.calls++
	return nil, f.err
}

func (f *fakeFeed) PollInterval() time.Duration { return f.advertised }

func TestFeedInterval(t *testing.T) {
	tests := []struct {
		name      string
		opts      options
		feed      *fakeFeed
		want      time.Duration
		wantCalls int
	}{
		{
			name: "explicit flag wins",
			opts: options{interval: 2 * time.Second, intervalSet: true},
			feed: &fakeFeed{advertised: 9 * time.Second},
			want: 2 * time.Second,
		},
		{
			name:      "advertised",
			opts:      options{interval: service.DefaultFeedPollInterval},
			feed:      &fakeFeed{advertised: 9 * time.Second},
			want:      9 * time.Second,
			wantCalls: 1,
		},
		{
			name:      "nothing advertised",
			opts:      options{interval: service.DefaultFeedPollInterval},
			feed:      &fakeFeed{},
			want:      service.DefaultFeedPollInterval,
			wantCalls: 1,
		},
		{
			name:      "feed unavailable",
			opts:      options{interval: service.DefaultFeedPollInterval},
			feed:      &fakeFeed{advertised: 9 * time.Second, err: service.ErrStoreUnavailable},
			want:      service.DefaultFeedPollInterval,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := feedInterval(context.Background(), tt.feed, tt.opts, zerolog.Nop())
			if got != tt.want {
				t.Errorf("feedInterval() = %v, want %v", got, tt.want)
			}
			if tt.feed.calls != tt.wantCalls {
				t.Errorf("feed calls = %d, want %d", tt.feed.calls, tt.wantCalls)
			}
		})
	}
}
