package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/dispatch-core/internal/model"
)

const DefaultFeedPollInterval = 5 * time.Second

// PollIntervalHeader carries the server's feed poll interval as a Go
// duration string, e.g. "5s".
const PollIntervalHeader = "X-Poll-Interval"

type OpenRequestLister interface {
	ListOpenRequests(ctx context.Context) ([]model.ServiceRequest, error)
}

type FeedService struct {
	store RequestStore
	retry ReadRetry
}

func NewFeedService(store RequestStore, retry ReadRetry) *FeedService {
	return &FeedService{store: store, retry: retry}
}

// ListOpenRequests returns SEARCHING requests, newest first.
func (s *FeedService) ListOpenRequests(ctx context.Context) ([]model.ServiceRequest, error) {
	var rows []model.ServiceRequest
	err := s.retry.do(ctx, func(ctx context.Context) error {
		var err error
		rows, err = s.store.ListByStatus(ctx, model.RequestStatusSearching)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Drop anything a lagging store still reports under the wrong status.
	open := rows[:0]
	for _, row := range rows {
		if row.Status == model.RequestStatusSearching {
			open = append(open, row)
		}
	}
	return open, nil
}

// NewArrivals compares feed snapshots by cardinality only. A poll cycle
// where one request was claimed and another arrived has equal counts and
// reports false.
func NewArrivals(previous, current []uuid.UUID) bool {
	return len(current) > len(previous)
}

func RequestIDs(rows []model.ServiceRequest) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}

type FeedUpdate struct {
	Requests   []model.ServiceRequest
	IDs        []uuid.UUID
	NewArrival bool
}

// FeedPoller is one professional session's polling loop. The previous id
// set is carried between cycles by Run and passed explicitly to Poll.
type FeedPoller struct {
	source   OpenRequestLister
	interval time.Duration
	onUpdate func(FeedUpdate)
	log      zerolog.Logger
}

func NewFeedPoller(source OpenRequestLister, interval time.Duration, onUpdate func(FeedUpdate), log zerolog.Logger) *FeedPoller {
	if interval <= 0 {
		interval = DefaultFeedPollInterval
	}
	return &FeedPoller{
		source:   source,
		interval: interval,
		onUpdate: onUpdate,
		log:      log.With().Str("component", "feed-poller").Logger(),
	}
}

func (p *FeedPoller) Poll(ctx context.Context, previous []uuid.UUID) (FeedUpdate, error) {
	rows, err := p.source.ListOpenRequests(ctx)
	if err != nil {
		return FeedUpdate{}, err
	}
	ids := RequestIDs(rows)
	return FeedUpdate{
		Requests:   rows,
		IDs:        ids,
		NewArrival: NewArrivals(previous, ids),
	}, nil
}

// Run polls until ctx is done. The first successful cycle only sets the
// baseline and never alerts. A failed cycle keeps the previous ids.
func (p *FeedPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var previous []uuid.UUID
	primed := false
	for {
		update, err := p.Poll(ctx, previous)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Warn().Err(err).Msg("feed poll failed")
		default:
			if !primed {
				update.NewArrival = false
				primed = true
			}
			previous = update.IDs
			if p.onUpdate != nil {
				p.onUpdate(update)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
