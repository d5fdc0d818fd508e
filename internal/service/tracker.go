package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/dispatch-core/internal/model"
)

const DefaultTrackerPollInterval = 2 * time.Second

type Snapshot struct {
	Request model.ServiceRequest
	Label   string
}

func NewSnapshot(req model.ServiceRequest) Snapshot {
	return Snapshot{Request: req, Label: req.Status.Label()}
}

// TrackerService is the customer's read-only view of one request.
type TrackerService struct {
	reader   RequestReader
	interval time.Duration
	retry    ReadRetry
	log      zerolog.Logger
}

func NewTrackerService(reader RequestReader, interval time.Duration, retry ReadRetry, log zerolog.Logger) *TrackerService {
	if interval <= 0 {
		interval = DefaultTrackerPollInterval
	}
	return &TrackerService{
		reader:   reader,
		interval: interval,
		retry:    retry,
		log:      log.With().Str("component", "tracker").Logger(),
	}
}

func (s *TrackerService) Snapshot(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	var req *model.ServiceRequest
	err := s.retry.do(ctx, func(ctx context.Context) error {
		var err error
		req, err = s.reader.Get(ctx, id)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(*req), nil
}

// Observe emits the current snapshot and then every status change until
// the request settles (claimed, completed or canceled) or ctx is done. The
// channel is closed when observation ends. Only the first read can fail;
// later read errors keep the last snapshot in place.
func (s *TrackerService) Observe(ctx context.Context, id uuid.UUID) (<-chan Snapshot, error) {
	first, err := s.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make(chan Snapshot, 1)
	out <- first
	if first.Request.Status.Settled() {
		close(out)
		return out, nil
	}

	go s.watch(ctx, id, first, out)
	return out, nil
}

func (s *TrackerService) watch(ctx context.Context, id uuid.UUID, last Snapshot, out chan<- Snapshot) {
	defer close(out)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		req, err := s.reader.Get(ctx, id)
		if err != nil {
			s.log.Debug().Err(err).Str("request_id", id.String()).Msg("status read failed, holding last snapshot")
			continue
		}
		if req.Status == last.Request.Status {
			continue
		}

		last = NewSnapshot(*req)
		select {
		case out <- last:
		case <-ctx.Done():
			return
		}
		if last.Request.Status.Settled() {
			return
		}
	}
}
