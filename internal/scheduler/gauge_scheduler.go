package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nurpe/dispatch-core/internal/metrics"
	"github.com/nurpe/dispatch-core/internal/service"
)

const gaugeTimeout = 10 * time.Second

// Scheduler runs the periodic observability jobs. Nothing it does feeds back
// into dispatch decisions.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// AddOpenRequestGauge refreshes the open-request gauge on schedule.
func (s *Scheduler) AddOpenRequestGauge(schedule string, source service.OpenRequestLister) error {
	job := &OpenRequestGauge{
		source: source,
		set:    metrics.OpenRequests.Set,
		log:    s.log.With().Str("job", "open_request_gauge").Logger(),
		tracer: otel.Tracer("dispatch-core/scheduler"),
	}
	if _, err := s.cron.AddJob(schedule, job); err != nil {
		return fmt.Errorf("schedule open request gauge %q: %w", schedule, err)
	}
	s.log.Info().Str("schedule", schedule).Msg("open request gauge scheduled")
	return nil
}

// Run blocks until ctx is done, then waits for running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.log.Info().Msg("scheduler stopped")
}

type OpenRequestGauge struct {
	source service.OpenRequestLister
	set    func(float64)
	log    zerolog.Logger
	tracer trace.Tracer
}

func (j *OpenRequestGauge) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), gaugeTimeout)
	defer cancel()

	ctx, span := j.tracer.Start(ctx, "scheduler.OpenRequestGauge")
	defer span.End()

	open, err := j.source.ListOpenRequests(ctx)
	if err != nil {
		span.RecordError(err)
		j.log.Warn().Err(err).Msg("open request gauge refresh failed")
		return
	}
	span.SetAttributes(attribute.Int("dispatch.open_requests", len(open)))
	j.set(float64(len(open)))
}
