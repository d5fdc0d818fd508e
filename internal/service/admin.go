package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nurpe/dispatch-core/internal/metrics"
	"github.com/nurpe/dispatch-core/internal/model"
)

// AdminService is the trusted operator path. It writes without the claim
// predicate and must stay separate from ClaimService.
type AdminService struct {
	store  RequestStore
	log    zerolog.Logger
	tracer trace.Tracer
}

type ForceStatusResult struct {
	Request        *model.ServiceRequest
	PreviousStatus model.RequestStatus
}

func NewAdminService(store RequestStore, log zerolog.Logger) *AdminService {
	return &AdminService{
		store:  store,
		log:    log.With().Str("component", "admin").Logger(),
		tracer: otel.Tracer("dispatch-core/admin"),
	}
}

// ForceStatus moves a request forward or cancels it. Terminal requests and
// backward moves are rejected. The read and the write are not atomic; a
// single operator drives this path.
func (s *AdminService) ForceStatus(ctx context.Context, principal model.Principal, id uuid.UUID, next model.RequestStatus) (*ForceStatusResult, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: request id is required", ErrInvalidInput)
	}
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, next)
	}

	ctx, span := s.tracer.Start(ctx, "admin.force_status", trace.WithAttributes(
		attribute.String("request.id", id.String()),
		attribute.String("status.next", string(next)),
	))
	defer span.End()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		err = storeError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !current.Status.CanMoveTo(next) {
		err := fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, next)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	updated, err := s.store.ForceStatus(ctx, id, next)
	if err != nil {
		err = storeError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.AdminOverridesTotal.WithLabelValues(string(next)).Inc()
	s.log.Info().
		Str("request_id", id.String()).
		Str("admin_id", principal.UserID.String()).
		Str("from", string(current.Status)).
		Str("to", string(next)).
		Msg("status forced")

	return &ForceStatusResult{Request: updated, PreviousStatus: current.Status}, nil
}
