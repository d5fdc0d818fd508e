package service

import (
	"context"
	"errors"
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

type ClaimOutcome string

const (
	ClaimWon  ClaimOutcome = "WON"
	ClaimLost ClaimOutcome = "LOST"
)

type ClaimResult struct {
	Outcome ClaimOutcome
	Request *model.ServiceRequest // set when Won
	// AlreadyOwned marks a repeat claim by the professional who already
	// holds the request.
	AlreadyOwned bool
	Reason       string
}

func (r ClaimResult) Won() bool { return r.Outcome == ClaimWon }

type ClaimService struct {
	store     RequestStore
	directory ProfessionalDirectory
	log       zerolog.Logger
	tracer    trace.Tracer
}

func NewClaimService(store RequestStore, directory ProfessionalDirectory, log zerolog.Logger) *ClaimService {
	return &ClaimService{
		store:     store,
		directory: directory,
		log:       log.With().Str("component", "claim").Logger(),
		tracer:    otel.Tracer("dispatch-core/claim"),
	}
}

// AttemptClaim races for ownership of a SEARCHING request. The store's
// TryClaim is the only thing that decides the winner; everything read
// afterwards only explains a result that is already fixed.
//
// A professional repeating a claim it still holds (status CLAIMED) gets Won
// again with AlreadyOwned set; once the request has moved on, a repeat is Lost. The online flag is not consulted.
func (s *ClaimService) AttemptClaim(ctx context.Context, requestID, professionalID uuid.UUID) (ClaimResult, error) {
	if requestID == uuid.Nil {
		return ClaimResult{}, fmt.Errorf("%w: request id is required", ErrInvalidInput)
	}

	ctx, span := s.tracer.Start(ctx, "claim.attempt", trace.WithAttributes(
		attribute.String("request.id", requestID.String()),
		attribute.String("professional.id", professionalID.String()),
	))
	defer span.End()

	professional, err := s.directory.GetProfessional(ctx, professionalID)
	if err != nil {
		err = storeError(err)
		if errors.Is(err, ErrNotFound) {
			err = fmt.Errorf("%w: professional %s", ErrNotFound, professionalID)
		}
		span.SetStatus(codes.Error, err.Error())
		return ClaimResult{}, err
	}

	claimed, err := s.store.TryClaim(ctx, requestID, *professional)
	if err != nil {
		result, resolveErr := s.resolveAmbiguous(ctx, requestID, professional.ID, err)
		s.record(span, requestID, professional.ID, result, resolveErr)
		return result, resolveErr
	}

	var result ClaimResult
	if claimed != nil {
		result = ClaimResult{Outcome: ClaimWon, Request: claimed}
	} else {
		result, err = s.explainMiss(ctx, requestID, professional.ID)
	}
	s.record(span, requestID, professional.ID, result, err)
	return result, err
}

// explainMiss runs after the predicate failed to match. It tells apart an
// unknown id, a repeat by the owner and a lost race.
func (s *ClaimService) explainMiss(ctx context.Context, requestID, professionalID uuid.UUID) (ClaimResult, error) {
	current, err := s.store.Get(ctx, requestID)
	if err != nil {
		err = storeError(err)
		if errors.Is(err, ErrNotFound) {
			return ClaimResult{}, err
		}
		// The conditional update did not apply, so the caller cannot own it.
		return lost(), nil
	}
	if heldBy(current, professionalID) {
		return ClaimResult{Outcome: ClaimWon, Request: current, AlreadyOwned: true}, nil
	}
	return lost(), nil
}

// resolveAmbiguous handles a failed round trip where the update may or may
// not have been applied. The claim is never re-sent; the row is re-read.
func (s *ClaimService) resolveAmbiguous(ctx context.Context, requestID, professionalID uuid.UUID, cause error) (ClaimResult, error) {
	cause = storeError(cause)
	if errors.Is(cause, ErrNotFound) {
		return ClaimResult{}, cause
	}

	current, err := s.store.Get(ctx, requestID)
	if err != nil {
		err = storeError(err)
		if errors.Is(err, ErrNotFound) {
			return ClaimResult{}, err
		}
		return ClaimResult{}, cause
	}

	switch {
	case heldBy(current, professionalID):
		return ClaimResult{Outcome: ClaimWon, Request: current}, nil
	case current.Status != model.RequestStatusSearching:
		return lost(), nil
	default:
		// Still open: the write did not land and a new attempt is safe.
		return ClaimResult{}, cause
	}
}

func (s *ClaimService) record(span trace.Span, requestID, professionalID uuid.UUID, result ClaimResult, err error) {
	outcome := metrics.ClaimOutcomeError
	switch {
	case err != nil:
		span.SetStatus(codes.Error, err.Error())
	case result.Won():
		outcome = metrics.ClaimOutcomeWon
	default:
		outcome = metrics.ClaimOutcomeLost
	}
	span.SetAttributes(attribute.String("claim.outcome", outcome))
	metrics.ClaimAttemptsTotal.WithLabelValues(outcome).Inc()

	event := s.log.Info()
	if err != nil {
		event = s.log.Warn().Err(err)
	}
	event.
		Str("request_id", requestID.String()).
		Str("professional_id", professionalID.String()).
		Str("outcome", outcome).
		Bool("already_owned", result.AlreadyOwned).
		Msg("claim attempt")
}

// heldBy reports whether professionalID currently holds an accepted request.
// A request that moved on to IN_PROGRESS, COMPLETED or CANCELED is no longer
// claimable by anyone, its previous owner included.
func heldBy(req *model.ServiceRequest, professionalID uuid.UUID) bool {
	return req.Status == model.RequestStatusClaimed && req.OwnedBy(professionalID)
}

func lost() ClaimResult {
	return ClaimResult{Outcome: ClaimLost, Reason: ErrClaimLost.Error()}
}
