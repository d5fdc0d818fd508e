package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/dispatch-core/internal/metrics"
	"github.com/nurpe/dispatch-core/internal/model"
)

const MinContactDigits = 10

type IntakeService struct {
	store   RequestStore
	catalog Catalog
	log     zerolog.Logger
}

type CreateRequestInput struct {
	ServiceName     string
	CustomerName    string
	CustomerContact string
	Address         string
	Notes           string
}

func NewIntakeService(store RequestStore, catalog Catalog, log zerolog.Logger) *IntakeService {
	return &IntakeService{
		store:   store,
		catalog: catalog,
		log:     log.With().Str("component", "intake").Logger(),
	}
}

// CreateRequest stores a new SEARCHING request with the catalog price
// copied into it. Professionals are not notified; they find it through the
// feed.
func (s *IntakeService) CreateRequest(ctx context.Context, input CreateRequestInput) (*model.ServiceRequest, error) {
	input.ServiceName = strings.TrimSpace(input.ServiceName)
	input.CustomerName = strings.TrimSpace(input.CustomerName)
	input.CustomerContact = strings.TrimSpace(input.CustomerContact)
	input.Address = strings.TrimSpace(input.Address)

	if err := validateIntake(input); err != nil {
		return nil, err
	}

	price, err := s.snapshotPrice(ctx, input.ServiceName)
	if err != nil {
		return nil, err
	}

	req := model.ServiceRequest{
		Status:          model.RequestStatusSearching,
		ServiceName:     input.ServiceName,
		CustomerName:    input.CustomerName,
		CustomerContact: input.CustomerContact,
		Address:         input.Address,
		Price:           price,
	}
	if notes := strings.TrimSpace(input.Notes); notes != "" {
		req.Notes = &notes
	}

	saved, err := s.store.Insert(ctx, req)
	if err != nil {
		return nil, storeError(err)
	}

	metrics.RequestsCreatedTotal.Inc()
	s.log.Info().
		Str("request_id", saved.ID.String()).
		Str("service_name", saved.ServiceName).
		Str("total", saved.Price.Total.StringFixed(2)).
		Msg("request created")
	return saved, nil
}

// snapshotPrice falls back to a zero price when the service is unknown or
// inactive. That keeps intake open for services missing from the catalog.
func (s *IntakeService) snapshotPrice(ctx context.Context, serviceName string) (model.PriceSnapshot, error) {
	entry, err := s.catalog.FindByServiceName(ctx, serviceName)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		s.log.Warn().Str("service_name", serviceName).Msg("service not in catalog, price set to zero")
		return model.NewPriceSnapshot(decimal.Zero, decimal.Zero), nil
	case err != nil:
		return model.PriceSnapshot{}, storeError(err)
	case !entry.Active:
		s.log.Warn().Str("service_name", serviceName).Msg("catalog entry inactive, price set to zero")
		return model.NewPriceSnapshot(decimal.Zero, decimal.Zero), nil
	}
	return model.NewPriceSnapshot(entry.PriceService, entry.PriceTravel), nil
}

func validateIntake(input CreateRequestInput) error {
	if input.ServiceName == "" {
		return fmt.Errorf("%w: service_name is required", ErrInvalidInput)
	}
	if input.CustomerName == "" {
		return fmt.Errorf("%w: customer_name is required", ErrInvalidInput)
	}
	if CountDigits(input.CustomerContact) < MinContactDigits {
		return fmt.Errorf("%w: customer_contact must have at least %d digits", ErrInvalidInput, MinContactDigits)
	}
	if input.Address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidInput)
	}
	return nil
}

func CountDigits(raw string) int {
	count := 0
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			count++
		}
	}
	return count
}
