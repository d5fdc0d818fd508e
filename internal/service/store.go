package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/nurpe/dispatch-core/internal/model"
)

type RequestReader interface {
	Get(ctx context.Context, id uuid.UUID) (*model.ServiceRequest, error)
}

// RequestStore holds request rows. Rows are never deleted.
type RequestStore interface {
	RequestReader

	// Insert assigns the id and creation time and returns the stored row.
	Insert(ctx context.Context, req model.ServiceRequest) (*model.ServiceRequest, error)

	// ListByStatus returns rows matching any of statuses (all rows when
	// none are given), newest first.
	ListByStatus(ctx context.Context, statuses ...model.RequestStatus) ([]model.ServiceRequest, error)

	// TryClaim moves the row to CLAIMED for professional in one
	// compare-and-set against status SEARCHING. It returns (nil, nil) when
	// the predicate did not match.
	TryClaim(ctx context.Context, id uuid.UUID, professional model.Professional) (*model.ServiceRequest, error)

	// ForceStatus overwrites the status by id with no predicate.
	ForceStatus(ctx context.Context, id uuid.UUID, status model.RequestStatus) (*model.ServiceRequest, error)
}

type Catalog interface {
	// FindByServiceName returns gorm.ErrRecordNotFound when no entry has
	// exactly that name.
	FindByServiceName(ctx context.Context, serviceName string) (*model.CatalogEntry, error)
}

type ProfessionalDirectory interface {
	GetProfessional(ctx context.Context, id uuid.UUID) (*model.Professional, error)
}
