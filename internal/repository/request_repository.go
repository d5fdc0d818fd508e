package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/dispatch-core/internal/model"
)

const requestColumns = `
	id,
	created_at,
	updated_at,
	status,
	service_name,
	customer_name,
	customer_contact,
	address,
	notes,
	price_service,
	price_travel,
	price_total,
	professional_id,
	professional_name,
	claimed_at`

type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) Insert(ctx context.Context, req model.ServiceRequest) (*model.ServiceRequest, error) {
	var saved model.ServiceRequest
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO service_requests (
			status,
			service_name,
			customer_name,
			customer_contact,
			address,
			notes,
			price_service,
			price_travel,
			price_total
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING`+requestColumns,
		req.Status,
		req.ServiceName,
		req.CustomerName,
		req.CustomerContact,
		req.Address,
		req.Notes,
		req.Price.Service,
		req.Price.Travel,
		req.Price.Total,
	).Scan(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *RequestRepository) Get(ctx context.Context, id uuid.UUID) (*model.ServiceRequest, error) {
	var req model.ServiceRequest
	err := r.db.WithContext(ctx).Raw(`
		SELECT`+requestColumns+`
		FROM service_requests
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&req).Error
	if err != nil {
		return nil, err
	}
	if req.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &req, nil
}

func (r *RequestRepository) ListByStatus(ctx context.Context, statuses ...model.RequestStatus) ([]model.ServiceRequest, error) {
	baseQuery := `
		SELECT` + requestColumns + `
		FROM service_requests
	`
	args := []interface{}{}
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		baseQuery += fmt.Sprintf(" WHERE status IN (%s)", strings.Join(placeholders, ","))
	}
	baseQuery += " ORDER BY created_at DESC, id DESC"

	var rows []model.ServiceRequest
	if err := r.db.WithContext(ctx).Raw(baseQuery, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TryClaim is a single UPDATE guarded by status = 'SEARCHING'. Postgres
// takes the row lock and re-evaluates the predicate for concurrent
// updaters, so at most one caller gets a row back.
func (r *RequestRepository) TryClaim(ctx context.Context, id uuid.UUID, professional model.Professional) (*model.ServiceRequest, error) {
	var claimed model.ServiceRequest
	err := r.db.WithContext(ctx).Raw(`
		UPDATE service_requests
		SET
			status = ?,
			professional_id = ?,
			professional_name = ?,
			claimed_at = NOW(),
			updated_at = NOW()
		WHERE id = ? AND status = ?
		RETURNING`+requestColumns,
		model.RequestStatusClaimed,
		professional.ID,
		professional.Name,
		id,
		model.RequestStatusSearching,
	).Scan(&claimed).Error
	if err != nil {
		return nil, err
	}
	if claimed.ID == uuid.Nil {
		return nil, nil
	}
	return &claimed, nil
}

// ForceStatus is the operator write: no predicate besides the id.
func (r *RequestRepository) ForceStatus(ctx context.Context, id uuid.UUID, status model.RequestStatus) (*model.ServiceRequest, error) {
	var updated model.ServiceRequest
	err := r.db.WithContext(ctx).Raw(`
		UPDATE service_requests
		SET
			status = ?,
			updated_at = NOW()
		WHERE id = ?
		RETURNING`+requestColumns,
		status,
		id,
	).Scan(&updated).Error
	if err != nil {
		return nil, err
	}
	if updated.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &updated, nil
}
