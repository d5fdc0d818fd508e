package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RequestStatus string

const (
	RequestStatusSearching  RequestStatus = "SEARCHING"
	RequestStatusClaimed    RequestStatus = "CLAIMED"
	RequestStatusInProgress RequestStatus = "IN_PROGRESS"
	RequestStatusCompleted  RequestStatus = "COMPLETED"
	RequestStatusCanceled   RequestStatus = "CANCELED"
)

// statusRank orders the forward lifecycle. CANCELED sits outside it.
var statusRank = map[RequestStatus]int{
	RequestStatusSearching:  1,
	RequestStatusClaimed:    2,
	RequestStatusInProgress: 3,
	RequestStatusCompleted:  4,
}

func ParseRequestStatus(raw string) (RequestStatus, error) {
	status := RequestStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown request status %q", raw)
	}
	return status, nil
}

func (s RequestStatus) Valid() bool {
	if s == RequestStatusCanceled {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// IsTerminal reports whether no further transition is defined out of s.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusCanceled
}

// Settled reports whether a customer watching the request can stop
// waiting: a professional was found or the request ended.
func (s RequestStatus) Settled() bool {
	return s == RequestStatusClaimed || s.IsTerminal()
}

// CanMoveTo reports whether next is a forward move from s. CANCELED is
// reachable from every non-terminal state.
func (s RequestStatus) CanMoveTo(next RequestStatus) bool {
	if !s.Valid() || !next.Valid() || s.IsTerminal() {
		return false
	}
	if next == RequestStatusCanceled {
		return true
	}
	return statusRank[next] > statusRank[s]
}

// Label is the customer-facing wording for the status.
func (s RequestStatus) Label() string {
	switch s {
	case RequestStatusSearching:
		return "searching for a professional"
	case RequestStatusClaimed:
		return "professional found"
	case RequestStatusCanceled:
		return "canceled"
	default:
		return string(s)
	}
}

// PriceSnapshot is copied from the catalog when a request is created and
// never recomputed afterwards.
type PriceSnapshot struct {
	Service decimal.Decimal `json:"service"`
	Travel  decimal.Decimal `json:"travel"`
	Total   decimal.Decimal `json:"total"`
}

func NewPriceSnapshot(service, travel decimal.Decimal) PriceSnapshot {
	return PriceSnapshot{
		Service: service,
		Travel:  travel,
		Total:   service.Add(travel),
	}
}

type ServiceRequest struct {
	ID               uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	Status           RequestStatus `json:"status"`
	ServiceName      string        `json:"service_name"` // display and audit only, never a pricing key
	CustomerName     string        `json:"customer_name"`
	CustomerContact  string        `json:"customer_contact"`
	Address          string        `json:"address"`
	Notes            *string       `json:"notes,omitempty"`
	Price            PriceSnapshot `json:"price" gorm:"embedded;embeddedPrefix:price_"`
	ProfessionalID   *uuid.UUID    `json:"professional_id,omitempty" gorm:"type:uuid"`
	ProfessionalName *string       `json:"professional_name,omitempty"`
	ClaimedAt        *time.Time    `json:"claimed_at,omitempty"`
}

func (ServiceRequest) TableName() string { return "service_requests" }

// OwnedBy reports whether professionalID holds the request.
func (r ServiceRequest) OwnedBy(professionalID uuid.UUID) bool {
	return r.ProfessionalID != nil && *r.ProfessionalID == professionalID
}
