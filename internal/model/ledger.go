package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger is the admin export of every request row.
type Ledger struct {
	GeneratedAt time.Time
	Requests    []ServiceRequest
}

type LedgerStatusCount struct {
	Status RequestStatus
	Count  int
	Total  decimal.Decimal
}

// Summary groups the ledger rows per status in lifecycle order.
func (l Ledger) Summary() []LedgerStatusCount {
	order := []RequestStatus{
		RequestStatusSearching,
		RequestStatusClaimed,
		RequestStatusInProgress,
		RequestStatusCompleted,
		RequestStatusCanceled,
	}
	index := make(map[RequestStatus]int, len(order))
	result := make([]LedgerStatusCount, len(order))
	for i, status := range order {
		index[status] = i
		result[i] = LedgerStatusCount{Status: status, Total: decimal.Zero}
	}
	for _, req := range l.Requests {
		pos, ok := index[req.Status]
		if !ok {
			continue
		}
		result[pos].Count++
		result[pos].Total = result[pos].Total.Add(req.Price.Total)
	}
	return result
}

// Receipt is the printable record of one request.
type Receipt struct {
	Request  ServiceRequest
	IssuedAt time.Time
}
