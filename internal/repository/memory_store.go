package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/dispatch-core/internal/model"
)

// MemoryStore keeps requests, catalog and professionals in process. It
// backs STORE_DRIVER=memory and the service tests. A single mutex makes
// TryClaim a real compare-and-set.
type MemoryStore struct {
	mu            sync.Mutex
	requests      map[uuid.UUID]*memoryRow
	catalog       map[string]model.CatalogEntry
	professionals map[uuid.UUID]model.Professional
	seq           int64
	now           func() time.Time
}

type memoryRow struct {
	seq int64
	req model.ServiceRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:      make(map[uuid.UUID]*memoryRow),
		catalog:       make(map[string]model.CatalogEntry),
		professionals: make(map[uuid.UUID]model.Professional),
		now:           time.Now,
	}
}

func (s *MemoryStore) PutCatalogEntry(entry model.CatalogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog[entry.ServiceName] = entry
}

func (s *MemoryStore) PutProfessional(pro model.Professional) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pro.ID == uuid.Nil {
		pro.ID = uuid.New()
	}
	s.professionals[pro.ID] = pro
}

func (s *MemoryStore) FindByServiceName(_ context.Context, serviceName string) (*model.CatalogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.catalog[serviceName]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &entry, nil
}

func (s *MemoryStore) GetProfessional(_ context.Context, id uuid.UUID) (*model.Professional, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pro, ok := s.professionals[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &pro, nil
}

func (s *MemoryStore) Insert(_ context.Context, req model.ServiceRequest) (*model.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	req.ID = uuid.New()
	req.CreatedAt = now
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = model.RequestStatusSearching
	}
	s.seq++
	s.requests[req.ID] = &memoryRow{seq: s.seq, req: req}
	return copyRequest(req), nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*model.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return copyRequest(row.req), nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, statuses ...model.RequestStatus) ([]model.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[model.RequestStatus]struct{}, len(statuses))
	for _, status := range statuses {
		wanted[status] = struct{}{}
	}

	rows := make([]*memoryRow, 0, len(s.requests))
	for _, row := range s.requests {
		if len(wanted) > 0 {
			if _, ok := wanted[row.req.Status]; !ok {
				continue
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].req.CreatedAt.Equal(rows[j].req.CreatedAt) {
			return rows[i].req.CreatedAt.After(rows[j].req.CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})

	result := make([]model.ServiceRequest, 0, len(rows))
	for _, row := range rows {
		result = append(result, *copyRequest(row.req))
	}
	return result, nil
}

func (s *MemoryStore) TryClaim(_ context.Context, id uuid.UUID, professional model.Professional) (*model.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.requests[id]
	if !ok || row.req.Status != model.RequestStatusSearching {
		return nil, nil
	}

	now := s.now().UTC()
	proID := professional.ID
	proName := professional.Name
	row.req.Status = model.RequestStatusClaimed
	row.req.ProfessionalID = &proID
	row.req.ProfessionalName = &proName
	row.req.ClaimedAt = &now
	row.req.UpdatedAt = now
	return copyRequest(row.req), nil
}

func (s *MemoryStore) ForceStatus(_ context.Context, id uuid.UUID, status model.RequestStatus) (*model.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	row.req.Status = status
	row.req.UpdatedAt = s.now().UTC()
	return copyRequest(row.req), nil
}

func copyRequest(req model.ServiceRequest) *model.ServiceRequest {
	out := req
	if req.Notes != nil {
		notes := *req.Notes
		out.Notes = &notes
	}
	if req.ProfessionalID != nil {
		id := *req.ProfessionalID
		out.ProfessionalID = &id
	}
	if req.ProfessionalName != nil {
		name := *req.ProfessionalName
		out.ProfessionalName = &name
	}
	if req.ClaimedAt != nil {
		at := *req.ClaimedAt
		out.ClaimedAt = &at
	}
	return &out
}
