package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/dispatch-core/internal/model"
	"github.com/nurpe/dispatch-core/internal/repository"
)

const bloodPressureCheck = "Blood Pressure Check"

var errConnReset = errors.New("connection reset by peer")

var fastRetry = ReadRetry{MaxRetries: 2, Backoff: time.Millisecond}

type fixture struct {
	store  *repository.MemoryStore
	intake *IntakeService
	feed   *FeedService
	claims *ClaimService
	admin  *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	store.PutCatalogEntry(model.CatalogEntry{
		ServiceName:  bloodPressureCheck,
		PriceService: decimal.RequireFromString("20.00"),
		PriceTravel:  decimal.RequireFromString("8.00"),
		Active:       true,
	})
	log := zerolog.Nop()
	return &fixture{
		store:  store,
		intake: NewIntakeService(store, store, log),
		feed:   NewFeedService(store, fastRetry),
		claims: NewClaimService(store, store, log),
		admin:  NewAdminService(store, log),
	}
}

func (f *fixture) professional(name string) model.Professional {
	pro := model.Professional{ID: uuid.New(), Name: name, Contact: "+1 555 000 0000"}
	f.store.PutProfessional(pro)
	return pro
}

func (f *fixture) createRequest(t *testing.T) *model.ServiceRequest {
	t.Helper()
	req, err := f.intake.CreateRequest(context.Background(), validInput())
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	return req
}

func validInput() CreateRequestInput {
	return CreateRequestInput{
		ServiceName:     bloodPressureCheck,
		CustomerName:    "Maria Souza",
		CustomerContact: "(11) 98765-4321",
		Address:         "Rua das Flores 123",
	}
}

var adminPrincipal = model.Principal{UserID: uuid.New(), Role: model.RoleAdmin, Name: "ops"}

// faultyStore wraps a MemoryStore and injects failures per operation.
type faultyStore struct {
	*repository.MemoryStore

	mu           sync.Mutex
	getFailures  int // next n Get calls fail
	listFailures int // next n ListByStatus calls fail
	listCalls    int

	// claimApplyThenFail applies the claim and then reports a transport
	// error; claimFail reports one without applying.
	claimApplyThenFail bool
	claimFail          bool
	insertFail         bool

	// afterClaim runs once the claim was applied, before the error is
	// reported, e.g. to change the row before it is read back.
	afterClaim func(id uuid.UUID)

	claimCalls int
	forceCalls int
}

func (s *faultyStore) Get(ctx context.Context, id uuid.UUID) (*model.ServiceRequest, error) {
	s.mu.Lock()
	if s.getFailures > 0 {
		s.getFailures--
		s.mu.Unlock()
		return nil, errConnReset
	}
	s.mu.Unlock()
	return s.MemoryStore.Get(ctx, id)
}

func (s *faultyStore) ListByStatus(ctx context.Context, statuses ...model.RequestStatus) ([]model.ServiceRequest, error) {
	s.mu.Lock()
	s.listCalls++
	if s.listFailures > 0 {
		s.listFailures--
		s.mu.Unlock()
		return nil, errConnReset
	}
	s.mu.Unlock()
	return s.MemoryStore.ListByStatus(ctx, statuses...)
}

func (s *faultyStore) TryClaim(ctx context.Context, id uuid.UUID, pro model.Professional) (*model.ServiceRequest, error) {
	s.mu.Lock()
	s.claimCalls++
	applyThenFail, fail := s.claimApplyThenFail, s.claimFail
	s.mu.Unlock()

	if fail {
		return nil, errConnReset
	}
	claimed, err := s.MemoryStore.TryClaim(ctx, id, pro)
	if applyThenFail {
		if s.afterClaim != nil {
			s.afterClaim(id)
		}
		return nil, errConnReset
	}
	return claimed, err
}

func (s *faultyStore) ForceStatus(ctx context.Context, id uuid.UUID, status model.RequestStatus) (*model.ServiceRequest, error) {
	s.mu.Lock()
	s.forceCalls++
	s.mu.Unlock()
	return s.MemoryStore.ForceStatus(ctx, id, status)
}

func (s *faultyStore) Insert(ctx context.Context, req model.ServiceRequest) (*model.ServiceRequest, error) {
	if s.insertFail {
		return nil, errConnReset
	}
	return s.MemoryStore.Insert(ctx, req)
}
