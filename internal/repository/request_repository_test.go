package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/dispatch-core/internal/config"
	"github.com/nurpe/dispatch-core/internal/db"
	"github.com/nurpe/dispatch-core/internal/model"
)

// openTestDB connects to the Postgres named by DB_DSN and skips otherwise.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		t.Skip("DB_DSN not set, skipping postgres repository tests")
	}

	database, err := db.New(&config.Config{
		Environment: "test",
		DB:          config.DBConfig{Driver: config.StoreDriverPostgres, DSN: dsn},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	return database
}

type pgFixture struct {
	database *gorm.DB
	repo     *RequestRepository
	marker   string
	requests []uuid.UUID
	pros     []uuid.UUID
}

func newPGFixture(t *testing.T) *pgFixture {
	t.Helper()
	database := openTestDB(t)
	f := &pgFixture{
		database: database,
		repo:     NewRequestRepository(database),
		marker:   "repo-test-" + uuid.NewString(),
	}
	t.Cleanup(func() {
		if len(f.requests) > 0 {
			database.Exec(`DELETE FROM service_requests WHERE id IN ?`, f.requests)
		}
		if len(f.pros) > 0 {
			database.Exec(`DELETE FROM professionals WHERE id IN ?`, f.pros)
		}
	})
	return f
}

func (f *pgFixture) insert(t *testing.T) *model.ServiceRequest {
	t.Helper()
	saved, err := f.repo.Insert(context.Background(), model.ServiceRequest{
		Status:          model.RequestStatusSearching,
		ServiceName:     f.marker,
		CustomerName:    "Maria",
		CustomerContact: "(11) 98765-4321",
		Address:         "Rua A 1",
		Price:           model.NewPriceSnapshot(decimal.RequireFromString("20.00"), decimal.RequireFromString("8.00")),
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	f.requests = append(f.requests, saved.ID)
	return saved
}

func (f *pgFixture) professional(t *testing.T, name string) model.Professional {
	t.Helper()
	pro := model.Professional{ID: uuid.New(), Name: name}
	if err := f.database.Exec(`INSERT INTO professionals (id, name) VALUES (?, ?)`, pro.ID, pro.Name).Error; err != nil {
		t.Fatalf("insert professional: %v", err)
	}
	f.pros = append(f.pros, pro.ID)
	return pro
}

func TestRequestRepository_TryClaimSingleWinner(t *testing.T) {
	f := newPGFixture(t)
	req := f.insert(t)

	const n = 16
	pros := make([]model.Professional, n)
	for i := range pros {
		pros[i] = f.professional(t, fmt.Sprintf("pro-%d", i))
	}

	results := make([]*model.ServiceRequest, n)
	errs := make([]error, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range pros {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = f.repo.TryClaim(context.Background(), req.ID, pros[i])
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	var winner model.Professional
	for i, result := range results {
		if errs[i] != nil {
			t.Fatalf("TryClaim() error = %v", errs[i])
		}
		if result != nil {
			winners++
			winner = pros[i]
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}

	stored, err := f.repo.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Status != model.RequestStatusClaimed || !stored.OwnedBy(winner.ID) || stored.ClaimedAt == nil {
		t.Errorf("stored = %s owner=%v claimed_at=%v", stored.Status, stored.ProfessionalID, stored.ClaimedAt)
	}
	if !stored.Price.Total.Equal(decimal.NewFromInt(28)) {
		t.Errorf("price total changed to %s", stored.Price.Total)
	}
}

func TestRequestRepository_TryClaimMissesNonSearching(t *testing.T) {
	f := newPGFixture(t)
	pro := f.professional(t, "late")

	for _, status := range []model.RequestStatus{
		model.RequestStatusClaimed,
		model.RequestStatusInProgress,
		model.RequestStatusCompleted,
		model.RequestStatusCanceled,
	} {
		t.Run(string(status), func(t *testing.T) {
			req := f.insert(t)
			if _, err := f.repo.ForceStatus(context.Background(), req.ID, status); err != nil {
				t.Fatalf("ForceStatus() error = %v", err)
			}

			claimed, err := f.repo.TryClaim(context.Background(), req.ID, pro)
			if err != nil {
				t.Fatalf("TryClaim() error = %v", err)
			}
			if claimed != nil {
				t.Errorf("TryClaim() on %s returned a row", status)
			}
		})
	}

	if claimed, err := f.repo.TryClaim(context.Background(), uuid.New(), pro); err != nil || claimed != nil {
		t.Errorf("TryClaim(unknown) = %v, %v; want nil, nil", claimed, err)
	}
}

func TestRequestRepository_ForceStatusUnknown(t *testing.T) {
	f := newPGFixture(t)

	_, err := f.repo.ForceStatus(context.Background(), uuid.New(), model.RequestStatusCanceled)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("ForceStatus(unknown) error = %v, want gorm.ErrRecordNotFound", err)
	}
	if _, err := f.repo.Get(context.Background(), uuid.New()); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("Get(unknown) error = %v, want gorm.ErrRecordNotFound", err)
	}
}

func TestRequestRepository_ListByStatusNewestFirst(t *testing.T) {
	f := newPGFixture(t)

	first := f.insert(t)
	time.Sleep(5 * time.Millisecond)
	second := f.insert(t)
	time.Sleep(5 * time.Millisecond)
	third := f.insert(t)
	if _, err := f.repo.ForceStatus(context.Background(), second.ID, model.RequestStatusCanceled); err != nil {
		t.Fatalf("ForceStatus() error = %v", err)
	}

	rows, err := f.repo.ListByStatus(context.Background(), model.RequestStatusSearching)
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}

	var ours []uuid.UUID
	for _, row := range rows {
		if row.ServiceName == f.marker {
			ours = append(ours, row.ID)
		}
	}
	if len(ours) != 2 || ours[0] != third.ID || ours[1] != first.ID {
		t.Errorf("ListByStatus(SEARCHING) = %v, want [third first]", ours)
	}
}
