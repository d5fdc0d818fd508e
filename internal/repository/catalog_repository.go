package repository

import (
    "context"

    "github.com/google/uuid"
    "gorm.io/gorm"

    "github.com/nurpe/dispatch-core/internal/model"
)

type CatalogRepository struct {
    db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
    return &CatalogRepository{db: db}
}

func (r *CatalogRepository) FindByServiceName(ctx context.Context, serviceName string) (*model.CatalogEntry, error) {
    var entry model.CatalogEntry
    if err := r.db.WithContext(ctx).Raw(`
        SELECT service_name, price_service, price_travel, active
        FROM catalog_entries
        WHERE service_name = ?
        LIMIT 1
    `, serviceName).Scan(&entry).Error; err != nil {
        return nil, err
    }
    if entry.ServiceName == "" {
        return nil, gorm.ErrRecordNotFound
    }
    return &entry, nil
}

type ProfessionalRepository struct {
    db *gorm.DB
}

func NewProfessionalRepository(db *gorm.DB) *ProfessionalRepository {
    return &ProfessionalRepository{db: db}
}

func (r *ProfessionalRepository) GetProfessional(ctx context.Context, id uuid.UUID) (*model.Professional, error) {
    var pro model.Professional
    if err := r.db.WithContext(ctx).Raw(`
        SELECT id, name, contact, online
        FROM professionals
        WHERE id = ?
        LIMIT 1
    `, id).Scan(&pro).Error; err != nil {
        return nil, err
    }
    if pro.ID == uuid.Nil {
        return nil, gorm.ErrRecordNotFound
    }
    return &pro, nil
}
