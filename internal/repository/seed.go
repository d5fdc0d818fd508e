package repository

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/dispatch-core/internal/model"
)

// ParseCatalogSeed reads "name:service:travel" entries separated by commas.
func ParseCatalogSeed(raw string) ([]model.CatalogEntry, error) {
	var entries []model.CatalogEntry
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		parts := strings.Split(item, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("catalog entry %q: want name:service:travel", item)
		}
		name := strings.TrimSpace(parts[0])
		if name == "" {
			return nil, fmt.Errorf("catalog entry %q: empty service name", item)
		}
		service, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("catalog entry %q: service price: %w", item, err)
		}
		travel, err := decimal.NewFromString(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, fmt.Errorf("catalog entry %q: travel price: %w", item, err)
		}
		if service.IsNegative() || travel.IsNegative() {
			return nil, fmt.Errorf("catalog entry %q: negative price", item)
		}

		entries = append(entries, model.CatalogEntry{
			ServiceName:  name,
			PriceService: service,
			PriceTravel:  travel,
			Active:       true,
		})
	}
	return entries, nil
}

func (s *MemoryStore) SeedCatalog(entries []model.CatalogEntry) {
	for _, entry := range entries {
		s.PutCatalogEntry(entry)
	}
}

// ParseProfessionalSeed reads "id:name" entries separated by commas.
func ParseProfessionalSeed(raw string) ([]model.Professional, error) {
	var pros []model.Professional
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		rawID, name, ok := strings.Cut(item, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("professional entry %q: want id:name", item)
		}
		id, err := uuid.Parse(strings.TrimSpace(rawID))
		if err != nil {
			return nil, fmt.Errorf("professional entry %q: %w", item, err)
		}
		pros = append(pros, model.Professional{ID: id, Name: strings.TrimSpace(name), Online: true})
	}
	return pros, nil
}

func (s *MemoryStore) SeedProfessionals(pros []model.Professional) {
	for _, pro := range pros {
		s.PutProfessional(pro)
	}
}
