package model

import "github.com/shopspring/decimal"

type CatalogEntry struct {
	ServiceName  string          `json:"service_name" gorm:"primaryKey"`
	PriceService decimal.Decimal `json:"price_service"`
	PriceTravel  decimal.Decimal `json:"price_travel"`
	Active       bool            `json:"active"`
}

func (CatalogEntry) TableName() string { return "catalog_entries" }
