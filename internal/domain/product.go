package domain

import (
	"github.com/shopspring/decimal"
)

// ProductStatus marks whether a catalog entry can be recommended
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// Product represents a medication in the catalog
type Product struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Slug                 string          `json:"slug"`
	Image                string          `json:"image"`
	Price                decimal.Decimal `json:"price"`
	Bestseller           bool            `json:"bestseller"`
	PrescriptionRequired bool            `json:"prescription_required"`
	Dosage               string          `json:"dosage,omitempty"`
	ShortDescription     string          `json:"short_description"`
	RecommendedFor       []string        `json:"recommended_for"`
	Contraindications    []string        `json:"contraindications"`
	Status               ProductStatus   `json:"status"`
}

// IsActive reports whether the product may take part in scoring
func (p Product) IsActive() bool {
	return p.Status == ProductStatusActive
}
