// Package catalog holds the static medication catalog used for recommendations and checkout.
package catalog

import (
	"errors"

	"medinexa/internal/domain"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

// Catalog is read-only reference data
type Catalog struct {
	products []domain.Product
}

// New creates a catalog over the given products, preserving their order.
// Order matters: scoring ties resolve to the earliest product.
func New(products []domain.Product) *Catalog {
	return &Catalog{products: append([]domain.Product{}, products...)}
}

// Default returns the built-in medication catalog
func Default() *Catalog {
	return New(defaultProducts())
}

// Products returns a copy of the catalog in catalog order
func (c *Catalog) Products() []domain.Product {
	return append([]domain.Product{}, c.products...)
}

// FindBySlug looks up a product by its URL slug
func (c *Catalog) FindBySlug(slug string) (*domain.Product, error) {
	return c.find(func(p domain.Product) bool { return p.Slug == slug })
}

// FindByID looks up a product by its identifier
func (c *Catalog) FindByID(id string) (*domain.Product, error) {
	return c.find(func(p domain.Product) bool { return p.ID == id })
}

func (c *Catalog) find(match func(domain.Product) bool) (*domain.Product, error) {
	product, ok := lo.Find(c.products, match)
	if !ok {
		return nil, ErrProductNotFound
	}
	return &product, nil
}

func defaultProducts() []domain.Product {
	return []domain.Product{
		{
			ID:                   "semaglutide",
			Name:                 "Semaglutide",
			Slug:                 "semaglutide",
			Image:                "/images/Semaglutide.webp",
			Price:                decimal.NewFromInt(249),
			Bestseller:           true,
			PrescriptionRequired: true,
			Dosage:               "0.25mg → 2.4mg weekly",
			ShortDescription:     "Clinically proven GLP-1 medication for sustainable weight loss.",
			RecommendedFor:       []string{"bmi_30_plus", "bmi_27_plus", "diabetes", "pcos", "emotional_eating"},
			Contraindications:    []string{"pancreatitis", "glp1_allergy"},
			Status:               domain.ProductStatusActive,
		},
		{
			ID:                   "tirzepatide",
			Name:                 "Tirzepatide",
			Slug:                 "tirzepatide",
			Image:                "/images/Tirzepatide.webp",
			Price:                decimal.NewFromInt(299),
			Bestseller:           true,
			PrescriptionRequired: true,
			Dosage:               "2.5mg → 15mg weekly",
			ShortDescription:     "Dual GLP-1 + GIP medication offering the strongest weight-loss results.",
			RecommendedFor:       []string{"bmi_35_plus", "diabetes", "extreme_weight_loss_goal"},
			Contraindications:    []string{"pancreatitis", "glp1_allergy"},
			Status:               domain.ProductStatusActive,
		},
		{
			ID:                   "liraglutide",
			Name:                 "Liraglutide",
			Slug:                 "liraglutide",
			Image:                "/images/liraglutide.webp",
			Price:                decimal.NewFromInt(199),
			PrescriptionRequired: true,
			Dosage:               "0.6mg → 3.0mg daily injection",
			ShortDescription:     "Daily GLP-1 injection supporting appetite control.",
			RecommendedFor:       []string{"bmi_27_plus", "moderate_goal"},
			Contraindications:    []string{"pancreatitis"},
			Status:               domain.ProductStatusActive,
		},
		{
			ID:                   "phentermine",
			Name:                 "Phentermine",
			Slug:                 "phentermine",
			Image:                "/images/phentermine.jpeg",
			Price:                decimal.NewFromInt(79),
			PrescriptionRequired: true,
			Dosage:               "15mg – 37.5mg daily",
			ShortDescription:     "Appetite suppressant for short-term weight loss.",
			RecommendedFor:       []string{"quick_results", "overeating"},
			Contraindications:    []string{"heart_disease", "high_bp", "stimulant_allergy"},
			Status:               domain.ProductStatusActive,
		},
		{
			ID:                "orlistat",
			Name:              "Orlistat",
			Slug:              "orlistat",
			Image:             "/images/orlistat.jpeg",
			Price:             decimal.NewFromInt(49),
			Dosage:            "120mg per meal",
			ShortDescription:  "Blocks fat absorption during meals.",
			RecommendedFor:    []string{"bmi_25_plus", "mild_goal"},
			Contraindications: []string{"orlistat_allergy"},
			Status:            domain.ProductStatusActive,
		},
		{
			ID:                   "qsymia",
			Name:                 "Qsymia",
			Slug:                 "qsymia",
			Image:                "/images/qsymia.webp",
			Price:                decimal.NewFromInt(129),
			PrescriptionRequired: true,
			Dosage:               "3.75mg/23mg → 15mg/92mg daily",
			ShortDescription:     "Combination therapy for appetite control and metabolic improvement.",
			RecommendedFor:       []string{"overeating", "slow_metabolism"},
			Contraindications:    []string{"depression", "anti_epileptic_meds", "pregnancy"},
			Status:               domain.ProductStatusActive,
		},
	}
}
