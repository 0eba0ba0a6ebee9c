// Package recommendation scores catalog products against a patient profile.
package recommendation

import (
	"fmt"
	"math"
	"strings"

	"medinexa/internal/domain"

	"github.com/samber/lo"
)

const (
	// DisqualifiedScore marks a product excluded by a contraindication
	DisqualifiedScore = -9999

	tagMatchScore   = 30
	bestsellerBonus = 5
)

// IneligibleReason is returned when no product survives disqualification
const IneligibleReason = "We could not find a medically safe medication based on your answers."

const reasonTemplate = "Recommended based on BMI (%s), weight-loss goals, medical history, and safety profile."

// ProductScore is the evaluation of one catalog entry
type ProductScore struct {
	Product      domain.Product
	Score        int
	Disqualified bool
	// Contraindication is the tag that disqualified the product, if any
	Contraindication string
}

// Engine ranks products with a fixed rule table
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine using the given bonus rules in order
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: append([]Rule{}, rules...)}
}

// Default returns an engine with DefaultRules
func Default() *Engine {
	return NewEngine(DefaultRules)
}

// Recommend is a convenience wrapper around the default engine
func Recommend(products []domain.Product, profile domain.PatientProfile) domain.Recommendation {
	return Default().Recommend(products, profile)
}

// Recommend selects the product with the strictly highest score.
// Ties keep the product seen first in catalog order. An empty or fully
// disqualified catalog yields an ineligible recommendation, never an error.
func (e *Engine) Recommend(products []domain.Product, profile domain.PatientProfile) domain.Recommendation {
	scores := e.Score(products, profile)

	var best *domain.Product
	bestScore := math.MinInt
	for _, s := range scores {
		if s.Disqualified {
			continue
		}
		if s.Score > bestScore {
			bestScore = s.Score
			p := s.Product
			best = &p
		}
	}

	if best == nil {
		return domain.Recommendation{Reason: IneligibleReason}
	}

	return domain.Recommendation{
		Product: best,
		Reason:  fmt.Sprintf(reasonTemplate, profile.BMILabel),
	}
}

// Score evaluates every active product. Inactive products are omitted from the result.
func (e *Engine) Score(products []domain.Product, profile domain.PatientProfile) []ProductScore {
	tags := DeriveTags(profile)
	scores := make([]ProductScore, 0, len(products))

	for _, product := range products {
		if !product.IsActive() {
			continue
		}

		if contra, ok := Disqualifies(product, profile); ok {
			scores = append(scores, ProductScore{
				Product:          product,
				Score:            DisqualifiedScore,
				Disqualified:     true,
				Contraindication: contra,
			})
			continue
		}

		scores = append(scores, ProductScore{
			Product: product,
			Score:   e.scoreProduct(product, profile, tags),
		})
	}

	return scores
}

func (e *Engine) scoreProduct(product domain.Product, profile domain.PatientProfile, tags []string) int {
	score := 0

	for _, tag := range product.RecommendedFor {
		if lo.Contains(tags, tag) {
			score += tagMatchScore
		}
	}

	for _, rule := range e.rules {
		if rule.ProductID == product.ID && rule.Applies(profile) {
			score += rule.Bonus
		}
	}

	if product.Bestseller {
		score += bestsellerBonus
	}

	return score
}

// Disqualifies returns the first contraindication of product that applies to the patient
func Disqualifies(product domain.Product, profile domain.PatientProfile) (string, bool) {
	for _, c := range product.Contraindications {
		switch {
		case c == contraPancreatitis && profile.Pancreatitis:
			return c, true
		case c == contraHighBP && profile.HighBloodPressure:
			return c, true
		case isAllergyTag(c) && lo.Contains(profile.Allergies, allergyName(c)):
			return c, true
		case lo.Contains(profile.Conditions, c), lo.Contains(profile.Medications, c):
			return c, true
		}
	}
	return "", false
}

func isAllergyTag(tag string) bool {
	return strings.HasSuffix(tag, allergyTagSuffix) || strings.HasPrefix(tag, allergyTagPrefix)
}

// allergyName accepts both "<name>_allergy" and "allergy_<name>"
func allergyName(tag string) string {
	return strings.TrimPrefix(strings.TrimSuffix(tag, allergyTagSuffix), allergyTagPrefix)
}
