package domain

// PatientInfo is collected on the fixed first intake step
type PatientInfo struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Age      string `json:"age"`
	Gender   string `json:"gender"`
	Address  string `json:"address"`
}

// BMI category labels
const (
	BMIUnderweight = "Underweight"
	BMINormal      = "Normal"
	BMIOverweight  = "Overweight"
	BMIObese       = "Obese"
)

// Goal buckets offered by the weight goal question
const (
	GoalLess10 = "less_10"
	Goal10To20 = "10_20"
	Goal20To35 = "20_35"
	Goal35Plus = "35_plus"
)

// PatientProfile is the scoring input derived from a completed intake.
// It is immutable once built.
type PatientProfile struct {
	WeightKg              float64  `json:"weight"`
	HeightCm              float64  `json:"height"`
	BMI                   float64  `json:"bmi"`
	BMILabel              string   `json:"bmiLabel"`
	Goal                  string   `json:"goal"`
	Conditions            []string `json:"conditions"`
	Medications           []string `json:"medications"`
	PreviousMedExperience string   `json:"previousMedExperience"`
	Allergies             []string `json:"allergies"`
	Pancreatitis          bool     `json:"pancreatitis"`
	HighBloodPressure     bool     `json:"highBloodPressure"`
	Behavior              string   `json:"behavior"`
	ActivityLevel         string   `json:"activityLevel"`
}

// Recommendation is the scored outcome of a completed intake
type Recommendation struct {
	Product *Product `json:"product"`
	Reason  string   `json:"reason"`
}

// Eligible reports whether a safe product was found
func (r Recommendation) Eligible() bool {
	return r.Product != nil
}

// Handoff is the payload passed from intake completion to checkout
type Handoff struct {
	ProductID string `json:"productId"`
	Slug      string `json:"slug"`
	Reason    string `json:"reason"`
}

// Handoff builds the checkout payload. ok is false for ineligible outcomes.
func (r Recommendation) Handoff() (Handoff, bool) {
	if r.Product == nil {
		return Handoff{}, false
	}
	return Handoff{ProductID: r.Product.ID, Slug: r.Product.Slug, Reason: r.Reason}, true
}
