package recommendation

import (
	"medinexa/internal/domain"

	"github.com/samber/lo"
)

// Rule awards Bonus to ProductID when Applies holds for the patient.
// Rules are independent and stack.
type Rule struct {
	Name      string
	ProductID string
	Bonus     int
	Applies   func(profile domain.PatientProfile) bool
}

func bmiAtLeast(min float64) func(domain.PatientProfile) bool {
	return func(p domain.PatientProfile) bool { return p.BMI >= min }
}

func goalIs(goal string) func(domain.PatientProfile) bool {
	return func(p domain.PatientProfile) bool { return p.Goal == goal }
}

func behaviorIs(behavior string) func(domain.PatientProfile) bool {
	return func(p domain.PatientProfile) bool { return p.Behavior == behavior }
}

func hasCondition(condition string) func(domain.PatientProfile) bool {
	return func(p domain.PatientProfile) bool { return lo.Contains(p.Conditions, condition) }
}

// DefaultRules is the bonus table applied after base tag scoring
var DefaultRules = []Rule{
	{Name: "bmi_35_tirzepatide", ProductID: "tirzepatide", Bonus: 40, Applies: bmiAtLeast(35)},
	{Name: "bmi_30_semaglutide", ProductID: "semaglutide", Bonus: 35, Applies: bmiAtLeast(30)},
	{Name: "bmi_27_liraglutide", ProductID: "liraglutide", Bonus: 20, Applies: bmiAtLeast(27)},
	{Name: "bmi_25_orlistat", ProductID: "orlistat", Bonus: 15, Applies: bmiAtLeast(25)},

	{Name: "emotional_eating_semaglutide", ProductID: "semaglutide", Bonus: 25, Applies: behaviorIs("emotional_eating")},
	{Name: "overeating_phentermine", ProductID: "phentermine", Bonus: 25, Applies: behaviorIs("overeating")},

	{Name: "goal_35_plus_tirzepatide", ProductID: "tirzepatide", Bonus: 30, Applies: goalIs(domain.Goal35Plus)},
	{Name: "goal_20_35_semaglutide", ProductID: "semaglutide", Bonus: 20, Applies: goalIs(domain.Goal20To35)},
	{Name: "goal_less_10_orlistat", ProductID: "orlistat", Bonus: 10, Applies: goalIs(domain.GoalLess10)},

	{Name: "diabetes_tirzepatide", ProductID: "tirzepatide", Bonus: 20, Applies: hasCondition("diabetes")},
	{Name: "diabetes_semaglutide", ProductID: "semaglutide", Bonus: 20, Applies: hasCondition("diabetes")},
	{Name: "pcos_semaglutide", ProductID: "semaglutide", Bonus: 10, Applies: hasCondition("pcos")},
}
