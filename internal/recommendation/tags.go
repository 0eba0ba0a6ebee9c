package recommendation

import (
	"medinexa/internal/domain"

	"github.com/samber/lo"
)

// Patient tags matched against product recommendedFor lists
const (
	TagBMI35Plus       = "bmi_35_plus"
	TagBMI30Plus       = "bmi_30_plus"
	TagBMI27Plus       = "bmi_27_plus"
	TagBMI25Plus       = "bmi_25_plus"
	TagExtremeGoal     = "extreme_weight_loss_goal"
	TagModerateGoal    = "moderate_goal"
	TagMildGoal        = "mild_goal"
	allergyTagPrefix   = "allergy_"
	allergyTagSuffix   = "_allergy"
	contraPancreatitis = "pancreatitis"
	contraHighBP       = "high_bp"
)

// bmiThresholds are cumulative: every threshold at or below the BMI contributes its tag
var bmiThresholds = []struct {
	min float64
	tag string
}{
	{35, TagBMI35Plus},
	{30, TagBMI30Plus},
	{27, TagBMI27Plus},
	{25, TagBMI25Plus},
}

var goalTags = map[string]string{
	domain.Goal35Plus: TagExtremeGoal,
	domain.Goal20To35: TagModerateGoal,
	domain.GoalLess10: TagMildGoal,
}

// DeriveTags builds the patient tag set used for base scoring
func DeriveTags(profile domain.PatientProfile) []string {
	tags := make([]string, 0, 8)

	for _, t := range bmiThresholds {
		if profile.BMI >= t.min {
			tags = append(tags, t.tag)
		}
	}

	if tag, ok := goalTags[profile.Goal]; ok {
		tags = append(tags, tag)
	}

	if profile.Behavior != "" {
		tags = append(tags, profile.Behavior)
	}

	tags = append(tags, profile.Conditions...)

	tags = append(tags, lo.Map(profile.Allergies, func(a string, _ int) string {
		return allergyTagPrefix + a
	})...)

	return lo.Uniq(tags)
}
