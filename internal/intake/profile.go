package intake

import (
	"medinexa/internal/domain"

	"github.com/samber/lo"
)

// Answer keys read by BuildProfile
const (
	KeyGoal                  = "goal"
	KeyConditions            = "conditions"
	KeyMedications           = "medications"
	KeyAllergies             = "allergies"
	KeyPancreatitis          = "pancreatitis"
	KeyHighBloodPressure     = "highBloodPressure"
	KeyBehavior              = "behavior"
	KeyActivityLevel         = "activityLevel"
	KeyPreviousMedExperience = "previousMedExperience"
)

// BuildProfile maps a merged answer set onto the scoring input.
// None-style selections carry no signal and are dropped.
func BuildProfile(answers domain.Answers) domain.PatientProfile {
	profile := domain.PatientProfile{
		BMILabel:              answers[KeyBMILabel].Value,
		Goal:                  answers[KeyGoal].Value,
		Conditions:            selections(answers[KeyConditions]),
		Medications:           selections(answers[KeyMedications]),
		Allergies:             selections(answers[KeyAllergies]),
		Pancreatitis:          answers[KeyPancreatitis].IsYes(),
		HighBloodPressure:     answers[KeyHighBloodPressure].IsYes(),
		ActivityLevel:         answers[KeyActivityLevel].Value,
		PreviousMedExperience: answers[KeyPreviousMedExperience].Value,
	}

	profile.WeightKg, _ = answers[KeyWeight].Float()
	profile.HeightCm, _ = answers[KeyHeight].Float()
	profile.BMI, _ = answers[KeyBMI].Float()
	if profile.BMILabel == "" && profile.BMI > 0 {
		profile.BMILabel = BMICategory(profile.BMI)
	}

	if behavior := answers[KeyBehavior].Value; !domain.IsNoneOption(behavior) {
		profile.Behavior = behavior
	}

	return profile
}

func selections(answer domain.Answer) []string {
	return lo.Reject(answer.Choices, func(c string, _ int) bool {
		return domain.IsNoneOption(c)
	})
}
