package intake

import (
	"fmt"
	"maps"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"medinexa/internal/domain"
)

// MaxAttachmentBytes caps the size of a file-upload answer (5 MiB)
const MaxAttachmentBytes int64 = 5 * 1024 * 1024

const minLongTextLength = 10

var (
	phonePattern     = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	phoneSeparators  = regexp.MustCompile(`[\s-]`)
	minAddressLength = 10
)

// ValidationError is a recoverable, user-facing rejection of a step submission
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidatePatientInfo checks the fixed first step. The first failing field wins.
func ValidatePatientInfo(info domain.PatientInfo) *ValidationError {
	phone := strings.TrimSpace(info.Phone)
	if phone == "" {
		return invalid("phone", "Phone number is required")
	}
	if !phonePattern.MatchString(phoneSeparators.ReplaceAllString(phone, "")) {
		return invalid("phone", "Please enter a valid phone number (10-15 digits)")
	}

	ageRaw := strings.TrimSpace(info.Age)
	if ageRaw == "" {
		return invalid("age", "Age is required")
	}
	age, err := strconv.Atoi(ageRaw)
	if err != nil || age < 18 || age > 120 {
		return invalid("age", "Age must be between 18 and 120")
	}

	if strings.TrimSpace(info.Gender) == "" {
		return invalid("gender", "Please select your gender")
	}

	address := strings.TrimSpace(info.Address)
	if address == "" {
		return invalid("address", "Address is required")
	}
	if len(address) < minAddressLength {
		return invalid("address", "Please enter a complete address (min %d characters)", minAddressLength)
	}

	return nil
}

// BodyMetrics is the computed output of the body metrics step
type BodyMetrics struct {
	WeightKg float64 `json:"weight"`
	HeightCm float64 `json:"height"`
	BMI      float64 `json:"bmi"`
	Label    string  `json:"bmiLabel"`
}

// ComputeBMI returns weight / height(m)^2 rounded to one decimal
func ComputeBMI(weightKg, heightCm float64) float64 {
	meters := heightCm / 100
	return math.Round(weightKg/(meters*meters)*10) / 10
}

// BMICategory labels a rounded BMI value
func BMICategory(bmi float64) string {
	switch {
	case bmi < 18.5:
		return domain.BMIUnderweight
	case bmi < 25:
		return domain.BMINormal
	case bmi < 30:
		return domain.BMIOverweight
	default:
		return domain.BMIObese
	}
}

// ValidateBodyMetrics range-checks weight and height. BMI is only computed
// once both values are present and in range.
func ValidateBodyMetrics(weightRaw, heightRaw string) (*BodyMetrics, *ValidationError) {
	weightRaw = strings.TrimSpace(weightRaw)
	heightRaw = strings.TrimSpace(heightRaw)

	if weightRaw == "" {
		return nil, invalid(KeyWeight, "Weight is required")
	}
	if heightRaw == "" {
		return nil, invalid(KeyHeight, "Height is required")
	}

	weight, ok := domain.NumberAnswer(weightRaw).Float()
	if !ok || weight < 20 || weight > 300 {
		return nil, invalid(KeyWeight, "Weight must be between 20 and 300 kg")
	}
	height, ok := domain.NumberAnswer(heightRaw).Float()
	if !ok || height < 100 || height > 250 {
		return nil, invalid(KeyHeight, "Height must be between 100 and 250 cm")
	}

	bmi := ComputeBMI(weight, height)
	return &BodyMetrics{
		WeightKg: weight,
		HeightCm: height,
		BMI:      bmi,
		Label:    BMICategory(bmi),
	}, nil
}

// Answers converts computed metrics into the keys merged into the answer set
func (m BodyMetrics) Answers(weightRaw, heightRaw string) domain.Answers {
	return domain.Answers{
		KeyWeight:   domain.NumberAnswer(strings.TrimSpace(weightRaw)),
		KeyHeight:   domain.NumberAnswer(strings.TrimSpace(heightRaw)),
		KeyBMI:      domain.NumberAnswer(strconv.FormatFloat(m.BMI, 'f', 1, 64)),
		KeyBMILabel: domain.ChoiceAnswer(m.Label),
	}
}

// ValidateStep checks a question step submission against its schema.
// Unknown question ids and mistyped answers are rejected; for the remaining
// questions the first failing one wins.
func ValidateStep(step Step, answers domain.Answers) *ValidationError {
	for _, id := range slices.Sorted(maps.Keys(answers)) {
		if _, ok := step.Question(id); !ok {
			return invalid(id, "Unknown question %q", id)
		}
	}

	for _, q := range step.Questions {
		answer, present := answers[q.ID]
		if present && answer.Kind != q.Type {
			return invalid(q.ID, "Invalid answer for \"%s\"", q.Prompt)
		}
		if err := validateQuestion(q, answer, present); err != nil {
			return err
		}
	}
	return nil
}

func validateQuestion(q Question, answer domain.Answer, present bool) *ValidationError {
	if present && !answer.Empty() {
		if err := validateShape(q, answer); err != nil {
			return err
		}
	}

	if !q.Required {
		return nil
	}

	switch q.Type {
	case domain.QuestionNumber:
		if _, ok := answer.Float(); !present || answer.Value == "" || !ok {
			return invalid(q.ID, "Please enter a valid number for \"%s\"", q.Prompt)
		}
	case domain.QuestionMultiChoice:
		if !present || len(answer.Choices) == 0 {
			return invalid(q.ID, "Please select at least one option for \"%s\"", q.Prompt)
		}
	case domain.QuestionFile:
		if !present || answer.File == nil {
			return invalid(q.ID, "Please upload the required file for \"%s\"", q.Prompt)
		}
	case domain.QuestionLongText:
		if !present || len(strings.TrimSpace(answer.Value)) < minLongTextLength {
			return invalid(q.ID, "Please provide a detailed answer (min %d characters) for \"%s\"", minLongTextLength, q.Prompt)
		}
	default:
		if !present || answer.Value == "" {
			return invalid(q.ID, "Please answer \"%s\"", q.Prompt)
		}
	}
	return nil
}

// validateShape checks values that are present regardless of the required flag
func validateShape(q Question, answer domain.Answer) *ValidationError {
	switch q.Type {
	case domain.QuestionNumber:
		if _, ok := answer.Float(); !ok {
			return invalid(q.ID, "Please enter a valid number for \"%s\"", q.Prompt)
		}
	case domain.QuestionFile:
		if answer.File.Size > MaxAttachmentBytes {
			return invalid(q.ID, "%s", FileTooLargeMessage(answer.File.Size))
		}
	case domain.QuestionMultiChoice:
		hasNone := false
		for _, c := range answer.Choices {
			if !q.HasOption(c) {
				return invalid(q.ID, "Invalid option for \"%s\"", q.Prompt)
			}
			if domain.IsNoneOption(c) {
				hasNone = true
			}
		}
		if hasNone && len(answer.Choices) > 1 {
			return invalid(q.ID, "\"None\" cannot be combined with other options for \"%s\"", q.Prompt)
		}
	case domain.QuestionSingleChoice:
		if !q.HasOption(answer.Value) {
			return invalid(q.ID, "Invalid option for \"%s\"", q.Prompt)
		}
	case domain.QuestionBoolean:
		if answer.Value != "yes" && answer.Value != "no" {
			return invalid(q.ID, "Please answer \"%s\"", q.Prompt)
		}
	}
	return nil
}

// FileTooLargeMessage reports an oversized upload in megabytes. A size of
// zero or less means the size is unknown and only the limit is reported.
func FileTooLargeMessage(size int64) string {
	if size <= 0 {
		return "File size must be less than 5MB"
	}
	return fmt.Sprintf("File size must be less than 5MB. Your file is %.2fMB", float64(size)/(1024*1024))
}
