package domain

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// QuestionType is the closed set of intake question kinds
type QuestionType string

const (
	QuestionNumber       QuestionType = "number"
	QuestionSingleChoice QuestionType = "single-select"
	QuestionMultiChoice  QuestionType = "multi-select"
	QuestionBoolean      QuestionType = "boolean"
	QuestionFile         QuestionType = "file-upload"
	QuestionLongText     QuestionType = "text-long"
)

// Valid reports whether t is one of the supported question kinds
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionNumber, QuestionSingleChoice, QuestionMultiChoice,
		QuestionBoolean, QuestionFile, QuestionLongText:
		return true
	}
	return false
}

// Attachment references an uploaded file stored outside the answer set
type Attachment struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Key         string    `json:"key"`
	Hash        string    `json:"hash,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Answer is a tagged union over QuestionType.
// Only the field matching Kind is meaningful: Value for number, single-select,
// boolean and text-long; Choices for multi-select; File for file-upload.
type Answer struct {
	Kind    QuestionType `json:"kind"`
	Value   string       `json:"value,omitempty"`
	Choices []string     `json:"choices,omitempty"`
	File    *Attachment  `json:"file,omitempty"`
}

func NumberAnswer(raw string) Answer {
	return Answer{Kind: QuestionNumber, Value: raw}
}

func ChoiceAnswer(value string) Answer {
	return Answer{Kind: QuestionSingleChoice, Value: value}
}

func MultiChoiceAnswer(values ...string) Answer {
	return Answer{Kind: QuestionMultiChoice, Choices: append([]string{}, values...)}
}

// BoolAnswer encodes a yes/no answer the way the questionnaire stores it
func BoolAnswer(yes bool) Answer {
	if yes {
		return Answer{Kind: QuestionBoolean, Value: "yes"}
	}
	return Answer{Kind: QuestionBoolean, Value: "no"}
}

func FileAnswer(file *Attachment) Answer {
	return Answer{Kind: QuestionFile, File: file}
}

func TextAnswer(text string) Answer {
	return Answer{Kind: QuestionLongText, Value: text}
}

// Float parses a numeric answer. Only finite numbers are accepted.
func (a Answer) Float() (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(a.Value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// IsYes reports whether a boolean answer is affirmative
func (a Answer) IsYes() bool {
	return strings.EqualFold(strings.TrimSpace(a.Value), "yes")
}

// Empty reports whether the answer carries no value for its kind
func (a Answer) Empty() bool {
	switch a.Kind {
	case QuestionMultiChoice:
		return len(a.Choices) == 0
	case QuestionFile:
		return a.File == nil
	default:
		return a.Value == ""
	}
}

// IsNoneOption reports whether a choice value is a "none" / "n/a" style option
// that excludes every other selection of the same question.
func IsNoneOption(value string) bool {
	v := strings.ToLower(value)
	return strings.Contains(v, "none") || v == "n/a" || v == "na"
}

// ToggleChoice applies a single selection click to a multi-select answer.
// Selecting a none-option clears every other selection; selecting any other
// option clears a previously selected none-option. Selecting an already
// selected value deselects it.
func ToggleChoice(selected []string, value string) []string {
	if lo.Contains(selected, value) {
		return lo.Without(selected, value)
	}
	if IsNoneOption(value) {
		return []string{value}
	}
	return append(lo.Reject(selected, func(v string, _ int) bool { return IsNoneOption(v) }), value)
}

// Answers maps question ids to answers
type Answers map[string]Answer

// Merge returns a copy of a with b layered on top; later values win
func (a Answers) Merge(b Answers) Answers {
	merged := make(Answers, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	return merged
}

// Clone returns a deep copy of the answer set
func (a Answers) Clone() Answers {
	if a == nil {
		return Answers{}
	}
	out := make(Answers, len(a))
	for k, v := range a {
		if v.Choices != nil {
			v.Choices = append([]string{}, v.Choices...)
		}
		if v.File != nil {
			f := *v.File
			v.File = &f
		}
		out[k] = v
	}
	return out
}
