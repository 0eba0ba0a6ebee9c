package intake

import (
	"bytes"
	_ "embed"
	"fmt"

	"medinexa/internal/domain"

	"github.com/spf13/viper"
)

//go:embed steps.yaml
var defaultSteps []byte

// StepKind selects how a configured step is validated
type StepKind string

const (
	StepKindQuestions   StepKind = "questions"
	StepKindBodyMetrics StepKind = "body_metrics"
)

// Answer keys written by the body metrics step
const (
	KeyWeight   = "weight"
	KeyHeight   = "height"
	KeyBMI      = "bmi"
	KeyBMILabel = "bmiLabel"
)

// Option is a selectable value of a choice question
type Option struct {
	Label string `mapstructure:"label" json:"label"`
	Value string `mapstructure:"value" json:"value"`
}

// Question is a single typed prompt within a step
type Question struct {
	ID        string              `mapstructure:"id" json:"id"`
	Prompt    string              `mapstructure:"question" json:"question"`
	Type      domain.QuestionType `mapstructure:"type" json:"type"`
	Required  bool                `mapstructure:"required" json:"required"`
	Options   []Option            `mapstructure:"options" json:"options,omitempty"`
	LogicTags []string            `mapstructure:"logicTags" json:"logicTags,omitempty"`
}

// HasOption reports whether value is one of the configured options.
// Questions without options accept any value.
func (q Question) HasOption(value string) bool {
	if len(q.Options) == 0 {
		return true
	}
	for _, o := range q.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// Step is one configured page of the questionnaire
type Step struct {
	ID        string     `mapstructure:"id" json:"id"`
	Title     string     `mapstructure:"title" json:"title"`
	Kind      StepKind   `mapstructure:"kind" json:"kind"`
	Questions []Question `mapstructure:"questions" json:"questions"`
}

// Question looks up a question of the step by id
func (s Step) Question(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Schema is the ordered list of configured steps following the patient info step
type Schema struct {
	Steps []Step `mapstructure:"steps" json:"steps"`
}

// DefaultSchema returns the built-in questionnaire
func DefaultSchema() (*Schema, error) {
	return parseSchema(bytes.NewReader(defaultSteps), "yaml")
}

// LoadSchema reads a questionnaire from a YAML or JSON file.
// An empty path yields the built-in questionnaire.
func LoadSchema(path string) (*Schema, error) {
	if path == "" {
		return DefaultSchema()
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read intake schema: %w", err)
	}
	return decodeSchema(v)
}

func parseSchema(r *bytes.Reader, format string) (*Schema, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("failed to parse intake schema: %w", err)
	}
	return decodeSchema(v)
}

func decodeSchema(v *viper.Viper) (*Schema, error) {
	var schema Schema
	if err := v.Unmarshal(&schema); err != nil {
		return nil, fmt.Errorf("failed to decode intake schema: %w", err)
	}
	for i := range schema.Steps {
		if schema.Steps[i].Kind == "" {
			schema.Steps[i].Kind = StepKindQuestions
		}
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return &schema, nil
}

// Validate checks that step and question ids are unique and types are known
func (s *Schema) Validate() error {
	stepIDs := make(map[string]bool)
	questionIDs := make(map[string]bool)

	for _, step := range s.Steps {
		if step.ID == "" {
			return fmt.Errorf("intake schema: step without id")
		}
		if stepIDs[step.ID] {
			return fmt.Errorf("intake schema: duplicate step %q", step.ID)
		}
		stepIDs[step.ID] = true

		switch step.Kind {
		case StepKindBodyMetrics:
			for _, key := range []string{KeyWeight, KeyHeight, KeyBMI, KeyBMILabel} {
				if questionIDs[key] {
					return fmt.Errorf("intake schema: question %q collides with body metrics", key)
				}
				questionIDs[key] = true
			}
			continue
		case StepKindQuestions:
		default:
			return fmt.Errorf("intake schema: step %q has unknown kind %q", step.ID, step.Kind)
		}

		if len(step.Questions) == 0 {
			return fmt.Errorf("intake schema: step %q has no questions", step.ID)
		}
		for _, q := range step.Questions {
			if q.ID == "" {
				return fmt.Errorf("intake schema: step %q has a question without id", step.ID)
			}
			if questionIDs[q.ID] {
				return fmt.Errorf("intake schema: duplicate question %q", q.ID)
			}
			questionIDs[q.ID] = true
			if !q.Type.Valid() {
				return fmt.Errorf("intake schema: question %q has unknown type %q", q.ID, q.Type)
			}
		}
	}
	return nil
}

// TotalSteps counts the patient info step plus every configured step
func (s *Schema) TotalSteps() int {
	return 1 + len(s.Steps)
}
