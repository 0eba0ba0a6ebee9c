// Package intake sequences the medical questionnaire: the fixed patient info
// step, the configured steps, and completion.
package intake

import (
	"errors"
	"math"

	"medinexa/internal/domain"
)

// StorageKey identifies persisted flow state
const StorageKey = "intakeFlowState_v1"

var (
	ErrFlowComplete       = errors.New("intake flow is already complete")
	ErrPatientInfoMissing = errors.New("patient information has not been submitted")
	ErrNotPatientInfoStep = errors.New("current step is not the patient information step")
)

// FlowState is the resumable progress of one session
type FlowState struct {
	CurrentStepIndex int                 `json:"currentStepIndex"`
	PatientInfo      *domain.PatientInfo `json:"patientInfo"`
	Answers          domain.Answers      `json:"intakeAnswers"`
}

// NewFlowState returns an empty flow positioned on the patient info step
func NewFlowState() FlowState {
	return FlowState{Answers: domain.Answers{}}
}

// Completion is the finalized answer set handed to scoring
type Completion struct {
	PatientInfo domain.PatientInfo `json:"patientInfo"`
	Answers     domain.Answers     `json:"intakeAnswers"`
}

// Progress describes the position of the flow for display
type Progress struct {
	CurrentStep int     `json:"currentStep"`
	TotalSteps  int     `json:"totalSteps"`
	Percent     float64 `json:"percent"`
}

// Position describes what the flow expects next
type Position struct {
	Index       int   `json:"index"`
	PatientInfo bool  `json:"patientInfo"`
	Step        *Step `json:"step,omitempty"`
	Complete    bool  `json:"complete"`
}

// Machine applies transitions to a FlowState. It performs no I/O; callers
// persist State() after every successful transition.
type Machine struct {
	schema *Schema
	state  FlowState
}

// NewMachine resumes a flow from state
func NewMachine(schema *Schema, state FlowState) *Machine {
	if state.Answers == nil {
		state.Answers = domain.Answers{}
	}
	if state.CurrentStepIndex < 0 {
		state.CurrentStepIndex = 0
	}
	return &Machine{schema: schema, state: state}
}

// State returns a copy of the current flow state
func (m *Machine) State() FlowState {
	s := m.state
	s.Answers = m.state.Answers.Clone()
	if m.state.PatientInfo != nil {
		info := *m.state.PatientInfo
		s.PatientInfo = &info
	}
	return s
}

// Position reports the current step
func (m *Machine) Position() Position {
	idx := m.state.CurrentStepIndex
	switch {
	case idx == 0:
		return Position{Index: 0, PatientInfo: true}
	case idx <= len(m.schema.Steps):
		step := m.schema.Steps[idx-1]
		return Position{Index: idx, Step: &step}
	default:
		return Position{Index: idx, Complete: true}
	}
}

// Progress reports the one-based step number out of the total
func (m *Machine) Progress() Progress {
	total := m.schema.TotalSteps()
	current := min(m.state.CurrentStepIndex+1, total)
	percent := math.Min(float64(m.state.CurrentStepIndex)/float64(total)*100, 100)
	return Progress{CurrentStep: current, TotalSteps: total, Percent: math.Round(percent*10) / 10}
}

// SubmitPatientInfo validates and stores the fixed first step, then moves to step 1.
// With no configured steps the flow is complete afterwards; see Completion.
func (m *Machine) SubmitPatientInfo(info domain.PatientInfo) error {
	if m.state.CurrentStepIndex != 0 {
		return ErrNotPatientInfoStep
	}
	if verr := ValidatePatientInfo(info); verr != nil {
		return verr
	}
	m.state.PatientInfo = &info
	m.state.CurrentStepIndex = 1
	return nil
}

// Advance validates the current configured step and merges its answers.
// Nothing is merged when validation fails. When the last configured step is
// accepted the flow becomes complete and the finalized answers are returned.
func (m *Machine) Advance(stepAnswers domain.Answers) (*Completion, error) {
	pos := m.Position()
	switch {
	case pos.Complete:
		return nil, ErrFlowComplete
	case pos.PatientInfo:
		return nil, ErrNotPatientInfoStep
	case m.state.PatientInfo == nil:
		return nil, ErrPatientInfoMissing
	}

	accepted, err := m.accept(*pos.Step, stepAnswers)
	if err != nil {
		return nil, err
	}

	m.state.Answers = m.state.Answers.Merge(accepted)
	m.state.CurrentStepIndex++

	return m.Completion(), nil
}

// Completion returns the finalized answers once every step has been accepted, else nil
func (m *Machine) Completion() *Completion {
	if !m.IsComplete() || m.state.PatientInfo == nil {
		return nil
	}
	return &Completion{
		PatientInfo: *m.state.PatientInfo,
		Answers:     m.state.Answers.Clone(),
	}
}

func (m *Machine) accept(step Step, answers domain.Answers) (domain.Answers, error) {
	if step.Kind == StepKindBodyMetrics {
		weight, height := answers[KeyWeight].Value, answers[KeyHeight].Value
		metrics, verr := ValidateBodyMetrics(weight, height)
		if verr != nil {
			return nil, verr
		}
		return metrics.Answers(weight, height), nil
	}

	if verr := ValidateStep(step, answers); verr != nil {
		return nil, verr
	}
	return answers.Clone(), nil
}

// Retreat moves back one step, never below the patient info step.
// Answers collected for later steps are kept.
func (m *Machine) Retreat() {
	m.state.CurrentStepIndex = max(0, m.state.CurrentStepIndex-1)
}

// Reset discards all progress
func (m *Machine) Reset() {
	m.state = NewFlowState()
}

// IsComplete reports whether every configured step has been accepted
func (m *Machine) IsComplete() bool {
	return m.state.CurrentStepIndex > len(m.schema.Steps)
}
