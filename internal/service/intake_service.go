package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medinexa/internal/catalog"
	"medinexa/internal/domain"
	"medinexa/internal/intake"
	"medinexa/internal/recommendation"
	"medinexa/internal/storage"

	"go.uber.org/zap"
)

// IntakeView is the persisted flow plus what the client should render next
type IntakeView struct {
	State    intake.FlowState `json:"state"`
	Position intake.Position  `json:"position"`
	Progress intake.Progress  `json:"progress"`
}

// IntakeOutcome is the scored result of a completed intake
type IntakeOutcome struct {
	Eligible bool            `json:"eligible"`
	Handoff  *domain.Handoff `json:"handoff,omitempty"`
	Product  *domain.Product `json:"product"`
	Reason   string          `json:"reason"`
}

// AdvanceResult is returned by SubmitPatientInfo and Advance; Outcome is set once the last step is accepted
type AdvanceResult struct {
	IntakeView
	Outcome *IntakeOutcome `json:"outcome,omitempty"`
}

// IntakeService runs the questionnaire for one actor at a time
type IntakeService interface {
	State(ctx context.Context, actor *domain.Actor) (*IntakeView, error)
	SubmitPatientInfo(ctx context.Context, actor *domain.Actor, info domain.PatientInfo) (*AdvanceResult, error)
	Advance(ctx context.Context, actor *domain.Actor, answers domain.Answers) (*AdvanceResult, error)
	Retreat(ctx context.Context, actor *domain.Actor) (*IntakeView, error)
	Reset(ctx context.Context, actor *domain.Actor) (*IntakeView, error)
	Outcome(ctx context.Context, actor *domain.Actor) (*IntakeOutcome, error)
	UploadAttachment(ctx context.Context, actor *domain.Actor, upload storage.Upload) (*domain.Attachment, error)
}

type intakeService struct {
	schema      *intake.Schema
	store       intake.Store
	catalog     *catalog.Catalog
	engine      *recommendation.Engine
	attachments storage.Store
	logger      *zap.Logger
}

// NewIntakeService creates a new instance of IntakeService
func NewIntakeService(
	schema *intake.Schema,
	store intake.Store,
	cat *catalog.Catalog,
	engine *recommendation.Engine,
	attachments storage.Store,
	logger *zap.Logger,
) IntakeService {
	return &intakeService{
		schema:      schema,
		store:       store,
		catalog:     cat,
		engine:      engine,
		attachments: attachments,
		logger:      logger,
	}
}

func (s *intakeService) load(ctx context.Context, actor *domain.Actor) (*intake.Machine, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	state, err := s.store.Load(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load intake state: %w", err)
	}
	return intake.NewMachine(s.schema, state), nil
}

func (s *intakeService) save(ctx context.Context, actor *domain.Actor, m *intake.Machine) error {
	if err := s.store.Save(ctx, actor.ID, m.State()); err != nil {
		return fmt.Errorf("failed to save intake state: %w", err)
	}
	return nil
}

func view(m *intake.Machine) *IntakeView {
	return &IntakeView{State: m.State(), Position: m.Position(), Progress: m.Progress()}
}

func (s *intakeService) State(ctx context.Context, actor *domain.Actor) (*IntakeView, error) {
	m, err := s.load(ctx, actor)
	if err != nil {
		return nil, err
	}
	return view(m), nil
}

func (s *intakeService) SubmitPatientInfo(ctx context.Context, actor *domain.Actor, info domain.PatientInfo) (*AdvanceResult, error) {
	m, err := s.load(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := m.SubmitPatientInfo(info); err != nil {
		return nil, err
	}
	return s.settle(ctx, actor, m, m.Completion())
}

// Advance submits the answers of the current step. Completing the last step
// scores the intake, stores the hand-off for checkout and clears the flow.
func (s *intakeService) Advance(ctx context.Context, actor *domain.Actor, answers domain.Answers) (*AdvanceResult, error) {
	m, err := s.load(ctx, actor)
	if err != nil {
		return nil, err
	}

	answers, err = s.resolveAttachments(ctx, actor, answers)
	if err != nil {
		return nil, err
	}

	completion, err := m.Advance(answers)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, actor, m, completion)
}

// resolveAttachments swaps client supplied file references for the record
// kept by the attachment store. Unknown keys and keys of other patients are
// rejected as validation errors on that question.
func (s *intakeService) resolveAttachments(ctx context.Context, actor *domain.Actor, answers domain.Answers) (domain.Answers, error) {
	resolved := answers.Clone()
	for id, answer := range answers {
		if answer.File == nil {
			continue
		}
		missing := &intake.ValidationError{Field: id, Message: "The uploaded file could not be found. Please upload it again"}
		if !storage.OwnedBy(answer.File.Key, actor.ID) {
			return nil, missing
		}

		stored, err := s.attachments.Stat(ctx, answer.File.Key)
		if err != nil {
			if errors.Is(err, storage.ErrAttachmentNotFound) {
				return nil, missing
			}
			return nil, fmt.Errorf("failed to look up attachment: %w", err)
		}
		answer.File = stored
		resolved[id] = answer
	}
	return resolved, nil
}

// settle persists an unfinished flow, or scores a finished one, stores the
// hand-off for checkout and clears the flow.
func (s *intakeService) settle(ctx context.Context, actor *domain.Actor, m *intake.Machine, completion *intake.Completion) (*AdvanceResult, error) {
	if completion == nil {
		if err := s.save(ctx, actor, m); err != nil {
			return nil, err
		}
		return &AdvanceResult{IntakeView: *view(m)}, nil
	}

	profile := intake.BuildProfile(completion.Answers)
	rec := s.engine.Recommend(s.catalog.Products(), profile)

	completed := intake.CompletedIntake{
		PatientInfo:    completion.PatientInfo,
		Answers:        completion.Answers,
		Profile:        profile,
		Recommendation: rec,
		CompletedAt:    time.Now().UTC(),
	}
	if err := s.store.SaveCompleted(ctx, actor.ID, completed); err != nil {
		return nil, fmt.Errorf("failed to save completed intake: %w", err)
	}
	if err := s.store.Clear(ctx, actor.ID); err != nil {
		return nil, fmt.Errorf("failed to clear intake state: %w", err)
	}

	s.logger.Info("Intake completed",
		zap.String("user_id", actor.ID),
		zap.Bool("eligible", rec.Eligible()),
		zap.String("bmi_label", profile.BMILabel),
	)

	return &AdvanceResult{IntakeView: *view(m), Outcome: outcome(rec)}, nil
}

func outcome(rec domain.Recommendation) *IntakeOutcome {
	out := &IntakeOutcome{Eligible: rec.Eligible(), Product: rec.Product, Reason: rec.Reason}
	if handoff, ok := rec.Handoff(); ok {
		out.Handoff = &handoff
	}
	return out
}

func (s *intakeService) Retreat(ctx context.Context, actor *domain.Actor) (*IntakeView, error) {
	m, err := s.load(ctx, actor)
	if err != nil {
		return nil, err
	}
	m.Retreat()
	if err := s.save(ctx, actor, m); err != nil {
		return nil, err
	}
	return view(m), nil
}

// Reset discards partial progress and any completed intake awaiting checkout
func (s *intakeService) Reset(ctx context.Context, actor *domain.Actor) (*IntakeView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.store.Clear(ctx, actor.ID); err != nil {
		return nil, fmt.Errorf("failed to clear intake state: %w", err)
	}
	if err := s.store.ClearCompleted(ctx, actor.ID); err != nil {
		return nil, fmt.Errorf("failed to clear completed intake: %w", err)
	}
	return view(intake.NewMachine(s.schema, intake.NewFlowState())), nil
}

// Outcome returns the recommendation of the completed intake awaiting checkout
func (s *intakeService) Outcome(ctx context.Context, actor *domain.Actor) (*IntakeOutcome, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	completed, err := s.store.LoadCompleted(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, intake.ErrNoCompletedIntake) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load completed intake: %w", err)
	}
	return outcome(completed.Recommendation), nil
}

// UploadAttachment stores a file for a file-upload answer
func (s *intakeService) UploadAttachment(ctx context.Context, actor *domain.Actor, upload storage.Upload) (*domain.Attachment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	upload.OwnerID = actor.ID

	attachment, err := s.attachments.Put(ctx, upload)
	if err != nil {
		if errors.Is(err, storage.ErrFileTooLarge) || errors.Is(err, storage.ErrEmptyFile) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to store attachment: %w", err)
	}

	s.logger.Info("Attachment uploaded",
		zap.String("user_id", actor.ID),
		zap.String("attachment_id", attachment.ID),
		zap.Int64("size", attachment.Size),
	)
	return attachment, nil
}
