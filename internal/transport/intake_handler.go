package transport

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"medinexa/internal/domain"
	"medinexa/internal/intake"
	"medinexa/internal/middleware"
	"medinexa/internal/service"
	"medinexa/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	attachmentFormField = "file"
	// oversized files are drained up to this cap to report their size
	maxUploadBody = 4 * intake.MaxAttachmentBytes
)

// AdvanceRequest carries the answers of the current step
type AdvanceRequest struct {
	Answers domain.Answers `json:"answers" validate:"required"`
}

// ToggleChoiceRequest applies one click to a multi-select answer
type ToggleChoiceRequest struct {
	Selected []string `json:"selected"`
	Value    string   `json:"value" validate:"required"`
}

// ToggleChoiceResponse is the selection after the click
type ToggleChoiceResponse struct {
	Selected []string `json:"selected"`
}

// IntakeHandler exposes the questionnaire flow of the authenticated actor
type IntakeHandler struct {
	intakeService service.IntakeService
	orderService  service.OrderService
	logger        *zap.Logger
}

// NewIntakeHandler creates a new IntakeHandler
func NewIntakeHandler(intakeService service.IntakeService, orderService service.OrderService, logger *zap.Logger) *IntakeHandler {
	return &IntakeHandler{
		intakeService: intakeService,
		orderService:  orderService,
		logger:        logger,
	}
}

// RegisterRoutes registers all intake routes. Every route requires a session.
func (h *IntakeHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/intake", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.State)
		r.Post("/patient-info", h.SubmitPatientInfo)
		r.Post("/steps", h.Advance)
		r.Post("/back", h.Retreat)
		r.Post("/reset", h.Reset)
		r.Get("/outcome", h.Outcome)
		r.Get("/summary", h.Summary)
		r.Post("/choices/toggle", h.ToggleChoice)
		r.Post("/attachments", h.UploadAttachment)
	})
}

// State returns the persisted flow of the actor, resuming where they left off
func (h *IntakeHandler) State(w http.ResponseWriter, r *http.Request) {
	view, err := h.intakeService.State(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "failed to load intake")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// SubmitPatientInfo handles the fixed first step
func (h *IntakeHandler) SubmitPatientInfo(w http.ResponseWriter, r *http.Request) {
	var info domain.PatientInfo
	if !decodeRequest(w, r, h.logger, &info) {
		return
	}

	view, err := h.intakeService.SubmitPatientInfo(r.Context(), middleware.ActorFromContext(r.Context()), info)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "failed to save patient information")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// Advance submits the current step. The response carries the outcome once the last step is accepted.
func (h *IntakeHandler) Advance(w http.ResponseWriter, r *http.Request) {
	var req AdvanceRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	result, err := h.intakeService.Advance(r.Context(), middleware.ActorFromContext(r.Context()), req.Answers)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "failed to save intake step")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, result)
}

func (h *IntakeHandler) Retreat(w http.ResponseWriter, r *http.Request) {
	view, err := h.intakeService.Retreat(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "failed to go back")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, view)
}

func (h *IntakeHandler) Reset(w http.ResponseWriter, r *http.Request) {
	view, err := h.intakeService.Reset(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "failed to reset intake")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// Outcome returns the recommendation awaiting checkout
func (h *IntakeHandler) Outcome(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.intakeService.Outcome(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "failed to load intake outcome")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, outcome)
}

// Summary returns the intake answers frozen into the actor's latest order
func (h *IntakeHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.orderService.IntakeSummary(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "failed to load intake summary")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, summary)
}

// ToggleChoice applies the none-option exclusivity rule to a multi-select click
func (h *IntakeHandler) ToggleChoice(w http.ResponseWriter, r *http.Request) {
	var req ToggleChoiceRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, ToggleChoiceResponse{
		Selected: domain.ToggleChoice(req.Selected, req.Value),
	})
}

// UploadAttachment streams the "file" part of a multipart upload into the attachment store
func (h *IntakeHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)

	reader, err := r.MultipartReader()
	if err != nil {
		middleware.RespondWithFieldError(w, http.StatusBadRequest, attachmentFormField, "Invalid multipart upload")
		return
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			middleware.RespondWithFieldError(w, http.StatusBadRequest, attachmentFormField, "A file is required")
			return
		}
		if err != nil {
			h.respondWithUploadError(w, err)
			return
		}
		if part.FormName() != attachmentFormField {
			part.Close()
			continue
		}
		h.storePart(w, r, part)
		return
	}
}

func (h *IntakeHandler) storePart(w http.ResponseWriter, r *http.Request, part *multipart.Part) {
	defer part.Close()

	data, err := io.ReadAll(io.LimitReader(part, intake.MaxAttachmentBytes+1))
	if err != nil {
		h.respondWithUploadError(w, err)
		return
	}

	size := int64(len(data))
	if size > intake.MaxAttachmentBytes {
		if rest, err := io.Copy(io.Discard, part); err == nil {
			size += rest
		} else {
			// past the body cap the real size is unknown
			size = -1
		}
		middleware.RespondWithFieldError(w, http.StatusRequestEntityTooLarge, attachmentFormField,
			intake.FileTooLargeMessage(size))
		return
	}

	attachment, err := h.intakeService.UploadAttachment(r.Context(), middleware.ActorFromContext(r.Context()), storage.Upload{
		FileName:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Size:        size,
		Body:        bytes.NewReader(data),
	})
	if err != nil {
		if errors.Is(err, storage.ErrFileTooLarge) {
			middleware.RespondWithFieldError(w, http.StatusRequestEntityTooLarge, attachmentFormField,
				intake.FileTooLargeMessage(size))
			return
		}
		respondWithServiceError(w, r, h.logger, err, "failed to store attachment")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, attachment)
}

func (h *IntakeHandler) respondWithUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		middleware.RespondWithFieldError(w, http.StatusRequestEntityTooLarge, attachmentFormField,
			intake.FileTooLargeMessage(-1))
		return
	}
	h.logger.Debug("Rejected multipart upload", zap.Error(err))
	middleware.RespondWithFieldError(w, http.StatusBadRequest, attachmentFormField, "Invalid multipart upload")
}
