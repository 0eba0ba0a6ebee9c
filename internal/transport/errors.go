package transport

import (
	"context"
	"errors"
	"net/http"

	"medinexa/internal/catalog"
	"medinexa/internal/intake"
	"medinexa/internal/middleware"
	"medinexa/internal/repository"
	"medinexa/internal/service"
	"medinexa/internal/storage"

	"go.uber.org/zap"
)

// errorStatuses maps core sentinel errors to HTTP status codes.
// Lookup uses errors.Is so wrapped errors classify the same way.
var errorStatuses = []struct {
	err    error
	status int
}{
	{service.ErrUnauthenticated, http.StatusUnauthorized},
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrInvalidToken, http.StatusUnauthorized},
	{service.ErrTokenExpired, http.StatusUnauthorized},
	{service.ErrForbidden, http.StatusForbidden},

	{repository.ErrOrderNotFound, http.StatusNotFound},
	{repository.ErrUserNotFound, http.StatusNotFound},
	{catalog.ErrProductNotFound, http.StatusNotFound},
	{intake.ErrNoCompletedIntake, http.StatusNotFound},

	{repository.ErrUserAlreadyExists, http.StatusConflict},
	{repository.ErrOrderAlreadyExists, http.StatusConflict},
	{service.ErrIllegalTransition, http.StatusConflict},
	{service.ErrNotEligible, http.StatusConflict},
	{service.ErrPaymentMismatch, http.StatusConflict},
	{intake.ErrFlowComplete, http.StatusConflict},
	{intake.ErrNotPatientInfoStep, http.StatusConflict},
	{intake.ErrPatientInfoMissing, http.StatusConflict},

	{service.ErrInvalidStatus, http.StatusBadRequest},
	{service.ErrInvalidPaymentToken, http.StatusBadRequest},
	{storage.ErrEmptyFile, http.StatusBadRequest},
	{storage.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
}

// fieldErrors are request rejections that name the offending field
var fieldErrors = []struct {
	err   error
	field string
}{
	{service.ErrPasswordTooShort, "password"},
	{service.ErrNameRequired, "name"},
	{service.ErrInvalidCard, "cardNumber"},
}

// respondWithServiceError writes the envelope for an error returned by a service.
// Unclassified errors are logged and reported as 500 with the fallback message.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error, fallback string) {
	var verr *intake.ValidationError
	if errors.As(err, &verr) {
		middleware.RespondWithFieldError(w, http.StatusUnprocessableEntity, verr.Field, verr.Message)
		return
	}

	for _, fe := range fieldErrors {
		if errors.Is(err, fe.err) {
			middleware.RespondWithFieldError(w, http.StatusBadRequest, fe.field, fe.err.Error())
			return
		}
	}

	for _, es := range errorStatuses {
		if errors.Is(err, es.err) {
			middleware.RespondWithError(w, es.status, es.err.Error())
			return
		}
	}

	if errors.Is(err, context.Canceled) {
		logger.Debug("Request canceled", zap.String("path", r.URL.Path))
		return
	}

	logger.Error(fallback,
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.String("request_id", w.Header().Get("X-Request-Id")),
	)
	middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
}

// decodeRequest decodes and validates a JSON body, writing the 400 response itself on failure
func decodeRequest(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v interface{}) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))
		middleware.RespondWithValidationErrors(w, middleware.FormatValidationErrors(err))
		return false
	}
	return true
}
