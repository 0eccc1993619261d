package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/courseloop/courseloop-backend/internal/services"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondServiceError maps service sentinel errors onto HTTP statuses.
// Upstream failures (model, vector index) surface as 502 so callers can
// distinguish them from bugs in this service.
func RespondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
	case errors.Is(err, services.ErrGenerationParse):
		RespondError(c, http.StatusBadGateway, "generation_failed", err)
	case errors.Is(err, services.ErrRetrieval):
		RespondError(c, http.StatusBadGateway, "retrieval_failed", err)
	case errors.Is(err, services.ErrConfiguration):
		RespondError(c, http.StatusInternalServerError, "configuration_error", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
