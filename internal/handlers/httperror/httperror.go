// Package httperror maps domain errors onto HTTP responses so every handler
// package renders failures the same way.
package httperror

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iyilikvakfi/donation-service/internal/domain"
)

// Response is the JSON error envelope
type Response struct {
	Success bool                   `json:"success"`
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Status maps a domain error to its HTTP status code
func Status(err error) int {
	switch {
	case domain.IsNotFoundError(err):
		return http.StatusNotFound
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	case domain.IsConflictError(err):
		return http.StatusConflict
	case domain.IsGatewayError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Abort writes the error envelope and stops the handler chain
func Abort(c *gin.Context, err error) {
	status := Status(err)

	resp := Response{Error: err.Error()}
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		resp.Error = domainErr.Message
		resp.Code = string(domainErr.Code)
		if len(domainErr.Details) > 0 {
			resp.Details = domainErr.Details
		}
	} else if status == http.StatusInternalServerError {
		// Do not leak driver or pool internals to clients
		resp.Error = "internal server error"
	}

	c.AbortWithStatusJSON(status, resp)
}

// BadRequest writes a 400 for malformed request payloads
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{Error: message, Code: string(domain.ErrorCodeValidationFailed)})
}
