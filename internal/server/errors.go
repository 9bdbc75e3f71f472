package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	analyticsdomain "github.com/storynest/storynest/internal/analytics/domain"
	catalogdomain "github.com/storynest/storynest/internal/catalog/domain"
	contractdomain "github.com/storynest/storynest/internal/contract/domain"
	payoutdomain "github.com/storynest/storynest/internal/payout/domain"
	royaltydomain "github.com/storynest/storynest/internal/royalty/domain"
	usagedomain "github.com/storynest/storynest/internal/usage/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, usagedomain.ErrInvalidEventKind),
		errors.Is(err, usagedomain.ErrInvalidChild),
		errors.Is(err, usagedomain.ErrInvalidBook),
		errors.Is(err, usagedomain.ErrNegativeSeconds),
		errors.Is(err, usagedomain.ErrIdempotencyTooLong),
		errors.Is(err, analyticsdomain.ErrInvalidDateRange),
		errors.Is(err, royaltydomain.ErrInvalidDateRange),
		errors.Is(err, payoutdomain.ErrInvalidDateRange),
		errors.Is(err, contractdomain.ErrInvalidPublisher),
		errors.Is(err, contractdomain.ErrInvalidModel),
		errors.Is(err, contractdomain.ErrInvalidStatus),
		errors.Is(err, contractdomain.ErrInvalidBps),
		errors.Is(err, contractdomain.ErrInvalidDateWindow),
		errors.Is(err, contractdomain.ErrMissingRevShareBps):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, catalogdomain.ErrChildNotFound),
		errors.Is(err, catalogdomain.ErrBookNotFound),
		errors.Is(err, catalogdomain.ErrSessionNotFound),
		errors.Is(err, catalogdomain.ErrPublisherNotFound),
		errors.Is(err, usagedomain.ErrEventNotFound),
		errors.Is(err, contractdomain.ErrContractNotFound),
		errors.Is(err, payoutdomain.ErrPeriodNotFound),
		errors.Is(err, payoutdomain.ErrStatementNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, payoutdomain.ErrPeriodExists),
		errors.Is(err, payoutdomain.ErrPeriodCalculating),
		errors.Is(err, payoutdomain.ErrPeriodNotReady),
		errors.Is(err, payoutdomain.ErrPeriodAlreadyPaid):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}

func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	return payload.Type, payload.Message
}
