// internal/pkg/response/response.go
package response

import (
	"errors"
	"net/http"

	xerrors "compatlab-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the standard error payload: a short machine-readable message plus
// an optional detail object (numeric shortfalls, conflicting ids, etc.).
type ErrorBody struct {
	Error   string      `json:"error"`
	Detalhe interface{} `json:"detalhe,omitempty"`
}

// OK sends a 2xx response with the resource as the body.
func OK(c *gin.Context, status int, body interface{}) {
	if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, body)
}

// Error sends a standardized error response.
func Error(c *gin.Context, code int, message string, detail ...interface{}) {
	c.Abort()
	body := ErrorBody{Error: message}
	if len(detail) > 0 {
		body.Detalhe = detail[0]
	}
	c.JSON(code, body)
}

// FromError maps an application error to its HTTP status and responds.
// Internal error text is never leaked; callers pass the user-facing message.
func FromError(c *gin.Context, err error, message string, detail ...interface{}) {
	Error(c, StatusFor(err), message, detail...)
}

// StatusFor translates sentinel errors into HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, xerrors.ErrInvalidInput), errors.Is(err, xerrors.ErrInsufficientCredits):
		return http.StatusBadRequest
	case errors.Is(err, xerrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, xerrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, xerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, xerrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, xerrors.ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
