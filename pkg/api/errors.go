package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shift-health/pipeline/pkg/identity"
	"github.com/shift-health/pipeline/pkg/services"
)

// respondError maps a service-layer error to the HTTP status and body
// required by spec.md §4.B's taxonomy: unauthenticated -> 401, forbidden
// -> 403, validation -> 400, not-found -> 404, duplicate -> 409,
// everything else (transient/unexpected) -> 500.
func respondError(c *gin.Context, err error) {
	var validErr *services.ValidationError
	switch {
	case errors.As(err, &validErr):
		c.JSON(http.StatusBadRequest, errorResponse{Error: validErr.Error()})
	case errors.Is(err, services.ErrUnauthenticated), errors.Is(err, identity.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthenticated"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, services.ErrDuplicate):
		c.JSON(http.StatusConflict, errorResponse{Error: "duplicate"})
	default:
		slog.ErrorContext(c.Request.Context(), "unexpected service error", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
