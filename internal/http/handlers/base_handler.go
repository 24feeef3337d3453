// README: Base handler utilities (JSON helpers, domain error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"geotag/internal/maps"
	"geotag/internal/modules/export"
	"geotag/internal/modules/location"
	"geotag/internal/modules/quota"
	"geotag/internal/modules/search"
	"geotag/internal/modules/session"
)

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Field     string `json:"field,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Anonymous bool   `json:"anonymous,omitempty"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// errorBody maps a domain error to its status and payload. Every kind of
// failure is recoverable by the client, so nothing here ends a session.
func errorBody(err error) (int, errorResponse) {
	var (
		ve *location.ValidationError
		ge *search.GeolocationError
		qe *quota.ExceededError
		te *maps.GeocodingError
	)
	switch {
	case errors.As(err, &qe):
		return http.StatusPaymentRequired, errorResponse{Error: qe.Error(), Kind: "quota_exceeded", Limit: qe.Limit, Anonymous: qe.Anonymous}
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, errorResponse{Error: ve.Error(), Kind: "validation", Field: ve.Field}
	case errors.As(err, &ge):
		if ge.Kind == search.GeolocationPermissionDenied {
			return http.StatusForbidden, errorResponse{Error: ge.Error(), Kind: "permission_denied"}
		}
		return http.StatusServiceUnavailable, errorResponse{Error: ge.Error(), Kind: ge.Kind.String()}
	case errors.As(err, &te):
		return http.StatusBadGateway, errorResponse{Error: "The location service is temporarily unavailable. Please try again.", Kind: "transport"}
	case errors.Is(err, maps.ErrNoResult):
		return http.StatusNotFound, errorResponse{Error: "No address found for this point.", Kind: "no_result"}
	case errors.Is(err, export.ErrUnsupportedImage):
		return http.StatusUnprocessableEntity, errorResponse{Error: "The photo format is not supported. Upload a JPEG, PNG, GIF or WebP image.", Kind: "validation", Field: "image"}
	case errors.Is(err, export.ErrImageTooLarge):
		return http.StatusUnprocessableEntity, errorResponse{Error: "The photo dimensions are too large to export.", Kind: "validation", Field: "image"}
	case errors.Is(err, export.ErrSourceTooLarge):
		return http.StatusRequestEntityTooLarge, errorResponse{Error: "The photo is too large to export.", Field: "image"}
	case errors.Is(err, export.ErrFetch):
		return http.StatusBadGateway, errorResponse{Error: "The photo could not be downloaded. Please try again.", Kind: "transport"}
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: err.Error()}
	case errors.Is(err, session.ErrInvalidTab):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.Is(err, session.ErrConflict), errors.Is(err, session.ErrExportInFlight), errors.Is(err, session.ErrLastTab):
		return http.StatusConflict, errorResponse{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error"}
	}
}

func writeDomainError(c *gin.Context, err error) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	writeJSON(c, status, body)
}
