// README: Export quota status.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"geotag/internal/http/middleware"
	"geotag/internal/modules/quota"
)

type QuotaHandler struct {
	quotas *quota.Service
}

func NewQuotaHandler(svc *quota.Service) *QuotaHandler {
	return &QuotaHandler{quotas: svc}
}

// Get reports the caller's allowance. Anonymous callers share one allowance
// across all their sessions.
func (h *QuotaHandler) Get(c *gin.Context) {
	st, err := h.quotas.Status(c.Request.Context(), middleware.CallerUID(c), middleware.GuestKey(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}
