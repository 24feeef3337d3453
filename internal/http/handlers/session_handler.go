// README: Edit session handlers: wizard navigation, draft edits, image upload and export.
package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"geotag/internal/http/middleware"
	"geotag/internal/modules/location"
	"geotag/internal/modules/session"
	"geotag/internal/types"
)

type SessionHandler struct {
	sessions *session.Service
}

func NewSessionHandler(svc *session.Service) *SessionHandler {
	return &SessionHandler{sessions: svc}
}

func sessionID(c *gin.Context) (types.ID, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid session id")
		return "", false
	}
	return types.ID(id), true
}

// isValidID accepts the UUIDs issued by Create.
func isValidID(v string) bool {
	if v == "" || len(v) > 36 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') || c == '-' {
			continue
		}
		return false
	}
	return true
}

func (h *SessionHandler) respond(c *gin.Context, s *session.Session, err error) {
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, s.View())
}

func (h *SessionHandler) Create(c *gin.Context) {
	s, err := h.sessions.Create(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, s.View())
}

func (h *SessionHandler) Get(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	s, err := h.sessions.Get(c.Request.Context(), id, middleware.CallerUID(c))
	h.respond(c, s, err)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if err := h.sessions.Delete(c.Request.Context(), id, middleware.CallerUID(c)); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) SetLocation(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var loc location.Location
	if err := c.ShouldBindJSON(&loc); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	s, err := h.sessions.SelectLocation(c.Request.Context(), id, middleware.CallerUID(c), loc)
	h.respond(c, s, err)
}

type dateReq struct {
	Date time.Time `json:"date" binding:"required"`
}

func (h *SessionHandler) SetDate(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req dateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "date must be an RFC 3339 timestamp")
		return
	}
	s, err := h.sessions.SetDate(c.Request.Context(), id, middleware.CallerUID(c), req.Date)
	h.respond(c, s, err)
}

type watermarkReq struct {
	Show *bool `json:"show" binding:"required"`
}

func (h *SessionHandler) SetWatermark(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req watermarkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "show is required")
		return
	}
	s, err := h.sessions.SetWatermark(c.Request.Context(), id, middleware.CallerUID(c), *req.Show)
	h.respond(c, s, err)
}

func (h *SessionHandler) Next(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	s, err := h.sessions.Next(c.Request.Context(), id, middleware.CallerUID(c))
	h.respond(c, s, err)
}

type tabReq struct {
	Tab session.Tab `json:"tab" binding:"required"`
}

func (h *SessionHandler) GoTo(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req tabReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "tab is required")
		return
	}
	s, err := h.sessions.GoTo(c.Request.Context(), id, middleware.CallerUID(c), req.Tab)
	h.respond(c, s, err)
}

func (h *SessionHandler) ToggleEditMode(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	s, err := h.sessions.ToggleEditMode(c.Request.Context(), id, middleware.CallerUID(c))
	h.respond(c, s, err)
}

func (h *SessionHandler) Discard(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	s, err := h.sessions.Discard(c.Request.Context(), id, middleware.CallerUID(c))
	h.respond(c, s, err)
}

func (h *SessionHandler) UploadImage(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("image")
	if err != nil {
		writeError(c, http.StatusBadRequest, "multipart field \"image\" is required")
		return
	}
	if fh.Size > session.MaxUploadBytes {
		writeError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("image exceeds %d MB", session.MaxUploadBytes>>20))
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeDomainError(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, session.MaxUploadBytes+1))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	s, err := h.sessions.UploadImage(c.Request.Context(), id, middleware.CallerUID(c), data)
	h.respond(c, s, err)
}

func (h *SessionHandler) RemoveImage(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	s, err := h.sessions.RemoveImage(c.Request.Context(), id, middleware.CallerUID(c))
	h.respond(c, s, err)
}

type exportResp struct {
	FileName string `json:"file_name"`
	URL      string `json:"url"`
}

// Export answers with the JPEG as an attachment, or with the archive link
// when ?archive=1 and an archive is configured.
func (h *SessionHandler) Export(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	res, err := h.sessions.Export(c.Request.Context(), id, middleware.CallerUID(c), middleware.GuestKey(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if c.Query("archive") == "1" && res.ArchiveURL != "" {
		writeJSON(c, http.StatusOK, exportResp{FileName: res.FileName, URL: res.ArchiveURL})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	c.Data(http.StatusOK, "image/jpeg", res.Data)
}
