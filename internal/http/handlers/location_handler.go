// README: Location acquisition handlers: manual entry, device position and map clicks.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"geotag/internal/modules/location"
	"geotag/internal/modules/mapview"
	"geotag/internal/modules/search"
	"geotag/internal/types"
)

type LocationHandler struct {
	search   *search.Service
	reverser mapview.Reverser
	region   location.Region
}

func NewLocationHandler(svc *search.Service, reverser mapview.Reverser, region location.Region) *LocationHandler {
	return &LocationHandler{search: svc, reverser: reverser, region: region}
}

func (h *LocationHandler) Custom(c *gin.Context) {
	var form search.CustomLocationForm
	if err := c.ShouldBindJSON(&form); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	loc, err := h.search.SubmitCustom(&form)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, loc)
}

type deviceReq struct {
	search.BrowserReport
	// UseIP asks the server to approximate the position from the client IP.
	UseIP bool `json:"use_ip"`
}

func (h *LocationHandler) Device(c *gin.Context) {
	var req deviceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	var g search.Geolocator = req.BrowserReport
	if req.UseIP {
		g = search.IPGeolocator{IP: c.ClientIP()}
	}
	loc, err := h.search.Locate(c.Request.Context(), g)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, loc)
}

type mapClickReq struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

func (h *LocationHandler) MapClick(c *gin.Context) {
	var req mapClickReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	view := mapview.New(h.reverser, h.region, nil)
	loc, err := view.Click(c.Request.Context(), types.Point{Lat: *req.Lat, Lng: *req.Lng})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, loc)
}

// MapDefaults serves the initial center and zoom of the map.
func (h *LocationHandler) MapDefaults(c *gin.Context) {
	writeJSON(c, http.StatusOK, mapview.New(h.reverser, h.region, nil).Snapshot())
}
