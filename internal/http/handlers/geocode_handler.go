// README: Geocoding handlers: forward search, reverse lookup and recent picks.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"geotag/internal/http/middleware"
	"geotag/internal/modules/location"
	"geotag/internal/types"
)

// Geocoder is the part of maps.Client served over HTTP.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]location.Location, error)
	Reverse(ctx context.Context, p types.Point) (location.Location, error)
}

type GeocodeHandler struct {
	geocoder  Geocoder
	locations *location.Service
}

func NewGeocodeHandler(geocoder Geocoder, locations *location.Service) *GeocodeHandler {
	return &GeocodeHandler{geocoder: geocoder, locations: locations}
}

type locationsResponse struct {
	Results []location.Location `json:"results"`
}

func (h *GeocodeHandler) Search(c *gin.Context) {
	res, err := h.geocoder.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if res == nil {
		res = []location.Location{}
	}
	writeJSON(c, http.StatusOK, locationsResponse{Results: res})
}

func (h *GeocodeHandler) Reverse(c *gin.Context) {
	p, ok := queryPoint(c)
	if !ok {
		writeError(c, http.StatusBadRequest, "lat and lng must be numbers")
		return
	}
	loc, err := h.geocoder.Reverse(c.Request.Context(), p)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, loc)
}

// Recent lists the caller's recently selected locations.
func (h *GeocodeHandler) Recent(c *gin.Context) {
	res, err := h.locations.Recent(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if res == nil {
		res = []location.Location{}
	}
	writeJSON(c, http.StatusOK, locationsResponse{Results: res})
}

func queryPoint(c *gin.Context) (types.Point, bool) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil {
		return types.Point{}, false
	}
	return types.Point{Lat: lat, Lng: lng}, true
}
