// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"geotag/internal/http/handlers"
	"geotag/internal/http/middleware"
	"geotag/internal/infra"
	"geotag/internal/maps"
	"geotag/internal/modules/location"
	"geotag/internal/modules/quota"
	"geotag/internal/modules/search"
	"geotag/internal/modules/session"
)

type RouterDeps struct {
	Geocoder       *maps.Client
	Locations      *location.Service
	Search         *search.Service
	Sessions       *session.Service
	Quotas         *quota.Service
	Verifier       infra.TokenVerifier
	RateLimiter    *middleware.RateLimiter
	AllowedOrigins []string
	TrustedProxies []string
	Logger         zerolog.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	r := gin.New()
	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		deps.Logger.Warn().Err(err).Msg("trusted proxies ignored")
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api")
	if deps.RateLimiter != nil {
		api.Use(deps.RateLimiter.Middleware())
	}
	api.Use(middleware.OptionalAuth(deps.Verifier))

	region := deps.Locations.Region()

	geocode := handlers.NewGeocodeHandler(deps.Geocoder, deps.Locations)
	api.GET("/geocode/search", geocode.Search)
	api.GET("/geocode/reverse", geocode.Reverse)

	locations := handlers.NewLocationHandler(deps.Search, deps.Geocoder, region)
	api.POST("/locations/custom", locations.Custom)
	api.POST("/locations/device", locations.Device)
	api.POST("/locations/map-click", locations.MapClick)
	api.GET("/locations/map", locations.MapDefaults)
	api.GET("/locations/recent", middleware.RequireUser(), geocode.Recent)

	sessions := handlers.NewSessionHandler(deps.Sessions)
	api.POST("/sessions", sessions.Create)
	api.GET("/sessions/:id", sessions.Get)
	api.DELETE("/sessions/:id", sessions.Delete)
	api.PUT("/sessions/:id/location", sessions.SetLocation)
	api.PUT("/sessions/:id/date", sessions.SetDate)
	api.PUT("/sessions/:id/watermark", sessions.SetWatermark)
	api.POST("/sessions/:id/next", sessions.Next)
	api.POST("/sessions/:id/tab", sessions.GoTo)
	api.POST("/sessions/:id/edit-mode", sessions.ToggleEditMode)
	api.POST("/sessions/:id/discard", sessions.Discard)
	api.POST("/sessions/:id/image", sessions.UploadImage)
	api.DELETE("/sessions/:id/image", sessions.RemoveImage)
	api.POST("/sessions/:id/export", sessions.Export)

	pickers := handlers.NewPickerHandler(deps.Sessions, deps.Search, deps.Geocoder, region, deps.AllowedOrigins, deps.Logger)
	api.GET("/sessions/:id/picker", pickers.Serve)

	quotas := handlers.NewQuotaHandler(deps.Quotas)
	api.GET("/quota", quotas.Get)

	return r
}
