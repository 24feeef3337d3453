// README: Entry point; loads config, wires geocoding, sessions, quota and export, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"geotag/internal/config"
	httptransport "geotag/internal/http"
	"geotag/internal/http/middleware"
	"geotag/internal/infra"
	"geotag/internal/maps"
	"geotag/internal/modules/export"
	"geotag/internal/modules/location"
	"geotag/internal/modules/quota"
	"geotag/internal/modules/search"
	"geotag/internal/modules/session"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := infra.NewLogger(cfg.Env, cfg.LogLevel)
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var verifier infra.TokenVerifier
	if cfg.Firebase.ProjectID != "" {
		verifier, err = infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Fatal().Err(err).Msg("firebase init")
		}
	} else {
		log.Warn().Msg("GEOTAG_FIREBASE_PROJECT_ID not set, every caller is anonymous")
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = infra.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("redis")
		}
		defer rdb.Close()
	}

	region := location.Region{
		Name:        cfg.Region.Name,
		CountryCode: cfg.Region.CountryCode,
		MinLat:      cfg.Region.MinLat,
		MaxLat:      cfg.Region.MaxLat,
		MinLng:      cfg.Region.MinLng,
		MaxLng:      cfg.Region.MaxLng,
	}

	var providers []maps.Provider
	if cfg.Geocoding.TomTomKey != "" {
		providers = append(providers, maps.NewTomTomProvider(cfg.Geocoding.TomTomKey))
	}
	if cfg.Geocoding.GoogleKey != "" {
		g, err := maps.NewGoogleProvider(cfg.Geocoding.GoogleKey)
		if err != nil {
			log.Fatal().Err(err).Msg("google maps client")
		}
		providers = append(providers, g)
	}
	if cfg.Geocoding.NominatimUserAgent != "" {
		providers = append(providers, maps.NewNominatimProvider(cfg.Geocoding.NominatimUserAgent))
	}

	var backing maps.Backing
	var recent location.RecentStore
	var sessionStore session.Store = session.NewMemoryStore()
	if rdb != nil {
		backing = maps.NewRedisCache(rdb, cfg.Redis.CacheTTL)
		recent = location.NewStore(rdb)
		sessionStore = session.NewRedisStore(rdb, cfg.Redis.SessionTTL)
	} else {
		log.Warn().Msg("redis disabled, sessions are kept in memory")
	}

	geocoder := maps.NewClient(region, providers,
		maps.WithCache(maps.NewCache(cfg.Geocoding.CacheSize, backing)),
		maps.WithMaxResults(cfg.Geocoding.MaxResults),
		maps.WithLogger(log),
	)
	locationSvc := location.NewService(recent, region)
	searchSvc := search.NewService(geocoder, region).WithTimings(cfg.Search.Debounce, cfg.Search.LocateTimeout)

	var userQuotas quota.UserStore
	var sessionOpts []session.Option
	if cfg.DB.DSN != "" {
		db, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres")
		}
		defer db.Close()
		if err := infra.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
		quotaStore := quota.NewStore(db, cfg.Quota.MonthlyExports)
		userQuotas = quotaStore
		sessionOpts = append(sessionOpts, session.WithExportLog(quotaStore))
	} else {
		log.Warn().Msg("GEOTAG_DB_DSN not set, signed-in users get the anonymous allowance")
	}
	quotaSvc := quota.NewService(userQuotas, quota.NewMemoryCounter(cfg.Quota.AnonymousExports))

	if cfg.Minio.Endpoint != "" {
		archive, err := infra.NewArchive(ctx, infra.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("minio")
		}
		sessionOpts = append(sessionOpts, session.WithArchiver(archive))
	}
	sessionOpts = append(sessionOpts, session.WithLogger(log))

	renderer := export.NewRenderer(export.WithLogger(log))
	sessionSvc := session.NewService(sessionStore, locationSvc, quotaSvc, renderer, cfg.Export.DefaultImageURL, sessionOpts...)

	limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst, 10*time.Minute, log)
	go limiter.RunCleanup(ctx)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Geocoder:       geocoder,
		Locations:      locationSvc,
		Search:         searchSvc,
		Sessions:       sessionSvc,
		Quotas:         quotaSvc,
		Verifier:       verifier,
		RateLimiter:    limiter,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Logger:         log,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("addr", cfg.HTTP.Addr).Int("providers", len(providers)).Msg("listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server")
	}
}
