// README: Config loader: typed settings from GEOTAG_* environment variables and an
// optional geotag.yaml, with defaults for local development.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env      string
	LogLevel string
	HTTP     struct {
		Addr           string
		RateLimitRPS   float64
		RateLimitBurst int
		AllowedOrigins []string
		TrustedProxies []string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr       string
		Password   string
		DB         int
		SessionTTL time.Duration
		CacheTTL   time.Duration
	}
	Geocoding struct {
		TomTomKey          string
		GoogleKey          string
		NominatimUserAgent string
		MaxResults         int
		CacheSize          int
	}
	Region struct {
		Name        string
		CountryCode string
		MinLat      float64
		MaxLat      float64
		MinLng      float64
		MaxLng      float64
	}
	Search struct {
		Debounce      time.Duration
		LocateTimeout time.Duration
	}
	Quota struct {
		MonthlyExports   int
		AnonymousExports int
	}
	Export struct {
		DefaultImageURL string
	}
	Minio struct {
		Endpoint  string
		AccessKey string
		SecretKey string
		Bucket    string
		UseSSL    bool
	}
	Firebase struct {
		ProjectID       string
		CredentialsFile string
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.rate_limit_rps", 10.0)
	v.SetDefault("http.rate_limit_burst", 20)
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.trusted_proxies", []string{})

	v.SetDefault("db.dsn", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.session_ttl", 24*time.Hour)
	v.SetDefault("redis.cache_ttl", 6*time.Hour)

	v.SetDefault("geocoding.tomtom_key", "")
	v.SetDefault("geocoding.google_key", "")
	v.SetDefault("geocoding.nominatim_user_agent", "geotag-api/1.0")
	v.SetDefault("geocoding.max_results", 10)
	v.SetDefault("geocoding.cache_size", 100)

	v.SetDefault("region.name", "India")
	v.SetDefault("region.country_code", "IN")
	v.SetDefault("region.min_lat", 6.0)
	v.SetDefault("region.max_lat", 37.0)
	v.SetDefault("region.min_lng", 68.0)
	v.SetDefault("region.max_lng", 97.0)

	v.SetDefault("search.debounce", 300*time.Millisecond)
	v.SetDefault("search.locate_timeout", 10*time.Second)

	v.SetDefault("quota.monthly_exports", 25)
	v.SetDefault("quota.anonymous_exports", 3)

	v.SetDefault("export.default_image_url", "https://images.unsplash.com/photo-1524492412937-b28074a5d7da?w=1600")

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", "geotag-exports")
	v.SetDefault("minio.use_ssl", false)

	v.SetDefault("firebase.project_id", "")
	v.SetDefault("firebase.credentials_file", "")
}

// Load reads configuration. Environment variables use the GEOTAG_ prefix
// with dots replaced by underscores, e.g. GEOTAG_REDIS_ADDR.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("GEOTAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("geotag")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	cfg.Env = v.GetString("env")
	cfg.LogLevel = v.GetString("log_level")

	cfg.HTTP.Addr = v.GetString("http.addr")
	cfg.HTTP.RateLimitRPS = v.GetFloat64("http.rate_limit_rps")
	cfg.HTTP.RateLimitBurst = v.GetInt("http.rate_limit_burst")
	cfg.HTTP.AllowedOrigins = v.GetStringSlice("http.allowed_origins")
	cfg.HTTP.TrustedProxies = v.GetStringSlice("http.trusted_proxies")

	cfg.DB.DSN = v.GetString("db.dsn")

	cfg.Redis.Addr = v.GetString("redis.addr")
	cfg.Redis.Password = v.GetString("redis.password")
	cfg.Redis.DB = v.GetInt("redis.db")
	cfg.Redis.SessionTTL = v.GetDuration("redis.session_ttl")
	cfg.Redis.CacheTTL = v.GetDuration("redis.cache_ttl")

	cfg.Geocoding.TomTomKey = v.GetString("geocoding.tomtom_key")
	cfg.Geocoding.GoogleKey = v.GetString("geocoding.google_key")
	cfg.Geocoding.NominatimUserAgent = v.GetString("geocoding.nominatim_user_agent")
	cfg.Geocoding.MaxResults = v.GetInt("geocoding.max_results")
	cfg.Geocoding.CacheSize = v.GetInt("geocoding.cache_size")

	cfg.Region.Name = v.GetString("region.name")
	cfg.Region.CountryCode = v.GetString("region.country_code")
	cfg.Region.MinLat = v.GetFloat64("region.min_lat")
	cfg.Region.MaxLat = v.GetFloat64("region.max_lat")
	cfg.Region.MinLng = v.GetFloat64("region.min_lng")
	cfg.Region.MaxLng = v.GetFloat64("region.max_lng")

	cfg.Search.Debounce = v.GetDuration("search.debounce")
	cfg.Search.LocateTimeout = v.GetDuration("search.locate_timeout")

	cfg.Quota.MonthlyExports = v.GetInt("quota.monthly_exports")
	cfg.Quota.AnonymousExports = v.GetInt("quota.anonymous_exports")

	cfg.Export.DefaultImageURL = v.GetString("export.default_image_url")

	cfg.Minio.Endpoint = v.GetString("minio.endpoint")
	cfg.Minio.AccessKey = v.GetString("minio.access_key")
	cfg.Minio.SecretKey = v.GetString("minio.secret_key")
	cfg.Minio.Bucket = v.GetString("minio.bucket")
	cfg.Minio.UseSSL = v.GetBool("minio.use_ssl")

	cfg.Firebase.ProjectID = v.GetString("firebase.project_id")
	cfg.Firebase.CredentialsFile = v.GetString("firebase.credentials_file")

	if cfg.Region.MinLat >= cfg.Region.MaxLat || cfg.Region.MinLng >= cfg.Region.MaxLng {
		return Config{}, fmt.Errorf("invalid region bounds: lat %g..%g lng %g..%g",
			cfg.Region.MinLat, cfg.Region.MaxLat, cfg.Region.MinLng, cfg.Region.MaxLng)
	}
	if cfg.Geocoding.TomTomKey == "" && cfg.Geocoding.GoogleKey == "" && cfg.Geocoding.NominatimUserAgent == "" {
		return Config{}, errors.New("no geocoding provider configured")
	}
	return cfg, nil
}
