// README: Smoke and load runner against a live geotag-api; executes HTTP, DB and Redis checks and prints results.
package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	bench := NewRunner(cfg)
	results := bench.RunAll(ctx)

	fmt.Println("\n== Summary ==")
	pass, fail, skipped := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			pass++
		case StatusFail:
			fail++
		case StatusSkip:
			skipped++
		}
	}
	fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", pass, fail, skipped)

	if fail > 0 || (cfg.Strict && skipped > 0) {
		os.Exit(1)
	}
}

type Config struct {
	BaseURL     string
	DSN         string
	RedisAddr   string
	Strict      bool
	Timeout     time.Duration
	Concurrency int
	Duration    time.Duration
}

// loadConfig reads flags whose defaults come from GEOTAG_BENCH_* variables,
// falling back to the API's own GEOTAG_DB_DSN and GEOTAG_REDIS_ADDR.
func loadConfig() Config {
	v := viper.New()
	v.SetEnvPrefix("GEOTAG_BENCH")
	v.AutomaticEnv()
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("dsn", os.Getenv("GEOTAG_DB_DSN"))
	v.SetDefault("redis", cmp.Or(os.Getenv("GEOTAG_REDIS_ADDR"), "localhost:6379"))
	v.SetDefault("strict", false)
	v.SetDefault("timeout", 60*time.Second)
	v.SetDefault("concurrency", 20)
	v.SetDefault("duration", 10*time.Second)

	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", v.GetString("base_url"), "API base URL")
	flag.StringVar(&cfg.DSN, "dsn", v.GetString("dsn"), "Postgres DSN (optional)")
	flag.StringVar(&cfg.RedisAddr, "redis", v.GetString("redis"), "Redis address (optional)")
	flag.BoolVar(&cfg.Strict, "strict", v.GetBool("strict"), "Fail on skipped checks")
	flag.DurationVar(&cfg.Timeout, "timeout", v.GetDuration("timeout"), "Total timeout")
	flag.IntVar(&cfg.Concurrency, "concurrency", v.GetInt("concurrency"), "Concurrency for load checks")
	flag.DurationVar(&cfg.Duration, "duration", v.GetDuration("duration"), "Duration for load checks")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return cfg
}
