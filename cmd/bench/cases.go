// README: Runner checks: environment, location acquisition, the edit wizard, export limits and load.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
	StatusSkip = "SKIP"
)

// Coordinates used by the location checks.
const (
	mumbaiLat = 18.922
	mumbaiLng = 72.8347
	parisLat  = 48.8584
	parisLng  = 2.2945
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
			defer db.Close()
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
		defer r.redis.Close()
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: checkPostgres},
		{Name: "Env: quota tables exist", Run: checkTables("export_quota", "export_log")},
		{Name: "Env: Redis connect", Run: checkRedis},
		{Name: "API: health", Run: expect(http.MethodGet, "/health", nil, http.StatusOK)},

		{Name: "Geocode: search", Run: expect(http.MethodGet, "/api/geocode/search?q=gateway+of+india", nil, http.StatusOK)},
		{Name: "Geocode: one-rune query answers empty", Run: expect(http.MethodGet, "/api/geocode/search?q=g", nil, http.StatusOK)},
		{Name: "Geocode: reverse in region", Run: expect(http.MethodGet, fmt.Sprintf("/api/geocode/reverse?lat=%g&lng=%g", mumbaiLat, mumbaiLng), nil, http.StatusOK, http.StatusNotFound)},
		{Name: "Geocode: reverse out of region -> 422", Run: expect(http.MethodGet, fmt.Sprintf("/api/geocode/reverse?lat=%g&lng=%g", parisLat, parisLng), nil, http.StatusUnprocessableEntity)},

		{Name: "Location: custom entry", Run: expect(http.MethodPost, "/api/locations/custom", map[string]string{
			"name": "Gateway of India", "street": "Apollo Bandar", "city": "Mumbai", "state": "Maharashtra",
			"postal_code": "400001", "latitude": "18.922", "longitude": "72.8347",
		}, http.StatusOK)},
		{Name: "Location: custom entry out of region -> 422", Run: expect(http.MethodPost, "/api/locations/custom", map[string]string{
			"name": "Eiffel Tower", "city": "Paris", "state": "IDF", "latitude": "48.8584", "longitude": "2.2945",
		}, http.StatusUnprocessableEntity)},
		{Name: "Location: device permission denied -> 403", Run: expect(http.MethodPost, "/api/locations/device", map[string]any{"error_code": 1}, http.StatusForbidden)},
		{Name: "Location: map defaults", Run: expect(http.MethodGet, "/api/locations/map", nil, http.StatusOK)},

		{Name: "Wizard: next blocked until location", Run: checkNextGate},
		{Name: "Wizard: select, export, view mode", Run: checkExportFlow},
		{Name: "Export: concurrent exports of one session", Run: checkConcurrentExport},
		{Name: "Export: anonymous allowance runs out -> 402", Run: checkAnonymousQuota},

		{Name: "Load: geocode search throughput", Run: func(ctx context.Context, r *Runner) Result {
			return r.load(ctx, http.MethodGet, "/api/geocode/search?q=mumbai", nil)
		}},
		{Name: "Load: session create throughput", Run: func(ctx context.Context, r *Runner) Result {
			return r.load(ctx, http.MethodPost, "/api/sessions", nil)
		}},
	}
}

func checkPostgres(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: StatusSkip, Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	return Result{Status: StatusPass}
}

func checkTables(tables ...string) func(context.Context, *Runner) Result {
	return func(ctx context.Context, r *Runner) Result {
		if r.db == nil {
			return Result{Status: StatusSkip, Note: "db not configured"}
		}
		for _, t := range tables {
			var exists bool
			err := r.db.QueryRow(ctx,
				"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
				t,
			).Scan(&exists)
			if err != nil {
				return Result{Status: StatusFail, Note: err.Error()}
			}
			if !exists {
				return Result{Status: StatusFail, Note: "missing table: " + t}
			}
		}
		return Result{Status: StatusPass}
	}
}

func checkRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: StatusSkip, Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	return Result{Status: StatusPass}
}

func expect(method, path string, body any, ok ...int) func(context.Context, *Runner) Result {
	return func(ctx context.Context, r *Runner) Result {
		start := time.Now()
		status, _, err := r.do(ctx, method, path, body)
		if err != nil {
			return Result{Status: StatusFail, Note: err.Error()}
		}
		return verdict(slices.Contains(ok, status), time.Since(start), "status=%d", status)
	}
}

func verdict(ok bool, latency time.Duration, format string, args ...any) Result {
	res := Result{Status: StatusFail, Latency: latency, Note: fmt.Sprintf(format, args...)}
	if ok {
		res.Status = StatusPass
	}
	return res
}

func (r *Runner) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return resp.StatusCode, b, err
}

type sessionView struct {
	ID              string `json:"id"`
	ActiveTab       string `json:"active_tab"`
	EditMode        bool   `json:"edit_mode"`
	AllFieldsFilled bool   `json:"all_fields_filled"`
	FileName        string `json:"file_name"`
}

func (r *Runner) newSession(ctx context.Context) (sessionView, error) {
	var s sessionView
	status, b, err := r.do(ctx, http.MethodPost, "/api/sessions", nil)
	if err != nil {
		return s, err
	}
	if status != http.StatusCreated {
		return s, fmt.Errorf("create session: status=%d", status)
	}
	return s, json.Unmarshal(b, &s)
}

func (r *Runner) selectMumbai(ctx context.Context, id string) (sessionView, error) {
	var s sessionView
	status, b, err := r.do(ctx, http.MethodPut, "/api/sessions/"+id+"/location", map[string]any{
		"name": "Gateway of India", "address": "Apollo Bandar, Colaba, Mumbai, Maharashtra",
		"latitude": mumbaiLat, "longitude": mumbaiLng,
	})
	if err != nil {
		return s, err
	}
	if status != http.StatusOK {
		return s, fmt.Errorf("select location: status=%d", status)
	}
	return s, json.Unmarshal(b, &s)
}

func checkNextGate(ctx context.Context, r *Runner) Result {
	s, err := r.newSession(ctx)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	status, _, err := r.do(ctx, http.MethodPost, "/api/sessions/"+s.ID+"/next", nil)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	return verdict(status == http.StatusUnprocessableEntity, 0, "status=%d", status)
}

func checkExportFlow(ctx context.Context, r *Runner) Result {
	start := time.Now()
	s, err := r.newSession(ctx)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	s, err = r.selectMumbai(ctx, s.ID)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	if s.ActiveTab != "date" || !s.AllFieldsFilled {
		return Result{Status: StatusFail, Note: fmt.Sprintf("tab=%s filled=%t", s.ActiveTab, s.AllFieldsFilled)}
	}
	status, body, err := r.do(ctx, http.MethodPost, "/api/sessions/"+s.ID+"/export", nil)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	if status == http.StatusPaymentRequired {
		return Result{Status: StatusSkip, Note: "guest allowance already spent this month"}
	}
	if status != http.StatusOK {
		return Result{Status: StatusFail, Note: fmt.Sprintf("export status=%d", status)}
	}
	if _, _, err := r.do(ctx, http.MethodPost, "/api/sessions/"+s.ID+"/edit-mode", nil); err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	return verdict(true, time.Since(start), "file=%s bytes=%d", s.FileName, len(body))
}

// checkConcurrentExport fires parallel exports at one session. None may fail
// with a server error and the session must stay editable.
func checkConcurrentExport(ctx context.Context, r *Runner) Result {
	s, err := r.newSession(ctx)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	if _, err := r.selectMumbai(ctx, s.ID); err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	remaining, err := r.guestRemaining(ctx)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}

	var ok, refused, broken atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _, err := r.do(ctx, http.MethodPost, "/api/sessions/"+s.ID+"/export", nil)
			switch {
			case err != nil || status >= http.StatusInternalServerError:
				broken.Add(1)
			case status == http.StatusOK:
				ok.Add(1)
			default:
				refused.Add(1)
			}
		}()
	}
	wg.Wait()

	status, b, err := r.do(ctx, http.MethodGet, "/api/sessions/"+s.ID, nil)
	if err != nil || status != http.StatusOK {
		return Result{Status: StatusFail, Note: fmt.Sprintf("reload status=%d err=%v", status, err)}
	}
	var after struct {
		Exporting bool `json:"exporting"`
	}
	_ = json.Unmarshal(b, &after)
	return verdict(broken.Load() == 0 && (ok.Load() >= 1 || remaining == 0) && !after.Exporting, 0,
		"ok=%d refused=%d broken=%d exporting=%t", ok.Load(), refused.Load(), broken.Load(), after.Exporting)
}

// guestRemaining is what is left of this client's guest allowance.
func (r *Runner) guestRemaining(ctx context.Context) (int, error) {
	status, b, err := r.do(ctx, http.MethodGet, "/api/quota", nil)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("quota status=%d", status)
	}
	var q struct {
		Remaining int `json:"remaining"`
	}
	if err := json.Unmarshal(b, &q); err != nil {
		return 0, err
	}
	return q.Remaining, nil
}

// checkAnonymousQuota spends what is left of the guest allowance, spread over
// fresh sessions, and expects a 402 exactly when it runs out.
func checkAnonymousQuota(ctx context.Context, r *Runner) Result {
	remaining, err := r.guestRemaining(ctx)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	for i := 0; i < 50; i++ {
		s, err := r.newSession(ctx)
		if err != nil {
			return Result{Status: StatusFail, Note: err.Error()}
		}
		if _, err := r.selectMumbai(ctx, s.ID); err != nil {
			return Result{Status: StatusFail, Note: err.Error()}
		}
		status, b, err := r.do(ctx, http.MethodPost, "/api/sessions/"+s.ID+"/export", nil)
		if err != nil {
			return Result{Status: StatusFail, Note: err.Error()}
		}
		switch status {
		case http.StatusOK:
			continue
		case http.StatusPaymentRequired:
			var body struct {
				Anonymous bool `json:"anonymous"`
				Limit     int  `json:"limit"`
			}
			_ = json.Unmarshal(b, &body)
			return verdict(body.Anonymous && i == remaining, 0, "limit=%d remaining=%d after=%d", body.Limit, remaining, i)
		default:
			return Result{Status: StatusFail, Note: fmt.Sprintf("status=%d", status)}
		}
	}
	return Result{Status: StatusFail, Note: "allowance never ran out"}
}

func (r *Runner) load(ctx context.Context, method, path string, body any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount, limited atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, err := r.do(ctx, method, path, body)
				switch {
				case err != nil || status >= http.StatusInternalServerError:
					errCount.Add(1)
				case status == http.StatusTooManyRequests:
					limited.Add(1)
				default:
					count.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if count.Load() == 0 {
		return Result{Status: StatusFail, Note: "no requests completed"}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: StatusPass, Note: fmt.Sprintf("rps=%.1f errors=%d rate_limited=%d", rps, errCount.Load(), limited.Load())}
}
