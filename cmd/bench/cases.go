// README: Bench cases covering matching, nudges, location, the question budget, and load.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	benchUser     = "bench-u1"
	benchPeer     = "bench-u2"
	benchQuestion = "bench-q1"
)

const (
	statusPass    = "PASS"
	statusFail    = "FAIL"
	statusPending = "PENDING"
	statusSkip    = "SKIP"
)

// schemaTables must exist after the migration has run.
var schemaTables = []string{"user_profiles", "heat_map_cells", "user_visits", "location_snapshots"}

type Runner struct {
	cfg   Options
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

func NewRunner(opts Options) *Runner {
	return &Runner{cfg: opts, httpc: &http.Client{Timeout: 10 * time.Second}}
}

// Run executes every case in order and prints one line per result. Store
// connections that cannot be opened stay nil; cases needing them report it.
func (r *Runner) Run(ctx context.Context) []Result {
	if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
		r.db = db
		defer db.Close()
	}
	r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	defer r.redis.Close()

	var results []Result
	for _, tc := range r.cases() {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		report(res)
	}
	return results
}

func report(res Result) {
	line := fmt.Sprintf("%-7s %s", res.Status, res.Name)
	if res.Latency > 0 {
		line += fmt.Sprintf(" (%s)", res.Latency.Round(time.Microsecond))
	}
	if res.Note != "" {
		line += " - " + res.Note
	}
	fmt.Println(line)
}

func profile(id string, age int, interests ...string) map[string]any {
	return map[string]any{
		"id":  id,
		"age": age,
		"location_patterns": map[string]any{
			"favorite_spots": []map[string]any{
				{"place_name": "Moda Sahili", "typical_hour": 18},
				{"place_name": "Kadıköy Çarşı", "typical_hour": 12},
			},
		},
		"interests": interests,
		"behavioral_metrics": map[string]float64{
			"app_opens_per_day":   6,
			"nudge_response_rate": 0.4,
			"avg_session_minutes": 9,
		},
	}
}

// nudgeContext is a context at Moda. With empty recent locations and matches
// supplied, only the spot and question tiers can fire.
func nudgeContext(uid string, lat, lng float64) map[string]any {
	return map[string]any{
		"user_id":          uid,
		"current_location": map[string]any{"lat": lat, "lng": lng, "place_name": "Moda"},
		"current_time":     time.Now().UTC().Format(time.RFC3339),
		"day_of_week":      int(time.Now().UTC().Weekday()),
		"recent_locations": []any{},
		"nearby_matches":   []any{},
	}
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "DB reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: statusFail, Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "Redis reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: statusFail, Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "Apply the schema file in one round trip",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: statusSkip, Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: statusFail, Note: "db not configured"}
				}
				schema, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				// No arguments: pgx sends the whole file over the simple protocol.
				if _, err := r.db.Exec(ctx, string(schema)); err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "Every table the stores query is present",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: statusFail, Note: "db not configured"}
				}
				var missing []string
				err := r.db.QueryRow(ctx, `
					SELECT COALESCE(array_agg(t), '{}')
					FROM unnest($1::text[]) AS t
					WHERE NOT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = t)`,
					schemaTables,
				).Scan(&missing)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				if len(missing) > 0 {
					return Result{Status: statusFail, Note: "missing: " + strings.Join(missing, ", ")}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name:  "Seed: profiles",
			Focus: "Store two profiles for stored scoring",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: statusSkip, Note: "db not configured"}
				}
				for _, p := range []map[string]any{
					profile(benchUser, 27, "coffee", "books", "running"),
					profile(benchPeer, 29, "coffee", "running", "jazz"),
				} {
					raw, _ := json.Marshal(p)
					if _, err := r.db.Exec(ctx, `
						INSERT INTO user_profiles (id, profile, updated_at) VALUES ($1, $2, now())
						ON CONFLICT (id) DO UPDATE SET profile = EXCLUDED.profile, updated_at = now()`,
						p["id"], raw,
					); err != nil {
						return Result{Status: statusFail, Note: err.Error()}
					}
				}
				if r.redis != nil {
					_ = r.redis.Del(ctx, "matching:profile:"+benchUser, "matching:profile:"+benchPeer).Err()
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name:  "API: server reachable",
			Focus: "Health endpoint answers",
			Run: func(ctx context.Context, r *Runner) Result {
				start := time.Now()
				resp, err := r.httpc.Get(base + "/health")
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				_ = resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					return Result{Status: statusFail, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
				}
				return Result{Status: statusPass, Latency: time.Since(start), Note: fmt.Sprintf("request_id=%s", resp.Header.Get("X-Request-ID"))}
			},
		},
		httpCaseMethod("API: metrics exposed", http.MethodGet, base+"/metrics", nil, []int{200}, []int{404}),

		// Matching
		httpCase("Matching: score pair", base+"/api/matches/score", map[string]any{
			"user_a": profile(benchUser, 27, "coffee", "books"),
			"user_b": profile(benchPeer, 31, "coffee", "jazz"),
		}, []int{200}, []int{404, 501}),

		httpCase("Matching: score pair (invalid json -> 400)", base+"/api/matches/score", "{", []int{400}, []int{404, 501}),

		httpCaseMethod("Matching: score stored profiles", http.MethodGet,
			base+"/api/matches/score?user_a="+benchUser+"&user_b="+benchPeer, nil, []int{200}, []int{404}),

		httpCaseMethod("Matching: unknown profile -> 404", http.MethodGet,
			base+"/api/matches/score?user_a="+benchUser+"&user_b=bench-missing", nil, []int{404}, []int{501}),

		httpCaseMethod("Matching: nearby", http.MethodGet,
			base+"/api/matches/nearby?user_id="+benchUser+"&lat=40.9870&lng=29.0260&radius_m=1000", nil, []int{200}, []int{404, 501}),

		httpCaseMethod("Matching: nearby (missing lat -> 400)", http.MethodGet,
			base+"/api/matches/nearby?user_id="+benchUser+"&lng=29.0260", nil, []int{400}, []int{404, 501}),

		// Location
		httpCaseMethod("Location: update", http.MethodPut, base+"/api/users/"+benchUser+"/location", map[string]any{
			"lat": 40.9870,
			"lng": 29.0260,
		}, []int{200}, []int{404, 501}),

		httpCaseMethod("Location: invalid coords -> 400", http.MethodPut, base+"/api/users/"+benchUser+"/location", map[string]any{
			"lat": 123.0,
			"lng": 456.0,
		}, []int{400}, []int{404, 501}),

		httpCase("Location: record visit", base+"/api/users/"+benchPeer+"/visits", map[string]any{
			"place_name": "Moda Sahili",
			"lat":        40.9845,
			"lng":        29.0253,
		}, []int{201}, []int{404, 501}),

		manualCase("Location: snapshot persisted", "check location_snapshots for "+benchUser),

		// Nudges
		httpCase("Nudge: select", base+"/api/nudges", nudgeContext(benchUser, 40.9870, 29.0260), []int{200, 204}, []int{404, 501}),

		httpCase("Nudge: invalid time -> 400", base+"/api/nudges", func() map[string]any {
			c := nudgeContext(benchUser, 40.9870, 29.0260)
			c["current_time"] = "yesterday"
			return c
		}(), []int{400}, []int{404, 501}),

		httpCase("Nudge: push without device token -> 400", base+"/api/nudges/push", map[string]any{
			"context": nudgeContext(benchUser, 40.9870, 29.0260),
		}, []int{400}, []int{404, 501}),

		manualCase("Nudge: proximity beats movement", "covered by selector unit tests"),

		// Concurrency
		{
			Name:  "Concurrency: daily question budget",
			Focus: "Concurrent selections never exceed the per-day question limit",
			Run: func(ctx context.Context, r *Runner) Result {
				return concurrentQuestions(ctx, r, base+"/api/nudges")
			},
		},

		// Error handling
		manualCase("Error: Redis down -> nudges fall through", "stop Redis and check selections still answer"),
		manualCase("Error: DB down -> stored scoring 500", "stop Postgres and call /api/matches/score"),

		// Performance
		{
			Name:  "Perf: location update throughput",
			Focus: "50-100 updates per second",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, http.MethodPut, base+"/api/users/"+benchUser+"/location", map[string]any{
					"lat": 40.9870,
					"lng": 29.0260,
				})
			},
		},
		{
			Name:  "Perf: nudge selection throughput",
			Focus: "Selections per second with stored-state enrichment",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, http.MethodPost, base+"/api/nudges", map[string]any{
					"user_id":          benchUser,
					"current_location": map[string]any{"lat": 40.9870, "lng": 29.0260},
					"current_time":     time.Now().UTC().Format(time.RFC3339),
					"day_of_week":      int(time.Now().UTC().Weekday()),
				})
			},
		},
	}
}

func httpCase(name, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return httpCaseMethod(name, http.MethodPost, url, body, okStatuses, pendingStatuses)
}

func httpCaseMethod(name, method, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return TestCase{
		Name:  name,
		Focus: "HTTP API",
		Run: func(ctx context.Context, r *Runner) Result {
			status, latency, err := r.do(ctx, method, url, body)
			if err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			note := fmt.Sprintf("status=%d", status)
			if contains(okStatuses, status) {
				return Result{Status: statusPass, Latency: latency, Note: note}
			}
			if contains(pendingStatuses, status) {
				return Result{Status: statusPending, Latency: latency, Note: note}
			}
			return Result{Status: statusFail, Latency: latency, Note: note}
		},
	}
}

// do sends body (JSON-encoded unless it is already a string) and returns the
// status code.
func (r *Runner) do(ctx context.Context, method, url string, body any) (int, time.Duration, error) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		reader = strings.NewReader(string(raw))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.BearerToken)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, time.Since(start), nil
}

func manualCase(name, note string) TestCase {
	return TestCase{
		Name:  name,
		Focus: "Manual",
		Run: func(ctx context.Context, r *Runner) Result {
			return Result{Status: statusSkip, Note: note}
		},
	}
}

// concurrentQuestions fires selections for a user at a spot-free location so
// only the question tier can fire, then checks the Redis counter.
func concurrentQuestions(ctx context.Context, r *Runner, url string) Result {
	if r.redis == nil {
		return Result{Status: statusSkip, Note: "redis not configured"}
	}
	key := fmt.Sprintf("engagement:questions:%s:%s", benchQuestion, time.Now().UTC().Format("2006-01-02"))
	if err := r.redis.Del(ctx, key).Err(); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}

	payload := nudgeContext(benchQuestion, 0, 0)
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, pend := 0, 0
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _, err := r.do(ctx, http.MethodPost, url, payload)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case status == http.StatusOK:
				ok++
			case status == http.StatusNotFound || status == http.StatusNotImplemented:
				pend++
			}
		}()
	}
	wg.Wait()

	if pend == r.cfg.Concurrency {
		return Result{Status: statusPending, Note: "not implemented"}
	}
	count, err := r.redis.Get(ctx, key).Int()
	if err != nil && err != redis.Nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	note := fmt.Sprintf("asked=%d counter=%d limit=%d", ok, count, r.cfg.QuestionLimit)
	if ok > r.cfg.QuestionLimit || count > r.cfg.QuestionLimit {
		return Result{Status: statusFail, Note: note}
	}
	return Result{Status: statusPass, Note: note}
}

func perfLoad(ctx context.Context, r *Runner, method, url string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, err := r.do(ctx, method, url, payload)
				mu.Lock()
				if err != nil || status >= 500 {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}
