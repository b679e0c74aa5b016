// README: Bench cases: environment, schema, trigger API, concurrency and engine throughput.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mihir-logicrays/drive-it/internal/modules/geo"
	"github.com/mihir-logicrays/drive-it/internal/modules/matching"
	"github.com/mihir-logicrays/drive-it/internal/types"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

// idleWindow is a reference time with nothing due, so load checks measure
// the trigger without configuring real routes.
const idleWindow = `{"now":"2000-01-01T00:00:00Z"}`

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
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
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

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name: "Env: Postgres connect",
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
			Name: "Env: Redis connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: statusSkip, Note: "redis not configured, claims disabled"}
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
			Name: "Migration: apply (optional)",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: statusSkip, Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: statusFail, Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: statusFail, Note: err.Error()}
					}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name: "Migration: tables exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: statusFail, Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: statusFail, Note: err.Error()}
					}
					if !exists {
						return Result{Status: statusFail, Note: "missing table: " + t}
					}
				}
				return Result{Status: statusPass, Note: fmt.Sprintf("tables=%d", len(tables))}
			},
		},

		httpCase("API: health", http.MethodGet, base+"/health", "", http.StatusOK),
		httpCase("API: metrics exposed", http.MethodGet, base+"/metrics", "", http.StatusOK),
		httpCase("API: select without body -> 400", http.MethodPost, base+"/api/paths/select", "", http.StatusBadRequest),
		httpCase("API: select malformed json -> 400", http.MethodPost, base+"/api/paths/select", "{", http.StatusBadRequest),
		httpCase("API: select idle window", http.MethodPost, base+"/api/paths/select", idleWindow, http.StatusOK),

		{
			Name: "Concurrency: overlapping triggers",
			Run: func(ctx context.Context, r *Runner) Result {
				return overlappingTriggers(ctx, r, base+"/api/paths/select", triggerBody(r.cfg))
			},
		},
		{
			Name: "Perf: trigger load",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, base+"/api/paths/select", idleWindow)
			},
		},
		{
			Name: "Perf: in-process planning",
			Run: func(ctx context.Context, r *Runner) Result {
				return planThroughput(ctx, r.cfg)
			},
		},
	}
}

func httpCase(name, method, url, body string, want int) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			status, latency, err := r.do(ctx, method, url, body)
			if err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			note := fmt.Sprintf("status=%d", status)
			if status != want {
				return Result{Status: statusFail, Latency: latency, Note: note}
			}
			return Result{Status: statusPass, Latency: latency, Note: note}
		},
	}
}

func (r *Runner) do(ctx context.Context, method, url, body string) (int, time.Duration, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, time.Since(start), nil
}

// triggerBody keeps the runner off real due routes unless live triggers were
// asked for explicitly.
func triggerBody(cfg Config) string {
	if cfg.LiveTriggers {
		return "{}"
	}
	return idleWindow
}

// overlappingTriggers fires concurrent triggers for one window; the route
// claims must keep every one of them successful.
func overlappingTriggers(ctx context.Context, r *Runner, url, body string) Result {
	var ok, failed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _, err := r.do(ctx, http.MethodPost, url, body)
			if err != nil || status != http.StatusOK {
				failed.Add(1)
				return
			}
			ok.Add(1)
		}()
	}
	wg.Wait()

	note := fmt.Sprintf("ok=%d failed=%d", ok.Load(), failed.Load())
	if failed.Load() > 0 {
		return Result{Status: statusFail, Note: note}
	}
	return Result{Status: statusPass, Note: note}
}

func perfLoad(ctx context.Context, r *Runner, url, body string) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				if _, _, err := r.do(ctx, http.MethodPost, url, body); err != nil {
					errCount.Add(1)
					continue
				}
				count.Add(1)
			}
		}()
	}
	wg.Wait()

	if count.Load() == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load())}
}

// planThroughput runs the pure planner on a synthetic route for the load
// duration, without touching any backend.
func planThroughput(ctx context.Context, cfg Config) Result {
	in, err := syntheticPlan(cfg.Riders)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	end := time.Now().Add(cfg.Duration)
	plans := 0
	var last matching.PhasePlan
	for time.Now().Before(end) && ctx.Err() == nil {
		if last, err = matching.Plan(in); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		plans++
	}
	if plans == 0 {
		return Result{Status: statusFail, Note: "no plans completed"}
	}
	perSec := float64(plans) / cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("plans/s=%.1f riders=%d selected=%d", perSec, cfg.Riders, last.SelectedIndex)}
}

// syntheticPlan lays a row of stops 300m apart across a fence and spreads
// riders along it.
func syntheticPlan(riders int) (matching.PlanInput, error) {
	const (
		originLat = 19.0760
		originLng = 72.8777
		spacing   = 0.0027 // about 300m of longitude at this latitude
		numStops  = 12
	)
	fence, err := geo.NewPolygon([]types.Point{
		{Lat: originLat - 0.05, Lng: originLng - 0.05},
		{Lat: originLat + 0.05, Lng: originLng - 0.05},
		{Lat: originLat + 0.05, Lng: originLng + 0.1},
		{Lat: originLat - 0.05, Lng: originLng + 0.1},
	})
	if err != nil {
		return matching.PlanInput{}, err
	}

	stops := make([]matching.Stop, numStops)
	for i := range stops {
		stops[i] = matching.Stop{
			ID:       types.ID(fmt.Sprintf("stop-%02d", i)),
			RouteID:  "bench",
			Phase:    matching.PhasePickup,
			Location: types.Point{Lat: originLat, Lng: originLng + float64(i)*spacing},
		}
	}
	// Steps pair neighbouring stops, so every rider has a competing choice.
	steps := make([]matching.Step, 0, numStops/2)
	for i := 0; i+1 < numStops; i += 2 {
		steps = append(steps, matching.Step{StopIDs: []types.ID{stops[i].ID, stops[i+1].ID}})
	}

	passengers := make([]matching.Passenger, riders)
	for i := range passengers {
		p := types.Point{
			Lat: originLat + float64(i%7-3)*0.0004,
			Lng: originLng + float64(i%(numStops*3))*spacing/3,
		}
		passengers[i] = matching.Passenger{UserID: types.ID(fmt.Sprintf("rider-%d", i)), DesiredPickup: p, DesiredDropoff: p}
	}

	return matching.PlanInput{
		RouteID:    "bench",
		Phase:      matching.PhasePickup,
		Fence:      fence,
		Variants:   []matching.PathVariant{{ID: "bench-v1", RouteID: "bench", Phase: matching.PhasePickup, Steps: steps}},
		Stops:      stops,
		Passengers: passengers,
		Rules:      matching.DefaultRules(),
	}, nil
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
