// simulate drives load against a running api-server: radius searches,
// availability reads, and bookings. Bookings deliberately target a narrow set
// of start times per provider so concurrent workers collide on the same slots
// and the conflict path gets exercised, not just the happy path.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glowbook/marketplace-booking/internal/config"
	"github.com/glowbook/marketplace-booking/internal/db"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	SearchRatio  float64
	AvailRatio   float64
	BookingRatio float64
	OriginLat    float64
	OriginLng    float64
	RadiusMeters float64
	PostgresDSN  string
}

// offering is one bookable (provider, service) pair.
type offering struct {
	ProviderID uuid.UUID
	ServiceID  uuid.UUID
}

type DataPool struct {
	Offerings []offering
	Clients   []uuid.UUID
	Day       time.Time // all bookings land on this day
}

// tally counts outcomes and latencies for one operation type.
type tally struct {
	mu        sync.Mutex
	success   int
	conflict  int
	failed    int
	latencies []time.Duration
}

func (t *tally) record(latency time.Duration, status int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latencies = append(t.latencies, latency)
	switch {
	case err != nil:
		t.failed++
	case status == http.StatusConflict:
		t.conflict++
	case status >= 200 && status < 300:
		t.success++
	default:
		t.failed++
	}
}

func (t *tally) report(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := len(t.latencies)
	if total == 0 {
		return
	}

	sorted := make([]time.Duration, total)
	copy(sorted, t.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	pct := func(p int) time.Duration { return sorted[min(total*p/100, total-1)] }

	fmt.Printf("%-14s total=%-6d ok=%-6d conflict=%-6d failed=%-6d avg=%-8s p50=%-8s p95=%s\n",
		name, total, t.success, t.conflict, t.failed,
		(sum / time.Duration(total)).Round(time.Millisecond),
		pct(50).Round(time.Millisecond), pct(95).Round(time.Millisecond))
}

type Simulator struct {
	cfg    SimConfig
	pool   *DataPool
	client *http.Client

	search   tally
	avail    tally
	bookings tally
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadSimConfig()
	log.Printf("config: duration=%s workers=%d search=%.2f avail=%.2f booking=%.2f",
		cfg.Duration, cfg.Workers, cfg.SearchRatio, cfg.AvailRatio, cfg.BookingRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	pool, err := loadDataPool(ctx, pgPool)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded: %d offerings, %d clients, booking day %s",
		len(pool.Offerings), len(pool.Clients), pool.Day.Format("2006-01-02"))

	sim := &Simulator{
		cfg:    cfg,
		pool:   pool,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	sim.Run()

	fmt.Println()
	sim.search.report("search")
	sim.avail.report("availability")
	sim.bookings.report("booking")
}

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		SearchRatio:  getFloat("SIM_SEARCH_RATIO", 0.3),
		AvailRatio:   getFloat("SIM_AVAIL_RATIO", 0.3),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.4),
		OriginLat:    getFloat("SIM_ORIGIN_LAT", 30.2672),
		OriginLng:    getFloat("SIM_ORIGIN_LNG", -97.7431),
		RadiusMeters: getFloat("SIM_RADIUS_M", 15000),
		PostgresDSN:  baseCfg.PostgresDSN,
	}

	total := cfg.SearchRatio + cfg.AvailRatio + cfg.BookingRatio
	if total <= 0 {
		log.Fatal("operation ratios must sum to a positive value")
	}
	cfg.SearchRatio /= total
	cfg.AvailRatio /= total
	cfg.BookingRatio /= total

	if cfg.Workers <= 0 {
		log.Fatal("SIM_WORKERS must be > 0")
	}
	return cfg
}

func loadDataPool(ctx context.Context, pgPool *pgxpool.Pool) (*DataPool, error) {
	pool := &DataPool{}

	rows, err := pgPool.Query(ctx, `
		SELECT provider_id, id FROM services ORDER BY provider_id LIMIT 500
	`)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o offering
		if err := rows.Scan(&o.ProviderID, &o.ServiceID); err != nil {
			return nil, err
		}
		pool.Offerings = append(pool.Offerings, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = pgPool.Query(ctx, `SELECT id FROM clients LIMIT 500`)
	if err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		pool.Clients = append(pool.Clients, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(pool.Offerings) == 0 {
		return nil, fmt.Errorf("no services in database, run the seed first")
	}
	if len(pool.Clients) == 0 {
		return nil, fmt.Errorf("no clients in database, run the seed first")
	}

	// Book onto the next weekday so everyone lands inside working hours.
	day := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	for day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	pool.Day = day

	return pool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Duration)
	defer cancel()

	log.Printf("running for %s with %d workers", s.cfg.Duration, s.cfg.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			s.worker(ctx, rand.New(rand.NewSource(time.Now().UnixNano()+seed)))
		}(int64(i))
	}
	wg.Wait()

	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, rng *rand.Rand) {
	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.cfg.SearchRatio:
			s.doSearch(ctx)
		case r < s.cfg.SearchRatio+s.cfg.AvailRatio:
			s.doAvailability(ctx, rng)
		default:
			s.doBooking(ctx, rng)
		}
	}
}

func (s *Simulator) doSearch(ctx context.Context) {
	url := fmt.Sprintf("%s/providers/search?lat=%f&lng=%f&radius_m=%.0f&date=%s",
		s.cfg.APIBaseURL, s.cfg.OriginLat, s.cfg.OriginLng, s.cfg.RadiusMeters,
		s.pool.Day.Format("2006-01-02"))

	status, latency, err := s.get(ctx, url)
	s.search.record(latency, status, err)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	o := s.pool.Offerings[rng.Intn(len(s.pool.Offerings))]
	url := fmt.Sprintf("%s/providers/%s/availability?service_id=%s&from=%s",
		s.cfg.APIBaseURL, o.ProviderID, o.ServiceID,
		s.pool.Day.Format(time.RFC3339))

	status, latency, err := s.get(ctx, url)
	s.avail.record(latency, status, err)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	// A handful of start times per provider keeps workers colliding.
	o := s.pool.Offerings[rng.Intn(len(s.pool.Offerings))]
	client := s.pool.Clients[rng.Intn(len(s.pool.Clients))]
	start := s.pool.Day.Add(time.Duration(10*60+15*rng.Intn(6)) * time.Minute)

	body, _ := json.Marshal(map[string]any{
		"provider_id": o.ProviderID.String(),
		"service_id":  o.ServiceID.String(),
		"client_id":   client.String(),
		"start":       start.Format(time.RFC3339),
	})

	began := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.APIBaseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		s.bookings.record(time.Since(began), 0, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(began)
	status := 0
	if err == nil {
		status = resp.StatusCode
		resp.Body.Close()
	}
	s.bookings.record(latency, status, err)
}

func (s *Simulator) get(ctx context.Context, url string) (status int, latency time.Duration, err error) {
	began := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, time.Since(began), err
	}
	resp, err := s.client.Do(req)
	latency = time.Since(began)
	if err != nil {
		return 0, latency, err
	}
	resp.Body.Close()
	return resp.StatusCode, latency, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
