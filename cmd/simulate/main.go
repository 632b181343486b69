package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
	"github.com/hackgods/clinic-appointment-scheduling/internal/logger"
	"github.com/hackgods/clinic-appointment-scheduling/internal/schedule"
)

var appointmentTypes = []appointment.Type{
	appointment.TypeQuickCheckup,
	appointment.TypeExtensiveCare,
	appointment.TypeSurgery,
}

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	UpdateRatio  float64
	ReadRatio    float64
	PatientLimit int
	StartDate    time.Time
	Days         int
	PostgresDSN  string
	Calendar     schedule.Calendar
}

type DataPool struct {
	Patients     []uuid.UUID
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Rejected  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, rejected bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case rejected:
		atomic.AddInt64(&om.Rejected, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	at := func(pct int) time.Duration {
		idx := len(latencies) * pct / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}

	return sum / time.Duration(len(latencies)), at(50), at(95), latencies[len(latencies)-1]
}

type Metrics struct {
	Booking   OperationMetrics
	Update    OperationMetrics
	ReadByID  OperationMetrics
	ListByDay OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	if err := run(); err != nil {
		fallback := zerolog.New(os.Stderr).With().Timestamp().Str("service", "simulate").Logger()
		fallback.Fatal().Err(err).Msg("simulation failed")
	}
}

func run() error {
	baseCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	log, err := logger.New(baseCfg.Env, baseCfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger setup: %w", err)
	}
	log = log.With().Str("service", "simulate").Logger()

	cfg, err := loadConfig(baseCfg)
	if err != nil {
		return fmt.Errorf("invalid simulator config: %w", err)
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("update", cfg.UpdateRatio).
		Float64("read", cfg.ReadRatio).
		Str("start_date", cfg.StartDate.Format(schedule.DateLayout)).
		Int("days", cfg.Days).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.Connect(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2}, log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		return fmt.Errorf("load data pool: %w", err)
	}
	log.Info().Int("patients", len(dataPool.Patients)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}

	sim.Run()
	sim.PrintReport()

	if violations := sim.Audit(context.Background()); violations > 0 {
		return fmt.Errorf("%d double bookings detected", violations)
	}
	return nil
}

func loadConfig(base config.Config) (SimConfig, error) {
	start, err := schedule.ParseDate(getEnv("SIM_START_DATE", time.Now().AddDate(0, 0, 1).Format(schedule.DateLayout)))
	if err != nil {
		return SimConfig{}, fmt.Errorf("SIM_START_DATE must be YYYY-MM-DD: %w", err)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		UpdateRatio:  getFloat("SIM_UPDATE_RATIO", 0.1),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.4),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 4000),
		StartDate:    start,
		Days:         getInt("SIM_DAYS", 5),
		PostgresDSN:  base.PostgresDSN,
		Calendar:     base.Calendar,
	}

	total := cfg.BookingRatio + cfg.UpdateRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.UpdateRatio /= total
		cfg.ReadRatio /= total
	}

	switch {
	case cfg.Workers <= 0:
		return SimConfig{}, fmt.Errorf("SIM_WORKERS must be > 0")
	case cfg.Duration <= 0:
		return SimConfig{}, fmt.Errorf("SIM_DURATION must be > 0")
	case cfg.Days <= 0:
		return SimConfig{}, fmt.Errorf("SIM_DAYS must be > 0")
	}
	return cfg, nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	dataPool := &DataPool{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run seed first")
	}
	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.UpdateRatio:
			s.doUpdate(ctx, rng)
		case rng.Intn(2) == 0:
			s.doReadByID(ctx, rng)
		default:
			s.doListByDay(ctx, rng)
		}
	}
}

// randomStart picks a quarter hour inside opening hours on one of the
// simulated days. Some candidates hit the break on purpose.
func (s *Simulator) randomStart(rng *rand.Rand) time.Time {
	cal := s.config.Calendar
	day := s.config.StartDate.AddDate(0, 0, rng.Intn(s.config.Days))
	quarters := int(time.Duration(cal.ClosingTime-cal.OpeningTime) / (15 * time.Minute))
	if quarters <= 0 {
		quarters = 1
	}
	offset := time.Duration(rng.Intn(quarters)) * 15 * time.Minute
	return day.Add(time.Duration(cal.OpeningTime) + offset)
}

type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func (s *Simulator) call(ctx context.Context, method, path string, body any) (int, apiResponse, error) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, apiResponse{}, err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, apiResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, apiResponse{}, err
	}
	defer resp.Body.Close()

	var out apiResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out, nil
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	cal := s.config.Calendar
	reqBody := map[string]any{
		"start_time":       s.randomStart(rng).Format(schedule.DateTimeLayout),
		"appointment_type": appointmentTypes[rng.Intn(len(appointmentTypes))],
		"patient_id":       s.pool.Patients[rng.Intn(len(s.pool.Patients))],
		"doctor":           rng.Intn(int(cal.DoctorAmount)),
		"room_nr":          rng.Intn(int(cal.RoomAmount)),
	}

	start := time.Now()
	status, resp, err := s.call(ctx, http.MethodPost, "/api/appointment", reqBody)
	latency := time.Since(start)

	if err == nil && status == http.StatusCreated {
		var created struct {
			ID uuid.UUID `json:"id"`
		}
		if json.Unmarshal(resp.Data, &created) == nil && created.ID != uuid.Nil {
			s.pool.AddAppointment(created.ID)
		}
	}
	s.metrics.Booking.Record(latency, err == nil && status == http.StatusCreated, err == nil && status == http.StatusBadRequest)
}

func (s *Simulator) doUpdate(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	reqBody := map[string]any{
		"start_time": s.randomStart(rng).Format(schedule.DateTimeLayout),
	}

	start := time.Now()
	status, _, err := s.call(ctx, http.MethodPut, "/api/appointment/"+id.String(), reqBody)
	s.metrics.Update.Record(time.Since(start), err == nil && status == http.StatusOK, err == nil && status == http.StatusBadRequest)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, _, err := s.call(ctx, http.MethodGet, "/api/appointment/"+id.String(), nil)
	s.metrics.ReadByID.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doListByDay(ctx context.Context, rng *rand.Rand) {
	day := s.config.StartDate.AddDate(0, 0, rng.Intn(s.config.Days))

	start := time.Now()
	status, _, err := s.call(ctx, http.MethodGet, dayQuery(day), nil)
	s.metrics.ListByDay.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func dayQuery(day time.Time) string {
	q := url.Values{}
	q.Set("filter", "day")
	q.Set("value", day.Format(schedule.DateLayout))
	return "/api/appointment?" + q.Encode()
}

// Audit reads back every simulated day and counts pairs of appointments that
// share a doctor or a room over overlapping times.
func (s *Simulator) Audit(ctx context.Context) int {
	violations := 0
	for i := 0; i < s.config.Days; i++ {
		day := s.config.StartDate.AddDate(0, 0, i)
		status, resp, err := s.call(ctx, http.MethodGet, dayQuery(day), nil)
		if err != nil || status != http.StatusOK {
			s.log.Error().Err(err).Int("status", status).Str("day", day.Format(schedule.DateLayout)).Msg("audit read failed")
			violations++
			continue
		}

		var list []appointment.AppointmentDetail
		if err := json.Unmarshal(resp.Data, &list); err != nil {
			s.log.Error().Err(err).Msg("audit decode failed")
			violations++
			continue
		}

		for a := 0; a < len(list); a++ {
			for b := a + 1; b < len(list); b++ {
				if list[a].Slot().Overlaps(list[b].Slot()) {
					violations++
					s.log.Error().
						Str("first", list[a].ID.String()).
						Str("second", list[b].ID.String()).
						Msg("overlapping appointments")
				}
			}
		}
		s.log.Info().Str("day", day.Format(schedule.DateLayout)).Int("appointments", len(list)).Msg("day audited")
	}
	return violations
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Update", &s.metrics.Update)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by day", &s.metrics.ListByDay)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	rejected := atomic.LoadInt64(&om.Rejected)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if rejected > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", rejected, float64(rejected)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
	fmt.Println()
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
