// Инструмент нагрузочного прогона конвейера заказов. Поднимает in-memory
// хранилище, каталог и оркестратор, после чего гоняет сценарии создания
// и отмены заказов заданным числом воркеров. Печатает сводный отчёт
// с перцентилями задержек и разбивкой исходов по операциям.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bmeurant/bookorder/internal/domain"
	"github.com/bmeurant/bookorder/internal/service/dispatch"
	"github.com/bmeurant/bookorder/internal/service/inventory"
	"github.com/bmeurant/bookorder/internal/service/order"
	"github.com/bmeurant/bookorder/internal/storage/memory"
)

const (
	outcomeOK = "ok"

	defaultPriceMinor = int64(2500)
	defaultQty        = int32(1)
)

type loadMode string

const (
	modeCreate       loadMode = "create"
	modeCreateCancel loadMode = "create-cancel"
)

type config struct {
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	mode        loadMode
	cancelRate  int
	books       int
	stock       int32
	quantity    int32
	priceMinor  int64
	customerTag string
	restock     bool
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type operationReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Outcomes  map[string]int64 `json:"outcomes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time                  `json:"started_at"`
	DurationSeconds   float64                    `json:"duration_seconds"`
	TotalScenarios    int64                      `json:"total_scenarios"`
	SuccessScenarios  int64                      `json:"success_scenarios"`
	FailedScenarios   int64                      `json:"failed_scenarios"`
	ErrorRate         float64                    `json:"error_rate"`
	RPS               float64                    `json:"rps"`
	ScenarioLatencyMs latencySummary             `json:"scenario_latency_ms"`
	Operations        map[string]operationReport `json:"operations"`
}

type operationStats struct {
	calls     int64
	success   int64
	failed    int64
	outcomes  map[string]int64
	latencies []float64
}

type collector struct {
	mu         sync.Mutex
	operations map[string]*operationStats
}

func newCollector() *collector {
	return &collector{
		operations: make(map[string]*operationStats),
	}
}

func (c *collector) record(operation string, latency time.Duration, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.operations[operation]
	if !ok {
		stats = &operationStats{
			outcomes: make(map[string]int64),
		}
		c.operations[operation] = stats
	}

	stats.calls++
	if outcome == outcomeOK {
		stats.success++
	} else {
		stats.failed++
	}
	stats.outcomes[outcome]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) snapshot(name string) (operationReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.operations[name]
	if !ok {
		return operationReport{}, false
	}

	outcomesCopy := make(map[string]int64, len(stats.outcomes))
	for outcome, count := range stats.outcomes {
		outcomesCopy[outcome] = count
	}

	return operationReport{
		Calls:     stats.calls,
		Success:   stats.success,
		Failed:    stats.failed,
		ErrorRate: ratio(stats.failed, stats.calls),
		Outcomes:  outcomesCopy,
		LatencyMs: buildLatencySummary(stats.latencies),
	}, true
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Operations:      make(map[string]operationReport, len(c.operations)),
	}

	scenarioStats := c.operations["scenario"]
	if scenarioStats != nil {
		result.TotalScenarios = scenarioStats.calls
		result.SuccessScenarios = scenarioStats.success
		result.FailedScenarios = scenarioStats.failed
		result.ErrorRate = ratio(scenarioStats.failed, scenarioStats.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenarioStats.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.operations {
		outcomesCopy := make(map[string]int64, len(stats.outcomes))
		for outcome, count := range stats.outcomes {
			outcomesCopy[outcome] = count
		}
		result.Operations[name] = operationReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Outcomes:  outcomesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	return result
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue string
	var durationValue string
	var booksValue int
	var stockValue int
	var quantityValue int

	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 30s, 5m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.StringVar(&modeValue, "mode", string(modeCreate), "load mode: create | create-cancel")
	flag.IntVar(&cfg.cancelRate, "cancel-rate", 0, "cancel probability in percent for create mode (0..100)")
	flag.IntVar(&booksValue, "books", 10, "number of catalog entries to seed")
	flag.IntVar(&stockValue, "stock", 1_000_000, "initial stock per catalog entry")
	flag.IntVar(&quantityValue, "quantity", int(defaultQty), "line quantity per order")
	flag.Int64Var(&cfg.priceMinor, "price-minor", defaultPriceMinor, "book price in minor units")
	flag.StringVar(&cfg.customerTag, "customer-tag", "load", "customer name prefix")
	flag.BoolVar(&cfg.restock, "restock-on-cancel", false, "return stock to inventory when a scenario cancels its order")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	cfg.books = booksValue
	cfg.stock = int32(stockValue)
	cfg.quantity = int32(quantityValue)

	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.duration > 0 && cfg.totalSet && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.books <= 0 {
		return cfg, errors.New("books must be > 0")
	}
	if stockValue <= 0 {
		return cfg, errors.New("stock must be > 0")
	}
	if quantityValue <= 0 {
		return cfg, errors.New("quantity must be > 0")
	}
	if cfg.priceMinor <= 0 {
		return cfg, errors.New("price-minor must be > 0")
	}
	if cfg.cancelRate < 0 || cfg.cancelRate > 100 {
		return cfg, errors.New("cancel-rate must be between 0 and 100")
	}
	if strings.TrimSpace(cfg.customerTag) == "" {
		return cfg, errors.New("customer-tag is required")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeCreate:
		return modeCreate, nil
	case modeCreateCancel:
		return modeCreateCancel, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

// pipeline — минимальный конвейер заказов поверх памяти, без Kafka и HTTP.
type pipeline struct {
	orchestrator *order.Orchestrator
	dispatcher   *dispatch.Dispatcher
	catalog      []string
}

func buildPipeline(cfg config) (*pipeline, error) {
	logger := log.WithField("component", "loadtest")
	logger.Logger.SetLevel(log.WarnLevel)

	store := memory.NewStore()
	dispatcher := dispatch.NewDispatcher(dispatch.WithLogger(logger))
	ledger := inventory.NewLedger(store, inventory.DefaultLowStockThreshold, logger)
	orchestrator := order.NewOrchestrator(store, ledger, dispatcher,
		order.WithRestockOnCancel(cfg.restock),
		order.WithLogger(logger),
	)

	catalog := make([]string, 0, cfg.books)
	err := store.WithinTx(context.Background(), func(tx domain.Tx) error {
		for i := 0; i < cfg.books; i++ {
			isbn := fmt.Sprintf("978-load-%04d", i)
			book, err := domain.NewBook(isbn, fmt.Sprintf("Load Book %d", i), "Load Author", cfg.priceMinor)
			if err != nil {
				return err
			}
			if err := tx.Books().Save(book); err != nil {
				return err
			}
			item, err := domain.NewInventoryItem(isbn, cfg.stock)
			if err != nil {
				return err
			}
			if err := tx.Inventory().Save(item); err != nil {
				return err
			}
			catalog = append(catalog, isbn)
		}
		return nil
	})
	if err != nil {
		dispatcher.Close()
		return nil, fmt.Errorf("seed load catalog: %w", err)
	}

	return &pipeline{
		orchestrator: orchestrator,
		dispatcher:   dispatcher,
		catalog:      catalog,
	}, nil
}

func (p *pipeline) close() {
	p.dispatcher.Close()
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	pipe, err := buildPipeline(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to build pipeline: %v\n", err)
		os.Exit(1)
	}
	defer pipe.close()

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if runErr := runScenario(pipe, cfg, id, runID, col); runErr != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	duration := time.Since(startedAt)
	result := col.buildReport(startedAt, duration)
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

func runScenario(pipe *pipeline, cfg config, index int, runID string, col *collector) error {
	scenarioStart := time.Now()
	scenarioOutcome := outcomeOK
	defer func() {
		col.record("scenario", time.Since(scenarioStart), scenarioOutcome)
	}()

	ctx := context.Background()
	customer := fmt.Sprintf("%s-%s-%d", cfg.customerTag, runID, index)
	isbn := pipe.catalog[index%len(pipe.catalog)]

	createStart := time.Now()
	created, err := pipe.orchestrator.CreateOrder(ctx, customer, []order.ItemRequest{
		{ISBN: isbn, Quantity: cfg.quantity},
	})
	col.record("CreateOrder", time.Since(createStart), classifyOutcome(err))
	if err != nil {
		scenarioOutcome = classifyOutcome(err)
		return err
	}
	if created.ID == "" {
		scenarioOutcome = "internal"
		return errors.New("create returned empty order id")
	}

	if cfg.mode == modeCreateCancel || (cfg.mode == modeCreate && shouldCancelScenario(index, cfg.cancelRate)) {
		cancelStart := time.Now()
		_, err := pipe.orchestrator.CancelOrder(ctx, created.ID)
		col.record("CancelOrder", time.Since(cancelStart), classifyOutcome(err))
		if err != nil {
			scenarioOutcome = classifyOutcome(err)
			return err
		}
	}

	return nil
}

// classifyOutcome сводит доменные ошибки к коротким меткам отчёта.
func classifyOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case domain.IsVersionConflict(err):
		return "version_conflict"
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return "invalid_transition"
	case domain.IsNotFound(err):
		return "not_found"
	case domain.IsValidation(err):
		return "validation"
	default:
		return "internal"
	}
}

func shouldCancelScenario(index, cancelRate int) bool {
	if cancelRate <= 0 {
		return false
	}
	if cancelRate >= 100 {
		return true
	}
	return index%100 < cancelRate
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(w io.Writer, result report, cfg config) {
	fmt.Fprintln(w, "Load test summary")
	fmt.Fprintf(w, "mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Fprintf(w, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	operationNames := make([]string, 0, len(result.Operations))
	for name := range result.Operations {
		if name == "scenario" {
			continue
		}
		operationNames = append(operationNames, name)
	}
	sort.Strings(operationNames)
	for _, name := range operationNames {
		stats := result.Operations[name]
		fmt.Fprintf(w,
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
