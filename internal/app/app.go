package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/bmeurant/bookorder/internal/health"
	"github.com/bmeurant/bookorder/internal/service/inventory"
	"github.com/bmeurant/bookorder/internal/version"
)

const (
	defaultCheckTimeout    = 2 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Run собирает и запускает сервис заказов: хранилище, диспетчер событий,
// оркестратор, воркер outbox-публикации, фоновый отчёт по остаткам и
// HTTP-сервер метрик и health-проверок. Блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if deps.closeFn != nil {
		defer func() {
			if closeErr := deps.closeFn(); closeErr != nil {
				logger.WithError(closeErr).Warn("failed to close storage")
			}
		}()
	}

	pipeline := createOrderPipeline(cfg, deps.store, logger)
	defer pipeline.dispatcher.Close()

	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	relay := createOutboxRelay(cfg, deps.store, kafkaProducer, logger)
	reporter := inventory.NewReporter(deps.store, cfg.LowStockThreshold, cfg.ReportInterval, logger.WithField("component", "inventory"))

	if cfg.SeedDemoData {
		if err := seedDemoData(ctx, deps.store, pipeline.catalog, pipeline.orchestrator, logger); err != nil {
			logger.WithError(err).Warn("demo seed failed")
		}
	}

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	workersCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relay.Run(workersCtx)
	}()
	reporterDone := make(chan struct{})
	go func() {
		defer close(reporterDone)
		reporter.Run(workersCtx)
	}()

	logger.WithFields(log.Fields{
		"storage": cfg.StorageDriver,
		"metrics": cfg.MetricsAddr,
		"kafka":   kafkaProducer != nil,
	}).Info("order service started")

	<-ctx.Done()
	logger.Info("получен сигнал остановки, останавливаем сервис")

	cancelWorkers()
	waitWithTimeout(relayDone, defaultShutdownTimeout, "outbox relay", logger)
	waitWithTimeout(reporterDone, defaultShutdownTimeout, "inventory reporter", logger)

	shutdownHTTP(metricsSrv, logger)

	return ctx.Err()
}

// waitWithTimeout ждёт завершения фоновой горутины не дольше timeout.
func waitWithTimeout(done <-chan struct{}, timeout time.Duration, name string, logger *log.Entry) {
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warnf("%s не остановился за %s", name, timeout)
	}
}

// startMetricsServer запускает HTTP-обработчики /metrics и health-проверок.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
