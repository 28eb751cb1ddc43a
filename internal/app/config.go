package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bmeurant/bookorder/internal/service/inventory"
)

// StorageDriver выбирает реализацию хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	// MetricsAddr — адрес HTTP-сервера метрик и health-проверок.
	MetricsAddr string

	// StorageDriver — memory или postgres.
	StorageDriver string
	// PostgresDSN обязателен при StorageDriver=postgres.
	PostgresDSN string
	// PostgresAutoMigrate применяет миграции при старте.
	PostgresAutoMigrate bool

	// KafkaBrokers — список брокеров через запятую; пустая строка отключает Kafka.
	KafkaBrokers string

	// Настройки публикации из transactional outbox.
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	// LowStockThreshold — порог события ProductStockLow.
	LowStockThreshold int32
	// ReportInterval — период фонового отчёта по низким остаткам.
	ReportInterval time.Duration

	// RestockOnCancel включает возврат стока при отмене заказа.
	RestockOnCancel bool

	// DispatchBufferSize — размер буфера очереди каждого подписчика.
	DispatchBufferSize int

	// SeedDemoData наполняет пустой каталог демонстрационными данными.
	SeedDemoData bool
}

// DefaultConfig возвращает конфигурацию для локального запуска в памяти.
func DefaultConfig() Config {
	return Config{
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    50 * time.Millisecond,
		LowStockThreshold:   inventory.DefaultLowStockThreshold,
		ReportInterval:      30 * time.Second,
		RestockOnCancel:     false,
		DispatchBufferSize:  256,
		SeedDemoData:        true,
	}
}

// LoadConfigFromEnv строит конфигурацию из окружения поверх значений по умолчанию.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.MetricsAddr = envString("BOOKORDER_METRICS_ADDR", cfg.MetricsAddr)
	cfg.StorageDriver = envString("BOOKORDER_STORAGE_DRIVER", cfg.StorageDriver)
	cfg.PostgresDSN = envString("BOOKORDER_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.PostgresAutoMigrate = envBool("BOOKORDER_POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)
	cfg.KafkaBrokers = envString("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.OutboxPollInterval = envDuration("BOOKORDER_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("BOOKORDER_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = envInt("BOOKORDER_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = envDuration("BOOKORDER_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)
	cfg.LowStockThreshold = envInt32("BOOKORDER_LOW_STOCK_THRESHOLD", cfg.LowStockThreshold)
	cfg.ReportInterval = envDuration("BOOKORDER_REPORT_INTERVAL", cfg.ReportInterval)
	cfg.RestockOnCancel = envBool("BOOKORDER_RESTOCK_ON_CANCEL", cfg.RestockOnCancel)
	cfg.DispatchBufferSize = envInt("BOOKORDER_DISPATCH_BUFFER_SIZE", cfg.DispatchBufferSize)
	cfg.SeedDemoData = envBool("BOOKORDER_SEED_DEMO_DATA", cfg.SeedDemoData)

	return cfg
}

func envString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// envInt32 разбирает значение в границах int32; выход за диапазон или
// нечисловое значение возвращают fallback.
func envInt32(key string, fallback int32) int32 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return fallback
	}
	return int32(parsed)
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
