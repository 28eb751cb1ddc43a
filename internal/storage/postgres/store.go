package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/bmeurant/bookorder/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	opTimeout = 5 * time.Second
)

// querier покрывает общие методы *sql.DB и *sql.Tx, чтобы репозитории
// работали и вне транзакции, и внутри неё.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store — PostgreSQL-реализация domain.Store поверх database/sql с pgx
// драйвером. Репозитории верхнего уровня выполняют одиночные атомарные
// операции; WithinTx даёт те же репозитории, связанные одной транзакцией
// с блокировкой складских строк на изменение.
type Store struct {
	db *sql.DB
}

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db}, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not connected")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Books возвращает репозиторий каталога вне транзакции.
func (s *Store) Books() domain.BookRepository {
	return &bookRepository{q: s.db}
}

// Inventory возвращает складской репозиторий вне транзакции.
func (s *Store) Inventory() domain.InventoryRepository {
	return &inventoryRepository{q: s.db}
}

// Orders возвращает репозиторий заказов вне транзакции.
func (s *Store) Orders() domain.OrderRepository {
	return &orderRepository{q: s.db, db: s.db}
}

// Outbox возвращает outbox-репозиторий вне транзакции.
func (s *Store) Outbox() domain.OutboxRepository {
	return &outboxRepository{q: s.db}
}

// WithinTx выполняет fn в одной SQL-транзакции. Складской репозиторий
// внутри транзакции читает записи с SELECT ... FOR UPDATE, поэтому
// конкурентные списания по одному ISBN сериализуются на уровне строк.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not connected")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// pgTx — репозитории, связанные одной SQL-транзакцией.
type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) Books() domain.BookRepository {
	return &bookRepository{q: t.tx}
}

func (t *pgTx) Inventory() domain.InventoryRepository {
	return &inventoryRepository{q: t.tx, forUpdate: true}
}

func (t *pgTx) Orders() domain.OrderRepository {
	return &orderRepository{q: t.tx}
}

func (t *pgTx) Outbox() domain.OutboxRepository {
	return &outboxRepository{q: t.tx}
}

var _ domain.Store = (*Store)(nil)
