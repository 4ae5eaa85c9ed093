package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/civitas-coop/microfund/internal/model"
	"github.com/civitas-coop/microfund/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Tx, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTx{
		tx:      tx,
		storage: s,
	}, nil
}

// sqliteTx wraps sql.Tx to implement service.Tx.
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) CreatePledge(ctx context.Context, pledge *model.Pledge) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.createPledgeTx(ctx, t.tx, pledge)
}

func (t *sqliteTx) SetTransferredTo(ctx context.Context, pledgeID, targetID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.setTransferredToTx(ctx, t.tx, pledgeID, targetID)
}

func (t *sqliteTx) GetCampaignPledges(ctx context.Context, campaignID int64) ([]model.Pledge, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getCampaignPledgesTx(ctx, t.tx, campaignID)
}

func (t *sqliteTx) UpdatePledgeState(ctx context.Context, pledge *model.Pledge, fromState model.PledgeState) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.updatePledgeStateTx(ctx, t.tx, pledge, fromState)
}

func (t *sqliteTx) SetLastPhaseChange(ctx context.Context, id int64, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.setLastPhaseChangeTx(ctx, t.tx, id, at)
}

// execer abstracts *sql.DB and *sql.Tx for query helpers shared between
// direct and transactional paths.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
