package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS campaigns (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					title TEXT NOT NULL,
					starts_at DATETIME NOT NULL,
					ends_at DATETIME NOT NULL,
					limits TEXT NOT NULL,
					subgoals TEXT,
					total_goal INTEGER NOT NULL DEFAULT 0,
					bank_counted_amount INTEGER NOT NULL DEFAULT 0,
					last_phase_change_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS pledges (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					campaign_id INTEGER NOT NULL,
					amount INTEGER NOT NULL,
					user_id INTEGER,
					first_name TEXT,
					last_name TEXT,
					payer_data TEXT,
					document_id TEXT,
					iban_account TEXT,
					iban_bic TEXT,
					option_code TEXT,
					state TEXT NOT NULL DEFAULT 'PENDING',
					confirmed_at DATETIME,
					counted_at DATETIME,
					discarded_at DATETIME,
					returned_at DATETIME,
					transferred_to_id INTEGER,
					renewal_secret TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (campaign_id) REFERENCES campaigns(id),
					FOREIGN KEY (transferred_to_id) REFERENCES pledges(id)
				)`,
				`CREATE INDEX idx_pledges_campaign ON pledges(campaign_id)`,
				`CREATE INDEX idx_pledges_document ON pledges(document_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add reconciliation run audit trail",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS reconciliation_runs (
					id TEXT PRIMARY KEY,
					campaign_id INTEGER NOT NULL,
					started_at DATETIME NOT NULL,
					movements INTEGER NOT NULL DEFAULT 0,
					sure INTEGER NOT NULL DEFAULT 0,
					doubtful INTEGER NOT NULL DEFAULT 0,
					unmatched INTEGER NOT NULL DEFAULT 0,
					FOREIGN KEY (campaign_id) REFERENCES campaigns(id)
				)`,
				`CREATE INDEX idx_reconciliation_runs_campaign ON reconciliation_runs(campaign_id)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Index pledges for matcher candidate lookups",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX idx_pledges_state_amount ON pledges(campaign_id, state, amount)`)
			if err != nil {
				return fmt.Errorf("failed to create index: %w", err)
			}
			return nil
		},
	},
}

// Migrate applies all pending migrations to the database.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	current, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= current {
			continue
		}

		slog.Info("Applying migration",
			"version", migration.Version,
			"description", migration.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	final, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if final != ExpectedSchemaVersion {
		return fmt.Errorf("schema version %d after migration, expected %d", final, ExpectedSchemaVersion)
	}

	return nil
}

// SchemaVersion returns the current schema version of the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return s.schemaVersion(ctx)
}

func (s *SQLiteStorage) schemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
