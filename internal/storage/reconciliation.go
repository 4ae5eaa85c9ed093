package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/civitas-coop/microfund/internal/common"
	"github.com/civitas-coop/microfund/internal/model"

	"github.com/mattn/go-sqlite3"
)

// SaveReconciliationRun records the outcome of one bank-statement processing
// run for the operator's audit trail.
func (s *SQLiteStorage) SaveReconciliationRun(ctx context.Context, run *model.ReconciliationRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}
	if err := validateString(run.ID, "run.ID"); err != nil {
		return err
	}
	if err := validateID(run.CampaignID, "run.CampaignID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconciliation_runs (id, campaign_id, started_at, movements, sure, doubtful, unmatched)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CampaignID,
		run.StartedAt,
		run.Movements,
		run.Sure,
		run.Doubtful,
		run.Unmatched,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("reconciliation run %s: %w", run.ID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert reconciliation run: %w", err)
	}
	return nil
}

// GetReconciliationRuns lists a campaign's processing runs, newest first.
// Runs sharing a start time order by insertion, newest insert first.
func (s *SQLiteStorage) GetReconciliationRuns(ctx context.Context, campaignID int64) ([]model.ReconciliationRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(campaignID, "campaignID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, campaign_id, started_at, movements, sure, doubtful, unmatched
		FROM reconciliation_runs WHERE campaign_id = ? ORDER BY started_at DESC, rowid DESC`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciliation runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.ReconciliationRun
	for rows.Next() {
		var run model.ReconciliationRun
		if err := rows.Scan(
			&run.ID,
			&run.CampaignID,
			&run.StartedAt,
			&run.Movements,
			&run.Sure,
			&run.Doubtful,
			&run.Unmatched,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reconciliation runs: %w", err)
	}
	return runs, nil
}
