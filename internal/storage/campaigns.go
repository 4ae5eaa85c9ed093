package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/civitas-coop/microfund/internal/common"
	"github.com/civitas-coop/microfund/internal/model"
)

const campaignColumns = `id, title, starts_at, ends_at, limits, subgoals,
	total_goal, bank_counted_amount, last_phase_change_at, created_at`

// CreateCampaign inserts a new campaign and sets its generated id.
func (s *SQLiteStorage) CreateCampaign(ctx context.Context, campaign *model.Campaign) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCampaign(campaign); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO campaigns (title, starts_at, ends_at, limits, subgoals, total_goal, bank_counted_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		campaign.Title,
		campaign.StartsAt,
		campaign.EndsAt,
		campaign.Limits,
		nullString(campaign.Subgoals),
		campaign.TotalGoal,
		campaign.BankCountedAmount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert campaign: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get campaign id: %w", err)
	}
	campaign.ID = id
	return nil
}

// GetCampaign retrieves a campaign by id.
func (s *SQLiteStorage) GetCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id)

	campaign, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("campaign %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return campaign, nil
}

// GetCampaigns retrieves all campaigns ordered by start date.
func (s *SQLiteStorage) GetCampaigns(ctx context.Context) ([]model.Campaign, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns ORDER BY starts_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectCampaigns(rows)
}

// GetActiveCampaigns retrieves campaigns currently inside their date window.
func (s *SQLiteStorage) GetActiveCampaigns(ctx context.Context, now time.Time) ([]model.Campaign, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns
		 WHERE starts_at <= ? AND ends_at > ? ORDER BY starts_at`, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query active campaigns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectCampaigns(rows)
}

// UpdateCampaignLimits replaces a campaign's tier configuration string.
// Privilege checks happen in the engine before this is called.
func (s *SQLiteStorage) UpdateCampaignLimits(ctx context.Context, id int64, limits string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(id, "id"); err != nil {
		return err
	}
	if err := validateString(limits, "limits"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET limits = ? WHERE id = ?`, limits, id)
	if err != nil {
		return fmt.Errorf("failed to update limits: %w", err)
	}
	return requireRowAffected(result, id)
}

// SetBankCountedAmount records the externally reconciled bank balance. It is
// display-only and never feeds pledge accounting.
func (s *SQLiteStorage) SetBankCountedAmount(ctx context.Context, id, amount int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET bank_counted_amount = ? WHERE id = ?`, amount, id)
	if err != nil {
		return fmt.Errorf("failed to set bank counted amount: %w", err)
	}
	return requireRowAffected(result, id)
}

// SetLastPhaseChange stamps the campaign's last phase advancement time.
func (s *SQLiteStorage) SetLastPhaseChange(ctx context.Context, id int64, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.setLastPhaseChangeTx(ctx, s.db, id, at)
}

func (s *SQLiteStorage) setLastPhaseChangeTx(ctx context.Context, e execer, id int64, at time.Time) error {
	if err := validateID(id, "id"); err != nil {
		return err
	}
	result, err := e.ExecContext(ctx,
		`UPDATE campaigns SET last_phase_change_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("failed to set last phase change: %w", err)
	}
	return requireRowAffected(result, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	var subgoals sql.NullString
	var lastPhaseChange sql.NullTime

	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.StartsAt,
		&c.EndsAt,
		&c.Limits,
		&subgoals,
		&c.TotalGoal,
		&c.BankCountedAmount,
		&lastPhaseChange,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Subgoals = subgoals.String
	if lastPhaseChange.Valid {
		t := lastPhaseChange.Time
		c.LastPhaseChangeAt = &t
	}
	return &c, nil
}

func collectCampaigns(rows *sql.Rows) ([]model.Campaign, error) {
	var campaigns []model.Campaign
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, *campaign)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate campaigns: %w", err)
	}
	return campaigns, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRowAffected(result sql.Result, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("campaign %d: %w", id, common.ErrNotFound)
	}
	return nil
}
