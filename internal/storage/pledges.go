package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/civitas-coop/microfund/internal/common"
	"github.com/civitas-coop/microfund/internal/model"
	"github.com/civitas-coop/microfund/internal/service"

	"gopkg.in/yaml.v3"
)

const pledgeColumns = `id, campaign_id, amount, user_id, first_name, last_name,
	payer_data, document_id, iban_account, iban_bic, option_code, state,
	confirmed_at, counted_at, discarded_at, returned_at, transferred_to_id,
	renewal_secret, created_at`

// CreatePledge inserts a new pledge and sets its generated id. Anonymous
// payers get their full snapshot serialized to YAML in payer_data; registered
// users only keep the name columns used by bank matching.
func (s *SQLiteStorage) CreatePledge(ctx context.Context, pledge *model.Pledge) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.createPledgeTx(ctx, s.db, pledge)
}

func (s *SQLiteStorage) createPledgeTx(ctx context.Context, e execer, pledge *model.Pledge) error {
	if err := validatePledge(pledge); err != nil {
		return err
	}

	var payerData sql.NullString
	if !pledge.HasUser() {
		data, err := yaml.Marshal(pledge.Payer)
		if err != nil {
			return fmt.Errorf("failed to serialize payer data: %w", err)
		}
		payerData = sql.NullString{String: string(data), Valid: true}
	}

	result, err := e.ExecContext(ctx, `
		INSERT INTO pledges (
			campaign_id, amount, user_id, first_name, last_name, payer_data,
			document_id, iban_account, iban_bic, option_code, state,
			confirmed_at, counted_at, discarded_at, returned_at,
			transferred_to_id, renewal_secret, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pledge.CampaignID,
		pledge.Amount,
		pledge.UserID,
		nullString(pledge.Payer.FirstName),
		nullString(pledge.Payer.LastName),
		payerData,
		nullString(strings.ToUpper(strings.TrimSpace(pledge.DocumentID))),
		nullString(strings.ToUpper(pledge.IBANAccount)),
		nullString(pledge.IBANBIC),
		nullString(pledge.OptionCode),
		string(pledge.State),
		pledge.ConfirmedAt,
		pledge.CountedAt,
		pledge.DiscardedAt,
		pledge.ReturnedAt,
		pledge.TransferredTo,
		pledge.RenewalSecret,
		pledge.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pledge: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get pledge id: %w", err)
	}
	pledge.ID = id
	return nil
}

// GetPledge retrieves a pledge by id.
func (s *SQLiteStorage) GetPledge(ctx context.Context, id int64) (*model.Pledge, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+pledgeColumns+` FROM pledges WHERE id = ?`, id)

	pledge, err := scanPledge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pledge %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pledge: %w", err)
	}
	return pledge, nil
}

// GetPledges retrieves pledges matching the filter.
func (s *SQLiteStorage) GetPledges(ctx context.Context, filter service.PledgeFilter) ([]model.Pledge, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + pledgeColumns + ` FROM pledges WHERE 1=1`
	var args []any

	if filter.CampaignID != nil {
		query += ` AND campaign_id = ?`
		args = append(args, *filter.CampaignID)
	}
	if filter.State != nil {
		query += ` AND state = ?`
		args = append(args, string(*filter.State))
	}
	if filter.DocumentID != "" {
		query += ` AND document_id = ?`
		args = append(args, strings.ToUpper(strings.TrimSpace(filter.DocumentID)))
	}
	if filter.Amount != nil {
		query += ` AND amount = ?`
		args = append(args, *filter.Amount)
	}
	if filter.Transferred != nil {
		if *filter.Transferred {
			query += ` AND transferred_to_id IS NOT NULL`
		} else {
			query += ` AND transferred_to_id IS NULL`
		}
	}

	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pledges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectPledges(rows)
}

// GetCampaignPledges retrieves every pledge in a campaign.
func (s *SQLiteStorage) GetCampaignPledges(ctx context.Context, campaignID int64) ([]model.Pledge, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCampaignPledgesTx(ctx, s.db, campaignID)
}

func (s *SQLiteStorage) getCampaignPledgesTx(ctx context.Context, e execer, campaignID int64) ([]model.Pledge, error) {
	if err := validateID(campaignID, "campaignID"); err != nil {
		return nil, err
	}

	rows, err := e.QueryContext(ctx,
		`SELECT `+pledgeColumns+` FROM pledges WHERE campaign_id = ? ORDER BY id`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaign pledges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectPledges(rows)
}

// UpdatePledgeState persists a lifecycle transition with an optimistic guard
// on the previous state, so two concurrent batch runs cannot both apply the
// same transition. Returns common.ErrNotFound when the guard fails.
func (s *SQLiteStorage) UpdatePledgeState(ctx context.Context, pledge *model.Pledge, fromState model.PledgeState) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.updatePledgeStateTx(ctx, s.db, pledge, fromState)
}

func (s *SQLiteStorage) updatePledgeStateTx(ctx context.Context, e execer, pledge *model.Pledge, fromState model.PledgeState) error {
	if err := validatePledge(pledge); err != nil {
		return err
	}
	if err := validateID(pledge.ID, "pledge.ID"); err != nil {
		return err
	}
	if err := validateState(fromState); err != nil {
		return err
	}

	result, err := e.ExecContext(ctx, `
		UPDATE pledges SET
			state = ?,
			confirmed_at = ?,
			counted_at = ?,
			discarded_at = ?,
			returned_at = ?
		WHERE id = ? AND state = ?`,
		string(pledge.State),
		pledge.ConfirmedAt,
		pledge.CountedAt,
		pledge.DiscardedAt,
		pledge.ReturnedAt,
		pledge.ID,
		string(fromState),
	)
	if err != nil {
		return fmt.Errorf("failed to update pledge state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("pledge %d no longer in state %s: %w", pledge.ID, fromState, common.ErrNotFound)
	}
	return nil
}

// SetTransferredTo attaches a renewal link from one pledge to another.
// Acyclicity is validated by the engine before this write.
func (s *SQLiteStorage) SetTransferredTo(ctx context.Context, pledgeID, targetID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.setTransferredToTx(ctx, s.db, pledgeID, targetID)
}

func (s *SQLiteStorage) setTransferredToTx(ctx context.Context, e execer, pledgeID, targetID int64) error {
	if err := validateID(pledgeID, "pledgeID"); err != nil {
		return err
	}
	if err := validateID(targetID, "targetID"); err != nil {
		return err
	}

	result, err := e.ExecContext(ctx,
		`UPDATE pledges SET transferred_to_id = ? WHERE id = ?`, targetID, pledgeID)
	if err != nil {
		return fmt.Errorf("failed to set transfer link: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("pledge %d: %w", pledgeID, common.ErrNotFound)
	}
	return nil
}

func scanPledge(row rowScanner) (*model.Pledge, error) {
	var p model.Pledge
	var userID, transferredTo sql.NullInt64
	var firstName, lastName, payerData, documentID, ibanAccount, ibanBIC, optionCode sql.NullString
	var confirmedAt, countedAt, discardedAt, returnedAt sql.NullTime
	var state string

	err := row.Scan(
		&p.ID,
		&p.CampaignID,
		&p.Amount,
		&userID,
		&firstName,
		&lastName,
		&payerData,
		&documentID,
		&ibanAccount,
		&ibanBIC,
		&optionCode,
		&state,
		&confirmedAt,
		&countedAt,
		&discardedAt,
		&returnedAt,
		&transferredTo,
		&p.RenewalSecret,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.State = model.PledgeState(state)
	p.DocumentID = documentID.String
	p.IBANAccount = ibanAccount.String
	p.IBANBIC = ibanBIC.String
	p.OptionCode = optionCode.String

	if userID.Valid {
		id := userID.Int64
		p.UserID = &id
	}
	if transferredTo.Valid {
		id := transferredTo.Int64
		p.TransferredTo = &id
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		p.ConfirmedAt = &t
	}
	if countedAt.Valid {
		t := countedAt.Time
		p.CountedAt = &t
	}
	if discardedAt.Valid {
		t := discardedAt.Time
		p.DiscardedAt = &t
	}
	if returnedAt.Valid {
		t := returnedAt.Time
		p.ReturnedAt = &t
	}

	if payerData.Valid {
		if err := yaml.Unmarshal([]byte(payerData.String), &p.Payer); err != nil {
			return nil, fmt.Errorf("failed to decode payer data for pledge %d: %w", p.ID, err)
		}
	} else {
		p.Payer.FirstName = firstName.String
		p.Payer.LastName = lastName.String
	}

	return &p, nil
}

func collectPledges(rows *sql.Rows) ([]model.Pledge, error) {
	var pledges []model.Pledge
	for rows.Next() {
		pledge, err := scanPledge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pledge: %w", err)
		}
		pledges = append(pledges, *pledge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pledges: %w", err)
	}
	return pledges, nil
}
