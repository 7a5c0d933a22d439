package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/texter-jobs/internal/worker/domain"
	"github.com/cuongbtq/texter-jobs/shared/postgresql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// GetCampaign loads a campaign by ID
func (s *Storage) GetCampaign(ctx context.Context, campaignID string) (*domain.Campaign, error) {
	query := `
		SELECT id, organization_id, use_dynamic_assignment
		FROM campaign
		WHERE id = $1
	`

	var campaign domain.Campaign
	if err := s.db.GetContext(ctx, &campaign, query, campaignID); err != nil {
		return nil, campaignError(campaignID, err)
	}

	return &campaign, nil
}

// GetOrganization loads an organization by ID
func (s *Storage) GetOrganization(ctx context.Context, organizationID string) (*domain.Organization, error) {
	query := `
		SELECT id, texting_hours_enforced, texting_hours_start, texting_hours_end
		FROM organization
		WHERE id = $1
	`

	var org domain.Organization
	if err := s.db.GetContext(ctx, &org, query, organizationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrOrganizationNotFound, organizationID)
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return &org, nil
}

// ListUnresolvedZips returns distinct zips of unassigned contacts that have no timezone yet
func (s *Storage) ListUnresolvedZips(ctx context.Context, campaignID string) ([]string, error) {
	query := `
		SELECT DISTINCT zip
		FROM campaign_contact
		WHERE campaign_id = $1
		  AND texter_id IS NULL
		  AND timezone_offset = ''
		  AND zip <> ''
	`

	var zips []string
	if err := s.db.SelectContext(ctx, &zips, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to list unresolved zips: %w", err)
	}

	return zips, nil
}

// SetContactTimezone stores zone on every contact of the campaign with the given zip and no zone
func (s *Storage) SetContactTimezone(ctx context.Context, campaignID, zip, zone string) error {
	query := `
		UPDATE campaign_contact
		SET timezone_offset = $1,
		    updated_at = NOW()
		WHERE campaign_id = $2 AND zip = $3 AND timezone_offset = ''
	`

	if _, err := s.db.ExecContext(ctx, query, zone, campaignID, zip); err != nil {
		return fmt.Errorf("failed to set contact timezone: %w", err)
	}

	return nil
}

// ListContactTimezones returns the distinct known zones among unassigned contacts
func (s *Storage) ListContactTimezones(ctx context.Context, campaignID string) ([]string, error) {
	query := `
		SELECT DISTINCT timezone_offset
		FROM campaign_contact
		WHERE campaign_id = $1
		  AND texter_id IS NULL
		  AND timezone_offset <> ''
	`

	var zones []string
	if err := s.db.SelectContext(ctx, &zones, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to list contact timezones: %w", err)
	}

	return zones, nil
}

// ClaimContacts assigns unassigned contacts to req.TexterID until it holds
// req.Target. The count and the claim run in one transaction holding the
// campaign's advisory lock, so concurrent jobs see each other's claims and a
// texter never passes its cap. The texter_id IS NULL guard keeps any contact
// from being assigned twice.
func (s *Storage) ClaimContacts(ctx context.Context, req domain.ClaimRequest) (int, error) {
	countQuery := `
		SELECT COUNT(*)
		FROM campaign_contact
		WHERE campaign_id = $1 AND texter_id = $2
	`

	claimQuery := `
		UPDATE campaign_contact
		SET texter_id = $1,
		    updated_at = NOW()
		WHERE id IN (
			SELECT id
			FROM campaign_contact
			WHERE campaign_id = $2
			  AND texter_id IS NULL
			  AND (NOT $4 OR timezone_offset = '' OR timezone_offset = ANY($5))
			ORDER BY id
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		AND texter_id IS NULL
	`

	timezones := req.Timezones
	if timezones == nil {
		timezones = []string{}
	}

	var current, limit int
	var claimed int64
	err := postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, campaignLockKey(req.CampaignID)); err != nil {
			return fmt.Errorf("failed to lock campaign: %w", err)
		}

		if err := tx.GetContext(ctx, &current, countQuery, req.CampaignID, req.TexterID); err != nil {
			return fmt.Errorf("failed to count texter contacts: %w", err)
		}

		limit = req.Remaining(current)
		if limit == 0 {
			return nil
		}

		result, err := tx.ExecContext(ctx, claimQuery,
			req.TexterID,
			req.CampaignID,
			limit,
			req.RestrictTimezones,
			pq.Array(timezones),
		)
		if err != nil {
			return fmt.Errorf("failed to claim contacts: %w", err)
		}

		claimed, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, claimError(req, err)
	}

	s.logger.Debug("Contacts claimed",
		slog.String("campaign_id", req.CampaignID),
		slog.String("texter_id", req.TexterID),
		slog.Int("current", current),
		slog.Int("limit", limit),
		slog.Int64("claimed", claimed),
	)

	return int(claimed), nil
}

func campaignLockKey(campaignID string) string {
	return "campaign_contact:" + campaignID
}

// campaignError classifies a campaign lookup failure. An id Postgres cannot
// parse names no campaign, so it is as permanent as a missing row.
func campaignError(campaignID string, err error) error {
	if errors.Is(err, sql.ErrNoRows) || postgresql.IsInvalidTextRepresentation(err) {
		return fmt.Errorf("%w: %s", domain.ErrCampaignNotFound, campaignID)
	}
	return fmt.Errorf("failed to get campaign: %w", err)
}

// claimError classifies a claim failure. A texter id that is not a number or
// not a known user cannot succeed on retry.
func claimError(req domain.ClaimRequest, err error) error {
	if postgresql.IsInvalidTextRepresentation(err) || postgresql.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: unknown texter %q", domain.ErrInvalidPayload, req.TexterID)
	}
	return err
}

// insertError classifies a contact insert failure. The campaign_id foreign
// key fails when the campaign was deleted after it was looked up.
func insertError(campaignID string, err error) error {
	if postgresql.IsForeignKeyViolation(err) || postgresql.IsInvalidTextRepresentation(err) {
		return fmt.Errorf("%w: %s", domain.ErrCampaignNotFound, campaignID)
	}
	return err
}

// InsertContacts inserts contacts in one transaction and returns how many were written
func (s *Storage) InsertContacts(ctx context.Context, contacts []domain.CampaignContact) (int, error) {
	if len(contacts) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO campaign_contact (
			campaign_id, cell, zip, timezone_offset, first_name, last_name, external_id
		) VALUES (
			:campaign_id, :cell, :zip, :timezone_offset, :first_name, :last_name, :external_id
		)
	`

	const batchSize = 500
	err := postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for start := 0; start < len(contacts); start += batchSize {
			end := min(start+batchSize, len(contacts))
			if _, err := tx.NamedExecContext(ctx, query, contacts[start:end]); err != nil {
				return fmt.Errorf("failed to insert contacts: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, insertError(contacts[0].CampaignID, err)
	}

	return len(contacts), nil
}
