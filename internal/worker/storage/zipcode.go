package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cuongbtq/texter-jobs/internal/timezone"
)

// GetZipCode loads a zip code record; a missing row is timezone.ErrZipCodeNotFound
func (s *Storage) GetZipCode(ctx context.Context, zip string) (*timezone.ZipCode, error) {
	query := `
		SELECT zip, city, state, timezone_offset, has_dst, latitude, longitude
		FROM zip_code
		WHERE zip = $1
	`

	var record timezone.ZipCode
	if err := s.db.GetContext(ctx, &record, query, zip); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, timezone.ErrZipCodeNotFound
		}
		return nil, fmt.Errorf("failed to get zip code: %w", err)
	}

	return &record, nil
}
