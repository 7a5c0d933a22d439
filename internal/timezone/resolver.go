package timezone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrZipCodeNotFound is returned by a ZipCodeStore when no record exists
var ErrZipCodeNotFound = errors.New("zip code not found")

// ZipCode is a persisted zip code record
type ZipCode struct {
	Zip            string  `db:"zip" json:"zip"`
	City           string  `db:"city" json:"city"`
	State          string  `db:"state" json:"state"`
	TimezoneOffset int     `db:"timezone_offset" json:"timezone_offset"`
	HasDST         bool    `db:"has_dst" json:"has_dst"`
	Latitude       float64 `db:"latitude" json:"latitude"`
	Longitude      float64 `db:"longitude" json:"longitude"`
}

// Zone formats the record as "<offset>_<dst>"
func (z *ZipCode) Zone() string {
	dst := 0
	if z.HasDST {
		dst = 1
	}
	return FormatZone(z.TimezoneOffset, dst)
}

// ZipCodeStore reads persisted zip code records
type ZipCodeStore interface {
	GetZipCode(ctx context.Context, zip string) (*ZipCode, error)
}

// Resolver turns zip codes into "<offset>_<dst>" timezone strings.
//
// The static table is consulted on every call and its answers are never
// cached. Answers that come from the zip code store are memoized for the
// lifetime of the Resolver, even if the record is deleted afterwards. Misses
// are not cached so a record written later is picked up.
type Resolver struct {
	lookup ZoneLookup
	store  ZipCodeStore
	logger *slog.Logger
	cache  sync.Map // zip -> string
}

// NewResolver creates a Resolver. A nil lookup uses LookupZip.
func NewResolver(lookup ZoneLookup, store ZipCodeStore, logger *slog.Logger) *Resolver {
	if lookup == nil {
		lookup = LookupZip
	}
	return &Resolver{
		lookup: lookup,
		store:  store,
		logger: logger,
	}
}

// Resolve returns the timezone string for zip, or "" when it is unknown
func (r *Resolver) Resolve(ctx context.Context, zip string) (string, error) {
	if entry, ok := r.lookup(zip); ok {
		return FormatZone(entry.Offset, entry.DST), nil
	}

	if cached, ok := r.cache.Load(zip); ok {
		return cached.(string), nil
	}

	record, err := r.store.GetZipCode(ctx, zip)
	if err != nil {
		if errors.Is(err, ErrZipCodeNotFound) {
			r.logger.Debug("Zip code has no known timezone",
				slog.String("zip", zip),
			)
			return "", nil
		}
		return "", fmt.Errorf("failed to look up zip code %s: %w", zip, err)
	}

	zone, _ := r.cache.LoadOrStore(zip, record.Zone())

	r.logger.Debug("Zip code timezone resolved from database",
		slog.String("zip", zip),
		slog.String("timezone", zone.(string)),
	)

	return zone.(string), nil
}
