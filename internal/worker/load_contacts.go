package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/texter-jobs/internal/worker/domain"
)

// ContactStore is what a load_contacts job writes to
type ContactStore interface {
	GetCampaign(ctx context.Context, campaignID string) (*domain.Campaign, error)
	InsertContacts(ctx context.Context, contacts []domain.CampaignContact) (int, error)
}

// ContactLoader executes load_contacts jobs. Each distinct zip in the upload
// is resolved once and stored on the contact so texting hours can be
// enforced at assignment time.
type ContactLoader struct {
	store    ContactStore
	resolver zoneResolver
	logger   *slog.Logger
}

// NewContactLoader creates a ContactLoader
func NewContactLoader(store ContactStore, resolver zoneResolver, logger *slog.Logger) *ContactLoader {
	return &ContactLoader{
		store:    store,
		resolver: resolver,
		logger:   logger,
	}
}

// Execute implements Executor
func (l *ContactLoader) Execute(ctx context.Context, job *domain.Job) (map[string]interface{}, error) {
	var payload domain.LoadContactsPayload
	if err := domain.DecodePayload(job.Payload, &payload); err != nil {
		return nil, err
	}

	if job.CampaignID == "" {
		return nil, fmt.Errorf("%w: load_contacts requires a campaign_id", domain.ErrInvalidPayload)
	}

	campaign, err := l.store.GetCampaign(ctx, job.CampaignID)
	if err != nil {
		return nil, err
	}

	zones := make(map[string]string)
	contacts := make([]domain.CampaignContact, 0, len(payload.Contacts))

	for _, in := range payload.Contacts {
		cell := strings.TrimSpace(in.Cell)
		if cell == "" {
			return nil, fmt.Errorf("%w: contact with blank cell", domain.ErrInvalidPayload)
		}

		zip := strings.TrimSpace(in.Zip)
		zone, resolved := zones[zip]
		if !resolved && zip != "" {
			zone, err = l.resolver.Resolve(ctx, zip)
			if err != nil {
				return nil, err
			}
			zones[zip] = zone
		}

		contacts = append(contacts, domain.CampaignContact{
			CampaignID:     campaign.ID,
			Cell:           cell,
			Zip:            zip,
			TimezoneOffset: zone,
			FirstName:      in.FirstName,
			LastName:       in.LastName,
			ExternalID:     in.ExternalID,
		})
	}

	loaded, err := l.store.InsertContacts(ctx, contacts)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Contacts loaded",
		slog.String("campaign_id", campaign.ID),
		slog.Int("loaded", loaded),
		slog.Int("distinct_zips", len(zones)),
	)

	return map[string]interface{}{
		"campaign_id": campaign.ID,
		"loaded":      loaded,
	}, nil
}
