package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/texter-jobs/internal/timezone"
	"github.com/cuongbtq/texter-jobs/internal/worker/domain"
)

// AssignmentStore is the campaign data an assign_texters job reads and writes
type AssignmentStore interface {
	GetCampaign(ctx context.Context, campaignID string) (*domain.Campaign, error)
	GetOrganization(ctx context.Context, organizationID string) (*domain.Organization, error)
	ListUnresolvedZips(ctx context.Context, campaignID string) ([]string, error)
	SetContactTimezone(ctx context.Context, campaignID, zip, zone string) error
	ListContactTimezones(ctx context.Context, campaignID string) ([]string, error)
	// ClaimContacts reads the texter's stored load and claims up to
	// req.Remaining of it as one step, serialized per campaign
	ClaimContacts(ctx context.Context, req domain.ClaimRequest) (int, error)
}

// TexterAssigner executes assign_texters jobs.
//
// Texters are filled greedily in payload order. Each texter's remaining
// capacity is computed against the load already stored for it, so running
// the same job twice assigns nothing the second time.
type TexterAssigner struct {
	store    AssignmentStore
	resolver zoneResolver
	logger   *slog.Logger
	now      func() time.Time
}

// NewTexterAssigner creates a TexterAssigner
func NewTexterAssigner(store AssignmentStore, resolver zoneResolver, logger *slog.Logger) *TexterAssigner {
	return &TexterAssigner{
		store:    store,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
}

// Execute implements Executor
func (a *TexterAssigner) Execute(ctx context.Context, job *domain.Job) (map[string]interface{}, error) {
	var payload domain.AssignTextersPayload
	if err := domain.DecodePayload(job.Payload, &payload); err != nil {
		return nil, err
	}

	campaignID := job.CampaignID
	if campaignID == "" {
		campaignID = payload.ID
	}
	if campaignID == "" {
		return nil, fmt.Errorf("%w: no campaign id on job or payload", domain.ErrInvalidPayload)
	}

	campaign, err := a.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	claim, err := a.claimScope(ctx, campaign)
	if err != nil {
		return nil, err
	}

	assigned := make(map[string]int, len(payload.Texters))
	total := 0

	for _, texter := range payload.Texters {
		if _, seen := assigned[texter.ID]; !seen {
			assigned[texter.ID] = 0
		}

		req := texterClaim(claim, texter, campaign.UseDynamicAssignment)
		if req.Remaining(0) == 0 {
			continue
		}

		n, err := a.store.ClaimContacts(ctx, req)
		if err != nil {
			return nil, err
		}

		assigned[texter.ID] += n
		total += n

		a.logger.Info("Contacts assigned to texter",
			slog.String("campaign_id", campaign.ID),
			slog.String("texter_id", texter.ID),
			slog.Int("target", req.Target),
			slog.Int("assigned", n),
		)
	}

	a.logger.Info("Texter assignment finished",
		slog.String("campaign_id", campaign.ID),
		slog.Bool("dynamic", campaign.UseDynamicAssignment),
		slog.Int("texters", len(payload.Texters)),
		slog.Int("assigned", total),
	)

	return map[string]interface{}{
		"campaign_id": campaign.ID,
		"assigned":    total,
		"texters":     assigned,
	}, nil
}

// claimScope builds the campaign-wide part of every claim. When the
// organization enforces texting hours only contacts that may be texted now,
// or whose timezone is unknown, are eligible.
func (a *TexterAssigner) claimScope(ctx context.Context, campaign *domain.Campaign) (domain.ClaimRequest, error) {
	req := domain.ClaimRequest{CampaignID: campaign.ID}

	org, err := a.store.GetOrganization(ctx, campaign.OrganizationID)
	if err != nil {
		return req, err
	}
	if !org.TextingHoursEnforced {
		return req, nil
	}

	if err := a.backfillTimezones(ctx, campaign.ID); err != nil {
		return req, err
	}

	zones, err := a.store.ListContactTimezones(ctx, campaign.ID)
	if err != nil {
		return req, err
	}

	now := a.now()
	allowed := make([]string, 0, len(zones))
	for _, zone := range zones {
		if timezone.WithinTextingHours(zone, org.TextingHoursStart, org.TextingHoursEnd, now) {
			allowed = append(allowed, zone)
		}
	}

	a.logger.Debug("Texting hours enforced",
		slog.String("campaign_id", campaign.ID),
		slog.Int("start", org.TextingHoursStart),
		slog.Int("end", org.TextingHoursEnd),
		slog.Any("allowed_timezones", allowed),
	)

	req.RestrictTimezones = true
	req.Timezones = allowed
	return req, nil
}

// backfillTimezones resolves zones for contacts loaded without one
func (a *TexterAssigner) backfillTimezones(ctx context.Context, campaignID string) error {
	zips, err := a.store.ListUnresolvedZips(ctx, campaignID)
	if err != nil {
		return err
	}

	for _, zip := range zips {
		zone, err := a.resolver.Resolve(ctx, zip)
		if err != nil {
			return err
		}
		if zone == "" {
			continue
		}
		if err := a.store.SetContactTimezone(ctx, campaignID, zip, zone); err != nil {
			return err
		}
	}

	return nil
}

// texterClaim bounds one texter's claim within scope.
//
// With a cap, a dynamic campaign fills the texter up to maxContacts and a
// static one up to contactsCount+needsMessageCount, never past the cap.
// Without a cap the target is contactsCount+needsMessageCount. The reported
// contactsCount is a floor on the load storage counts.
func texterClaim(scope domain.ClaimRequest, texter domain.TexterAssignment, dynamic bool) domain.ClaimRequest {
	target := texter.ContactsCount + texter.NeedsMessageCount
	if texter.MaxContacts != nil {
		if dynamic {
			target = *texter.MaxContacts
		} else {
			target = min(target, *texter.MaxContacts)
		}
	}

	req := scope
	req.TexterID = texter.ID
	req.Target = target
	req.Floor = texter.ContactsCount
	return req
}
