package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/texter-jobs/internal/api/model"
	"github.com/cuongbtq/texter-jobs/internal/api/storage"
	"github.com/cuongbtq/texter-jobs/internal/timezone"
)

// JobStore persists job requests
type JobStore interface {
	CreateJob(ctx context.Context, job *model.Job) (*model.Job, bool, error)
	GetJobByID(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.Job, error)
	CancelJob(ctx context.Context, jobID string) (*model.Job, error)
	DeleteJob(ctx context.Context, jobID string) error
}

// JobPublisher enqueues a stored job for the workers
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

// ZoneResolver resolves a zip code to an "<offset>_<dst>" string
type ZoneResolver interface {
	Resolve(ctx context.Context, zip string) (string, error)
}

// ZipCodeStore persists zip code records
type ZipCodeStore interface {
	CreateZipCode(ctx context.Context, record *timezone.ZipCode) error
}

// CampaignStore reads campaign contact statistics
type CampaignStore interface {
	ContactStats(ctx context.Context, campaignID string) (*model.ContactStats, error)
}

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// JobDefaults are applied to jobs created without explicit limits
type JobDefaults struct {
	MaxRetries     int
	TimeoutSeconds int
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Jobs        JobStore
	ZipCodes    ZipCodeStore
	Campaigns   CampaignStore
	Publisher   JobPublisher
	Resolver    ZoneResolver
	Database    HealthChecker
	Broker      HealthChecker
	JobDefaults JobDefaults
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger    *slog.Logger
	storage   JobStore
	publisher JobPublisher
	defaults  JobDefaults
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:    deps.Logger,
		storage:   deps.Jobs,
		publisher: deps.Publisher,
		defaults:  deps.JobDefaults,
	}
}

// TimezoneHandler serves zip code timezone lookups and imports
type TimezoneHandler struct {
	logger   *slog.Logger
	resolver ZoneResolver
	zipCodes ZipCodeStore
	year     func() int
}

// NewTimezoneHandler creates a new TimezoneHandler instance
func NewTimezoneHandler(deps *Dependencies) *TimezoneHandler {
	return &TimezoneHandler{
		logger:   deps.Logger,
		resolver: deps.Resolver,
		zipCodes: deps.ZipCodes,
		year:     currentYear,
	}
}

// CampaignHandler serves campaign assignment progress
type CampaignHandler struct {
	logger    *slog.Logger
	campaigns CampaignStore
}

// NewCampaignHandler creates a new CampaignHandler instance
func NewCampaignHandler(deps *Dependencies) *CampaignHandler {
	return &CampaignHandler{
		logger:    deps.Logger,
		campaigns: deps.Campaigns,
	}
}
