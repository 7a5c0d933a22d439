package handler

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/cuongbtq/texter-jobs/internal/api/domain"
	"github.com/cuongbtq/texter-jobs/internal/api/model"
	"github.com/cuongbtq/texter-jobs/internal/api/storage"
	"github.com/cuongbtq/texter-jobs/internal/timezone"
	workerdomain "github.com/cuongbtq/texter-jobs/internal/worker/domain"
)

type fakeJobStore struct {
	mu        sync.Mutex
	jobs      map[string]*model.Job
	byKey     map[string]string
	createErr error
	lastList  storage.JobFilter
}

func newFakeJobStore(jobs ...*model.Job) *fakeJobStore {
	s := &fakeJobStore{jobs: map[string]*model.Job{}, byKey: map[string]string{}}
	for _, j := range jobs {
		s.jobs[j.JobID] = j
		s.byKey[j.IdempotencyKey] = j.JobID
	}
	return s
}

func (s *fakeJobStore) CreateJob(ctx context.Context, job *model.Job) (*model.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, false, s.createErr
	}
	if id, ok := s.byKey[job.IdempotencyKey]; ok {
		return s.jobs[id], false, nil
	}
	s.jobs[job.JobID] = job
	s.byKey[job.IdempotencyKey] = job.JobID
	return job, true, nil
}

func (s *fakeJobStore) GetJobByID(ctx context.Context, jobID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

func (s *fakeJobStore) ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastList = filter

	var out []model.Job
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].JobID > out[k].JobID })
	if len(out) > filter.PageSize+1 {
		out = out[:filter.PageSize+1]
	}
	return out, nil
}

func (s *fakeJobStore) CancelJob(ctx context.Context, jobID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if job.Status != workerdomain.JobStatusPending {
		return nil, domain.ErrJobNotCancelable
	}
	job.Status = workerdomain.JobStatusCanceled
	return job, nil
}

func (s *fakeJobStore) DeleteJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	if !domain.IsTerminal(job.Status) {
		return domain.ErrJobNotDeletable
	}
	delete(s.jobs, jobID)
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *fakePublisher) PublishJob(ctx context.Context, jobID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, jobID)
	return nil
}

type fakeResolver struct {
	zones map[string]string
	err   error
}

func (r *fakeResolver) Resolve(ctx context.Context, zip string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.zones[zip], nil
}

type fakeZipCodeStore struct {
	records map[string]*timezone.ZipCode
}

func (s *fakeZipCodeStore) CreateZipCode(ctx context.Context, record *timezone.ZipCode) error {
	if _, ok := s.records[record.Zip]; ok {
		return domain.ErrZipCodeExists
	}
	s.records[record.Zip] = record
	return nil
}

type fakeCampaignStore struct {
	stats map[string]*model.ContactStats
	err   error
}

func (s *fakeCampaignStore) ContactStats(ctx context.Context, campaignID string) (*model.ContactStats, error) {
	if s.err != nil {
		return nil, s.err
	}
	stats, ok := s.stats[campaignID]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	return stats, nil
}

type fakeHealth struct{ err error }

func (h fakeHealth) HealthCheck(ctx context.Context) error { return h.err }

var errBoom = errors.New("boom")

type testDeps struct {
	*Dependencies
	jobs      *fakeJobStore
	publisher *fakePublisher
	zipCodes  *fakeZipCodeStore
	campaigns *fakeCampaignStore
	resolver  *fakeResolver
}

func newTestDeps(jobs ...*model.Job) *testDeps {
	d := &testDeps{
		jobs:      newFakeJobStore(jobs...),
		publisher: &fakePublisher{},
		zipCodes:  &fakeZipCodeStore{records: map[string]*timezone.ZipCode{}},
		campaigns: &fakeCampaignStore{stats: map[string]*model.ContactStats{}},
		resolver:  &fakeResolver{zones: map[string]string{}},
	}
	d.Dependencies = &Dependencies{
		Logger:      slog.New(slog.DiscardHandler),
		Jobs:        d.jobs,
		ZipCodes:    d.zipCodes,
		Campaigns:   d.campaigns,
		Publisher:   d.publisher,
		Resolver:    d.resolver,
		Database:    fakeHealth{},
		JobDefaults: JobDefaults{MaxRetries: 3, TimeoutSeconds: 300},
	}
	return d
}
