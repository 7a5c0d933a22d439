package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/texter-jobs/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ExecutorFunc adapts a function to Executor
type ExecutorFunc func(ctx context.Context, job *domain.Job) (map[string]interface{}, error)

func (f ExecutorFunc) Execute(ctx context.Context, job *domain.Job) (map[string]interface{}, error) {
	return f(ctx, job)
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeContact struct {
	id       int
	campaign string
	cell     string
	zip      string
	zone     string
	texterID string
}

// memCampaignStore is an in-memory AssignmentStore and ContactStore whose
// ClaimContacts counts and claims under one lock, like the campaign advisory
// lock in Postgres
type memCampaignStore struct {
	mu        sync.Mutex
	orgs      map[string]*domain.Organization
	campaigns map[string]*domain.Campaign
	contacts  []*fakeContact
	nextID    int
	claimErr  error
	claims    []domain.ClaimRequest
}

func newMemCampaignStore() *memCampaignStore {
	return &memCampaignStore{
		orgs:      map[string]*domain.Organization{},
		campaigns: map[string]*domain.Campaign{},
	}
}

func (m *memCampaignStore) addOrganization(org domain.Organization) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs[org.ID] = &org
}

func (m *memCampaignStore) addCampaign(c domain.Campaign) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[c.ID] = &c
}

func (m *memCampaignStore) addContact(campaignID, cell, zip, zone string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.contacts = append(m.contacts, &fakeContact{
		id:       m.nextID,
		campaign: campaignID,
		cell:     cell,
		zip:      zip,
		zone:     zone,
	})
}

func (m *memCampaignStore) GetCampaign(ctx context.Context, campaignID string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[campaignID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCampaignNotFound, campaignID)
	}
	copied := *c
	return &copied, nil
}

func (m *memCampaignStore) GetOrganization(ctx context.Context, organizationID string) (*domain.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[organizationID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrganizationNotFound, organizationID)
	}
	copied := *o
	return &copied, nil
}

func (m *memCampaignStore) ListUnresolvedZips(ctx context.Context, campaignID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var zips []string
	for _, c := range m.contacts {
		if c.campaign == campaignID && c.texterID == "" && c.zone == "" && c.zip != "" && !seen[c.zip] {
			seen[c.zip] = true
			zips = append(zips, c.zip)
		}
	}
	return zips, nil
}

func (m *memCampaignStore) SetContactTimezone(ctx context.Context, campaignID, zip, zone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contacts {
		if c.campaign == campaignID && c.zip == zip && c.zone == "" {
			c.zone = zone
		}
	}
	return nil
}

func (m *memCampaignStore) ListContactTimezones(ctx context.Context, campaignID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var zones []string
	for _, c := range m.contacts {
		if c.campaign == campaignID && c.texterID == "" && c.zone != "" && !seen[c.zone] {
			seen[c.zone] = true
			zones = append(zones, c.zone)
		}
	}
	return zones, nil
}

func (m *memCampaignStore) ClaimContacts(ctx context.Context, req domain.ClaimRequest) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims = append(m.claims, req)
	if m.claimErr != nil {
		return 0, m.claimErr
	}

	allowed := map[string]bool{}
	for _, z := range req.Timezones {
		allowed[z] = true
	}

	current := 0
	for _, c := range m.contacts {
		if c.campaign == req.CampaignID && c.texterID == req.TexterID {
			current++
		}
	}
	limit := req.Remaining(current)

	claimed := 0
	for _, c := range m.contacts {
		if claimed >= limit {
			break
		}
		if c.campaign != req.CampaignID || c.texterID != "" {
			continue
		}
		if req.RestrictTimezones && c.zone != "" && !allowed[c.zone] {
			continue
		}
		c.texterID = req.TexterID
		claimed++
	}
	return claimed, nil
}

func (m *memCampaignStore) InsertContacts(ctx context.Context, contacts []domain.CampaignContact) (int, error) {
	for _, c := range contacts {
		m.addContact(c.CampaignID, c.Cell, c.Zip, c.TimezoneOffset)
	}
	return len(contacts), nil
}

func (m *memCampaignStore) assignedCount(campaignID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.contacts {
		if c.campaign == campaignID && c.texterID != "" {
			n++
		}
	}
	return n
}

func (m *memCampaignStore) contactsByTexter(campaignID string) map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for _, c := range m.contacts {
		if c.campaign == campaignID && c.texterID != "" {
			out[c.texterID]++
		}
	}
	return out
}

// mapResolver resolves from a fixed map and counts calls
type mapResolver struct {
	mu    sync.Mutex
	zones map[string]string
	calls map[string]int
	err   error
}

func newMapResolver(zones map[string]string) *mapResolver {
	return &mapResolver{zones: zones, calls: map[string]int{}}
}

func (r *mapResolver) Resolve(ctx context.Context, zip string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[zip]++
	if r.err != nil {
		return "", r.err
	}
	return r.zones[zip], nil
}

type statusUpdate struct {
	jobID  string
	status string
	result map[string]interface{}
	errMsg string
}

// memJobStore is an in-memory JobStore
type memJobStore struct {
	mu         sync.Mutex
	jobs       map[string]*domain.Job
	updates    []statusUpdate
	retried    []string
	heartbeats int
	claimErr   error
}

func newMemJobStore(jobs ...*domain.Job) *memJobStore {
	s := &memJobStore{jobs: map[string]*domain.Job{}}
	for _, j := range jobs {
		if j.Status == "" {
			j.Status = domain.JobStatusPending
		}
		s.jobs[j.JobID] = j
	}
	return s
}

func (s *memJobStore) ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if job.Status != domain.JobStatusPending {
		return nil, domain.ErrJobAlreadyClaimed
	}
	job.Status = domain.JobStatusRunning
	job.WorkerID = workerID
	copied := *job
	return &copied, nil
}

func (s *memJobStore) UpdateJobStatus(ctx context.Context, jobID, status string, result map[string]interface{}, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[jobID]; ok {
		job.Status = status
	}
	s.updates = append(s.updates, statusUpdate{jobID: jobID, status: status, result: result, errMsg: errorMsg})
	return nil
}

func (s *memJobStore) MarkJobForRetry(ctx context.Context, jobID, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != domain.JobStatusRunning {
		return errors.New("job not running")
	}
	job.Status = domain.JobStatusPending
	job.RetryCount++
	s.retried = append(s.retried, jobID)
	return nil
}

func (s *memJobStore) UpdateJobHeartbeat(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeats++
	return nil
}

func (s *memJobStore) lastUpdate() statusUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.updates) == 0 {
		return statusUpdate{}
	}
	return s.updates[len(s.updates)-1]
}

func newTestWorker(store JobStore, executors map[domain.JobType]Executor) *Worker {
	return &Worker{
		logger:            testLogger(),
		storage:           store,
		executors:         executors,
		workerID:          "test-worker",
		concurrency:       1,
		jobTimeout:        5 * time.Second,
		heartbeatInterval: time.Hour,
		jobsChan:          make(chan *domain.JobMessage, 1),
		stopChan:          make(chan struct{}),
	}
}

type nack struct {
	tag     uint64
	requeue bool
}

type fakeBroker struct {
	mu         sync.Mutex
	deliveries chan amqp.Delivery
	acked      []uint64
	nacked     []nack
	published  []string
	prefetch   int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{deliveries: make(chan amqp.Delivery, 8)}
}

func (b *fakeBroker) Consume(consumerTag string, prefetch int) (<-chan amqp.Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prefetch = prefetch
	return b.deliveries, nil
}

func (b *fakeBroker) Ack(deliveryTag uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acked = append(b.acked, deliveryTag)
	return nil
}

func (b *fakeBroker) Nack(deliveryTag uint64, requeue bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nacked = append(b.nacked, nack{tag: deliveryTag, requeue: requeue})
	return nil
}

func (b *fakeBroker) PublishJob(ctx context.Context, jobID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, jobID)
	return nil
}

func (b *fakeBroker) QueueName() string { return "jobs_queue" }

func (b *fakeBroker) settled() ([]uint64, []nack) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uint64(nil), b.acked...), append([]nack(nil), b.nacked...)
}

func (s *memJobStore) status(jobID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[jobID]; ok {
		return job.Status
	}
	return ""
}
