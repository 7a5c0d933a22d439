package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuongbtq/texter-jobs/internal/api/dto"
	"github.com/cuongbtq/texter-jobs/internal/api/model"
	workerdomain "github.com/cuongbtq/texter-jobs/internal/worker/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(d *testDeps) *gin.Engine {
	r := gin.New()
	jobs := NewJobHandler(d.Dependencies)
	tz := NewTimezoneHandler(d.Dependencies)
	campaigns := NewCampaignHandler(d.Dependencies)

	r.POST("/api/v1/jobs", jobs.CreateJob)
	r.GET("/api/v1/jobs", jobs.ListJobs)
	r.GET("/api/v1/jobs/:job_id", jobs.GetJob)
	r.POST("/api/v1/jobs/:job_id/cancel", jobs.CancelJob)
	r.DELETE("/api/v1/jobs/:job_id", jobs.DeleteJob)
	r.GET("/api/v1/timezones/:zip", tz.GetTimezone)
	r.POST("/api/v1/zip-codes", tz.CreateZipCode)
	r.GET("/api/v1/campaigns/:campaign_id/contacts/stats", campaigns.GetContactStats)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const assignPayload = `{"id":"c1","texters":[{"id":"1","needsMessageCount":0,"maxContacts":2,"contactsCount":0}]}`

func storedJob(id, key, status string) *model.Job {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	return &model.Job{
		JobID:          id,
		IdempotencyKey: key,
		UserID:         "u1",
		CampaignID:     "c1",
		QueueName:      "c1:assign_texters",
		JobType:        string(workerdomain.JobTypeAssignTexters),
		Payload:        assignPayload,
		Status:         status,
		MaxRetries:     3,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestCreateJob(t *testing.T) {
	d := newTestDeps()
	r := newTestRouter(d)

	w := doJSON(t, r, http.MethodPost, "/api/v1/jobs", map[string]any{
		"idempotency_key": "k1",
		"user_id":         "u1",
		"campaign_id":     "c1",
		"job_type":        "assign_texters",
		"payload":         assignPayload,
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp dto.JobDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, workerdomain.JobStatusPending, resp.Status)
	assert.Equal(t, "c1:assign_texters", resp.QueueName)
	assert.Equal(t, 3, resp.MaxRetries)
	assert.Equal(t, []string{resp.JobID}, d.publisher.published)
	assert.Equal(t, 300, d.jobs.jobs[resp.JobID].TimeoutSeconds)
}

func TestCreateJob_Idempotent(t *testing.T) {
	tests := []struct {
		name          string
		status        string
		wantPublished int
	}{
		{"pending duplicate is republished", workerdomain.JobStatusPending, 1},
		{"completed duplicate is not", workerdomain.JobStatusCompleted, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := storedJob("6f1c2d3e-4b5a-4c6d-8e7f-901a2b3c4d5e", "k1", tt.status)
			d := newTestDeps(existing)
			r := newTestRouter(d)

			w := doJSON(t, r, http.MethodPost, "/api/v1/jobs", map[string]any{
				"idempotency_key": "k1",
				"user_id":         "u1",
				"campaign_id":     "c1",
				"job_type":        "assign_texters",
				"payload":         assignPayload,
			})

			require.Equal(t, http.StatusOK, w.Code)

			var resp dto.JobDTO
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, existing.JobID, resp.JobID)
			assert.Len(t, d.jobs.jobs, 1)
			assert.Len(t, d.publisher.published, tt.wantPublished)
		})
	}
}

func TestCreateJob_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		body     map[string]any
		wantCode int
	}{
		{
			name:     "missing idempotency key",
			body:     map[string]any{"user_id": "u1", "job_type": "assign_texters", "payload": assignPayload},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown job type",
			body:     map[string]any{"idempotency_key": "k", "user_id": "u1", "job_type": "export", "payload": "{}"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "payload does not match job type",
			body:     map[string]any{"idempotency_key": "k", "user_id": "u1", "job_type": "assign_texters", "payload": `{"id":"1"}`},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "payload is not json",
			body:     map[string]any{"idempotency_key": "k", "user_id": "u1", "job_type": "assign_texters", "payload": "texters"},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "load_contacts without campaign",
			body: map[string]any{
				"idempotency_key": "k", "user_id": "u1", "job_type": "load_contacts",
				"payload": `{"contacts":[{"cell":"1111111111"}]}`,
			},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "negative max retries",
			body: map[string]any{
				"idempotency_key": "k", "user_id": "u1", "job_type": "assign_texters",
				"payload": assignPayload, "max_retries": -1,
			},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			w := doJSON(t, newTestRouter(d), http.MethodPost, "/api/v1/jobs", tt.body)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Empty(t, d.jobs.jobs)
			assert.Empty(t, d.publisher.published)
		})
	}
}

func TestCreateJob_Failures(t *testing.T) {
	body := map[string]any{
		"idempotency_key": "k1",
		"user_id":         "u1",
		"campaign_id":     "c1",
		"job_type":        "assign_texters",
		"payload":         assignPayload,
	}

	t.Run("store error", func(t *testing.T) {
		d := newTestDeps()
		d.jobs.createErr = errBoom
		w := doJSON(t, newTestRouter(d), http.MethodPost, "/api/v1/jobs", body)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("publish error keeps the job", func(t *testing.T) {
		d := newTestDeps()
		d.publisher.err = errBoom
		w := doJSON(t, newTestRouter(d), http.MethodPost, "/api/v1/jobs", body)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Len(t, d.jobs.jobs, 1)
		assert.Contains(t, w.Body.String(), "job_id")
	})
}

func TestGetJob(t *testing.T) {
	job := storedJob("6f1c2d3e-4b5a-4c6d-8e7f-901a2b3c4d5e", "k1", workerdomain.JobStatusCompleted)
	job.Result = []byte(`{"assigned":2}`)
	r := newTestRouter(newTestDeps(job))

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{"found", "/api/v1/jobs/" + job.JobID, http.StatusOK},
		{"not a uuid", "/api/v1/jobs/42", http.StatusBadRequest},
		{"missing", "/api/v1/jobs/00000000-0000-0000-0000-000000000000", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}

	w := doJSON(t, r, http.MethodGet, "/api/v1/jobs/"+job.JobID, nil)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, map[string]any{"assigned": float64(2)}, resp["result"])
}

func TestCancelAndDeleteJob(t *testing.T) {
	pending := storedJob("11111111-1111-1111-1111-111111111111", "k1", workerdomain.JobStatusPending)
	running := storedJob("22222222-2222-2222-2222-222222222222", "k2", workerdomain.JobStatusRunning)
	failed := storedJob("33333333-3333-3333-3333-333333333333", "k3", workerdomain.JobStatusFailed)

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
	}{
		{"cancel pending", http.MethodPost, "/api/v1/jobs/" + pending.JobID + "/cancel", http.StatusOK},
		{"cancel running", http.MethodPost, "/api/v1/jobs/" + running.JobID + "/cancel", http.StatusConflict},
		{"cancel missing", http.MethodPost, "/api/v1/jobs/44444444-4444-4444-4444-444444444444/cancel", http.StatusNotFound},
		{"delete running", http.MethodDelete, "/api/v1/jobs/" + running.JobID, http.StatusConflict},
		{"delete failed", http.MethodDelete, "/api/v1/jobs/" + failed.JobID, http.StatusNoContent},
		{"delete bad id", http.MethodDelete, "/api/v1/jobs/nope", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps(
				storedJob(pending.JobID, "k1", pending.Status),
				storedJob(running.JobID, "k2", running.Status),
				storedJob(failed.JobID, "k3", failed.Status),
			)
			w := doJSON(t, newTestRouter(d), tt.method, tt.path, nil)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestListJobs_Pagination(t *testing.T) {
	d := newTestDeps(
		storedJob("11111111-1111-1111-1111-111111111111", "k1", workerdomain.JobStatusPending),
		storedJob("22222222-2222-2222-2222-222222222222", "k2", workerdomain.JobStatusPending),
		storedJob("33333333-3333-3333-3333-333333333333", "k3", workerdomain.JobStatusPending),
	)
	r := newTestRouter(d)

	w := doJSON(t, r, http.MethodGet, "/api/v1/jobs?page_size=2&campaign_id=c1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ListJobsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Jobs, 2)
	assert.NotEmpty(t, resp.NextCursor)
	assert.Equal(t, "c1", d.jobs.lastList.CampaignID)

	cursor, err := DecodeJobCursor(resp.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, resp.Jobs[1].JobID, cursor.JobID)

	w = doJSON(t, r, http.MethodGet, "/api/v1/jobs?cursor=not-a-cursor", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
