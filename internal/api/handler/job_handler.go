package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/texter-jobs/internal/api/domain"
	"github.com/cuongbtq/texter-jobs/internal/api/dto"
	"github.com/cuongbtq/texter-jobs/internal/api/model"
	"github.com/cuongbtq/texter-jobs/internal/api/storage"
	workerdomain "github.com/cuongbtq/texter-jobs/internal/worker/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateJob handles POST /api/v1/jobs
// Stores a job request and publishes it to the worker queue. Repeating a
// request with the same idempotency key returns the stored job.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	jobType, err := workerdomain.ParseJobType(req.JobType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("unsupported job_type %q", req.JobType),
		})
		return
	}

	if err := workerdomain.ValidatePayload(jobType, req.Payload); err != nil {
		h.logger.Warn("Rejected job payload",
			slog.String("job_type", req.JobType),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	if jobType == workerdomain.JobTypeLoadContacts && req.CampaignID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "campaign_id is required for load_contacts",
		})
		return
	}

	queueName := req.QueueName
	if queueName == "" && req.CampaignID != "" {
		queueName = req.CampaignID + ":" + jobType.String()
	}

	now := time.Now().UTC()
	job := &model.Job{
		JobID:          uuid.NewString(),
		IdempotencyKey: req.IdempotencyKey,
		UserID:         req.UserID,
		CampaignID:     req.CampaignID,
		QueueName:      queueName,
		JobType:        jobType.String(),
		Payload:        req.Payload,
		Status:         workerdomain.JobStatusPending,
		MaxRetries:     h.defaults.MaxRetries,
		TimeoutSeconds: h.defaults.TimeoutSeconds,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.MaxRetries != nil {
		job.MaxRetries = *req.MaxRetries
	}
	if req.TimeoutSeconds != nil {
		job.TimeoutSeconds = *req.TimeoutSeconds
	}

	stored, created, err := h.storage.CreateJob(c.Request.Context(), job)
	if err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	if !created {
		h.logger.Info("Duplicate job request",
			slog.String("job_id", stored.JobID),
			slog.String("idempotency_key", stored.IdempotencyKey),
			slog.String("status", stored.Status),
		)
		// a PENDING duplicate may be a retry after a failed publish
		if stored.Status == workerdomain.JobStatusPending {
			h.publish(c, stored)
		}
		c.JSON(http.StatusOK, dto.NewJobDTO(stored))
		return
	}

	if err := h.publish(c, stored); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "Job stored but could not be queued; retry with the same idempotency_key",
			"job_id": stored.JobID,
		})
		return
	}

	h.logger.Info("Job created",
		slog.String("job_id", stored.JobID),
		slog.String("job_type", stored.JobType),
		slog.String("campaign_id", stored.CampaignID),
	)

	c.JSON(http.StatusCreated, dto.NewJobDTO(stored))
}

func (h *JobHandler) publish(c *gin.Context, job *model.Job) error {
	if err := h.publisher.PublishJob(c.Request.Context(), job.JobID); err != nil {
		h.logger.Error("Failed to publish job",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// GetJob handles GET /api/v1/jobs/:job_id
// Retrieves detailed information about a specific job
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	job, err := h.storage.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		h.writeJobError(c, "Failed to get job", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs with optional filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.JobFilter{
		UserID:     req.UserID,
		CampaignID: req.CampaignID,
		JobType:    req.JobType,
		Status:     req.Status,
		PageSize:   req.PageSize,
		Cursor:     cursor,
	}

	jobs, err := h.storage.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = dto.NewJobDTO(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: lastJob.CreatedAt,
			JobID:     lastJob.JobID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
// Cancels a job that no worker has claimed yet
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	job, err := h.storage.CancelJob(c.Request.Context(), jobID)
	if err != nil {
		h.writeJobError(c, "Failed to cancel job", err)
		return
	}

	h.logger.Info("Job canceled", slog.String("job_id", jobID))
	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// DeleteJob handles DELETE /api/v1/jobs/:job_id
// Permanently deletes a job in a terminal state
func (h *JobHandler) DeleteJob(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	if err := h.storage.DeleteJob(c.Request.Context(), jobID); err != nil {
		h.writeJobError(c, "Failed to delete job", err)
		return
	}

	h.logger.Info("Job deleted", slog.String("job_id", jobID))
	c.Status(http.StatusNoContent)
}

func jobIDParam(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return "", false
	}
	return jobID, true
}

func (h *JobHandler) writeJobError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrJobNotCancelable), errors.Is(err, domain.ErrJobNotDeletable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error(msg, slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
