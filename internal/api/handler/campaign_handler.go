package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/texter-jobs/internal/api/domain"
	"github.com/cuongbtq/texter-jobs/internal/api/dto"
	"github.com/gin-gonic/gin"
)

// GetContactStats handles GET /api/v1/campaigns/:campaign_id/contacts/stats
func (h *CampaignHandler) GetContactStats(c *gin.Context) {
	campaignID := c.Param("campaign_id")

	stats, err := h.campaigns.ContactStats(c.Request.Context(), campaignID)
	if err != nil {
		if errors.Is(err, domain.ErrCampaignNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to get contact stats",
			slog.String("campaign_id", campaignID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get contact stats",
		})
		return
	}

	c.JSON(http.StatusOK, dto.ContactStatsResponse{
		CampaignID: stats.CampaignID,
		Total:      stats.Total,
		Assigned:   stats.Assigned,
		Unassigned: stats.Total - stats.Assigned,
	})
}
