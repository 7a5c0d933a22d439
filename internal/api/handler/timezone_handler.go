package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/texter-jobs/internal/api/domain"
	"github.com/cuongbtq/texter-jobs/internal/api/dto"
	"github.com/cuongbtq/texter-jobs/internal/timezone"
	"github.com/gin-gonic/gin"
)

func currentYear() int {
	return time.Now().Year()
}

// GetTimezone handles GET /api/v1/timezones/:zip
// An unknown zip answers 200 with an empty timezone.
func (h *TimezoneHandler) GetTimezone(c *gin.Context) {
	zip := c.Param("zip")

	zone, err := h.resolver.Resolve(c.Request.Context(), zip)
	if err != nil {
		h.logger.Error("Failed to resolve timezone",
			slog.String("zip", zip),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to resolve timezone",
		})
		return
	}

	c.JSON(http.StatusOK, dto.TimezoneResponse{
		Zip:      zip,
		Timezone: zone,
	})
}

// CreateZipCode handles POST /api/v1/zip-codes
func (h *TimezoneHandler) CreateZipCode(c *gin.Context) {
	var req dto.CreateZipCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	record := &timezone.ZipCode{
		Zip:       req.Zip,
		City:      req.City,
		State:     req.State,
		HasDST:    req.HasDST,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}

	if req.TimezoneOffset != nil {
		record.TimezoneOffset = *req.TimezoneOffset
	} else {
		offset, hasDST, err := timezone.ZoneFromCoordinates(req.Latitude, req.Longitude, h.year())
		if err != nil {
			h.logger.Warn("Could not derive timezone from coordinates",
				slog.String("zip", req.Zip),
				slog.Float64("latitude", req.Latitude),
				slog.Float64("longitude", req.Longitude),
				slog.String("error", err.Error()),
			)
			msg := "timezone_offset is required when coordinates do not map to a timezone"
			if errors.Is(err, timezone.ErrFractionalOffset) {
				msg = "timezone_offset is required: coordinates fall in a zone without a whole-hour offset"
			}
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg})
			return
		}
		record.TimezoneOffset = offset
		record.HasDST = hasDST
	}

	if err := h.zipCodes.CreateZipCode(c.Request.Context(), record); err != nil {
		if errors.Is(err, domain.ErrZipCodeExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to create zip code", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create zip code",
		})
		return
	}

	h.logger.Info("Zip code created",
		slog.String("zip", record.Zip),
		slog.String("timezone", record.Zone()),
	)

	c.JSON(http.StatusCreated, record)
}
