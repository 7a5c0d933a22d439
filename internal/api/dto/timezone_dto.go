package dto

type TimezoneResponse struct {
	Zip      string `json:"zip"`
	Timezone string `json:"timezone"`
}

// CreateZipCodeRequest creates a zip code record. When TimezoneOffset is
// omitted the offset and DST flag are derived from the coordinates.
type CreateZipCodeRequest struct {
	Zip            string  `json:"zip" binding:"required,len=5,numeric"`
	City           string  `json:"city" binding:"required"`
	State          string  `json:"state" binding:"required,len=2"`
	TimezoneOffset *int    `json:"timezone_offset" binding:"omitempty,min=-12,max=14"`
	HasDST         bool    `json:"has_dst"`
	Latitude       float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude      float64 `json:"longitude" binding:"min=-180,max=180"`
}

type ContactStatsResponse struct {
	CampaignID string `json:"campaign_id"`
	Total      int    `json:"total"`
	Assigned   int    `json:"assigned"`
	Unassigned int    `json:"unassigned"`
}
