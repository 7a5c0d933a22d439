package domain

// Organization owns campaigns and their texting-hours policy
type Organization struct {
	ID                   string `db:"id"`
	TextingHoursEnforced bool   `db:"texting_hours_enforced"`
	TextingHoursStart    int    `db:"texting_hours_start"`
	TextingHoursEnd      int    `db:"texting_hours_end"`
}

// Campaign is the unit contacts and texters are grouped under
type Campaign struct {
	ID                   string `db:"id"`
	OrganizationID       string `db:"organization_id"`
	UseDynamicAssignment bool   `db:"use_dynamic_assignment"`
}

// CampaignContact is a recipient row to be inserted by a load_contacts job
type CampaignContact struct {
	CampaignID     string `db:"campaign_id"`
	Cell           string `db:"cell"`
	Zip            string `db:"zip"`
	TimezoneOffset string `db:"timezone_offset"`
	FirstName      string `db:"first_name"`
	LastName       string `db:"last_name"`
	ExternalID     string `db:"external_id"`
}

// ClaimRequest asks storage to atomically assign unassigned contacts of a
// campaign to a texter until it holds Target contacts, treating its load as
// at least Floor. With RestrictTimezones set only contacts whose zone is in
// Timezones, or whose zone is unknown, qualify.
type ClaimRequest struct {
	CampaignID        string
	TexterID          string
	Target            int
	Floor             int
	RestrictTimezones bool
	Timezones         []string
}

// Remaining is how many contacts the texter may still receive when storage
// currently assigns it current contacts
func (r ClaimRequest) Remaining(current int) int {
	return max(0, r.Target-max(r.Floor, current))
}
