package domain

// Job status constants
const (
	JobStatusPending   = "PENDING"
	JobStatusRunning   = "RUNNING"
	JobStatusCompleted = "COMPLETED"
	JobStatusFailed    = "FAILED"
	JobStatusCanceled  = "CANCELED"
)

// JobType enumerates the kinds of work the worker knows how to execute
type JobType string

const (
	// JobTypeAssignTexters assigns unassigned campaign contacts to texters
	JobTypeAssignTexters JobType = "assign_texters"
	// JobTypeLoadContacts inserts a batch of contacts into a campaign
	JobTypeLoadContacts JobType = "load_contacts"
)

// JobTypes lists every supported job type
var JobTypes = []JobType{JobTypeAssignTexters, JobTypeLoadContacts}

// ParseJobType validates a raw job_type value
func ParseJobType(raw string) (JobType, error) {
	for _, jt := range JobTypes {
		if string(jt) == raw {
			return jt, nil
		}
	}
	return "", ErrUnknownJobType
}

func (t JobType) String() string {
	return string(t)
}
