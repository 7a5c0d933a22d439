package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var payloadValidate = validator.New()

// AssignTextersPayload is the assign_texters job payload. Field names are a
// compatibility contract with the job producers.
type AssignTextersPayload struct {
	ID      string             `json:"id"`
	Texters []TexterAssignment `json:"texters" validate:"required,dive"`
}

// TexterAssignment describes one texter's requested load. A nil MaxContacts
// means the texter has no cap.
type TexterAssignment struct {
	ID                string `json:"id" validate:"required"`
	NeedsMessageCount int    `json:"needsMessageCount" validate:"min=0"`
	MaxContacts       *int   `json:"maxContacts" validate:"omitempty,min=0"`
	ContactsCount     int    `json:"contactsCount" validate:"min=0"`
}

// LoadContactsPayload is the load_contacts job payload
type LoadContactsPayload struct {
	Contacts []ContactInput `json:"contacts" validate:"required,dive"`
}

// ContactInput is one uploaded contact row
type ContactInput struct {
	Cell       string `json:"cell" validate:"required"`
	Zip        string `json:"zip"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	ExternalID string `json:"external_id"`
}

// DecodePayload unmarshals raw into dst and validates it. Every failure is
// wrapped in ErrInvalidPayload.
func DecodePayload(raw string, dst any) error {
	if raw == "" {
		return fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if err := payloadValidate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return nil
}

// ValidatePayload decodes raw as the payload of jobType, so producers can
// reject a job before it is queued
func ValidatePayload(jobType JobType, raw string) error {
	switch jobType {
	case JobTypeAssignTexters:
		return DecodePayload(raw, &AssignTextersPayload{})
	case JobTypeLoadContacts:
		return DecodePayload(raw, &LoadContactsPayload{})
	default:
		return ErrUnknownJobType
	}
}
