package postgresql

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{
			name:   "sslmode defaults to disable",
			config: Config{Host: "localhost", Port: 5432, User: "spoke", Password: "secret", Database: "jobs_db"},
			want:   "host=localhost port=5432 user=spoke password=secret dbname=jobs_db sslmode=disable",
		},
		{
			name:   "explicit sslmode",
			config: Config{Host: "db", Port: 5432, User: "spoke", Password: "secret", Database: "jobs_db", SSLMode: "require"},
			want:   "host=db port=5432 user=spoke password=secret dbname=jobs_db sslmode=require",
		},
		{
			name:   "empty password omitted",
			config: Config{Host: "db", Port: 5432, User: "spoke", Database: "jobs_db"},
			want:   "host=db port=5432 user=spoke dbname=jobs_db sslmode=disable",
		},
		{
			name:   "quoted password",
			config: Config{Host: "db", Port: 5432, User: "spoke", Password: `it's a \secret`, Database: "jobs_db"},
			want:   `host=db port=5432 user=spoke password='it\'s a \\secret' dbname=jobs_db sslmode=disable`,
		},
		{
			name: "timeout and application name",
			config: Config{
				Host: "db", Port: 5432, User: "spoke", Password: "secret", Database: "jobs_db",
				ConnectTimeout: 5 * time.Second, ApplicationName: "worker-service",
			},
			want: "host=db port=5432 user=spoke password=secret dbname=jobs_db sslmode=disable connect_timeout=5 application_name=worker-service",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DSN(&tt.config))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: "23505", Constraint: "jobs_idempotency_key_key"}

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"any constraint", dup, "", true},
		{"matching constraint", dup, "jobs_idempotency_key_key", true},
		{"other constraint", dup, "jobs_pkey", false},
		{"wrapped", fmt.Errorf("insert job: %w", dup), "", true},
		{"foreign key violation", &pq.Error{Code: "23503"}, "", false},
		{"not a pq error", errors.New("boom"), "", false},
		{"nil", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err, tt.constraint))
		})
	}
}

func TestErrorCodes(t *testing.T) {
	fk := &pq.Error{Code: "23503", Constraint: "campaign_contact_texter_id_fkey"}
	badText := &pq.Error{Code: "22P02", Message: `invalid input syntax for type bigint: "abc"`}

	tests := []struct {
		name        string
		err         error
		wantFK      bool
		wantBadText bool
	}{
		{"foreign key", fk, true, false},
		{"wrapped foreign key", fmt.Errorf("failed to claim contacts: %w", fk), true, false},
		{"invalid text", badText, false, true},
		{"unique violation", &pq.Error{Code: "23505"}, false, false},
		{"not a pq error", errors.New("connection refused"), false, false},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantFK, IsForeignKeyViolation(tt.err))
			assert.Equal(t, tt.wantBadText, IsInvalidTextRepresentation(tt.err))
		})
	}
}
