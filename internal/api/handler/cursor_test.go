package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/cuongbtq/texter-jobs/internal/api/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobCursor_RoundTrip(t *testing.T) {
	in := &storage.JobCursor{
		CreatedAt: time.Date(2024, 7, 1, 12, 30, 0, 123456789, time.UTC),
		JobID:     "6f1c2d3e-4b5a-4c6d-8e7f-901a2b3c4d5e",
	}

	out, err := DecodeJobCursor(EncodeJobCursor(in))
	require.NoError(t, err)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.JobID, out.JobID)
}

func TestDecodeJobCursor(t *testing.T) {
	encode := func(s string) string { return base64.URLEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name    string
		cursor  string
		wantNil bool
		wantErr bool
	}{
		{name: "empty is first page", cursor: "", wantNil: true},
		{name: "not base64", cursor: "%%%", wantErr: true},
		{name: "no separator", cursor: encode("12345"), wantErr: true},
		{name: "bad timestamp", cursor: encode("yesterday|6f1c2d3e-4b5a-4c6d-8e7f-901a2b3c4d5e"), wantErr: true},
		{name: "bad job id", cursor: encode("12345|job-1"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cursor, err := DecodeJobCursor(tt.cursor)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, cursor)
			}
		})
	}
}
