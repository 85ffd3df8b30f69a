package validator

import (
	"record-sync/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCall() models.Record {
	return models.Record{
		UserID:      "user-1",
		Kind:        models.KindCall,
		PhoneNumber: "+1 (555) 000-1234",
		Direction:   models.DirectionIncoming,
		Status:      models.CallAnswered,
		OccurredAt:  time.Now(),
	}
}

func validMessage() models.Record {
	return models.Record{
		UserID:      "user-1",
		Kind:        models.KindMessage,
		PhoneNumber: "+15550001",
		Direction:   models.DirectionOutgoing,
		Status:      models.MessageSent,
		Content:     "hello",
		OccurredAt:  time.Now(),
	}
}

func TestValidateRecord(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		mutate  func(*models.Record)
		base    models.Record
		wantErr string
	}{
		{
			name:   "valid call",
			base:   validCall(),
			mutate: func(r *models.Record) {},
		},
		{
			name:   "valid message",
			base:   validMessage(),
			mutate: func(r *models.Record) {},
		},
		{
			name:    "missing kind",
			base:    validCall(),
			mutate:  func(r *models.Record) { r.Kind = "" },
			wantErr: "kind is required",
		},
		{
			name:    "unknown kind",
			base:    validCall(),
			mutate:  func(r *models.Record) { r.Kind = "fax" },
			wantErr: "kind must be one of",
		},
		{
			name:    "missing phone number",
			base:    validCall(),
			mutate:  func(r *models.Record) { r.PhoneNumber = "" },
			wantErr: "phoneNumber is required",
		},
		{
			name:    "not a phone number",
			base:    validCall(),
			mutate:  func(r *models.Record) { r.PhoneNumber = "call me maybe" },
			wantErr: "valid phone number",
		},
		{
			name:    "bad direction",
			base:    validCall(),
			mutate:  func(r *models.Record) { r.Direction = "lateral" },
			wantErr: "direction must be one of",
		},
		{
			name:    "message status on a call",
			base:    validCall(),
			mutate:  func(r *models.Record) { r.Status = models.MessageRead },
			wantErr: "answered, declined, or missed",
		},
		{
			name:    "call status on a message",
			base:    validMessage(),
			mutate:  func(r *models.Record) { r.Status = models.CallMissed },
			wantErr: "sent, delivered, read, failed",
		},
		{
			name:    "message without content",
			base:    validMessage(),
			mutate:  func(r *models.Record) { r.Content = "  " },
			wantErr: "content is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.base
			tt.mutate(&rec)

			err := v.Validate(&rec)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	rec := models.Record{Kind: models.KindMessage}
	rec.ApplyDefaults()

	assert.Equal(t, models.MessageSent, rec.Status)
	assert.False(t, rec.OccurredAt.IsZero())

	// Explicit values are left alone
	at := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	rec = models.Record{Kind: models.KindMessage, Status: models.MessageRead, OccurredAt: at}
	rec.ApplyDefaults()

	assert.Equal(t, models.MessageRead, rec.Status)
	assert.Equal(t, at, rec.OccurredAt)
}
