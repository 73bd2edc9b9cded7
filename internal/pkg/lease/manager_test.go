package lease

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "complete config",
			cfg: Config{
				Table:       "payment_webhook_events",
				ClaimColumn: "processing_started_at",
				DoneColumn:  "processed",
				ErrorColumn: "processing_error",
			},
			wantErr: false,
		},
		{
			name:    "missing table",
			cfg:     Config{ClaimColumn: "c", DoneColumn: "d"},
			wantErr: true,
		},
		{
			name:    "missing claim column",
			cfg:     Config{Table: "t", DoneColumn: "d"},
			wantErr: true,
		},
		{
			name:    "missing done column",
			cfg:     Config{Table: "t", ClaimColumn: "c"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewManager(nil, tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, m)
		})
	}
}

func TestManagerDefaultTimeout(t *testing.T) {
	m, err := NewManager(nil, Config{
		Table:       "payment_webhook_events",
		ClaimColumn: "processing_started_at",
		DoneColumn:  "processed",
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, m.Timeout())

	m, err = NewManager(nil, Config{
		Table:       "payment_webhook_events",
		ClaimColumn: "processing_started_at",
		DoneColumn:  "processed",
		Timeout:     90 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, m.Timeout())
}

func TestClaimConds(t *testing.T) {
	m, err := NewManager(nil, Config{
		Table:       "payment_webhook_events",
		ClaimColumn: "processing_started_at",
		DoneColumn:  "processed",
		Timeout:     5 * time.Minute,
	})
	require.NoError(t, err)

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	cond, args := m.claimConds(now)

	// The predicate must refuse done rows and rows with a fresh claim in a
	// single statement; there is no separate read.
	assert.Equal(t, "processed = ? AND (processing_started_at IS NULL OR processing_started_at < ?)", cond)
	require.Len(t, args, 2)
	assert.Equal(t, false, args[0])

	cutoff, ok := args[1].(time.Time)
	require.True(t, ok)
	assert.Equal(t, now.Add(-5*time.Minute), cutoff)
}

func TestClaimCondsBoundary(t *testing.T) {
	m, err := NewManager(nil, Config{
		Table:       "payment_webhook_events",
		ClaimColumn: "processing_started_at",
		DoneColumn:  "processed",
		Timeout:     5 * time.Minute,
	})
	require.NoError(t, err)

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	_, args := m.claimConds(now)
	cutoff := args[1].(time.Time)

	// A claim exactly at the cutoff is NOT reclaimable: the column has to be
	// strictly older. One nanosecond past the window it becomes free.
	exactlyAtCutoff := now.Add(-5 * time.Minute)
	justStale := exactlyAtCutoff.Add(-time.Nanosecond)
	assert.False(t, exactlyAtCutoff.Before(cutoff))
	assert.True(t, justStale.Before(cutoff))
}
