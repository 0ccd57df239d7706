package drivesync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepulse/internal/config"
	"sitepulse/internal/export"
)

func TestDisabledSyncerIsNoOp(t *testing.T) {
	s, err := New(context.Background(), config.DriveConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.False(t, s.Enabled())

	id, err := s.Upload(context.Background(), &export.Result{
		Filename: "report.xlsx",
		Data:     []byte("data"),
	})
	require.NoError(t, err)
	assert.Empty(t, id)
}
