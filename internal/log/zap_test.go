package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xazziri/Trivy-dashboard/pkg/types"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger(context.Background())
	require.NotNil(t, logger)
	logger.Info("test message", "key", "value")
	logger.Debug("debug message")
	logger.Warn("warn message")
	logger.Error("error message")
}

func TestNewLoggerFromContext(t *testing.T) {
	stored := &types.MockLogger{}
	ctx := WithLogger(context.Background(), stored)

	got := NewLogger(ctx)
	assert.Same(t, types.Logger(stored), got)
}

func TestNewLoggerNilContextPanics(t *testing.T) {
	assert.Panics(t, func() {
		//nolint:staticcheck
		NewLogger(nil)
	})
	assert.Panics(t, func() {
		//nolint:staticcheck
		WithLogger(nil, &types.MockLogger{})
	})
}
