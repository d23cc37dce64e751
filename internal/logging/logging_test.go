package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestCorrelationIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, CorrelationIDFromContext(ctx))

	id := NewCorrelationID()
	assert.NotEmpty(t, id)

	ctx = WithCorrelationID(ctx, id)
	assert.Equal(t, id, CorrelationIDFromContext(ctx))
}

func TestFromContextAttachesCorrelationID(t *testing.T) {
	base := slog.Default()
	ctx := WithCorrelationID(context.Background(), "corr_test")

	withID := FromContext(ctx, base)
	assert.NotNil(t, withID)

	noID := FromContext(context.Background(), base)
	assert.Same(t, base, noID)
}
