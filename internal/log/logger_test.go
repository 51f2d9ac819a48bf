package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		level string
		debug bool
		info  bool
	}{
		{name: "dev default", env: "dev", debug: true, info: true},
		{name: "prod default", env: "prod", debug: false, info: true},
		{name: "prod override", env: "prod", level: "debug", debug: true, info: true},
		{name: "dev override", env: "dev", level: "warn", debug: false, info: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.env, tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.debug, logger.Core().Enabled(zap.DebugLevel))
			assert.Equal(t, tt.info, logger.Core().Enabled(zap.InfoLevel))
		})
	}
}

func TestNewSugarRejectsBadLevel(t *testing.T) {
	_, err := NewSugar("dev", "loud")
	assert.Error(t, err)
}
