package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestBuild_Levels(t *testing.T) {
	lgr, err := Build("debug")
	require.NoError(t, err)
	assert.True(t, lgr.Core().Enabled(zapcore.DebugLevel))

	lgr, err = Build(" warn ")
	require.NoError(t, err)
	assert.False(t, lgr.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, lgr.Core().Enabled(zapcore.WarnLevel))
}

func TestBuild_InvalidLevel(t *testing.T) {
	_, err := Build("loud")
	assert.Error(t, err)
}
