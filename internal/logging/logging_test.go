package logging

import (
	"testing"

	"heimdall/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSetup(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	assert.Equal(t, zerolog.DebugLevel, Setup(config.Logging{Level: "debug"}))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	assert.Equal(t, zerolog.InfoLevel, Setup(config.Logging{Level: "loud"}))
	assert.Equal(t, zerolog.InfoLevel, Setup(config.Logging{}))
	assert.Equal(t, zerolog.TimeFormatUnixMs, zerolog.TimeFieldFormat)
}
