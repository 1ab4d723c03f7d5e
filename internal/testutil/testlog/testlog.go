package testlog

import (
	"testing"

	"github.com/danmuck/marquee/internal/logging"
	"github.com/rs/zerolog/log"
)

// Start configures the test logging profile and tags the run.
func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Info().Str("test", t.Name()).Msg("test start")
}
