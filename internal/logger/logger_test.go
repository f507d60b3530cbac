package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// LOG_FILE mirrors log output into a file next to the console stream.
func TestInitializeWithLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.log")
	t.Setenv("LOG_FILE", path)

	Initialize("debug")
	log := GetForComponent("boot")
	log.Info().Msg("log file smoke test")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "log file smoke test")
}

func TestInitializeConsoleOnly(t *testing.T) {
	t.Setenv("LOG_FILE", "")

	Initialize("info")
	require.NotPanics(t, func() {
		log := GetForComponent("boot")
		log.Info().Msg("console only")
	})
}
