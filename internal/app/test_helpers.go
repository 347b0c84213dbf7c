package app

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/framegraph/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing. It returns the
// app, the report buffer and the log buffer.
func SetupAppTest(t *testing.T, cfg Config) (*App, *testutil.SafeBuffer, *testutil.SafeBuffer) {
	t.Helper()

	cfg.LogLevel = "debug"
	validated, err := NewConfig(cfg)
	require.NoError(t, err)

	outBuffer := &testutil.SafeBuffer{}
	logBuffer := &testutil.SafeBuffer{}
	testApp, err := NewApp(outBuffer, logBuffer, validated)
	require.NoError(t, err)

	t.Cleanup(func() {
		if os.Getenv("FG_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, outBuffer, logBuffer
}
