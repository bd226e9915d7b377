package commands

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLNL/caliper-go/pkg/caliper"
	"github.com/LLNL/caliper-go/pkg/services/recorder"
	"github.com/LLNL/caliper-go/pkg/variant"
)

// writeTestStream records a small annotated run into path.
func writeTestStream(t *testing.T, path string) {
	t.Helper()

	rt, err := caliper.NewRuntime(caliper.Config{})
	require.NoError(t, err)

	c, err := rt.CreateChannel("cli-test", map[string]string{
		caliper.KeyServicesEnable: "event,timestamp,trace,recorder",
		recorder.KeyFilename:      path,
	})
	require.NoError(t, err)

	fn, err := rt.CreateAttribute("function", variant.String, caliper.PropNested)
	require.NoError(t, err)

	require.NoError(t, rt.Begin(fn, variant.NewString("main")))
	require.NoError(t, rt.Begin(fn, variant.NewString("solve")))
	require.NoError(t, rt.End(fn))
	require.NoError(t, rt.End(fn))

	rt.FlushAndWrite(c)
}

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	require.NoError(t, cmd.Execute())

	return out.String()
}

func TestInspectCommand(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.cali")
	writeTestStream(t, path)

	out := runCommand(t, NewInspectCommand(), "--nodes", path)

	assert.Contains(t, out, "main")
	assert.Contains(t, out, "main/solve")
	assert.Contains(t, out, "function")
	assert.Contains(t, out, "globals:")
}

func TestReportCommand(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.cali")
	writeTestStream(t, path)

	out := runCommand(t, NewReportCommand(), path)

	assert.Contains(t, out, "Path")
	assert.Contains(t, out, "main")
	assert.Contains(t, out, "main/solve")
}

func TestStatCommand(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.cali")
	writeTestStream(t, path)

	out := runCommand(t, NewStatCommand(), path)

	assert.Contains(t, out, "snapshots:")
	assert.Contains(t, out, "4")
	assert.Contains(t, out, "attributes:")
}

func TestServicesCommand(t *testing.T) {
	t.Parallel()

	out := runCommand(t, NewServicesCommand())

	assert.Contains(t, out, "recorder")
	assert.Contains(t, out, "runtime-report")
	assert.Contains(t, out, "event-trace")
}

func TestInspectMissingFile(t *testing.T) {
	t.Parallel()

	cmd := NewInspectCommand()
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "absent.cali")})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	assert.Error(t, cmd.Execute())
}
