package caliper

import (
	"strings"

	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigStringSingle(t *testing.T) {
	t.Parallel()

	specs, err := ParseConfigString("runtime-report")
	require.NoError(t, err)

	require.Len(t, specs, 1)
	assert.Equal(t, "runtime-report", specs[0].Name)
	assert.Empty(t, specs[0].Args)
}

func TestParseConfigStringWithArgs(t *testing.T) {
	t.Parallel()

	specs, err := ParseConfigString(`event-trace(output=trace.cali, compress=true)`)
	require.NoError(t, err)

	require.Len(t, specs, 1)
	assert.Equal(t, "event-trace", specs[0].Name)
	assert.Equal(t, "trace.cali", specs[0].Args["output"])
	assert.Equal(t, "true", specs[0].Args["compress"])
}

func TestParseConfigStringMultiple(t *testing.T) {
	t.Parallel()

	specs, err := ParseConfigString("runtime-report ( output=stdout ) , event-trace")
	require.NoError(t, err)

	require.Len(t, specs, 2)
	assert.Equal(t, "runtime-report", specs[0].Name)
	assert.Equal(t, "stdout", specs[0].Args["output"])
	assert.Equal(t, "event-trace", specs[1].Name)
}

func TestParseConfigStringQuotedValues(t *testing.T) {
	t.Parallel()

	specs, err := ParseConfigString(`runtime-report(output="file with spaces.txt")`)
	require.NoError(t, err)

	assert.Equal(t, "file with spaces.txt", specs[0].Args["output"])
}

func TestParseConfigStringEscapedParens(t *testing.T) {
	t.Parallel()

	specs, err := ParseConfigString(`runtime-report(output=weird\(name\).txt)`)
	require.NoError(t, err)

	assert.Equal(t, "weird(name).txt", specs[0].Args["output"])
}

func TestParseConfigStringEmptyArgList(t *testing.T) {
	t.Parallel()

	specs, err := ParseConfigString("runtime-report()")
	require.NoError(t, err)

	require.Len(t, specs, 1)
	assert.Empty(t, specs[0].Args)
}

func TestParseConfigStringSyntaxErrors(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"name(arg)",
		"name(arg=value",
		"name(arg=value))",
		"name)",
	}

	for _, input := range cases {
		_, err := ParseConfigString(input)
		assert.ErrorIs(t, err, ErrConfigSyntax, "input %q", input)
	}
}

func TestParseConfigStringReportsPosition(t *testing.T) {
	t.Parallel()

	_, err := ParseConfigString("name(arg=value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "position")
}

func TestConfigManagerUnknownNames(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)
	cm := NewConfigManager(rt)

	err := cm.Add("no-such-config")
	require.ErrorIs(t, err, ErrUnknownConfig)
	assert.Contains(t, err.Error(), "no-such-config")

	err = cm.Add("runtime-report(bogus=1)")
	require.ErrorIs(t, err, ErrUnknownArgument)
	assert.Contains(t, err.Error(), "bogus")
}

func TestConfigManagerBuildsControllers(t *testing.T) {
	t.Parallel()

	RegisterService(Service{Name: "nop-cm", Register: func(*Channel) error { return nil }})

	RegisterController(ControllerSpec{
		Name:   "cm-test",
		Config: map[string]string{KeyServicesEnable: "nop-cm"},
		Args:   map[string]string{"output": "CALI_TEST_OUTPUT"},
	})

	rt := newTestRuntime(t)
	cm := NewConfigManager(rt)

	cm.SetDefaultParameter("output", "default.out")

	require.NoError(t, cm.Add("cm-test"))
	require.Len(t, cm.Controllers(), 1)

	cc := cm.Controllers()[0]
	assert.Equal(t, "default.out", cc.Config()["CALI_TEST_OUTPUT"])

	require.NoError(t, cm.StartAll())
	require.NotNil(t, cc.Channel())
	assert.True(t, cc.IsActive())

	cc.Stop()
	assert.False(t, cc.IsActive())

	cc.Delete()
	assert.Nil(t, cc.Channel())
}

func TestLoadProfilesRegistersControllers(t *testing.T) {
	t.Parallel()

	doc := `
profiles:
  - name: my-trace
    description: custom trace preset
    config:
      CALI_SERVICES_ENABLE: ""
    args:
      output: CALI_RECORDER_FILENAME
`

	require.NoError(t, LoadProfiles(strings.NewReader(doc)))

	spec, ok := LookupController("my-trace")
	require.True(t, ok)
	assert.Equal(t, "custom trace preset", spec.Description)
	assert.Equal(t, "CALI_RECORDER_FILENAME", spec.Args["output"])
}

func TestLoadProfilesRejectsNameless(t *testing.T) {
	t.Parallel()

	err := LoadProfiles(strings.NewReader("profiles:\n  - description: oops\n"))
	assert.ErrorIs(t, err, ErrUnknownConfig)
}
