package caliper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The singleton tests share process-global state and therefore do not run in
// parallel.

func TestInstanceSingleton(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvConfigFile, "")

	Release()
	t.Cleanup(Release)

	assert.Nil(t, TryInstance())

	rt := Instance()
	require.NotNil(t, rt)

	assert.Same(t, rt, Instance())
	assert.Same(t, rt, TryInstance())
}

func TestReleaseResetsSingleton(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvConfigFile, "")

	Release()
	t.Cleanup(Release)

	first := Instance()
	require.NotNil(t, first)

	Release()
	assert.Nil(t, TryInstance())

	second := Instance()
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
	assert.NotEqual(t, first.RunID(), second.RunID())
}

func TestBeginEndRegion(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvConfigFile, "")

	Release()
	t.Cleanup(Release)

	require.NoError(t, BeginRegion("main"))
	require.NoError(t, BeginRegion("inner"))

	rt := Instance()

	attr, ok := rt.GetAttribute(regionAttrName)
	require.True(t, ok)
	assert.Equal(t, []string{"main", "inner"}, pathOf(rt, attr))

	require.NoError(t, EndRegion())
	require.NoError(t, EndRegion())

	assert.ErrorIs(t, EndRegion(), ErrMissingEntry)
}

func TestInstanceEvaluatesConfigString(t *testing.T) {
	RegisterService(Service{Name: "nop-inst", Register: func(*Channel) error { return nil }})

	RegisterController(ControllerSpec{
		Name:   "inst-test",
		Config: map[string]string{KeyServicesEnable: "nop-inst"},
		Args:   map[string]string{},
	})

	t.Setenv(EnvConfig, "inst-test")
	t.Setenv(EnvConfigFile, "")

	Release()
	t.Cleanup(Release)

	rt := Instance()
	require.NotNil(t, rt)

	c, ok := rt.GetChannel("inst-test")
	require.True(t, ok)
	assert.True(t, c.IsActive())
}

func TestEnterSampler(t *testing.T) {
	leave := EnterSampler()
	leave()
}
