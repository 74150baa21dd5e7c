package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForBackendOverridesBase(t *testing.T) {
	e := ForBackend(9100)
	e.FromList([]string{"PATH=/bin", "BACKEND_PORT=1", "=broken", "HOME=/root"})

	out := e.Merge()
	assert.Equal(t, []string{
		"BACKEND_PORT=9100",
		"HOME=/root",
		"PATH=/bin",
		"PYTHONUNBUFFERED=1",
		"UROFLOW_BACKEND_PORT=9100",
	}, out)
}

func TestMergeInheritsOSEnv(t *testing.T) {
	t.Setenv("UROFLOW_TEST_MARKER", "present")
	out := ForBackend(8000).Merge()
	assert.Contains(t, out, "UROFLOW_TEST_MARKER=present")
	assert.Contains(t, out, "PYTHONUNBUFFERED=1")
}

func TestUnset(t *testing.T) {
	e := New()
	e.FromList(nil)
	e.Set("A", "1")
	e.Set("B", "2")
	e.Unset("A")
	assert.Equal(t, []string{"B=2"}, e.Merge())
}

func TestForBackendExtraCannotOverridePort(t *testing.T) {
	e := ForBackend(8000, "API_KEY=abc", "BACKEND_PORT=1", "bad")
	e.FromList(nil)
	assert.Equal(t, []string{
		"API_KEY=abc",
		"BACKEND_PORT=8000",
		"PYTHONUNBUFFERED=1",
		"UROFLOW_BACKEND_PORT=8000",
	}, e.Merge())
}
