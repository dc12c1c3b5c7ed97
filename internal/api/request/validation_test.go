package request

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireID_Valid(t *testing.T) {
	result, err := RequireID("550e8400-e29b-41d4-a716-446655440000")
	require.NoError(t, err)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", result)
}

func TestRequireID_Empty(t *testing.T) {
	_, err := RequireID("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required ID")
}

func TestDecode_ValidJSON(t *testing.T) {
	body := `{"image":"nginx:latest","cpu_limit":1.0,"cores":2,"ram_gib":2.0,"disk_gib":10.0}`
	r, err := http.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	require.NoError(t, err)

	var payload CreateServer
	err = Decode(r, &payload)
	require.NoError(t, err)
	assert.Equal(t, "nginx:latest", payload.Image)
	assert.Equal(t, 2, payload.Cores)
}

func TestDecode_InvalidJSON(t *testing.T) {
	body := `{not valid json}`
	r, err := http.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	require.NoError(t, err)

	var payload CreateServer
	err = Decode(r, &payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestDecode_ValidationFails(t *testing.T) {
	// Missing the required "image" field.
	body := `{"cpu_limit":1.0,"cores":2,"ram_gib":2.0,"disk_gib":10.0}`
	r, err := http.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	require.NoError(t, err)

	var payload CreateServer
	err = Decode(r, &payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation error")
}

func TestDecode_RejectsNegativeResources(t *testing.T) {
	body := `{"image":"nginx:latest","cpu_limit":-1.0,"cores":2,"ram_gib":2.0,"disk_gib":10.0}`
	r, err := http.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	require.NoError(t, err)

	var payload CreateServer
	err = Decode(r, &payload)
	require.Error(t, err)
}

func TestSlugValidation_Valid(t *testing.T) {
	validSlugs := []string{"my-server", "web123", "a", "abc-def-123", "z0"}
	for _, slug := range validSlugs {
		t.Run(slug, func(t *testing.T) {
			assert.True(t, nameRegex.MatchString(slug), "expected slug %q to be valid", slug)
		})
	}
}

func TestSlugValidation_Invalid(t *testing.T) {
	invalidSlugs := []string{"My-Server", "web server", "web@1", "1web", ""}
	for _, slug := range invalidSlugs {
		t.Run(slug, func(t *testing.T) {
			assert.False(t, nameRegex.MatchString(slug), "expected slug %q to be invalid", slug)
		})
	}
}

func TestParseUsageQuery_Defaults(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/servers/x/usage", nil)
	require.NoError(t, err)

	q, err := ParseUsageQuery(r)
	require.NoError(t, err)
	assert.Equal(t, "1h", q.Interval)
	assert.True(t, q.From.IsZero())
	assert.True(t, q.To.IsZero())
}

func TestParseUsageQuery_Explicit(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/servers/x/usage?from=2026-03-01T00:00:00Z&to=2026-03-02T00:00:00Z&interval=5m", nil)
	require.NoError(t, err)

	q, err := ParseUsageQuery(r)
	require.NoError(t, err)
	assert.Equal(t, "5m", q.Interval)
	assert.Equal(t, 2026, q.From.Year())
	assert.True(t, q.From.Before(q.To))
}

func TestParseUsageQuery_BadTimestamp(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/servers/x/usage?to=tomorrow", nil)
	require.NoError(t, err)

	_, err = ParseUsageQuery(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid to timestamp")
}
