package production

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-pipeline/stage"
)

var testAffinities = map[string]map[string]float64{
	"runway": {"cinematic slow": 0.9, "fast-cut energetic": 0.6},
	"pika":   {"cinematic slow": 0.5, "fast-cut energetic": 0.8},
}

func TestSelectHighestAffinity(t *testing.T) {
	health := map[string]Health{"runway": HealthAvailable, "pika": HealthAvailable}

	sel, err := Select("cinematic slow", testAffinities, health)
	require.NoError(t, err)
	assert.Equal(t, Selection{Backend: "runway"}, sel)

	sel, err = Select("fast-cut energetic", testAffinities, health)
	require.NoError(t, err)
	assert.Equal(t, Selection{Backend: "pika"}, sel)
}

func TestSelectNeverReturnsUnavailable(t *testing.T) {
	health := map[string]Health{"runway": HealthUnavailable, "pika": HealthAvailable}

	sel, err := Select("cinematic slow", testAffinities, health)
	require.NoError(t, err)
	assert.Equal(t, "pika", sel.Backend)
	assert.False(t, sel.Degraded)
}

func TestSelectMissingFromHealthCountsAsUnavailable(t *testing.T) {
	health := map[string]Health{"pika": HealthAvailable}

	sel, err := Select("cinematic slow", testAffinities, health)
	require.NoError(t, err)
	assert.Equal(t, "pika", sel.Backend)
}

func TestSelectAllUnavailable(t *testing.T) {
	health := map[string]Health{"runway": HealthUnavailable, "pika": HealthUnavailable}

	_, err := Select("cinematic slow", testAffinities, health)
	var noBackend *stage.NoAvailableBackendError
	require.True(t, errors.As(err, &noBackend))
	assert.Equal(t, "cinematic slow", noBackend.Style)
}

func TestSelectDegradedTopReportsFallback(t *testing.T) {
	health := map[string]Health{"runway": HealthDegraded, "pika": HealthAvailable}

	sel, err := Select("cinematic slow", testAffinities, health)
	require.NoError(t, err)
	assert.Equal(t, Selection{Backend: "runway", Degraded: true, Fallback: "pika"}, sel)
}

func TestSelectDegradedWithoutFallback(t *testing.T) {
	health := map[string]Health{"runway": HealthDegraded, "pika": HealthUnavailable}

	sel, err := Select("cinematic slow", testAffinities, health)
	require.NoError(t, err)
	assert.Equal(t, Selection{Backend: "runway", Degraded: true}, sel)
}

func TestSelectUnknownStyleFallsBackToNameOrder(t *testing.T) {
	health := map[string]Health{"runway": HealthAvailable, "pika": HealthAvailable}

	sel, err := Select("claymation", testAffinities, health)
	require.NoError(t, err)
	assert.Equal(t, "pika", sel.Backend)
}
