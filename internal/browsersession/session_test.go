package browsersession

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigHasSaneDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Headless)
	assert.Equal(t, 1280, cfg.ViewportWidth)
	assert.Equal(t, 900, cfg.ViewportHeight)
	assert.Greater(t, cfg.NavigationTimeout.Seconds(), 0.0)
}

func TestOpenRequiresBinaryPath(t *testing.T) {
	_, err := Open(nil, Config{}) //nolint:staticcheck // nil context acceptable: fails before any ctx use
	assert.Error(t, err)
}

func TestCloseIsIdempotentOnZeroValueSession(t *testing.T) {
	s := &Session{}
	assert.NotPanics(t, func() {
		s.Close()
		s.Close()
	})
}

func TestViewportOrFallsBackOnNonPositive(t *testing.T) {
	assert.Equal(t, 1280, viewportOr(0, 1280))
	assert.Equal(t, 1280, viewportOr(-5, 1280))
	assert.Equal(t, 640, viewportOr(640, 1280))
}
