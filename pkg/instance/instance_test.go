package instance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDPrefersEnvironment(t *testing.T) {
	t.Setenv(EnvInstanceID, "api-7")
	assert.Equal(t, "api-7", ID("api"))
}

func TestIDFallsBackToKind(t *testing.T) {
	t.Setenv(EnvInstanceID, "  ")
	assert.True(t, strings.HasPrefix(ID("cron-worker"), "cron-worker"))
}
