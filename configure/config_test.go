package configure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadPrecedence(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")

	cfg := Load([]string{
		"--config_file=missing.yaml",
		"--mongo_db=civic_flags",
		"--jwt_secret=from-flag",
		"--vote_rate_limit=2.5",
	})

	assert.Equal(t, "civic_flags", cfg.MongoDB)
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, 2.5, cfg.VoteRateLimit)
	assert.Equal(t, ":3000", cfg.ListenerAddress)
	assert.Equal(t, "tcp", cfg.ListenerNetwork)
}
