package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallbackDefaultURL(t *testing.T) {
	t.Parallel()

	cfg := CallbackConfig{BaseURL: "https://frontend.example.com"}
	assert.Equal(t,
		"https://frontend.example.com/internal/notify/acme",
		cfg.DefaultURL("acme"))

	// A trailing slash on the base must not double up.
	cfg.BaseURL = "https://frontend.example.com/"
	assert.Equal(t,
		"https://frontend.example.com/internal/notify/acme",
		cfg.DefaultURL("acme"))
}
