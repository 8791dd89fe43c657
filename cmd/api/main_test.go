package main

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chicogong/slidegraph/pkg/config"
)

func TestNewAuthMiddleware(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("open when nothing is configured", func(t *testing.T) {
		m, err := newAuthMiddleware(&config.Config{}, logger)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("jwt only", func(t *testing.T) {
		m, err := newAuthMiddleware(&config.Config{JWTSecret: "s3cret", JWTTTL: time.Hour, AuthRequired: true}, logger)
		require.NoError(t, err)
		assert.NotNil(t, m)
	})

	t.Run("api keys", func(t *testing.T) {
		m, err := newAuthMiddleware(&config.Config{APIKeys: []string{"alice:sg_one", "bob:viewer:sg_two"}}, logger)
		require.NoError(t, err)
		assert.NotNil(t, m)
	})

	t.Run("malformed key", func(t *testing.T) {
		_, err := newAuthMiddleware(&config.Config{APIKeys: []string{"sg_lonely"}}, logger)
		assert.ErrorContains(t, err, "API_KEYS")
	})

	t.Run("duplicate key", func(t *testing.T) {
		_, err := newAuthMiddleware(&config.Config{APIKeys: []string{"alice:sg_one", "bob:sg_one"}}, logger)
		assert.ErrorContains(t, err, "already registered")
	})
}
