package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/supervisi-api/pkg/config"
)

func TestAddr(t *testing.T) {
	assert.Equal(t, "cache.local:6380", Addr(config.RedisConfig{Host: "cache.local", Port: 6380}))
}

func TestNewRedisDisabled(t *testing.T) {
	client, err := NewRedis(context.Background(), config.RedisConfig{Enabled: false})
	assert.NoError(t, err)
	assert.Nil(t, client)
}
