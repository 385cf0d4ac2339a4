package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthMonitor_NilClientsAreDisabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartHealthMonitor(ctx, time.Hour, nil, nil, nil)

	status := GetHealthStatus()
	assert.Equal(t, HealthDisabled, status.Mongo)
	assert.Equal(t, HealthDisabled, status.RedisCache)
	assert.Equal(t, HealthDisabled, status.RedisAlert)
	assert.False(t, status.CheckedAt.IsZero())
}
