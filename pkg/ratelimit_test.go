package pkg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestDistributedLimiter_Unlimited(t *testing.T) {
	l := NewDistributedLimiter(nil, "k", 0, 1, time.Minute, zaptest.NewLogger(t))
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow(context.Background()))
	}
}

func TestDistributedLimiter_LocalBurst(t *testing.T) {
	l := NewDistributedLimiter(nil, "k", 1, 3, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(ctx), "request %d within burst", i)
	}
	assert.False(t, l.Allow(ctx))
}
