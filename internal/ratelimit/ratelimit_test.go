package ratelimit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAllowWithinLimit(t *testing.T) {
	l := New(3, time.Minute)
	user := uuid.New()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(user), "submission %d should be allowed", i)
	}
	assert.False(t, l.Allow(user), "fourth submission should be rejected")
}

func TestAllowIsPerUser(t *testing.T) {
	l := New(1, time.Minute)
	a, b := uuid.New(), uuid.New()

	assert.True(t, l.Allow(a))
	assert.False(t, l.Allow(a))
	assert.True(t, l.Allow(b))
}

func TestAllowResetsAfterWindow(t *testing.T) {
	l := New(1, 20*time.Millisecond)
	user := uuid.New()

	assert.True(t, l.Allow(user))
	assert.False(t, l.Allow(user))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.Allow(user), "limit should reset once the window elapses")
}

func TestAllowDisabledWhenLimitNonPositive(t *testing.T) {
	l := New(0, time.Minute)
	user := uuid.New()

	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow(user))
	}
}
