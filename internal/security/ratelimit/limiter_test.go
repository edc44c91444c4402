package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowEnforcesLimit(t *testing.T) {
	l := NewLimiter(3, time.Minute)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("user-1"), "request %d should pass", i)
	}
	assert.False(t, l.Allow("user-1"))

	// Other callers have their own budget.
	assert.True(t, l.Allow("user-2"))
}

func TestAllowEmptyKeyPasses(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow(""))
	assert.True(t, l.Allow(""))
}

func TestAllowStrictIsIndependentOfDefaultBudget(t *testing.T) {
	l := NewLimiter(100, time.Minute)
	defer l.Stop()

	for i := 0; i < 2; i++ {
		assert.True(t, l.AllowStrict("1.2.3.4", 2, time.Minute))
	}
	assert.False(t, l.AllowStrict("1.2.3.4", 2, time.Minute))

	// The default budget is untouched by strict attempts.
	assert.True(t, l.Allow("1.2.3.4"))
}
