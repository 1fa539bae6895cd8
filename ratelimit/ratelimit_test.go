package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestController_MaxTurnsStopsOnOverflow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTurns = 3
	c := NewController(cfg)

	var last Verdict
	for i := 0; i < 4; i++ {
		last = c.Account("agent-a", "conv-1", 0)
	}
	assert.Equal(t, Stop, last)
}

func TestController_BelowTurnCapContinues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTurns = 3
	c := NewController(cfg)

	v := c.Account("agent-a", "conv-1", 0)
	assert.Equal(t, Continue, v)
}

func TestController_TokenOverflowTriggersCooldownAndListener(t *testing.T) {
	cfg := Config{
		PerMinuteTokens: 10,
		PerHourTokens:   1_000_000,
		MaxTurns:        1000,
		CooldownBackoff: 50 * time.Millisecond,
	}
	c := NewController(cfg)

	var notified bool
	var notifiedAgent string
	c.OnCooldown(func(agentID string, until time.Time) {
		notified = true
		notifiedAgent = agentID
	})

	v := c.Account("agent-a", "conv-1", 100) // far exceeds the per-minute budget
	assert.Equal(t, Wait, v)
	assert.True(t, notified)
	assert.Equal(t, "agent-a", notifiedAgent)

	inCooldown, _ := c.InCooldown()
	assert.True(t, inCooldown)
	assert.Equal(t, Wait, c.PreCheck())
}

func TestController_CooldownExpiresAfterBackoff(t *testing.T) {
	cfg := Config{
		PerMinuteTokens: 10,
		PerHourTokens:   1_000_000,
		MaxTurns:        1000,
		CooldownBackoff: 20 * time.Millisecond,
	}
	c := NewController(cfg)

	c.Account("agent-a", "conv-1", 100)
	time.Sleep(30 * time.Millisecond)

	inCooldown, _ := c.InCooldown()
	assert.False(t, inCooldown)
	assert.Equal(t, Continue, c.PreCheck())
}

func TestController_ResetConversationClearsTurnCount(t *testing.T) {
	c := NewController(DefaultConfig())
	c.Account("agent-a", "conv-1", 0)
	c.Account("agent-a", "conv-1", 0)
	assert.Equal(t, 2, c.TurnCount("conv-1"))

	c.ResetConversation("conv-1")
	assert.Equal(t, 0, c.TurnCount("conv-1"))
}
