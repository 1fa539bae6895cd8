// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package ratelimit implements the fabric's interaction control (C6):
// per-agent token-bucket throttling across a per-minute and a per-hour
// window, cooldown backoff once either overflows, and per-conversation
// turn accounting that caps how long a single exchange may run.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Verdict is the result of a PreCheck or Account call, telling the runtime
// loop what to do next.
type Verdict int

const (
	// Continue means the agent may proceed with its next turn normally.
	Continue Verdict = iota
	// Wait means the caller crossed a token-bucket threshold and must sleep
	// until the recorded cooldown elapses before trying again.
	Wait
	// Stop means the conversation has run past its turn cap; the runtime must
	// emit a STOP message and close the conversation.
	Stop
)

func (v Verdict) String() string {
	switch v {
	case Continue:
		return "CONTINUE"
	case Wait:
		return "WAIT"
	case Stop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// Config controls one agent's token-bucket and turn-cap limits.
type Config struct {
	// PerMinuteTokens and PerHourTokens bound how many tokens (e.g. LLM
	// tokens spent on a turn) the agent may consume in each rolling window.
	PerMinuteTokens int
	PerHourTokens   int

	// MaxTurns caps how many turns a single conversation may run before the
	// runtime is told to STOP it outright.
	MaxTurns int

	// CooldownBackoff is how long Account makes the caller wait once a
	// bucket overflows.
	CooldownBackoff time.Duration
}

// DefaultConfig is a reasonably permissive starting point for an
// interactive agent.
func DefaultConfig() Config {
	return Config{
		PerMinuteTokens: 60_000,
		PerHourTokens:   1_000_000,
		MaxTurns:        50,
		CooldownBackoff: 30 * time.Second,
	}
}

// CooldownListener is invoked whenever a cooldown starts, for observability
// sinks to surface it (§6.3's OnCooldown).
type CooldownListener func(agentID string, until time.Time)

// Controller is the per-agent rate/interaction controller the runtime loop
// consults before and after every reasoning-engine turn.
type Controller struct {
	mu sync.Mutex

	perMinute *rate.Limiter
	perHour   *rate.Limiter
	cfg       Config

	cooldownUntil time.Time
	turnCounters  map[string]int // conversationId -> turn count

	onCooldown CooldownListener
}

// NewController builds a Controller for one agent.
func NewController(cfg Config) *Controller {
	perMinuteRate := rate.Limit(float64(cfg.PerMinuteTokens) / 60.0)
	perHourRate := rate.Limit(float64(cfg.PerHourTokens) / 3600.0)

	return &Controller{
		perMinute:    rate.NewLimiter(perMinuteRate, cfg.PerMinuteTokens),
		perHour:      rate.NewLimiter(perHourRate, cfg.PerHourTokens),
		cfg:          cfg,
		turnCounters: make(map[string]int),
	}
}

// OnCooldown registers the listener invoked whenever a cooldown begins.
func (c *Controller) OnCooldown(listener CooldownListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCooldown = listener
}

// InCooldown reports whether the controller is currently in a cooldown
// period, and until when.
func (c *Controller) InCooldown() (bool, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cooldownUntil.IsZero() || time.Now().After(c.cooldownUntil) {
		return false, time.Time{}
	}
	return true, c.cooldownUntil
}

// PreCheck reports whether the agent may process msg right now: Wait if a
// cooldown is active, Continue otherwise. It does not itself consume
// tokens — Account does that once the actual cost of a turn is known.
func (c *Controller) PreCheck() Verdict {
	if inCooldown, _ := c.InCooldown(); inCooldown {
		return Wait
	}
	return Continue
}

// Account records tokens spent on a turn of conversationID, returning the
// resulting verdict: Stop once this turn takes the conversation past MaxTurns,
// Wait if accounting this turn overflowed the per-minute or per-hour
// bucket (which also starts a cooldown and invokes the listener), or
// Continue otherwise.
func (c *Controller) Account(agentID string, conversationID string, tokens int) Verdict {
	c.mu.Lock()
	c.turnCounters[conversationID]++
	turns := c.turnCounters[conversationID]
	c.mu.Unlock()

	if c.cfg.MaxTurns > 0 && turns > c.cfg.MaxTurns {
		return Stop
	}

	if tokens <= 0 {
		return Continue
	}

	minuteOK := c.perMinute.AllowN(time.Now(), tokens)
	hourOK := c.perHour.AllowN(time.Now(), tokens)
	if minuteOK && hourOK {
		return Continue
	}

	until := time.Now().Add(c.cfg.CooldownBackoff)
	c.mu.Lock()
	c.cooldownUntil = until
	listener := c.onCooldown
	c.mu.Unlock()

	if listener != nil {
		listener(agentID, until)
	}
	return Wait
}

// ResetConversation clears a conversation's turn counter, e.g. once it is
// closed via STOP.
func (c *Controller) ResetConversation(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.turnCounters, conversationID)
}

// TurnCount returns how many turns conversationID has accumulated so far.
func (c *Controller) TurnCount(conversationID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turnCounters[conversationID]
}
