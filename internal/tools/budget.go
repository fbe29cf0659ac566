// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig sets how often each tool may be called. Rates are calls
// per minute, with a burst of the same size; zero means unlimited.
type RateLimitConfig struct {
	DefaultPerMinute int
	PerTool          map[string]int
	Cooldowns        map[string]time.Duration
}

// RateForTool returns the calls-per-minute budget for a tool.
func (c RateLimitConfig) RateForTool(name string) int {
	if perMinute, ok := c.PerTool[name]; ok {
		return perMinute
	}
	return c.DefaultPerMinute
}

// CooldownForTool returns the minimum gap between two calls of a tool.
func (c RateLimitConfig) CooldownForTool(name string) time.Duration {
	return c.Cooldowns[name]
}

// TimeoutConfig sets how long a call may run before the registry gives up
// on it. Zero disables the deadline.
type TimeoutConfig struct {
	Default time.Duration
	PerTool map[string]time.Duration
}

// TimeoutForTool returns the deadline for one call of a tool.
func (t TimeoutConfig) TimeoutForTool(name string) time.Duration {
	if timeout, ok := t.PerTool[name]; ok {
		return timeout
	}
	return t.Default
}

// callBudget is what one tool may spend: tokens refilled at the configured
// rate, a quiet period after each call and a deadline per call.
type callBudget struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	cooldown time.Duration
	next     time.Time
	timeout  time.Duration
}

func newCallBudget(name string, rates RateLimitConfig, timeouts TimeoutConfig) *callBudget {
	b := &callBudget{
		cooldown: rates.CooldownForTool(name),
		timeout:  timeouts.TimeoutForTool(name),
	}
	if perMinute := rates.RateForTool(name); perMinute > 0 {
		b.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	return b
}

// take spends one call at now. Cooldown is checked before the bucket so a
// rejected call does not burn a token.
func (b *callBudget) take(now time.Time) error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Before(b.next) {
		return fmt.Errorf("%w: retry after %s", ErrToolInCooldown, b.next.Sub(now).Round(time.Second))
	}
	if b.limiter != nil && !b.limiter.AllowN(now, 1) {
		return ErrToolRateLimited
	}
	if b.cooldown > 0 {
		b.next = now.Add(b.cooldown)
	}
	return nil
}

func (b *callBudget) deadline() time.Duration {
	if b == nil {
		return 0
	}
	return b.timeout
}
