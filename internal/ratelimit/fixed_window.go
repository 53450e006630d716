package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// fixedWindowScript rolls, checks and optionally consumes both windows of one user.
// KEYS: hourly, daily. ARGV: now_ms, hourly_limit, hourly_window_ms, daily_limit,
// daily_window_ms, consume. Returns {denied_scope, hourly_count, hourly_reset_ms,
// daily_count, daily_reset_ms} where denied_scope is 0 (allowed), 1 (hourly) or 2 (daily).
const fixedWindowScript = `
local now = tonumber(ARGV[1])
local hourlyLimit = tonumber(ARGV[2])
local hourlyWindow = tonumber(ARGV[3])
local dailyLimit = tonumber(ARGV[4])
local dailyWindow = tonumber(ARGV[5])
local consume = tonumber(ARGV[6])

local function load(key, window)
  local data = redis.call("HMGET", key, "count", "reset_at")
  local count = tonumber(data[1])
  local resetAt = tonumber(data[2])
  if count == nil or resetAt == nil or now >= resetAt then
    return 0, now + window
  end
  return count, resetAt
end

local hourlyCount, hourlyReset = load(KEYS[1], hourlyWindow)
local dailyCount, dailyReset = load(KEYS[2], dailyWindow)

local denied = 0
if hourlyCount >= hourlyLimit then
  denied = 1
elseif dailyCount >= dailyLimit then
  denied = 2
end

if consume == 1 then
  if denied == 0 then
    hourlyCount = hourlyCount + 1
    dailyCount = dailyCount + 1
  end
  redis.call("HSET", KEYS[1], "count", hourlyCount, "reset_at", hourlyReset)
  redis.call("PEXPIRE", KEYS[1], hourlyReset - now)
  redis.call("HSET", KEYS[2], "count", dailyCount, "reset_at", dailyReset)
  redis.call("PEXPIRE", KEYS[2], dailyReset - now)
end

return {denied, hourlyCount, hourlyReset, dailyCount, dailyReset}
`

type FixedWindow struct {
	client redis.UniversalClient
	script *redis.Script
}

type windowState struct {
	denied        int64
	hourlyCount   int64
	hourlyResetAt time.Time
	dailyCount    int64
	dailyResetAt  time.Time
}

func NewFixedWindow(client redis.UniversalClient) *FixedWindow {
	if client == nil {
		return nil
	}
	return &FixedWindow{
		client: client,
		script: redis.NewScript(fixedWindowScript),
	}
}

func (f *FixedWindow) run(ctx context.Context, hourlyKey, dailyKey string, hourlyLimit, dailyLimit int64, now time.Time, consume bool) (windowState, error) {
	if f == nil || f.client == nil {
		return windowState{}, errors.New("rate limiter not configured")
	}
	if hourlyKey == "" || dailyKey == "" {
		return windowState{}, errors.New("rate limiter key is empty")
	}
	if hourlyLimit <= 0 || dailyLimit <= 0 {
		return windowState{}, errors.New("rate limiter limits must be positive")
	}

	consumeFlag := 0
	if consume {
		consumeFlag = 1
	}

	res, err := f.script.Run(
		ctx,
		f.client,
		[]string{hourlyKey, dailyKey},
		now.UnixMilli(),
		hourlyLimit,
		time.Hour.Milliseconds(),
		dailyLimit,
		(24 * time.Hour).Milliseconds(),
		consumeFlag,
	).Int64Slice()
	if err != nil {
		return windowState{}, err
	}
	if len(res) < 5 {
		return windowState{}, errors.New("invalid rate limit script response")
	}

	return windowState{
		denied:        res[0],
		hourlyCount:   res[1],
		hourlyResetAt: time.UnixMilli(res[2]).UTC(),
		dailyCount:    res[3],
		dailyResetAt:  time.UnixMilli(res[4]).UTC(),
	}, nil
}
