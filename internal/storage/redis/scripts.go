package redis

import "github.com/redis/go-redis/v9"

// All scripts take KEYS = {players list, index hash} and
// ARGV = {player id, player json, ttl milliseconds}.

const refreshTTL = `
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
  redis.call('PEXPIRE', KEYS[2], ttl)
end
`

const pushPlayer = `
local n = redis.call('RPUSH', KEYS[1], ARGV[2])
redis.call('HSET', KEYS[2], ARGV[1], n - 1)
`

// appendScript always succeeds and returns 1
var appendScript = redis.NewScript(pushPlayer + refreshTTL + `
return 1
`)

// appendUniqueScript returns 0 when the id is already known
var appendUniqueScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[2], ARGV[1]) == 1 then
  return 0
end
` + pushPlayer + refreshTTL + `
return 1
`)

// upsertScript returns 1 when an existing entry was replaced
var upsertScript = redis.NewScript(`
local replaced = 0
local pos = redis.call('HGET', KEYS[2], ARGV[1])
if pos then
  redis.call('LSET', KEYS[1], tonumber(pos), ARGV[2])
  replaced = 1
else
` + pushPlayer + `
end
` + refreshTTL + `
return replaced
`)
