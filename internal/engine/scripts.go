package engine

import "github.com/redis/go-redis/v9"

// reserveScript implements spec §4.C steps 1-6 as a single atomic unit: no
// other operation on the same counter can interleave between the
// availability check and the decrement, because the whole script runs on
// Redis's single-threaded scripting engine. This is the same
// redis.NewScript(...).Run(ctx, rdb, keys, args...) idiom the teacher uses
// for its token-bucket rate limiter (internal/middleware/ratelimit.go),
// generalized from a token counter to a stock counter plus a record write
// and an index insert.
//
// KEYS[1] = inventory:{sku}
// KEYS[2] = reservation:{id}
// KEYS[3] = expiring_reservations (sorted set)
// ARGV[1] = quantity requested
// ARGV[2] = reservation record JSON (already carries id/sku/quantity/user_id/created_at/expires_at/status)
// ARGV[3] = expires_at score (unix milliseconds)
//
// Returns {code, value}:
//
//	code 1  -> reserved; value = remaining available units
//	code 0  -> insufficient stock; value = available units at time of check
//	code -1 -> counter key does not exist (NOT_INITIALIZED)
var reserveScript = redis.NewScript(`
    local inv_key = KEYS[1]
    local res_key = KEYS[2]
    local idx_key = KEYS[3]
    local quantity = tonumber(ARGV[1])
    local record = ARGV[2]
    local expires_at = tonumber(ARGV[3])

    if redis.call('EXISTS', inv_key) == 0 then
        return {-1, 0}
    end

    local available = tonumber(redis.call('GET', inv_key))
    if available < quantity then
        return {0, available}
    end

    local remaining = redis.call('DECRBY', inv_key, quantity)
    redis.call('SET', res_key, record)
    redis.call('ZADD', idx_key, expires_at, string.sub(res_key, 13))
    return {1, remaining}
`)

// terminateScript implements the shared core of cancel (spec §4.C) and
// expire (spec §4.C): read the record, optionally check ownership, restore
// the counter, and atomically remove the record and its index entry. Using
// cjson (bundled with Redis's Lua runtime) lets the script inspect the
// record without a round trip back to Go between the read and the delete,
// which is what keeps confirm-vs-expire/cancel races race-free (spec §5).
//
// KEYS[1] = unused placeholder; the caller does not know the sku, so this
//
//	script resolves it from the decoded record and computes the
//	inventory:{sku} key in Lua.
//
// KEYS[2] = reservation:{id}
// KEYS[3] = expiring_reservations
// ARGV[1] = requesting user_id, or "" to skip the ownership check (expire)
//
// Returns {code, value}:
//
//	code 1  -> terminated; value = the record JSON (for audit logging)
//	code 0  -> absent already (ALREADY_TERMINAL / NOT_FOUND)
//	code -1 -> present but owned by a different user (FORBIDDEN)
var terminateScript = redis.NewScript(`
    local res_key = KEYS[2]
    local idx_key = KEYS[3]
    local requesting_user = ARGV[1]

    local raw = redis.call('GET', res_key)
    if not raw then
        return {0, ''}
    end

    local rec = cjson.decode(raw)
    if requesting_user ~= '' and rec.user_id ~= requesting_user then
        return {-1, ''}
    end

    local inv_key = 'inventory:' .. rec.sku
    redis.call('INCRBY', inv_key, rec.quantity)
    redis.call('DEL', res_key)
    redis.call('ZREM', idx_key, rec.id)
    return {1, raw}
`)
