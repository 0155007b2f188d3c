package cart

import (
	"context"
	"fmt"

	redisx "github.com/angelmondragon/cart-service/pkg/redis"
)

// Script names as registered with the script registry.
const (
	ScriptGetCart    = "cart_get"
	ScriptUpsertItem = "cart_upsert_item"
	ScriptRemoveItem = "cart_remove_item"
	ScriptMerge      = "cart_merge"
	ScriptTransition = "cart_transition"
)

// ScriptLoader registers a script source and returns its handle.
type ScriptLoader interface {
	Load(ctx context.Context, name, source string) (redisx.ScriptHandle, error)
}

// ScriptInvoker runs a registered script.
type ScriptInvoker interface {
	Invoke(ctx context.Context, h redisx.ScriptHandle, keys []string, args ...any) (any, error)
}

// Handles groups the loaded cart scripts.
type Handles struct {
	Get        redisx.ScriptHandle
	UpsertItem redisx.ScriptHandle
	RemoveItem redisx.ScriptHandle
	Merge      redisx.ScriptHandle
	Transition redisx.ScriptHandle
}

// Sources returns every cart script keyed by registry name.
func Sources() map[string]string {
	return map[string]string{
		ScriptGetCart:    getCartScript,
		ScriptUpsertItem: prelude + upsertItemScript,
		ScriptRemoveItem: prelude + removeItemScript,
		ScriptMerge:      prelude + mergeScript,
		ScriptTransition: prelude + transitionScript,
	}
}

// LoadScripts uploads every cart script. It runs once at startup, before the
// service accepts traffic.
func LoadScripts(ctx context.Context, loader ScriptLoader) (Handles, error) {
	var (
		h   Handles
		err error
	)
	sources := Sources()
	targets := []struct {
		name string
		dst  *redisx.ScriptHandle
	}{
		{ScriptGetCart, &h.Get},
		{ScriptUpsertItem, &h.UpsertItem},
		{ScriptRemoveItem, &h.RemoveItem},
		{ScriptMerge, &h.Merge},
		{ScriptTransition, &h.Transition},
	}
	for _, target := range targets {
		*target.dst, err = loader.Load(ctx, target.name, sources[target.name])
		if err != nil {
			return Handles{}, fmt.Errorf("load script %s: %w", target.name, err)
		}
	}
	return h, nil
}

// Every mutating script shares this prelude. Replies are JSON envelopes:
// {"ok":true,"exists":..,"changed":..,"cart":{..}} or {"ok":false,"err":CODE,..}.
const prelude = `
local function load_cart(key)
  local raw = redis.call('GET', key)
  if not raw then
    return nil
  end
  local cart = cjson.decode(raw)
  if type(cart.items) ~= 'table' then
    cart.items = {}
  end
  if type(cart.state) ~= 'string' then
    cart.state = 'ACTIVE'
  end
  if type(cart.user_id) ~= 'string' then
    cart.user_id = ''
  end
  return cart
end

local function new_cart(id, owner, now)
  return {
    id = id,
    user_id = owner,
    state = 'ACTIVE',
    items = {},
    created_at = now,
    updated_at = now,
    version = 0,
  }
end

local function count_items(items)
  local n = 0
  for _ in pairs(items) do
    n = n + 1
  end
  return n
end

local function ttl_for(cart, user_ttl, guest_ttl)
  if cart.user_id ~= '' then
    return user_ttl
  end
  return guest_ttl
end

local function touch(cart, now)
  cart.updated_at = now
  cart.version = (tonumber(cart.version) or 0) + 1
end

local function save(key, cart, ttl)
  redis.call('SET', key, cjson.encode(cart), 'PX', ttl)
end

local function fail(code, extra)
  local out = extra or {}
  out.ok = false
  out.err = code
  return cjson.encode(out)
end

local function done(cart, changed, extra)
  local out = extra or {}
  out.ok = true
  out.exists = cart ~= nil
  out.changed = changed
  out.cart = cart
  return cjson.encode(out)
end
`

// Read-only: never touches the TTL.
const getCartScript = `
local raw = redis.call('GET', KEYS[1])
if not raw then
  return '{"ok":true,"exists":false,"changed":false}'
end
local ttl = redis.call('PTTL', KEYS[1])
return '{"ok":true,"exists":true,"changed":false,"ttl_ms":' .. ttl .. ',"cart":' .. raw .. '}'
`

// ARGV: cart_id, product_id, quantity, unit_price, now_ms, max_items,
// max_quantity, user_ttl_ms, guest_ttl_ms, user_id, variant.
const upsertItemScript = `
local key = KEYS[1]
local product_id = ARGV[2]
local qty = tonumber(ARGV[3])
local now = tonumber(ARGV[5])
local max_items = tonumber(ARGV[6])
local max_qty = tonumber(ARGV[7])
local owner = ARGV[10]
local variant = ARGV[11] or ''

local cart = load_cart(key)
if cart == nil then
  if qty <= 0 then
    return done(nil, false)
  end
  cart = new_cart(ARGV[1], owner, now)
end
if cart.state == 'CHECKOUT_COMPLETE' then
  return fail('INVALID_STATE', {state = cart.state})
end

local changed = false
local item = cart.items[product_id]
if qty <= 0 then
  if item ~= nil then
    cart.items[product_id] = nil
    changed = true
  end
else
  if qty > max_qty then
    return fail('CAPACITY', {limit = 'max_quantity', max = max_qty, requested = qty})
  end
  if item == nil then
    local distinct = count_items(cart.items)
    if distinct >= max_items then
      return fail('CAPACITY', {limit = 'max_items', max = max_items, requested = distinct + 1})
    end
    item = {unit_price = ARGV[4], added_at = now}
  end
  if item.quantity ~= qty then
    changed = true
  end
  item.quantity = qty
  if variant ~= '' and item.variant ~= variant then
    item.variant = variant
    changed = true
  end
  cart.items[product_id] = item
end

if owner ~= '' and cart.user_id == '' then
  cart.user_id = owner
  changed = true
end
if changed then
  touch(cart, now)
end
save(key, cart, ttl_for(cart, ARGV[8], ARGV[9]))
return done(cart, changed)
`

// ARGV: product_id, now_ms, user_ttl_ms, guest_ttl_ms.
const removeItemScript = `
local key = KEYS[1]
local product_id = ARGV[1]
local cart = load_cart(key)
if cart == nil then
  return done(nil, false)
end
if cart.state == 'CHECKOUT_COMPLETE' then
  return fail('INVALID_STATE', {state = cart.state})
end
local changed = false
if cart.items[product_id] ~= nil then
  cart.items[product_id] = nil
  touch(cart, tonumber(ARGV[2]))
  changed = true
end
save(key, cart, ttl_for(cart, ARGV[3], ARGV[4]))
return done(cart, changed)
`

// KEYS: guest, user. ARGV: user_cart_id, owner, now_ms, max_items,
// max_quantity, user_ttl_ms, guest_ttl_ms, resolution. Either every write
// happens or none does.
const mergeScript = `
local guest = load_cart(KEYS[1])
local user = load_cart(KEYS[2])
local owner = ARGV[2]
local now = tonumber(ARGV[3])
local max_items = tonumber(ARGV[4])
local max_qty = tonumber(ARGV[5])
local resolution = ARGV[8] or 'sum'

if guest == nil then
  return done(user, false, {merged = 0, conflicts = 0})
end
if guest.state ~= 'ACTIVE' then
  return fail('INVALID_STATE', {state = guest.state, side = 'guest'})
end
if guest.user_id ~= '' and guest.user_id ~= owner then
  return fail('OWNER_MISMATCH', {side = 'guest'})
end
if user ~= nil and user.state == 'CHECKOUT_COMPLETE' then
  return fail('INVALID_STATE', {state = user.state, side = 'user'})
end
if user == nil then
  user = new_cart(ARGV[1], owner, now)
elseif owner ~= '' and user.user_id ~= '' and user.user_id ~= owner then
  return fail('OWNER_MISMATCH', {side = 'user'})
end

local function line(quantity, from)
  if quantity > max_qty then
    quantity = max_qty
  end
  return {quantity = quantity, unit_price = from.unit_price, added_at = from.added_at, variant = from.variant}
end

local items = {}
for pid, it in pairs(user.items) do
  items[pid] = it
end
local merged = 0
local conflicts = 0
for pid, it in pairs(guest.items) do
  local q = tonumber(it.quantity) or 0
  if q > 0 then
    local existing = items[pid]
    if existing ~= nil then
      conflicts = conflicts + 1
      if resolution == 'last-write-wins' then
        items[pid] = line(q, it)
      else
        items[pid] = line((tonumber(existing.quantity) or 0) + q, existing)
      end
    else
      items[pid] = line(q, it)
    end
    merged = merged + 1
  end
end

local distinct = count_items(items)
if distinct > max_items then
  return fail('CAPACITY', {limit = 'max_items', max = max_items, requested = distinct})
end

user.items = items
if owner ~= '' and user.user_id == '' then
  user.user_id = owner
end
touch(user, now)
save(KEYS[2], user, ttl_for(user, ARGV[6], ARGV[7]))
redis.call('DEL', KEYS[1])
return done(user, true, {merged = merged, conflicts = conflicts})
`

// ARGV: from_state, to_state, now_ms, token, user_ttl_ms, guest_ttl_ms,
// completed_ttl_ms. The token is the checkout id when starting and a
// completion id when completing; a replay carrying the token that already
// produced to_state returns the stored cart unchanged.
const transitionScript = `
local key = KEYS[1]
local token = ARGV[4]
local cart = load_cart(key)
if cart == nil then
  return fail('NOT_FOUND')
end
if cart.state == ARGV[2] and token ~= '' and type(cart.checkout) == 'table' then
  local applied = cart.checkout.id
  if ARGV[2] == 'CHECKOUT_COMPLETE' then
    applied = cart.checkout.completion_id
  end
  if applied == token then
    return done(cart, false)
  end
end
if cart.state ~= ARGV[1] then
  return fail('INVALID_STATE', {state = cart.state})
end
local now = tonumber(ARGV[3])
local ttl
if ARGV[2] == 'CHECKOUT_STARTED' then
  if count_items(cart.items) == 0 then
    return fail('EMPTY_CART', {state = cart.state})
  end
  local snapshot = {}
  for pid, it in pairs(cart.items) do
    snapshot[pid] = {quantity = it.quantity, unit_price = it.unit_price, added_at = it.added_at, variant = it.variant}
  end
  cart.checkout = {id = token, started_at = now, completed_at = 0, items = snapshot}
  ttl = ttl_for(cart, ARGV[5], ARGV[6])
elseif ARGV[2] == 'CHECKOUT_COMPLETE' then
  if type(cart.checkout) ~= 'table' then
    return fail('MISSING_SNAPSHOT', {state = cart.state})
  end
  cart.checkout.completed_at = now
  cart.checkout.completion_id = token
  ttl = ARGV[7]
else
  return fail('INVALID_STATE', {state = cart.state})
end
cart.state = ARGV[2]
touch(cart, now)
save(key, cart, ttl)
return done(cart, true)
`
