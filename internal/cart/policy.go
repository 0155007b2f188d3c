package cart

import (
	"strconv"
	"time"

	"github.com/angelmondragon/cart-service/pkg/config"
)

// Limits bound the size of a single cart.
type Limits struct {
	MaxItems    int
	MaxQuantity int
}

// TTLPolicy decides how long a cart key lives after each write.
type TTLPolicy struct {
	User      time.Duration
	Guest     time.Duration
	Completed time.Duration
}

// PolicyFromConfig maps cart settings to limits and TTLs.
func PolicyFromConfig(cfg config.CartConfig) (Limits, TTLPolicy) {
	limits := Limits{MaxItems: cfg.MaxItems, MaxQuantity: cfg.MaxQuantity}
	ttl := TTLPolicy{User: cfg.UserTTL, Guest: cfg.GuestTTL, Completed: cfg.CompletedTTL}
	return limits, ttl
}

// For returns the TTL a cart owned by userID receives.
func (p TTLPolicy) For(userID string) time.Duration {
	if userID != "" {
		return p.User
	}
	return p.Guest
}

// Millis renders a duration as the millisecond string PX expects.
func Millis(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return strconv.FormatInt(ms, 10)
}

// NowMillis renders t as unix milliseconds.
func NowMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
