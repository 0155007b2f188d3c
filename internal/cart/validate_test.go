package cart

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIDs(t *testing.T) {
	for _, ok := range []string{"c1", "3f1b2c9e-8d4a-4c5e-9a7b-1234567890ab", "guest.session_1", strings.Repeat("a", 128)} {
		assert.NoError(t, ValidateCartID(ok), ok)
	}
	for _, bad := range []string{"", "  ", "-leading", "has space", "new\nline", strings.Repeat("a", 129)} {
		assert.Error(t, ValidateCartID(bad), bad)
	}
	assert.NoError(t, ValidateUserID(""))
	assert.NoError(t, ValidateUserID("someone@example.com"))
	assert.Error(t, ValidateUserID("a b"))

	for _, ok := range []string{"", "Large", "Large / Blue", "size:XL", "Größe 42"} {
		assert.NoError(t, ValidateVariant(ok), ok)
	}
	for _, bad := range []string{" lead", "<script>", "new\nline", strings.Repeat("v", 65)} {
		assert.Error(t, ValidateVariant(bad), bad)
	}
}

func TestParseUnitPrice(t *testing.T) {
	price, err := ParseUnitPrice(" 19.9900 ")
	require.NoError(t, err)
	assert.Equal(t, "19.99", price.String())

	for _, ok := range []string{"0", "0.0001", "1000000000"} {
		_, err := ParseUnitPrice(ok)
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"", "-0.01", "0.00001", "1e12", "ten"} {
		_, err := ParseUnitPrice(bad)
		assert.Error(t, err, bad)
	}
}

func TestTTLPolicyAndMillis(t *testing.T) {
	p := TTLPolicy{User: time.Hour, Guest: time.Minute, Completed: time.Second}
	assert.Equal(t, time.Hour, p.For("u1"))
	assert.Equal(t, time.Minute, p.For(""))
	assert.Equal(t, "60000", Millis(time.Minute))
	assert.Equal(t, "1", Millis(time.Microsecond))
	assert.Equal(t, "1700000000000", NowMillis(time.UnixMilli(1_700_000_000_000)))
}

func TestCartAggregates(t *testing.T) {
	c := emptyCart("c1")
	assert.True(t, c.IsGuest())
	early := time.UnixMilli(1)
	late := time.UnixMilli(2)
	p1, _ := ParseUnitPrice("2.50")
	p2, _ := ParseUnitPrice("0.10")
	c.Items["b"] = LineItem{ProductID: "b", Quantity: 2, UnitPrice: p1, AddedAt: late}
	c.Items["a"] = LineItem{ProductID: "a", Quantity: 3, UnitPrice: p2, AddedAt: late}
	c.Items["z"] = LineItem{ProductID: "z", Quantity: 1, UnitPrice: p2, AddedAt: early}

	assert.Equal(t, 3, c.ItemCount())
	assert.Equal(t, 6, c.TotalQuantity())
	assert.Equal(t, "5.4", c.Subtotal().String())
	sorted := c.SortedItems()
	require.Len(t, sorted, 3)
	assert.Equal(t, []string{"z", "a", "b"}, []string{sorted[0].ProductID, sorted[1].ProductID, sorted[2].ProductID})
}
