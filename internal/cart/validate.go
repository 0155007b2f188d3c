package cart

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/cart-service/pkg/errors"
)

const (
	maxIDLength      = 128
	maxVariantLength = 64
	maxPriceDecimals = 4
)

var (
	idPattern     = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]*$`)
	userIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:@+\-]*$`)
	maxUnitPrice  = decimal.NewFromInt(1_000_000_000)

	// Variants are display labels such as "Large / Blue".
	variantPattern = regexp.MustCompile(`^[\pL\pN][\pL\pN ._:/#+\-]*$`)
)

// ValidateCartID checks a caller-supplied cart id before it becomes part of a key.
func ValidateCartID(id string) error {
	return validateID("cart_id", id, idPattern)
}

// ValidateProductID checks a product id.
func ValidateProductID(id string) error {
	return validateID("product_id", id, idPattern)
}

// ValidateUserID checks an owner id. Empty means guest and is allowed.
func ValidateUserID(id string) error {
	if id == "" {
		return nil
	}
	return validateID("user_id", id, userIDPattern)
}

// ValidateVariant checks an optional variant label. Empty means none.
func ValidateVariant(variant string) error {
	if variant == "" {
		return nil
	}
	if len(variant) > maxVariantLength {
		return fieldError("variant", "is too long")
	}
	return validateID("variant", variant, variantPattern)
}

func validateID(field, id string, pattern *regexp.Regexp) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fieldError(field, "is required")
	case len(id) > maxIDLength:
		return fieldError(field, "is too long")
	case !pattern.MatchString(id):
		return fieldError(field, "contains invalid characters")
	}
	return nil
}

// ParseUnitPrice parses a decimal price string. Prices are non-negative with
// at most four fractional digits.
func ParseUnitPrice(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, fieldError("unit_price", "is required")
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fieldError("unit_price", "is not a decimal number")
	}
	switch {
	case price.IsNegative():
		return decimal.Decimal{}, fieldError("unit_price", "must not be negative")
	case price.GreaterThan(maxUnitPrice):
		return decimal.Decimal{}, fieldError("unit_price", "is too large")
	case !price.Equal(price.Truncate(maxPriceDecimals)):
		return decimal.Decimal{}, fieldError("unit_price", "has too many decimal places")
	}
	return price, nil
}

func fieldError(field, reason string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, field+" "+reason).
		WithDetails(map[string]any{"field": field})
}
