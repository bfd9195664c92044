package ledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// RawFromDecimalString converts a non-negative decimal string from the data
// source into a raw integer at the token's decimal count. The fractional part
// is right-padded or truncated to `decimals` digits; the value is never
// routed through a float, so large amounts keep every digit.
func RawFromDecimalString(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("negative amount %q", s)
	}

	// json.Number occasionally carries an exponent; normalize through the
	// decimal type, which is exact, before splitting on the point.
	if strings.ContainsAny(s, "eE") {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("malformed amount %q", s)
		}
		s = d.String()
	}

	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart, fracPart = s[:idx], s[idx+1:]
	}
	if intPart == "" {
		intPart = "0"
	}

	d := int(decimals)
	if len(fracPart) > d {
		fracPart = fracPart[:d]
	} else {
		fracPart += strings.Repeat("0", d-len(fracPart))
	}

	raw, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", s)
	}
	return raw, nil
}

// DecimalFromRaw converts a raw integer back to its human decimal value.
func DecimalFromRaw(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}
