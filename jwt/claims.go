package jwt

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claim names used by the login service.
const (
	ClaimUserID = "user_id"
	ClaimExp    = "exp"
	ClaimRole   = "role"
	ClaimEmail  = "email"
	ClaimJTI    = "jti"
)

var (
	// ErrClaimMissing reports an absent or null claim.
	ErrClaimMissing = errors.New("claim missing")
	// ErrClaimNotNumeric reports a claim that is neither a JSON number nor a numeric string.
	ErrClaimNotNumeric = errors.New("claim not numeric")
)

// Number is the decimal text of a numeric claim.
type Number string

// NumericClaim returns the named claim as a [Number]. JSON numbers and
// strings holding a finite decimal number are accepted.
func NumericClaim(claims jwt.MapClaims, name string) (Number, error) {
	raw, ok := claims[name]
	if !ok || raw == nil {
		return "", ErrClaimMissing
	}

	switch v := raw.(type) {
	case json.Number:
		return numberFromText(v.String())
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", ErrClaimNotNumeric
		}
		return Number(strconv.FormatFloat(v, 'f', -1, 64)), nil
	case int64:
		return Number(strconv.FormatInt(v, 10)), nil
	case int:
		return Number(strconv.Itoa(v)), nil
	case string:
		return numberFromText(v)
	default:
		return "", ErrClaimNotNumeric
	}
}

func numberFromText(s string) (Number, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrClaimNotNumeric
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", ErrClaimNotNumeric
	}
	return Number(s), nil
}

// Int64 returns n as an integer when it has no fractional part and fits
// in int64.
func (n Number) Int64() (int64, bool) {
	if v, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Float64 returns n as a float. Invalid text yields 0.
func (n Number) Float64() float64 {
	f, _ := strconv.ParseFloat(string(n), 64)
	return f
}

// StringClaim returns the named claim when it is a string, or "".
func StringClaim(claims jwt.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}
