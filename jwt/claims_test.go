package jwt

import (
	"encoding/json"
	"errors"
	"testing"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func TestNumericClaimAcceptsNumbersAndNumericStrings(t *testing.T) {
	claims := gjwt.MapClaims{
		"json":   json.Number("42"),
		"float":  float64(42),
		"string": "42",
		"exp":    json.Number("1.7e9"),
	}
	for _, name := range []string{"json", "float", "string"} {
		n, err := NumericClaim(claims, name)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		if v, ok := n.Int64(); !ok || v != 42 {
			t.Fatalf("%s: expected 42, got %q", name, n)
		}
	}
	exp, err := NumericClaim(claims, "exp")
	if err != nil {
		t.Fatalf("exp: %v", err)
	}
	if exp.Float64() != 1.7e9 {
		t.Fatalf("expected 1.7e9, got %v", exp.Float64())
	}
}

func TestNumericClaimRejectsMissingAndNonNumeric(t *testing.T) {
	claims := gjwt.MapClaims{
		"null":   nil,
		"word":   "forty-two",
		"bool":   true,
		"object": map[string]any{"v": 1},
		"blank":  "  ",
		"nan":    "NaN",
	}
	if _, err := NumericClaim(claims, "absent"); !errors.Is(err, ErrClaimMissing) {
		t.Fatalf("expected ErrClaimMissing, got %v", err)
	}
	if _, err := NumericClaim(claims, "null"); !errors.Is(err, ErrClaimMissing) {
		t.Fatalf("expected ErrClaimMissing for null, got %v", err)
	}
	for _, name := range []string{"word", "bool", "object", "blank", "nan"} {
		if _, err := NumericClaim(claims, name); !errors.Is(err, ErrClaimNotNumeric) {
			t.Fatalf("%s: expected ErrClaimNotNumeric, got %v", name, err)
		}
	}
}

func TestNumberInt64(t *testing.T) {
	cases := []struct {
		in   Number
		want int64
		ok   bool
	}{
		{in: "7", want: 7, ok: true},
		{in: "7.0", want: 7, ok: true},
		{in: "4.2e1", want: 42, ok: true},
		{in: "-3", want: -3, ok: true},
		{in: "7.5", ok: false},
		{in: "1e30", ok: false},
	}
	for _, tc := range cases {
		got, ok := tc.in.Int64()
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("Int64(%q) = %d, %v; want %d, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
