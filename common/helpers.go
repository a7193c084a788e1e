package common

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrSupplyOverflow indicates that the requested supply does not fit into
	// the u64 amount used by the token program once decimals are applied.
	ErrSupplyOverflow = errors.New("supply overflow")

	maxU64 = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)
)

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n == 0 {
		return invalid("name", "token name is required")
	}
	if n < MinNameLen {
		return invalid("name", "must be at least %d characters long", MinNameLen)
	}
	if n > MaxNameLen {
		return invalid("name", "must be %d characters or less", MaxNameLen)
	}
	if nameForbiddenRe.MatchString(name) {
		return invalid("name", "contains invalid characters")
	}
	return nil
}

func ValidateSymbol(symbol string) error {
	if !symbolRe.MatchString(symbol) {
		return invalid("symbol", "must be 2-10 characters, uppercase letters and numbers only")
	}
	return nil
}

func ValidateImage(img *Image) error {
	if img == nil {
		return nil
	}
	if !AllowedImageTypes[strings.ToLower(img.ContentType)] {
		return invalid("image", "unsupported content type %q", img.ContentType)
	}
	if len(img.Data) == 0 {
		return invalid("image", "empty file")
	}
	if len(img.Data) > MaxImageSize {
		return invalid("image", "file is larger than %d bytes", MaxImageSize)
	}
	return nil
}

// Validate checks everything that can be checked without touching the
// network, including the supply conversion.
func (s *TokenSpec) Validate() error {
	if err := ValidateName(s.Name); err != nil {
		return err
	}
	if err := ValidateSymbol(s.Symbol); err != nil {
		return err
	}
	if s.Decimals > MaxDecimals {
		return invalid("decimals", "must be between 0 and %d", MaxDecimals)
	}
	if !s.Tier.Valid() {
		return invalid("plan", "unknown plan %d", int(s.Tier))
	}
	if err := ValidateImage(s.Image); err != nil {
		return err
	}
	_, err := ToBaseUnits(s.InitialSupply, s.Decimals)
	return err
}

// Royalty returns the requested royalty for Enterprise specs and nil for
// every other tier.
func (s *TokenSpec) Royalty() *uint16 {
	if s.Tier != Enterprise {
		return nil
	}
	return s.RoyaltyBasisPoints
}

// ToBaseUnits converts a whole-token supply into raw token units,
// e.g. "10" with 3 decimals becomes 10_000.
func ToBaseUnits(initialSupply string, decimals uint8) (uint64, error) {
	if decimals > MaxDecimals {
		return 0, invalid("decimals", "must be between 0 and %d", MaxDecimals)
	}
	raw := strings.TrimSpace(initialSupply)
	if raw == "" {
		return 0, invalid("supply", "initial supply is required")
	}
	// Plain digits only: exponents like "1e30000000" would otherwise be
	// expanded before the range check.
	if !supplyRe.MatchString(raw) {
		return 0, invalid("supply", "%q is not a whole number", initialSupply)
	}
	if strings.HasPrefix(raw, "-") {
		return 0, fmt.Errorf("%w: supply cannot be negative", ErrSupplyOverflow)
	}
	if len(strings.TrimLeft(raw, "0")) > len(maxU64.String()) {
		return 0, fmt.Errorf("%w: supply exceeds u64 maximum", ErrSupplyOverflow)
	}
	supply, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, invalid("supply", "%q is not a number", initialSupply)
	}
	if supply.GreaterThan(maxU64) {
		return 0, fmt.Errorf("%w: supply exceeds u64 maximum", ErrSupplyOverflow)
	}
	amount := supply.Shift(int32(decimals))
	if amount.GreaterThan(maxU64) {
		maxSupply := maxU64.Shift(-int32(decimals)).Floor()
		return 0, fmt.Errorf("%w: maximum supply for %d decimals is %s", ErrSupplyOverflow, decimals, maxSupply.String())
	}
	return amount.BigInt().Uint64(), nil
}
