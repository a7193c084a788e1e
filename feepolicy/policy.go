package feepolicy

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"gitlab.com/atechtools/token-launcher/common"
)

const (
	DefaultBasicTransferFeeBps = 20
	DefaultMaxRoyaltyBps       = 500

	// MaxBasisPoints is the hard ceiling of the transfer fee extension.
	MaxBasisPoints = 10_000

	LamportsPerSOL = 1_000_000_000
)

var (
	ErrUnknownTier  = errors.New("unknown tier")
	ErrInvalidSOL   = errors.New("invalid SOL amount")
	ErrBadSchedule  = errors.New("invalid fee schedule")
	lamportsPerSOL  = decimal.NewFromInt(LamportsPerSOL)
	solAmountRe     = regexp.MustCompile(`^[0-9]{1,20}(\.[0-9]{1,20})?$`)
	maxLamports     = decimal.RequireFromString("18446744073709551615")
	DefaultTreasury = solana.MustPublicKeyFromBase58("4yQYkmfmE7hiwauaTHNgHmS8arN1BU6xm4xPoNjcbv75")
)

// FeePolicy is the transfer-fee configuration installed on a new mint.
type FeePolicy struct {
	TransferFeeBasisPoints uint16
	MaxFeeAmount           uint64
	ConfigAuthority        solana.PublicKey
	WithdrawAuthority      solana.PublicKey
}

// Schedule holds every tier-dependent number. A Schedule is a plain value;
// nothing in this package keeps a global copy of it.
type Schedule struct {
	Treasury            solana.PublicKey
	BasicTransferFeeBps uint16
	MaxRoyaltyBps       uint16

	TierFeeLamports     [common.TierCount]uint64
	MetadataFeeLamports uint64

	// ClaimFeeLamports is paid to the treasury by creators claiming their
	// withheld transfer fees.
	ClaimFeeLamports uint64
}

func DefaultSchedule() Schedule {
	return Schedule{
		Treasury:            DefaultTreasury,
		BasicTransferFeeBps: DefaultBasicTransferFeeBps,
		MaxRoyaltyBps:       DefaultMaxRoyaltyBps,
		TierFeeLamports: [common.TierCount]uint64{
			common.Basic:      0,
			common.Advanced:   10_000_000,
			common.Enterprise: 15_000_000,
		},
		MetadataFeeLamports: 10_000_000,
		ClaimFeeLamports:    5_000_000,
	}
}

func (s Schedule) Validate() error {
	if s.Treasury.IsZero() {
		return fmt.Errorf("%w: treasury is not set", ErrBadSchedule)
	}
	if s.BasicTransferFeeBps > MaxBasisPoints {
		return fmt.Errorf("%w: basic fee %d bps", ErrBadSchedule, s.BasicTransferFeeBps)
	}
	if s.MaxRoyaltyBps > MaxBasisPoints {
		return fmt.Errorf("%w: royalty cap %d bps", ErrBadSchedule, s.MaxRoyaltyBps)
	}
	return nil
}

// Cap returns the largest transfer fee a tier may ever carry.
func (s Schedule) Cap(tier common.Tier) (uint16, error) {
	switch tier {
	case common.Basic:
		return s.BasicTransferFeeBps, nil
	case common.Advanced:
		return 0, nil
	case common.Enterprise:
		return s.MaxRoyaltyBps, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownTier, tier)
}

// Resolve maps a tier and an optional royalty onto the fee policy.
// The royalty is only looked at for Enterprise; it is clamped to the cap and
// a missing or zero royalty makes Enterprise behave like Advanced.
func (s Schedule) Resolve(tier common.Tier, royaltyBasisPoints *uint16, creator solana.PublicKey) (FeePolicy, error) {
	policy := FeePolicy{
		MaxFeeAmount:      math.MaxUint64,
		ConfigAuthority:   s.Treasury,
		WithdrawAuthority: s.Treasury,
	}
	switch tier {
	case common.Basic:
		policy.TransferFeeBasisPoints = s.BasicTransferFeeBps
	case common.Advanced:
	case common.Enterprise:
		if royaltyBasisPoints == nil || *royaltyBasisPoints == 0 {
			break
		}
		bps := *royaltyBasisPoints
		if bps > s.MaxRoyaltyBps {
			bps = s.MaxRoyaltyBps
		}
		policy.TransferFeeBasisPoints = bps
		policy.ConfigAuthority = creator
		policy.WithdrawAuthority = creator
	default:
		return FeePolicy{}, fmt.Errorf("%w: %s", ErrUnknownTier, tier)
	}
	return policy, nil
}

// CreationFeeLamports is the amount sent to the treasury with the launch:
// the tier creation fee plus the metadata fee.
func (s Schedule) CreationFeeLamports(tier common.Tier) (uint64, error) {
	if !tier.Valid() {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTier, tier)
	}
	fee := s.TierFeeLamports[tier]
	if fee > math.MaxUint64-s.MetadataFeeLamports {
		return 0, fmt.Errorf("%w: creation fee overflows", ErrBadSchedule)
	}
	return fee + s.MetadataFeeLamports, nil
}

// ParseSOL converts strings like "0.015SOL" or "0.5" to lamports.
func ParseSOL(s string) (uint64, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimSpace(strings.TrimSuffix(strings.ToUpper(raw), "SOL"))
	if strings.HasPrefix(raw, "-") {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidSOL, s)
	}
	if !solAmountRe.MatchString(raw) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSOL, s)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSOL, s)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidSOL, s)
	}
	lamports := amount.Mul(lamportsPerSOL)
	if !lamports.IsInteger() {
		return 0, fmt.Errorf("%w: %q is finer than one lamport", ErrInvalidSOL, s)
	}
	if lamports.GreaterThan(maxLamports) {
		return 0, fmt.Errorf("%w: %q is too large", ErrInvalidSOL, s)
	}
	return lamports.BigInt().Uint64(), nil
}

// FormatSOL is the inverse of ParseSOL.
func FormatSOL(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0).Div(lamportsPerSOL).String() + "SOL"
}
