package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"
)

var ErrNotExists = errors.New("not exists")

type Tier int

const (
	Basic Tier = iota
	Advanced
	Enterprise

	TierCount
)

var tierNames = [TierCount]string{"basic", "advanced", "enterprise"}

func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Tier(i), nil
		}
	}
	return 0, &ValidationError{Field: "plan", Msg: fmt.Sprintf("unknown plan %q", s)}
}

func (t Tier) Valid() bool {
	return t >= 0 && t < TierCount
}

func (t Tier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type LaunchStatus int

const (
	Prepared LaunchStatus = iota
	Submitted
	Confirmed
	Failed
	TimedOut

	LaunchStatusCount
)

var launchStatusNames = [LaunchStatusCount]string{"prepared", "submitted", "confirmed", "failed", "timed_out"}

func ParseLaunchStatus(s string) (LaunchStatus, error) {
	for i, name := range launchStatusNames {
		if s == name {
			return LaunchStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown launch status %q", s)
}

func (s LaunchStatus) String() string {
	if s < 0 || s >= LaunchStatusCount {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return launchStatusNames[s]
}

func (s LaunchStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *LaunchStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseLaunchStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Pending reports whether the launch may still land on chain.
func (s LaunchStatus) Pending() bool {
	return s == Submitted || s == TimedOut
}

const SolanaAddrLen = 32

type SolanaAddress [SolanaAddrLen]byte

func SolanaAddressFromString(addrStr string) (addr SolanaAddress, err error) {
	val, err := base58.Decode(addrStr)
	if err != nil {
		return addr, fmt.Errorf("decode: %w", err)
	}
	if len(val) != SolanaAddrLen {
		return addr, fmt.Errorf("invalid length, expected %v, got %d", SolanaAddrLen, len(val))
	}
	copy(addr[:], val)
	return
}

func (addr SolanaAddress) String() string {
	return base58.Encode(addr[:])
}

func (addr SolanaAddress) IsZero() bool {
	return addr == SolanaAddress{}
}

func (addr SolanaAddress) MarshalText() ([]byte, error) {
	return []byte(addr.String()), nil
}

func (addr *SolanaAddress) UnmarshalText(text []byte) error {
	parsed, err := SolanaAddressFromString(string(text))
	if err != nil {
		return err
	}
	*addr = parsed
	return nil
}

type Image struct {
	Data        []byte `json:"data"`
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
}

// TokenSpec describes a single creation request. It is built once from user
// input and never mutated afterwards.
type TokenSpec struct {
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Decimals      uint8  `json:"decimals"`
	InitialSupply string `json:"initial_supply"`
	Tier          Tier   `json:"plan"`

	// RoyaltyBasisPoints is only honoured for Enterprise.
	RoyaltyBasisPoints *uint16 `json:"royalty_basis_points,omitempty"`

	Mintable               bool `json:"mintable"`
	Burnable               bool `json:"burnable"`
	FreezeAuthorityEnabled bool `json:"freeze_authority"`
	RenounceOwnership      bool `json:"renounce_ownership"`

	Description string            `json:"description,omitempty"`
	Image       *Image            `json:"image,omitempty"`
	Social      map[string]string `json:"social,omitempty"`
}

// UnmarshalJSON keeps the mint and freeze authorities unless the request
// turns them off explicitly.
func (s *TokenSpec) UnmarshalJSON(data []byte) error {
	type plain TokenSpec
	p := plain{
		Mintable:               true,
		FreezeAuthorityEnabled: true,
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = TokenSpec(p)
	return nil
}

type LaunchRecord struct {
	ID          string        `json:"id"`
	Mint        SolanaAddress `json:"mint"`
	Creator     SolanaAddress `json:"creator"`
	Tier        Tier          `json:"plan"`
	Name        string        `json:"name"`
	Symbol      string        `json:"symbol"`
	MetadataURI string        `json:"metadata_uri"`
	Status      LaunchStatus  `json:"status"`
	Signature   string        `json:"signature,omitempty"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	Registered  bool          `json:"registered"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	// LastValidBlockHeight bounds the blockhash of the launch transaction.
	// Past it an unconfirmed launch can no longer land.
	LastValidBlockHeight uint64 `json:"last_valid_block_height"`
}

// TokenRecord is the entry written to the external token registry once the
// mint transaction has landed.
type TokenRecord struct {
	MintAddress   SolanaAddress `json:"mint_address"`
	CreatorWallet SolanaAddress `json:"creator_wallet"`
	Plan          Tier          `json:"plan"`
	Name          string        `json:"name"`
	Symbol        string        `json:"symbol"`
	CreatedAt     time.Time     `json:"created_at"`
}
