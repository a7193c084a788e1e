package common

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/require"
)

func TestSolanaAddressEncoding(t *testing.T) {
	f := fuzz.New()
	for i := 0; i < 10; i++ {
		var addr SolanaAddress
		f.Fuzz(&addr)
		gotAddr, err := SolanaAddressFromString(addr.String())
		require.NoError(t, err)
		require.Equal(t, addr, gotAddr)

		text, err := addr.MarshalText()
		require.NoError(t, err)
		var fromText SolanaAddress
		require.NoError(t, fromText.UnmarshalText(text))
		require.Equal(t, addr, fromText)
		t.Logf("addr: %s", addr.String())
	}
}

func TestSolanaAddressFromStringInvalid(t *testing.T) {
	_, err := SolanaAddressFromString("0OIl")
	require.Error(t, err)

	_, err = SolanaAddressFromString("3yZe7d")
	require.ErrorContains(t, err, "invalid length")
}

func TestToBaseUnits(t *testing.T) {
	cases := []struct {
		supply   string
		decimals uint8
		want     uint64
	}{
		{"10", 3, 10_000},
		{"0", 9, 0},
		{"1000000", 9, 1_000_000_000_000_000},
		{"18446744073709551615", 0, math.MaxUint64},
		{"18446744073", 9, 18_446_744_073_000_000_000},
		{" 42 ", 2, 4200},
		{"000000000000000000000000007", 0, 7},
	}
	for _, tc := range cases {
		got, err := ToBaseUnits(tc.supply, tc.decimals)
		require.NoError(t, err, tc.supply)
		require.Equal(t, tc.want, got, tc.supply)
	}
}

func TestToBaseUnitsOverflow(t *testing.T) {
	_, err := ToBaseUnits("18446744073709551616", 0)
	require.ErrorIs(t, err, ErrSupplyOverflow)

	_, err = ToBaseUnits("18446744074", 9)
	require.ErrorIs(t, err, ErrSupplyOverflow)
	require.ErrorContains(t, err, "18446744073")

	_, err = ToBaseUnits("-1", 0)
	require.ErrorIs(t, err, ErrSupplyOverflow)

	_, err = ToBaseUnits("18446744073709551615", 1)
	require.ErrorIs(t, err, ErrSupplyOverflow)

	_, err = ToBaseUnits(strings.Repeat("9", 100000), 0)
	require.ErrorIs(t, err, ErrSupplyOverflow)
}

func TestToBaseUnitsInvalid(t *testing.T) {
	for _, supply := range []string{"", "abc", "1.5", "1e", "1e3", "1e30000000", "+5", "0x10"} {
		_, err := ToBaseUnits(supply, 6)
		require.ErrorIs(t, err, ErrValidation, supply)
		require.False(t, errors.Is(err, ErrSupplyOverflow))
	}
	_, err := ToBaseUnits("1", 10)
	require.ErrorIs(t, err, ErrValidation)
}

func validSpec() TokenSpec {
	return TokenSpec{
		Name:          "Aurora",
		Symbol:        "AUR",
		Decimals:      6,
		InitialSupply: "1000000",
		Tier:          Basic,
		Mintable:      true,
	}
}

func TestTokenSpecValidate(t *testing.T) {
	spec := validSpec()
	require.NoError(t, spec.Validate())

	broken := []func(s *TokenSpec){
		func(s *TokenSpec) { s.Name = "" },
		func(s *TokenSpec) { s.Name = "A" },
		func(s *TokenSpec) { s.Name = strings.Repeat("x", MaxNameLen+1) },
		func(s *TokenSpec) { s.Name = "Bad<Name>" },
		func(s *TokenSpec) { s.Name = "tab\tname" },
		func(s *TokenSpec) { s.Symbol = "aur" },
		func(s *TokenSpec) { s.Symbol = "A" },
		func(s *TokenSpec) { s.Symbol = "ABCDEFGHIJK" },
		func(s *TokenSpec) { s.Decimals = 10 },
		func(s *TokenSpec) { s.Tier = TierCount },
		func(s *TokenSpec) { s.InitialSupply = "1.5" },
		func(s *TokenSpec) { s.Image = &Image{Data: []byte{1}, ContentType: "image/bmp"} },
		func(s *TokenSpec) { s.Image = &Image{Data: make([]byte, MaxImageSize+1), ContentType: "image/png"} },
	}
	for i, mutate := range broken {
		spec := validSpec()
		mutate(&spec)
		err := spec.Validate()
		require.ErrorIs(t, err, ErrValidation, "case %d", i)
		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr))
		require.NotEmpty(t, vErr.Field)
	}

	spec = validSpec()
	spec.InitialSupply = "18446744073709551615"
	require.ErrorIs(t, spec.Validate(), ErrSupplyOverflow)

	spec = validSpec()
	spec.Image = &Image{Data: []byte("png"), ContentType: "image/PNG", Filename: "a.png"}
	require.NoError(t, spec.Validate())
}

func TestTokenSpecRoyalty(t *testing.T) {
	bps := uint16(300)
	spec := validSpec()
	spec.RoyaltyBasisPoints = &bps
	require.Nil(t, spec.Royalty())
	spec.Tier = Enterprise
	require.Equal(t, &bps, spec.Royalty())
}

func TestTierText(t *testing.T) {
	for tier := Basic; tier < TierCount; tier++ {
		text, err := tier.MarshalText()
		require.NoError(t, err)
		var got Tier
		require.NoError(t, got.UnmarshalText(text))
		require.Equal(t, tier, got)
	}
	got, err := ParseTier(" Enterprise ")
	require.NoError(t, err)
	require.Equal(t, Enterprise, got)

	_, err = ParseTier("premium")
	require.ErrorIs(t, err, ErrValidation)

	_, err = TierCount.MarshalText()
	require.Error(t, err)
}

func TestLaunchStatusPending(t *testing.T) {
	require.True(t, Submitted.Pending())
	require.True(t, TimedOut.Pending())
	require.False(t, Confirmed.Pending())
	require.False(t, Prepared.Pending())
	require.False(t, Failed.Pending())

	s, err := ParseLaunchStatus("timed_out")
	require.NoError(t, err)
	require.Equal(t, TimedOut, s)
}

func TestTokenSpecJSONDefaults(t *testing.T) {
	var spec TokenSpec
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Aurora","symbol":"AURA","decimals":9,"initial_supply":"1000000"}`), &spec))
	require.Equal(t, Basic, spec.Tier)
	require.True(t, spec.Mintable)
	require.True(t, spec.FreezeAuthorityEnabled)
	require.False(t, spec.RenounceOwnership)

	require.NoError(t, json.Unmarshal([]byte(`{"plan":"enterprise","mintable":false,"freeze_authority":false}`), &spec))
	require.Equal(t, Enterprise, spec.Tier)
	require.False(t, spec.Mintable)
	require.False(t, spec.FreezeAuthorityEnabled)
}
