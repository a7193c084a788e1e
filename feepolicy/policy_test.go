package feepolicy

import (
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/require"
	"gitlab.com/atechtools/token-launcher/common"
)

func bps(v uint16) *uint16 {
	return &v
}

func TestResolve(t *testing.T) {
	s := DefaultSchedule()
	creator := solana.NewWallet().PublicKey()

	cases := []struct {
		name      string
		tier      common.Tier
		royalty   *uint16
		wantBps   uint16
		authority solana.PublicKey
	}{
		{name: "basic", tier: common.Basic, wantBps: 20, authority: s.Treasury},
		{name: "basic ignores royalty", tier: common.Basic, royalty: bps(300), wantBps: 20, authority: s.Treasury},
		{name: "advanced", tier: common.Advanced, wantBps: 0, authority: s.Treasury},
		{name: "enterprise no royalty", tier: common.Enterprise, wantBps: 0, authority: s.Treasury},
		{name: "enterprise zero royalty", tier: common.Enterprise, royalty: bps(0), wantBps: 0, authority: s.Treasury},
		{name: "enterprise royalty", tier: common.Enterprise, royalty: bps(300), wantBps: 300, authority: creator},
		{name: "enterprise clamped", tier: common.Enterprise, royalty: bps(750), wantBps: 500, authority: creator},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			policy, err := s.Resolve(tc.tier, tc.royalty, creator)
			require.NoError(t, err)
			require.Equal(t, tc.wantBps, policy.TransferFeeBasisPoints)
			require.Equal(t, uint64(math.MaxUint64), policy.MaxFeeAmount)
			require.Equal(t, tc.authority, policy.WithdrawAuthority)
			require.Equal(t, tc.authority, policy.ConfigAuthority)

			limit, err := s.Cap(tc.tier)
			require.NoError(t, err)
			require.LessOrEqual(t, policy.TransferFeeBasisPoints, limit)
		})
	}
}

func TestResolveNeverExceedsCap(t *testing.T) {
	s := DefaultSchedule()
	creator := solana.NewWallet().PublicKey()
	f := fuzz.New().NilChance(0.2)
	for i := 0; i < 1000; i++ {
		var royalty *uint16
		f.Fuzz(&royalty)
		for tier := common.Basic; tier < common.TierCount; tier++ {
			policy, err := s.Resolve(tier, royalty, creator)
			require.NoError(t, err)
			limit, err := s.Cap(tier)
			require.NoError(t, err)
			require.LessOrEqual(t, policy.TransferFeeBasisPoints, limit)
		}
	}
}

func TestResolveUnknownTier(t *testing.T) {
	s := DefaultSchedule()
	_, err := s.Resolve(common.TierCount, nil, solana.PublicKey{})
	require.ErrorIs(t, err, ErrUnknownTier)
	_, err = s.Cap(common.Tier(-1))
	require.ErrorIs(t, err, ErrUnknownTier)
	_, err = s.CreationFeeLamports(common.TierCount)
	require.ErrorIs(t, err, ErrUnknownTier)
}

func TestCreationFeeLamports(t *testing.T) {
	s := DefaultSchedule()
	want := map[common.Tier]uint64{
		common.Basic:      10_000_000,
		common.Advanced:   20_000_000,
		common.Enterprise: 25_000_000,
	}
	for tier, lamports := range want {
		got, err := s.CreationFeeLamports(tier)
		require.NoError(t, err)
		require.Equal(t, lamports, got, tier.String())
	}

	s.MetadataFeeLamports = 0
	got, err := s.CreationFeeLamports(common.Basic)
	require.NoError(t, err)
	require.Zero(t, got)
}

func TestParseSOL(t *testing.T) {
	cases := map[string]uint64{
		"0.015SOL":       15_000_000,
		"0.01 SOL":       10_000_000,
		"1":              1_000_000_000,
		"0":              0,
		"0.000000001sol": 1,
	}
	for in, want := range cases {
		got, err := ParseSOL(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
		back, err := ParseSOL(FormatSOL(got))
		require.NoError(t, err)
		require.Equal(t, got, back)
	}
	for _, in := range []string{"", "abc", "-1SOL", "0.0000000001", "20000000000SOL", "1e3", "1e30000000SOL", ".5"} {
		_, err := ParseSOL(in)
		require.ErrorIs(t, err, ErrInvalidSOL, in)
	}
}

func TestScheduleValidate(t *testing.T) {
	require.NoError(t, DefaultSchedule().Validate())

	s := DefaultSchedule()
	s.Treasury = solana.PublicKey{}
	require.ErrorIs(t, s.Validate(), ErrBadSchedule)

	s = DefaultSchedule()
	s.MaxRoyaltyBps = MaxBasisPoints + 1
	require.ErrorIs(t, s.Validate(), ErrBadSchedule)
}
