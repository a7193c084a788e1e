package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/atechtools/token-launcher/common"
	"gitlab.com/atechtools/token-launcher/feepolicy"
)

func defaultConfig() Config {
	return Config{
		BasicFee:            "0SOL",
		AdvancedFee:         "0.01SOL",
		EnterpriseFee:       "0.015SOL",
		MetadataFee:         "0.01SOL",
		ClaimFee:            "0.005SOL",
		BasicTransferFeeBps: 20,
		MaxRoyaltyBps:       500,
		ConfirmationTimeout: 2 * time.Minute,
		BroadcastAttempts:   3,
		BroadcastRetryDelay: time.Second,
		ReconcileInterval:   time.Minute,
	}
}

func TestScheduleFromConfigDefaults(t *testing.T) {
	schedule, err := ScheduleFromConfig(defaultConfig())
	require.NoError(t, err)
	require.Equal(t, feepolicy.DefaultSchedule(), schedule)
}

func TestScheduleFromConfigOverrides(t *testing.T) {
	c := defaultConfig()
	c.Treasury = "11111111111111111111111111111112"
	c.EnterpriseFee = "0.5"
	c.MaxRoyaltyBps = 300
	c.ClaimFee = "0"

	schedule, err := ScheduleFromConfig(c)
	require.NoError(t, err)
	require.Equal(t, "11111111111111111111111111111112", schedule.Treasury.String())
	require.Equal(t, uint64(500_000_000), schedule.TierFeeLamports[common.Enterprise])
	require.Equal(t, uint16(300), schedule.MaxRoyaltyBps)
	require.Zero(t, schedule.ClaimFeeLamports)
}

func TestScheduleFromConfigErrors(t *testing.T) {
	c := defaultConfig()
	c.Treasury = "not-an-address"
	_, err := ScheduleFromConfig(c)
	require.Error(t, err)

	c = defaultConfig()
	c.MetadataFee = "-1SOL"
	_, err = ScheduleFromConfig(c)
	require.ErrorIs(t, err, feepolicy.ErrInvalidSOL)

	c = defaultConfig()
	c.BasicTransferFeeBps = 10_001
	_, err = ScheduleFromConfig(c)
	require.ErrorIs(t, err, feepolicy.ErrBadSchedule)
}

func TestSettingsFromConfig(t *testing.T) {
	settings, err := SettingsFromConfig(defaultConfig())
	require.NoError(t, err)
	require.Equal(t, uint(3), settings.Submitter.BroadcastAttempts)
	require.Equal(t, 2*time.Minute, settings.Submitter.ConfirmationTimeout)
	require.Equal(t, time.Minute, settings.ReconcileInterval)
}

func TestMinterConfigFromConfig(t *testing.T) {
	c := defaultConfig()
	c.HeliusApiKey = "key"
	require.Equal(t, "mainnet-beta", MinterConfigFromConfig(c).Cluster.Name)

	c.SolanaDevnet = true
	require.Equal(t, "devnet", MinterConfigFromConfig(c).Cluster.Name)

	c.SolanaRPC = "http://127.0.0.1:8899"
	c.SolanaWS = "ws://127.0.0.1:8900"
	c.SkipPreflight = true
	mc := MinterConfigFromConfig(c)
	require.Equal(t, "http://127.0.0.1:8899", mc.Cluster.RPC)
	require.True(t, mc.SkipPreflight)
}
