package launchdb

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/require"
	"gitlab.com/atechtools/token-launcher/common"
)

type ledger interface {
	InsertLaunch(ctx context.Context, record common.LaunchRecord) (common.LaunchRecord, error)
	MarkSubmitted(ctx context.Context, mint common.SolanaAddress, signature string) error
	SetStatus(ctx context.Context, mint common.SolanaAddress, status common.LaunchStatus, errorKind string) error
	MarkRegistered(ctx context.Context, mint common.SolanaAddress) (bool, error)
	Launch(ctx context.Context, mint common.SolanaAddress) (common.LaunchRecord, error)
	History(ctx context.Context, creator common.SolanaAddress, limit int) ([]common.LaunchRecord, error)
	Pending(ctx context.Context) ([]common.LaunchRecord, error)
}

var (
	_ ledger = (*LaunchDB)(nil)
	_ ledger = (*Memory)(nil)
)

func defaultFuzzer() *fuzz.Fuzzer {
	return fuzz.New().NilChance(0).Funcs(
		func(r *common.LaunchRecord, c fuzz.Continue) {
			c.Fuzz(&r.Mint)
			c.Fuzz(&r.Creator)
			r.Tier = common.Tier(c.Intn(int(common.TierCount)))
			r.Name = fmt.Sprintf("Token %d", c.Intn(1000))
			r.Symbol = "TK"
			r.MetadataURI = "https://gateway.pinata.cloud/ipfs/Qm" + r.Mint.String()
			r.Status = common.Prepared
			r.LastValidBlockHeight = uint64(c.Int63n(1 << 40))
		},
	)
}

// fakeClock returns strictly increasing times so ordering is deterministic.
func fakeClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func testLedger(t *testing.T, l ledger) {
	f := defaultFuzzer()
	ctx := context.Background()

	var creator common.SolanaAddress
	f.Fuzz(&creator)

	var records []common.LaunchRecord
	for i := 0; i < 3; i++ {
		var r common.LaunchRecord
		f.Fuzz(&r)
		r.Creator = creator
		inserted, err := l.InsertLaunch(ctx, r)
		require.NoError(t, err)
		require.NotEmpty(t, inserted.ID)
		require.False(t, inserted.CreatedAt.IsZero())
		records = append(records, inserted)
	}
	first := records[0]

	t.Run("duplicate mint", func(t *testing.T) {
		_, err := l.InsertLaunch(ctx, first)
		require.ErrorIs(t, err, ErrDuplicateLaunch)
	})

	t.Run("unknown mint", func(t *testing.T) {
		var unknown common.SolanaAddress
		f.Fuzz(&unknown)
		_, err := l.Launch(ctx, unknown)
		require.ErrorIs(t, err, common.ErrNotExists)
		require.ErrorIs(t, l.MarkSubmitted(ctx, unknown, "sig"), common.ErrNotExists)
		require.ErrorIs(t, l.SetStatus(ctx, unknown, common.Failed, "internal"), common.ErrNotExists)
	})

	t.Run("read back", func(t *testing.T) {
		got, err := l.Launch(ctx, first.Mint)
		require.NoError(t, err)
		require.Equal(t, first.ID, got.ID)
		require.Equal(t, first.Tier, got.Tier)
		require.Equal(t, first.MetadataURI, got.MetadataURI)
		require.Equal(t, first.LastValidBlockHeight, got.LastValidBlockHeight)
		require.Equal(t, common.Prepared, got.Status)
		require.False(t, got.Registered)
	})

	t.Run("history newest first", func(t *testing.T) {
		history, err := l.History(ctx, creator, 10)
		require.NoError(t, err)
		require.Len(t, history, 3)
		require.Equal(t, records[2].Mint, history[0].Mint)
		require.Equal(t, records[0].Mint, history[2].Mint)

		history, err = l.History(ctx, creator, 1)
		require.NoError(t, err)
		require.Len(t, history, 1)

		var other common.SolanaAddress
		f.Fuzz(&other)
		history, err = l.History(ctx, other, 10)
		require.NoError(t, err)
		require.Empty(t, history)
	})

	t.Run("status transitions", func(t *testing.T) {
		pending, err := l.Pending(ctx)
		require.NoError(t, err)
		require.Empty(t, pending)

		require.NoError(t, l.MarkSubmitted(ctx, records[0].Mint, "sig0"))
		require.NoError(t, l.MarkSubmitted(ctx, records[1].Mint, "sig1"))
		require.NoError(t, l.SetStatus(ctx, records[1].Mint, common.TimedOut, "confirmation_timeout"))

		pending, err = l.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		require.Equal(t, records[0].Mint, pending[0].Mint)
		require.Equal(t, "sig0", pending[0].Signature)
		require.Equal(t, common.TimedOut, pending[1].Status)
		require.Equal(t, "confirmation_timeout", pending[1].ErrorKind)

		require.NoError(t, l.SetStatus(ctx, records[0].Mint, common.Confirmed, ""))
		pending, err = l.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
	})

	t.Run("registered once", func(t *testing.T) {
		marked, err := l.MarkRegistered(ctx, records[0].Mint)
		require.NoError(t, err)
		require.True(t, marked)

		marked, err = l.MarkRegistered(ctx, records[0].Mint)
		require.NoError(t, err)
		require.False(t, marked)

		got, err := l.Launch(ctx, records[0].Mint)
		require.NoError(t, err)
		require.True(t, got.Registered)
	})
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	m.timeNow = fakeClock()
	testLedger(t, m)
}

func TestCreationSql(t *testing.T) {
	require.Contains(t, creationSql("launches"), "CREATE TABLE IF NOT EXISTS launches (")
	require.Contains(t, creationSql("launches_creator_idx"), "CREATE INDEX")
	require.Panics(t, func() { creationSql("transports") })
}
