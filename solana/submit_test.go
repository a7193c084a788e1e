package solana

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/require"
)

type stubBroadcaster struct {
	errs  []error
	calls int
}

func (b *stubBroadcaster) SendRawTransaction(_ context.Context, raw []byte) (solana.Signature, error) {
	b.calls++
	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		if err != nil {
			return solana.Signature{}, err
		}
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return solana.Signature{}, err
	}
	return tx.Signatures[0], nil
}

type stubCombined struct {
	key   solana.PrivateKey
	err   error
	calls int
}

func (w *stubCombined) PublicKey() solana.PublicKey {
	return w.key.PublicKey()
}

func (w *stubCombined) SignAndSendTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	w.calls++
	if w.err != nil {
		return solana.Signature{}, w.err
	}
	if err := signWith(tx, w.key); err != nil {
		return solana.Signature{}, err
	}
	return tx.Signatures[0], nil
}

// both is a wallet offering both shapes.
type both struct {
	*stubCombined
	signed bool
}

func (w *both) SignTransaction(_ context.Context, tx *solana.Transaction) error {
	w.signed = true
	return signWith(tx, w.key)
}

type stubConfirmer struct {
	err   error
	block bool
	calls int
}

func (c *stubConfirmer) WaitForConfirmation(ctx context.Context, _ *solana.Transaction, _ solana.Signature) error {
	c.calls++
	if c.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return c.err
}

func testSubmitterConfig() SubmitterConfig {
	return SubmitterConfig{
		BroadcastAttempts:   3,
		BroadcastRetryDelay: time.Millisecond,
		ConfirmationTimeout: time.Second,
	}
}

func launchTx(t *testing.T, payer solana.PrivateKey) *solana.Transaction {
	mintKey := newKey(t)
	plan, err := BuildPlan(auroraParams(t, payer.PublicKey(), mintKey.PublicKey()))
	require.NoError(t, err)
	tx, err := NewLaunchTransaction(plan, solana.Hash{1, 2, 3}, mintKey)
	require.NoError(t, err)
	return tx
}

var rejection = &jsonrpc.RPCError{
	Code:    -32002,
	Message: "Transaction simulation failed",
	Data: map[string]interface{}{
		"err": map[string]interface{}{
			"InstructionError": []interface{}{json.Number("0"), map[string]interface{}{"Custom": json.Number("1")}},
		},
	},
}

func TestSubmitSplitRetriesTransient(t *testing.T) {
	payer := newKey(t)
	tx := launchTx(t, payer)
	broadcaster := &stubBroadcaster{errs: []error{errors.New("connection reset"), errors.New("EOF")}}
	confirmer := &stubConfirmer{}
	s := NewSubmitter(confirmer, testSubmitterConfig())

	sig, err := s.Submit(context.Background(), tx, Split(NewKeypairWallet(payer), broadcaster))
	require.NoError(t, err)
	require.Equal(t, 3, broadcaster.calls)
	require.Equal(t, tx.Signatures[0], sig)
	require.Equal(t, 1, confirmer.calls)
}

func TestSubmitSplitGivesUpAfterAttempts(t *testing.T) {
	payer := newKey(t)
	transient := errors.New("connection reset")
	broadcaster := &stubBroadcaster{errs: []error{transient, transient, transient, nil}}
	confirmer := &stubConfirmer{}
	s := NewSubmitter(confirmer, testSubmitterConfig())

	_, err := s.Submit(context.Background(), launchTx(t, payer), Split(NewKeypairWallet(payer), broadcaster))
	require.ErrorIs(t, err, transient)
	require.Equal(t, 3, broadcaster.calls)
	require.Zero(t, confirmer.calls)
}

func TestSubmitSplitDoesNotRetryRejection(t *testing.T) {
	payer := newKey(t)
	programs := []solana.PublicKey{solana.SystemProgramID}
	broadcaster := &stubBroadcaster{errs: []error{parsePreflightError(rejection, programs)}}
	s := NewSubmitter(&stubConfirmer{}, testSubmitterConfig())

	_, err := s.Submit(context.Background(), launchTx(t, payer), Split(NewKeypairWallet(payer), broadcaster))
	require.ErrorIs(t, err, ErrRejected)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, 1, broadcaster.calls)

	broadcaster = &stubBroadcaster{errs: []error{rejection}}
	_, err = s.Submit(context.Background(), launchTx(t, payer), Split(NewKeypairWallet(payer), broadcaster))
	require.Error(t, err)
	require.Equal(t, 1, broadcaster.calls)
}

func TestSubmitCombinedPreferred(t *testing.T) {
	payer := newKey(t)
	wallet := &both{stubCombined: &stubCombined{key: payer}}
	broadcaster := &stubBroadcaster{}

	c, err := ResolveCapability(wallet, broadcaster)
	require.NoError(t, err)
	require.True(t, c.IsCombined())
	require.Equal(t, payer.PublicKey(), c.Owner())

	s := NewSubmitter(&stubConfirmer{}, testSubmitterConfig())
	_, err = s.Submit(context.Background(), launchTx(t, payer), c)
	require.NoError(t, err)
	require.Equal(t, 1, wallet.calls)
	require.False(t, wallet.signed)
	require.Zero(t, broadcaster.calls)
}

func TestSubmitCombinedUserRejected(t *testing.T) {
	payer := newKey(t)
	wallet := &stubCombined{key: payer, err: ErrUserRejected}
	confirmer := &stubConfirmer{}
	s := NewSubmitter(confirmer, testSubmitterConfig())

	_, err := s.Submit(context.Background(), launchTx(t, payer), Combined(wallet))
	require.ErrorIs(t, err, ErrUserRejected)
	require.Equal(t, 1, wallet.calls)
	require.Zero(t, confirmer.calls)
}

func TestResolveCapability(t *testing.T) {
	payer := newKey(t)

	c, err := ResolveCapability(NewKeypairWallet(payer), &stubBroadcaster{})
	require.NoError(t, err)
	require.True(t, c.IsSplit())

	_, err = ResolveCapability(NewKeypairWallet(payer), nil)
	require.ErrorIs(t, err, ErrUnsupportedWallet)

	_, err = ResolveCapability(struct{}{}, &stubBroadcaster{})
	require.ErrorIs(t, err, ErrUnsupportedWallet)
}

func TestSubmitUnsupportedWallet(t *testing.T) {
	confirmer := &stubConfirmer{}
	s := NewSubmitter(confirmer, testSubmitterConfig())
	_, err := s.Submit(context.Background(), launchTx(t, newKey(t)), Capability{})
	require.ErrorIs(t, err, ErrUnsupportedWallet)
	require.Zero(t, confirmer.calls)
}

func TestSubmitConfirmationTimeout(t *testing.T) {
	payer := newKey(t)
	config := testSubmitterConfig()
	config.ConfirmationTimeout = 20 * time.Millisecond
	s := NewSubmitter(&stubConfirmer{block: true}, config)
	tx := launchTx(t, payer)

	sig, err := s.Submit(context.Background(), tx, Split(NewKeypairWallet(payer), &stubBroadcaster{}))
	require.ErrorIs(t, err, ErrConfirmationTimeout)
	require.Equal(t, tx.Signatures[0], sig)
}

func TestSubmitExecutionFailure(t *testing.T) {
	payer := newKey(t)
	s := NewSubmitter(&stubConfirmer{err: ErrExecutionFailed}, testSubmitterConfig())
	_, err := s.Submit(context.Background(), launchTx(t, payer), Split(NewKeypairWallet(payer), &stubBroadcaster{}))
	require.ErrorIs(t, err, ErrExecutionFailed)
	require.NotErrorIs(t, err, ErrConfirmationTimeout)
}

func TestPresignedWallet(t *testing.T) {
	payer := newKey(t)
	tx := launchTx(t, payer)
	presigned := PresignedWallet{Owner: payer.PublicKey()}

	err := presigned.SignTransaction(context.Background(), tx)
	require.ErrorIs(t, err, ErrUserRejected)

	require.NoError(t, NewKeypairWallet(payer).SignTransaction(context.Background(), tx))
	require.NoError(t, presigned.SignTransaction(context.Background(), tx))

	tx.Signatures[1] = solana.Signature{}
	err = presigned.SignTransaction(context.Background(), tx)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUserRejected)
}

func TestSignWithUnknownKey(t *testing.T) {
	tx := launchTx(t, newKey(t))
	require.Error(t, signWith(tx, newKey(t)))
}
