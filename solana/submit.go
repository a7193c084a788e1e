package solana

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/avast/retry-go"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

const (
	DefaultBroadcastAttempts   = 3
	DefaultBroadcastRetryDelay = time.Second
	DefaultConfirmationTimeout = 2 * time.Minute
)

// Confirmer blocks until the transaction is confirmed or ctx is done.
type Confirmer interface {
	WaitForConfirmation(ctx context.Context, tx *solana.Transaction, sig solana.Signature) error
}

type SubmitterConfig struct {
	// Total number of raw broadcast attempts, the first one included.
	BroadcastAttempts   uint
	BroadcastRetryDelay time.Duration
	ConfirmationTimeout time.Duration
}

func DefaultSubmitterConfig() SubmitterConfig {
	return SubmitterConfig{
		BroadcastAttempts:   DefaultBroadcastAttempts,
		BroadcastRetryDelay: DefaultBroadcastRetryDelay,
		ConfirmationTimeout: DefaultConfirmationTimeout,
	}
}

type Submitter struct {
	SubmitterConfig
	confirmer Confirmer
}

func NewSubmitter(confirmer Confirmer, config SubmitterConfig) *Submitter {
	if config.BroadcastAttempts == 0 {
		config.BroadcastAttempts = DefaultBroadcastAttempts
	}
	if config.ConfirmationTimeout == 0 {
		config.ConfirmationTimeout = DefaultConfirmationTimeout
	}
	return &Submitter{
		SubmitterConfig: config,
		confirmer:       confirmer,
	}
}

// Submit signs and sends tx through the resolved capability and waits for
// the confirmation. When the wait times out the signature is returned along
// with ErrConfirmationTimeout, since the transaction may still land.
func (s *Submitter) Submit(ctx context.Context, tx *solana.Transaction, c Capability) (solana.Signature, error) {
	var (
		sig solana.Signature
		err error
	)
	switch c.kind {
	case capabilityCombined:
		sig, err = c.combined.SignAndSendTransaction(ctx, tx)
		if err != nil {
			return solana.Signature{}, fmt.Errorf("cannot sign and send: %w", err)
		}
	case capabilitySplit:
		sig, err = s.signAndBroadcast(ctx, tx, c.signer, c.broadcaster)
		if err != nil {
			return solana.Signature{}, err
		}
	default:
		return solana.Signature{}, ErrUnsupportedWallet
	}

	if err := s.waitForConfirmation(ctx, tx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

func (s *Submitter) signAndBroadcast(ctx context.Context, tx *solana.Transaction, signer TransactionSigner, broadcaster RawBroadcaster) (solana.Signature, error) {
	if err := signer.SignTransaction(ctx, tx); err != nil {
		return solana.Signature{}, fmt.Errorf("cannot sign: %w", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("cannot serialize transaction: %w", err)
	}

	var sig solana.Signature
	attempt := 0
	err = retry.Do(
		func() error {
			attempt++
			var err error
			sig, err = broadcaster.SendRawTransaction(ctx, raw)
			if err != nil && isTransient(err) {
				log.Printf("Broadcast attempt %d/%d failed: %v", attempt, s.BroadcastAttempts, err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(s.BroadcastAttempts),
		retry.Delay(s.BroadcastRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("cannot broadcast: %w", err)
	}
	return sig, nil
}

func (s *Submitter) waitForConfirmation(ctx context.Context, tx *solana.Transaction, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, s.ConfirmationTimeout)
	defer cancel()
	err := s.confirmer.WaitForConfirmation(ctx, tx, sig)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		return fmt.Errorf("%w: %s", ErrConfirmationTimeout, sig)
	}
	return fmt.Errorf("cannot confirm %s: %w", sig, err)
}

// isTransient reports whether a broadcast error may go away on its own.
// Anything the cluster or the wallet answered explicitly is final.
func isTransient(err error) bool {
	if errors.Is(err, ErrRejected) || errors.Is(err, ErrUserRejected) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rpcErr *jsonrpc.RPCError
	return !errors.As(err, &rpcErr)
}
