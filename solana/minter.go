package solana

import (
	"context"
	"errors"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

// Minter is the cluster side of a launch: rent quotes, blockhashes,
// broadcasting and confirmation tracking.
type Minter struct {
	MinterConfig
	rpc *rpc.Client
	ws  *ws.Client
}

func NewMinter(ctx context.Context, config MinterConfig) (*Minter, error) {
	wsClient, err := ws.Connect(ctx, config.Cluster.WS)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to websocket: %w", err)
	}
	if config.Commitment == "" {
		config.Commitment = rpc.CommitmentConfirmed
	}

	return &Minter{
		MinterConfig: config,
		rpc:          rpc.New(config.Cluster.RPC),
		ws:           wsClient,
	}, nil
}

func (m *Minter) Close() {
	m.ws.Close()
}

type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

func (m *Minter) LatestBlockhash(ctx context.Context) (Blockhash, error) {
	recent, err := m.rpc.GetLatestBlockhash(ctx, m.Commitment)
	if err != nil {
		return Blockhash{}, fmt.Errorf("cannot get latest blockhash: %w", err)
	}
	return Blockhash{
		Hash:                 recent.Value.Blockhash,
		LastValidBlockHeight: recent.Value.LastValidBlockHeight,
	}, nil
}

func (m *Minter) BlockHeight(ctx context.Context) (uint64, error) {
	height, err := m.rpc.GetBlockHeight(ctx, m.Commitment)
	if err != nil {
		return 0, fmt.Errorf("cannot get block height: %w", err)
	}
	return height, nil
}

func (m *Minter) RentExemption(ctx context.Context, space uint64) (uint64, error) {
	lamports, err := m.rpc.GetMinimumBalanceForRentExemption(ctx, space, m.Commitment)
	if err != nil {
		return 0, fmt.Errorf("cannot get rent exemption for %d bytes: %w", space, err)
	}
	return lamports, nil
}

// MintRent quotes the mint account and its embedded metadata separately and
// returns the sum funded by the create-account step.
func (m *Minter) MintRent(ctx context.Context, name, symbol, uri string, fields []MetadataField) (uint64, error) {
	mintRent, err := m.RentExemption(ctx, MintAccountSpace())
	if err != nil {
		return 0, err
	}
	metadataRent, err := m.RentExemption(ctx, MetadataSpace(name, symbol, uri, fields))
	if err != nil {
		return 0, err
	}
	return mintRent + metadataRent, nil
}

// PrepareTransaction wraps the plan into a transaction paid by plan.Payer and
// signs it with the fresh mint key. The payer signature is left to the wallet.
func (m *Minter) PrepareTransaction(ctx context.Context, plan Plan, mintKey solana.PrivateKey) (*solana.Transaction, Blockhash, error) {
	if !mintKey.PublicKey().Equals(plan.Mint) {
		return nil, Blockhash{}, fmt.Errorf("mint key %s does not match plan mint %s", mintKey.PublicKey(), plan.Mint)
	}
	recent, err := m.LatestBlockhash(ctx)
	if err != nil {
		return nil, Blockhash{}, err
	}
	tx, err := NewLaunchTransaction(plan, recent.Hash, mintKey)
	if err != nil {
		return nil, Blockhash{}, err
	}
	return tx, recent, nil
}

// PrepareUnsigned wraps a plan that only the payer has to sign.
func (m *Minter) PrepareUnsigned(ctx context.Context, plan Plan) (*solana.Transaction, Blockhash, error) {
	recent, err := m.LatestBlockhash(ctx)
	if err != nil {
		return nil, Blockhash{}, err
	}
	tx, err := NewUnsignedTransaction(plan, recent.Hash)
	if err != nil {
		return nil, Blockhash{}, err
	}
	return tx, recent, nil
}

// NewUnsignedTransaction leaves an empty slot for every required signature.
func NewUnsignedTransaction(plan Plan, blockhash solana.Hash) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(
		plan.Instructions(),
		blockhash,
		solana.TransactionPayer(plan.Payer),
	)
	if err != nil {
		return nil, fmt.Errorf("cannot create transaction: %w", err)
	}
	if err := signWith(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// NewLaunchTransaction assembles and mint-signs a transaction offline.
func NewLaunchTransaction(plan Plan, blockhash solana.Hash, mintKey solana.PrivateKey) (*solana.Transaction, error) {
	tx, err := NewUnsignedTransaction(plan, blockhash)
	if err != nil {
		return nil, err
	}
	if err := signWith(tx, mintKey); err != nil {
		return nil, err
	}
	return tx, nil
}

func (m *Minter) SendRawTransaction(ctx context.Context, raw []byte) (solana.Signature, error) {
	opts := rpc.TransactionOpts{
		SkipPreflight:       m.SkipPreflight,
		PreflightCommitment: m.Commitment,
	}
	sig, err := m.rpc.SendRawTransactionWithOpts(ctx, raw, opts)
	if err != nil {
		var programs []solana.PublicKey
		if tx, decodeErr := solana.TransactionFromDecoder(bin.NewBinDecoder(raw)); decodeErr == nil {
			programs = programIDs(tx)
		}
		return solana.Signature{}, parsePreflightError(err, programs)
	}
	return sig, nil
}

// WaitForConfirmation waits until the signature reaches the configured
// commitment. The caller bounds the wait through ctx.
func (m *Minter) WaitForConfirmation(ctx context.Context, tx *solana.Transaction, sig solana.Signature) error {
	sub, err := m.ws.SignatureSubscribe(sig, m.Commitment)
	if err != nil {
		return fmt.Errorf("cannot subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case resp, ok := <-sub.Response():
			if !ok {
				return fmt.Errorf("subscription closed")
			}
			if resp.Value.Err != nil {
				if err := parseErrorValue(resp.Value.Err, programIDs(tx)); err != nil {
					return fmt.Errorf("%w: %w", ErrExecutionFailed, err)
				}
				// The transaction was confirmed, but it failed while executing (one of the instructions failed).
				return fmt.Errorf("%w: %v", ErrExecutionFailed, resp.Value.Err)
			}
			return nil
		case err := <-sub.Err():
			return err
		}
	}
}

type Status struct {
	Confirmed        bool
	Successful       bool
	ConfirmationTime time.Time
	Err              error
}

func (m *Minter) TxStatus(ctx context.Context, sig solana.Signature) (Status, error) {
	res, err := m.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment: m.Commitment,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return Status{}, nil
		}
		return Status{}, err
	}
	if res == nil || res.Meta == nil {
		return Status{}, fmt.Errorf("nil meta")
	}

	var confirmationTime time.Time
	if res.BlockTime != nil {
		confirmationTime = res.BlockTime.Time()
	}
	if res.Meta.Err != nil {
		var programs []solana.PublicKey
		if tx, err := res.Transaction.GetTransaction(); err == nil {
			programs = programIDs(tx)
		}
		execErr := fmt.Errorf("%w: %v", ErrExecutionFailed, res.Meta.Err)
		if decoded := parseErrorValue(res.Meta.Err, programs); decoded != nil {
			execErr = fmt.Errorf("%w: %w", ErrExecutionFailed, decoded)
		}
		return Status{
			Confirmed:        true,
			ConfirmationTime: confirmationTime,
			Err:              execErr,
		}, nil
	}
	return Status{
		Confirmed:        true,
		Successful:       true,
		ConfirmationTime: confirmationTime,
	}, nil
}

// AccountExists reports whether the address holds an account.
func (m *Minter) AccountExists(ctx context.Context, address solana.PublicKey) (bool, error) {
	var offset, length uint64
	_, err := m.rpc.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: m.Commitment,
		DataSlice:  &rpc.DataSlice{Offset: &offset, Length: &length},
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cannot get account %s: %w", address, err)
	}
	return true, nil
}

// FeeState reads the transfer fee config of the mint and finds every token
// account of the mint that holds withheld fees. Token accounts store their
// mint at offset 0.
func (m *Minter) FeeState(ctx context.Context, mint solana.PublicKey) (FeeState, error) {
	info, err := m.rpc.GetAccountInfoWithOpts(ctx, mint, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: m.Commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return FeeState{}, fmt.Errorf("%w: mint %s not found", ErrNotTokenMint, mint)
	}
	if err != nil {
		return FeeState{}, fmt.Errorf("cannot get mint %s: %w", mint, err)
	}
	if !info.Value.Owner.Equals(solana.Token2022ProgramID) || info.Value.Data == nil {
		return FeeState{}, fmt.Errorf("%w: %s is owned by %s", ErrNotTokenMint, mint, info.Value.Owner)
	}
	state, err := ParseMintFeeState(info.Value.Data.GetBinary())
	if err != nil {
		return FeeState{}, err
	}
	state.Mint = mint

	accounts, err := m.rpc.GetProgramAccountsWithOpts(ctx, solana.Token2022ProgramID, &rpc.GetProgramAccountsOpts{
		Commitment: m.Commitment,
		Encoding:   solana.EncodingBase64,
		Filters: []rpc.RPCFilter{
			{
				Memcmp: &rpc.RPCFilterMemcmp{
					Offset: 0,
					Bytes:  solana.Base58(mint[:]),
				},
			},
		},
	})
	if err != nil {
		return FeeState{}, fmt.Errorf("cannot list token accounts of %s: %w", mint, err)
	}
	for _, account := range accounts {
		if account.Account == nil || account.Account.Data == nil {
			continue
		}
		amount, ok := ParseWithheldAmount(account.Account.Data.GetBinary())
		if !ok || amount == 0 {
			continue
		}
		state.Accounts = append(state.Accounts, WithheldAccount{
			Address: account.Pubkey,
			Amount:  amount,
		})
	}
	return state, nil
}
