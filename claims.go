package launcher

import (
	"bytes"
	"context"
	"fmt"
	"log"

	solanago "github.com/gagliardetto/solana-go"
	"gitlab.com/atechtools/token-launcher/common"
	"gitlab.com/atechtools/token-launcher/solana"
)

// pendingClaim is a claim built by PrepareClaim and waiting for the wallet.
// At most one claim per mint is pending; a new PrepareClaim replaces it.
type pendingClaim struct {
	authority            solanago.PublicKey
	tx                   *solanago.Transaction
	message              []byte
	plan                 solana.ClaimPlan
	lastValidBlockHeight uint64
}

// Claim moves the withheld transfer fees of mint to the wallet, which must
// be the withdraw authority of the mint.
func (s *Server) Claim(ctx context.Context, mint solanago.PublicKey, c solana.Capability) (*ClaimResult, error) {
	if !c.Supported() {
		return nil, solana.ErrUnsupportedWallet
	}
	p, err := s.prepareClaim(ctx, mint, c.Owner())
	if err != nil {
		return nil, err
	}
	return s.submitClaim(ctx, mint, p, c)
}

func (s *Server) prepareClaim(ctx context.Context, mint, authority solanago.PublicKey) (*pendingClaim, error) {
	if mint.IsZero() {
		return nil, &common.ValidationError{Field: "mint", Msg: "mint address is required"}
	}
	if authority.IsZero() {
		return nil, &common.ValidationError{Field: "authority", Msg: "wallet address is required"}
	}
	state, err := s.chain.FeeState(ctx, mint)
	if err != nil {
		return nil, err
	}
	if !state.WithdrawAuthority.Equals(authority) {
		return nil, fmt.Errorf("%w: %s cannot claim fees of %s", solana.ErrNotWithdrawAuthority, authority, mint)
	}
	destination, err := solana.AssociatedTokenAddress2022(authority, mint)
	if err != nil {
		return nil, err
	}
	exists, err := s.chain.AccountExists(ctx, destination)
	if err != nil {
		return nil, err
	}
	schedule := s.settings.Schedule
	plan, err := solana.BuildClaimPlan(solana.ClaimParams{
		Authority:         authority,
		Treasury:          schedule.Treasury,
		ClaimFeeLamports:  schedule.ClaimFeeLamports,
		State:             state,
		DestinationExists: exists,
	})
	if err != nil {
		return nil, err
	}
	tx, blockhash, err := s.chain.PrepareUnsigned(ctx, plan.Plan)
	if err != nil {
		return nil, err
	}
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("cannot marshal message: %w", err)
	}
	log.Printf("Prepared claim of %d withheld from %d accounts of %s for %s, %d left", plan.Amount, len(plan.Sources), mint, authority, plan.Remaining)

	return &pendingClaim{
		authority:            authority,
		tx:                   tx,
		message:              message,
		plan:                 plan,
		lastValidBlockHeight: blockhash.LastValidBlockHeight,
	}, nil
}

func (s *Server) submitClaim(ctx context.Context, mint solanago.PublicKey, p *pendingClaim, c solana.Capability) (*ClaimResult, error) {
	result := &ClaimResult{
		Mint:             common.SolanaAddress(mint),
		Destination:      common.SolanaAddress(p.plan.AssociatedAccount),
		Amount:           p.plan.Amount,
		Accounts:         len(p.plan.Sources),
		Remaining:        p.plan.Remaining,
		ClaimFeeLamports: p.plan.FeeLamports,
	}
	sig, err := s.submitter.Submit(ctx, p.tx, c)
	if !sig.IsZero() {
		result.Signature = sig.String()
	}
	if err != nil {
		log.Printf("Claim for %s failed (%s): %v", mint, Classify(err), err)
		return result, err
	}
	log.Printf("Claimed %d withheld of %s to %s, signature %s", result.Amount, mint, result.Destination, result.Signature)
	return result, nil
}

func (s *Server) WithheldFees(ctx context.Context, req *WithheldFeesRequest) (*WithheldFeesResponse, error) {
	state, err := s.chain.FeeState(ctx, solanago.PublicKey(req.Mint))
	if err != nil {
		return nil, apiError(err)
	}
	accounts := make([]WithheldAccount, 0, len(state.Accounts))
	for _, a := range state.Accounts {
		accounts = append(accounts, WithheldAccount{
			Address: common.SolanaAddress(a.Address),
			Amount:  a.Amount,
		})
	}
	return &WithheldFeesResponse{
		Mint:              req.Mint,
		WithdrawAuthority: common.SolanaAddress(state.WithdrawAuthority),
		MintWithheld:      state.MintWithheld,
		Accounts:          accounts,
		Total:             state.Total(),
	}, nil
}

func (s *Server) PrepareClaim(ctx context.Context, req *PrepareClaimRequest) (*PrepareClaimResponse, error) {
	p, err := s.prepareClaim(ctx, solanago.PublicKey(req.Mint), solanago.PublicKey(req.Authority))
	if err != nil {
		return nil, apiError(err)
	}
	encoded, err := p.tx.ToBase64()
	if err != nil {
		return nil, apiError(fmt.Errorf("cannot encode transaction: %w", err))
	}
	s.mu.Lock()
	s.claims[req.Mint] = p
	s.mu.Unlock()

	steps := make([]string, 0, len(p.plan.Steps))
	for _, kind := range p.plan.Kinds() {
		steps = append(steps, kind.String())
	}
	return &PrepareClaimResponse{
		Mint:                 req.Mint,
		Destination:          common.SolanaAddress(p.plan.AssociatedAccount),
		Transaction:          encoded,
		LastValidBlockHeight: p.lastValidBlockHeight,
		Amount:               p.plan.Amount,
		Accounts:             len(p.plan.Sources),
		Remaining:            p.plan.Remaining,
		ClaimFeeLamports:     p.plan.FeeLamports,
		Steps:                steps,
	}, nil
}

// SubmitClaim broadcasts a claim signed by a browser wallet. Only the exact
// message returned by PrepareClaim is accepted.
func (s *Server) SubmitClaim(ctx context.Context, req *SubmitClaimRequest) (*SubmitClaimResponse, error) {
	s.mu.Lock()
	p, has := s.claims[req.Mint]
	s.mu.Unlock()
	if !has {
		return nil, apiError(fmt.Errorf("%w: %s", ErrUnknownClaim, req.Mint))
	}

	tx, err := solanago.TransactionFromBase64(req.Transaction)
	if err != nil {
		return nil, apiError(&common.ValidationError{Field: "transaction", Msg: err.Error()})
	}
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, apiError(fmt.Errorf("cannot marshal message: %w", err))
	}
	if !bytes.Equal(message, p.message) {
		return nil, apiError(fmt.Errorf("%w: claim of %s", ErrTampered, req.Mint))
	}

	height, err := s.chain.BlockHeight(ctx)
	if err != nil {
		return nil, apiError(err)
	}
	s.mu.Lock()
	current, has := s.claims[req.Mint]
	if has && current == p {
		delete(s.claims, req.Mint)
	}
	s.mu.Unlock()
	if !has || current != p {
		return nil, apiError(fmt.Errorf("%w: %s", ErrUnknownClaim, req.Mint))
	}
	if height > p.lastValidBlockHeight {
		return nil, apiError(fmt.Errorf("%w: claim of %s", ErrLaunchExpired, req.Mint))
	}

	p.tx = tx
	wallet := solana.PresignedWallet{Owner: p.authority}
	result, err := s.submitClaim(ctx, solanago.PublicKey(req.Mint), p, solana.Split(wallet, s.chain))
	if err != nil {
		return nil, broadcastError(err, result.Signature)
	}
	return &SubmitClaimResponse{Result: *result}, nil
}

// expireClaims drops prepared claims whose blockhash can no longer land.
func (s *Server) expireClaims(height uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for mint, p := range s.claims {
		if height > p.lastValidBlockHeight {
			log.Printf("[reconcile]: prepared claim of %s expired unsigned", mint)
			delete(s.claims, mint)
		}
	}
}
