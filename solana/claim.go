package solana

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
)

const (
	// MaxClaimSources bounds the token accounts drained by one claim
	// transaction so it stays below the packet size limit.
	MaxClaimSources = 20

	accountTypeMint    = 1
	accountTypeAccount = 2

	extensionTransferFeeConfig = 1
	extensionTransferFeeAmount = 2
)

var (
	ErrNotTokenMint         = errors.New("not a Token-2022 mint")
	ErrNoTransferFee        = errors.New("mint has no transfer fee extension")
	ErrNotWithdrawAuthority = errors.New("wallet is not the withdraw authority of the mint")
	ErrNothingToClaim       = errors.New("no withheld fees to claim")
)

type WithdrawWithheldFromMint struct {
	Mint        solana.PublicKey
	Destination solana.PublicKey
	Authority   solana.PublicKey
}

func (s WithdrawWithheldFromMint) Kind() StepKind { return StepWithdrawWithheldFromMint }

func (s WithdrawWithheldFromMint) Instructions() []solana.Instruction {
	return []solana.Instruction{
		solana.NewInstruction(
			solana.Token2022ProgramID,
			[]*solana.AccountMeta{
				solana.Meta(s.Mint).WRITE(),
				solana.Meta(s.Destination).WRITE(),
				solana.Meta(s.Authority).SIGNER(),
			},
			instructionWithdrawWithheldFromMint{}.InstructionData(),
		),
	}
}

type WithdrawWithheldFromAccounts struct {
	Mint        solana.PublicKey
	Destination solana.PublicKey
	Authority   solana.PublicKey
	Sources     []solana.PublicKey
}

func (s WithdrawWithheldFromAccounts) Kind() StepKind { return StepWithdrawWithheldFromAccounts }

func (s WithdrawWithheldFromAccounts) Instructions() []solana.Instruction {
	metas := []*solana.AccountMeta{
		solana.Meta(s.Mint),
		solana.Meta(s.Destination).WRITE(),
		solana.Meta(s.Authority).SIGNER(),
	}
	for _, source := range s.Sources {
		metas = append(metas, solana.Meta(source).WRITE())
	}
	return []solana.Instruction{
		solana.NewInstruction(
			solana.Token2022ProgramID,
			metas,
			instructionWithdrawWithheldFromAccounts{numAccounts: uint8(len(s.Sources))}.InstructionData(),
		),
	}
}

// WithheldAccount is a token account of the mint holding withheld fees.
type WithheldAccount struct {
	Address solana.PublicKey
	Amount  uint64
}

// FeeState is the withheld transfer fee picture of one mint.
type FeeState struct {
	Mint              solana.PublicKey
	WithdrawAuthority solana.PublicKey
	MintWithheld      uint64
	Accounts          []WithheldAccount
}

// Total saturates at the maximum uint64.
func (f FeeState) Total() uint64 {
	total := f.MintWithheld
	for _, a := range f.Accounts {
		total = addSaturating(total, a.Amount)
	}
	return total
}

func addSaturating(a, b uint64) uint64 {
	if a+b < a {
		return ^uint64(0)
	}
	return a + b
}

// extensions walks the TLV entries after the account type byte.
func extensions(data []byte, accountType byte) (map[uint16][]byte, bool) {
	if len(data) <= baseAccountLen || data[baseAccountLen] != accountType {
		return nil, false
	}
	entries := make(map[uint16][]byte)
	rest := data[baseAccountLen+accountTypeLen:]
	for len(rest) >= tlvHeaderLen {
		typ := binary.LittleEndian.Uint16(rest[0:2])
		length := int(binary.LittleEndian.Uint16(rest[2:4]))
		rest = rest[tlvHeaderLen:]
		if typ == 0 || length > len(rest) {
			break
		}
		entries[typ] = rest[:length]
		rest = rest[length:]
	}
	return entries, true
}

// ParseMintFeeState reads the withdraw authority and the amount withheld in
// the mint from the TransferFeeConfig extension of Token-2022 mint data.
func ParseMintFeeState(data []byte) (FeeState, error) {
	entries, ok := extensions(data, accountTypeMint)
	if !ok {
		return FeeState{}, fmt.Errorf("%w: no extensions", ErrNotTokenMint)
	}
	config, ok := entries[extensionTransferFeeConfig]
	if !ok || len(config) < transferFeeConfigLen {
		return FeeState{}, ErrNoTransferFee
	}
	var state FeeState
	copy(state.WithdrawAuthority[:], config[solana.PublicKeyLength:2*solana.PublicKeyLength])
	state.MintWithheld = binary.LittleEndian.Uint64(config[2*solana.PublicKeyLength:])
	return state, nil
}

// ParseWithheldAmount reads the TransferFeeAmount extension of a Token-2022
// token account.
func ParseWithheldAmount(data []byte) (uint64, bool) {
	entries, ok := extensions(data, accountTypeAccount)
	if !ok {
		return 0, false
	}
	amount, ok := entries[extensionTransferFeeAmount]
	if !ok || len(amount) < 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(amount), true
}

type ClaimParams struct {
	// Authority signs and pays the claim and receives the tokens in its
	// associated account.
	Authority solana.PublicKey

	Treasury         solana.PublicKey
	ClaimFeeLamports uint64

	State             FeeState
	DestinationExists bool
}

type ClaimPlan struct {
	Plan

	// Amount is the raw token amount moved by the plan.
	Amount      uint64
	Sources     []solana.PublicKey
	FeeLamports uint64

	// Remaining counts accounts with withheld fees left for a later claim.
	Remaining int
}

// BuildClaimPlan moves withheld fees of a mint to its withdraw authority.
// The claim fee goes to the treasury first and is waived when the treasury
// claims itself.
func BuildClaimPlan(p ClaimParams) (ClaimPlan, error) {
	if p.Authority.IsZero() || p.State.Mint.IsZero() {
		return ClaimPlan{}, fmt.Errorf("%w: authority and mint are required", ErrInvalidPlan)
	}
	if p.State.WithdrawAuthority.IsZero() || !p.State.WithdrawAuthority.Equals(p.Authority) {
		return ClaimPlan{}, ErrNotWithdrawAuthority
	}
	chargeFee := p.ClaimFeeLamports > 0 && !p.Authority.Equals(p.Treasury)
	if chargeFee && p.Treasury.IsZero() {
		return ClaimPlan{}, fmt.Errorf("%w: treasury is required to collect fees", ErrInvalidPlan)
	}

	accounts := make([]WithheldAccount, 0, len(p.State.Accounts))
	for _, a := range p.State.Accounts {
		if a.Amount > 0 {
			accounts = append(accounts, a)
		}
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].Amount > accounts[j].Amount
	})
	remaining := 0
	if len(accounts) > MaxClaimSources {
		remaining = len(accounts) - MaxClaimSources
		accounts = accounts[:MaxClaimSources]
	}

	amount := p.State.MintWithheld
	sources := make([]solana.PublicKey, 0, len(accounts))
	for _, a := range accounts {
		amount = addSaturating(amount, a.Amount)
		sources = append(sources, a.Address)
	}
	if amount == 0 {
		return ClaimPlan{}, ErrNothingToClaim
	}

	mint := p.State.Mint
	ata, err := AssociatedTokenAddress2022(p.Authority, mint)
	if err != nil {
		return ClaimPlan{}, err
	}

	var steps []Step
	var fee uint64
	if chargeFee {
		fee = p.ClaimFeeLamports
		steps = append(steps, TreasuryFee{
			Payer:    p.Authority,
			Treasury: p.Treasury,
			Lamports: p.ClaimFeeLamports,
		})
	}
	if !p.DestinationExists {
		steps = append(steps, CreateAssociatedAccount{
			Payer:   p.Authority,
			Wallet:  p.Authority,
			Mint:    mint,
			Account: ata,
		})
	}
	if p.State.MintWithheld > 0 {
		steps = append(steps, WithdrawWithheldFromMint{
			Mint:        mint,
			Destination: ata,
			Authority:   p.Authority,
		})
	}
	if len(sources) > 0 {
		steps = append(steps, WithdrawWithheldFromAccounts{
			Mint:        mint,
			Destination: ata,
			Authority:   p.Authority,
			Sources:     sources,
		})
	}

	return ClaimPlan{
		Plan: Plan{
			Payer:             p.Authority,
			Mint:              mint,
			AssociatedAccount: ata,
			Steps:             steps,
		},
		Amount:      amount,
		Sources:     sources,
		FeeLamports: fee,
		Remaining:   remaining,
	}, nil
}
