package solana

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func tlv(typ uint16, value []byte) []byte {
	entry := make([]byte, tlvHeaderLen, tlvHeaderLen+len(value))
	binary.LittleEndian.PutUint16(entry[0:2], typ)
	binary.LittleEndian.PutUint16(entry[2:4], uint16(len(value)))
	return append(entry, value...)
}

func mintData(withdrawAuthority solana.PublicKey, withheld uint64) []byte {
	config := make([]byte, transferFeeConfigLen)
	copy(config[solana.PublicKeyLength:], withdrawAuthority[:])
	binary.LittleEndian.PutUint64(config[2*solana.PublicKeyLength:], withheld)

	data := make([]byte, baseAccountLen)
	data = append(data, accountTypeMint)
	data = append(data, tlv(extensionTransferFeeConfig, config)...)
	data = append(data, tlv(18, make([]byte, metadataPointerLen))...)
	return data
}

func accountData(mint solana.PublicKey, withheld uint64) []byte {
	data := make([]byte, baseAccountLen)
	copy(data, mint[:])
	data = append(data, accountTypeAccount)
	amount := make([]byte, 8)
	binary.LittleEndian.PutUint64(amount, withheld)
	return append(data, tlv(extensionTransferFeeAmount, amount)...)
}

func TestParseMintFeeState(t *testing.T) {
	authority := newKey(t).PublicKey()

	state, err := ParseMintFeeState(mintData(authority, 1234))
	require.NoError(t, err)
	require.Equal(t, authority, state.WithdrawAuthority)
	require.Equal(t, uint64(1234), state.MintWithheld)

	_, err = ParseMintFeeState(make([]byte, 82))
	require.ErrorIs(t, err, ErrNotTokenMint)

	bare := append(make([]byte, baseAccountLen), accountTypeMint)
	bare = append(bare, tlv(18, make([]byte, metadataPointerLen))...)
	_, err = ParseMintFeeState(bare)
	require.ErrorIs(t, err, ErrNoTransferFee)

	truncated := mintData(authority, 1)[:baseAccountLen+accountTypeLen+tlvHeaderLen+10]
	_, err = ParseMintFeeState(truncated)
	require.ErrorIs(t, err, ErrNoTransferFee)
}

func TestParseWithheldAmount(t *testing.T) {
	mint := newKey(t).PublicKey()

	amount, ok := ParseWithheldAmount(accountData(mint, 77))
	require.True(t, ok)
	require.Equal(t, uint64(77), amount)

	_, ok = ParseWithheldAmount(mintData(mint, 77))
	require.False(t, ok)

	_, ok = ParseWithheldAmount(make([]byte, baseAccountLen))
	require.False(t, ok)
}

func TestFeeStateTotalSaturates(t *testing.T) {
	state := FeeState{
		MintWithheld: ^uint64(0) - 1,
		Accounts:     []WithheldAccount{{Amount: 5}},
	}
	require.Equal(t, ^uint64(0), state.Total())
}

func TestBuildClaimPlanCreator(t *testing.T) {
	creator, mint, treasury := newKey(t).PublicKey(), newKey(t).PublicKey(), newKey(t).PublicKey()
	small, large := newKey(t).PublicKey(), newKey(t).PublicKey()

	plan, err := BuildClaimPlan(ClaimParams{
		Authority:        creator,
		Treasury:         treasury,
		ClaimFeeLamports: 5_000_000,
		State: FeeState{
			Mint:              mint,
			WithdrawAuthority: creator,
			MintWithheld:      100,
			Accounts: []WithheldAccount{
				{Address: small, Amount: 10},
				{Address: newKey(t).PublicKey(), Amount: 0},
				{Address: large, Amount: 500},
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []StepKind{
		StepTreasuryFee,
		StepCreateAssociatedAccount,
		StepWithdrawWithheldFromMint,
		StepWithdrawWithheldFromAccounts,
	}, plan.Kinds())
	require.Equal(t, uint64(610), plan.Amount)
	require.Equal(t, []solana.PublicKey{large, small}, plan.Sources)
	require.Zero(t, plan.Remaining)
	require.Equal(t, uint64(5_000_000), plan.FeeLamports)

	fee := plan.Steps[0].(TreasuryFee)
	require.Equal(t, creator, fee.Payer)
	require.Equal(t, treasury, fee.Treasury)
	require.Equal(t, uint64(5_000_000), fee.Lamports)

	ata, err := AssociatedTokenAddress2022(creator, mint)
	require.NoError(t, err)
	require.Equal(t, ata, plan.AssociatedAccount)

	instructions := plan.Instructions()
	require.Len(t, instructions, 4)

	fromMint := instructions[2]
	data, err := fromMint.Data()
	require.NoError(t, err)
	require.Equal(t, []byte{26, 2}, data)

	fromAccounts := instructions[3]
	data, err = fromAccounts.Data()
	require.NoError(t, err)
	require.Equal(t, []byte{26, 3, 2}, data)
	accounts := fromAccounts.Accounts()
	require.Len(t, accounts, 5)
	require.Equal(t, mint, accounts[0].PublicKey)
	require.False(t, accounts[0].IsWritable)
	require.Equal(t, ata, accounts[1].PublicKey)
	require.True(t, accounts[1].IsWritable)
	require.Equal(t, creator, accounts[2].PublicKey)
	require.True(t, accounts[2].IsSigner)
	require.Equal(t, large, accounts[3].PublicKey)
	require.True(t, accounts[4].IsWritable)
}

func TestBuildClaimPlanTreasuryWaivesFee(t *testing.T) {
	treasury, mint := newKey(t).PublicKey(), newKey(t).PublicKey()

	plan, err := BuildClaimPlan(ClaimParams{
		Authority:         treasury,
		Treasury:          treasury,
		ClaimFeeLamports:  5_000_000,
		DestinationExists: true,
		State: FeeState{
			Mint:              mint,
			WithdrawAuthority: treasury,
			Accounts:          []WithheldAccount{{Address: newKey(t).PublicKey(), Amount: 3}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []StepKind{StepWithdrawWithheldFromAccounts}, plan.Kinds())
	require.Zero(t, plan.FeeLamports)
	require.Equal(t, uint64(3), plan.Amount)
}

func TestBuildClaimPlanCapsSources(t *testing.T) {
	creator, mint := newKey(t).PublicKey(), newKey(t).PublicKey()
	var accounts []WithheldAccount
	for i := 0; i < MaxClaimSources+5; i++ {
		accounts = append(accounts, WithheldAccount{Address: newKey(t).PublicKey(), Amount: uint64(i + 1)})
	}

	plan, err := BuildClaimPlan(ClaimParams{
		Authority:         creator,
		DestinationExists: true,
		State: FeeState{
			Mint:              mint,
			WithdrawAuthority: creator,
			Accounts:          accounts,
		},
	})
	require.NoError(t, err)
	require.Len(t, plan.Sources, MaxClaimSources)
	require.Equal(t, 5, plan.Remaining)
	require.Equal(t, accounts[len(accounts)-1].Address, plan.Sources[0])
}

func TestBuildClaimPlanErrors(t *testing.T) {
	creator, mint, other := newKey(t).PublicKey(), newKey(t).PublicKey(), newKey(t).PublicKey()

	_, err := BuildClaimPlan(ClaimParams{
		Authority: other,
		State:     FeeState{Mint: mint, WithdrawAuthority: creator, MintWithheld: 1},
	})
	require.ErrorIs(t, err, ErrNotWithdrawAuthority)

	_, err = BuildClaimPlan(ClaimParams{
		Authority: creator,
		State:     FeeState{Mint: mint, MintWithheld: 1},
	})
	require.ErrorIs(t, err, ErrNotWithdrawAuthority)

	_, err = BuildClaimPlan(ClaimParams{
		Authority: creator,
		State: FeeState{
			Mint:              mint,
			WithdrawAuthority: creator,
			Accounts:          []WithheldAccount{{Address: other, Amount: 0}},
		},
	})
	require.ErrorIs(t, err, ErrNothingToClaim)

	_, err = BuildClaimPlan(ClaimParams{
		Authority:        creator,
		ClaimFeeLamports: 1,
		State:            FeeState{Mint: mint, WithdrawAuthority: creator, MintWithheld: 1},
	})
	require.ErrorIs(t, err, ErrInvalidPlan)
}
