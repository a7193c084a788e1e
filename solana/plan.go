package solana

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"gitlab.com/atechtools/token-launcher/common"
	"gitlab.com/atechtools/token-launcher/feepolicy"
)

const (
	// Size of a Token-2022 mint carrying the TransferFeeConfig and
	// MetadataPointer extensions: base account, account type byte and two
	// TLV entries with 4 byte headers.
	baseAccountLen           = 165
	accountTypeLen           = 1
	tlvHeaderLen             = 4
	transferFeeConfigLen     = 108
	metadataPointerLen       = 64
	mintWithExtensionsLength = baseAccountLen + accountTypeLen +
		tlvHeaderLen + transferFeeConfigLen +
		tlvHeaderLen + metadataPointerLen

	PlanMetadataKey = "plan"
)

var ErrInvalidPlan = errors.New("invalid plan parameters")

// MintAccountSpace is the space allocated by the create-account step.
func MintAccountSpace() uint64 {
	return mintWithExtensionsLength
}

// MetadataSpace is the number of bytes the embedded metadata TLV entry adds
// to the mint once the metadata step has run. Token-2022 reallocates the
// account itself, so the rent for these bytes has to be prepaid.
func MetadataSpace(name, symbol, uri string, fields []MetadataField) uint64 {
	size := tlvHeaderLen +
		solana.PublicKeyLength + // update authority
		solana.PublicKeyLength + // mint
		4 + len(name) +
		4 + len(symbol) +
		4 + len(uri) +
		4 // additional metadata vector length
	for _, f := range fields {
		size += 4 + len(f.Key) + 4 + len(f.Value)
	}
	return uint64(size)
}

// AssociatedTokenAddress2022 derives the Token-2022 associated token account.
func AssociatedTokenAddress2022(wallet, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{
			wallet[:],
			solana.Token2022ProgramID[:],
			mint[:],
		},
		solana.SPLAssociatedTokenAccountProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("cannot find ata: %w", err)
	}
	return addr, nil
}

type MetadataField struct {
	Key   string
	Value string
}

// PlanFields are the additional metadata entries written on chain.
func PlanFields(tier common.Tier) []MetadataField {
	return []MetadataField{{Key: PlanMetadataKey, Value: tier.String()}}
}

type StepKind int

const (
	StepCreateMintAccount StepKind = iota + 1
	StepInitTransferFeeConfig
	StepInitMetadataPointer
	StepInitMint
	StepWriteMetadata
	StepCreateAssociatedAccount
	StepMintTo
	StepRevokeMintAuthority
	StepTreasuryFee
	StepWithdrawWithheldFromMint
	StepWithdrawWithheldFromAccounts
)

var stepKindNames = map[StepKind]string{
	StepCreateMintAccount:       "create_mint_account",
	StepInitTransferFeeConfig:   "init_transfer_fee_config",
	StepInitMetadataPointer:     "init_metadata_pointer",
	StepInitMint:                "init_mint",
	StepWriteMetadata:           "write_metadata",
	StepCreateAssociatedAccount: "create_associated_account",
	StepMintTo:                  "mint_to",
	StepRevokeMintAuthority:     "revoke_mint_authority",
	StepTreasuryFee:             "treasury_fee",

	StepWithdrawWithheldFromMint:     "withdraw_withheld_from_mint",
	StepWithdrawWithheldFromAccounts: "withdraw_withheld_from_accounts",
}

func (k StepKind) String() string {
	if name, ok := stepKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(k))
}

type Step interface {
	Kind() StepKind
	Instructions() []solana.Instruction
}

type CreateMintAccount struct {
	Payer    solana.PublicKey
	Mint     solana.PublicKey
	Lamports uint64
	Space    uint64
}

func (s CreateMintAccount) Kind() StepKind { return StepCreateMintAccount }

func (s CreateMintAccount) Instructions() []solana.Instruction {
	return []solana.Instruction{
		system.NewCreateAccountInstruction(
			s.Lamports,
			s.Space,
			solana.Token2022ProgramID,
			s.Payer,
			s.Mint,
		).Build(),
	}
}

type InitTransferFeeConfig struct {
	Mint   solana.PublicKey
	Policy feepolicy.FeePolicy
}

func (s InitTransferFeeConfig) Kind() StepKind { return StepInitTransferFeeConfig }

func (s InitTransferFeeConfig) Instructions() []solana.Instruction {
	instructionData := instructionInitializeTransferFeeConfig{
		configAuthority:   s.Policy.ConfigAuthority,
		withdrawAuthority: s.Policy.WithdrawAuthority,
		basisPoints:       s.Policy.TransferFeeBasisPoints,
		maxFee:            s.Policy.MaxFeeAmount,
	}.InstructionData()
	return []solana.Instruction{
		solana.NewInstruction(
			solana.Token2022ProgramID,
			[]*solana.AccountMeta{
				solana.Meta(s.Mint).WRITE(),
			},
			instructionData,
		),
	}
}

type InitMetadataPointer struct {
	Mint      solana.PublicKey
	Authority solana.PublicKey
}

func (s InitMetadataPointer) Kind() StepKind { return StepInitMetadataPointer }

func (s InitMetadataPointer) Instructions() []solana.Instruction {
	authority := s.Authority
	instructionData := instructionInitializeMetadataPointer{
		authority:       &authority,
		metadataAddress: s.Mint,
	}.InstructionData()
	return []solana.Instruction{
		solana.NewInstruction(
			solana.Token2022ProgramID,
			[]*solana.AccountMeta{
				solana.Meta(s.Mint).WRITE(),
			},
			instructionData,
		),
	}
}

type InitMint struct {
	Mint            solana.PublicKey
	Decimals        uint8
	MintAuthority   solana.PublicKey
	FreezeAuthority *solana.PublicKey
}

func (s InitMint) Kind() StepKind { return StepInitMint }

func (s InitMint) Instructions() []solana.Instruction {
	instructionData := instructionInitializeMint2{
		decimals:        s.Decimals,
		mintAuthority:   s.MintAuthority,
		freezeAuthority: s.FreezeAuthority,
	}.InstructionData()
	return []solana.Instruction{
		solana.NewInstruction(
			solana.Token2022ProgramID,
			[]*solana.AccountMeta{
				solana.Meta(s.Mint).WRITE(),
			},
			instructionData,
		),
	}
}

// WriteMetadata stores name, symbol and uri in the mint itself and then adds
// every extra field with its own update instruction.
type WriteMetadata struct {
	Mint      solana.PublicKey
	Authority solana.PublicKey
	Name      string
	Symbol    string
	URI       string
	Fields    []MetadataField
}

func (s WriteMetadata) Kind() StepKind { return StepWriteMetadata }

func (s WriteMetadata) Instructions() []solana.Instruction {
	instructions := []solana.Instruction{
		solana.NewInstruction(
			solana.Token2022ProgramID,
			[]*solana.AccountMeta{
				solana.Meta(s.Mint).WRITE(),
				solana.Meta(s.Authority),
				solana.Meta(s.Mint),
				solana.Meta(s.Authority).SIGNER(),
			},
			instructionInitializeMetadata{
				Name:   s.Name,
				Symbol: s.Symbol,
				URI:    s.URI,
			}.InstructionData(),
		),
	}
	for _, f := range s.Fields {
		instructions = append(instructions, solana.NewInstruction(
			solana.Token2022ProgramID,
			[]*solana.AccountMeta{
				solana.Meta(s.Mint).WRITE(),
				solana.Meta(s.Authority).SIGNER(),
			},
			instructionUpdateMetadataField{
				Key:   f.Key,
				Value: f.Value,
			}.InstructionData(),
		))
	}
	return instructions
}

type CreateAssociatedAccount struct {
	Payer   solana.PublicKey
	Wallet  solana.PublicKey
	Mint    solana.PublicKey
	Account solana.PublicKey
}

func (s CreateAssociatedAccount) Kind() StepKind { return StepCreateAssociatedAccount }

func (s CreateAssociatedAccount) Instructions() []solana.Instruction {
	return []solana.Instruction{
		solana.NewInstruction(
			solana.SPLAssociatedTokenAccountProgramID,
			[]*solana.AccountMeta{
				solana.Meta(s.Payer).WRITE().SIGNER(),
				solana.Meta(s.Account).WRITE(),
				solana.Meta(s.Wallet),
				solana.Meta(s.Mint),
				solana.Meta(solana.SystemProgramID),
				solana.Meta(solana.Token2022ProgramID),
				solana.Meta(solana.SysVarRentPubkey),
			},
			[]byte{},
		),
	}
}

type MintTo struct {
	Mint        solana.PublicKey
	Destination solana.PublicKey
	Authority   solana.PublicKey
	RawAmount   uint64
}

func (s MintTo) Kind() StepKind { return StepMintTo }

func (s MintTo) Instructions() []solana.Instruction {
	return []solana.Instruction{
		solana.NewInstruction(
			solana.Token2022ProgramID,
			[]*solana.AccountMeta{
				solana.Meta(s.Mint).WRITE(),
				solana.Meta(s.Destination).WRITE(),
				solana.Meta(s.Authority).SIGNER(),
			},
			instructionMintTo{rawAmount: s.RawAmount}.InstructionData(),
		),
	}
}

type RevokeMintAuthority struct {
	Mint      solana.PublicKey
	Authority solana.PublicKey
}

func (s RevokeMintAuthority) Kind() StepKind { return StepRevokeMintAuthority }

func (s RevokeMintAuthority) Instructions() []solana.Instruction {
	return []solana.Instruction{
		solana.NewInstruction(
			solana.Token2022ProgramID,
			[]*solana.AccountMeta{
				solana.Meta(s.Mint).WRITE(),
				solana.Meta(s.Authority).SIGNER(),
			},
			instructionRevokeMintAuthority{}.InstructionData(),
		),
	}
}

type TreasuryFee struct {
	Payer    solana.PublicKey
	Treasury solana.PublicKey
	Lamports uint64
}

func (s TreasuryFee) Kind() StepKind { return StepTreasuryFee }

func (s TreasuryFee) Instructions() []solana.Instruction {
	return []solana.Instruction{
		system.NewTransferInstruction(s.Lamports, s.Payer, s.Treasury).Build(),
	}
}

type PlanParams struct {
	Spec        common.TokenSpec
	Policy      feepolicy.FeePolicy
	MetadataURI string

	Payer solana.PublicKey
	Mint  solana.PublicKey

	// BaseUnits is the supply already converted with common.ToBaseUnits.
	BaseUnits uint64

	// MintRentLamports is the rent for MintAccountSpace plus MetadataSpace.
	MintRentLamports uint64

	TreasuryFeeLamports uint64
	Treasury            solana.PublicKey
}

type Plan struct {
	Payer             solana.PublicKey
	Mint              solana.PublicKey
	AssociatedAccount solana.PublicKey
	Steps             []Step
}

func (p Plan) Kinds() []StepKind {
	kinds := make([]StepKind, 0, len(p.Steps))
	for _, s := range p.Steps {
		kinds = append(kinds, s.Kind())
	}
	return kinds
}

func (p Plan) Instructions() []solana.Instruction {
	var instructions []solana.Instruction
	for _, s := range p.Steps {
		instructions = append(instructions, s.Instructions()...)
	}
	return instructions
}

// BuildPlan assembles every instruction of a launch in the order the
// Token-2022 program requires: extensions are initialized before the mint,
// metadata is written after it and authority revocation comes after MintTo.
// BuildPlan does no I/O.
func BuildPlan(p PlanParams) (Plan, error) {
	if p.Payer.IsZero() || p.Mint.IsZero() {
		return Plan{}, fmt.Errorf("%w: payer and mint are required", ErrInvalidPlan)
	}
	if p.Payer.Equals(p.Mint) {
		return Plan{}, fmt.Errorf("%w: mint must be a fresh account", ErrInvalidPlan)
	}
	if !p.Spec.Tier.Valid() {
		return Plan{}, fmt.Errorf("%w: %s", feepolicy.ErrUnknownTier, p.Spec.Tier)
	}
	if p.Spec.Decimals > common.MaxDecimals {
		return Plan{}, fmt.Errorf("%w: decimals %d", ErrInvalidPlan, p.Spec.Decimals)
	}
	if p.Policy.TransferFeeBasisPoints > feepolicy.MaxBasisPoints {
		return Plan{}, fmt.Errorf("%w: transfer fee %d bps", ErrInvalidPlan, p.Policy.TransferFeeBasisPoints)
	}
	if p.TreasuryFeeLamports > 0 && p.Treasury.IsZero() {
		return Plan{}, fmt.Errorf("%w: treasury is required to collect fees", ErrInvalidPlan)
	}

	ata, err := AssociatedTokenAddress2022(p.Payer, p.Mint)
	if err != nil {
		return Plan{}, err
	}

	var freezeAuthority *solana.PublicKey
	if p.Spec.FreezeAuthorityEnabled {
		payer := p.Payer
		freezeAuthority = &payer
	}

	steps := []Step{
		CreateMintAccount{
			Payer:    p.Payer,
			Mint:     p.Mint,
			Lamports: p.MintRentLamports,
			Space:    MintAccountSpace(),
		},
		InitTransferFeeConfig{
			Mint:   p.Mint,
			Policy: p.Policy,
		},
		InitMetadataPointer{
			Mint:      p.Mint,
			Authority: p.Payer,
		},
		InitMint{
			Mint:            p.Mint,
			Decimals:        p.Spec.Decimals,
			MintAuthority:   p.Payer,
			FreezeAuthority: freezeAuthority,
		},
		WriteMetadata{
			Mint:      p.Mint,
			Authority: p.Payer,
			Name:      p.Spec.Name,
			Symbol:    p.Spec.Symbol,
			URI:       p.MetadataURI,
			Fields:    PlanFields(p.Spec.Tier),
		},
		CreateAssociatedAccount{
			Payer:   p.Payer,
			Wallet:  p.Payer,
			Mint:    p.Mint,
			Account: ata,
		},
		MintTo{
			Mint:        p.Mint,
			Destination: ata,
			Authority:   p.Payer,
			RawAmount:   p.BaseUnits,
		},
	}
	if p.Spec.RenounceOwnership || !p.Spec.Mintable {
		steps = append(steps, RevokeMintAuthority{
			Mint:      p.Mint,
			Authority: p.Payer,
		})
	}
	if p.TreasuryFeeLamports > 0 {
		steps = append(steps, TreasuryFee{
			Payer:    p.Payer,
			Treasury: p.Treasury,
			Lamports: p.TreasuryFeeLamports,
		})
	}

	return Plan{
		Payer:             p.Payer,
		Mint:              p.Mint,
		AssociatedAccount: ata,
		Steps:             steps,
	}, nil
}
