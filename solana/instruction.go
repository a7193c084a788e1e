package solana

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Token-2022 instruction numbers.
// https://github.com/solana-labs/solana-program-library/blob/master/token/program-2022/src/instruction.rs
const (
	instructionNumSetAuthority         byte = 6
	instructionNumMintTo               byte = 7
	instructionNumInitializeMint2      byte = 20
	instructionNumTransferFeeExtension byte = 26
	instructionNumMetadataPointer      byte = 39

	// Sub-instruction shared by both extensions.
	extensionInitialize byte = 0

	// TransferFeeExtension sub-instructions.
	transferFeeWithdrawFromMint     byte = 2
	transferFeeWithdrawFromAccounts byte = 3

	authorityTypeMintTokens byte = 0
)

var (
	metadataInitializeDiscriminator  = interfaceDiscriminator("spl_token_metadata_interface:initialize_account")
	metadataUpdateFieldDiscriminator = interfaceDiscriminator("spl_token_metadata_interface:updating_field")
)

func interfaceDiscriminator(name string) [8]byte {
	var d [8]byte
	sum := sha256.Sum256([]byte(name))
	copy(d[:], sum[:8])
	return d
}

func appendOptionalKey(data []byte, key *solana.PublicKey) []byte {
	if key == nil {
		data = append(data, 0)
		return append(data, make([]byte, solana.PublicKeyLength)...)
	}
	data = append(data, 1)
	return append(data, key[:]...)
}

// appendNonZeroKey encodes OptionalNonZeroPubkey, where all zeroes means none.
func appendNonZeroKey(data []byte, key *solana.PublicKey) []byte {
	if key == nil {
		return append(data, make([]byte, solana.PublicKeyLength)...)
	}
	return append(data, key[:]...)
}

type instructionInitializeMint2 struct {
	decimals        uint8
	mintAuthority   solana.PublicKey
	freezeAuthority *solana.PublicKey
}

func (i instructionInitializeMint2) InstructionData() []byte {
	instructionData := make([]byte, 0, 67)
	instructionData = append(instructionData, instructionNumInitializeMint2, i.decimals)
	instructionData = append(instructionData, i.mintAuthority[:]...)
	instructionData = appendOptionalKey(instructionData, i.freezeAuthority)
	return instructionData
}

type instructionMintTo struct {
	rawAmount uint64
}

func (i instructionMintTo) InstructionData() []byte {
	instructionData := make([]byte, 0, 9)
	instructionData = append(instructionData, instructionNumMintTo)
	instructionData = binary.LittleEndian.AppendUint64(instructionData, i.rawAmount)
	return instructionData
}

// instructionRevokeMintAuthority is SetAuthority(MintTokens, None).
type instructionRevokeMintAuthority struct{}

func (i instructionRevokeMintAuthority) InstructionData() []byte {
	instructionData := make([]byte, 0, 35)
	instructionData = append(instructionData, instructionNumSetAuthority, authorityTypeMintTokens)
	instructionData = appendOptionalKey(instructionData, nil)
	return instructionData
}

type instructionInitializeTransferFeeConfig struct {
	configAuthority   solana.PublicKey
	withdrawAuthority solana.PublicKey
	basisPoints       uint16
	maxFee            uint64
}

func (i instructionInitializeTransferFeeConfig) InstructionData() []byte {
	instructionData := make([]byte, 0, 78)
	instructionData = append(instructionData, instructionNumTransferFeeExtension, extensionInitialize)
	instructionData = appendOptionalKey(instructionData, &i.configAuthority)
	instructionData = appendOptionalKey(instructionData, &i.withdrawAuthority)
	instructionData = binary.LittleEndian.AppendUint16(instructionData, i.basisPoints)
	instructionData = binary.LittleEndian.AppendUint64(instructionData, i.maxFee)
	return instructionData
}

type instructionWithdrawWithheldFromMint struct{}

func (i instructionWithdrawWithheldFromMint) InstructionData() []byte {
	return []byte{instructionNumTransferFeeExtension, transferFeeWithdrawFromMint}
}

type instructionWithdrawWithheldFromAccounts struct {
	numAccounts uint8
}

func (i instructionWithdrawWithheldFromAccounts) InstructionData() []byte {
	return []byte{instructionNumTransferFeeExtension, transferFeeWithdrawFromAccounts, i.numAccounts}
}

type instructionInitializeMetadataPointer struct {
	authority       *solana.PublicKey
	metadataAddress solana.PublicKey
}

func (i instructionInitializeMetadataPointer) InstructionData() []byte {
	instructionData := make([]byte, 0, 66)
	instructionData = append(instructionData, instructionNumMetadataPointer, extensionInitialize)
	instructionData = appendNonZeroKey(instructionData, i.authority)
	instructionData = append(instructionData, i.metadataAddress[:]...)
	return instructionData
}

type instructionInitializeMetadata struct {
	Name   string
	Symbol string
	URI    string
}

func (i instructionInitializeMetadata) InstructionData() []byte {
	return borshWithDiscriminator(metadataInitializeDiscriminator, i)
}

// metadataFieldKey is variant 3 of the token-metadata Field enum, a custom key.
const metadataFieldKey byte = 3

type instructionUpdateMetadataField struct {
	Key   string
	Value string
}

func (i instructionUpdateMetadataField) InstructionData() []byte {
	payload := struct {
		Field byte
		Key   string
		Value string
	}{
		Field: metadataFieldKey,
		Key:   i.Key,
		Value: i.Value,
	}
	return borshWithDiscriminator(metadataUpdateFieldDiscriminator, payload)
}

// borshWithDiscriminator panics on encoder errors: the payloads are fixed
// structs of strings and bytes written into memory.
func borshWithDiscriminator(discriminator [8]byte, v interface{}) []byte {
	buf := new(bytes.Buffer)
	buf.Write(discriminator[:])
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		panic(fmt.Sprintf("cannot encode instruction: %v", err))
	}
	return buf.Bytes()
}
