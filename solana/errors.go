package solana

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

var (
	// ErrUserRejected indicates that the wallet owner declined to sign.
	ErrUserRejected = errors.New("user rejected the request")

	// ErrRejected indicates that the cluster refused the transaction, e.g.
	// on preflight simulation. Such errors are never retried.
	ErrRejected = errors.New("transaction rejected")

	// ErrConfirmationTimeout indicates that the transaction was sent but its
	// confirmation did not arrive in time. It may still land.
	ErrConfirmationTimeout = errors.New("confirmation timeout")

	// ErrUnsupportedWallet indicates that the wallet can neither sign and
	// send nor sign alone.
	ErrUnsupportedWallet = errors.New("unsupported wallet")

	// ErrExecutionFailed indicates that the transaction landed but one of
	// its instructions failed.
	ErrExecutionFailed = errors.New("transaction execution failed")

	ErrNotRentExempt        = errors.New("lamport balance below rent-exempt threshold")
	ErrAccountInUse         = errors.New("account already in use")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInvalidMint          = errors.New("invalid mint")
	ErrOwnerMismatch        = errors.New("owner does not match")
	ErrFixedSupply          = errors.New("fixed supply")
	ErrUninitializedState   = errors.New("state is uninitialized")
	ErrInvalidInstruction   = errors.New("invalid instruction")
	ErrInvalidState         = errors.New("invalid state")
	ErrOverflow             = errors.New("operation overflowed")
	ErrAuthorityType        = errors.New("authority type not supported")
	ErrMintDecimalsMismatch = errors.New("mint decimals mismatch")
)

// https://github.com/solana-labs/solana-program-library/blob/master/token/program-2022/src/error.rs
var tokenErrorMap = map[int]error{
	0:  ErrNotRentExempt,
	1:  ErrInsufficientFunds,
	2:  ErrInvalidMint,
	4:  ErrOwnerMismatch,
	5:  ErrFixedSupply,
	6:  ErrAccountInUse,
	9:  ErrUninitializedState,
	12: ErrInvalidInstruction,
	13: ErrInvalidState,
	14: ErrOverflow,
	15: ErrAuthorityType,
	18: ErrMintDecimalsMismatch,
}

// https://github.com/solana-labs/solana/blob/master/sdk/program/src/system_instruction.rs
var systemErrorMap = map[int]error{
	0: ErrAccountInUse,
	1: ErrInsufficientFunds,
}

// InstructionError is a decoded custom program error.
type InstructionError struct {
	Index int
	Code  int
	Err   error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d failed with custom error %d: %v", e.Index, e.Code, e.Err)
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}

// parsePreflightError turns a preflight RPC error into ErrRejected, decoding
// the custom program error when possible. programs lists the program id of
// every instruction of the sent transaction.
func parsePreflightError(origErr error, programs []solana.PublicKey) error {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(origErr, &rpcErr) {
		return origErr
	}
	dataMap, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%w: %v", ErrRejected, origErr)
	}
	errVal, ok := dataMap["err"]
	if !ok {
		return fmt.Errorf("%w: %v", ErrRejected, origErr)
	}
	if err := parseErrorValue(errVal, programs); err != nil {
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}
	return fmt.Errorf("%w: %v", ErrRejected, origErr)
}

func parseErrorValue(errorValue interface{}, programs []solana.PublicKey) error {
	if errorValue == nil {
		return nil
	}
	errMap, ok := errorValue.(map[string]interface{})
	if !ok {
		return nil
	}
	instructionErrorVal, ok := errMap["InstructionError"]
	if !ok {
		return nil
	}
	instructionErrorSlice, ok := instructionErrorVal.([]interface{})
	if !ok {
		return nil
	}
	if len(instructionErrorSlice) < 2 {
		return nil
	}
	index, ok := toInt(instructionErrorSlice[0])
	if !ok {
		return nil
	}
	if err := decodeCustomError(index, instructionErrorSlice[1], programs); err != nil {
		return err
	}
	return nil
}

func decodeCustomError(index int, value interface{}, programs []solana.PublicKey) error {
	customErrorStructMap, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	if len(customErrorStructMap) != 1 {
		return nil
	}
	errorCodeRaw, ok := customErrorStructMap["Custom"]
	if !ok {
		return nil
	}
	errorCode, ok := toInt(errorCodeRaw)
	if !ok {
		return nil
	}

	errorMap := tokenErrorMap
	if index >= 0 && index < len(programs) && programs[index].Equals(solana.SystemProgramID) {
		errorMap = systemErrorMap
	}
	mappedErr, ok := errorMap[errorCode]
	if !ok {
		mappedErr = ErrExecutionFailed
	}
	return &InstructionError{Index: index, Code: errorCode, Err: mappedErr}
}

func toInt(raw interface{}) (int, bool) {
	switch n := raw.(type) {
	case json.Number: // This type comes from a Preflight error
		v, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(v), true
	case float64: // This type comes from a Transaction error
		return int(n), true
	}
	return 0, false
}

func programIDs(tx *solana.Transaction) []solana.PublicKey {
	programs := make([]solana.PublicKey, 0, len(tx.Message.Instructions))
	for _, inst := range tx.Message.Instructions {
		programID, err := tx.ResolveProgramIDIndex(inst.ProgramIDIndex)
		if err != nil {
			programID = solana.PublicKey{}
		}
		programs = append(programs, programID)
	}
	return programs
}
