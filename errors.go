package launcher

import (
	"errors"
	"fmt"

	"gitlab.com/atechtools/token-launcher/common"
	"gitlab.com/atechtools/token-launcher/feepolicy"
	"gitlab.com/atechtools/token-launcher/launchdb"
	"gitlab.com/atechtools/token-launcher/metadata"
	"gitlab.com/atechtools/token-launcher/solana"
)

// ErrorKind is the category of a launch failure. Each kind has its own
// notification text.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindValidation          ErrorKind = "validation"
	KindSupplyOverflow      ErrorKind = "supply_overflow"
	KindMetadataUpload      ErrorKind = "metadata_upload"
	KindUnsupportedWallet   ErrorKind = "unsupported_wallet"
	KindUserRejected        ErrorKind = "user_rejected"
	KindSubmissionRejected  ErrorKind = "submission_rejected"
	KindConfirmationTimeout ErrorKind = "confirmation_timeout"
	KindRegistryWrite       ErrorKind = "registry_write"
	KindExpired             ErrorKind = "expired"
	KindInternal            ErrorKind = "internal"
)

var (
	ErrUnknownLaunch  = errors.New("unknown launch")
	ErrLaunchExpired  = errors.New("prepared launch expired")
	ErrTampered       = errors.New("transaction differs from the prepared one")
	ErrAlreadyStarted = errors.New("launch was already submitted")
	ErrUnknownClaim   = errors.New("unknown or replaced claim")
)

// RegistryWriteError is logged when the token registry refused or missed a
// record. It never fails a launch.
type RegistryWriteError struct {
	Mint common.SolanaAddress
	Err  error
}

func (e *RegistryWriteError) Error() string {
	return fmt.Sprintf("registry write for %s failed: %v", e.Mint, e.Err)
}

func (e *RegistryWriteError) Unwrap() error {
	return e.Err
}

func Classify(err error) ErrorKind {
	var registryErr *RegistryWriteError
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &registryErr):
		return KindRegistryWrite
	case errors.Is(err, common.ErrSupplyOverflow):
		return KindSupplyOverflow
	case errors.Is(err, common.ErrValidation),
		errors.Is(err, feepolicy.ErrUnknownTier),
		errors.Is(err, ErrUnknownLaunch),
		errors.Is(err, ErrTampered),
		errors.Is(err, ErrAlreadyStarted),
		errors.Is(err, ErrUnknownClaim),
		errors.Is(err, solana.ErrNotWithdrawAuthority),
		errors.Is(err, solana.ErrNothingToClaim),
		errors.Is(err, solana.ErrNoTransferFee),
		errors.Is(err, solana.ErrNotTokenMint),
		errors.Is(err, launchdb.ErrDuplicateLaunch):
		return KindValidation
	case errors.Is(err, ErrLaunchExpired):
		return KindExpired
	case errors.Is(err, metadata.ErrUpload):
		return KindMetadataUpload
	case errors.Is(err, solana.ErrUnsupportedWallet):
		return KindUnsupportedWallet
	case errors.Is(err, solana.ErrUserRejected):
		return KindUserRejected
	case errors.Is(err, solana.ErrConfirmationTimeout):
		return KindConfirmationTimeout
	case errors.Is(err, solana.ErrRejected), errors.Is(err, solana.ErrExecutionFailed):
		return KindSubmissionRejected
	}
	return KindInternal
}

func (k ErrorKind) Message() string {
	switch k {
	case KindNone:
		return "Token created successfully."
	case KindValidation:
		return "Please check the token details and try again."
	case KindSupplyOverflow:
		return "The initial supply is too large for the chosen number of decimals."
	case KindMetadataUpload:
		return "Token metadata could not be uploaded. The token was created without it."
	case KindUnsupportedWallet:
		return "Your wallet cannot sign this transaction. Please connect a different wallet."
	case KindUserRejected:
		return "You declined the transaction in your wallet."
	case KindSubmissionRejected:
		return "The network rejected the transaction. No token was created."
	case KindConfirmationTimeout:
		return "The transaction was sent but not confirmed in time. Check the explorer before retrying."
	case KindRegistryWrite:
		return "The token was created but could not be listed yet."
	case KindExpired:
		return "The transaction expired before it was signed. Please start again."
	}
	return "Token creation failed. Please try again later."
}

// apiError is what handlers return, so clients can branch on the kind.
func apiError(err error) error {
	if err == nil {
		return nil
	}
	var e Error
	if errors.As(err, &e) {
		return e
	}
	return Error{Kind: Classify(err), Msg: err.Error()}
}

// broadcastError is apiError for a transaction that may already be on the
// wire.
func broadcastError(err error, signature string) error {
	e := apiError(err).(Error)
	if signature != "" {
		e.Signature = signature
		e.Msg = fmt.Sprintf("%s (signature %s)", e.Msg, signature)
	}
	return e
}
