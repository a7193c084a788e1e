package launcher

//go:generate go run ./gen/...

import (
	"context"

	"gitlab.com/atechtools/token-launcher/common"
)

type Service interface {
	QuoteFees(ctx context.Context, req *QuoteFeesRequest) (*QuoteFeesResponse, error)
	PrepareLaunch(ctx context.Context, req *PrepareLaunchRequest) (*PrepareLaunchResponse, error)
	SubmitLaunch(ctx context.Context, req *SubmitLaunchRequest) (*SubmitLaunchResponse, error)
	LaunchStatus(ctx context.Context, req *LaunchStatusRequest) (*LaunchStatusResponse, error)
	History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error)

	WithheldFees(ctx context.Context, req *WithheldFeesRequest) (*WithheldFeesResponse, error)
	PrepareClaim(ctx context.Context, req *PrepareClaimRequest) (*PrepareClaimResponse, error)
	SubmitClaim(ctx context.Context, req *SubmitClaimRequest) (*SubmitClaimResponse, error)
}

type QuoteFeesRequest struct {
	Plan               common.Tier          `json:"plan"`
	RoyaltyBasisPoints *uint16              `json:"royalty_basis_points,omitempty"`
	Creator            common.SolanaAddress `json:"creator"`

	// Name, Symbol and MetadataURI size the metadata rent. They may be left
	// empty for a rough quote.
	Name        string `json:"name,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
	MetadataURI string `json:"metadata_uri,omitempty"`
}

type QuoteFeesResponse struct {
	Plan                   common.Tier          `json:"plan"`
	TransferFeeBasisPoints uint16               `json:"transfer_fee_basis_points"`
	MaxFeeAmount           uint64               `json:"max_fee_amount"`
	FeeAuthority           common.SolanaAddress `json:"fee_authority"`
	CreationFeeLamports    uint64               `json:"creation_fee_lamports"`
	CreationFee            string               `json:"creation_fee"`
	RentLamports           uint64               `json:"rent_lamports"`
	TotalLamports          uint64               `json:"total_lamports"`
}

type PrepareLaunchRequest struct {
	Owner common.SolanaAddress `json:"owner"`
	Spec  common.TokenSpec     `json:"spec"`
}

type PrepareLaunchResponse struct {
	Mint              common.SolanaAddress `json:"mint"`
	AssociatedAccount common.SolanaAddress `json:"associated_account"`

	// Transaction is base64, signed by the mint keypair only.
	Transaction          string `json:"transaction"`
	LastValidBlockHeight uint64 `json:"last_valid_block_height"`

	MetadataURI         string   `json:"metadata_uri"`
	NoMetadata          bool     `json:"no_metadata"`
	CreationFeeLamports uint64   `json:"creation_fee_lamports"`
	Steps               []string `json:"steps"`
}

type SubmitLaunchRequest struct {
	Mint common.SolanaAddress `json:"mint"`

	// Transaction is the base64 transaction returned by PrepareLaunch with
	// the owner signature added.
	Transaction string `json:"transaction"`
}

type SubmitLaunchResponse struct {
	Result LaunchResult `json:"result"`
}

type LaunchStatusRequest struct {
	Mint common.SolanaAddress `json:"mint"`
}

type LaunchStatusResponse struct {
	Launch common.LaunchRecord `json:"launch"`
}

type HistoryRequest struct {
	Creator common.SolanaAddress `json:"creator"`
	Limit   int                  `json:"limit"`
}

type HistoryResponse struct {
	Launches []common.LaunchRecord `json:"launches"`
}

// LaunchResult is what a finished launch reports back.
type LaunchResult struct {
	Mint                   common.SolanaAddress `json:"mint"`
	AssociatedAccount      common.SolanaAddress `json:"associated_account"`
	Signature              string               `json:"signature"`
	Status                 common.LaunchStatus  `json:"status"`
	MetadataURI            string               `json:"metadata_uri"`
	NoMetadata             bool                 `json:"no_metadata"`
	TransferFeeBasisPoints uint16               `json:"transfer_fee_basis_points"`
	CreationFeeLamports    uint64               `json:"creation_fee_lamports"`
}

type WithheldFeesRequest struct {
	Mint common.SolanaAddress `json:"mint"`
}

type WithheldAccount struct {
	Address common.SolanaAddress `json:"address"`
	Amount  uint64               `json:"amount"`
}

type WithheldFeesResponse struct {
	Mint              common.SolanaAddress `json:"mint"`
	WithdrawAuthority common.SolanaAddress `json:"withdraw_authority"`
	MintWithheld      uint64               `json:"mint_withheld"`
	Accounts          []WithheldAccount    `json:"accounts"`
	Total             uint64               `json:"total"`
}

type PrepareClaimRequest struct {
	Mint common.SolanaAddress `json:"mint"`

	// Authority is the withdraw authority of the mint: the creator for
	// enterprise tokens, the treasury otherwise.
	Authority common.SolanaAddress `json:"authority"`
}

type PrepareClaimResponse struct {
	Mint        common.SolanaAddress `json:"mint"`
	Destination common.SolanaAddress `json:"destination"`

	// Transaction is base64 and unsigned.
	Transaction          string `json:"transaction"`
	LastValidBlockHeight uint64 `json:"last_valid_block_height"`

	Amount           uint64   `json:"amount"`
	Accounts         int      `json:"accounts"`
	Remaining        int      `json:"remaining"`
	ClaimFeeLamports uint64   `json:"claim_fee_lamports"`
	Steps            []string `json:"steps"`
}

type SubmitClaimRequest struct {
	Mint        common.SolanaAddress `json:"mint"`
	Transaction string               `json:"transaction"`
}

type SubmitClaimResponse struct {
	Result ClaimResult `json:"result"`
}

type ClaimResult struct {
	Mint        common.SolanaAddress `json:"mint"`
	Destination common.SolanaAddress `json:"destination"`
	Signature   string               `json:"signature"`

	// Amount is in base units of the token.
	Amount           uint64 `json:"amount"`
	Accounts         int    `json:"accounts"`
	Remaining        int    `json:"remaining"`
	ClaimFeeLamports uint64 `json:"claim_fee_lamports"`
}

type Error struct {
	Kind ErrorKind `json:"kind"`
	Msg  string    `json:"msg"`

	// Signature is set when the transaction was broadcast before the
	// failure, e.g. on a confirmation timeout.
	Signature string `json:"signature,omitempty"`
}

func (err Error) Error() string {
	return err.Msg
}
