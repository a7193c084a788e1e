package registry

import (
	"context"

	"gitlab.com/atechtools/token-launcher/common"
)

// Service is the external token registry. CreateToken upserts on the mint
// address; ListTokens returns the newest tokens first.
type Service interface {
	CreateToken(ctx context.Context, req *CreateTokenRequest) (*CreateTokenResponse, error)
	ListTokens(ctx context.Context, req *ListTokensRequest) (*ListTokensResponse, error)
}

type CreateTokenRequest struct {
	MintAddress   common.SolanaAddress `json:"mint_address"`
	CreatorWallet common.SolanaAddress `json:"creator_wallet"`
	Plan          common.Tier          `json:"plan"`
	Name          string               `json:"name"`
	Symbol        string               `json:"symbol"`
}

type CreateTokenResponse struct {
	Success bool   `json:"success"`
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

type ListTokensRequest struct {
	Creator string `json:"creator,omitempty"`
	Plan    string `json:"plan,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

type Stats struct {
	Total  int            `json:"total"`
	ByPlan map[string]int `json:"by_plan"`
}

type ListTokensResponse struct {
	Success bool                 `json:"success"`
	Tokens  []common.TokenRecord `json:"tokens"`
	Stats   Stats                `json:"stats"`
}

type Error struct {
	Msg string
}

func (err Error) Error() string {
	return err.Msg
}
