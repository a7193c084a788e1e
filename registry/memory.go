package registry

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gitlab.com/atechtools/token-launcher/common"
)

// Memory is an in-process registry with the same semantics as the hosted
// one. It backs the service when no registry URL is configured.
type Memory struct {
	mu      sync.Mutex
	nextID  int64
	ids     map[common.SolanaAddress]int64
	records map[common.SolanaAddress]common.TokenRecord
	timeNow func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		ids:     make(map[common.SolanaAddress]int64),
		records: make(map[common.SolanaAddress]common.TokenRecord),
		timeNow: time.Now,
	}
}

func (m *Memory) CreateToken(ctx context.Context, req *CreateTokenRequest) (*CreateTokenResponse, error) {
	if req.MintAddress.IsZero() || req.CreatorWallet.IsZero() || req.Name == "" || req.Symbol == "" {
		return nil, Error{Msg: "Missing required fields"}
	}
	if !req.Plan.Valid() {
		return nil, Error{Msg: "Invalid plan"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	record, exists := m.records[req.MintAddress]
	if !exists {
		m.nextID++
		m.ids[req.MintAddress] = m.nextID
		record = common.TokenRecord{
			MintAddress:   req.MintAddress,
			CreatorWallet: req.CreatorWallet,
			CreatedAt:     m.timeNow().UTC(),
		}
	}
	record.Plan = req.Plan
	record.Name = req.Name
	record.Symbol = req.Symbol
	m.records[req.MintAddress] = record

	return &CreateTokenResponse{
		Success: true,
		ID:      m.ids[req.MintAddress],
		Message: "Token stored successfully",
	}, nil
}

func (m *Memory) ListTokens(ctx context.Context, req *ListTokensRequest) (*ListTokensResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{ByPlan: make(map[string]int)}
	tokens := make([]common.TokenRecord, 0, len(m.records))
	for _, r := range m.records {
		stats.ByPlan[r.Plan.String()]++
		if req.Creator != "" && r.CreatorWallet.String() != req.Creator {
			continue
		}
		if req.Plan != "" && !strings.EqualFold(r.Plan.String(), req.Plan) {
			continue
		}
		tokens = append(tokens, r)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].CreatedAt.Equal(tokens[j].CreatedAt) {
			return m.ids[tokens[i].MintAddress] > m.ids[tokens[j].MintAddress]
		}
		return tokens[i].CreatedAt.After(tokens[j].CreatedAt)
	})
	if req.Limit > 0 && len(tokens) > req.Limit {
		tokens = tokens[:req.Limit]
	}
	stats.Total = len(tokens)

	return &ListTokensResponse{
		Success: true,
		Tokens:  tokens,
		Stats:   stats,
	}, nil
}
