package solana

import (
	"github.com/gagliardetto/solana-go/rpc"
)

type MinterConfig struct {
	// Cluster config.
	Cluster rpc.Cluster

	// Commitment used for blockhashes, rent quotes and confirmations.
	Commitment rpc.CommitmentType

	// Skip preflight simulation when broadcasting.
	SkipPreflight bool
}

func NewDevNetConfig(heliusApiKey string) MinterConfig {
	return MinterConfig{
		Cluster: rpc.Cluster{
			Name: "devnet",
			RPC:  "https://devnet.helius-rpc.com/?api-key=" + heliusApiKey,
			WS:   "wss://devnet.helius-rpc.com/?api-key=" + heliusApiKey,
		},
		Commitment: rpc.CommitmentConfirmed,
	}
}

func NewMainNetConfig(heliusApiKey string) MinterConfig {
	return MinterConfig{
		Cluster: rpc.Cluster{
			Name: "mainnet-beta",
			RPC:  "https://mainnet.helius-rpc.com/?api-key=" + heliusApiKey,
			WS:   "wss://mainnet.helius-rpc.com/?api-key=" + heliusApiKey,
		},
		Commitment: rpc.CommitmentConfirmed,
	}
}

// NewCustomConfig is used with a local validator or another provider.
func NewCustomConfig(name, rpcURL, wsURL string) MinterConfig {
	return MinterConfig{
		Cluster: rpc.Cluster{
			Name: name,
			RPC:  rpcURL,
			WS:   wsURL,
		},
		Commitment: rpc.CommitmentConfirmed,
	}
}
