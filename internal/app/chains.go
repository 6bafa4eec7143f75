package app

import (
	"context"
	"time"

	"github.com/decred/slog"

	"arcade-pot/internal/config"
	"arcade-pot/internal/domain"
	"arcade-pot/internal/evm"
	"arcade-pot/internal/jsonrpc"
	"arcade-pot/internal/settlement"
	"arcade-pot/internal/solana"
)

// rpcTimeout bounds one JSON-RPC round trip.
const rpcTimeout = 15 * time.Second

// Chains holds the chain clients of both networks.
type Chains struct {
	SolanaRPC *solana.HTTPClient
	// SolanaWS is nil when no WebSocket endpoint is configured or reachable.
	SolanaWS *solana.SignatureWatcher
	BaseRPC  *evm.HTTPClient
}

// Close releases the WebSocket connection.
func (c *Chains) Close() {
	if c.SolanaWS != nil {
		c.SolanaWS.Close()
	}
}

// NewChains creates RPC clients. A failing WebSocket connection only
// downgrades Solana transfer confirmation to polling.
func NewChains(ctx context.Context, cfg *config.Config, log slog.Logger) *Chains {
	chains := &Chains{
		SolanaRPC: solana.NewHTTPClient(cfg.Solana.RPCURL, jsonrpc.WithTimeout(rpcTimeout)),
		BaseRPC:   evm.NewHTTPClient(cfg.Base.RPCURL, jsonrpc.WithTimeout(rpcTimeout)),
	}

	if cfg.Solana.WSURL != "" && cfg.Solana.Key != nil {
		ws, err := solana.NewSignatureWatcher(ctx, solana.WatcherOptions{Endpoint: cfg.Solana.WSURL, Log: log})
		if err != nil {
			log.Warnf("Solana WebSocket unavailable, confirming transfers by polling: %v", err)
		} else {
			chains.SolanaWS = ws
		}
	}
	return chains
}

// NewTransferers returns automated transfer capabilities for every network
// with a configured house key.
func NewTransferers(cfg *config.Config, chains *Chains, log slog.Logger) (map[domain.Network]settlement.Transferer, error) {
	transferers := make(map[domain.Network]settlement.Transferer, len(domain.Networks))

	if cfg.Solana.Key != nil {
		opts := solana.TransfererOptions{RPC: chains.SolanaRPC, Key: cfg.Solana.Key, Log: log}
		if chains.SolanaWS != nil {
			opts.WS = chains.SolanaWS
		}
		t, err := solana.NewTransferer(opts)
		if err != nil {
			return nil, err
		}
		if t.Address() != cfg.Solana.HouseWallet {
			log.Warnf("Solana payout key %s differs from house wallet %s", t.Address(), cfg.Solana.HouseWallet)
		}
		transferers[domain.NetworkSolana] = t
	}

	if cfg.Base.Key != nil {
		t, err := evm.NewTransferer(evm.TransfererOptions{
			RPC:     chains.BaseRPC,
			Key:     cfg.Base.Key,
			ChainID: cfg.Base.ChainID,
			Log:     log,
		})
		if err != nil {
			return nil, err
		}
		if t.Address() != cfg.Base.HouseWallet {
			log.Warnf("Base payout key %s differs from house wallet %s", t.Address(), cfg.Base.HouseWallet)
		}
		transferers[domain.NetworkBase] = t
	}

	for _, n := range domain.Networks {
		if _, ok := transferers[n]; !ok {
			log.Infof("No %s payout key; %s legs settle as manual_required", n, n)
		}
	}
	return transferers, nil
}
