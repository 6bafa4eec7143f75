package app

import (
	"github.com/decred/slog"

	"arcade-pot/internal/config"
	"arcade-pot/internal/domain"
	"arcade-pot/internal/ledger"
	"arcade-pot/internal/settlement"
)

// NewOrchestrator wires the payout orchestrator over stores.
func NewOrchestrator(cfg config.SettlementConfig, stores *Stores, transferers map[domain.Network]settlement.Transferer, log slog.Logger) *settlement.Orchestrator {
	return settlement.New(settlement.Options{
		Winners:         stores.Winners,
		Attempts:        stores.Attempts,
		Selector:        settlement.NewSelector(stores.Scores),
		Pots:            ledger.New(stores.Payments),
		Transferers:     transferers,
		TransferTimeout: cfg.TransferTimeout,
		Log:             log,
	})
}
