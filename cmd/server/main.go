// Package main runs the arcade payment server: the HTTP API and the daily
// settlement scheduler.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"arcade-pot/internal/api"
	"arcade-pot/internal/app"
	"arcade-pot/internal/config"
	"arcade-pot/internal/domain"
	"arcade-pot/internal/ledger"
	"arcade-pot/internal/logging"
	"arcade-pot/internal/payment"
	"arcade-pot/internal/pricing"
	"arcade-pot/internal/scheduler"
	"arcade-pot/internal/scoring"
	"arcade-pot/internal/session"
	"arcade-pot/internal/verifier"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "[startup] %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logs, err := logging.NewLogBackend(logging.LogConfig{Level: cfg.LogLevel})
	if err != nil {
		return err
	}
	log := logs.Logger(logging.SubsystemServer)
	log.Infof("Starting with %s", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, closeStores, err := app.OpenStores(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	defer closeStores()

	rpcLog := logs.Logger(logging.SubsystemRPC)
	chains := app.NewChains(ctx, cfg, rpcLog)
	defer chains.Close()

	solVerifier, err := verifier.NewSolanaVerifier(verifier.SolanaOptions{
		RPC:          chains.SolanaRPC,
		HouseAddress: cfg.Solana.HouseWallet,
		Log:          rpcLog,
	})
	if err != nil {
		return err
	}
	baseVerifier, err := verifier.NewBaseVerifier(verifier.BaseOptions{
		RPC:          chains.BaseRPC,
		HouseAddress: cfg.Base.HouseWallet,
		Log:          rpcLog,
	})
	if err != nil {
		return err
	}

	issuer, err := session.NewIssuer(session.IssuerOptions{
		Payments: stores.Payments,
		Secret:   []byte(cfg.Session.Secret),
		TTL:      cfg.Session.TTL,
		Log:      logs.Logger(logging.SubsystemSession),
	})
	if err != nil {
		return err
	}

	oracle := pricing.NewCoinGecko(pricing.CoinGeckoOptions{
		URL: cfg.Pricing.CoinGeckoURL,
		TTL: cfg.Pricing.CacheTTL,
		Log: logs.Logger(logging.SubsystemPayment),
	})
	payments := payment.New(payment.Options{
		Issuer:    issuer,
		Verifiers: []verifier.Verifier{solVerifier, baseVerifier},
		Oracle:    oracle,
		HouseWallets: map[domain.Network]string{
			domain.NetworkSolana: cfg.Solana.HouseWallet,
			domain.NetworkBase:   cfg.Base.HouseWallet,
		},
		EntryFeeUSD: cfg.Pricing.EntryFeeUSD,
		Log:         logs.Logger(logging.SubsystemPayment),
	})
	admission := scoring.NewAdmission(scoring.AdmissionOptions{
		Sessions: issuer,
		Scores:   stores.Scores,
		Log:      logs.Logger(logging.SubsystemScore),
	})

	settleLog := logs.Logger(logging.SubsystemSettlement)
	transferers, err := app.NewTransferers(cfg, chains, settleLog)
	if err != nil {
		return err
	}
	orchestrator := app.NewOrchestrator(cfg.Settlement, stores, transferers, settleLog)

	if cfg.Settlement.Enabled {
		sched := scheduler.New(scheduler.Options{
			Settler:  orchestrator,
			Schedule: cfg.Settlement.Schedule,
			Log:      logs.Logger(logging.SubsystemScheduler),
		})
		if err := sched.Start(); err != nil {
			return err
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				log.Warnf("Stop scheduler: %v", err)
			}
		}()
	} else {
		log.Infof("Daily settlement disabled")
	}

	gin.SetMode(gin.ReleaseMode)
	server := api.New(api.Options{
		Payments:      payments,
		Sessions:      issuer,
		Scores:        admission,
		Pots:          ledger.New(stores.Payments),
		Settlement:    orchestrator,
		PaymentLog:    stores.Payments,
		AdminKey:      cfg.Server.AdminKey,
		AllowedOrigin: cfg.Server.AllowedOrigin,
		SessionTTL:    cfg.Session.TTL,
		Log:           log,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Infof("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP shutdown: %v", err)
	}

	log.Infof("Shutdown complete")
	return nil
}
