// Package main is the operator CLI for daily settlement.
//
// Usage:
//
//	settle run [YYYY-MM-DD]          settle a day (default: yesterday UTC)
//	settle summary [YYYY-MM-DD]      show pot, leader and payout record
//	settle mark-paid YYYY-MM-DD [notes...]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"

	"arcade-pot/internal/app"
	"arcade-pot/internal/config"
	"arcade-pot/internal/domain"
	"arcade-pot/internal/logging"
	"arcade-pot/internal/settlement"
)

func main() {
	logLevel := flag.String("log-level", "", "Override LOG_LEVEL")
	timeout := flag.Duration("timeout", 10*time.Minute, "Overall command timeout")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	if err := run(args[0], args[1:], *logLevel, *timeout); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] run|summary|mark-paid [YYYY-MM-DD] [notes...]\n", os.Args[0])
	flag.PrintDefaults()
}

func run(command string, args []string, logLevel string, timeout time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logs, err := logging.NewLogBackend(logging.LogConfig{Writer: os.Stderr, Level: cfg.LogLevel})
	if err != nil {
		return err
	}
	log := logs.Logger(logging.SubsystemSettlement)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stores, closeStores, err := app.OpenStores(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	defer closeStores()

	chains := app.NewChains(ctx, cfg, logs.Logger(logging.SubsystemRPC))
	defer chains.Close()
	transferers, err := app.NewTransferers(cfg, chains, log)
	if err != nil {
		return err
	}
	orchestrator := app.NewOrchestrator(cfg.Settlement, stores, transferers, log)

	switch command {
	case "run":
		return runSettle(ctx, orchestrator, dayArg(args))
	case "summary":
		return runSummary(ctx, orchestrator, dayArg(args))
	case "mark-paid":
		if len(args) == 0 {
			return fmt.Errorf("mark-paid requires a day key")
		}
		return runMarkPaid(ctx, orchestrator, args[0], strings.Join(args[1:], " "))
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func dayArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return domain.PreviousDayKey(time.Now())
}

func runSettle(ctx context.Context, o *settlement.Orchestrator, dayKey string) error {
	spinner, _ := pterm.DefaultSpinner.Start("Settling " + dayKey)
	report, err := o.Settle(ctx, dayKey)
	if spinner != nil {
		_ = spinner.Stop()
	}
	if report != nil && report.Winner != nil {
		renderWinner(report.Winner)
	}
	if err != nil {
		return err
	}

	if report.Outcome == settlement.OutcomeNoScores {
		pterm.Info.Printfln("No scores for %s, nothing to settle", dayKey)
		return nil
	}
	if report.Status == domain.PayoutPaid {
		pterm.Success.Printfln("%s paid", dayKey)
		return nil
	}
	pterm.Warning.Println(report.Note())
	return nil
}

func runSummary(ctx context.Context, o *settlement.Orchestrator, dayKey string) error {
	summary, err := o.Summary(ctx, dayKey)
	if err != nil {
		return err
	}

	pterm.DefaultSection.Println("Day " + summary.DayKey)

	data := pterm.TableData{{"Network", "Pool", "Prize", "House", "Players"}}
	for _, n := range domain.Networks {
		places := n.DisplayPlaces()
		data = append(data, []string{
			n.String(),
			summary.Pot.Native(n).StringFixed(places) + " " + n.Asset(),
			summary.Prizes[n].StringFixed(places),
			summary.House[n].StringFixed(places),
			strconv.Itoa(summary.Pot.Pools[n].Players),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}
	pterm.Printfln("Pot value $%.2f, estimated prize $%.2f", summary.Pot.USDTotal, summary.Pot.PrizeUSD())

	if summary.Leader != nil {
		pterm.Info.Printfln("Leader: %s on %s with %d (%s)",
			summary.Leader.WalletAddress, summary.Leader.Network, summary.Leader.Score, summary.Leader.GameMode)
	} else {
		pterm.Info.Println("No scores yet")
	}

	if summary.Winner != nil {
		renderWinner(summary.Winner)
	} else {
		pterm.Info.Println("Not settled yet")
	}

	if len(summary.Attempts) > 0 {
		attempts := pterm.TableData{{"Attempted", "Network", "Status", "Transfer", "Detail"}}
		for _, a := range summary.Attempts {
			attempts = append(attempts, []string{
				time.UnixMilli(a.AttemptedAt).UTC().Format(time.RFC3339),
				a.Network.String(),
				string(a.Status),
				a.TransferID,
				a.Detail,
			})
		}
		pterm.DefaultSection.WithLevel(2).Println("Attempts")
		return pterm.DefaultTable.WithHasHeader().WithData(attempts).Render()
	}
	return nil
}

func runMarkPaid(ctx context.Context, o *settlement.Orchestrator, dayKey, notes string) error {
	if err := o.MarkPaidManually(ctx, dayKey, notes); err != nil {
		return err
	}
	pterm.Success.Printfln("%s marked paid", dayKey)
	return nil
}

func renderWinner(w *domain.Winner) {
	pterm.DefaultSection.WithLevel(2).Printfln("Winner %s (%s)", w.WalletAddress, w.Status)
	data := pterm.TableData{{"Network", "Prize", "Status", "Transfer", "Detail"}}
	for _, n := range domain.Networks {
		leg, ok := w.Legs[n]
		if !ok {
			continue
		}
		data = append(data, []string{
			n.String(),
			leg.Prize.StringFixed(n.DisplayPlaces()) + " " + n.Asset(),
			string(leg.Status),
			leg.TransferID,
			leg.Detail,
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	if w.Notes != "" {
		pterm.Info.Println(w.Notes)
	}
}
