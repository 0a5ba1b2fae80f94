package main

import (
	"log"
	"time"

	"execution-core/internal/api"
	"execution-core/internal/approval"
	"execution-core/internal/engine"
	"execution-core/internal/events"
	"execution-core/internal/fill"
	"execution-core/internal/order"
	"execution-core/internal/portfolio"
	"execution-core/internal/position"
	"execution-core/internal/risk"
	"execution-core/pkg/config"
	"execution-core/pkg/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[MAIN] failed to load config: %v", err)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("[MAIN] failed to open database: %v", err)
	}
	defer database.Close()

	if err := database.InitSchema(); err != nil {
		log.Fatalf("[MAIN] failed to init schema: %v", err)
	}

	tiers, err := config.LoadTiers(cfg.TiersPath)
	if err != nil {
		log.Fatalf("[MAIN] failed to load tiers: %v", err)
	}

	bus := events.NewBus()
	registry := order.NewRegistry(database)
	ledger := position.NewLedger(database)

	gate := risk.NewGate(risk.Config{
		KillSwitch:     cfg.LiveTradingKillSwitch,
		MinTotalReturn: cfg.BacktestMinTotalReturn,
		MaxDrawdownPct: cfg.BacktestMaxDrawdown,
	}, risk.Deps{
		Users:       database,
		Tiers:       tiers,
		Strategies:  database,
		Backtests:   database,
		Connections: database,
		Orders:      registry,
		Positions:   ledger,
	})

	filler := fill.NewEngine(registry, ledger, gate, database, bus, &fill.Options{
		SlippagePercent: cfg.SlippagePercent,
		FeePercent:      cfg.FeePercent,
	})
	approvals := approval.NewWorkflow(gate, registry, database, bus)
	folio := portfolio.NewAggregator(ledger)

	svc := engine.New(registry, ledger, gate, filler, approvals, folio, bus)

	// Daily budgets roll over at midnight UTC.
	go func() {
		for {
			now := time.Now().UTC()
			next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
			time.Sleep(time.Until(next))
			gate.ResetDaily()
		}
	}()

	server := api.NewServer(svc, bus, database, tiers, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("[MAIN] execution core listening on %s (kill switch: %v)", addr, gate.KillSwitch())
	if err := server.Start(addr); err != nil {
		log.Fatalf("[MAIN] server stopped: %v", err)
	}
}
