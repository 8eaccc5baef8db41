package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomasvalente/coinraid-backend/internal/adapter/httpapi"
	"github.com/tomasvalente/coinraid-backend/internal/adapter/notifier/ws"
	"github.com/tomasvalente/coinraid-backend/internal/adapter/repository/sqlstore"
	"github.com/tomasvalente/coinraid-backend/internal/config"
	"github.com/tomasvalente/coinraid-backend/internal/usecase/dashboard"
	"github.com/tomasvalente/coinraid-backend/internal/usecase/economy"
	"github.com/tomasvalente/coinraid-backend/internal/usecase/raid"
	"github.com/tomasvalente/coinraid-backend/internal/usecase/scheduler"
	"github.com/tomasvalente/coinraid-backend/internal/usecase/seeder"
)

func main() {
	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Storage
	db, err := sqlstore.Open(sqlstore.Dialect(cfg.DBDialect), cfg.DBDSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	memberRepo := sqlstore.NewMemberRepository(db)
	attemptRepo := sqlstore.NewAttemptRepository(db)
	ledgerRepo := sqlstore.NewLedgerRepository(db)
	defenseRepo := sqlstore.NewDefenseRepository(db)

	// 3. Notifier + resolution clock + services
	hub := ws.NewHub()
	sched := scheduler.New(cfg.SweepInterval)

	raidService := raid.NewService(memberRepo, attemptRepo, ledgerRepo, defenseRepo, hub, sched, raid.Config{
		Window:       cfg.AttackWindow,
		BalanceFloor: cfg.BalanceFloor,
	})
	sched.SetResolver(raidService)

	economyService := economy.NewService(memberRepo, ledgerRepo)
	dashboardService := dashboard.NewService(memberRepo, attemptRepo, ledgerRepo, defenseRepo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 4. Seed the party roster if configured
	if len(cfg.SeedMembers) > 0 {
		memberSeeder := seeder.NewMemberSeeder(memberRepo, ledgerRepo, defenseRepo, cfg.StartingBalance, cfg.ShieldsPerMember)
		if err := memberSeeder.Seed(ctx, cfg.SeedMembers); err != nil {
			log.Fatalf("Failed to seed members: %v", err)
		}
		log.Printf("Seeded %d member(s)", len(cfg.SeedMembers))
	}

	// 5. Start the clock: recovery sweep for attempts that expired while the
	// process was down, then periodic sweeping.
	go sched.Run(ctx)

	// 6. HTTP server
	api := httpapi.NewServer(raidService, economyService, dashboardService, hub.Handler(), cfg.APIToken)
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: api.Handler(),
	}

	go func() {
		log.Printf("HTTP server listening on %s (dialect=%s window=%s floor=%d)",
			cfg.Addr, cfg.DBDialect, cfg.AttackWindow, cfg.BalanceFloor)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve HTTP: %v", err)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
