package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nurpe/bidworks/internal/auth"
	"github.com/nurpe/bidworks/internal/config"
	"github.com/nurpe/bidworks/internal/db"
	"github.com/nurpe/bidworks/internal/excel"
	"github.com/nurpe/bidworks/internal/geo"
	httphandler "github.com/nurpe/bidworks/internal/http"
	"github.com/nurpe/bidworks/internal/http/middleware"
	"github.com/nurpe/bidworks/internal/logger"
	"github.com/nurpe/bidworks/internal/payments"
	"github.com/nurpe/bidworks/internal/pdf"
	"github.com/nurpe/bidworks/internal/repository"
	"github.com/nurpe/bidworks/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg.DB.DSN, cfg.DB.MaxOpenConns, cfg.DB.MaxIdleConns, cfg.DB.ConnMaxLifetime, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	jobRepo := repository.NewJobRepository(database)
	bidRepo := repository.NewBidRepository(database)
	leadRepo := repository.NewLeadRepository(database)
	membershipRepo := repository.NewMembershipRepository(database)
	paymentRepo := repository.NewPaymentRepository(database)

	gateway, err := payments.NewMercadoPagoGateway(cfg.Payments.AccessToken, cfg.Payments.MockGateway, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init payment gateway")
	}

	membershipService := service.NewMembershipService(membershipRepo, leadRepo, cfg.Plans, log)
	visibilityService := service.NewVisibilityService(jobRepo, membershipService, geo.Haversine{})
	leadService := service.NewLeadService(jobRepo, leadRepo, membershipService, visibilityService, excel.NewGenerator(), log)
	jobService := service.NewJobService(jobRepo, log)
	paymentService := service.NewPaymentService(paymentRepo, jobRepo, bidRepo, gateway, pdf.NewGenerator(), cfg.Payments.DepositFraction, log)
	bidService := service.NewBidService(jobRepo, bidRepo, leadService, paymentService, log)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(jobService, visibilityService, leadService, bidService, paymentService, membershipService, cfg.Payments.WebhookSecret, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runSweep(ctx, cfg.Sweeps.CycleResetInterval, func() {
		opened, err := membershipService.ResetDueCycles(ctx, time.Now())
		if err != nil {
			log.Error().Err(err).Msg("cycle reset sweep failed")
			return
		}
		if opened > 0 {
			log.Info().Int("cycles_opened", opened).Msg("cycle reset sweep")
		}
	})
	go runSweep(ctx, cfg.Sweeps.ReconcileInterval, func() {
		repaired, err := paymentService.Reconcile(ctx)
		if err != nil {
			log.Error().Err(err).Msg("obligation reconcile sweep failed")
			return
		}
		if repaired > 0 {
			log.Warn().Int("bids_repaired", repaired).Msg("obligation reconcile sweep repaired missing milestones")
		}
	})

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting bidworks service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

func runSweep(ctx context.Context, interval time.Duration, sweep func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
