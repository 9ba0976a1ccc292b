package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"tg-exchange/internal/bot"
	"tg-exchange/internal/config"
	"tg-exchange/internal/crash"
	"tg-exchange/internal/crypt"
	"tg-exchange/internal/engine"
	"tg-exchange/internal/exchange"
	"tg-exchange/internal/handler"
	"tg-exchange/internal/ledger"
	"tg-exchange/internal/locks"
	"tg-exchange/internal/logger"
	"tg-exchange/internal/models"
	"tg-exchange/internal/platform"
	"tg-exchange/internal/retry"
	"tg-exchange/internal/service"
	"tg-exchange/internal/storage"
	"tg-exchange/internal/tasks"
)

var version = "dev"

func main() {
	// 任何 panic 都记录堆栈后退出
	defer crash.RecoverWithStackAndExit("main")

	fs := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	config.BindFlags(fs)
	showVersion := fs.BoolP("version", "v", false, "print the version and exit")
	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println(version)
		return
	}

	configPath, _ := fs.GetString("config")
	cfg, err := config.Load(configPath, fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Setup(cfg); err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	if cfg.Exchange.Lang != "" {
		models.DefaultLanguage = cfg.Exchange.Lang
	}

	// 数据损坏时拒绝启动，不能用空数据覆盖
	store, err := storage.Open(cfg.Store.DataDir)
	if errors.Is(err, storage.ErrCorrupted) {
		logger.Fatalf("Refusing to start on corrupted data: %v", err)
	} else if err != nil {
		logger.Fatalf("Failed to open data dir: %v", err)
	}

	var (
		audit   *storage.EnforcementRepository
		pending *storage.PendingMsgRepository
	)
	if cfg.Database.Enabled {
		if err := storage.Initialize(cfg); err != nil {
			logger.Fatalf("Failed to initialize database: %v", err)
		}
		audit, pending = service.InitRepositories()
		logger.Info("Database connection established and repositories initialized")
	} else {
		logger.Info("Database support is disabled, running without the audit trail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	botService, server, err := bot.Initialize(ctx, cfg, handler.GetDetailedStatus)
	if err != nil {
		logger.Fatalf("Failed to initialize bot: %v", err)
	}

	sup := retry.New(cfg.Retry.MaxAttempts, cfg.Retry.Unit)

	var cipher *crypt.Cipher
	if cfg.Exchange.Password != "" {
		if cipher, err = crypt.New(cfg.Exchange.Password); err != nil {
			logger.Fatalf("Failed to set up attachment cipher: %v", err)
		}
	}

	client := platform.NewTelegoClient(botService.Bot, store.GroupIDs, platform.NewMessageIndex(8192, 50))
	transport := exchange.NewTransport(exchange.TransportConfig{
		Self:              cfg.Exchange.Sender,
		ExchangeChannelID: cfg.Exchange.ExchangeChannelID,
		HideChannelID:     cfg.Exchange.HideChannelID,
		TmpDir:            cfg.Store.TmpDir,
	}, client, sup, cipher)

	pool := tasks.NewPool(cfg.Workers.Count, cfg.Workers.QueueSize)
	pool.Start(ctx)

	lockSet := &locks.Set{}
	led := ledger.New(store, transport, cfg.Exchange.Receivers.Declare)

	engineDeps := engine.Deps{
		Store:      store,
		Client:     client,
		Supervisor: sup,
		Ledger:     led,
		Publisher:  transport,
		Pool:       pool,
		Locks:      lockSet,
	}
	if audit != nil {
		engineDeps.Audit = audit
	}
	eng := engine.New(engine.Options{
		ProjectName:      cfg.Exchange.ProjectName,
		ProjectLink:      cfg.Exchange.ProjectLink,
		LoggingChannelID: cfg.Exchange.LoggingChannelID,
		DebugChannelID:   cfg.Exchange.DebugChannelID,
		ForgiveThreshold: cfg.Engine.ForgiveThreshold,
		BotIDs:           cfg.Exchange.BotIDs,
		ForgiveReceivers: cfg.Exchange.Receivers.Ignore,
	}, engineDeps)

	var reports *service.Reports
	if pending != nil {
		reports = service.NewReports(client, sup, pool, pending)
	} else {
		reports = service.NewReports(client, sup, pool, nil)
	}

	svcDeps := service.Deps{
		Store:      store,
		Engine:     eng,
		Ledger:     led,
		Transport:  transport,
		Client:     client,
		Supervisor: sup,
		Pool:       pool,
		Locks:      lockSet,
		Reports:    reports,
	}
	if audit != nil {
		svcDeps.Counter = audit
	}
	svc := service.New(cfg, svcDeps)

	exchangeRouter, emergencyRouter, err := svc.Routers()
	if err != nil {
		logger.Fatalf("Failed to register routes: %v", err)
	}

	h := handler.New(cfg, version, handler.Deps{
		Store:      store,
		Engine:     eng,
		Service:    svc,
		Ledger:     led,
		Reports:    reports,
		Client:     client,
		Supervisor: sup,
		Pool:       pool,
		Recorder:   client,
		Exchange:   exchangeRouter,
		Emergency:  emergencyRouter,
	})

	crash.SafeGoroutine("http-server", func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server error: %v", err)
		}
	})

	// Give server time to start
	time.Sleep(500 * time.Millisecond)
	logger.Info("HTTP server is ready, starting bot handler...")

	h.Setup(botService.Handler)
	reports.Resume(ctx)
	svc.StartJobs(ctx)
	crash.SafeGoroutine("stats", func() { handler.LogProcessingStats(ctx, time.Hour) })
	crash.SafeGoroutine("bot-handler", func() {
		if err := botService.Start(); err != nil {
			logger.Errorf("Bot handler stopped: %v", err)
		}
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logger.Infof("Received signal: %v, shutting down...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := botService.Stop(); err != nil {
		logger.Warningf("Bot handler stop error: %v", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warningf("HTTP server shutdown error: %v", err)
	}

	svc.StopJobs()
	svc.ShareBackupStatus(shutdownCtx, "sleep")
	reports.Flush(shutdownCtx)
	cancel()
	pool.Stop()

	if err := store.SaveAll(); err != nil {
		logger.Errorf("Failed to save data: %v", err)
	}
	logger.Info("Server gracefully stopped")
}
