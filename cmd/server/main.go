package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"showshelf/internal/config"
	"showshelf/internal/handler"
	"showshelf/internal/logger"
	"showshelf/internal/notify"
	"showshelf/internal/repository"
	"showshelf/internal/service"
	"showshelf/internal/tmdb"
)

func main() {
	// Parse CLI flags
	configPath := flag.String("config", config.DefaultPath, "Path to the YAML config file")
	reportMode := flag.Bool("report", false, "Send the upcoming episodes report and exit")
	flag.Parse()

	// Console logger until the configured one is installed
	boot, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(boot)

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.S().Fatalw("failed to load configuration", "err", err)
	}

	log, err := logger.New(cfg.Log.Dir, cfg.Log.Tee)
	if err != nil {
		zap.S().Fatalw("failed to create logger", "err", err)
	}
	defer log.Sync()

	if err := run(cfg, *reportMode); err != nil {
		log.Errorw("showshelf stopped", "err", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, reportMode bool) error {
	// Initialize database
	db, err := repository.NewSQLiteDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	// Initialize TMDB client
	tmdbClient := tmdb.NewClient(cfg.TMDB.APIKey)
	tmdbClient.SetLanguage(cfg.TMDB.Language)

	// Initialize services
	shows := service.NewShowService(tmdbClient, repository.NewShowRepository(db))
	shows.SetRefreshWorkers(cfg.Schedule.RefreshWorkers)
	backupSvc := service.NewBackupService(db.DB(), cfg.Backup.Dir, cfg.Backup.MaxBackups)

	notifier := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, shows, cfg.ReportLocation())
	var reportSender service.ReportSender
	if cfg.TelegramEnabled() {
		reportSender = notifier
	}

	// CLI mode: send the report and exit
	if reportMode {
		if reportSender == nil {
			return errors.New("telegram not configured: set telegram.bot_token and telegram.chat_id")
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := reportSender.SendUpcomingReport(ctx); err != nil {
			return fmt.Errorf("failed to send report: %w", err)
		}
		fmt.Println("Report sent successfully!")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shows.SyncMetrics(ctx)

	scheduler := service.NewScheduler(shows, backupSvc, reportSender, service.SchedulerConfig{
		ReportTime:      cfg.Schedule.ReportTime,
		RefreshInterval: cfg.Schedule.RefreshInterval,
		RefreshMaxAge:   cfg.Schedule.RefreshMaxAge,
		Location:        cfg.ReportLocation(),
	})
	scheduler.Start()
	defer scheduler.Stop()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	handler.NewHTTPHandler(shows, tmdbClient, backupSvc, cfg.HTTP.APIToken).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              cfg.HTTP.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.S().Infow("showshelf listening", "addr", cfg.HTTP.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Handle graceful shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zap.S().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
