package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"innkeeper/internal/bot"
	"innkeeper/internal/config"
	"innkeeper/internal/database"
	"innkeeper/internal/events"
	"innkeeper/internal/google"
	"innkeeper/internal/metrics"
	"innkeeper/internal/ota"
	"innkeeper/internal/wizard"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("INNKEEPER_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Fatal().Msg("set telegram.bot_token in config")
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	sqliteWizards := database.NewWizardRepository(db, cfg.WizardTTL())
	var wizards wizard.Repository = sqliteWizards
	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		wizards = wizard.NewFailoverRepository(
			wizard.NewRedisRepository(rdb, cfg.WizardTTL()),
			sqliteWizards,
			&logger,
		)
		logger.Info().Str("addr", cfg.Redis.Address).Msg("wizard state on redis with sqlite fallback")
	}

	bus := events.NewBus()

	var sheetsSvc *google.SheetsService
	if cfg.Sheets.Enabled {
		sheetsSvc, err = google.NewSheetsService(context.Background(),
			cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID,
			cfg.Sheets.ChecklistRange, cfg.Sheets.BookingsRange, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("create sheets service error")
		}
	}

	// The checklist only subscribes when it has somewhere to push rows,
	// otherwise the queue would grow with no consumer.
	var checklist *ota.Checklist
	if len(cfg.OTA.Platforms) > 0 && sheetsSvc != nil {
		checklist = ota.NewChecklist(cfg.OTA.Platforms, sheetsSvc, logger)
		checklist.Subscribe(bus)
	}

	b, err := bot.New(cfg.Telegram.BotToken, db, wizards, bus, cfg.Property.ID, cfg.Managers, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create bot error")
	}
	b.ConfigureOTA(cfg.Property.Name, cfg.OTA.ExportPath, cfg.OTA.FeedURLs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Backup.Enabled {
		go runBackupLoop(ctx, db, cfg, &logger)
	}
	if cfg.WizardTTL() > 0 {
		go runWizardSweep(ctx, sqliteWizards, cfg.WizardSweepInterval(), &logger)
	}
	if checklist != nil {
		go checklist.Run(ctx, 5*time.Minute)
	}
	if sheetsSvc != nil && cfg.Sheets.BookingsRange != "" {
		go runSheetsSync(ctx, db, sheetsSvc, cfg.Property.ID, &logger)
	}

	b.StartArrivalsDigest(ctx, 9)
	b.StartFeedWatch(ctx, cfg.OTAPollInterval())

	logger.Info().Int64("property", cfg.Property.ID).Msg("hotel bot started")
	b.Start(ctx)
}

func runBackupLoop(ctx context.Context, db *database.DB, cfg *config.Config, logger *zerolog.Logger) {
	interval := time.Duration(cfg.Backup.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := time.Duration(cfg.Backup.RetentionDays) * 24 * time.Hour
	if retention <= 0 {
		retention = 14 * 24 * time.Hour
	}
	dir := cfg.Backup.Path
	if dir == "" {
		dir = "backups"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error().Err(err).Msg("create backup dir error")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dest := filepath.Join(dir, fmt.Sprintf("innkeeper-%s.db", time.Now().Format("20060102-150405")))
			if err := db.Backup(dest); err != nil {
				logger.Error().Err(err).Msg("backup error")
				continue
			}
			removed, err := db.CleanupBackups(dir, retention)
			if err != nil {
				logger.Error().Err(err).Msg("backup cleanup error")
			}
			logger.Info().Str("dest", dest).Int("removed", removed).Msg("backup done")
		}
	}
}

// runSheetsSync mirrors the upcoming bookings into the spreadsheet
// once an hour. The service's row cache keeps repeated syncs updating
// in place instead of appending duplicates.
func runSheetsSync(ctx context.Context, db *database.DB, svc *google.SheetsService, propertyID int64, logger *zerolog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			from := time.Now().Format("2006-01-02")
			to := time.Now().AddDate(0, 6, 0).Format("2006-01-02")
			bookings, err := db.ListBookingsByRange(ctx, propertyID, from, to)
			if err != nil {
				logger.Error().Err(err).Msg("sheets sync: list bookings")
				continue
			}
			if err := svc.SyncBookings(ctx, bookings); err != nil {
				logger.Error().Err(err).Msg("sheets sync error")
				continue
			}
			logger.Info().Int("bookings", len(bookings)).Msg("bookings synced to sheet")
		}
	}
}

func runWizardSweep(ctx context.Context, repo *database.WizardRepository, interval time.Duration, logger *zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteExpired(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("wizard sweep error")
				continue
			}
			if n > 0 {
				metrics.IncWizardFlowN("expired", n)
				logger.Info().Int64("removed", n).Msg("expired wizard flows swept")
			}
		}
	}
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.Ping(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
