package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tischbuch/internal/api"
	"tischbuch/internal/booking"
	"tischbuch/internal/calendar"
	"tischbuch/internal/config"
	"tischbuch/internal/db"
	"tischbuch/internal/events"
	"tischbuch/internal/metrics"
	"tischbuch/internal/notify"
	"tischbuch/internal/openinghours"
	"tischbuch/internal/report"
	"tischbuch/internal/schedule"
	"tischbuch/internal/slots"
	"tischbuch/internal/waitlist"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("TISCHBUCH_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	if cfg.Backup.Enabled {
		backups := db.NewBackupService(database, db.BackupSettings{
			StoragePath:   cfg.Backup.StoragePath,
			Interval:      cfg.BackupInterval(),
			RetentionDays: cfg.Backup.RetentionDays,
		}, &logger)
		go backups.Run(ctx)
	}

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}
	cache := slots.NewCache(rdb, cfg.SlotCacheTTL())

	hours := openinghours.NewVenueProvider(nil)
	err = config.NewVenueWatcher(cfg.Venue.Path, cfg.VenueReloadInterval(), &logger).
		OnChange("opening_hours", func(_ context.Context, v *config.VenueConfig) error {
			hours.Update(v)
			return nil
		}).
		OnChange("slot_cache", func(ctx context.Context, _ *config.VenueConfig) error {
			return cache.InvalidateAll(ctx)
		}).
		Start(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("load venue config")
	}

	bus := events.NewEventBus(&logger)

	cal := calendar.NewService(database, &logger).WithInvalidator(cache)
	calc := slots.NewCalculator(database, database, hours, cal,
		slots.Settings{DefaultEventCutoffMinutes: cfg.DefaultEventCutoff()}, cache, &logger)
	public := slots.NewPublic(calc, slots.PublicSettings{
		MinAdvance:     cfg.MinAdvance(),
		MaxAdvanceDays: cfg.MaxAdvanceDays(),
	}, hours.Location)

	guards := booking.NewGuards(cal, calc, booking.Settings{
		StandardDurationMinutes: cfg.StandardDuration(),
		RejectPastMidnight:      cfg.Booking.RejectPastMidnight,
		RequireOfferedSlot:      cfg.Booking.RequireOfferedSlot,
	}, bus, &logger)
	wl := waitlist.NewService(database, waitlist.Settings{
		OfferTTL:       cfg.OfferTTL(),
		PartySizeSlack: cfg.PartySizeSlack(),
	}, bus, &logger)
	reports := report.NewService(database)

	go waitlist.NewSweeper(wl, cfg.SweepInterval(), &logger).Run(ctx)

	if cfg.Telegram.BotToken != "" && len(cfg.Telegram.ManagerChats) > 0 {
		sender, err := notify.NewTelegramSender(cfg.Telegram.BotToken)
		if err != nil {
			logger.Error().Err(err).Msg("telegram notifications disabled")
		} else {
			notifier := notify.NewNotifier(sender, cfg.Telegram.ManagerChats, &logger)
			notifier.Attach(bus)
			go notifier.Run(ctx)
			if hour := cfg.DigestHour(); hour >= 0 {
				notifier.StartDigest(ctx, reports, hour, hours.Location)
			}
		}
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.PrometheusPort(), &logger)
	}

	checks := []api.ReadinessCheck{{Name: "database", Check: database.Ping}}
	if rdb != nil {
		checks = append(checks, api.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	rate, burst := cfg.WidgetRate()
	server := api.NewHTTPServer(api.Services{
		Slots:    calc,
		Widget:   public,
		Guards:   guards,
		Bookings: booking.NewService(guards, database, wl, bus, &logger),
		Waitlist: wl,
		Schedule: schedule.NewService(database, cache, bus, &logger),
		Calendar: cal,
		Reports:  reports,
	}, api.Options{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort()),
		AdminAPIKey:  cfg.Server.AdminAPIKey,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		WidgetRate:   rate,
		WidgetBurst:  burst,
		Checks:       checks,
	}, &logger)

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("http shutdown")
		}
	}()

	logger.Info().Msg("reservation availability engine started")
	if err := server.Start(); err != nil {
		logger.Error().Err(err).Msg("http server error")
	}
	logger.Info().Msg("stopped")
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
