package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/secretaryai/secretary/internal/api"
	"github.com/secretaryai/secretary/internal/app"
	"github.com/secretaryai/secretary/internal/assistant"
	iauth "github.com/secretaryai/secretary/internal/auth"
	"github.com/secretaryai/secretary/internal/calendar"
	"github.com/secretaryai/secretary/internal/database"
	"github.com/secretaryai/secretary/internal/mailbox"
	"github.com/secretaryai/secretary/internal/scheduler"
	"github.com/secretaryai/secretary/internal/services"
	"github.com/secretaryai/secretary/pkg/logger"
	"github.com/secretaryai/secretary/pkg/mail"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("secretary-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	jwtService, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         cfg.Auth.JWT.Secret,
		Issuer:         cfg.Auth.JWT.Issuer,
		AccessTokenTTL: cfg.Auth.JWT.TTL,
	})
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	userSvc, err := services.NewUserService(db)
	if err != nil {
		return fmt.Errorf("initialise user service: %w", err)
	}
	alertSvc, err := services.NewAlertService(db)
	if err != nil {
		return fmt.Errorf("initialise alert service: %w", err)
	}

	var assist services.AssistantClient
	if cfg.Assistant.Enabled {
		client, assistErr := assistant.NewClient(assistant.Config{
			BaseURL:   cfg.Assistant.BaseURL,
			APIKey:    cfg.Assistant.APIKey,
			Model:     cfg.Assistant.Model,
			MaxTokens: cfg.Assistant.MaxTokens,
			Timeout:   cfg.Assistant.Timeout,
		})
		if assistErr != nil {
			return fmt.Errorf("initialise assistant client: %w", assistErr)
		}
		assist = client
		log.Info("assistant enabled", zap.String("model", cfg.Assistant.Model))
	} else {
		log.Info("assistant disabled; classification runs on rules alone")
	}

	emailSvc, err := services.NewEmailService(db, mailbox.NewIMAPFetcher(), assist, alertSvc)
	if err != nil {
		return fmt.Errorf("initialise email service: %w", err)
	}
	if cfg.Email.SMTP.Enabled {
		emailSvc.ConfigureSMTP(mail.SMTPSettings{
			Enabled:  true,
			Host:     cfg.Email.SMTP.Host,
			Port:     cfg.Email.SMTP.Port,
			Username: cfg.Email.SMTP.Username,
			Password: cfg.Email.SMTP.Password,
			From:     cfg.Email.SMTP.From,
			UseTLS:   cfg.Email.SMTP.UseTLS,
			Timeout:  cfg.Email.SMTP.Timeout,
		})
	}

	calendarSvc, err := services.NewCalendarService(db, calendar.NewGoogleFetcher(calendar.Config{
		ClientID:     cfg.Calendar.ClientID,
		ClientSecret: cfg.Calendar.ClientSecret,
	}), alertSvc)
	if err != nil {
		return fmt.Errorf("initialise calendar service: %w", err)
	}

	briefingSvc, err := services.NewBriefingService(emailSvc, calendarSvc, alertSvc, assist)
	if err != nil {
		return fmt.Errorf("initialise briefing service: %w", err)
	}

	if cfg.Scheduler.Enabled {
		sched, schedErr := scheduler.New(userSvc, emailSvc, calendarSvc, briefingSvc, alertSvc, scheduler.Cadences{
			EmailPoll:      cfg.Scheduler.EmailPollInterval,
			CalendarPoll:   cfg.Scheduler.CalendarPollInterval,
			Reminders:      cfg.Scheduler.ReminderInterval,
			Briefing:       cfg.Scheduler.BriefingInterval,
			Flush:          cfg.Scheduler.FlushInterval,
			FlushGrace:     cfg.Scheduler.FlushGrace,
			TriggerTimeout: cfg.Scheduler.TriggerTimeout,
		})
		if schedErr != nil {
			return fmt.Errorf("initialise scheduler: %w", schedErr)
		}
		if err := sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() {
			<-sched.Stop().Done()
		}()
	} else {
		log.Warn("scheduler disabled; alerts only via API")
	}

	router, err := api.NewRouter(api.Dependencies{
		DB:       db,
		JWT:      jwtService,
		Users:    userSvc,
		Alerts:   alertSvc,
		Emails:   emailSvc,
		Calendar: calendarSvc,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.DatabaseSettings())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("database close skipped", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("database close failed", zap.Error(err))
	}
}
