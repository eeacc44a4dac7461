package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/botio91514/gym-backend/internal/auth"
	"github.com/botio91514/gym-backend/internal/config"
	"github.com/botio91514/gym-backend/internal/db"
	lifecycledomain "github.com/botio91514/gym-backend/internal/domain/lifecycle"
	membershipdomain "github.com/botio91514/gym-backend/internal/domain/membership"
	"github.com/botio91514/gym-backend/internal/notify"
	"github.com/botio91514/gym-backend/internal/receipt"
	"github.com/botio91514/gym-backend/internal/repository/inmemory"
	lifecyclerepo "github.com/botio91514/gym-backend/internal/repository/postgres/lifecycle"
	membershiprepo "github.com/botio91514/gym-backend/internal/repository/postgres/membership"
	"github.com/botio91514/gym-backend/internal/retry"
	"github.com/botio91514/gym-backend/internal/telemetry"
	"github.com/botio91514/gym-backend/internal/transport/httpserver"
	"github.com/botio91514/gym-backend/internal/transport/httpserver/handler"
	"github.com/botio91514/gym-backend/pkg/logger"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

type App struct {
	cfg        config.Config
	log        logger.Logger
	httpServer *http.Server
	db         *gorm.DB
	queue      *notify.Queue
	scheduler  *lifecycledomain.Scheduler
	telemetry  *telemetry.Provider
}

func New(ctx context.Context, log logger.Logger) (*App, error) {
	log.Info("app: loading config")
	cfg, err := config.Load(log)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg, log)
}

func NewWithConfig(ctx context.Context, cfg config.Config, log logger.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	log.Info("app: initializing telemetry")
	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, err
	}
	a.telemetry = tp

	log.Info("app: initializing store", "driver", cfg.DB.Driver)
	members, runs, health, err := a.openStore()
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	location, err := cfg.Scheduler.Location()
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	receipts, err := receipt.NewGenerator(cfg.Receipts.Dir, cfg.Receipts.URLPrefix, clockwork.NewRealClock(), log)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("receipts: %w", err)
	}

	dispatcher := notify.NewDispatcher(a.transportFactory(), log, notify.WithPolicy(retry.Policy{
		MaxAttempts: cfg.Notifications.MaxAttempts,
		BaseDelay:   cfg.Notifications.BaseDelay,
		Multiplier:  cfg.Notifications.Multiplier,
	}))
	a.queue = notify.NewQueue(dispatcher, log, cfg.Notifications.SendTimeout)

	membershipService := membershipdomain.NewService(members, log,
		membershipdomain.WithReceiptCleaner(receipts),
		membershipdomain.WithRegistrationListener(lifecycledomain.NewRegistrationNotifier(a.queue)),
	)
	lifecycleService := lifecycledomain.NewService(members, receipts, dispatcher, a.queue, clockwork.NewRealClock(), log, lifecycledomain.Config{
		ReminderWindow:    cfg.Scheduler.ReminderWindow,
		AsyncConfirmation: cfg.Notifications.Async,
		PublicBaseURL:     cfg.Receipts.PublicBaseURL,
	})
	a.scheduler = lifecycledomain.NewScheduler(lifecycleService, runs, clockwork.NewRealClock(), log, lifecycledomain.SchedulerOptions{
		Location: location,
	})

	authenticator := auth.NewAuthenticator(cfg.Auth, clockwork.NewRealClock())

	log.Info("app: initializing router")
	handlers := handler.New(membershipService, lifecycleService, a.scheduler, authenticator, health, log)
	router := httpserver.NewRouter(cfg, handlers, authenticator, receipts.Dir(), log)

	log.Info("app: initializing http server")
	a.httpServer = httpserver.New(cfg, router)

	return a, nil
}

func (a *App) openStore() (membershipdomain.Repository, lifecycledomain.RunStore, handler.HealthCheck, error) {
	if a.cfg.DB.Driver == config.DBDriverMemory {
		a.log.Warn("app: using in-memory store, data is lost on restart")
		return inmemory.NewMemberStore(), inmemory.NewRunStore(), nil, nil
	}

	if a.cfg.DB.AutoMigrate {
		if err := db.Migrate(a.cfg.DB.MigrateURL(), db.DirectionUp, a.log); err != nil {
			return nil, nil, nil, err
		}
	}

	dbConn, err := db.NewPostgres(a.cfg.DB, a.log)
	if err != nil {
		return nil, nil, nil, err
	}
	a.db = dbConn

	sqlDB, err := dbConn.DB()
	if err != nil {
		return nil, nil, nil, err
	}
	return membershiprepo.NewPostgres(dbConn), lifecyclerepo.NewPostgres(dbConn), sqlDB.PingContext, nil
}

func (a *App) transportFactory() notify.TransportFactory {
	if a.cfg.Mail.Driver != config.MailDriverSMTP {
		a.log.Info("app: mail driver is log, emails are not sent")
		return notify.LogTransportFactory(a.log)
	}
	return notify.SMTPTransportFactory(notify.SMTPConfig{
		Host:        a.cfg.Mail.Host,
		Port:        a.cfg.Mail.Port,
		Username:    a.cfg.Mail.Username,
		Password:    a.cfg.Mail.Password,
		FromAddress: a.cfg.Mail.From,
		FromName:    a.cfg.Mail.FromName,
		Timeout:     a.cfg.Mail.Timeout,
	})
}

func (a *App) HTTPServer() *http.Server {
	return a.httpServer
}

func (a *App) Scheduler() *lifecycledomain.Scheduler {
	return a.scheduler
}

func (a *App) SchedulerEnabled() bool {
	return a.cfg.Scheduler.Enabled
}

// Close drains queued notifications and releases the store and exporters.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.queue != nil {
		if err := a.queue.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain notifications: %w", err))
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err != nil {
			errs = append(errs, err)
		} else if err := sqlDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	return errors.Join(errs...)
}
