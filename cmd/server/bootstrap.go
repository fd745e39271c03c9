package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nferrante/accesshub/internal/api"
	"github.com/nferrante/accesshub/internal/app"
	"github.com/nferrante/accesshub/internal/app/maintenance"
	"github.com/nferrante/accesshub/internal/database"
	"github.com/nferrante/accesshub/internal/handlers"
	"github.com/nferrante/accesshub/internal/services"
	"github.com/nferrante/accesshub/pkg/logger"
	"github.com/nferrante/accesshub/pkg/mail"
)

// runtimeStack bundles long-lived components used by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Janitor *maintenance.Janitor
	Router  *gin.Engine
}

// bootstrapRuntime initialises the database, services, maintenance jobs, and
// the HTTP router.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack := &runtimeStack{DB: db}
	success := false
	defer func() {
		if !success {
			stack.Shutdown(log)
		}
	}()

	store, err := services.NewInvitationStore(db)
	if err != nil {
		return nil, fmt.Errorf("initialise invitation store: %w", err)
	}
	grantor, err := services.NewAccessGrantor(db)
	if err != nil {
		return nil, fmt.Errorf("initialise access grantor: %w", err)
	}
	accounts, err := services.NewAccountService(db)
	if err != nil {
		return nil, fmt.Errorf("initialise account service: %w", err)
	}
	users, err := services.NewUserService(db)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}

	notifications, err := services.NewNotificationService(db, buildMailer(cfg, log))
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}

	invitations, err := services.NewInvitationService(store, grantor, accounts, users,
		services.WithInvitationExpiry(cfg.Invitations.Expiry),
		services.WithNotifier(notifications),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise invitation service: %w", err)
	}

	if cfg.Maintenance.Enabled {
		retention := time.Duration(cfg.Maintenance.NotificationRetention) * 24 * time.Hour
		janitor, err := maintenance.NewJanitor(store, notifications,
			maintenance.WithSchedules(cfg.Maintenance.RetireSchedule, cfg.Maintenance.PruneSchedule),
			maintenance.WithNotificationRetention(retention),
		)
		if err != nil {
			return nil, fmt.Errorf("initialise maintenance: %w", err)
		}
		if err := janitor.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
		stack.Janitor = janitor
	}

	invitationHandler, err := handlers.NewInvitationHandler(invitations)
	if err != nil {
		return nil, fmt.Errorf("initialise invitation handler: %w", err)
	}
	notificationHandler, err := handlers.NewNotificationHandler(notifications)
	if err != nil {
		return nil, fmt.Errorf("initialise notification handler: %w", err)
	}

	stack.Router = api.NewRouter(invitationHandler, notificationHandler, api.Options{
		MetricsEnabled:  cfg.Monitoring.Prometheus.Enabled,
		MetricsEndpoint: cfg.Monitoring.Prometheus.Endpoint,
	})

	success = true
	return stack, nil
}

// Shutdown releases the stack's resources in reverse initialisation order.
func (s *runtimeStack) Shutdown(log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Janitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		s.Janitor.Stop(ctx)
		cancel()
		s.Janitor = nil
	}

	closeDatabase(s.DB, log)
	s.DB = nil
}

func buildMailer(cfg *app.Config, log *zap.Logger) mail.Mailer {
	if !cfg.Email.SMTP.Enabled {
		return nil
	}

	mailer, err := mail.NewSMTP(mail.SMTPSettings{
		Enabled:  true,
		Host:     cfg.Email.SMTP.Host,
		Port:     cfg.Email.SMTP.Port,
		Username: cfg.Email.SMTP.Username,
		Password: cfg.Email.SMTP.Password,
		From:     cfg.Email.SMTP.From,
		Timeout:  cfg.Email.SMTP.Timeout,
	})
	if err != nil {
		log.Warn("smtp disabled; invitation emails will not be sent", zap.Error(err))
		return nil
	}
	return mailer
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := database.Config{
		Driver:   strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:     strings.TrimSpace(cfg.Database.Path),
		DSN:      strings.TrimSpace(cfg.Database.DSN),
		Host:     strings.TrimSpace(cfg.Database.Host),
		Port:     cfg.Database.Port,
		User:     strings.TrimSpace(cfg.Database.User),
		Password: cfg.Database.Password,
		Name:     strings.TrimSpace(cfg.Database.Name),
	}
	if dbCfg.Driver == "" {
		dbCfg.Driver = "sqlite"
	}

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
