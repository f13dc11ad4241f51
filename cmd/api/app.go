package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"storeadmin/api/internal/alerts"
	"storeadmin/api/internal/cache"
	"storeadmin/api/internal/config"
	"storeadmin/api/internal/database"
	"storeadmin/api/internal/log"
	"storeadmin/api/internal/metrics"
	"storeadmin/api/internal/repository"
	"storeadmin/api/internal/revocation"
	"storeadmin/api/internal/security"
	"storeadmin/api/internal/service"
)

// app holds the connections and services shared by every subcommand.
type app struct {
	cfg     *config.AppConfig
	log     zerolog.Logger
	db      *pgxpool.Pool
	redis   *redis.Client
	metrics *metrics.Metrics

	registry    revocation.Registry
	securityLog *repository.SecurityLogRepository

	auth        *service.AuthService
	mfa         *service.MFAService
	security    *service.SecurityService
	users       *service.UserService
	permissions *service.PermissionService
}

func loadConfig() (*config.AppConfig, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, log.New(cfg.Environment), nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	a := &app{cfg: cfg, log: logger, db: db, metrics: metrics.New()}

	// Redis backs the alert stream and, when configured, the revocation registry.
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		if cfg.Security.BlacklistBackend == config.BlacklistRedis {
			db.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Warn().Err(err).Msg("redis unavailable, security alerts disabled")
	} else {
		a.redis = redisClient
	}

	if cfg.Security.BlacklistBackend == config.BlacklistRedis {
		a.registry = revocation.NewRedisRegistry(a.redis)
	} else {
		a.registry = revocation.NewMemoryRegistry()
	}

	a.wire()
	return a, nil
}

func (a *app) wire() {
	users := repository.NewUserRepository(a.db)
	sessions := repository.NewSessionRepository(a.db)
	perms := repository.NewPermissionRepository(a.db)
	a.securityLog = repository.NewSecurityLogRepository(a.db)

	sec := a.cfg.Security
	hasher := security.NewPasswordHasher(security.Argon2Params{
		Time:    sec.Argon2.Time,
		Memory:  sec.Argon2.Memory,
		Threads: sec.Argon2.Threads,
	})

	a.security = service.NewSecurityService(users, sessions, a.securityLog, service.SecurityPolicy{
		MaxFailedAttempts: sec.MaxFailedAttempts,
		LockoutDuration:   sec.LockoutDuration,
		SessionTTL:        sec.SessionTTL,
	}, log.Component(a.log, "security")).WithRecorder(a.metrics)
	if a.redis != nil {
		a.security.WithAlerts(alerts.NewPublisher(a.redis, a.cfg.Alerts.Stream))
	}

	a.mfa = service.NewMFAService(users, a.security, security.NewTOTP(sec.MFAIssuer), hasher, sec.BackupCodeCost, log.Component(a.log, "mfa"))
	a.auth = service.NewAuthService(
		users,
		a.security,
		a.mfa,
		security.NewTokenIssuer(sec.JWTSecret, sec.JWTTTL),
		a.registry,
		hasher,
		sec.ResetTokenTTL,
		log.Component(a.log, "auth"),
	).
		WithRecorder(a.metrics).
		WithNotifier(service.NewLogResetNotifier(log.Component(a.log, "reset"), a.cfg.Environment != "production"))
	a.permissions = service.NewPermissionService(perms, users, a.security, log.Component(a.log, "permissions"))
	a.users = service.NewUserService(users, a.security, a.permissions, hasher, log.Component(a.log, "users"))
}

func (a *app) Close() {
	a.db.Close()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error().Err(err).Msg("redis close error")
		}
	}
}
