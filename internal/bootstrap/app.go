package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	appsvc "uistudio/internal/app"
	"uistudio/internal/cache"
	"uistudio/internal/config"
	"uistudio/internal/generator"
	"uistudio/internal/model"
	mysqlClient "uistudio/internal/platform/mysql"
	rabbitmqClient "uistudio/internal/platform/rabbitmq"
	redisClient "uistudio/internal/platform/redis"
	"uistudio/internal/repository"
	"uistudio/internal/worker"
)

type App struct {
	Config *config.Config
	Log    *zap.Logger
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Publisher      *rabbitmqClient.ExchangePublisher
	ExchangeWorker *worker.ExchangeRecordWorker

	Auth       *appsvc.AuthService
	Sessions   *appsvc.SessionService
	Generation *appsvc.GenerationService

	StartedAt time.Time
}

// Parts are the connected infrastructure a service graph is assembled from.
// Redis and Publisher are optional.
type Parts struct {
	MySQL     *gorm.DB
	Redis     *redis.Client
	Publisher appsvc.ExchangePublisher
	Generator generator.Generator
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN(), mysqlClient.PoolOptions{
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		ConnMaxLifetime: time.Duration(cfg.MySQL.ConnMaxLifetimeMinutes) * time.Minute,
	})
	if err != nil {
		return nil, err
	}

	redisCli, err := redisClient.New(ctx, redisClient.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		_ = redisCli.Close()
		return nil, err
	}
	publisher := rabbitmqClient.NewExchangePublisher(mqConn, cfg.RabbitMQ.ExchangeQueue)

	app, err := Assemble(cfg, log, Parts{
		MySQL:     mysqlDB,
		Redis:     redisCli,
		Publisher: publisher,
	})
	if err != nil {
		_ = mqConn.Close()
		_ = redisCli.Close()
		return nil, err
	}
	app.MQConn = mqConn
	app.Publisher = publisher

	app.ExchangeWorker = worker.NewExchangeRecordWorker(mqConn, app.Sessions, cfg.RabbitMQ.ExchangeQueue, log.Named("exchange-worker"))
	if err := app.ExchangeWorker.Start(ctx); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("start exchange worker failed: %w", err)
	}

	log.Info("bootstrap complete",
		zap.String("mysql_db", cfg.MySQL.DB),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.String("exchange_queue", cfg.RabbitMQ.ExchangeQueue),
	)
	return app, nil
}

// Assemble migrates the schema and builds repositories and services on top
// of already connected infrastructure.
func Assemble(cfg *config.Config, log *zap.Logger, parts Parts) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := Migrate(parts.MySQL); err != nil {
		return nil, err
	}

	var sessionCache appsvc.SessionCache
	if parts.Redis != nil {
		sessionCache = cache.NewSessionCache(
			parts.Redis,
			time.Duration(cfg.Redis.SessionTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.SessionDirtyTTLSeconds)*time.Second,
		)
	}
	gen := parts.Generator
	if gen == nil {
		gen = generator.NewTemplateGenerator()
	}

	userRepo := repository.NewUserRepository(parts.MySQL)
	sessionRepo := repository.NewSessionRepository(parts.MySQL)

	return &App{
		Config:     cfg,
		Log:        log,
		MySQL:      parts.MySQL,
		Redis:      parts.Redis,
		Auth:       appsvc.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.JWTTTL()),
		Sessions:   appsvc.NewSessionService(sessionRepo, sessionCache, log.Named("sessions")),
		Generation: appsvc.NewGenerationService(sessionRepo, gen, parts.Publisher, sessionCache, log.Named("generation")),
		StartedAt:  time.Now(),
	}, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}, &model.Session{}); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}
	return nil
}

func (a *App) Close() error {
	var closeErr error
	if a.ExchangeWorker != nil {
		a.ExchangeWorker.Close()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	_ = a.Log.Sync()
	return closeErr
}
