package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/socialimageapp/authentication-api-service/internal/adapter/cache"
	oauthadapter "github.com/socialimageapp/authentication-api-service/internal/adapter/oauth"
	"github.com/socialimageapp/authentication-api-service/internal/bootstrap"
	"github.com/socialimageapp/authentication-api-service/internal/config"
	"github.com/socialimageapp/authentication-api-service/internal/db"
	httptransport "github.com/socialimageapp/authentication-api-service/internal/http"
	"github.com/socialimageapp/authentication-api-service/internal/http/handler"
	httpmiddleware "github.com/socialimageapp/authentication-api-service/internal/http/middleware"
	"github.com/socialimageapp/authentication-api-service/internal/jwt"
	"github.com/socialimageapp/authentication-api-service/internal/keys"
	"github.com/socialimageapp/authentication-api-service/internal/mail"
	apimiddleware "github.com/socialimageapp/authentication-api-service/internal/middleware"
	"github.com/socialimageapp/authentication-api-service/internal/queue"
	"github.com/socialimageapp/authentication-api-service/internal/repository"
	"github.com/socialimageapp/authentication-api-service/internal/server"
	"github.com/socialimageapp/authentication-api-service/internal/service"
	oauthservice "github.com/socialimageapp/authentication-api-service/internal/service/oauth"
	"github.com/socialimageapp/authentication-api-service/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newUserRepository,
			newVerificationRepository,
			newOrganizationRepository,
			newProvisioner,
			newRedisClient,
			newOAuthStateStore,
			newGoogleConfig,
			newGoogleClient,
			newRateLimiter,
			newTokenGenerator,
			newMailSender,
			newEmailQueue,
			service.NewAuthService,
			oauthservice.NewGoogleService,
			handler.NewAuthHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, runMigrations, bootstrap.EnsureAdmin, startEmailWorker, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	return node, err
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newVerificationRepository(pool *pgxpool.Pool) repository.VerificationRepository {
	return repository.NewPostgresVerificationRepo(pool)
}

func newOrganizationRepository(pool *pgxpool.Pool) repository.OrganizationRepository {
	return repository.NewPostgresOrganizationRepo(pool)
}

func newProvisioner(pool *pgxpool.Pool, node *snowflake.Node) repository.Provisioner {
	return repository.NewPostgresProvisioner(pool, node, keys.NewRSAPair)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newOAuthStateStore(client redis.UniversalClient) repository.OAuthStateStore {
	return cacheadapter.NewRedisStateStore(client)
}

func newGoogleConfig(cfg config.Config) oauthadapter.Config {
	return oauthadapter.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURI:  cfg.GoogleRedirectURI,
	}
}

func newGoogleClient(cfg oauthadapter.Config) oauthadapter.Client {
	return oauthadapter.NewHTTPClient(cfg, nil)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg)
}

func newTokenGenerator(cfg config.Config) *jwt.Generator {
	return jwt.NewGenerator([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.AccessTokenTTL)
}

func newMailSender(cfg config.Config, logger *zap.Logger) mail.Sender {
	if cfg.SendGridAPIKey == "" {
		return mail.NewLogSender(logger)
	}
	return mail.NewSendGridSender(cfg.SendGridAPIKey, cfg.EmailSender, cfg.EmailSenderName, nil)
}

func newEmailQueue(client redis.UniversalClient) queue.Enqueuer {
	return queue.NewEmailQueue(client)
}

func newAuthMiddleware(generator *jwt.Generator) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{JWT: generator}
}

func runMigrations(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return db.Migrate(ctx, cfg.DatabaseURL, logger)
		},
	})
}

func startEmailWorker(lc fx.Lifecycle, client redis.UniversalClient, sender mail.Sender, logger *zap.Logger) {
	worker := queue.NewWorker(client, sender, logger)
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := worker.Run(runCtx); err != nil {
					logger.Error("email worker stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, logger *zap.Logger) {
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			logger.Info("http server listening", zap.String("addr", srv.Addr()))
			go func() {
				if err := srv.Run(runCtx); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
