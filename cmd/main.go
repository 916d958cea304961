package main

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rryowa/gitagpt_auth/internal/api"
	"github.com/rryowa/gitagpt_auth/internal/controller"
	"github.com/rryowa/gitagpt_auth/internal/migrations"
	"github.com/rryowa/gitagpt_auth/internal/service"
	"github.com/rryowa/gitagpt_auth/internal/storage"
	"github.com/rryowa/gitagpt_auth/internal/storage/memory"
	"github.com/rryowa/gitagpt_auth/internal/storage/mongo"
	"github.com/rryowa/gitagpt_auth/internal/storage/postgres"
	"github.com/rryowa/gitagpt_auth/internal/storage/redis"
	"github.com/rryowa/gitagpt_auth/internal/util"
)

func main() {
	ctx := context.Background()
	logger := util.NewZapLogger()
	defer logger.Sync() //nolint:errcheck

	storageConfig := util.NewStorageConfig()
	cleanupFuncs := []func(){}

	var redisClient *goredis.Client
	if redisConfig := util.NewRedisConfig(); redisConfig != nil {
		client, redisCleanup, err := util.NewRedisClient(logger, redisConfig)
		if err != nil {
			logger.Fatal(zap.Error(err))
		}
		redisClient = client
		cleanupFuncs = append(cleanupFuncs, redisCleanup)
	}

	store, storeCleanup := newStorage(ctx, logger, storageConfig)
	cleanupFuncs = append(cleanupFuncs, storeCleanup)

	var sessionStore storage.SessionStore = store
	switch storageConfig.SessionStore {
	case storageConfig.Backend:
	case util.BackendRedis:
		if redisClient == nil {
			logger.Fatal("SESSION_STORE=redis requires REDIS_ADDR")
		}
		sessionStore = redis.NewSessionStorage(redisClient)
	default:
		logger.Fatalf("Unsupported SESSION_STORE: %s", storageConfig.SessionStore)
	}

	var apiKeyService *service.APIKeyService
	if redisClient != nil {
		apiKeyService = service.NewAPIKeyService(redisClient, logger)
		if err := apiKeyService.SyncAPIKey(ctx, util.GetAPIKey()); err != nil {
			logger.Warnw("Admin API key not synced; admin routes disabled", "error", err)
			apiKeyService = nil
		}
	}

	var verifier service.IdentityVerifier
	if googleConfig := util.NewGoogleConfig(); googleConfig != nil {
		googleVerifier, err := service.NewGoogleVerifier(ctx, googleConfig)
		if err != nil {
			logger.Fatal(zap.Error(err))
		}
		verifier = googleVerifier
	}

	tokenConfig := util.NewTokenConfig()
	tokenService := service.NewTokenService(tokenConfig)
	webhookService := service.NewWebhookService(logger, util.GetWebhookURL())
	sessionManager := service.NewSessionManager(sessionStore, tokenService, tokenConfig, webhookService, logger)
	authenticator := service.NewAuthenticator(sessionStore, store, tokenService)
	authService := service.NewAuthService(store, sessionManager, verifier, logger)

	serverConfig := util.NewServerConfig()
	ctrl := controller.NewController(logger, authService, serverConfig.SecureCookies)

	apiServer := api.NewAPI(ctrl, authenticator, apiKeyService, serverConfig, util.NewRateLimiterConfig(), logger, cleanupFuncs)
	apiServer.Run(ctx)
}

func newStorage(ctx context.Context, logger *zap.SugaredLogger, cfg *util.StorageConfig) (storage.Storage, func()) {
	switch cfg.Backend {
	case util.BackendMongo:
		mongoConfig := util.NewMongoConfig()
		db, cleanup, err := util.NewMongoDatabase(logger, mongoConfig)
		if err != nil {
			logger.Fatal(zap.Error(err))
		}
		mongoStorage := mongo.NewStorage(db, mongoConfig.Transactions, logger)
		if err := mongoStorage.EnsureIndexes(ctx); err != nil {
			logger.Fatal(zap.Error(err))
		}
		return mongoStorage, cleanup

	case util.BackendMemory:
		logger.Warn("Using in-memory storage; all data is lost on restart")
		return memory.NewStorage(logger), func() {}

	default:
		db, cleanup, err := util.NewDBConnection(logger)
		if err != nil {
			logger.Fatal(zap.Error(err))
		}
		if err := migrations.RunMigrations(ctx, db, logger); err != nil {
			logger.Fatal(zap.Error(err))
		}
		return postgres.NewStorage(db), cleanup
	}
}
