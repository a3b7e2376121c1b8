package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"qr-payment-ledger/config"
	httpHandler "qr-payment-ledger/internal/adapter/http/handler"
	memStorage "qr-payment-ledger/internal/adapter/storage/memory"
	pgStorage "qr-payment-ledger/internal/adapter/storage/postgres"
	redisStorage "qr-payment-ledger/internal/adapter/storage/redis"
	"qr-payment-ledger/internal/core/domain"
	"qr-payment-ledger/internal/core/ports"
	"qr-payment-ledger/internal/service"
	"qr-payment-ledger/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
)

// stores holds the storage adapters selected by configuration.
type stores struct {
	blocks      ports.BlockStore
	redemptions ports.RedemptionStore
	rateLimit   ports.RateLimitStore
	audit       ports.AuditRepository      // nil = audit entries are only logged
	settlement  ports.SettlementRepository // nil = deliveries are only logged
	health      []ports.HealthChecker
}

func main() {
	configPath := os.Getenv("SPL_CONFIG")

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Int("difficulty", cfg.Ledger.Difficulty).
		Str("storage", cfg.Ledger.Storage).
		Str("redemptions", cfg.Ledger.Redemptions).
		Msg("Starting QR payment ledger")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional backends
	var pool *pgxpool.Pool
	if cfg.Database.Enabled {
		pool, err = pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		if err := pgStorage.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply ledger schema")
		}
	}

	var rdb *goredis.Client
	if cfg.Redis.Enabled {
		rdb, err = redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
	}

	st := selectStores(cfg, pool, rdb)

	// Ledger core
	hasher := service.NewSHA256Hasher()
	miner := service.NewPoWMiner(hasher, cfg.Ledger.MiningWorkers, log)

	chain, err := service.NewChain(hasher, st.blocks, uint8(cfg.Ledger.Difficulty), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create chain")
	}
	if err := chain.Bootstrap(ctx, miner); err != nil {
		if !errors.Is(err, domain.ErrChainInvalid) {
			log.Fatal().Err(err).Msg("Failed to bootstrap ledger")
		}
		// A chain that fails validation on load stays halted but readable.
		log.Error().Err(err).Msg("Ledger failed validation on load; appends and redemptions are halted")
	}

	codec, err := service.NewEnvelopeService(cfg.Envelope.Key, cfg.Envelope.Cipher, cfg.Envelope.CodeTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize envelope codec")
	}

	// Collaborators
	var notifier ports.SettlementNotifier
	var settlement *service.SettlementService
	if cfg.Settlement.URL != "" {
		settlement = service.NewSettlementService(
			cfg.Settlement.URL,
			cfg.Settlement.Secret,
			service.NewHMACSignatureService(),
			st.settlement,
			&http.Client{Timeout: cfg.Settlement.Timeout},
			log,
		)
		notifier = settlement
	}

	auditSvc := service.NewAuditService(st.audit, log)
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Business services
	paymentSvc := service.NewPaymentService(chain, miner, codec, service.SealOptions{
		MaxAttempts: cfg.Ledger.MaxSealAttempts,
		MineTimeout: cfg.Ledger.MineTimeout,
	}, log)
	redemptionSvc := service.NewRedemptionService(chain, codec, st.redemptions, notifier, log)

	auditor := service.NewIntegrityAuditor(chain, cfg.Ledger.AuditInterval, log)
	go auditor.Run(ctx)

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		PaymentSvc:     paymentSvc,
		RedemptionSvc:  redemptionSvc,
		Ledger:         chain,
		TokenSvc:       tokenSvc,
		RateLimitStore: st.rateLimit,
		HealthCheckers: append(st.health, auditor),
		AuditSvc:       auditSvc,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if settlement != nil {
		if err := settlement.Wait(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Settlement deliveries still pending at shutdown")
		}
	}

	log.Info().Int("blocks", chain.Len()).Msg("Server exited")
}

// selectStores wires the storage adapters named by ledger.storage and
// ledger.redemptions. Validate has already checked the backends exist.
func selectStores(cfg *config.Config, pool *pgxpool.Pool, rdb *goredis.Client) stores {
	st := stores{
		blocks:      memStorage.NewBlockStore(),
		redemptions: memStorage.NewRedemptionStore(),
		rateLimit:   memStorage.NewRateLimitStore(),
	}

	if pool != nil {
		st.audit = pgStorage.NewAuditRepo(pool)
		st.settlement = pgStorage.NewSettlementRepo(pool)
		st.health = append(st.health, pgStorage.NewHealthCheck(pool))
		if cfg.Ledger.Storage == config.BackendPostgres {
			st.blocks = pgStorage.NewBlockRepo(pool)
		}
		if cfg.Ledger.Redemptions == config.BackendPostgres {
			st.redemptions = pgStorage.NewRedemptionRepo(pool)
		}
	}

	if rdb != nil {
		st.rateLimit = redisStorage.NewRateLimitStore(rdb)
		st.health = append(st.health, redisStorage.NewHealthCheck(rdb))
		if cfg.Ledger.Redemptions == config.BackendRedis {
			st.redemptions = redisStorage.NewRedemptionStore(rdb, cfg.Redis.RedemptionTTL)
		}
	}

	return st
}
