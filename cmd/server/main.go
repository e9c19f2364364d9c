package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"creatorhub/internal/app"
	"creatorhub/internal/config"
	"creatorhub/internal/ratelimit"
	"creatorhub/internal/server"
	"creatorhub/internal/servicetoken"
	"creatorhub/internal/usertoken"
	"creatorhub/internal/util"
	"creatorhub/pkg/agent"
	"creatorhub/pkg/billing"
	"creatorhub/pkg/jobs"
	"creatorhub/pkg/storage"
	"creatorhub/pkg/store"
	"creatorhub/pkg/youtube"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)
	jwtLeeway, err := config.ParseJWTLeeway(cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse jwt leeway: %v", err)
	}

	tokenVerifier, err := usertoken.NewVerifier(usertoken.Config{
		JWKSURL:    cfg.AuthJWKSURL,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		Leeway:     jwtLeeway,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	})
	if err != nil {
		log.Fatalf("failed to init jwks verifier: %v", err)
	}

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init database: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	var generateLimiter *ratelimit.FixedWindowLimiter
	if cfg.RateLimitPerMinute > 0 {
		generateLimiter, err = ratelimit.NewFixedWindowLimiter(redisClient, "", cfg.RateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
	}

	jobTracker, err := jobs.NewTracker(redisClient, "", 0)
	if err != nil {
		log.Fatalf("failed to init job tracker: %v", err)
	}

	var agentSigner *servicetoken.Signer
	if cfg.AgentSignerKeyPath != "" {
		agentSigner, err = servicetoken.NewSigner(servicetoken.SignerOptions{
			PrivateKeyPath: cfg.AgentSignerKeyPath,
			KeyID:          cfg.AgentSignerKeyID,
			Issuer:         cfg.AgentSignerIssuer,
		})
		if err != nil {
			log.Fatalf("failed to init agent token signer: %v", err)
		}
	}
	agentClient, err := agent.NewClient(agent.Config{
		BaseURL:  cfg.AgentBaseURL,
		Audience: cfg.AgentAudience,
		Signer:   agentSigner,
	})
	if err != nil {
		log.Fatalf("failed to init agent client: %v", err)
	}

	var callbackVerifier *servicetoken.Verifier
	if cfg.CallbackPublicKeyPath != "" || cfg.CallbackVerifyPublicKeys != "" {
		verifyKeys, err := servicetoken.ParseVerifyPublicKeys(cfg.CallbackVerifyPublicKeys)
		if err != nil {
			log.Fatalf("failed to parse callback verify public keys: %v", err)
		}
		callbackVerifier, err = servicetoken.NewVerifier(servicetoken.VerifierOptions{
			PublicKeyPath:  cfg.CallbackPublicKeyPath,
			PublicKeyPaths: verifyKeys,
			Audience:       cfg.CallbackAudience,
			AllowedIssuers: cfg.CallbackAllowedIssuers,
		})
		if err != nil {
			log.Fatalf("failed to init callback verifier: %v", err)
		}
	}

	youtubeClient, err := youtube.NewClient(youtube.Config{APIKey: cfg.YouTubeAPIKey})
	if err != nil {
		log.Fatalf("failed to init youtube client: %v", err)
	}

	var paymentClient app.PaymentClient
	if cfg.PaymentSecretKey != "" {
		client, err := billing.NewPaymentClient(billing.PaymentConfig{
			BaseURL:   cfg.PaymentBaseURL,
			SecretKey: cfg.PaymentSecretKey,
		})
		if err != nil {
			log.Fatalf("failed to init payment client: %v", err)
		}
		paymentClient = client
	}

	var archiver app.MediaArchiver
	if cfg.MinioEndpoint != "" {
		objectStore, err := storage.NewMinioStore(
			cfg.MinioEndpoint,
			cfg.MinioAccessKey,
			cfg.MinioSecretKey,
			cfg.MinioBucket,
			cfg.MinioUseSSL,
		)
		if err != nil {
			log.Fatalf("failed to init object store: %v", err)
		}
		archiver, err = storage.NewArchiver(objectStore, nil, 0)
		if err != nil {
			log.Fatalf("failed to init media archiver: %v", err)
		}
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:         dataStore,
		Agent:         agentClient,
		YouTube:       youtubeClient,
		Payments:      paymentClient,
		Jobs:          jobTracker,
		Archiver:      archiver,
		SignupCredits: cfg.SignupCredits,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:              appCore,
		TokenVerifier:    tokenVerifier,
		CallbackVerifier: callbackVerifier,
		GenerateLimiter:  generateLimiter,
		TrustedProxies:   trustedProxies,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 6 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("creatorhub server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
