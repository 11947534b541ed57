package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/cohortanalysis/golang_services/internal/amazon/ads"
	"github.com/cohortanalysis/golang_services/internal/amazon/lwa"
	"github.com/cohortanalysis/golang_services/internal/amazon/spapi"
	"github.com/cohortanalysis/golang_services/internal/core_domain"
	"github.com/cohortanalysis/golang_services/internal/platform/bootstrap"
	"github.com/cohortanalysis/golang_services/internal/platform/cache"
	"github.com/cohortanalysis/golang_services/internal/platform/config"
	"github.com/cohortanalysis/golang_services/internal/platform/database"
	"github.com/cohortanalysis/golang_services/internal/platform/logger"
	"github.com/cohortanalysis/golang_services/internal/platform/messagebroker"
	"github.com/cohortanalysis/golang_services/internal/platform/tokencrypt"
	httptransport "github.com/cohortanalysis/golang_services/internal/public_api_service/transport/http"
	reportApp "github.com/cohortanalysis/golang_services/internal/report_service/app"
	reportDomain "github.com/cohortanalysis/golang_services/internal/report_service/domain"
	redisRepo "github.com/cohortanalysis/golang_services/internal/report_service/repository/redis"
	sellerApp "github.com/cohortanalysis/golang_services/internal/seller_service/app"
	sellerDomain "github.com/cohortanalysis/golang_services/internal/seller_service/domain"
	pgRepo "github.com/cohortanalysis/golang_services/internal/seller_service/repository/postgres"
)

const serviceName = "connector_service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat).With("service", serviceName)
	appLogger.Info("Connector service starting...", "port", cfg.ServerPort)

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	secretProvider, err := bootstrap.SecretsProvider(mainCtx, cfg)
	if err != nil {
		appLogger.Error("Failed to initialize secrets provider", "source", cfg.SecretsSource, "error", err)
		os.Exit(1)
	}

	dsn, err := bootstrap.DatabaseDSN(mainCtx, cfg, secretProvider)
	if err != nil {
		appLogger.Error("Failed to resolve database DSN", "error", err)
		os.Exit(1)
	}
	if cfg.RunMigrations {
		if err := database.RunMigrations(dsn); err != nil {
			appLogger.Error("Failed to run database migrations", "error", err)
			os.Exit(1)
		}
		appLogger.Info("Database migrations applied")
	}

	dbPool, err := database.NewDBPool(mainCtx, dsn)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Successfully connected to PostgreSQL")

	sealer, err := tokencrypt.NewSealer(cfg.TokenEncryptionKey)
	if err != nil {
		appLogger.Error("Invalid token encryption key", "error", err)
		os.Exit(1)
	}
	if !sealer.Enabled() {
		appLogger.Warn("APP_TOKEN_ENCRYPTION_KEY not set, refresh tokens are stored unencrypted")
	}

	var publisher messagebroker.Publisher = messagebroker.LogPublisher{Logger: appLogger}
	if cfg.NATSUrl != "" {
		natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, appLogger)
		if err != nil {
			appLogger.Warn("NATS unavailable, events will only be logged", "url", cfg.NATSUrl, "error", err)
		} else {
			defer natsClient.Close()
			publisher = natsClient
			appLogger.Info("Successfully connected to NATS")
		}
	} else {
		appLogger.Info("NATS URL not configured, events will only be logged")
	}

	rdb, err := cache.NewRedisClient(mainCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		appLogger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	appLogger.Info("Successfully connected to Redis", "addr", cfg.RedisAddr)

	// Token storage and credential resolution
	sellerTokens := pgRepo.NewPgTokenRepository(dbPool, pgRepo.SellersTable, sealer, appLogger)
	advertiserTokens := pgRepo.NewPgTokenRepository(dbPool, pgRepo.AdvertisersTable, sealer, appLogger)
	sellerCreds := sellerApp.NewCredentialResolver(sellerDomain.APISellingPartner, secretProvider, cfg.SPAPISecretName, sellerTokens)
	advertiserCreds := sellerApp.NewCredentialResolver(sellerDomain.APIAdvertising, secretProvider, cfg.AdsSecretName, advertiserTokens)

	// Amazon API clients
	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	lwaClient := lwa.NewClient(cfg.LWATokenURL, httpClient)
	spClients := spapi.NewClientFactory(cfg.SPAPIEndpoint, httpClient, lwaClient, appLogger)
	adsClient := ads.NewClient(cfg.AdsAPIEndpoint, httpClient, lwaClient, appLogger)

	if cfg.UsesDefaultStateSecret() {
		appLogger.Warn("APP_OAUTH_STATE_SECRET not set, OAuth state is signed with the public default secret")
	}
	stateSigner, err := sellerApp.NewStateSigner(cfg.OAuthStateSecret, cfg.OAuthStateTTL)
	if err != nil {
		appLogger.Error("Invalid OAuth state secret", "error", err)
		os.Exit(1)
	}
	authService := sellerApp.NewAuthorizationService(
		sellerApp.AuthorizationConfig{
			SPAPIConsentURL:    cfg.SPAPIConsentURL,
			SPAPIApplicationID: cfg.SPAPIApplicationID,
			SPAPIRedirectURI:   cfg.SPAPIRedirectURI,
			AdsConsentURL:      cfg.AdsConsentURL,
			AdsRedirectURI:     cfg.AdsRedirectURI,
			AdsScope:           cfg.AdsScope,
		},
		stateSigner, lwaClient, sellerCreds, advertiserCreds, sellerTokens, advertiserTokens, publisher, appLogger,
	)
	accountService := sellerApp.NewAccountService(
		sellerCreds, advertiserCreds,
		func(cred core_domain.SellerCredential) sellerApp.SellerAPI { return spClients.Client(cred) },
		adsClient, cfg.MarketplaceIDs, appLogger,
	)

	// Reports
	poller := reportApp.NewPoller(spClients, appLogger, reportApp.PollerConfig{
		PollInterval:     cfg.ReportPollInterval,
		MaxWait:          cfg.ReportMaxWait,
		StatusRetries:    cfg.ReportStatusRetries,
		StatusRetryDelay: cfg.ReportStatusRetryDelay,
	})
	variants := reportDomain.NewVariantCatalog(reportDomain.DefaultVariants()...)
	reportService := reportApp.NewReportService(poller, sellerCreds, variants, cfg.MarketplaceIDs, reportDomain.PollOptions{})
	jobStore := redisRepo.NewJobStore(rdb, cfg.ReportJobTTL)
	jobRunner := reportApp.NewJobRunner(reportService, jobStore, publisher, appLogger, reportApp.JobRunnerConfig{
		Workers:   cfg.ReportWorkers,
		QueueSize: cfg.ReportQueueSize,
	})

	validate := validator.New()
	requestTimeout := cfg.ReportMaxWait + time.Minute
	router := httptransport.NewRouter(requestTimeout,
		httptransport.NewOAuthHandler(authService, appLogger, validate),
		httptransport.NewAccountHandler(accountService, appLogger, validate),
		httptransport.NewReportHandler(reportService, jobRunner, appLogger, validate),
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      requestTimeout + 10*time.Second,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info(fmt.Sprintf("HTTP server listening on port %d", cfg.ServerPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed to serve", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		return jobRunner.Run(groupCtx)
	})

	// Goroutine for handling termination signals
	g.Go(func() error {
		stopSignal := make(chan os.Signal, 1)
		signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-stopSignal:
			appLogger.Info("Received termination signal", "signal", sig.String())
			mainCancel()
			return nil
		case <-groupCtx.Done():
			return nil
		}
	})

	g.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("Shutting down HTTP server...")
		ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelShutdown()
		if err := httpServer.Shutdown(ctxShutdown); err != nil {
			appLogger.Error("HTTP server shutdown failed", "error", err)
			return err
		}
		appLogger.Info("HTTP server shut down gracefully.")
		return nil
	})

	appLogger.Info("Service is ready and running.")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Service group encountered an error", "error", err)
	}
	appLogger.Info("Connector service shut down.")
}
