package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/XLuisDX/dani-candles-sub001/internal/cache"
	"github.com/XLuisDX/dani-candles-sub001/internal/catalog"
	healthgrpc "github.com/XLuisDX/dani-candles-sub001/internal/grpc"
	h "github.com/XLuisDX/dani-candles-sub001/internal/http"
	"github.com/XLuisDX/dani-candles-sub001/internal/notify"
	"github.com/XLuisDX/dani-candles-sub001/internal/poller"
	"github.com/XLuisDX/dani-candles-sub001/internal/repository"
	"github.com/XLuisDX/dani-candles-sub001/internal/service"
	"github.com/XLuisDX/dani-candles-sub001/internal/upload"
	"github.com/XLuisDX/dani-candles-sub001/pkg/config"
	"github.com/XLuisDX/dani-candles-sub001/pkg/logger"
	"github.com/XLuisDX/dani-candles-sub001/pkg/telemetry"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName    = "storefront"
	serviceVersion = "1.0.0"
)

func main() {
	if err := run(); err != nil {
		slog.Error("storefront stopped with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Service: serviceName,
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, serviceName, serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	// Catalog
	catalogRepo, err := catalog.NewRepository(cfg.CatalogDriver, cfg.CatalogDSN)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	defer catalogRepo.Close()
	if err := catalogRepo.RunMigrations(cfg.MigrationsPath); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	log.Info("catalog ready", "driver", cfg.CatalogDriver)

	// Carts and images live in MongoDB
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return fmt.Errorf("mongo: %w", err)
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			log.Warn("mongo disconnect failed", "error", err)
		}
	}()

	cartRepo := repository.NewMongoRepository(mongoDB)
	if err := cartRepo.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("mongo indexes: %w", err)
	}

	imageStorage, err := upload.NewGridFSStorage(mongoDB)
	if err != nil {
		return fmt.Errorf("gridfs: %w", err)
	}
	images := upload.NewService(imageStorage, cfg.PublicBaseURL, log)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	cartCache := cache.NewRedisCache(redisClient)
	if err := cartCache.Ping(ctx); err != nil {
		// carts still work from Mongo alone
		log.Warn("redis ping failed", "addr", cfg.RedisAddr, "error", err)
	}

	carts := service.NewCartService(cartRepo, cartCache, log)
	defer carts.Close()

	// Messaging
	notifier := notify.NewKafkaNotifier(notify.NewKafkaWriter(cfg.NotifyTopic, cfg.KafkaBrokers...), cfg.ShopEmail, log)
	defer notifier.Close()

	dispatcher := notify.NewDispatcher(
		notify.NewKafkaReader(cfg.NotifyTopic, "storefront-mailer", cfg.KafkaBrokers...),
		notify.NewLogMailer(log),
		log,
	)
	defer dispatcher.Close()

	checkoutPoller := poller.NewPoller(
		notify.NewKafkaReader(cfg.CheckoutTopic, "storefront-carts", cfg.KafkaBrokers...),
		carts,
		notifier,
		log,
	)
	defer checkoutPoller.Close()

	// Servers
	router := h.NewRouter(h.RouterConfig{
		Carts:          carts,
		Catalog:        catalogRepo,
		Images:         images,
		Notifier:       notifier,
		PublicBaseURL:  cfg.PublicBaseURL,
		ShopEmail:      cfg.ShopEmail,
		AdminToken:     cfg.AdminToken,
		RequestTimeout: cfg.RequestTimeout,
		Log:            log,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	health := healthgrpc.NewHealthServer(map[string]healthgrpc.Pinger{
		"mongo":   cartRepo,
		"redis":   cartCache,
		"catalog": catalogRepo,
	}, 0, log)

	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("grpc health server starting", "port", cfg.GRPCPort)
		return health.Serve(grpcLis)
	})

	g.Go(func() error { return health.Run(gctx) })
	g.Go(func() error { return carts.Run(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return checkoutPoller.Run(gctx) })

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		health.GracefulStop()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("storefront stopped")
	return nil
}
