package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/saas-gateway/internal/auth"
	"github.com/jmehdipour/saas-gateway/internal/cache"
	"github.com/jmehdipour/saas-gateway/internal/db"
	httpSrv "github.com/jmehdipour/saas-gateway/internal/http"
	"github.com/jmehdipour/saas-gateway/internal/provider"
	"github.com/jmehdipour/saas-gateway/internal/proxy"
	"github.com/jmehdipour/saas-gateway/internal/repository"
	"github.com/jmehdipour/saas-gateway/internal/service/messaging"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		mysqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer func() {
			_ = chDB.Close()
		}()

		// redis is an accelerator; the unique index stays authoritative without it
		var (
			redisClient *redis.Client
			idem        cache.IdempotencyCache
		)
		if rc, err := db.NewRedisClient(cfg.Redis); err != nil {
			log.Warn("redis unavailable, idempotency cache and rate limit disabled", zap.Error(err))
		} else {
			redisClient = rc
			defer func() { _ = redisClient.Close() }()

			lockTTL := cfg.Idempotency.LockTTL
			if floor := time.Duration(cfg.WhatsApp.TimeoutMs)*time.Millisecond + 5*time.Second; lockTTL < floor {
				lockTTL = floor
			}
			idem = cache.NewRedisCache(redisClient, cfg.Idempotency.CacheTTL, lockTTL)
		}

		resolver, err := auth.NewJWTResolver(cfg.Auth)
		if err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		defer resolver.Close()

		// repos (MySQL)
		orgsRepo := repository.NewOrganizationsRepository(mysqlDB)
		recorder := repository.NewMessageRecorder(
			mysqlDB,
			repository.NewMessagesRepository(mysqlDB),
			repository.NewOutboxRepository(),
			cfg.Kafka.Topic,
		)

		// repos (ClickHouse)
		chMessagesRepo := repository.NewCHMessagesRepository(chDB)

		whatsapp := provider.NewWhatsAppClient(cfg.WhatsApp)
		if err := whatsapp.CheckConfigured(); err != nil {
			log.Warn("whatsapp not configured, sends will fail", zap.Error(err))
		}

		svc := messaging.New(orgsRepo, recorder, whatsapp, idem, log.Named("messaging"))

		server := httpSrv.NewServer(cfg, httpSrv.Deps{
			Resolver:  resolver,
			Messaging: svc,
			Lister:    chMessagesRepo,
			Stripe:    proxy.NewStripe(cfg.Stripe),
			Paddle:    proxy.NewPaddle(cfg.Paddle),
			Mailer:    provider.NewMailer(cfg.Resend),
			Redis:     redisClient,
			Logger:    log.Named("http"),
		})

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil {
				log.Error("http server exited", zap.Error(err))
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}
