// Command authd runs the authentication server: interactive login with
// session cookies, API access key and authorization code validation, and
// the tamper-evident login audit log.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/authcore/accesskey"
	"go.pilab.hu/authcore/audit"
	"go.pilab.hu/authcore/config"
	"go.pilab.hu/authcore/httpauth"
	"go.pilab.hu/authcore/internal/metrics"
	"go.pilab.hu/authcore/internal/password"
	"go.pilab.hu/authcore/login"
	"go.pilab.hu/authcore/mongodb"
	"go.pilab.hu/authcore/postgres"
	"go.pilab.hu/authcore/redisstore"
	"go.pilab.hu/authcore/session"
	"go.pilab.hu/authcore/token"

	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("authd failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	master, err := cfg.MasterKey()
	if err != nil {
		return err
	}
	tokenSecret, err := cfg.ResolveTokenSecret(master)
	if err != nil {
		return err
	}
	auditSecret, err := cfg.ResolveAuditSecret(master)
	if err != nil {
		return err
	}

	mongo, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return err
	}
	defer mongo.Disconnect(context.Background())

	users := mongodb.NewUserRepository(mongo, password.NewHasher(0))
	keyRepo, err := mongodb.NewAccessKeyRepository(ctx, mongo)
	if err != nil {
		return err
	}

	var keyStore accesskey.KeyStore = keyRepo
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		defer client.Close()
		keyStore = redisstore.NewKeyStore(client, "authcore")
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis access key store")
	}

	auditStore, err := postgres.Open(cfg.AuditDBDSN)
	if err != nil {
		return err
	}
	defer auditStore.Close()

	tokenSigner := token.NewSigner(tokenSecret)
	codec := token.NewCodec(tokenSigner)
	compact := token.NewCompactCodec(tokenSigner)
	auditSvc := audit.NewService(auditStore, token.NewSigner(auditSecret), audit.LocalNode())

	checker := accesskey.NewChecker(keyStore)
	defer checker.Stop()

	cookies := session.NewManager(codec, users, session.Config{
		CookieName: cfg.CookieName,
		TimeToLive: cfg.TokenTTL,
		Refresh:    cfg.TokenRefresh,
	})

	mechanism := httpauth.NewMechanism(
		cookies,
		httpauth.NewAccessKeyManager(compact, checker),
		httpauth.NewAuthCodeManager(codec),
	)

	metrics.Register(prometheus.DefaultRegisterer)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	resource := login.NewResource(users, auditSvc, cookies)
	resource.Register(e)
	resource.RegisterProtected(e.Group("", httpauth.Middleware(mechanism)))

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		log.Info().Str("addr", addr).Msg("authd listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func setupLogging(cfg *config.ServerConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
