package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"tipjar-backend/internal/common/config"
	"tipjar-backend/internal/common/logger"
	"tipjar-backend/internal/common/middleware"
	"tipjar-backend/internal/features/bot"
	bothttp "tipjar-backend/internal/features/bot/delivery/http"
	walletredis "tipjar-backend/internal/features/wallet/repository/redis"
	"tipjar-backend/internal/features/wallet/service"
	"tipjar-backend/internal/i18n"
	"tipjar-backend/internal/ledger"
	"tipjar-backend/internal/platform/redis"
	"tipjar-backend/internal/platform/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger.Init("tipjar-backend", cfg.Debug)
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	catalog, err := i18n.Load(cfg.DefaultLanguage)
	if err != nil {
		logger.Fatal().Err(err).Msg("Could not load translation catalogs")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rdb, err := redis.Open(ctx,
		fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("Could not connect to Redis")
	}

	gateway, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Fatal().Err(err).Msg("Could not connect to Telegram")
	}

	ledgerClient := ledger.NewClient(cfg.Ledger.NodeURL, cfg.Ledger.Timeout)

	users := walletredis.NewUserRepository(rdb.Client)
	states := walletredis.NewStateRepository(rdb.Client)
	groups := walletredis.NewGroupLanguageRepository(rdb.Client)
	pending := walletredis.NewPendingTransferRepository(rdb.Client)

	directory := service.NewDirectory(users, ledgerClient)
	engine := bot.NewEngine(directory, states, pending, gateway, ledgerClient, catalog)
	router := bot.NewRouter(engine, directory, states, groups, gateway, ledgerClient, catalog, gateway.Username())

	app := gin.New()
	app.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger())

	webhook := bothttp.NewWebhookHandler(router, rdb, cfg.Telegram.WebhookSecret)
	webhook.RegisterRoutes(app)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info().Str("addr", addr).Msg("Starting server")
	if err := app.Run(addr); err != nil {
		logger.Fatal().Err(err).Msg("Server stopped")
	}
}
