package main

import (
	"convochat/controller"
	"convochat/model"
	"convochat/platform"
	"convochat/service"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := platform.LoadConfig()
	logger := platform.Logger

	if err := platform.InitLogger(cfg.Log); err != nil {
		logger.Fatalf("failed to init logger: %s", err)
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	if cfg.Auth.AccessSecret == "" {
		logger.Warn("ACCESS_SECRET is empty, access tokens are signed with an empty key")
	}

	//init database
	db, err := platform.OpenDB(cfg.DB)
	if err != nil {
		logger.Fatalf("failed to connect to database: %s", err)
	}
	if err := model.InstallDB(db); err != nil {
		logger.Fatalf("failed to migrate database: %s", err)
	}
	store := model.NewStore(db)

	var gateway *service.Gateway
	llm, err := platform.NewLLMClient(cfg.LLM)
	if err != nil {
		logger.Warnf("AI service not configured: %s", err)
	} else {
		logger.Infof("AI service ready, model %s", llm.Model())
		gateway = service.NewGateway(llm, llm, logger)
	}

	locker, err := platform.NewLocker(cfg.Lock)
	if err != nil {
		logger.Fatalf("failed to init conversation locks: %s", err)
	}

	tokens := service.NewTokenService(cfg.Auth.AccessSecret, cfg.Auth.TokenTTL)
	chat := service.NewChatService(store, gateway, locker, service.ChatOptions{
		HistoryLimit: cfg.Chat.HistoryLimit,
		TokenBudget:  cfg.Chat.TokenBudget,
	})

	r := controller.NewRouter(controller.Handlers{
		Auth: controller.NewAuthController(tokens),
		User: controller.NewUserController(service.NewUserService(store, tokens)),
		Chat: controller.NewChatController(chat),
	}, cfg.CORSOrigin)

	logger.Infof("Server started on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatalf("server stopped: %s", err)
	}
}
