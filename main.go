package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/anthropics/feishu-guard/feishu"
	"github.com/anthropics/feishu-guard/internal/biz/domain"
	"github.com/anthropics/feishu-guard/internal/biz/usecase"
	"github.com/anthropics/feishu-guard/internal/conf"
	"github.com/anthropics/feishu-guard/internal/data"
	"github.com/anthropics/feishu-guard/internal/plugins"
	"github.com/anthropics/feishu-guard/internal/server"
	"github.com/anthropics/feishu-guard/llm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := conf.LoadFromEnv()

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	roles := domain.RoleParams{
		SuperOwner: cfg.Owner.SuperOwner,
		OwnerIDs:   cfg.Owner.OwnerIDs,
	}

	users, err := data.NewUserStore(logger, cfg.UsersPath(), roles)
	if err != nil {
		logger.Error("open user store", "err", err)
		os.Exit(1)
	}
	defer users.Close()

	settings, err := data.NewSettingsStore(logger, cfg.SettingsPath(), data.NewTimerScheduler(0))
	if err != nil {
		logger.Error("open settings store", "err", err)
		os.Exit(1)
	}
	defer settings.Close()

	mutes, err := data.NewMuteStore(logger, cfg.MutesPath())
	if err != nil {
		logger.Error("open mute store", "err", err)
		os.Exit(1)
	}
	defer mutes.Close()

	modlog, err := data.NewModLogRepo(cfg.ModLogPath())
	if err != nil {
		logger.Error("open moderation log", "err", err)
		os.Exit(1)
	}
	defer modlog.Close()

	words, err := conf.LoadWordsConfig(cfg.Moderation.WordsPath)
	if err != nil {
		logger.Warn("word list config", "err", err)
	}

	client := feishu.NewClient(logger, cfg.Feishu.AppID, cfg.Feishu.AppSecret)
	messages := data.NewFeishuRepo(client)

	registry := usecase.NewRegistry(logger)
	builder := usecase.NewContextBuilder(logger, messages, settings, registry)
	dispatcher := usecase.NewDispatcher(logger, users, registry, builder,
		usecase.WithCommandPrefixes(cfg.CommandPrefixes))

	// Moderation pipelines.
	registry.Register(plugins.NewAntispam(modlog).Descriptor())
	registry.Register(plugins.NewAntilink(users, modlog, cfg.Moderation.InviteDomain, nil).Descriptor())
	registry.Register(plugins.NewProfanity(words, mutes, modlog, cfg.Moderation.BypassPhrase).Descriptor())

	// Built-in commands.
	for _, d := range plugins.NewCore(modlog).Descriptors() {
		registry.Register(d)
	}

	var llmClient *llm.Client
	if cfg.LLM.APIKey != "" {
		llmClient = llm.NewClient(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
	}
	registry.Register(plugins.NewAI(llmClient).Descriptor())

	srv := server.NewFeishuServer(logger, client, dispatcher, settings, messages, cfg.Feishu.BotOpenID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		srv.Stop()
		if err := users.FlushNow(); err != nil {
			logger.Error("flush user store", "err", err)
		}
		settings.Close()
		modlog.Close()
		os.Exit(0)
	}()

	logger.Info("starting guard bot", "plugins", len(registry.List()))
	if err := srv.Start(); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}
