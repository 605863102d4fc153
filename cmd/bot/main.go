package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/smartassist/viberbot/bot"
	"github.com/smartassist/viberbot/buildinfo"
	"github.com/smartassist/viberbot/config"
	"github.com/smartassist/viberbot/database"
	"github.com/smartassist/viberbot/logger"
	"github.com/smartassist/viberbot/openai"
	"github.com/smartassist/viberbot/sender"
	"github.com/smartassist/viberbot/server"
	"github.com/smartassist/viberbot/store"
	"github.com/smartassist/viberbot/viber"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run() error {
	// Local development convenience; the file is optional.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	key, err := cfg.Storage.Key()
	if err != nil {
		return err
	}
	cipher, err := store.NewCipher(key)
	if err != nil {
		return err
	}

	st, err := openStore(cfg, cipher)
	if err != nil {
		return err
	}
	defer st.Close()

	viberClient := viber.NewClient(viber.ClientOptions{
		APIURL:    cfg.Viber.APIURL,
		AuthToken: cfg.Viber.AuthToken,
		BotName:   cfg.Viber.BotName,
		BotAvatar: cfg.Viber.BotAvatar,
	})

	dispatcher := sender.NewDispatcher(sender.Options{
		QueueSize:   cfg.Sender.QueueSize,
		Workers:     cfg.Sender.Workers,
		SendTimeout: time.Duration(cfg.Sender.SendTimeoutSeconds) * time.Second,
	})
	messenger := sender.NewMessenger(dispatcher, viberClient)
	defer messenger.Close()

	provider := openai.NewClient(openai.Options{
		BaseURL:           cfg.OpenAI.BaseURL,
		ChatModel:         cfg.OpenAI.ChatModel,
		ImageModel:        cfg.OpenAI.ImageModel,
		AudioModel:        cfg.OpenAI.AudioModel,
		CompleteTimeout:   time.Duration(cfg.OpenAI.CompleteTimeoutSeconds) * time.Second,
		ImageTimeout:      time.Duration(cfg.OpenAI.ImageTimeoutSeconds) * time.Second,
		TranscribeTimeout: time.Duration(cfg.OpenAI.TranscribeTimeoutSeconds) * time.Second,
	})

	mediaDir := cfg.Media.Dir
	if mediaDir == "" {
		mediaDir = os.TempDir()
	} else if err := os.MkdirAll(mediaDir, 0o750); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}

	engine := bot.New(bot.Options{
		Store:        st,
		Assistant:    bot.OpenAIAssistant{Client: provider},
		Messenger:    messenger,
		Downloader:   viberClient,
		MediaDir:     mediaDir,
		MaxFileBytes: int64(cfg.Media.MaxFileSizeMB) << 20,
	})

	srv := server.New(server.Options{
		Addr:      cfg.Server.Addr(),
		AuthToken: cfg.Viber.AuthToken,
		Handler:   engine,
		Store:     st,
	})

	if cfg.Viber.WebhookURL != "" {
		hookCtx, hookCancel := context.WithTimeout(ctx, 15*time.Second)
		err := viberClient.SetWebhook(hookCtx, cfg.Viber.WebhookURL, nil)
		hookCancel()
		if err != nil {
			return fmt.Errorf("register webhook: %w", err)
		}
		logger.Info(ctx, "app", "webhook.registered", slog.String("url", cfg.Viber.WebhookURL))
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	logger.Info(ctx, "app", "ready",
		slog.String("addr", cfg.Server.Addr()),
		slog.String("version", buildinfo.Version),
		slog.String("commit", buildinfo.Commit),
		slog.String("storage", cfg.Storage.Driver),
	)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "app", "shutdown")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(context.Background(), "app", "shutdown.fail", slog.String("err", err.Error()))
	}
	return nil
}

func openStore(cfg *config.Config, cipher *store.Cipher) (store.Store, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		logger.Warn(context.Background(), "app", "storage.memory",
			slog.String("note", "records are lost on restart"),
		)
		return store.NewMemory(cipher), nil
	}
	if err := database.RunMigrations(cfg.Storage); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	db, err := database.Connect(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("connect storage: %w", err)
	}
	return store.NewSQL(db, cipher), nil
}
