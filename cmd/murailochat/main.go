// Package main contains the entrypoint for the chat service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/joho/godotenv"

	"github.com/edgard/murailochat/internal/ai"
	"github.com/edgard/murailochat/internal/analysis"
	"github.com/edgard/murailochat/internal/app"
	"github.com/edgard/murailochat/internal/app/tasks"
	"github.com/edgard/murailochat/internal/chat"
	"github.com/edgard/murailochat/internal/completion"
	"github.com/edgard/murailochat/internal/config"
	"github.com/edgard/murailochat/internal/database"
	"github.com/edgard/murailochat/internal/gemini"
	"github.com/edgard/murailochat/internal/logger"
	"github.com/edgard/murailochat/internal/prompt"
	"github.com/edgard/murailochat/internal/search"
	"github.com/edgard/murailochat/internal/server"
	"github.com/edgard/murailochat/internal/telegram"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, blocks until ctx is cancelled or a component
// fails, and returns the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	// A missing .env is fine; the environment may already be populated.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path, log)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db, log)
	store := database.NewStore(db, log)

	gemClient, err := gemini.NewClient(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize Gemini client", "error", err)
		return 1
	}
	router := ai.NewRouter(
		gemClient,
		completion.NewMistralClient(cfg.Mistral, log),
		completion.NewOpenRouterClient(cfg.OpenRouter, log),
		log,
	)
	assistant := ai.NewAssistant(router, log, ai.WithTimeout(cfg.Assistant.Timeout))

	searchClient, err := search.NewClient(ctx, cfg.Search, log)
	if err != nil {
		log.Error("Failed to initialize search client", "error", err)
		return 1
	}
	searcher := search.NewCached(searchClient, store, cfg.Search.CacheTTL, log)
	enricher := prompt.NewEnricher(searcher, store, cfg.Assistant.Name, log)

	chatSvc := chat.NewService(store, enricher, assistant, router, chat.Options{
		DefaultModel: cfg.Assistant.DefaultModel,
		TitleModel:   cfg.Assistant.TitleModel,
	}, log)

	analyzer := analysis.NewAnalyzer(gemClient, store, cfg.Attachments.AnalysisModel, log)
	sched, err := app.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger:   log,
		Store:    store,
		Analyzer: analyzer,
		Config:   cfg,
	}))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	httpServer := server.NewHTTPServer(cfg.HTTP, server.NewRouter(server.Deps{
		Chat:        chatSvc,
		Attachments: store,
		Health:      store,
		Upload:      cfg.Attachments,
		Origins:     cfg.HTTP.AllowedOrigins,
		Logger:      log,
	}))

	var tg *tgbot.Bot
	if cfg.Telegram.Token != "" {
		tg, err = newTelegram(cfg, chatSvc, log)
		if err != nil {
			log.Error("Failed to create Telegram bot", "error", err)
			return 1
		}
	} else {
		log.Info("Telegram token not configured, Telegram transport disabled")
	}

	log.Info("Starting chat service...", "addr", cfg.HTTP.Addr)
	runErr := app.New(log, httpServer, tg, sched).Run(ctx)
	log.Info("Run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Chat service stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Chat service stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}

func newTelegram(cfg *config.Config, chatSvc *chat.Service, log *slog.Logger) (*tgbot.Bot, error) {
	deps := telegram.HandlerDeps{
		Logger:        log,
		Chat:          chatSvc,
		AssistantName: cfg.Assistant.Name,
		DefaultModel:  cfg.Telegram.DefaultModel,
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log,
		tgbot.WithMiddlewares(logger.TelegramMiddleware(log)),
		tgbot.WithDefaultHandler(telegram.NewMessageHandler(deps)),
	)
	if err != nil {
		return nil, err
	}
	if err := telegram.RegisterHandlers(tg, log, telegram.RegisterAllCommands(deps)); err != nil {
		return nil, err
	}
	return tg, nil
}
