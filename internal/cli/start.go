package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizrelay/internal/app"
	"quizrelay/internal/config"
	"quizrelay/internal/infra/gemini"
	"quizrelay/internal/infra/memory"
	"quizrelay/internal/infra/postgres"
	redisinfra "quizrelay/internal/infra/redis"
	"quizrelay/internal/infra/telegram"
	transport "quizrelay/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand that runs the bot.
func NewStartCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz relay bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), *configPath)
		},
	}
}

func runBot(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	token := cfg.Telegram.Token
	if token == "" {
		token = os.Getenv("TELEGRAM_TOKEN")
	}
	if token == "" {
		return fmt.Errorf("telegram token not configured")
	}

	hubChatID := cfg.Telegram.HubChatID
	if hubChatID == 0 {
		hubChatID, _ = strconv.ParseInt(os.Getenv("HUB_CHAT_ID"), 10, 64)
	}
	if hubChatID == 0 {
		return fmt.Errorf("hub chat id not configured")
	}

	if cfg.Postgres.URL == "" {
		cfg.Postgres.URL = os.Getenv("DATABASE_URL")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store app.Store
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = postgres.NewStore(pool)
	} else {
		log.Printf("no postgres url configured, using in-memory store (state is lost on restart)")
		store = memory.NewStore()
	}

	var cache app.TranslationCache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cache = redisinfra.NewTranslationCache(client, config.Duration(cfg.Redis.TTL, 24*time.Hour))
	} else {
		cache = memory.NewTranslationCache()
	}

	var translator app.Translator
	apiKey := cfg.Translation.GeminiAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey != "" {
		translator, err = gemini.New(ctx, apiKey)
		if err != nil {
			return err
		}
	} else {
		log.Printf("no gemini api key configured, quizzes will not be translated")
	}

	gateway, err := telegram.New(token)
	if err != nil {
		return err
	}

	pipeline := app.NewPipeline(store, gateway, translator, cache, app.Options{
		HubChatID:      hubChatID,
		BroadcastDelay: config.Duration(cfg.Broadcast.Delay, app.DefaultBroadcastDelay),
	})
	defer pipeline.Close()

	go pipeline.RunSchedules(ctx, app.Schedules{
		DailySummaryAt: cfg.Leaderboard.DailyAt,
		ResetWeekday:   config.Weekday(cfg.Leaderboard.ResetWeekday, time.Monday),
		ResetAt:        cfg.Leaderboard.ResetAt,
	})

	var server *http.Server
	if cfg.Leaderboard.FeedPort != "" {
		feed := transport.NewFeedHandler(pipeline)
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		})
		mux.HandleFunc("/feed", feed.ServeWS)
		server = &http.Server{
			Addr:         ":" + cfg.Leaderboard.FeedPort,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			log.Printf("starting leaderboard feed on :%s", cfg.Leaderboard.FeedPort)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("leaderboard feed failed: %v", err)
			}
		}()
	}

	log.Printf("quizrelay started, hub chat %d", hubChatID)
	runErr := pipeline.Run(ctx, gateway.Events(ctx))

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
	if runErr != nil && runErr != context.Canceled {
		return runErr
	}
	return nil
}
