package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/muhtawa-io/muhtawa/internal/ai"
	"github.com/muhtawa-io/muhtawa/internal/chatbot"
	"github.com/muhtawa-io/muhtawa/internal/config"
	"github.com/muhtawa-io/muhtawa/internal/db"
	"github.com/muhtawa-io/muhtawa/internal/embedcache"
	"github.com/muhtawa-io/muhtawa/internal/handler"
	"github.com/muhtawa-io/muhtawa/internal/job"
	"github.com/muhtawa-io/muhtawa/internal/middleware"
	"github.com/muhtawa-io/muhtawa/internal/repo"
	"github.com/muhtawa-io/muhtawa/internal/schedule"
	"github.com/muhtawa-io/muhtawa/internal/search"
	"github.com/muhtawa-io/muhtawa/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "muhtawa",
		Short: "muhtawa chatbot backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run muhtawa server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	categoryRepo := repo.NewCategoryRepo(conn)
	articleRepo := repo.NewArticleRepo(conn)
	embeddingRepo := repo.NewArticleEmbeddingRepo(conn)
	embedCacheRepo := repo.NewEmbeddingCacheRepo(conn)
	chatMessageRepo := repo.NewChatMessageRepo(conn)

	providerArgs := cfg.AI.Data
	aiProvider, err := ai.NewProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	embedProvider, err := ai.NewEmbedProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		return fmt.Errorf("init embed provider: %w", err)
	}

	embedder := ai.NewEmbedder(embedProvider, cfg.AI.EmbedModel)
	embedder = embedcache.WrapDBCacheToEmbedder(embedder, embedCacheRepo)
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.EmbedCache.LRUSize, time.Duration(cfg.EmbedCache.TTLHours)*time.Hour)

	chatter := ai.NewChatter(aiProvider, cfg.AI.ChatModel)
	judge := chatbot.NewScopeJudge(ai.NewGenerator(aiProvider, cfg.AI.JudgeModel))
	reranker := ai.NewLLMReranker(ai.NewGenerator(aiProvider, cfg.AI.RerankModel))
	searcher := search.NewClient(cfg.Search.Endpoint, cfg.Search.APIKey, time.Duration(cfg.Search.TimeoutSecs)*time.Second)

	redirectService := service.NewRedirectService(embedder, embeddingRepo, articleRepo)
	embeddingService := service.NewEmbeddingService(embedder, embeddingRepo, embedCacheRepo, cfg.Jobs.EmbeddingBatch)
	historyService := service.NewHistoryService(chatMessageRepo, service.NewContentResolver(articleRepo, categoryRepo), cfg.Chatbot.HistoryPageCap)

	engine := chatbot.NewEngine(
		articleRepo,
		categoryRepo,
		redirectService,
		ai.NewChunker(),
		chatbot.NewRetriever(embedder),
		judge,
		reranker,
		searcher,
		chatter,
		chatbot.Config{
			RelevanceThreshold: cfg.Chatbot.RelevanceThreshold,
			ScopeArticleLimit:  cfg.Chatbot.ScopeArticleLimit,
			RedirectPoolLimit:  cfg.Chatbot.RedirectPoolLimit,
			RedirectTopN:       cfg.Chatbot.RedirectTopN,
			WebResultLimit:     cfg.Chatbot.WebResultLimit,
			TopGroundingChunks: cfg.Chatbot.TopGroundingChunks,
			MaxQueryChars:      cfg.Chatbot.MaxQueryChars,
			JudgeTimeout:       time.Duration(cfg.AI.JudgeTimeoutSecs) * time.Second,
			ChatTimeout:        time.Duration(cfg.AI.ChatTimeoutSecs) * time.Second,
		},
	)

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewArticleEmbeddingJob(embeddingService), cfg.Jobs.ArticleEmbeddingCron); err != nil {
		return fmt.Errorf("schedule embedding job: %w", err)
	}
	if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(embeddingService, cfg.Jobs.CacheKeepDays), cfg.Jobs.CacheCleanupCron); err != nil {
		return fmt.Errorf("schedule cache cleanup job: %w", err)
	}

	deps := handler.RouterDeps{
		Chat:              handler.NewChatHandler(engine, historyService),
		JWTSecret:         []byte(cfg.JWTSecret),
		ChatRateWindow:    time.Duration(cfg.RateLimit.ChatWindowMs) * time.Millisecond,
		HistoryRateWindow: time.Duration(cfg.RateLimit.HistoryWindowMs) * time.Millisecond,
	}

	web, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllow),
			// The chat endpoint streams NDJSON; compressing it would buffer
			// deltas at the proxy layer.
			gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/chat"})),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := web.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
