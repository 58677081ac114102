package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ragdesk/internal/ai"
	"ragdesk/internal/app"
	"ragdesk/internal/cache"
	"ragdesk/internal/config"
	"ragdesk/internal/model"
	"ragdesk/internal/pkg/logger"
	"ragdesk/internal/pkg/tokenizer"
	"ragdesk/internal/platform/database"
	rabbitmqClient "ragdesk/internal/platform/rabbitmq"
	redisClient "ragdesk/internal/platform/redis"
	"ragdesk/internal/rag"
	"ragdesk/internal/repository"
	"ragdesk/internal/vectorstore"
	"ragdesk/internal/worker"
)

type Services struct {
	Auth        *app.AuthService
	Prompts     *app.SystemPromptService
	Settings    *app.SettingsService
	Ingest      *app.IngestService
	Collections *app.CollectionService
	Query       *app.QueryService
	Chat        *app.ChatService
}

type App struct {
	Config        *config.Config
	DB            *gorm.DB
	VectorDB      *gorm.DB
	VectorStore   vectorstore.Store
	Redis         *redis.Client
	MQConn        *amqp.Connection
	Publisher     *rabbitmqClient.MessagePublisher
	MessageWorker *worker.MessagePersistWorker
	Registry      *ai.Registry
	Services      Services

	StartedAt time.Time
}

type Options struct {
	// StartWorker consumes the message persistence queue in this process.
	StartWorker bool
}

func New(ctx context.Context, opts Options) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output); err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}

	a := &App{Config: cfg, StartedAt: time.Now()}
	if err := a.open(ctx, opts); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) open(ctx context.Context, opts Options) error {
	cfg := a.Config
	log := logger.L()

	db, err := database.New(ctx, cfg.Database.Driver, cfg.DatabaseDSN())
	if err != nil {
		return err
	}
	a.DB = db
	if err := db.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	if cfg.Redis.Enabled {
		a.Redis, err = redisClient.New(ctx, redisClient.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
	}

	if cfg.RabbitMQ.Enabled {
		a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		a.Publisher = rabbitmqClient.NewMessagePublisher(a.MQConn, cfg.RabbitMQ.MessagePersistQueue)
	}

	switch cfg.VectorStore.Type {
	case "pgvector":
		a.VectorDB, err = database.New(ctx, "postgres", cfg.VectorStore.DSN)
		if err != nil {
			return fmt.Errorf("open vector database failed: %w", err)
		}
		a.VectorStore, err = vectorstore.NewPGVectorStore(a.VectorDB)
		if err != nil {
			return err
		}
	default:
		log.Warn("using in-memory vector store; collections are lost on restart")
		a.VectorStore = vectorstore.NewMemoryStore()
	}

	if cfg.RAG.OfflineBPE {
		tokenizer.UseOfflineLoader()
	}
	tok, err := tokenizer.New(cfg.RAG.Encoding)
	if err != nil {
		return err
	}

	embedder, generators := a.buildAI()
	a.Registry = ai.NewRegistry(ai.Backend(cfg.RAG.DefaultBackend), generators...)

	a.buildServices(embedder, tok)

	messageRepo := repository.NewMessageRepository(db)
	if opts.StartWorker && a.MQConn != nil {
		a.MessageWorker = worker.NewMessagePersistWorker(a.MQConn, messageRepo, cfg.RabbitMQ.MessagePersistQueue)
		if err := a.MessageWorker.Start(ctx); err != nil {
			return fmt.Errorf("start message worker failed: %w", err)
		}
	}

	if user, created, err := a.Services.Auth.EnsureAdmin(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		return fmt.Errorf("ensure admin user failed: %w", err)
	} else if created {
		log.Info("admin user created", zap.String("username", user.Username))
	}

	log.Info("application ready",
		zap.String("database", cfg.Database.Driver),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.Bool("redis", a.Redis != nil),
		zap.Bool("rabbitmq", a.MQConn != nil),
		zap.Any("backends", a.Registry.Backends()),
	)
	return nil
}

func (a *App) buildAI() (ai.Embedder, []ai.Generator) {
	cfg := a.Config
	log := logger.L()

	generators := []ai.Generator{
		ai.NewOllamaGenerator(ai.OllamaConfig{
			BaseURL: cfg.Ollama.BaseURL,
			Model:   cfg.Ollama.Model,
			Timeout: time.Duration(cfg.Ollama.TimeoutSeconds) * time.Second,
		}),
	}

	client, err := ai.NewAzureOpenAIClient(ai.AzureConfig{
		Endpoint:   cfg.Azure.Endpoint,
		APIKey:     cfg.Azure.APIKey,
		APIVersion: cfg.Azure.APIVersion,
	})
	if err != nil {
		log.Warn("azure openai disabled", zap.Error(err))
		return ai.UnavailableEmbedder(cfg.Azure.EmbeddingDeployment, "azure openai is not configured"), generators
	}
	generators = append(generators, ai.NewAzureGenerator(client, cfg.Azure.ChatDeployment))
	return ai.NewAzureEmbedder(client, cfg.Azure.EmbeddingDeployment), generators
}

func (a *App) buildServices(embedder ai.Embedder, tok rag.Tokenizer) {
	cfg := a.Config
	db := a.DB

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	convRepo := repository.NewConversationRepository(db)
	promptRepo := repository.NewSystemPromptRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	var settingsCache app.SettingsCache
	var historyCache app.HistoryCache
	if a.Redis != nil {
		settingsCache = cache.NewSettingsCache(a.Redis, time.Duration(cfg.Redis.SettingsTTLSeconds)*time.Second)
		historyCache = cache.NewHistoryCache(a.Redis,
			time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
		)
	}
	var sink app.MessageSink = messageRepo
	if a.Publisher != nil {
		sink = a.Publisher
	}

	// descriptions always come from the cloud backend
	var describer *app.Describer
	if g, err := a.Registry.Get(ai.BackendAzure); err == nil {
		describer = app.NewDescriber(g)
	}

	gen := app.GenerationConfig{
		Language:    cfg.RAG.AnswerLanguage,
		Temperature: cfg.RAG.Temperature,
		MaxTokens:   cfg.RAG.MaxAnswerTokens,
	}
	chunker := rag.NewChunker(tok, rag.WithMaxTokens(cfg.RAG.MaxTokensPerChunk))
	retriever := app.NewRetriever(embedder, a.VectorStore, cfg.RAG.TopK)
	prompts := app.NewSystemPromptService(promptRepo)

	a.Services = Services{
		Auth: app.NewAuthService(userRepo, cfg.Auth.JWTSecret,
			time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute),
		Prompts:     prompts,
		Settings:    app.NewSettingsService(settingRepo, settingsCache),
		Ingest:      app.NewIngestService(a.VectorStore, embedder, chunker, describer, cfg.RAG.UploadDir),
		Collections: app.NewCollectionService(a.VectorStore, embedder.Model(), chunker.MaxTokens()),
		Query:       app.NewQueryService(retriever, a.Registry, prompts, convRepo, gen),
		Chat: app.NewChatService(sessionRepo, messageRepo, sink, historyCache,
			retriever, a.Registry, prompts, gen, cfg.RAG.HistoryMessages),
	}
}

func (a *App) Close() error {
	var closeErr error
	if a.MessageWorker != nil {
		a.MessageWorker.Close()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	for _, db := range []*gorm.DB{a.VectorDB, a.DB} {
		if db == nil {
			continue
		}
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	_ = logger.Sync()
	return closeErr
}
