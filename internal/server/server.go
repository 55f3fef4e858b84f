package server

import (
	"fmt"
	"log/slog"

	"voting-service/configs"
	"voting-service/configs/database"
	"voting-service/internal/auth"
	"voting-service/internal/notifier"
	"voting-service/internal/poll"
	"voting-service/internal/server/handlers"
	"voting-service/internal/storage"
	"voting-service/internal/voting"
	"voting-service/internal/worker"
	"voting-service/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// App wires the voting service together: storage, notifiers, the engine,
// the poll admin surface and the HTTP/websocket layer.
type App struct {
	Router    *gin.Engine
	Hub       *ws.Hub
	Projector *worker.Projector

	db    *gorm.DB
	redis *redis.Client
	kafka *notifier.KafkaNotifier
}

func NewApp(cfg *configs.Config) (*App, error) {
	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = database.PostgresDSN(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB)
	}
	db, err := database.NewConnection(database.Options{Driver: cfg.DBDriver, DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	app := &App{db: db}

	redisClient, err := database.InitRedis(cfg.RedisURL)
	if err != nil {
		slog.Warn("redis unavailable, realtime fan-out and tally cache disabled", "error", err)
	} else {
		app.redis = redisClient
	}

	// Notification is best-effort; a missing broker degrades fan-out but
	// never blocks voting.
	var notifiers notifier.Multi
	if app.redis != nil {
		notifiers = append(notifiers, notifier.NewRedisNotifier(app.redis))
	}
	kafkaNotifier, err := notifier.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		slog.Warn("kafka unavailable, event stream disabled", "error", err)
	} else {
		app.kafka = kafkaNotifier
		notifiers = append(notifiers, kafkaNotifier)
	}
	var events notifier.Notifier = notifiers
	if len(notifiers) == 0 {
		events = notifier.Noop{}
	}

	store := storage.NewPostgresStore(db)
	engine := voting.NewEngine(store, events)

	var images poll.ImageStore
	if cfg.MinIOEnabled {
		minioClient, err := database.NewMinIOClient(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket)
		if err != nil {
			slog.Warn("minio unavailable, option images disabled", "error", err)
		} else {
			images = minioClient
		}
	}
	pollService := poll.NewService(store, events, images)

	authRepo := auth.NewAuthRepository(db)
	authService := auth.NewAuthService(authRepo, cfg.JWTSecret, cfg.JWTExpire)

	app.Hub = ws.NewHub(app.redis)

	if app.redis != nil && app.kafka != nil {
		cache := storage.NewResultsCache(app.redis)
		app.Projector = worker.NewProjector(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, cache)
	}

	router := gin.Default()
	SetupRoutes(
		router,
		cfg.JWTSecret,
		handlers.NewAuthHandler(authService),
		handlers.NewPollHandler(pollService),
		handlers.NewVotingHandler(engine),
		app.Hub,
	)
	app.Router = router
	return app, nil
}

// Close releases broker and cache connections.
func (a *App) Close() {
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.Projector != nil {
		a.Projector.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
