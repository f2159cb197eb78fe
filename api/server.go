package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"gigflow/adapters/database"
	redisAdapter "gigflow/adapters/redis"
	"gigflow/adapters/sse"
	"gigflow/marketplace"
)

// HireEvent 是在 SSE stream 上傳遞的雇用通知
type HireEvent = sse.PublishRequest[marketplace.HireNotification]

type ServerImpl struct {
	logger      *slog.Logger
	db          *gorm.DB
	redisClient *redis.Client
	ownsDB      bool
	ownsRedis   bool

	store    marketplace.Store
	guard    *marketplace.AdmissionGuard
	hirer    *marketplace.Hirer
	notifier marketplace.Notifier

	producer   redisAdapter.IProducer[HireEvent]
	presence   redisAdapter.IPresence
	sseManager sse.IConnectionManager[marketplace.HireNotification]

	config ServerConfig
}

type serverOptions struct {
	logger      *slog.Logger
	db          *gorm.DB
	redisClient *redis.Client
}

type ServerOption func(*serverOptions)

// WithLogger 設置日誌記錄器
func WithLogger(logger *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = logger
	}
}

// WithDB 使用既有的資料庫連線，關閉 server 時不會關閉它
func WithDB(db *gorm.DB) ServerOption {
	return func(o *serverOptions) {
		o.db = db
	}
}

// WithRedisClient 使用既有的 Redis 連線，關閉 server 時不會關閉它
func WithRedisClient(client *redis.Client) ServerOption {
	return func(o *serverOptions) {
		o.redisClient = client
	}
}

func NewServer(config ServerConfig, opts ...ServerOption) (*ServerImpl, error) {
	const op = "NewServer"
	o := serverOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With(slog.String("caller", "Server"), slog.String("serverID", config.ID))
	config = withDefaults(config)

	// 初始化資料庫連線
	db, ownsDB := o.db, false
	if db == nil {
		var err error
		db, err = database.Open(config.DB, database.WithLogger(o.logger))
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to open database, err=%w", op, err)
		}
		ownsDB = true
	}

	// 初始化Redis連線
	redisClient, ownsRedis := o.redisClient, false
	if redisClient == nil {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		ownsRedis = true
	}
	impl := &ServerImpl{
		logger:      logger,
		db:          db,
		redisClient: redisClient,
		ownsDB:      ownsDB,
		ownsRedis:   ownsRedis,
		config:      config,
	}
	if ownsRedis {
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			impl.closeOwned()
			return nil, fmt.Errorf("[%s] Fail to connect to redis, err=%w", op, err)
		}
	}

	// 初始化線上狀態
	presence, err := redisAdapter.NewPresence(
		redisClient,
		redisAdapter.WithPresencePrefix(config.Redis.KeyPrefix+"presence:"),
		redisAdapter.WithPresenceTTL(config.SSE.PresenceTTL),
	)
	if err != nil {
		impl.closeOwned()
		return nil, fmt.Errorf("[%s] Fail to create presence tracker, err=%w", op, err)
	}

	// 初始化通知的producer，只有得標者在線時才會寫入stream
	streamKey := config.Redis.StreamKeys.SSE
	maxLen := config.Redis.StreamMaxLen
	producer, err := redisAdapter.NewProducer[HireEvent](
		redisClient,
		streamKey,
		redisAdapter.WithProducerLogger[HireEvent](o.logger),
		redisAdapter.WithProducerMaxLen[HireEvent](maxLen),
		redisAdapter.WithProducerScript[HireEvent](HiredNotifyScript, func(event HireEvent) ([]string, []any) {
			return []string{presence.Key(event.Channel), streamKey}, []any{time.Now().UnixMilli(), maxLen}
		}),
	)
	if err != nil {
		impl.closeOwned()
		return nil, fmt.Errorf("[%s] Fail to create producer, err=%w", op, err)
	}

	// 初始化SSE管理器
	consumer, err := redisAdapter.NewConsumer[HireEvent](
		redisClient,
		streamKey,
		redisAdapter.WithConsumerLogger[HireEvent](o.logger),
	)
	if err != nil {
		impl.closeOwned()
		return nil, fmt.Errorf("[%s] Fail to create consumer, err=%w", op, err)
	}
	sseManager := sse.NewConnectionManager[marketplace.HireNotification](
		sse.WithLogger[marketplace.HireNotification](o.logger),
		sse.WithSource[marketplace.HireNotification](consumer),
		sse.WithBufferSize[marketplace.HireNotification](config.SSE.BufferSize),
	)

	impl.store = marketplace.NewStore(db)
	impl.guard = marketplace.NewAdmissionGuard(impl.store)
	impl.hirer = marketplace.NewHirer(
		impl.store,
		marketplace.WithHirerLogger(o.logger),
		marketplace.WithRetryPolicy(config.Hire),
	)
	impl.notifier = &streamNotifier{producer: producer}
	impl.producer = producer
	impl.presence = presence
	impl.sseManager = sseManager
	return impl, nil
}

// withDefaults 補上沒有設定的選項
func withDefaults(config ServerConfig) ServerConfig {
	if config.ID == "" {
		config.ID = "gigflow"
	}
	if config.Redis.StreamKeys.SSE == "" {
		config.Redis.StreamKeys.SSE = config.Redis.KeyPrefix + "sse-stream"
	}
	if config.Redis.StreamMaxLen <= 0 {
		config.Redis.StreamMaxLen = 10000
	}
	if config.SSE.KeepAlive <= 0 {
		config.SSE.KeepAlive = 30 * time.Second
	}
	if config.SSE.PresenceTTL <= config.SSE.KeepAlive {
		config.SSE.PresenceTTL = 2 * config.SSE.KeepAlive
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaultMaxBodyBytes
	}
	if config.SSE.BufferSize <= 0 {
		config.SSE.BufferSize = 16
	}
	return config
}

func (impl *ServerImpl) Start() {
	// 啟動producer
	impl.producer.Start()
	// 啟動sse connection manager，同時會啟動stream consumer
	impl.sseManager.Start()
	impl.logger.Info("Server started")
}

// CloseEventStreams 結束所有 SSE 連線，讓 http.Server 的 Shutdown 不必等待長連線
func (impl *ServerImpl) CloseEventStreams() {
	impl.sseManager.Done()
}

func (impl *ServerImpl) Close() {
	// 關閉sse connection manager
	impl.sseManager.Done()
	// 關閉producer
	impl.producer.Close()

	impl.closeOwned()
	impl.logger.Info("Server closed")
}

// closeOwned 關閉由 server 自行建立的連線
func (impl *ServerImpl) closeOwned() {
	if impl.ownsRedis {
		if err := impl.redisClient.Close(); err != nil {
			impl.logger.Warn("Fail to close redis client", slog.Any("error", err))
		}
	}
	if impl.ownsDB {
		if sqlDB, err := impl.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				impl.logger.Warn("Fail to close database", slog.Any("error", err))
			}
		}
	}
}

// RegisterHandlers 註冊所有路由
func (impl *ServerImpl) RegisterHandlers(router gin.IRouter) {
	router.GET("/healthz", impl.Healthz)

	group := router.Group("/api", BodyLimit(impl.config.MaxBodyBytes))
	group.GET("/gigs", impl.ListGigs)
	group.GET("/gigs/:gigID", impl.GetGig)

	authed := group.Group("", impl.AuthMiddleware())
	authed.POST("/gigs", impl.PostGig)
	authed.GET("/gigs/:gigID/bids", impl.ListGigBids)
	authed.POST("/bids", impl.PostBid)
	authed.GET("/bids/mine", impl.ListMyBids)
	authed.PATCH("/bids/:bidID/hire", impl.HireBid)
	authed.GET("/events", impl.Events)
}

// Healthz 檢查資料庫與 Redis 是否可用
// (GET /healthz)
func (impl *ServerImpl) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	var errs []error
	if sqlDB, err := impl.db.DB(); err != nil {
		errs = append(errs, err)
	} else if err := sqlDB.PingContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	if err := impl.redisClient.Ping(ctx).Err(); err != nil {
		errs = append(errs, fmt.Errorf("redis: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		impl.logger.Warn("Health check failed", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
