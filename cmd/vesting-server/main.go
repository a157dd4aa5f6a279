package main

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"token-vesting/internal/custody"
	"token-vesting/internal/model"
	"token-vesting/internal/schedule"
	"token-vesting/internal/server"
	"token-vesting/internal/service"
	"token-vesting/internal/service/mq"
	"token-vesting/internal/store"
	"token-vesting/internal/vesting"
	"token-vesting/pkg/cache"
	"token-vesting/pkg/config"
	"token-vesting/pkg/crypto_util"
	"token-vesting/pkg/database"
	"token-vesting/pkg/logger"
	"token-vesting/pkg/monitor"
	"token-vesting/pkg/utils/lock"
)

func main() {
	// 0. 初始化 Config
	config.Init()
	cfg := config.Global

	// 1. 初始化 Logger
	logger.Init(cfg.App.Env)
	defer logger.Sync()

	// 2. 监控指标
	monitor.Init()

	owner := mustAddress("vesting.owner", cfg.Vesting.Owner)
	signer := mustAddress("vesting.signer", cfg.Vesting.Signer)

	// 3. 连接 Redis (缓存 / 分布式锁 / Streams)
	rdb, err := database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. 托管与事件日志
	var (
		db      *gorm.DB
		cust    vesting.Custody
		journal vesting.Journal
		history []*vesting.Event
	)
	switch cfg.Vesting.CustodyMode {
	case "memory":
		logger.Warn("使用内存托管, 重启后状态丢失, 仅用于开发")
		cust = custody.NewMemory(mustAddress("vesting.escrow", cfg.Vesting.Escrow))
		journal = vesting.NewMemoryJournal()
	default:
		db, err = database.ConnectPostgres(cfg.DB.PostgresDSN(), cfg.App.Env == "development")
		if err != nil {
			logger.Fatal("数据库连接失败", zap.Error(err))
		}
		if cfg.App.Env == "development" {
			logger.Info("开发环境: 尝试自动迁移 Schema (GORM AutoMigrate)...")
			if err := db.AutoMigrate(model.AllModels()...); err != nil {
				logger.Fatal("数据库自动迁移失败", zap.Error(err))
			}
		} else {
			logger.Info("生产环境: 跳过 AutoMigrate，请使用 migrate 工具管理 Schema")
		}

		cust = custody.NewAccounts(db, mustAddress("vesting.escrow", cfg.Vesting.Escrow))
		dbJournal := store.NewJournal(db, cfg.Vesting.EventTopic)
		history, err = dbJournal.Load(ctx)
		if err != nil {
			logger.Fatal("读取事件日志失败", zap.Error(err))
		}
		journal = dbJournal
	}

	// 5. 账本: 回放历史事件恢复状态
	ledger, err := vesting.New(vesting.Options{
		Owner:     owner,
		Signer:    signer,
		Custody:   cust,
		Validator: schedule.NewValidator(),
		Verifier:  crypto_util.NewPersonalVerifier(),
		Journal:   journal,
		Logger:    logger.Named("ledger"),
	})
	if err != nil {
		logger.Fatal("账本初始化失败", zap.Error(err))
	}
	if err := ledger.Replay(ctx, history); err != nil {
		logger.Fatal("事件回放失败", zap.Error(err))
	}
	logger.Info("账本已恢复", zap.Uint64("seq", ledger.Seq(ctx)), zap.Uint64("pools", ledger.PoolCount(ctx)))

	// 6. 业务服务
	poolCache := cache.NewMultiLevelCache(
		cache.NewMemoryCache(cfg.Vesting.PoolCacheTTL, 2*cfg.Vesting.PoolCacheTTL),
		cache.NewRedisCache(rdb, "vesting"),
	)
	vestingService := service.NewVestingService(ledger, poolCache, cfg.Vesting.PoolCacheTTL, monitor.Vesting)

	// 7. 消息队列: Outbox 中继 + 审计消费者
	producer, consumer := newMQ(cfg, rdb)
	if db != nil {
		relayService := service.NewRelayService(db, producer, monitor.Vesting)
		go relayService.Start(ctx)

		audit := service.NewAuditService(consumer, cfg.Vesting.EventTopic, monitor.Vesting)
		if err := audit.Start(ctx); err != nil {
			logger.Error("审计消费者启动失败", zap.Error(err))
		}
	}

	// 8. 托管对账定时任务
	reporter := service.NewEscrowReporter(ledger, lock.NewRedisLock(rdb), cfg.Vesting.ReportSpec, monitor.Vesting)
	if err := reporter.Start(); err != nil {
		logger.Fatal("对账任务启动失败", zap.Error(err))
	}

	// 9. HTTP
	r := server.NewHTTPRouter(server.RouterConfig{
		Vesting:     vestingService,
		AuthMaxSkew: cfg.Vesting.AuthMaxSkew,
	})
	app := server.New(server.Config{HttpPort: cfg.App.HttpPort}, r)
	app.OnShutdown(func(context.Context) {
		logger.Info("正在关闭 Redis 连接...")
		_ = rdb.Close()
	})
	app.OnShutdown(func(context.Context) {
		if db == nil {
			return
		}
		logger.Info("正在关闭数据库连接...")
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	app.OnShutdown(func(context.Context) {
		cancel()
		reporter.Stop()
		_ = producer.Close()
		_ = consumer.Close()
	})

	// 运行 (阻塞)
	app.Run()
	logger.Info("系统已退出")
}

func newMQ(cfg config.Config, rdb *redis.Client) (mq.Producer, mq.Consumer) {
	if cfg.Redis.MQType == "kafka" {
		logger.Info("使用 Kafka 作为消息队列...")
		return mq.NewKafkaProducer(cfg.Kafka.Brokers), mq.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	}
	logger.Info("使用 Redis Streams 作为消息队列...")
	return mq.NewRedisProducer(rdb), mq.NewRedisConsumer(rdb, cfg.Kafka.GroupID, "audit-0")
}

func mustAddress(key, value string) common.Address {
	if !common.IsHexAddress(value) {
		logger.Fatal("配置项不是合法地址", zap.String("key", key), zap.String("value", value))
	}
	return common.HexToAddress(value)
}
