package svc

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"basketsync/internal/application/container"
	"basketsync/internal/application/port"
	"basketsync/internal/application/usecase/monitor"
	"basketsync/internal/domain/model"
	domainservice "basketsync/internal/domain/service"
	"basketsync/internal/infrastructure/config"
	"basketsync/internal/infrastructure/pricefeed"
	"basketsync/internal/infrastructure/storage"
	"basketsync/internal/infrastructure/storage/composite"
	postgresrepo "basketsync/internal/infrastructure/storage/postgres"
	redisrepo "basketsync/internal/infrastructure/storage/redis"
	sqliterepo "basketsync/internal/infrastructure/storage/sqlite"
	"basketsync/internal/interfaces/console"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config
	Log    zerolog.Logger

	// 基础设施层（第一层初始化）
	repo        port.Repository
	publisher   *composite.Publisher
	limiter     *rate.Limiter
	priceClient *pricefeed.Client
	clock       *domainservice.SessionClock

	// 输出端口
	Sink port.Sink

	// 应用业务组件（依赖基础设施）
	container *container.Container
	baskets   []model.Basket

	// 资源管理
	closerChain []func() error
}

// New 创建并初始化 ServiceContext
// 这是应用启动的唯一入口点，所有依赖初始化都在这里完成
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		Log:         logger,
		Sink:        console.NewSink(),
		closerChain: make([]func() error, 0),
	}

	if err := sc.initializeComponents(); err != nil {
		// 清理已初始化的资源
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

// initializeComponents 按依赖顺序初始化所有组件
func (sc *ServiceContext) initializeComponents() error {
	if err := sc.initializeStorage(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInitFailed, err)
	}
	sc.container = container.New(sc.repo, sc.publisher, sc.Log)

	if err := sc.seed(); err != nil {
		return fmt.Errorf("seed storage: %w", err)
	}

	baskets, err := sc.container.BasketService().ListBaskets(sc.Ctx)
	if err != nil {
		return err
	}
	if len(baskets) == 0 {
		return ErrNoBaskets
	}
	sc.baskets = baskets

	refs := sc.container.ReferenceCache()
	if err := refs.Load(sc.Ctx); err != nil {
		return err
	}
	var tickers []string
	for _, b := range baskets {
		tickers = append(tickers, b.Tickers()...)
	}
	if err := refs.Ensure(sc.Ctx, tickers); err != nil {
		return err
	}

	sc.initPriceSource()

	sc.clock = domainservice.NewSessionClock(sc.Config.Session.Timezone)
	sc.clock.OpenInterval = time.Duration(sc.Config.Polling.OpenIntervalSec) * time.Second
	sc.clock.ClosedInterval = time.Duration(sc.Config.Polling.ClosedIntervalSec) * time.Second

	sc.Log.Info().
		Int("baskets", len(baskets)).
		Int("references", refs.Len()).
		Str("timezone", sc.clock.Location().String()).
		Msg("✓ All components initialized")
	return nil
}

// initializeStorage 初始化存储层：数据库三选一，Redis 仅用于广播
func (sc *ServiceContext) initializeStorage() error {
	switch {
	case sc.Config.Storage.Postgres.Enabled:
		if err := sc.initPostgres(); err != nil {
			return fmt.Errorf("postgres initialization failed: %w", err)
		}
	case sc.Config.Storage.SQLite.Enabled:
		if err := sc.initSQLite(); err != nil {
			return fmt.Errorf("sqlite initialization failed: %w", err)
		}
	default:
		sc.repo = storage.NewInMemoryRepository()
		sc.Log.Info().Msg("✓ In-memory storage initialized")
	}

	var pubs []port.SnapshotPublisher
	if sc.Config.Storage.Redis.Enabled {
		pub, err := sc.initRedis()
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		pubs = append(pubs, pub)
	}
	sc.publisher = composite.New(pubs...)
	return nil
}

// initRedis 初始化 Redis 连接
func (sc *ServiceContext) initRedis() (*redisrepo.Publisher, error) {
	rc := sc.Config.Storage.Redis
	rdb := redisclient.NewClient(&redisclient.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	ttl := time.Duration(rc.TTLSeconds) * time.Second
	pub := redisrepo.New(rdb, rc.Prefix, ttl, rc.Stream, rc.StreamMaxLen, rc.Channel)

	// 注册关闭回调
	sc.closerChain = append(sc.closerChain, func() error {
		sc.Log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	sc.Log.Info().
		Str("addr", rc.Addr).
		Int("db", rc.DB).
		Msg("✓ Redis initialized")
	return pub, nil
}

// initSQLite 初始化 SQLite 数据库
func (sc *ServiceContext) initSQLite() error {
	repo, err := sqliterepo.New(sc.Config.Storage.SQLite.Path)
	if err != nil {
		return fmt.Errorf("sqlite repo creation failed: %w", err)
	}
	sc.repo = repo

	// 注册关闭回调
	sc.closerChain = append(sc.closerChain, func() error {
		sc.Log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	sc.Log.Info().
		Str("path", sc.Config.Storage.SQLite.Path).
		Msg("✓ SQLite initialized")
	return nil
}

// initPostgres 初始化 Postgres 数据库
func (sc *ServiceContext) initPostgres() error {
	repo, err := postgresrepo.New(sc.Config.Storage.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("postgres repo creation failed: %w", err)
	}
	sc.repo = repo

	sc.closerChain = append(sc.closerChain, func() error {
		sc.Log.Info().Msg("closing postgres connection")
		return repo.Close()
	})

	sc.Log.Info().Msg("✓ Postgres initialized")
	return nil
}

// initPriceSource 所有控制器共用一个限流器
func (sc *ServiceContext) initPriceSource() {
	ps := sc.Config.PriceSource
	sc.limiter = rate.NewLimiter(rate.Limit(ps.RatePerSec), ps.Burst)
	sc.priceClient = pricefeed.NewClient(ps.URL,
		pricefeed.WithLimiter(sc.limiter),
		pricefeed.WithTimeout(time.Duration(ps.TimeoutSec)*time.Second),
		pricefeed.WithLogger(sc.Log),
	)
	sc.Log.Info().
		Str("url", ps.URL).
		Float64("rate_per_sec", ps.RatePerSec).
		Int("burst", ps.Burst).
		Msg("✓ Price source initialized")
}

// seed 把配置里的篮子和参考数据写入仓储
func (sc *ServiceContext) seed() error {
	for _, b := range sc.Config.Baskets {
		if err := sc.repo.SaveBasket(sc.Ctx, b); err != nil {
			return fmt.Errorf("basket %s: %w", b.ID, err)
		}
	}
	for _, r := range sc.Config.References {
		if err := sc.repo.SaveReference(sc.Ctx, r); err != nil {
			return fmt.Errorf("reference %s: %w", r.Ticker, err)
		}
	}
	if n := len(sc.Config.Baskets) + len(sc.Config.References); n > 0 {
		sc.Log.Debug().
			Int("baskets", len(sc.Config.Baskets)).
			Int("references", len(sc.Config.References)).
			Msg("storage seeded from config")
	}
	return nil
}

func (sc *ServiceContext) Container() *container.Container {
	return sc.container
}

func (sc *ServiceContext) PriceSource() port.PriceSource {
	return sc.priceClient
}

func (sc *ServiceContext) Limiter() *rate.Limiter {
	return sc.limiter
}

func (sc *ServiceContext) Baskets() []model.Basket {
	return sc.baskets
}

// BuildMonitorServiceDeps 构建 Monitor Service 所需的所有依赖
func (sc *ServiceContext) BuildMonitorServiceDeps() monitor.ServiceDeps {
	return monitor.ServiceDeps{
		Baskets:          sc.baskets,
		Refs:             sc.container.ReferenceCache(),
		Source:           sc.priceClient,
		Clock:            sc.clock,
		Sink:             sc.Sink,
		Snapshots:        sc.container.SnapshotService(),
		Logger:           sc.Log,
		PrintEvery:       time.Duration(sc.Config.App.PrintEveryMin) * time.Minute,
		Timeout:          time.Duration(sc.Config.PriceSource.TimeoutSec) * time.Second,
		FailureThreshold: sc.Config.Polling.FailureThreshold,
		Color:            sc.Config.App.Color,
	}
}

// Close 按照相反的顺序关闭所有资源
func (sc *ServiceContext) Close() error {
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			sc.Log.Error().Err(err).Msg("error closing resource")
		}
	}
	sc.closerChain = nil
	return nil
}
