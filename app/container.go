package app

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/RezaEskandarii/cronhook/internal/db"
	"github.com/RezaEskandarii/cronhook/internal/dispatch"
	"github.com/RezaEskandarii/cronhook/internal/ledger"
	"github.com/RezaEskandarii/cronhook/internal/lock"
	"github.com/RezaEskandarii/cronhook/internal/message_broaker"
	"github.com/RezaEskandarii/cronhook/internal/runner"
	"github.com/RezaEskandarii/cronhook/internal/scheduler"
	"github.com/RezaEskandarii/cronhook/internal/store"
	"github.com/RezaEskandarii/cronhook/internal/store/memory"
	"github.com/RezaEskandarii/cronhook/internal/store/mongo"
	"github.com/RezaEskandarii/cronhook/internal/store/redislease"
	"github.com/RezaEskandarii/cronhook/internal/store/sqlstore"
	"github.com/RezaEskandarii/cronhook/types"
	"github.com/RezaEskandarii/cronhook/types/config"
)

// Container holds all application dependencies. It is the single source of truth
// for dependency injection and ensures connections and services are created once.
type Container struct {
	Config *config.CronhookConfig
	Logger *zap.Logger

	Store  store.Store
	Leases store.LeaseStore
	Redis  redis.UniversalClient

	LockManager   lock.DistributedLockManager
	Ledger        *ledger.Ledger
	Runner        *runner.Runner
	Registry      *scheduler.Registry
	MessageBroker message_broaker.MessageBroker

	Jobs *JobService

	ownsStore  bool
	ownsRedis  bool
	ownsBroker bool
}

// NewContainer creates and wires all dependencies. Call this once per
// application lifecycle.
func NewContainer(ctx context.Context, cfg *config.CronhookConfig, log *zap.Logger, opts ...ContainerOption) (*Container, error) {
	opt := &containerConfig{}
	for _, o := range opts {
		o(opt)
	}
	log = log.With(zap.String("instance", cfg.Instance))
	c := &Container{Config: cfg, Logger: log}

	if opt.store != nil {
		c.Store = opt.store
	} else {
		s, err := OpenStore(ctx, cfg, log)
		if err != nil {
			return nil, errors.Wrap(err, "init storage")
		}
		c.Store = s
		c.ownsStore = true
	}

	c.Leases = c.Store
	if cfg.LeaseDriver == config.LeaseInRedis {
		client := opt.redis
		if client == nil {
			client = redis.NewClient(&redis.Options{
				Addr:     cfg.RedisConfig.Address,
				Password: cfg.RedisConfig.Password,
				DB:       cfg.RedisConfig.DB,
			})
			c.ownsRedis = true
		}
		c.Redis = client
		if err := client.Ping(ctx).Err(); err != nil {
			_ = c.Close()
			return nil, errors.Wrap(err, "init redis leases")
		}
		c.Leases = redislease.NewLeaseStore(client, cfg.RedisConfig.KeyPrefix, c.Store)
	}

	c.LockManager = lock.NewLeaseLockManager(c.Leases, log,
		lock.WithMaxRetries(cfg.LeaseMaxRetries),
		lock.WithBaseDelay(cfg.LeaseBaseDelay),
	)
	c.Ledger = ledger.New(c.Store)

	runnerOpts := []runner.Option{
		runner.WithLeaseDuration(cfg.LeaseDuration),
		runner.WithTimeout(cfg.DispatchTimeout),
		runner.WithMaxConcurrent(cfg.MaxConcurrent),
	}
	c.MessageBroker = opt.broker
	if c.MessageBroker == nil && cfg.EventsEnabled() {
		mq := cfg.RabbitMQConfig
		broker, err := message_broaker.NewRabbitMQ(mq.URL, mq.Exchange, mq.Queue, mq.RoutingKey)
		if err != nil {
			_ = c.Close()
			return nil, errors.Wrap(err, "init rabbitmq")
		}
		c.MessageBroker = broker
		c.ownsBroker = true
	}
	if c.MessageBroker != nil {
		routingKey := ""
		if cfg.RabbitMQConfig != nil {
			routingKey = cfg.RabbitMQConfig.RoutingKey
		}
		runnerOpts = append(runnerOpts, runner.WithListener(
			message_broaker.NewRunPublisher(c.MessageBroker, routingKey, cfg.Instance, log),
		))
	}

	var d runner.Dispatcher = dispatch.New(nil)
	if opt.dispatcher != nil {
		d = opt.dispatcher
	}
	c.Runner = runner.New(c.LockManager, c.Ledger, d, log, runnerOpts...)
	c.Registry = scheduler.NewRegistry(func(ctx context.Context, job types.Job, scheduledFor time.Time) {
		c.Runner.Fire(ctx, job, scheduledFor)
	}, log)
	c.Jobs = NewJobService(c.Store, c.Registry, c.LockManager, log)

	return c, nil
}

// OpenStore opens the configured storage backend. SQL backends are migrated
// first.
func OpenStore(ctx context.Context, cfg *config.CronhookConfig, log *zap.Logger) (store.Store, error) {
	switch cfg.StorageDriver {
	case config.Postgres:
		return openSQLStore(ctx, sqlstore.Postgres, cfg.PostgresConfig.ConnectionUrl, log)
	case config.SQLite:
		return openSQLStore(ctx, sqlstore.SQLite, cfg.SQLiteConfig.Path, log)
	case config.Mongo:
		return mongo.Connect(ctx, cfg.MongoConfig.URI, cfg.MongoConfig.Database)
	case config.Memory:
		log.Warn("using the in-memory store, jobs and runs are lost on exit")
		return memory.New(), nil
	}
	return nil, errors.Newf("unsupported storage driver: %v", cfg.StorageDriver)
}

func openSQLStore(ctx context.Context, dialect sqlstore.Dialect, dsn string, log *zap.Logger) (store.Store, error) {
	if err := db.Migrate(ctx, dialect, dsn, log); err != nil {
		return nil, err
	}
	conn, err := db.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	return sqlstore.New(conn, dialect), nil
}

// Migrate only applies the schema of a SQL backend.
func Migrate(ctx context.Context, cfg *config.CronhookConfig, log *zap.Logger) error {
	switch cfg.StorageDriver {
	case config.Postgres:
		return db.Migrate(ctx, sqlstore.Postgres, cfg.PostgresConfig.ConnectionUrl, log)
	case config.SQLite:
		return db.Migrate(ctx, sqlstore.SQLite, cfg.SQLiteConfig.Path, log)
	case config.Mongo:
		s, err := mongo.Connect(ctx, cfg.MongoConfig.URI, cfg.MongoConfig.Database)
		if err != nil {
			return err
		}
		return s.Close()
	}
	log.Info("nothing to migrate", zap.String("driver", cfg.StorageDriver.String()))
	return nil
}

// Close releases every connection the container opened and reports all
// failures together. Injected dependencies are left to the caller.
func (c *Container) Close() error {
	var errs []error
	if c.MessageBroker != nil && c.ownsBroker {
		if err := c.MessageBroker.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close broker"))
		}
	}
	if c.Store != nil && c.ownsStore {
		if err := c.Store.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close store"))
		}
	}
	if c.Redis != nil && c.ownsRedis {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close redis"))
		}
	}
	return errors.Join(errs...)
}
