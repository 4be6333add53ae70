package main

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/RezaEskandarii/cronhook/internal/constants"
	"github.com/RezaEskandarii/cronhook/types/config"
)

// newViper reads configFile when set and CRONHOOK_* environment variables,
// e.g. CRONHOOK_POSTGRES_URL for postgres.url.
func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", configFile)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("instance", "")
	v.SetDefault("storage.driver", config.DefaultStorageDriver.String())
	v.SetDefault("postgres.url", "")
	v.SetDefault("sqlite.path", config.DefaultSQLitePath)
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", config.DefaultMongoDatabase)
	v.SetDefault("lease.driver", config.DefaultLeaseDriver.String())
	v.SetDefault("lease.duration", config.DefaultLeaseDuration)
	v.SetDefault("lease.max_retries", config.DefaultLeaseMaxRetries)
	v.SetDefault("lease.base_delay", config.DefaultLeaseBaseDelay)
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "")
	v.SetDefault("dispatch.timeout", config.DefaultDispatchTimeout)
	v.SetDefault("runner.max_concurrent", config.DefaultMaxConcurrent)
	v.SetDefault("shutdown.timeout", config.DefaultShutdownTimeout)
	v.SetDefault("http.port", config.DefaultHTTPPort)
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", constants.RunEventsExchange)
	v.SetDefault("rabbitmq.queue", constants.RunEventsQueue)
	v.SetDefault("rabbitmq.routing_key", constants.RunEventsRoutingKey)
	v.SetDefault("log.level", config.DefaultLogLevel)
	v.SetDefault("log.format", config.DefaultLogFormat)
}

// loadConfig turns the settings in v into a CronhookConfig.
func loadConfig(v *viper.Viper) (*config.CronhookConfig, error) {
	storage, err := config.ParseStorageDriver(v.GetString("storage.driver"))
	if err != nil {
		return nil, err
	}
	leases, err := config.ParseLeaseDriver(v.GetString("lease.driver"))
	if err != nil {
		return nil, err
	}

	var opts []config.Option
	switch storage {
	case config.Postgres:
		opts = append(opts, config.WithPostgresConfig(config.PostgresConfig{ConnectionUrl: v.GetString("postgres.url")}))
	case config.SQLite:
		opts = append(opts, config.WithSQLiteConfig(config.SQLiteConfig{Path: v.GetString("sqlite.path")}))
	case config.Mongo:
		opts = append(opts, config.WithMongoConfig(config.MongoConfig{
			URI:      v.GetString("mongo.uri"),
			Database: v.GetString("mongo.database"),
		}))
	case config.Memory:
		opts = append(opts, config.WithMemoryStore())
	}
	if leases == config.LeaseInRedis {
		opts = append(opts, config.WithRedisLeases(config.RedisConfig{
			Address:   v.GetString("redis.address"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		}))
	}
	if url := v.GetString("rabbitmq.url"); url != "" {
		opts = append(opts, config.WithRabbitMQConfig(config.RabbitMQConfig{
			URL:        url,
			Exchange:   v.GetString("rabbitmq.exchange"),
			Queue:      v.GetString("rabbitmq.queue"),
			RoutingKey: v.GetString("rabbitmq.routing_key"),
		}))
	}

	opts = append(opts,
		config.WithLease(v.GetDuration("lease.duration"), v.GetInt("lease.max_retries"), v.GetDuration("lease.base_delay")),
		config.WithDispatchTimeout(v.GetDuration("dispatch.timeout")),
		config.WithMaxConcurrent(v.GetInt("runner.max_concurrent")),
		config.WithShutdownTimeout(v.GetDuration("shutdown.timeout")),
		config.WithHTTPPort(v.GetUint("http.port")),
		config.WithLogConfig(v.GetString("log.level"), v.GetString("log.format")),
	)
	instance := v.GetString("instance")
	if instance == "" {
		instance, _ = os.Hostname()
	}
	return config.New(instance, opts...)
}
