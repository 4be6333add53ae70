package config

import (
	"time"

	"github.com/RezaEskandarii/cronhook/internal/constants"
)

const (
	DefaultStorageDriver = Postgres
	DefaultLeaseDriver   = LeaseInStore

	DefaultLeaseDuration   = 5 * time.Minute
	DefaultLeaseMaxRetries = 3
	DefaultLeaseBaseDelay  = 100 * time.Millisecond
	DefaultDispatchTimeout = 30 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultHTTPPort      = constants.DefaultHTTPPort
	DefaultMaxConcurrent = constants.DefaultMaxConcurrent

	DefaultSQLitePath    = "cronhook.db"
	DefaultMongoDatabase = "cronhook"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
)
