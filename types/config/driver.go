package config

import (
	"strings"

	"github.com/cockroachdb/errors"
)

type StorageDriver int

const (
	Postgres StorageDriver = iota + 1
	SQLite
	Mongo
	Memory
)

// String converts the StorageDriver enum to a human-readable string.
func (d StorageDriver) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	case Mongo:
		return "mongo"
	case Memory:
		return "memory"
	}
	return "unknown"
}

func ParseStorageDriver(s string) (StorageDriver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mongo", "mongodb":
		return Mongo, nil
	case "memory":
		return Memory, nil
	}
	return 0, errors.Newf("unknown storage driver %q", s)
}

// LeaseDriver selects where job leases live.
type LeaseDriver int

const (
	// LeaseInStore keeps the lease on the job record of the storage driver.
	LeaseInStore LeaseDriver = iota + 1
	LeaseInRedis
)

func (d LeaseDriver) String() string {
	switch d {
	case LeaseInStore:
		return "store"
	case LeaseInRedis:
		return "redis"
	}
	return "unknown"
}

func ParseLeaseDriver(s string) (LeaseDriver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "store":
		return LeaseInStore, nil
	case "redis":
		return LeaseInRedis, nil
	}
	return 0, errors.Newf("unknown lease driver %q", s)
}
