// Package backend builds the persistence and messaging handles selected
// by configuration.
package backend

import (
	"context"

	"spendwise/internal/services"
	"spendwise/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the store, the optional event publisher and the
// function that releases both.
type BackendResult struct {
	Store     storage.Store
	Publisher services.Publisher // nil when AMQP is disabled
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// MongoDB specific
	MongoURL string
	DBName   string

	// Domain events, optional for every store
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MongoBackend  BackendType = "mongo"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MongoBackend:
		return true
	default:
		return false
	}
}
