package backend

import (
	"context"
	"time"

	"circolo/internal/adapters"
	"circolo/internal/amqp"
	"circolo/internal/events"
	"circolo/internal/sequence"
)

// Store is what the services need from a storage backend.
type Store interface {
	adapters.RowSource
	sequence.Store
	sequence.ReceiptStore

	Activities(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store and its cleanup function
type BackendResult struct {
	Store   Store
	Cleanup CleanupFunc
}

// EventsResult contains the event publisher. Requester and Consumer are set
// only when the broker can carry audit requests.
type EventsResult struct {
	Publisher events.Publisher
	Requester events.AuditRequester
	Consumer  *amqp.Client
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	CreateEvents(ctx context.Context, config Config) (*EventsResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	PostgresDSN  string
	// Seed rows loaded into memory, or imported into SQL backends on startup.
	SeedFile string

	Events       EventsType
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	KafkaBrokers []string
	KafkaTopic   string

	ConnectTimeout time.Duration
}

// BackendType represents the type of storage backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// EventsType selects the broker numbering events go to.
type EventsType string

const (
	EventsAMQP  EventsType = "amqp"
	EventsKafka EventsType = "kafka"
	EventsNone  EventsType = "none"
)

func (et EventsType) IsValid() bool {
	switch et {
	case EventsAMQP, EventsKafka, EventsNone:
		return true
	default:
		return false
	}
}
