package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"circolo/internal/adapters"
	"circolo/internal/amqp"
	"circolo/internal/events"
	"circolo/internal/events/kafka"
	"circolo/internal/storage"
	"circolo/internal/storage/memory"
	"circolo/internal/storage/postgres"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// importer is implemented by the SQL backends.
type importer interface {
	Import(ctx context.Context, seed adapters.Seed) error
}

func (f *DefaultFactory) importSeed(ctx context.Context, dst importer, path string) error {
	seed, ok, err := adapters.LoadSeed(path)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := dst.Import(ctx, seed); err != nil {
		return fmt.Errorf("import seed %s: %w", path, err)
	}
	f.logger.Info("Imported seed file",
		"path", path,
		"receipts", len(seed.Receipts),
		"expenses", len(seed.Expenses),
		"subscriptions", len(seed.Subscriptions))
	return nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	if err := f.importSeed(ctx, repo, config.SeedFile); err != nil {
		return nil, errors.Join(err, repo.Close())
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{Store: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.ConnectTimeout)
		defer cancel()
	}
	store, err := postgres.Open(ctx, config.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL store: %w", err)
	}
	if err := f.importSeed(ctx, store, config.SeedFile); err != nil {
		return nil, errors.Join(err, store.Close())
	}

	f.logger.Info("Initialized PostgreSQL backend")
	return &BackendResult{Store: store, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)
	return &BackendResult{Store: store, Cleanup: store.Close}, nil
}

// CreateEvents connects the configured broker. An AMQP broker that cannot be
// reached is logged and replaced by a no-op publisher so the API keeps serving.
func (f *DefaultFactory) CreateEvents(ctx context.Context, config Config) (*EventsResult, error) {
	switch config.Events {
	case EventsAMQP:
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
			return nopEvents(), nil
		}
		f.logger.Info("Initialized AMQP client",
			"exchange", config.AMQPExchange,
			"queue", config.AMQPQueue)
		return &EventsResult{Publisher: client, Requester: client, Consumer: client, Cleanup: client.Close}, nil

	case EventsKafka:
		p := kafka.NewPublisher(config.KafkaBrokers, config.KafkaTopic)
		f.logger.Info("Initialized Kafka publisher",
			"brokers", config.KafkaBrokers,
			"topic", config.KafkaTopic)
		return &EventsResult{Publisher: p, Cleanup: p.Close}, nil

	case EventsNone, "":
		return nopEvents(), nil

	default:
		return nil, fmt.Errorf("unsupported events backend: %s", config.Events)
	}
}

func nopEvents() *EventsResult {
	n := events.Nop{}
	return &EventsResult{Publisher: n, Cleanup: n.Close}
}
