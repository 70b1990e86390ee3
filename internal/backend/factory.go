package backend

import (
	"context"
	"fmt"
	"log/slog"

	"budget/internal/amqp"
	"budget/internal/events"
	"budget/internal/kafka"
	"budget/internal/ledger"
	"budget/internal/storage"
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
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var result *BackendResult
	switch config.Type {
	case SQLiteBackend:
		r, err := f.createSQLiteBackend(config)
		if err != nil {
			return nil, err
		}
		result = r
	case MemoryBackend:
		result = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	result.Publisher = f.createPublisher(config)
	storeCleanup := result.Cleanup
	publisher := result.Publisher
	result.Cleanup = func() error {
		var errs []error
		if err := publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
		if storeCleanup != nil {
			if err := storeCleanup(); err != nil {
				errs = append(errs, fmt.Errorf("storage: %w", err))
			}
		}
		if len(errs) > 0 {
			return fmt.Errorf("close backend: %v", errs)
		}
		return nil
	}

	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "dsn", config.SQLiteDSN)

	return &BackendResult{
		Stores:  sqliteStores{repo: repo},
		Ready:   repo.Ping,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() *BackendResult {
	f.logger.Info("Initialized memory backend")

	return &BackendResult{
		Stores: memoryStores{},
		Ready:  func(context.Context) error { return nil },
	}
}

// createPublisher never fails: a broker that cannot be reached at startup
// degrades to dropping events, like the ledger keeps working without sync.
func (f *DefaultFactory) createPublisher(config Config) events.Publisher {
	switch config.Events {
	case AMQPEvents:
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
			return events.Noop{}
		}
		f.logger.Info("Initialized AMQP client",
			"exchange", config.AMQPExchange,
			"queue", config.AMQPQueue)
		return client
	case KafkaEvents:
		f.logger.Info("Initialized Kafka publisher",
			"brokers", config.KafkaBrokers,
			"topic", config.KafkaTopic)
		return kafka.NewPublisher(config.KafkaBrokers, config.KafkaTopic)
	default:
		return events.Noop{}
	}
}

// NewSubscriber opens the consuming side of the configured events backend.
func NewSubscriber(config Config) (events.Subscriber, error) {
	switch config.Events {
	case AMQPEvents:
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			return nil, fmt.Errorf("connect AMQP: %w", err)
		}
		return client, nil
	case KafkaEvents:
		return kafka.NewSubscriber(config.KafkaBrokers, config.KafkaTopic), nil
	default:
		return nil, fmt.Errorf("events backend %q cannot be consumed", config.Events)
	}
}

type memoryStores struct{}

func (memoryStores) Open(string) ledger.Store { return ledger.NewMemoryStore() }

func (memoryStores) Release(context.Context, string) error { return nil }

type sqliteStores struct {
	repo *storage.SQLiteRepository
}

func (s sqliteStores) Open(sessionID string) ledger.Store { return s.repo.Scoped(sessionID) }

func (s sqliteStores) Release(ctx context.Context, sessionID string) error {
	return s.repo.Drop(ctx, sessionID)
}
