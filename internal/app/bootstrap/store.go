package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/lead-crm/internal/config"
	"github.com/wolfman30/lead-crm/internal/leads"
	"github.com/wolfman30/lead-crm/pkg/logging"
)

// AWSConfigLoader resolves the shared AWS SDK config on demand.
type AWSConfigLoader func(ctx context.Context) (aws.Config, error)

// NeedsAWS reports whether any configured component talks to AWS.
func NeedsAWS(cfg *appconfig.Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.StoreBackend == appconfig.BackendDynamoDB ||
		cfg.ArchiveBucket != "" ||
		cfg.EmailProvider == "ses"
}

// BuildLeadStore opens the backend selected by STORE_BACKEND. The returned
// cleanup releases the store and any pool it owns.
func BuildLeadStore(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) (leads.Store, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	switch cfg.StoreBackend {
	case appconfig.BackendMemory:
		logger.Warn("using in-memory lead store; data is lost on restart")
		store := leads.NewMemoryStore()
		return store, closer(store, logger), nil

	case appconfig.BackendFile:
		store, err := leads.NewFileStore(cfg.DataFile, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: open file store: %w", err)
		}
		logger.Info("using file lead store", "path", cfg.DataFile)
		return store, closer(store, logger), nil

	case appconfig.BackendSQLite:
		store, err := leads.OpenSQLiteStore(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: open sqlite store: %w", err)
		}
		logger.Info("using sqlite lead store", "path", cfg.SQLitePath)
		return store, closer(store, logger), nil

	case appconfig.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
		}
		store := leads.NewPostgresStore(pool, logger)
		logger.Info("using postgres lead store")
		return store, func() {
			_ = store.Close()
			pool.Close()
		}, nil

	case appconfig.BackendDynamoDB:
		if loadAWS == nil {
			return nil, nil, fmt.Errorf("bootstrap: aws config loader required for %s backend", cfg.StoreBackend)
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		store := leads.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.LeadsTable, logger)
		logger.Info("using dynamodb lead store", "table", cfg.LeadsTable)
		return store, closer(store, logger), nil
	}

	return nil, nil, fmt.Errorf("bootstrap: unknown store backend %q", cfg.StoreBackend)
}

func closer(store leads.Store, logger *logging.Logger) func() {
	return func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close lead store", "error", err)
		}
	}
}
