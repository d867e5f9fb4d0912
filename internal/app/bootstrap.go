package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"webrag/internal/adapter/memory"
	wstore "webrag/internal/adapter/weaviate"
	"webrag/internal/config"
	"webrag/internal/vector"
)

type Dependencies struct {
	DB          *sql.DB
	VectorStore VectorStore
	NSQProducer *nsq.Producer
}

// Close releases the connections opened by Bootstrap.
func (d *Dependencies) Close() {
	if d.NSQProducer != nil {
		d.NSQProducer.Stop()
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			slog.Warn("failed to close db", "error", err)
		}
	}
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	// Database
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	// Retry loop
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err := db.PingContext(ctx); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1)
		time.Sleep(retryDelay)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Migrations
	if err := migrateUp(db, cfg.MigrationPath); err != nil {
		db.Close()
		return nil, err
	}

	// Vector store
	vecStore, err := openVectorStore(ctx, cfg, retryDelay)
	if err != nil {
		db.Close()
		return nil, err
	}

	// NSQ Producer
	producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("nsq producer error: %w", err)
	}
	producer.SetLoggerLevel(nsq.LogLevelWarning)

	// Topic pre-creation so consumers querying lookupd find it before the first publish
	createTopics(cfg.NSQDHTTP, config.TopicIngestPage)

	return &Dependencies{
		DB:          db,
		VectorStore: vecStore,
		NSQProducer: producer,
	}, nil
}

func migrateUp(db *sql.DB, path string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up error: %w", err)
	}
	slog.Info("migrations applied successfully")
	return nil
}

func openVectorStore(ctx context.Context, cfg *config.Config, retryDelay time.Duration) (VectorStore, error) {
	if cfg.VectorStore == config.VectorStoreMemory {
		slog.Warn("using in-memory vector store, ingested content is lost on restart")
		return memory.NewStore(), nil
	}

	wClient, err := weaviate.NewClient(weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme})
	if err != nil {
		return nil, fmt.Errorf("weaviate client error: %w", err)
	}

	// Ensure Schema Retry
	if err := EnsureSchemaWithRetry(ctx, vector.NewSchemaAdapter(wClient), cfg.BootstrapRetryAttempts, retryDelay); err != nil {
		return nil, fmt.Errorf("weaviate schema error: %w", err)
	}
	slog.Info("weaviate schema ensured", "class", vector.ClassName)
	return wstore.NewStore(wClient), nil
}

func createTopics(nsqdHTTP string, topics ...string) {
	create := func(topic string) {
		u := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, url.QueryEscape(topic))
		resp, err := http.Post(u, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		for _, t := range topics {
			create(t)
		}
	}()
}

// EnsureSchemaWithRetry retries vector.EnsureSchema until it succeeds or attempts run out.
func EnsureSchemaWithRetry(ctx context.Context, client vector.SchemaClient, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = vector.EnsureSchema(ctx, client); err == nil {
			return nil
		}
		slog.Warn("failed to ensure weaviate schema, retrying...", "attempt", i+1, "error", err)
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
