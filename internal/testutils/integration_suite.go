package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"webrag/internal/config"
	"webrag/internal/vector"
)

// Service selects which containers a suite starts.
type Service int

const (
	Postgres Service = 1 << iota
	Weaviate
	NSQ

	AllServices = Postgres | Weaviate | NSQ
)

// IntegrationSuite runs the backing services in containers. Callers skip it under -short.
type IntegrationSuite struct {
	T        *testing.T
	DB       *sql.DB
	Weaviate *weaviate.Client
	NSQ      *nsq.Producer
	NSQAddr  string

	services     Service
	pgHost       string
	pgPort       int
	weaviateHost string
	nsqHTTPAddr  string

	pgContainer       *postgres.PostgresContainer
	weaviateContainer testcontainers.Container
	nsqContainer      testcontainers.Container
}

func NewIntegrationSuite(t *testing.T, services Service) *IntegrationSuite {
	return &IntegrationSuite{T: t, services: services}
}

func (s *IntegrationSuite) Setup() {
	ctx := context.Background()
	if s.services&Postgres != 0 {
		s.setupPostgres(ctx)
	}
	if s.services&Weaviate != 0 {
		s.setupWeaviate(ctx)
	}
	if s.services&NSQ != 0 {
		s.setupNSQ(ctx)
	}
}

func (s *IntegrationSuite) setupPostgres(ctx context.Context) {
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("webrag_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(s.T, err)
	s.pgContainer = pgContainer

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(s.T, err)

	s.pgHost, err = pgContainer.Host(ctx)
	require.NoError(s.T, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(s.T, err)
	s.pgPort = pgPort.Int()

	s.DB, err = sql.Open("postgres", connStr)
	require.NoError(s.T, err)

	_, b, _, _ := runtime.Caller(0)
	migrationPath := fmt.Sprintf("file://%s/../../migrations", filepath.Dir(b))

	m, err := migrate.New(migrationPath, connStr)
	require.NoError(s.T, err)
	require.NoError(s.T, m.Up())
}

func (s *IntegrationSuite) setupWeaviate(ctx context.Context) {
	req := testcontainers.ContainerRequest{
		Image:        "semitechnologies/weaviate:1.33.6",
		ExposedPorts: []string{"8080/tcp", "50051/tcp"},
		Env: map[string]string{
			"AUTHENTICATION_ANONYMOUS_ACCESS_ENABLED": "true",
			"DEFAULT_VECTORIZER_MODULE":               "none",
			"PERSISTENCE_DATA_PATH":                   "/var/lib/weaviate",
		},
		WaitingFor: wait.ForHTTP("/v1/meta").WithPort("8080/tcp").WithStartupTimeout(60 * time.Second),
	}
	weaviateC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T, err)
	s.weaviateContainer = weaviateC

	host, err := weaviateC.Host(ctx)
	require.NoError(s.T, err)
	port, err := weaviateC.MappedPort(ctx, "8080")
	require.NoError(s.T, err)

	s.weaviateHost = fmt.Sprintf("%s:%s", host, port.Port())
	s.Weaviate, err = weaviate.NewClient(weaviate.Config{
		Host:   s.weaviateHost,
		Scheme: "http",
	})
	require.NoError(s.T, err)
	require.NoError(s.T, vector.EnsureSchema(ctx, vector.NewSchemaAdapter(s.Weaviate)))
}

func (s *IntegrationSuite) setupNSQ(ctx context.Context) {
	nsqReq := testcontainers.ContainerRequest{
		Image:        "nsqio/nsq:v1.3.0",
		ExposedPorts: []string{"4150/tcp", "4151/tcp"},
		Cmd:          []string{"/nsqd", "--broadcast-address=localhost"},
		WaitingFor:   wait.ForLog("TCP: listening on").WithStartupTimeout(60 * time.Second),
	}
	nsqC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: nsqReq,
		Started:          true,
	})
	require.NoError(s.T, err)
	s.nsqContainer = nsqC

	nsqHost, err := nsqC.Host(ctx)
	require.NoError(s.T, err)
	nsqPort, err := nsqC.MappedPort(ctx, "4150")
	require.NoError(s.T, err)

	nsqHTTPPort, err := nsqC.MappedPort(ctx, "4151")
	require.NoError(s.T, err)

	s.NSQAddr = fmt.Sprintf("%s:%s", nsqHost, nsqPort.Port())
	s.nsqHTTPAddr = fmt.Sprintf("%s:%s", nsqHost, nsqHTTPPort.Port())
	s.NSQ, err = nsq.NewProducer(s.NSQAddr, nsq.NewConfig())
	require.NoError(s.T, err)
}

// AppConfig returns a valid config pointing at the started services.
func (s *IntegrationSuite) AppConfig() *config.Config {
	store := config.VectorStoreMemory
	if s.weaviateHost != "" {
		store = config.VectorStoreWeaviate
	}
	return &config.Config{
		DBHost:                     s.pgHost,
		DBPort:                     s.pgPort,
		DBUser:                     "test",
		DBPass:                     "test",
		DBName:                     "webrag_test",
		VectorStore:                store,
		WeaviateHost:               s.weaviateHost,
		WeaviateScheme:             "http",
		NSQDHost:                   s.NSQAddr,
		NSQDHTTP:                   s.nsqHTTPAddr,
		EmbeddingProvider:          config.EmbeddingOllama,
		OllamaHost:                 "http://localhost:11434",
		DefaultModel:               "gpt-oss:20b",
		ChunkMaxChars:              2000,
		ChunkOverlap:               200,
		IngestionConcurrency:       2,
		BootstrapRetryAttempts:     5,
		BootstrapRetryDelaySeconds: 1,
	}
}

func (s *IntegrationSuite) Teardown() {
	ctx := context.Background()
	if s.NSQ != nil {
		s.NSQ.Stop()
	}
	if s.DB != nil {
		s.DB.Close()
	}
	if s.pgContainer != nil {
		s.pgContainer.Terminate(ctx)
	}
	if s.weaviateContainer != nil {
		s.weaviateContainer.Terminate(ctx)
	}
	if s.nsqContainer != nil {
		s.nsqContainer.Terminate(ctx)
	}
}
