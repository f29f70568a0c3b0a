// Package application provides application-level services and dependency injection.
package application

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jbctechsolutions/yardsync/internal/adapters/parser/text"
	"github.com/jbctechsolutions/yardsync/internal/adapters/remote/github"
	"github.com/jbctechsolutions/yardsync/internal/adapters/store/sqlite"
	"github.com/jbctechsolutions/yardsync/internal/application/loadings"
	"github.com/jbctechsolutions/yardsync/internal/application/ports"
	"github.com/jbctechsolutions/yardsync/internal/application/queue"
	appsync "github.com/jbctechsolutions/yardsync/internal/application/sync"
	"github.com/jbctechsolutions/yardsync/internal/application/trucks"
	"github.com/jbctechsolutions/yardsync/internal/infrastructure/config"
	"github.com/jbctechsolutions/yardsync/internal/infrastructure/connectivity"
	"github.com/jbctechsolutions/yardsync/internal/infrastructure/crypto"
	"github.com/jbctechsolutions/yardsync/internal/infrastructure/logging"
	"github.com/jbctechsolutions/yardsync/internal/infrastructure/tracing"
)

// Container holds all application dependencies and provides a central
// point for dependency injection. It manages the lifecycle of services
// and ensures proper initialization order.
type Container struct {
	// Configuration
	config  *config.Config
	verbose bool // Override log level to debug when true

	// Database connection
	dbConn *sqlite.Connection
	db     *sql.DB

	// Repositories
	cacheRepo ports.LocalCachePort
	queueRepo ports.QueueStorePort

	// Remote store, nil when no remote is configured
	remoteClient *github.Client

	// Application services
	opQueue      *queue.Queue
	orchestrator *appsync.Orchestrator
	truckService *trucks.Service
	loadService  *loadings.Service
	parser       ports.ParserPort
	monitor      *connectivity.Monitor

	// Observability
	logger *logging.Logger
	tracer *tracing.Tracer
}

// NewContainer creates a new dependency injection container with all services
// initialized based on the provided configuration.
func NewContainer(cfg *config.Config, verbose bool) (*Container, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}

	c := &Container{
		config:  cfg,
		verbose: verbose,
	}

	if err := c.initObservability(); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	if err := c.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	c.initRepositories()

	if err := c.initRemote(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize remote store: %w", err)
	}

	c.initServices()

	return c, nil
}

// initObservability initializes logging and tracing.
func (c *Container) initObservability() error {
	logLevel := logging.LevelInfo
	if c.verbose {
		logLevel = logging.LevelDebug
	} else {
		switch c.config.Logging.Level {
		case "debug":
			logLevel = logging.LevelDebug
		case "info":
			logLevel = logging.LevelInfo
		case "warn":
			logLevel = logging.LevelWarn
		case "error":
			logLevel = logging.LevelError
		}
	}

	logFormat := logging.FormatText
	if c.config.Logging.Format == "json" {
		logFormat = logging.FormatJSON
	}

	c.logger = logging.New(logging.Config{
		Level:  logLevel,
		Format: logFormat,
	})

	if c.config.Observability.Tracing.Enabled {
		tracer, err := tracing.New(context.Background(), tracing.Config{
			Enabled:      true,
			ExporterType: tracing.ExporterType(c.config.Observability.Tracing.ExporterType),
			OTLPEndpoint: c.config.Observability.Tracing.OTLPEndpoint,
			ServiceName:  c.config.Observability.Tracing.ServiceName,
			Environment:  "production",
			SampleRate:   c.config.Observability.Tracing.SampleRate,
		})
		if err != nil {
			return fmt.Errorf("failed to create tracer: %w", err)
		}
		c.tracer = tracer
	} else {
		c.tracer = tracing.Default()
	}

	return nil
}

// initDatabase opens the SQLite database.
func (c *Container) initDatabase() error {
	conn, err := sqlite.NewConnection(expandHome(c.config.Database.Path))
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}

	if err := conn.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db, err := conn.DB()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to get database handle: %w", err)
	}

	c.dbConn = conn
	c.db = db
	return nil
}

// initRepositories initializes the storage repositories.
func (c *Container) initRepositories() {
	c.cacheRepo = sqlite.NewCacheRepository(c.db, c.logger)
	c.queueRepo = sqlite.NewQueueRepository(c.db)
}

// initRemote builds the remote store client when one is configured. The
// bearer token is decrypted with the machine-derived key.
func (c *Container) initRemote() error {
	if !c.config.Remote.Enabled {
		return nil
	}

	enc, err := crypto.NewEncryptor()
	if err != nil {
		return fmt.Errorf("failed to create encryptor: %w", err)
	}
	token, err := enc.Decrypt(c.config.Remote.TokenEncrypted)
	if err != nil {
		return fmt.Errorf("failed to decrypt remote token: %w", err)
	}

	opts := []github.Option{
		github.WithMaxWriteRetries(c.config.Sync.MaxWriteRetries),
		github.WithLogger(c.logger),
	}
	if c.config.Remote.Timeout > 0 {
		opts = append(opts, github.WithTimeout(c.config.Remote.Timeout))
	}
	if c.config.Remote.BaseURL != "" {
		opts = append(opts, github.WithBaseURL(c.config.Remote.BaseURL))
	}
	if c.config.Remote.Branch != "" {
		opts = append(opts, github.WithBranch(c.config.Remote.Branch))
	}

	c.remoteClient = github.NewClient(
		c.config.Remote.Owner,
		c.config.Remote.Repo,
		c.config.Remote.Path,
		token,
		opts...,
	)
	return nil
}

// initServices wires the queue, orchestrator and entity services.
func (c *Container) initServices() {
	var remote ports.RemoteStorePort
	if c.remoteClient != nil {
		remote = c.remoteClient
	}

	c.opQueue = queue.New(c.queueRepo, c.cacheRepo, remote, c.logger, queue.Config{
		MaxRetries:    c.config.Sync.MaxRetries,
		BackoffBase:   c.config.Sync.BackoffBase,
		DrainInterval: c.config.Sync.DrainInterval,
	})

	c.orchestrator = appsync.New(c.cacheRepo, c.opQueue, remote, c.logger, appsync.Config{
		PollInterval:    c.config.Sync.PollInterval,
		MergeTolerance:  c.config.Sync.MergeTolerance,
		StalenessWindow: c.config.Sync.StalenessWindow,
		RetentionPeriod: c.config.Sync.RetentionPeriod,
	})

	c.truckService = trucks.NewService(c.orchestrator)
	c.loadService = loadings.NewService(c.orchestrator)
	c.parser = text.New()

	if remote != nil {
		c.monitor = connectivity.NewMonitor(remote, c.orchestrator.HandleConnectivityChange, c.logger, connectivity.DefaultConfig())
	}
}

// Reload applies a changed configuration to the running container.
// Credentials and log level take effect immediately; structural changes
// (database path, remote identity, poll cadence) need a restart and are
// logged as such.
func (c *Container) Reload(cfg *config.Config) {
	ctx := context.Background()

	if cfg.Logging.Level != c.config.Logging.Level && !c.verbose {
		switch cfg.Logging.Level {
		case "debug":
			c.logger.SetLevel(logging.LevelDebug)
		case "info":
			c.logger.SetLevel(logging.LevelInfo)
		case "warn":
			c.logger.SetLevel(logging.LevelWarn)
		case "error":
			c.logger.SetLevel(logging.LevelError)
		}
	}

	if c.remoteClient != nil && cfg.Remote.TokenEncrypted != c.config.Remote.TokenEncrypted {
		enc, err := crypto.NewEncryptor()
		if err == nil {
			if token, derr := enc.Decrypt(cfg.Remote.TokenEncrypted); derr == nil {
				c.remoteClient.SetToken(token)
				c.logger.InfoContext(ctx, "remote token updated from config")
			} else {
				c.logger.WarnContext(ctx, "could not decrypt updated remote token", "error", derr.Error())
			}
		}
	}

	if cfg.Remote.Owner != c.config.Remote.Owner ||
		cfg.Remote.Repo != c.config.Remote.Repo ||
		cfg.Remote.Path != c.config.Remote.Path ||
		cfg.Database.Path != c.config.Database.Path {
		c.logger.WarnContext(ctx, "remote or database identity changed, restart required to apply")
	}

	c.config = cfg
}

// Close releases all resources held by the container.
func (c *Container) Close() error {
	ctx := context.Background()

	if c.tracer != nil {
		_ = c.tracer.Shutdown(ctx)
	}

	if c.dbConn != nil {
		return c.dbConn.Close()
	}
	return nil
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// DB returns the database connection.
func (c *Container) DB() *sql.DB {
	return c.db
}

// Cache returns the local cache repository.
func (c *Container) Cache() ports.LocalCachePort {
	return c.cacheRepo
}

// Queue returns the operation queue.
func (c *Container) Queue() *queue.Queue {
	return c.opQueue
}

// Orchestrator returns the sync orchestrator.
func (c *Container) Orchestrator() *appsync.Orchestrator {
	return c.orchestrator
}

// Trucks returns the truck service.
func (c *Container) Trucks() *trucks.Service {
	return c.truckService
}

// Loadings returns the loading service.
func (c *Container) Loadings() *loadings.Service {
	return c.loadService
}

// Parser returns the bulk input parser.
func (c *Container) Parser() ports.ParserPort {
	return c.parser
}

// RemoteClient returns the remote store client, or nil when no remote
// is configured.
func (c *Container) RemoteClient() *github.Client {
	return c.remoteClient
}

// Monitor returns the connectivity monitor, or nil in local-only mode.
func (c *Container) Monitor() *connectivity.Monitor {
	return c.monitor
}

// Logger returns the structured logger.
func (c *Container) Logger() *logging.Logger {
	return c.logger
}

// Tracer returns the OpenTelemetry tracer.
func (c *Container) Tracer() *tracing.Tracer {
	return c.tracer
}

// expandHome resolves a leading ~ in configured paths.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
