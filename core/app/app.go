// Package app assembles the entitlement engine from configuration.
//
// Build connects only what the configuration needs: a database for the
// database backing (and, when reachable, the attempt ledger), Redis for the
// redis backing or publisher, MinIO for the object-store backing.
package app

import (
	"context"
	"errors"
	"fmt"

	"entitlement-manager/core/blobstore"
	"entitlement-manager/core/config"
	"entitlement-manager/core/database"
	"entitlement-manager/core/events"
	"entitlement-manager/core/kv"
	"entitlement-manager/core/ledger"
	"entitlement-manager/core/provider"
	"entitlement-manager/core/reconcile"
	"entitlement-manager/core/storage"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

// Container holds the wired components.
type Container struct {
	Config       *config.Config
	Log          *zap.Logger
	Catalog      *reconcile.StaticCatalog
	Store        *reconcile.Store
	Orchestrator *reconcile.Orchestrator

	// Optional infrastructure; nil when not configured.
	DB       *gorm.DB
	Redis    *redis.Client
	Storage  storage.Client
	Ledger   *ledger.Ledger
	Market   *provider.Memory
	Guard    *provider.Guard
	Memory   *events.Memory
	Backing  blobstore.Backing

	closers []func() error
}

// Option adjusts Build.
type Option func(*buildOptions)

type buildOptions struct {
	catalog *reconcile.StaticCatalog
	db      *gorm.DB
	redis   *redis.Client
	storage storage.Client
	play    []option.ClientOption
}

// WithCatalog skips loading the catalog file.
func WithCatalog(c *reconcile.StaticCatalog) Option {
	return func(o *buildOptions) { o.catalog = c }
}

// WithDB reuses an open database instead of connecting.
func WithDB(db *gorm.DB) Option {
	return func(o *buildOptions) { o.db = db }
}

// WithRedis reuses a redis client instead of connecting.
func WithRedis(client *redis.Client) Option {
	return func(o *buildOptions) { o.redis = client }
}

// WithStorage reuses an object storage client.
func WithStorage(client storage.Client) Option {
	return func(o *buildOptions) { o.storage = client }
}

// WithPlayOptions passes client options to the Developer API service.
func WithPlayOptions(opts ...option.ClientOption) Option {
	return func(o *buildOptions) { o.play = append(o.play, opts...) }
}

// Build wires the engine described by cfg.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...Option) (*Container, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	if !cfg.Store.IsValidBackend() {
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if !cfg.Provider.IsValidBackend() {
		return nil, fmt.Errorf("unknown provider backend %q", cfg.Provider.Backend)
	}

	c := &Container{Config: cfg, Log: log, DB: bo.db, Redis: bo.redis, Storage: bo.storage}

	catalog := bo.catalog
	if catalog == nil {
		loaded, err := reconcile.LoadCatalog(cfg.Catalog.Path)
		if err != nil {
			return nil, err
		}
		catalog = loaded
	}
	c.Catalog = catalog

	fail := func(err error) (*Container, error) {
		_ = c.Close()
		return nil, err
	}

	if err := c.connectDatabase(ctx); err != nil {
		return fail(err)
	}
	if err := c.connectRedis(ctx); err != nil {
		return fail(err)
	}

	backing, err := c.backing(ctx)
	if err != nil {
		return fail(err)
	}
	c.Backing = backing
	c.Store = reconcile.NewStore(backing, cfg.Store.Prefix)

	finalizer, err := c.finalizer(ctx, bo.play)
	if err != nil {
		return fail(err)
	}
	c.Guard = provider.NewGuard(finalizer, cfg.Provider, log)

	metrics, err := reconcile.NewMetrics(otel.Meter("entitlement-manager"))
	if err != nil {
		return fail(fmt.Errorf("failed to create metrics: %w", err))
	}

	execOpts := []reconcile.ExecutorOption{reconcile.WithMetrics(metrics)}
	if c.Ledger != nil {
		execOpts = append(execOpts, reconcile.WithJournal(c.Ledger))
	}
	executor := reconcile.NewExecutor(c.Store, c.Guard, cfg.Finalize, log, execOpts...)

	orchOpts := []reconcile.OrchestratorOption{
		reconcile.WithSnapshotConfig(cfg.Snapshot),
		reconcile.WithPackageName(cfg.Provider.PackageName),
		reconcile.WithPassMetrics(metrics),
	}
	if c.Market != nil {
		orchOpts = append(orchOpts, reconcile.WithPurchaseSource(c.Market), reconcile.WithLauncher(c.Market))
	}
	publisher, err := c.publisher()
	if err != nil {
		return fail(err)
	}
	if publisher != nil {
		orchOpts = append(orchOpts, reconcile.WithPublisher(publisher))
	}

	c.Orchestrator = reconcile.NewOrchestrator(catalog, c.Store, executor, log, orchOpts...)

	if c.Market != nil {
		orch := c.Orchestrator
		c.Market.OnPurchaseUpdate(func(ctx context.Context, userID string, reports []reconcile.PurchaseReport) {
			if _, err := orch.HandlePurchaseUpdate(ctx, userID, reports); err != nil {
				log.Error("Purchase update pass failed", zap.String("user_id", userID), zap.Error(err))
			}
		})
	}

	log.Info("Entitlement engine ready",
		zap.String("store", cfg.Store.Backend),
		zap.String("provider", cfg.Provider.Backend),
		zap.String("events", cfg.Events.Backend),
		zap.Int("products", len(catalog.ProductIDs())),
		zap.Bool("ledger", c.Ledger != nil),
	)
	return c, nil
}

func (c *Container) connectDatabase(ctx context.Context) error {
	required := c.Config.Store.Backend == blobstore.BackendDatabase
	if c.DB == nil {
		db, err := database.Connect(c.Config.Database)
		if err != nil {
			if required {
				return fmt.Errorf("database backing: %w", err)
			}
			c.Log.Warn("Optional database connection failed, attempt ledger disabled", zap.Error(err))
			return nil
		}
		c.DB = db
		c.closers = append(c.closers, func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
	}
	l := ledger.New(c.DB)
	if err := l.Migrate(ctx); err != nil {
		return err
	}
	c.Ledger = l
	return nil
}

func (c *Container) connectRedis(ctx context.Context) error {
	needed := c.Config.Store.Backend == blobstore.BackendRedis || c.Config.Events.Backend == events.BackendRedis
	if !needed || c.Redis != nil {
		return nil
	}
	client, err := kv.Connect(ctx, c.Config.Redis)
	if err != nil {
		return err
	}
	c.Redis = client
	c.closers = append(c.closers, client.Close)
	return nil
}

func (c *Container) backing(ctx context.Context) (blobstore.Backing, error) {
	switch c.Config.Store.Backend {
	case blobstore.BackendMinio:
		if c.Storage == nil {
			client, err := storage.NewClient(c.Config.Storage)
			if err != nil {
				return nil, err
			}
			c.Storage = client
		}
		created, err := storage.EnsureBucket(ctx, c.Storage, c.Config.Storage.Bucket, c.Config.Storage.Region)
		if err != nil {
			return nil, err
		}
		if created {
			c.Log.Info("Created entitlement bucket", zap.String("bucket", c.Config.Storage.Bucket))
		}
		return blobstore.NewMinio(c.Storage, c.Config.Storage.Bucket), nil
	case blobstore.BackendDatabase:
		sql := blobstore.NewSQL(c.DB)
		if err := sql.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate blob table: %w", err)
		}
		return sql, nil
	case blobstore.BackendRedis:
		return blobstore.NewRedis(c.Redis, c.Config.Store.Prefix), nil
	default:
		return blobstore.NewMemory(), nil
	}
}

func (c *Container) finalizer(ctx context.Context, opts []option.ClientOption) (reconcile.Finalizer, error) {
	if c.Config.Provider.Backend == provider.BackendPlayStore {
		return provider.NewPlayStore(ctx, c.Config.Provider, opts...)
	}
	c.Market = provider.NewMemory(c.Catalog)
	return c.Market, nil
}

func (c *Container) publisher() (reconcile.SnapshotPublisher, error) {
	switch c.Config.Events.Backend {
	case events.BackendMemory:
		c.Memory = events.NewMemory()
		return c.Memory, nil
	case events.BackendRedis:
		return events.NewRedis(c.Redis, c.Config.Events.Channel, c.Log), nil
	case events.BackendRabbitMQ:
		p, err := events.NewRabbitMQ(c.Config.Events.AMQPURL, c.Config.Events.Exchange, c.Log)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, p.Close)
		return p, nil
	case events.BackendNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", c.Config.Events.Backend)
	}
}

// Close releases every connection Build opened, newest first.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
