package integrity

import (
	"context"
	"errors"

	"entitlement-manager/core/reconcile"
	"entitlement-manager/core/storage"
	"entitlement-manager/feature/integrity/checks"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotConfigured is returned by checks whose target is not in use.
var ErrNotConfigured = errors.New("not configured")

// Targets are the dependencies to check. Nil targets are skipped.
type Targets struct {
	Storage storage.Client
	Bucket  string
	Region  string
	DB      *gorm.DB
	Redis   redis.Cmdable
	Catalog reconcile.Catalog
}

// Service handles integrity checks.
type Service struct {
	targets Targets
	logger  *zap.Logger
}

// NewService creates a new integrity service.
func NewService(targets Targets, logger *zap.Logger) *Service {
	return &Service{targets: targets, logger: logger}
}

// CheckBucket reports whether the entitlement bucket exists.
func (s *Service) CheckBucket(ctx context.Context) (*checks.BucketReport, error) {
	if s.targets.Storage == nil {
		return nil, ErrNotConfigured
	}
	return checks.CheckBucket(ctx, s.targets.Storage, s.targets.Bucket)
}

// FixBucket creates the entitlement bucket.
func (s *Service) FixBucket(ctx context.Context) (*checks.BucketReport, error) {
	if s.targets.Storage == nil {
		return nil, ErrNotConfigured
	}
	return checks.FixBucket(ctx, s.targets.Storage, s.targets.Bucket, s.targets.Region, s.logger)
}

// CheckSchema compares the blob and attempt tables with their models.
func (s *Service) CheckSchema(ctx context.Context) (*checks.SchemaReport, error) {
	if s.targets.DB == nil {
		return nil, ErrNotConfigured
	}
	return checks.CheckSchema(s.targets.DB.WithContext(ctx), checks.SchemaModels()...)
}

// FixSchema migrates the blob and attempt tables.
func (s *Service) FixSchema(ctx context.Context) error {
	if s.targets.DB == nil {
		return ErrNotConfigured
	}
	return checks.FixSchema(s.targets.DB.WithContext(ctx), checks.SchemaModels()...)
}

// CheckCatalog validates the product catalog.
func (s *Service) CheckCatalog() (*checks.CatalogReport, error) {
	if s.targets.Catalog == nil {
		return nil, ErrNotConfigured
	}
	return checks.CheckCatalog(s.targets.Catalog)
}

// CheckRedis pings redis.
func (s *Service) CheckRedis(ctx context.Context) (*checks.RedisReport, error) {
	if s.targets.Redis == nil {
		return nil, ErrNotConfigured
	}
	return checks.CheckRedis(ctx, s.targets.Redis)
}

// RunAll runs every check and returns a combined report keyed by check name.
func (s *Service) RunAll(ctx context.Context) map[string]any {
	report := make(map[string]any)
	record := func(name string, result any, err error) {
		switch {
		case errors.Is(err, ErrNotConfigured):
			report[name] = map[string]any{"status": "skipped"}
		case err != nil:
			report[name] = map[string]any{"status": "error", "error": err.Error()}
		default:
			report[name] = map[string]any{"status": "ok", "report": result}
		}
	}

	bucket, err := s.CheckBucket(ctx)
	record("bucket", bucket, err)
	schema, err := s.CheckSchema(ctx)
	record("schema", schema, err)
	catalog, err := s.CheckCatalog()
	record("catalog", catalog, err)
	ping, err := s.CheckRedis(ctx)
	record("redis", ping, err)
	return report
}
