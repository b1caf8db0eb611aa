package integrity

import (
	"errors"

	"entitlement-manager/core/logger"
	"entitlement-manager/core/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for integrity checks.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the integrity routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/integrity")
	group.Get("/", h.HandleIntegrityCheck)
	group.Get("/bucket", h.HandleBucketCheck)
	group.Get("/schema", h.HandleSchemaCheck)
	group.Get("/catalog", h.HandleCatalogCheck)
	group.Get("/redis", h.HandleRedisCheck)
}

// HandleIntegrityCheck triggers all integrity checks.
// @Summary Run All Integrity Checks
// @Description Performs every integrity check (bucket, schema, catalog, redis). Checks for unused backends are reported as skipped.
// @Tags integrity
// @Produce json
// @Success 200 {object} map[string]interface{} "Combined Report"
// @Router /integrity [get]
func (h *Handler) HandleIntegrityCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Info("Triggering all integrity checks")
	return c.JSON(h.service.RunAll(c.Context()))
}

// HandleBucketCheck checks and optionally creates the bucket.
// @Summary Check Bucket
// @Description Checks that the entitlement bucket exists. Optionally creates it.
// @Tags integrity
// @Produce json
// @Param fix query boolean false "Create a missing bucket"
// @Success 200 {object} checks.BucketReport
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Failure 501 {object} map[string]string "Not Configured"
// @Router /integrity/bucket [get]
func (h *Handler) HandleBucketCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	report, err := h.service.CheckBucket(c.Context())
	if err != nil {
		return h.fail(c, l, "Bucket check failed", err)
	}
	if !report.Exists && utils.ToBool(c.Query("fix"), false) {
		l.Info("Attempting to create missing bucket", zap.String("bucket", report.Bucket))
		report, err = h.service.FixBucket(c.Context())
		if err != nil {
			return h.fail(c, l, "Bucket fix failed", err)
		}
	}
	return c.JSON(report)
}

// HandleSchemaCheck checks and optionally migrates the schema.
// @Summary Check Schema
// @Description Compares the entitlement_blobs and entitlement_attempts tables with their models. Optionally migrates them.
// @Tags integrity
// @Produce json
// @Param fix query boolean false "Migrate drifted tables"
// @Success 200 {object} checks.SchemaReport
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Failure 501 {object} map[string]string "Not Configured"
// @Router /integrity/schema [get]
func (h *Handler) HandleSchemaCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	report, err := h.service.CheckSchema(c.Context())
	if err != nil {
		return h.fail(c, l, "Schema check failed", err)
	}
	if !report.Matched && utils.ToBool(c.Query("fix"), false) {
		l.Info("Attempting to migrate schema")
		if err := h.service.FixSchema(c.Context()); err != nil {
			return h.fail(c, l, "Schema fix failed", err)
		}
		if report, err = h.service.CheckSchema(c.Context()); err != nil {
			return h.fail(c, l, "Schema check failed", err)
		}
	}
	return c.JSON(report)
}

// HandleCatalogCheck validates the catalog.
// @Summary Check Catalog
// @Description Validates the product catalog and counts products per kind.
// @Tags integrity
// @Produce json
// @Success 200 {object} checks.CatalogReport
// @Router /integrity/catalog [get]
func (h *Handler) HandleCatalogCheck(c *fiber.Ctx) error {
	report, err := h.service.CheckCatalog()
	if err != nil {
		return h.fail(c, logger.WithRayID(h.service.logger, c), "Catalog check failed", err)
	}
	return c.JSON(report)
}

// HandleRedisCheck pings redis.
// @Summary Check Redis
// @Description Pings the redis server used by the redis backing or publisher.
// @Tags integrity
// @Produce json
// @Success 200 {object} checks.RedisReport
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Failure 501 {object} map[string]string "Not Configured"
// @Router /integrity/redis [get]
func (h *Handler) HandleRedisCheck(c *fiber.Ctx) error {
	report, err := h.service.CheckRedis(c.Context())
	if err != nil {
		return h.fail(c, logger.WithRayID(h.service.logger, c), "Redis check failed", err)
	}
	return c.JSON(report)
}

func (h *Handler) fail(c *fiber.Ctx, l *zap.Logger, msg string, err error) error {
	if errors.Is(err, ErrNotConfigured) {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": err.Error()})
	}
	l.Error(msg, zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
