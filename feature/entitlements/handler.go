package entitlements

import (
	"errors"

	"entitlement-manager/core/logger"
	"entitlement-manager/core/reconcile"
	"entitlement-manager/core/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for entitlements.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the entitlement routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/catalog", h.HandleCatalog)

	group := app.Group("/entitlements/:user")
	group.Get("/", h.HandleSnapshot)
	group.Post("/reconcile", h.HandleReconcile)
	group.Post("/sync", h.HandleSync)
	group.Post("/updates", h.HandleUpdates)
	group.Post("/purchases/:product", h.HandlePurchase)
	group.Get("/manage", h.HandleManage)
	group.Get("/manage/:product", h.HandleManage)
	group.Get("/attempts", h.HandleAttempts)
}

// UpdateRequest is the body of a purchase update notification.
type UpdateRequest struct {
	Reports []reconcile.PurchaseReport `json:"reports"`
}

// HandleCatalog lists the products.
// @Summary List Products
// @Description Returns the product catalog with each product's lifecycle kind.
// @Tags entitlements
// @Produce json
// @Success 200 {array} reconcile.Product
// @Router /catalog [get]
func (h *Handler) HandleCatalog(c *fiber.Ctx) error {
	return c.JSON(h.service.Products())
}

// HandleSnapshot returns the user's entitlements.
// @Summary Get Entitlements
// @Description Returns the current entitlement snapshot of a user.
// @Tags entitlements
// @Produce json
// @Param user path string true "User ID"
// @Success 200 {object} reconcile.Snapshot
// @Failure 503 {object} map[string]string "Storage Unavailable"
// @Router /entitlements/{user} [get]
func (h *Handler) HandleSnapshot(c *fiber.Ctx) error {
	snap, err := h.service.Snapshot(c.Context(), c.Params("user"))
	if err != nil {
		return h.fail(c, "Snapshot failed", err)
	}
	return c.JSON(snap)
}

// HandleReconcile reconciles a batch of purchase reports.
// @Summary Reconcile Purchases
// @Description Runs a reconciliation pass over the posted batch. The batch holds every purchase of the user unless partial is set, so active subscriptions missing from it lapse. With dry_run the planned effects are returned and nothing is applied.
// @Tags entitlements
// @Accept json
// @Produce json
// @Param user path string true "User ID"
// @Param dry_run query boolean false "Plan only"
// @Param trigger query string false "Pass trigger (connected, resume, restore, purchase_update, manual)"
// @Param batch body reconcile.Batch true "Purchase batch"
// @Success 200 {object} reconcile.PassReport
// @Failure 400 {object} map[string]string "Invalid Batch"
// @Failure 503 {object} map[string]string "Storage Unavailable"
// @Router /entitlements/{user}/reconcile [post]
func (h *Handler) HandleReconcile(c *fiber.Ctx) error {
	var batch reconcile.Batch
	if err := c.BodyParser(&batch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	trigger, ok := parseTrigger(c.Query("trigger"), reconcile.TriggerManual)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown trigger"})
	}

	user := c.Params("user")
	if utils.ToBool(c.Query("dry_run"), false) {
		plan, err := h.service.Plan(c.Context(), user, batch)
		if err != nil {
			return h.fail(c, "Plan failed", err)
		}
		return c.JSON(plan)
	}

	report, err := h.service.Reconcile(c.Context(), user, trigger, batch)
	if err != nil {
		return h.fail(c, "Reconcile failed", err)
	}
	return c.JSON(report)
}

// HandleSync re-queries the provider.
// @Summary Sync Purchases
// @Description Queries the billing provider for every product type and runs a full pass. Used for connect, resume and restore.
// @Tags entitlements
// @Produce json
// @Param user path string true "User ID"
// @Param trigger query string false "Pass trigger" default(restore)
// @Success 200 {object} reconcile.PassReport
// @Failure 501 {object} map[string]string "No Purchase Source"
// @Failure 502 {object} map[string]string "Provider Error"
// @Router /entitlements/{user}/sync [post]
func (h *Handler) HandleSync(c *fiber.Ctx) error {
	trigger, ok := parseTrigger(c.Query("trigger"), reconcile.TriggerRestore)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown trigger"})
	}
	report, err := h.service.Sync(c.Context(), c.Params("user"), trigger)
	if err != nil {
		return h.fail(c, "Sync failed", err)
	}
	return c.JSON(report)
}

// HandleUpdates handles a purchase update notification.
// @Summary Purchase Update
// @Description Runs a partial pass for purchases delivered by a purchase update. Partial passes never lapse subscriptions.
// @Tags entitlements
// @Accept json
// @Produce json
// @Param user path string true "User ID"
// @Param update body UpdateRequest true "Updated purchases"
// @Success 200 {object} reconcile.PassReport
// @Failure 400 {object} map[string]string "Invalid Batch"
// @Router /entitlements/{user}/updates [post]
func (h *Handler) HandleUpdates(c *fiber.Ctx) error {
	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	report, err := h.service.Update(c.Context(), c.Params("user"), req.Reports)
	if err != nil {
		return h.fail(c, "Purchase update failed", err)
	}
	return c.JSON(report)
}

// HandlePurchase launches a purchase flow.
// @Summary Launch Purchase
// @Description Starts the provider purchase flow for a product the user may currently buy.
// @Tags entitlements
// @Produce json
// @Param user path string true "User ID"
// @Param product path string true "Product ID"
// @Success 202 {object} reconcile.Snapshot
// @Failure 404 {object} map[string]string "Unknown Product"
// @Failure 409 {object} map[string]string "Not Purchasable"
// @Router /entitlements/{user}/purchases/{product} [post]
func (h *Handler) HandlePurchase(c *fiber.Ctx) error {
	snap, err := h.service.Purchase(c.Context(), c.Params("user"), c.Params("product"))
	if err != nil {
		return h.fail(c, "Purchase launch failed", err)
	}
	return c.Status(fiber.StatusAccepted).JSON(snap)
}

// HandleManage returns the subscription management link.
// @Summary Manage Subscription
// @Description Returns the store link where the user manages a subscription, or the subscription list without a product.
// @Tags entitlements
// @Produce json
// @Param user path string true "User ID"
// @Param product path string false "Subscription product ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string "Not A Subscription"
// @Failure 404 {object} map[string]string "Unknown Product"
// @Router /entitlements/{user}/manage/{product} [get]
func (h *Handler) HandleManage(c *fiber.Ctx) error {
	link, err := h.service.ManageURL(c.Params("product"))
	if err != nil {
		return h.fail(c, "Manage link failed", err)
	}
	return c.JSON(fiber.Map{"url": link})
}

// HandleAttempts lists finalization attempts.
// @Summary List Finalization Attempts
// @Description Returns the journaled acknowledge and consume calls of a user, newest first.
// @Tags entitlements
// @Produce json
// @Param user path string true "User ID"
// @Param limit query int false "Maximum rows" default(50)
// @Success 200 {array} ledger.AttemptRow
// @Failure 501 {object} map[string]string "Ledger Not Configured"
// @Router /entitlements/{user}/attempts [get]
func (h *Handler) HandleAttempts(c *fiber.Ctx) error {
	limit := utils.ToInt(c.Query("limit"), 50, 1, 500)
	rows, err := h.service.Attempts(c.Context(), c.Params("user"), limit)
	if err != nil {
		return h.fail(c, "Attempt listing failed", err)
	}
	return c.JSON(rows)
}

func (h *Handler) fail(c *fiber.Ctx, msg string, err error) error {
	status := statusFor(err)
	l := logger.WithUser(logger.WithRayID(h.service.logger, c), c.Params("user"))
	if status >= fiber.StatusInternalServerError {
		l.Error(msg, zap.Error(err))
	} else {
		l.Warn(msg, zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	var perr *reconcile.ProviderError
	switch {
	case errors.Is(err, ErrInvalidBatch):
		return fiber.StatusBadRequest
	case errors.Is(err, reconcile.ErrUnknownProduct):
		return fiber.StatusNotFound
	case errors.Is(err, reconcile.ErrNotPurchasable):
		return fiber.StatusConflict
	case errors.Is(err, reconcile.ErrNoProvider), errors.Is(err, ErrNoLedger):
		return fiber.StatusNotImplemented
	case errors.Is(err, reconcile.ErrStorage):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &perr):
		if perr.Code == reconcile.CodeItemAlreadyOwned {
			return fiber.StatusConflict
		}
		return fiber.StatusBadGateway
	case errors.Is(err, reconcile.ErrNotSubscription):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func parseTrigger(raw string, def reconcile.Trigger) (reconcile.Trigger, bool) {
	if raw == "" {
		return def, true
	}
	return reconcile.ParseTrigger(raw)
}
