package http

import (
	"bytes"
	"encoding/json"
	"errors"
	stdhttp "net/http"

	"github.com/labstack/echo/v4"

	"app-access/internal/application"
	"app-access/internal/domain"
	"app-access/internal/ports"
)

func handleError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "Invalid request"})
	case errors.Is(err, domain.ErrMethodNotAllowed):
		return c.JSON(stdhttp.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(stdhttp.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		return c.JSON(stdhttp.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}

type UserAppsHandler struct {
	service *application.BulkUpdateService
	logger  ports.Logger
}

func NewUserAppsHandler(service *application.BulkUpdateService, logger ports.Logger) *UserAppsHandler {
	return &UserAppsHandler{service: service, logger: logger}
}

// Update applies a batch of permission edits from the admin screen. It is
// mounted for every method so non-POST requests get a JSON 405.
func (h *UserAppsHandler) Update(c echo.Context) error {
	if c.Request().Method != stdhttp.MethodPost {
		return handleError(c, domain.ErrMethodNotAllowed)
	}
	var req struct {
		Updates json.RawMessage `json:"updates"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidUpdates(c)
	}
	updates, ok := decodeUpdates(req.Updates)
	if !ok {
		return invalidUpdates(c)
	}
	ctx := c.Request().Context()
	applied, err := h.service.Apply(ctx, updates)
	if errors.Is(err, domain.ErrInvalidInput) {
		h.logger.Warn(ctx, "rejected permission batch", "requested", len(updates), "error", err)
		return invalidUpdates(c)
	}
	if err != nil {
		h.logger.Error(ctx, "bulk permission update failed", "requested", len(updates), "applied", applied, "error", err)
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, map[string]bool{"success": true})
}

// invalidUpdates is the only rejection body callers see; validation detail
// stays server-side.
func invalidUpdates(c echo.Context) error {
	return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "Invalid updates"})
}

// decodeUpdates accepts only a JSON array of update objects.
func decodeUpdates(raw json.RawMessage) ([]domain.PermissionUpdate, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	var updates []domain.PermissionUpdate
	if err := json.Unmarshal(trimmed, &updates); err != nil {
		return nil, false
	}
	return updates, true
}

type AdminHandler struct {
	service *application.AdminService
}

func NewAdminHandler(service *application.AdminService) *AdminHandler {
	return &AdminHandler{service: service}
}

func (h *AdminHandler) Permissions(c echo.Context) error {
	view, err := h.service.Load(c.Request().Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, view)
}

type MarketplaceHandler struct {
	service *application.ResolverService
}

func NewMarketplaceHandler(service *application.ResolverService) *MarketplaceHandler {
	return &MarketplaceHandler{service: service}
}

// Apps lists the marketplace tiles for the signed-in user. Anonymous callers
// get an empty list.
func (h *MarketplaceHandler) Apps(c echo.Context) error {
	id, _ := ports.IdentityFrom(c.Request().Context())
	return c.JSON(stdhttp.StatusOK, map[string][]domain.AppTile{"apps": h.service.MarketplaceTiles(id.Email)})
}

func (h *MarketplaceHandler) UserApps(c echo.Context) error {
	records, err := h.service.ViewableApps(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, map[string][]domain.PermissionRecord{"permissions": records})
}
