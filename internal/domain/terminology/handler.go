package terminology

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ayush/terminology-portal/internal/platform/auth"
)

// Handler provides REST endpoints for the terminology catalog.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers terminology routes on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/terminology", auth.RequireRole(auth.RoleClinician, auth.RoleTerminologist, auth.RoleEMR))
	g.GET("/search", h.Search)
	g.GET("/systems", h.Systems)
	g.GET("/stats", h.Stats)
	g.GET("/lookup", h.Lookup)
	g.GET("/:id", h.Get)

	curate := auth.RequireRole(auth.RoleTerminologist)
	g.POST("", h.Create, curate)
	g.PUT("/:id", h.Update, curate)
	g.DELETE("/:id", h.Deactivate, curate)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateCode):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// Search handles GET /api/v1/terminology/search?q=...&system=...&limit=...
func (h *Handler) Search(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	results, err := h.svc.Search(c.Request().Context(), SearchQuery{
		Text:   c.QueryParam("q"),
		System: c.QueryParam("system"),
		Limit:  limit,
	})
	if err != nil {
		return httpError(err)
	}
	if results == nil {
		results = []*Entry{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// Lookup handles GET /api/v1/terminology/lookup?code=...&system=...
func (h *Handler) Lookup(c echo.Context) error {
	e, err := h.svc.Lookup(c.Request().Context(), c.QueryParam("code"), c.QueryParam("system"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	e, err := h.svc.Create(ctx, &req, auth.UserIDFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	e, err := h.svc.Update(ctx, id, &req, auth.UserIDFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

// Deactivate handles DELETE /api/v1/terminology/:id. Entries are soft-deleted.
func (h *Handler) Deactivate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.Deactivate(ctx, id, auth.UserIDFromContext(ctx)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Systems(c echo.Context) error {
	systems, err := h.svc.Systems(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if systems == nil {
		systems = []string{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"systems": systems})
}

func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	total := 0
	for _, s := range stats {
		total += s.Count
	}
	if stats == nil {
		stats = []SystemCount{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"bySystem": stats,
		"total":    total,
	})
}
