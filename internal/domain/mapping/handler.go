package mapping

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ayush/terminology-portal/internal/platform/auth"
	"github.com/ayush/terminology-portal/internal/platform/fhir"
	"github.com/ayush/terminology-portal/pkg/pagination"
)

// Handler serves mapping resolution, Condition synthesis and catalog curation.
type Handler struct {
	resolver    *Resolver
	synthesizer *Synthesizer
	svc         *Service
}

func NewHandler(resolver *Resolver, synthesizer *Synthesizer, svc *Service) *Handler {
	return &Handler{resolver: resolver, synthesizer: synthesizer, svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/mapping", auth.RequireRole(auth.RoleClinician, auth.RoleTerminologist, auth.RoleEMR))
	g.GET("", h.List)
	g.POST("/synthesize", h.Synthesize)
	g.GET("/records/:id", h.Get)
	g.GET("/code/:code", h.Resolve)
	g.GET("/:code/all", h.ResolveAll)
	g.GET("/:code/condition", h.Condition)
	g.GET("/:code", h.Resolve)

	curate := auth.RequireRole(auth.RoleTerminologist)
	g.POST("", h.Create, curate)
	g.PUT("/records/:id/review", h.Review, curate)
}

// notFoundBody is the 404 shape clients of the resolution endpoints expect.
type notFoundBody struct {
	Error  string       `json:"error"`
	Source notFoundCode `json:"source"`
	Mapped []MappedTerm `json:"mapped"`
}

type notFoundCode struct {
	Code   string `json:"code"`
	System string `json:"system"`
}

func (h *Handler) respondError(c echo.Context, err error) error {
	var nf *NotFoundError
	switch {
	case errors.As(err, &nf):
		return c.JSON(http.StatusNotFound, notFoundBody{
			Error:  "No mappings found",
			Source: notFoundCode{Code: nf.Code, System: nf.System},
			Mapped: []MappedTerm{},
		})
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrStatusChanged):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func codeParam(c echo.Context) string {
	raw := c.Param("code")
	if v, err := url.PathUnescape(raw); err == nil {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(raw)
}

// Resolve handles GET /api/v1/mapping/:code?system=...
func (h *Handler) Resolve(c echo.Context) error {
	res, err := h.resolver.Resolve(c.Request().Context(), codeParam(c), c.QueryParam("system"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ResolveAll handles GET /api/v1/mapping/:code/all?system=...
func (h *Handler) ResolveAll(c echo.Context) error {
	set, err := h.resolver.ResolveAll(c.Request().Context(), codeParam(c), c.QueryParam("system"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, set)
}

// Condition handles GET /api/v1/mapping/:code/condition?system=...&patient=...&encounter=...
func (h *Handler) Condition(c echo.Context) error {
	res, err := h.resolver.Resolve(c.Request().Context(), codeParam(c), c.QueryParam("system"))
	if err != nil {
		return h.respondError(c, err)
	}
	cond := h.synthesizer.Synthesize(res, ConditionOptions{
		Subject:   reference("Patient", c.QueryParam("patient")),
		Encounter: reference("Encounter", c.QueryParam("encounter")),
	})
	return c.JSON(http.StatusOK, cond)
}

// Synthesize handles POST /api/v1/mapping/synthesize
func (h *Handler) Synthesize(c echo.Context) error {
	var req SynthesizeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("invalid request body"))
	}
	if req.Source.Code == "" || req.Source.System == "" {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("source.code and source.system are required"))
	}
	cond := h.synthesizer.Synthesize(&Result{Source: req.Source, Mapped: req.Mapped}, ConditionOptions{
		Subject:   reference("Patient", req.Subject),
		Encounter: reference("Encounter", req.Encounter),
	})
	return c.JSON(http.StatusOK, cond)
}

// reference qualifies a bare id with its resource type.
func reference(resourceType, v string) string {
	if v == "" || strings.Contains(v, "/") {
		return v
	}
	return resourceType + "/" + v
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	records, total, err := h.svc.List(c.Request().Context(), ListFilter{
		SourceSystem: c.QueryParam("sourceSystem"),
		TargetSystem: c.QueryParam("targetSystem"),
		Status:       c.QueryParam("status"),
	}, p.Limit, p.Offset)
	if err != nil {
		return h.respondError(c, err)
	}
	if records == nil {
		records = []*Record{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(records, total, p.Limit, p.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	rec, err := h.svc.Create(ctx, &req, auth.UserIDFromContext(ctx))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, rec)
}

// Review handles PUT /api/v1/mapping/records/:id/review
func (h *Handler) Review(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	rec, err := h.svc.Review(ctx, id, &req, auth.UserIDFromContext(ctx))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}
