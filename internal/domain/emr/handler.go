package emr

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ayush/terminology-portal/internal/platform/auth"
	"github.com/ayush/terminology-portal/pkg/pagination"
)

// Handler serves EMR submission intake and status.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/emr", auth.RequireRole(auth.RoleEMR, auth.RoleClinician, auth.RoleTerminologist))
	g.GET("", h.List)
	g.GET("/recent-bundles", h.RecentBundles)
	g.GET("/recent-bundles/:id", h.RecentBundle)
	g.GET("/patient/:patientId", h.ListByPatient)
	g.GET("/:id", h.Get)

	g.POST("/submit", h.Submit, auth.RequireRole(auth.RoleEMR, auth.RoleClinician))
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// bodyTooLarge finds the 413 raised by the body limit while a bundle was
// still being read.
func bodyTooLarge(err error) (*echo.HTTPError, bool) {
	for err != nil {
		var he *echo.HTTPError
		if !errors.As(err, &he) {
			return nil, false
		}
		if he.Code == http.StatusRequestEntityTooLarge {
			return he, true
		}
		err = he.Internal
	}
	return nil, false
}

// Submit handles POST /api/v1/emr/submit
func (h *Handler) Submit(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		if he, ok := bodyTooLarge(err); ok {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	handle, err := h.svc.Submit(ctx, &req, auth.UserIDFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, handle)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sub, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sub)
}

type listResponse struct {
	Submissions []*Submission       `json:"submissions"`
	Pagination  pagination.PageInfo `json:"pagination"`
}

// List handles GET /api/v1/emr?status=&patientId=&clinicianId=&startDate=&endDate=&page=&limit=
func (h *Handler) List(c echo.Context) error {
	f := ListFilter{
		Status:      c.QueryParam("status"),
		PatientID:   c.QueryParam("patientId"),
		ClinicianID: c.QueryParam("clinicianId"),
	}
	var err error
	if f.From, err = parseDate(c.QueryParam("startDate")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid startDate")
	}
	if f.To, err = parseDate(c.QueryParam("endDate")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid endDate")
	}
	page := pagination.PageFromContext(c)
	subs, total, err := h.svc.List(c.Request().Context(), f, page.Size, page.Offset())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, listResponse{Submissions: nonNil(subs), Pagination: page.Info(total)})
}

// ListByPatient handles GET /api/v1/emr/patient/:patientId
func (h *Handler) ListByPatient(c echo.Context) error {
	page := pagination.PageFromContext(c)
	subs, total, err := h.svc.ListByPatient(c.Request().Context(), c.Param("patientId"), page.Size, page.Offset())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, listResponse{Submissions: nonNil(subs), Pagination: page.Info(total)})
}

type recentBundleSummary struct {
	ID              string    `json:"id"`
	PatientID       string    `json:"patientId"`
	ClinicianID     string    `json:"clinicianId"`
	Timestamp       time.Time `json:"timestamp"`
	BundleAvailable bool      `json:"bundleAvailable"`
}

// RecentBundles handles GET /api/v1/emr/recent-bundles
func (h *Handler) RecentBundles(c echo.Context) error {
	entries := h.svc.RecentBundles()
	out := make([]recentBundleSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, recentBundleSummary{
			ID:              e.Metadata.ID,
			PatientID:       e.Metadata.PatientID,
			ClinicianID:     e.Metadata.ClinicianID,
			Timestamp:       e.Timestamp,
			BundleAvailable: len(e.Bundle) > 0,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"recentBundles": out,
		"count":         len(out),
		"maxCacheSize":  h.svc.CacheCapacity(),
	})
}

// RecentBundle handles GET /api/v1/emr/recent-bundles/:id
func (h *Handler) RecentBundle(c echo.Context) error {
	e, err := h.svc.RecentBundle(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "bundle not found in cache")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"metadata":  e.Metadata,
		"timestamp": e.Timestamp,
		"bundle":    json.RawMessage(e.Bundle),
	})
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, errors.New("unrecognized date")
}

func nonNil(subs []*Submission) []*Submission {
	if subs == nil {
		return []*Submission{}
	}
	return subs
}
