package mapping

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ayush/terminology-portal/internal/platform/fhir"
	"github.com/ayush/terminology-portal/pkg/pagination"
)

func newTestHandler() (*Handler, *mockRepo, *echo.Echo) {
	resolver, repo, _ := newTestResolver()
	svc := NewService(repo)
	return NewHandler(resolver, newTestSynthesizer(), svc), repo, echo.New()
}

func TestHandler_Resolve_Success(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mapping/NAM-A01.1?system=NAMASTE", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("code")
	c.SetParamValues("NAM-A01.1")

	if err := h.Resolve(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var body Result
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Mapped) != 2 || body.Mapped[0].Code != "JA20.0" || body.Mapped[1].Code != "MG2A.01" {
		t.Errorf("unexpected mapped terms: %+v", body.Mapped)
	}
}

func TestHandler_Resolve_EscapedCode(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mapping/NAM-A01%2E1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("code")
	c.SetParamValues("NAM-A01%2E1")

	if err := h.Resolve(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_Resolve_NotFound(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mapping/NOPE999", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("code")
	c.SetParamValues("NOPE999")

	if err := h.Resolve(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "No mappings found" {
		t.Errorf("unexpected error message: %v", body["error"])
	}
	source, _ := body["source"].(map[string]interface{})
	if source["code"] != "NOPE999" || source["system"] != "Unknown" {
		t.Errorf("unexpected source: %v", body["source"])
	}
	mapped, ok := body["mapped"].([]interface{})
	if !ok || len(mapped) != 0 {
		t.Errorf("expected empty mapped array, got %v", body["mapped"])
	}
}

func TestHandler_ResolveAll(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mapping/NAM-A01.1/all", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("code")
	c.SetParamValues("NAM-A01.1")

	if err := h.ResolveAll(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body ResultSet
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Matches != 1 || len(body.Results) != 1 {
		t.Errorf("expected 1 match, got %+v", body)
	}
}

func TestHandler_Condition(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mapping/NAM-A01.1/condition?system=NAMASTE&patient=p-1&encounter=Encounter/e-9", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("code")
	c.SetParamValues("NAM-A01.1")

	if err := h.Condition(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var cond fhir.Condition
	if err := json.Unmarshal(rec.Body.Bytes(), &cond); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cond.Code.Coding) != 3 {
		t.Fatalf("expected 3 codings, got %d", len(cond.Code.Coding))
	}
	if cond.Subject == nil || cond.Subject.Reference != "Patient/p-1" {
		t.Errorf("unexpected subject: %+v", cond.Subject)
	}
	if cond.Encounter == nil || cond.Encounter.Reference != "Encounter/e-9" {
		t.Errorf("unexpected encounter: %+v", cond.Encounter)
	}
}

func TestHandler_Synthesize(t *testing.T) {
	h, _, e := newTestHandler()

	body := `{"source":{"term":"Humma","code":"U-1","system":"Unani Tibb"},"mapped":[{"term":"Fever","code":"JA20.0","system":"ICD-11 TM2","confidence":0.6,"mappingType":"related"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mapping/synthesize", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Synthesize(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var cond fhir.Condition
	if err := json.Unmarshal(rec.Body.Bytes(), &cond); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cond.Code.Coding[0].System != "http://terminology.system/unani-tibb" {
		t.Errorf("unexpected source system: %s", cond.Code.Coding[0].System)
	}
}

func TestHandler_Synthesize_MissingSource(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/mapping/synthesize", strings.NewReader(`{"mapped":[]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Synthesize(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_Create(t *testing.T) {
	h, repo, e := newTestHandler()

	body := `{"sourceTerm":{"term":"Kasa (Cough)","code":"NAM-B02.3","system":"NAMASTE"},"mappedTerms":[{"term":"Cough","code":"MD12","system":"ICD-11 BIOMEDICINE","confidence":0.85,"mappingType":"exact"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mapping", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if len(repo.records) != 2 {
		t.Errorf("expected 2 records, got %d", len(repo.records))
	}
}

func TestHandler_Create_Invalid(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/mapping", strings.NewReader(`{"sourceTerm":{"code":"X"}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Create(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", httpErr.Code)
	}
}

func TestHandler_Review_InvalidTransition(t *testing.T) {
	h, repo, e := newTestHandler()
	id := repo.records[0].ID

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"status":"reviewed"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	err := h.Review(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", httpErr.Code)
	}
}

func TestHandler_Get_BadID(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.Get(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_List(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mapping?status=approved&limit=5", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body pagination.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 1 || body.Limit != 5 {
		t.Errorf("unexpected page: total=%d limit=%d", body.Total, body.Limit)
	}
}
