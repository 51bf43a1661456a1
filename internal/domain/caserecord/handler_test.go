package caserecord

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_Create(t *testing.T) {
	h := NewHandler(NewService(newMockRepo()))
	e := echo.New()

	body := `{"patient_id":"` + uuid.NewString() + `","location_id":"` + uuid.NewString() + `","diag_date":"2024-01-02","status":"active"}`
	rec := httptest.NewRecorder()
	if err := h.Create(e.NewContext(jsonRequest(http.MethodPost, body), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"diag_date":"2024-01-02"`) {
		t.Errorf("expected ISO diag_date in body, got %s", rec.Body.String())
	}
}

func TestHandler_Create_InvalidStatus(t *testing.T) {
	h := NewHandler(NewService(newMockRepo()))
	e := echo.New()
	body := `{"patient_id":"` + uuid.NewString() + `","location_id":"` + uuid.NewString() + `","diag_date":"2024-01-02","status":"zombie"}`
	err := h.Create(e.NewContext(jsonRequest(http.MethodPost, body), httptest.NewRecorder()))
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_Update_NotFound(t *testing.T) {
	h := NewHandler(NewService(newMockRepo()))
	e := echo.New()
	c := e.NewContext(jsonRequest(http.MethodPut, `{"status":"recovered"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	err := h.Update(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
