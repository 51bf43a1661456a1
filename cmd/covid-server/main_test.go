package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/covidtrack/covid-server/internal/config"
	"github.com/covidtrack/covid-server/internal/domain/caserecord"
	"github.com/covidtrack/covid-server/internal/domain/dashboard"
	"github.com/covidtrack/covid-server/internal/domain/forecast"
	"github.com/covidtrack/covid-server/internal/domain/identity"
	"github.com/covidtrack/covid-server/internal/domain/location"
	"github.com/covidtrack/covid-server/internal/domain/reminder"
	"github.com/covidtrack/covid-server/internal/domain/statestats"
	"github.com/covidtrack/covid-server/internal/domain/vaccination"
	"github.com/covidtrack/covid-server/internal/platform/auth"
	"github.com/covidtrack/covid-server/internal/platform/db"
	"github.com/covidtrack/covid-server/internal/platform/notification"
	"github.com/covidtrack/covid-server/internal/platform/websocket"
)

type stubVerifier struct {
	principals map[string]auth.Principal
}

func (v stubVerifier) Verify(token string) (auth.Principal, error) {
	if p, ok := v.principals[token]; ok {
		return p, nil
	}
	return auth.Principal{}, errors.New("invalid token")
}

func testServer(t *testing.T, verifier auth.Verifier) *echo.Echo {
	t.Helper()
	cfg := &config.Config{CORSOrigins: []string{"*"}, RateLimitRPS: 1000, RateLimitBurst: 1000}
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	dispatcher := notification.NewDispatcher(&notification.MemoryPublisher{}, 0)
	t.Cleanup(func() { dispatcher.Close() })

	return newEcho(cfg, zerolog.Nop(), verifier, nil, routes{
		identity:     identity.NewHandler(identity.NewService(nil, nil, db.NoTx{}, issuer, 4)),
		locations:    location.NewHandler(location.NewService(nil)),
		cases:        caserecord.NewHandler(caserecord.NewService(nil)),
		vaccinations: vaccination.NewHandler(vaccination.NewService(nil, db.NoTx{})),
		reminders:    reminder.NewHandler(reminder.NewService(nil, db.NoTx{})),
		deliveries:   notification.NewHandler(dispatcher),
		stream:       websocket.NewHandler(websocket.NewHub(), zerolog.Nop()),
		stateStats:   statestats.NewHandler(statestats.NewService(nil)),
		dashboard:    dashboard.NewHandler(nil),
		forecast:     forecast.NewHandler(forecast.NewService(forecast.NewSource("testdata/missing.csv"), forecast.LinearForecaster{})),
	})
}

func TestServer_HealthIsPublic(t *testing.T) {
	e := testServer(t, stubVerifier{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestServer_ProtectedRoutesRequireToken(t *testing.T) {
	e := testServer(t, stubVerifier{})

	for _, path := range []string{
		"/api/users",
		"/api/patients/me",
		"/api/vaccinations",
		"/api/notifications/me",
		"/api/notifications/admin/due",
		"/api/notifications/stream",
		"/api/state-stats",
		"/api/predict/states",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestServer_RoleChecks(t *testing.T) {
	userToken := "user-token"
	e := testServer(t, stubVerifier{principals: map[string]auth.Principal{
		userToken: {UserID: uuid.New(), Role: auth.RoleUser},
	}})

	for _, path := range []string{"/api/users", "/api/admin/metrics", "/api/notifications/admin/due", "/api/notifications/admin/deliveries"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+userToken)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s: expected 403 for role user, got %d", path, rec.Code)
		}
	}
}

func TestServer_RegisterIsPublic(t *testing.T) {
	e := testServer(t, stubVerifier{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected validation error 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAPIOnly(t *testing.T) {
	blocked := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return echo.NewHTTPError(http.StatusTooManyRequests)
		}
	}
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	h := apiOnly(blocked)(ok)

	tests := []struct {
		path string
		want int
	}{
		{"/api/health", http.StatusTooManyRequests},
		{"/health/db", http.StatusNoContent},
		{"/apidocs", http.StatusNoContent},
	}
	e := echo.New()
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, tt.path, nil), rec)
		err := h(c)
		got := rec.Code
		var he *echo.HTTPError
		if errors.As(err, &he) {
			got = he.Code
		}
		if got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.path, got, tt.want)
		}
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	at := time.Date(2024, 6, 30, 9, 15, 0, 0, time.UTC)
	var buf bytes.Buffer
	printMigrationStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "schema", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "indexes"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(lines))
	}
	if !strings.Contains(lines[1], "applied") || !strings.Contains(lines[1], "2024-06-30 09:15:00") {
		t.Errorf("unexpected applied row: %q", lines[1])
	}
	if !strings.Contains(lines[2], "pending") {
		t.Errorf("unexpected pending row: %q", lines[2])
	}
}

func TestPrintCounts(t *testing.T) {
	var buf bytes.Buffer
	printCounts(&buf, dashboard.TableCounts{Users: 5, Patients: 3, Vaccinations: 4})

	out := buf.String()
	for _, want := range []string{"users          5", "patients       3", "vaccinations   4", "state_stats    0"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestNewLogger_ConsoleInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	prod := newLogger("production", &buf)
	prod.Info().Msg("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON output in production, got %q", buf.String())
	}

	buf.Reset()
	dev := newLogger("development", &buf)
	dev.Info().Msg("hello")
	if strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected console output in development, got %q", buf.String())
	}
}
