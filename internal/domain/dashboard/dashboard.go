// Package dashboard reports record counts for the admin overview.
package dashboard

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/covidtrack/covid-server/internal/platform/auth"
	"github.com/covidtrack/covid-server/internal/platform/db"
)

type Metrics struct {
	Patients     int `json:"patients"`
	Vaccinations int `json:"vaccinations"`
	Active       int `json:"active"`
	Recovered    int `json:"recovered"`
	Deaths       int `json:"deaths"`
}

// TableCounts is the per-table row count printed by the count command.
type TableCounts struct {
	Users        int
	Patients     int
	Locations    int
	CaseRecords  int
	Vaccinations int
	StateStats   int
}

type Repository interface {
	Metrics(ctx context.Context) (Metrics, error)
	TableCounts(ctx context.Context) (TableCounts, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Metrics(ctx context.Context) (Metrics, error) {
	var m Metrics
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM patients),
			(SELECT COUNT(*) FROM vaccinations),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'recovered'),
			COUNT(*) FILTER (WHERE status = 'death')
		FROM case_records`).Scan(&m.Patients, &m.Vaccinations, &m.Active, &m.Recovered, &m.Deaths)
	if err != nil {
		return m, fmt.Errorf("query metrics: %w", err)
	}
	return m, nil
}

func (r *repoPG) TableCounts(ctx context.Context) (TableCounts, error) {
	var c TableCounts
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM patients),
			(SELECT COUNT(*) FROM locations),
			(SELECT COUNT(*) FROM case_records),
			(SELECT COUNT(*) FROM vaccinations),
			(SELECT COUNT(*) FROM state_stats)`).
		Scan(&c.Users, &c.Patients, &c.Locations, &c.CaseRecords, &c.Vaccinations, &c.StateStats)
	if err != nil {
		return c, fmt.Errorf("query table counts: %w", err)
	}
	return c, nil
}

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/admin/metrics", h.Metrics, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) Metrics(c echo.Context) error {
	m, err := h.repo.Metrics(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}
