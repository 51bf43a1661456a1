package reminder

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/covidtrack/covid-server/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the reminder views under /notifications.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/notifications")
	g.GET("/me", h.Mine, auth.RequireRole(auth.RoleUser, auth.RoleAdmin))
	g.GET("/admin/due", h.AdminDue, auth.RequireRole(auth.RoleAdmin))
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case IsMalformed(err):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) Mine(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ForPatient(c.Request().Context(), p.UserID)
	if errors.Is(err, ErrPatientNotFound) {
		// Staff accounts have no patient profile and therefore no reminders.
		items, err = nil, nil
	}
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []Notification{}
	}
	return c.JSON(http.StatusOK, map[string]any{"notifications": items})
}

func (h *Handler) AdminDue(c echo.Context) error {
	items, err := h.svc.DueForAll(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []Notification{}
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}
