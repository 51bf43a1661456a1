package forecast

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/covidtrack/covid-server/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/predict", auth.RequireRole(auth.RoleAdmin, auth.RoleManager, auth.RoleUser))
	g.GET("/states", h.States)
	g.GET("/state/:state", h.Forecast)
}

func (h *Handler) States(c echo.Context) error {
	states, err := h.svc.States()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "dataset unavailable: "+err.Error())
	}
	return c.JSON(http.StatusOK, map[string][]string{"states": states})
}

func (h *Handler) Forecast(c echo.Context) error {
	days := DefaultHorizon
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxHorizon {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be an integer between 1 and "+strconv.Itoa(MaxHorizon))
		}
		days = n
	}

	res, err := h.svc.Forecast(c.Param("state"), days)
	switch {
	case errors.Is(err, ErrStateNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoSeries):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "dataset unavailable: "+err.Error())
	}
	return c.JSON(http.StatusOK, res)
}
