package notification

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handler exposes delivery tracking to administrators.
type Handler struct {
	dispatcher *Dispatcher
}

func NewHandler(d *Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// RegisterRoutes mounts the delivery endpoints on an admin-only group.
func (h *Handler) RegisterRoutes(admin *echo.Group) {
	admin.GET("/deliveries", h.List)
	admin.GET("/deliveries/stats", h.Stats)
	admin.GET("/deliveries/:id", h.Get)
	admin.POST("/deliveries/:id/retry", h.Retry)
}

func (h *Handler) List(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	status := DeliveryStatus(c.QueryParam("status"))
	if status != "" && status != StatusSent && status != StatusFailed {
		return echo.NewHTTPError(http.StatusBadRequest, "status must be sent or failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"items": h.dispatcher.Recent(limit, status)})
}

func (h *Handler) Get(c echo.Context) error {
	dl, err := h.dispatcher.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "delivery not found")
	}
	return c.JSON(http.StatusOK, dl)
}

func (h *Handler) Retry(c echo.Context) error {
	dl, err := h.dispatcher.Retry(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrDeliveryNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "delivery not found")
	}
	if dl == nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "publish failed: "+err.Error())
	}
	return c.JSON(http.StatusOK, dl)
}

func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.dispatcher.Stats())
}
