// Package http exposes the collaboration core over a JSON API. The core
// itself is transport-agnostic; this is one of the transports that can
// drive it (the SSE stream for live delivery, plain requests for the rest).
package http

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"studyrooms/auth"
	"studyrooms/contract"
)

func NewServer(log *slog.Logger, service contract.ICollabService, tokens *auth.TokenManager, bufferSize int) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	h := NewHandler(log, service, bufferSize)

	v1 := e.Group("/v1", authMiddleware(tokens))
	v1.POST("/sessions", h.OpenSession)
	v1.DELETE("/sessions/:session_id", h.CloseSession)
	v1.POST("/sessions/:session_id/touch", h.Touch)

	v1.POST("/rooms/:type/:id/join", h.JoinRoom)
	v1.POST("/rooms/:type/:id/leave", h.LeaveRoom)
	v1.GET("/rooms/:type/:id/members", h.ListMembers)
	v1.POST("/rooms/:type/:id/messages", h.SendMessage)
	v1.GET("/rooms/:type/:id/messages", h.GetHistory)
	v1.GET("/rooms/:type/:id/stream", h.Stream)

	v1.GET("/pending", h.DrainPending)
	v1.GET("/establishments/:establishment_id/stats", h.GetStats)

	return e
}
