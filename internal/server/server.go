package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nikibot/niki/engine"
	"github.com/nikibot/niki/generate"
	"github.com/nikibot/niki/session"
	"github.com/nikibot/niki/telemetry"
)

// Server is thin transport glue around the engine: session ids,
// JSON in/out, nothing more.
type Server struct {
	engine   *engine.Engine
	sessions session.Store
	tele     *telemetry.Telemetry
}

func New(eng *engine.Engine, sessions session.Store, tele *telemetry.Telemetry) *Server {
	return &Server{engine: eng, sessions: sessions, tele: tele}
}

// Run serves the chat API until the listener fails.
func (s *Server) Run(addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	logger := telemetry.NewLogger("HTTP")
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(s.tele.Handler()))
	e.POST("/api/chat", s.handleChat)
	e.POST("/api/clear", s.handleClear)
	e.GET("/api/examples", s.handleExamples)

	return e.Start(addr)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message must not be empty")
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	answer, err := s.engine.Respond(c.Request().Context(), req.SessionID, req.Message)
	if err != nil {
		// Missing index is the one per-request condition surfaced as
		// a real failure, with a distinct message.
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, chatResponse{Response: answer, SessionID: req.SessionID})
}

type clearRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleClear(c echo.Context) error {
	var req clearRequest
	if err := c.Bind(&req); err != nil || req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id required")
	}
	if err := s.sessions.Clear(c.Request().Context(), req.SessionID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to clear session")
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleExamples(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"examples": generate.ExampleQuestions()})
}
