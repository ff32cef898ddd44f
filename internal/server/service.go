package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"speakcheck/internal/domain"
	"speakcheck/internal/report"
	"speakcheck/internal/rules"
	"speakcheck/internal/usecase"
)

// Backend is what the HTTP surface drives.
type Backend interface {
	StartRecording(ctx context.Context, req usecase.StartRequest) (domain.Status, error)
	StopRecording(ctx context.Context) (domain.Status, error)
	GetStatus() domain.Status
	TakeReport(ctx context.Context) (report.View, error)
	ArchivedReport(ctx context.Context, id string) (report.View, error)
	ArchivedRaw(ctx context.Context, id string) ([]byte, error)
	ArchivedPDF(ctx context.Context, id string) ([]byte, error)
	GetRuntimeInfo() map[string]string
}

// Data keeps data required for service work.
type Data struct {
	// Addr is the listen address, e.g. ":8000".
	Addr    string
	Backend Backend
	Hub     *Hub
	Ctx     context.Context
	Log     zerolog.Logger
}

// StartWebServer starts the echo web service. The returned channel closes when the server exits.
func StartWebServer(data *Data) (<-chan struct{}, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	data.Log.Info().Msgf("Starting speakcheck service at %s", data.Addr)

	e := initRoutes(data)

	e.Server.Addr = data.Addr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 10 * time.Second

	gracehttp.SetLogger(log.New(data.Log, "", 0))

	res := make(chan struct{}, 1)
	go func() {
		defer close(res)
		if err := gracehttp.Serve(e.Server); err != nil {
			data.Log.Error().Err(err).Msg("can't start web server")
		}
		data.Log.Info().Msg("exit http routine")
	}()
	return res, nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("speakcheck", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(requestLogger(data.Log))
	e.Use(middleware.Recover())
	promMdlw.Use(e)

	e.GET("/live", live)
	e.GET("/api/status", status(data))
	e.GET("/api/info", runtimeInfo(data))
	e.POST("/api/recordings", startRecording(data))
	e.POST("/api/recordings/stop", stopRecording(data))
	e.GET("/api/report", takeReport(data))
	e.GET("/api/results/:id", archivedReport(data))
	e.GET("/api/results/:id/raw", archivedRaw(data))
	e.GET("/api/results/:id/pdf", archivedPDF(data))
	e.GET("/ws/events", data.Hub.Subscribe(data.Ctx))

	data.Log.Info().Msg("Routes:")
	for _, r := range e.Routes() {
		data.Log.Info().Msgf("  %s %s", r.Method, r.Path)
	}
	return e
}

func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := logger.Debug()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				ev = logger.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Dur("latency", v.Latency).Msg("request")
			return nil
		},
	})
}

func live(c echo.Context) error {
	return c.JSONBlob(http.StatusOK, []byte(`{"service":"OK"}`))
}

func status(data *Data) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, data.Backend.GetStatus())
	}
}

func runtimeInfo(data *Data) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, data.Backend.GetRuntimeInfo())
	}
}

func startRecording(data *Data) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req usecase.StartRequest
		if err := c.Bind(&req); err != nil {
			return writeError(c, http.StatusBadRequest, "bad_request", "invalid request body")
		}
		st, err := data.Backend.StartRecording(data.Ctx, req)
		if err != nil {
			return mapError(c, err)
		}
		return c.JSON(http.StatusAccepted, st)
	}
}

func stopRecording(data *Data) echo.HandlerFunc {
	return func(c echo.Context) error {
		st, err := data.Backend.StopRecording(c.Request().Context())
		if err != nil {
			return mapError(c, err)
		}
		return c.JSON(http.StatusOK, st)
	}
}

func takeReport(data *Data) echo.HandlerFunc {
	return func(c echo.Context) error {
		view, err := data.Backend.TakeReport(c.Request().Context())
		if err != nil {
			return mapError(c, err)
		}
		return c.JSON(http.StatusOK, view)
	}
}

func archivedReport(data *Data) echo.HandlerFunc {
	return func(c echo.Context) error {
		view, err := data.Backend.ArchivedReport(c.Request().Context(), c.Param("id"))
		if err != nil {
			return mapError(c, err)
		}
		return c.JSON(http.StatusOK, view)
	}
}

func archivedRaw(data *Data) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, err := data.Backend.ArchivedRaw(c.Request().Context(), c.Param("id"))
		if err != nil {
			return mapError(c, err)
		}
		return c.JSONBlob(http.StatusOK, raw)
	}
}

func archivedPDF(data *Data) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		doc, err := data.Backend.ArchivedPDF(c.Request().Context(), id)
		if err != nil {
			return mapError(c, err)
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "report-"+id+".pdf"))
		return c.Blob(http.StatusOK, "application/pdf", doc)
	}
}

type errorBody struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(c echo.Context, httpStatus int, code string, msg string) error {
	return c.JSON(httpStatus, errorBody{Status: "error", Code: code, Message: msg})
}

func mapError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrSessionActive):
		return writeError(c, http.StatusConflict, "session_active", err.Error())
	case errors.Is(err, usecase.ErrNoActiveSession):
		return writeError(c, http.StatusConflict, "no_session", err.Error())
	case errors.Is(err, usecase.ErrMissingPhrase), errors.Is(err, usecase.ErrUnknownMode):
		return writeError(c, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, rules.ErrNotConverged):
		return writeError(c, http.StatusBadRequest, string(domain.ErrorCodeRules), err.Error())
	case errors.Is(err, domain.ErrPermissionDenied):
		return writeError(c, http.StatusServiceUnavailable, string(domain.ErrorCodePermissionDenied), err.Error())
	case errors.Is(err, domain.ErrDeviceUnavailable):
		return writeError(c, http.StatusServiceUnavailable, string(domain.ErrorCodeDeviceUnavailable), err.Error())
	case errors.Is(err, domain.ErrResultNotFound):
		return writeError(c, http.StatusNotFound, "not_found", err.Error())
	default:
		return writeError(c, http.StatusInternalServerError, "internal", err.Error())
	}
}

func validate(data *Data) error {
	if data.Addr == "" {
		return fmt.Errorf("no Addr")
	}
	if data.Backend == nil {
		return fmt.Errorf("no Backend")
	}
	if data.Hub == nil {
		return fmt.Errorf("no Hub")
	}
	if data.Ctx == nil {
		return fmt.Errorf("no Ctx")
	}
	return nil
}
