package rest

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/Semior001/intercede/pkg/logx"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const requestIDHeader = "X-Request-Id"

// requestID puts the request id into the request context, so that
// every record logged with it carries the id.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Request = c.Request.WithContext(logx.ContextWithRequestID(c.Request.Context(), id))
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// recoverer recovers from panics in handlers.
func recoverer(lg *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			if err, ok := r.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(r)
			}

			lg.ErrorContext(c.Request.Context(), "panic recovered",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))

			c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Detail: "Internal Server Error"})
		}()

		c.Next()
	}
}

// logger logs all requests.
func logger(lg *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		ctx := c.Request.Context()
		args := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		}

		if lg.Handler().Enabled(ctx, slog.LevelDebug) {
			lg.DebugContext(ctx, "request processed", append(args,
				slog.String("remote", c.ClientIP()),
				slog.String("user_agent", c.Request.UserAgent()),
				slog.Any("errors", c.Errors.Errors()),
			)...)
			return
		}

		lg.InfoContext(ctx, "request processed", args...)
	}
}

// corsMiddleware allows cross-origin requests from the given origins,
// "*" allows any origin, but without credentials. Requests from other origins
// are served without CORS headers, the browser enforces the policy.
// Preflights are allowed any requested header.
func corsMiddleware(origins []string) (gin.HandlerFunc, error) {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	allowAll := lo.Contains(origins, "*")
	if allowAll {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mw := cors.New(cfg)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed := allowAll || lo.Contains(origins, origin)
		if origin == "" || !allowed {
			c.Next()
			return
		}

		if reqHeaders := c.GetHeader("Access-Control-Request-Headers"); c.Request.Method == http.MethodOptions && reqHeaders != "" {
			c.Header("Access-Control-Allow-Headers", reqHeaders)
		}

		mw(c)
	}, nil
}
