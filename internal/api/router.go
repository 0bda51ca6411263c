package api

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facematch/internal/api/handlers"
	"github.com/your-org/facematch/internal/api/ws"
	"github.com/your-org/facematch/internal/auth"
	"github.com/your-org/facematch/internal/ingest"
	"github.com/your-org/facematch/internal/observability"
	"github.com/your-org/facematch/internal/queue"
	"github.com/your-org/facematch/internal/storage"
)

// requestLogger writes one slog line per request and feeds the latency
// histogram. The histogram is labelled with the route template, not the
// raw path, so event and photo ids stay out of the label set.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		slog.Info("http request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"bytes", c.Writer.Size(),
			"elapsed", elapsed.String(),
			"ip", c.ClientIP(),
		)
		observability.HTTPRequestDuration.WithLabelValues(
			c.Request.Method, route, strconv.Itoa(status),
		).Observe(elapsed.Seconds())
	}
}

type RouterConfig struct {
	APIKey   string
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore
	Producer *queue.Producer
	Retrier  *ingest.Retrier
	Hub      *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))
	v1.Use(auth.PrincipalMiddleware())

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	organizer := auth.RequireRole(auth.RoleOrganizer)
	attendee := auth.RequireRole(auth.RoleAttendee)

	// Events
	eventH := handlers.NewEventHandler(cfg.DB, cfg.MinIO)
	v1.POST("/events", organizer, eventH.Create)
	v1.GET("/events", eventH.List)
	v1.GET("/events/:id", eventH.Get)
	v1.POST("/events/:id/close", organizer, eventH.Close)
	v1.DELETE("/events/:id", organizer, eventH.Delete)

	// Photos
	photoH := handlers.NewPhotoHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	v1.POST("/events/:id/photos", organizer, photoH.Upload)
	v1.GET("/events/:id/photos", organizer, photoH.ListForEvent)
	v1.GET("/photos/:id", photoH.Get)
	v1.GET("/photos/:id/image", photoH.Image)
	v1.GET("/photos/:id/attendees", organizer, photoH.Attendees)
	v1.DELETE("/photos/:id", organizer, photoH.Delete)

	// Selfies & feed
	selfieH := handlers.NewSelfieHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	v1.POST("/events/:id/selfies", attendee, selfieH.Upload)

	feedH := handlers.NewFeedHandler(cfg.DB)
	v1.GET("/my/photos", attendee, feedH.MyPhotos)

	// Processing status
	statusH := handlers.NewStatusHandler(cfg.DB, cfg.Retrier)
	v1.GET("/status/:id", statusH.Get)
	v1.POST("/ingest/:id/retry", organizer, statusH.Retry)

	return r
}
