package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/skillpix/skillpix-server/internal/app"
	iauth "github.com/skillpix/skillpix-server/internal/auth"
	"github.com/skillpix/skillpix-server/internal/handlers"
	"github.com/skillpix/skillpix-server/internal/middleware"
	"github.com/skillpix/skillpix-server/internal/notifications"
	"github.com/skillpix/skillpix-server/internal/services"
)

// Dependencies bundles everything the router needs beyond configuration.
type Dependencies struct {
	DB        *gorm.DB
	JWT       *iauth.JWTService
	Sessions  *iauth.SessionService
	Hub       *notifications.Hub
	Contact   *services.ContactService
	Audit     *services.AuditService
	RateStore middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(cfg *app.Config, deps Dependencies) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session service must be provided")
	}
	if deps.Hub == nil {
		deps.Hub = notifications.NewHub()
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.RateLimit(deps.RateStore, cfg.Server.RateLimit, cfg.Server.RateWindow))

	r.NoRoute(middleware.NotFoundHandler)

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health())
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(deps.DB, deps.Sessions)
	notificationHandler, err := handlers.NewNotificationHandler(deps.DB, deps.Hub, deps.JWT)
	if err != nil {
		return nil, err
	}
	userHandler, err := handlers.NewUserHandler(deps.DB, deps.Sessions, deps.Audit)
	if err != nil {
		return nil, err
	}
	analyticsHandler, err := handlers.NewAnalyticsHandler(deps.DB)
	if err != nil {
		return nil, err
	}

	var contactHandler *handlers.ContactHandler
	if deps.Contact != nil {
		contactHandler = handlers.NewContactHandler(deps.Contact)
	} else {
		contactService, err := services.NewContactService(deps.DB, nil, "", nil)
		if err != nil {
			return nil, err
		}
		contactHandler = handlers.NewContactHandler(contactService)
	}

	requireAuth := middleware.Auth(deps.JWT)

	registerAuthRoutes(r, authHandler, requireAuth)
	registerNotificationRoutes(r, notificationHandler, requireAuth)
	registerContactRoutes(r, contactHandler, requireAuth)
	registerAdminRoutes(r, userHandler, analyticsHandler, contactHandler, requireAuth)

	return r, nil
}
