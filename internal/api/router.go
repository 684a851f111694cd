package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/secretaryai/secretary/internal/auth"
	"github.com/secretaryai/secretary/internal/handlers"
	"github.com/secretaryai/secretary/internal/middleware"
	"github.com/secretaryai/secretary/internal/services"
)

// Dependencies carries the constructed services the router wires handlers to.
type Dependencies struct {
	DB       *gorm.DB
	JWT      *iauth.JWTService
	Users    *services.UserService
	Alerts   *services.AlertService
	Emails   *services.EmailService
	Calendar *services.CalendarService
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Users == nil || deps.Alerts == nil || deps.Emails == nil || deps.Calendar == nil {
		return nil, fmt.Errorf("all services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	r.NoRoute(middleware.NotFoundHandler)

	registerHealthRoutes(r, deps.DB)

	authHandler := handlers.NewAuthHandler(deps.Users, deps.JWT)

	// Public auth routes
	r.POST("/api/auth/login", authHandler.Login)

	// Protected routes
	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	api.GET("/auth/me", authHandler.Me)

	alertHandler, err := handlers.NewAlertHandler(deps.Alerts)
	if err != nil {
		return nil, err
	}
	registerAlertRoutes(api, alertHandler)

	emailHandler, err := handlers.NewEmailHandler(deps.Emails)
	if err != nil {
		return nil, err
	}
	registerEmailRoutes(api, emailHandler)

	calendarHandler, err := handlers.NewCalendarHandler(deps.Calendar)
	if err != nil {
		return nil, err
	}
	registerCalendarRoutes(api, calendarHandler)

	profileHandler, err := handlers.NewProfileHandler(deps.Users)
	if err != nil {
		return nil, err
	}
	registerProfileRoutes(api, profileHandler)

	return r, nil
}

func registerHealthRoutes(r *gin.Engine, db *gorm.DB) {
	r.GET("/health", handlers.Health(db))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
