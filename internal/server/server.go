// Package server contains the HTTP handlers of the StackIt API.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stackit/internal/cache"
	"stackit/internal/config"
	"stackit/internal/database"
	"stackit/internal/featureflags"
	"stackit/internal/mail"
	"stackit/internal/middleware"
	"stackit/internal/models"
	"stackit/internal/notifications"
	"stackit/internal/repository"
	"stackit/internal/service"
	"stackit/internal/session"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	registry       *prometheus.Registry
	promMiddleware *fiberprometheus.FiberPrometheus
	featureFlags   *featureflags.Set
	throttle       *middleware.Throttle
	sessions       *session.Store
	notes          *notifications.Center
	workflow       *service.Workflow
	questions      *service.QuestionService
	tags           *service.TagService
	users          *service.UserService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil. A nil mailer is chosen from the configuration.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, mailer mail.Mailer) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server requires a config and a database")
	}
	if mailer == nil {
		mailer = mail.NewMailer(cfg, middleware.Logger)
	}

	store := cache.NewStore(redisClient)
	userRepo := repository.NewUserRepository(db, store)
	content := repository.NewContentRepository(db, store)
	notes := notifications.NewCenter(repository.NewNotificationRepository(db), store)
	flags, err := featureflags.Parse(cfg.FeatureFlags)
	if err != nil {
		middleware.Logger.Warn("ignoring malformed feature flags", "error", err)
	}

	registry := prometheus.NewRegistry()

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		registry:       registry,
		promMiddleware: middleware.InitMetrics(registry, "stackit-api"),
		featureFlags:   flags,
		throttle:       middleware.NewThrottle(redisClient, cfg.Env),
		sessions: session.NewStore(userRepo, redisClient, mailer, session.Options{
			Secret:    cfg.JWTSecret,
			TTL:       cfg.JWTTTL(),
			PublicURL: cfg.PublicURL,
		}),
		notes:     notes,
		workflow:  service.NewWorkflow(content, notes, flags.Gate(featureflags.QuestionModeration)),
		questions: service.NewQuestionService(content),
		tags:      service.NewTagService(repository.NewTagRepository(db, store)),
		users:     service.NewUserService(userRepo),
	}, nil
}

// NewApp builds a Fiber app with the full middleware chain and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "StackIt API",
		ReadTimeout:  time.Duration(s.config.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeoutSeconds) * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			return respondWithAppError(c, err)
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.Tracing())
	app.Use(middleware.RequestScope())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.AccessLog())

	// CORS runs before the limiter so that browser clients still receive
	// CORS headers on 429 responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://127.0.0.1:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// Per-caller write budgets. Votes share one quota across questions and answers.
var (
	registerQuota       = middleware.Quota{Name: "register", Limit: 3, Window: 10 * time.Minute}
	loginQuota          = middleware.Quota{Name: "login", Limit: 10, Window: 5 * time.Minute}
	forgotPasswordQuota = middleware.Quota{Name: "forgot_password", Limit: 3, Window: 15 * time.Minute}
	resetPasswordQuota  = middleware.Quota{Name: "reset_password", Limit: 5, Window: 15 * time.Minute}
	askQuota            = middleware.Quota{Name: "create_question", Limit: 5, Window: 10 * time.Minute}
	answerQuota         = middleware.Quota{Name: "create_answer", Limit: 10, Window: 10 * time.Minute}
	commentQuota        = middleware.Quota{Name: "create_comment", Limit: 10, Window: time.Minute}
	voteQuota           = middleware.Quota{Name: "vote", Limit: 60, Window: time.Minute}
)

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	app.Get("/metrics", middleware.MetricsHandler(s.registry, prometheus.DefaultGatherer))

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", s.throttle.Limit(registerQuota), s.Register)
	auth.Post("/login", s.throttle.Limit(loginQuota), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Post("/forgot-password", s.throttle.Limit(forgotPasswordQuota), s.ForgotPassword)
	auth.Post("/reset-password", s.throttle.Limit(resetPasswordQuota), s.ResetPassword)
	auth.Get("/me", s.AuthRequired(), s.GetMe)
	auth.Put("/me", s.AuthRequired(), s.UpdateMe)

	questions := api.Group("/questions")
	questions.Get("/", s.OptionalAuth(), s.ListQuestions)
	questions.Post("/", s.AuthRequired(), s.throttle.Limit(askQuota), s.CreateQuestion)
	// Specific /:id/:resource routes before the generic /:slug route.
	questions.Post("/:id/vote", s.AuthRequired(), s.throttle.Limit(voteQuota), s.VoteQuestion)
	questions.Post("/:id/answers", s.AuthRequired(), s.throttle.Limit(answerQuota), s.CreateAnswer)
	questions.Get("/:slug", s.OptionalAuth(), s.GetQuestion)

	answers := api.Group("/answers", s.AuthRequired())
	answers.Post("/:id/vote", s.throttle.Limit(voteQuota), s.VoteAnswer)
	answers.Post("/:id/accept", s.ToggleAccept)
	answers.Post("/:id/comments", s.throttle.Limit(commentQuota), s.CreateComment)

	tags := api.Group("/tags")
	tags.Get("/", s.ListTags)
	tags.Post("/", s.AuthRequired(), s.AdminRequired(), s.CreateTag)

	notes := api.Group("/notifications", s.AuthRequired())
	notes.Get("/", s.ListNotifications)
	notes.Get("/unread-count", s.UnreadCount)
	notes.Post("/read-all", s.MarkAllNotificationsRead)
	notes.Post("/:id/read", s.MarkNotificationRead)

	admin := api.Group("/admin", s.AuthRequired(), s.AdminRequired())
	admin.Patch("/questions/:id/status", s.ModerateQuestion)
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck requires the database. Redis is optional: the API degrades
// to uncached reads and per-process rate limits without it.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	switch {
	case dbStatus != "healthy":
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	case redisStatus == "unhealthy":
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired rejects requests without a valid bearer token and attaches
// the authenticated user to the request context.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		user, err := s.sessions.Authenticate(c.UserContext(), token)
		if err != nil {
			return respondWithAppError(c, err)
		}
		s.attach(c, user)
		return c.Next()
	}
}

// OptionalAuth attaches the user when a valid token is presented and lets
// anonymous or invalid-token requests through unauthenticated.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := bearerToken(c); token != "" {
			if user, err := s.sessions.Authenticate(c.UserContext(), token); err == nil {
				s.attach(c, user)
			}
		}
		return c.Next()
	}
}

func (s *Server) attach(c *fiber.Ctx, user *models.User) {
	// userID in locals keys per-user rate limits and tracing attributes.
	c.Locals("userID", user.ID)
	c.SetUserContext(session.WithIdentity(c.UserContext(), user))
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !caller(c).IsAdmin() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewPermissionError("Admin access required"))
		}
		return c.Next()
	}
}

// App returns the server's Fiber app, building it on first use.
func (s *Server) App() *fiber.App {
	if s.app == nil {
		s.app = s.NewApp()
	}
	return s.app
}

// Start starts the server
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("server starting", "port", s.config.Port, "env", s.config.Env)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
		}
	}
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	middleware.Logger.Info("server shutdown complete")
	return errors.Join(errs...)
}
