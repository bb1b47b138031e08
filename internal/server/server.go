// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	_ "agora/docs" // swagger docs
	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/repository"
	"agora/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	rateLimiter    *middleware.RateLimiter
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	notifier   *notifications.Notifier
	mirror     *notifications.Mirror
	dispatcher *notifications.Dispatcher
	hub        *notifications.Hub

	tokens          *service.TokenService
	authService     *service.AuthService
	postService     *service.PostService
	commentService  *service.CommentService
	categoryService *service.CategoryService
	profileService  *service.ProfileService
	adminService    *service.AdminService
}

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// httpMetrics returns the process-wide HTTP collector; registering it twice
// with the default registry panics.
func httpMetrics() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New("agora-api")
	})
	return prom
}

// NewServerWithDeps creates a Server from connections established by the
// bootstrap layer. A nil Redis client disables notifications and revocation.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: httpMetrics(),
		rateLimiter:    middleware.NewRateLimiter(redisClient, cfg.RateLimitEnabled),
	}

	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
		s.hub = notifications.NewHub()
	}
	if cfg.NATSURL != "" {
		mirror, err := notifications.ConnectMirror(cfg.NATSURL)
		if err != nil {
			// The mirror is optional; Redis delivery keeps working without it.
			middleware.Logger.Warn("nats mirror disabled", slog.String("error", err.Error()))
		} else {
			s.mirror = mirror
		}
	}
	s.dispatcher = notifications.NewDispatcher(s.notifier, s.mirror)

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)

	images := service.NewImageService(cfg)
	s.tokens = service.NewTokenService(cfg, redisClient)
	s.authService = service.NewAuthService(userRepo, s.tokens)
	s.adminService = service.NewAdminService(userRepo, postRepo, commentRepo)
	s.postService = service.NewPostService(postRepo, categoryRepo, userRepo, images, s.dispatcher)
	s.commentService = service.NewCommentService(commentRepo, postRepo, s.adminService.IsAdmin, s.dispatcher)
	s.categoryService = service.NewCategoryService(categoryRepo)
	s.profileService = service.NewProfileService(profileRepo, userRepo, s.postService, images, s.dispatcher)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS must run before anything that can short-circuit so error
	// responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	if s.config.RateLimitEnabled {
		app.Use(limiter.New(limiter.Config{
			Max:        100,
			Expiration: time.Minute,
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
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/swagger/*", swagger.HandlerDefault)

	api := app.Group("/api")
	authRequired := middleware.AuthRequired(s.tokens)
	optionalAuth := middleware.OptionalAuth(s.tokens)

	auth := api.Group("/auth")
	auth.Post("/register", s.rateLimiter.Limit("register", 5, 10*time.Minute, middleware.FailOpen), s.Register)
	auth.Post("/token", s.rateLimiter.Limit("login", 10, 5*time.Minute, middleware.FailOpen), s.Login)
	auth.Post("/token/refresh", s.RefreshToken)
	auth.Post("/logout", authRequired, s.Logout)

	api.Get("/categories", s.GetCategories)

	posts := api.Group("/posts")
	// Specific routes before the generic /:id.
	posts.Get("/mine", authRequired, s.GetMyPosts)
	posts.Get("/", optionalAuth, s.GetPosts)
	posts.Post("/", authRequired, s.rateLimiter.Limit("create_post", 10, time.Minute, middleware.FailOpen), s.CreatePost)
	posts.Post("/:id/like", authRequired, s.ToggleLike)
	posts.Get("/:id/comments", optionalAuth, s.GetComments)
	posts.Post("/:id/comments", authRequired, s.rateLimiter.Limit("create_comment", 20, time.Minute, middleware.FailOpen), s.CreateComment)
	posts.Get("/:id", optionalAuth, s.GetPost)
	posts.Put("/:id", authRequired, s.UpdatePost)
	posts.Patch("/:id", authRequired, s.UpdatePost)
	posts.Delete("/:id", authRequired, s.DeletePost)

	comments := api.Group("/comments", authRequired)
	comments.Patch("/:id", s.UpdateComment)
	comments.Put("/:id", s.UpdateComment)
	comments.Delete("/:id", s.DeleteComment)

	// Per-route auth: a group middleware on /profile would also match /profiles.
	api.Get("/profile", authRequired, s.GetMyProfile)
	api.Patch("/profile", authRequired, s.UpdateMyProfile)
	api.Put("/profile", authRequired, s.UpdateMyProfile)

	profiles := api.Group("/profiles")
	profiles.Post("/:username/follow", authRequired, s.ToggleFollow)
	profiles.Get("/:username/followers", s.GetFollowers)
	profiles.Get("/:username/following", s.GetFollowing)
	profiles.Get("/:username", optionalAuth, s.GetProfile)

	api.Get("/ws/notifications", authRequired, s.WebSocketUpgrade, s.NotificationsWebSocket())

	admin := api.Group("/admin", authRequired, s.AdminRequired())
	admin.Get("/posts", s.AdminListPosts)
	admin.Patch("/posts/:id/active", s.AdminSetPostActive)
	admin.Get("/comments", s.AdminListComments)
	admin.Post("/categories", s.CreateCategory)
	admin.Delete("/categories/:id", s.DeleteCategory)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
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

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := middleware.UserID(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		admin, err := s.adminService.IsAdmin(c.UserContext(), userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}

		return c.Next()
	}
}

// NewApp builds the Fiber application with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Agora API",
		// base64 image uploads travel inside JSON bodies
		BodyLimit: 10 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// StartRealtime subscribes the websocket hub to published notifications.
// It returns once the subscription is confirmed; delivery stops when ctx ends.
func (s *Server) StartRealtime(ctx context.Context) error {
	if s.notifier == nil || s.hub == nil {
		return nil
	}
	return s.hub.StartWiring(ctx, s.notifier)
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if err := s.StartRealtime(s.shutdownCtx); err != nil {
		// HTTP keeps serving; only live notifications are lost.
		middleware.Logger.Error("failed to start hub wiring",
			slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
		}
	}

	if err := s.mirror.Close(); err != nil {
		middleware.Logger.Error("error draining nats", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
