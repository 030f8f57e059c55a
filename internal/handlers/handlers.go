package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trailhead/api/internal/apperr"
	"trailhead/api/internal/config"
	"trailhead/api/internal/mailer"
	"trailhead/api/internal/middleware"
	"trailhead/api/internal/models"
	"trailhead/api/internal/repository"
	"trailhead/api/internal/security"
	"trailhead/api/internal/service"
)

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	authService *service.AuthService
	tokens      *security.TokenService
	users       *repository.UserRepository
	cache       *redis.Client
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, mail mailer.Mailer, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	tokens := security.NewTokenService(cfg.Security.JWTSecret, cfg.Security.JWTTTL)
	lockout := service.NewLockoutPolicy(userRepo, cfg.Security.LockoutThreshold, cfg.Security.LockoutDuration)
	auth := service.NewAuthService(userRepo, tokens, lockout, mail, cfg.Security.ResetTokenTTL, log)

	return HandlerSet{
		log:         log,
		cfg:         cfg,
		authService: auth,
		tokens:      tokens,
		users:       userRepo,
		cache:       cache,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	v1.Use(middleware.RateLimit(h.cache, h.cfg.RateLimit, h.log))
	{
		users := v1.Group("/users")
		users.POST("/signup", h.Signup)
		users.POST("/login", h.Login)
		users.POST("/forgotPassword", h.ForgotPassword)
		users.PATCH("/resetPassword/:resetToken", h.ResetPassword)

		protected := v1.Group("/users")
		protected.Use(middleware.Auth(h.tokens, h.users))
		protected.GET("/me", h.Me)
		protected.PATCH("/updateMyPassword", h.UpdateMyPassword)
		protected.DELETE("/deleteMe", h.DeleteMe)

		admin := v1.Group("/users")
		admin.Use(
			middleware.Auth(h.tokens, h.users),
			middleware.RequireRoles(models.UserRoleAdmin),
		)
		admin.GET("", h.ListUsers)
	}
}

// respondError maps classified domain errors to their status; anything
// unclassified is logged in full and surfaced as a bare 500.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		if appErr.Err != nil {
			h.log.Warn().Err(appErr.Err).Int("status", appErr.Code).Msg(appErr.Message)
		}
		c.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}

	h.log.Error().Err(err).
		Str("path", c.Request.URL.Path).
		Msg("unhandled error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
}
