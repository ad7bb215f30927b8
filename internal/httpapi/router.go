// Package httpapi exposes the account service over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jacentio/members/account"
	"github.com/jacentio/members/records"
)

// Accounts is the account service as used by the handlers.
type Accounts interface {
	Create(ctx context.Context, u *records.User, password string) (*records.User, error)
	Get(ctx context.Context, id string) (*records.User, error)
	Me(ctx context.Context, p account.Principal) (*records.User, error)
	List(ctx context.Context) ([]records.User, error)
	ChangePassword(ctx context.Context, p account.Principal, current, next string) error
	UpdateUser(ctx context.Context, id string, fields records.Patch) (*records.User, error)
	SetProfileImage(ctx context.Context, p account.Principal, data []byte) (string, error)
	ClearProfileImage(ctx context.Context, p account.Principal) error
	Delete(ctx context.Context, id string) error
	CreateOwned(ctx context.Context, p account.Principal, c records.Collection, fields records.Patch) (records.Document, error)
}

var _ Accounts = (*account.Service)(nil)

// Config configures the HTTP surface.
type Config struct {
	// JWTSecret verifies HS256 bearer tokens.
	JWTSecret []byte

	// AllowOrigins lists the CORS origins; "*" allows any.
	AllowOrigins []string

	// MaxUploadBytes caps profile image uploads.
	// Default: 10 MiB
	MaxUploadBytes int64

	Logger *slog.Logger
}

// Server holds the handler dependencies.
type Server struct {
	accounts  Accounts
	secret    []byte
	maxUpload int64
	logger    *slog.Logger
}

// NewServer creates the handlers.
func NewServer(accounts Accounts, cfg Config) *Server {
	s := &Server{
		accounts:  accounts,
		secret:    cfg.JWTSecret,
		maxUpload: cfg.MaxUploadBytes,
		logger:    cfg.Logger,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 10 << 20
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(accounts Accounts, cfg Config) *gin.Engine {
	s := NewServer(accounts, cfg)

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	router.Use(cors.New(corsConfig(cfg.AllowOrigins)))

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := router.Group("/api")
	api.GET("/users", s.listUsers)

	private := api.Group("", jwtAuth(s.secret))
	private.POST("/users", s.createUser)
	private.GET("/users/me", s.getMe)
	private.PUT("/users/me", s.updateMe)
	private.PUT("/users/me/change_password", s.changePassword)
	private.PUT("/users/me/profile_image", s.setProfileImage)
	private.DELETE("/users/me/profile_image", s.clearProfileImage)
	private.GET("/users/:id", s.getUser)
	private.PUT("/users/:id", s.updateUser)
	private.DELETE("/users/:id", s.deleteUser)
	private.POST("/records/:collection", s.createRecord)

	router.NoRoute(func(c *gin.Context) { abort(c, http.StatusNotFound, "route not found") })
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Content-Length", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
