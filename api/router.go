// Package api contains all endpoints available
package api

import (
	"fmt"
	"time"

	"skyvault/file-api/db"
	"skyvault/file-api/internal/service"
	"skyvault/file-api/internal/storage"
	"skyvault/file-api/pkg/middleware"
	"skyvault/file-api/pkg/security"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	ginzap "github.com/gin-contrib/zap"
	"github.com/go-redis/redis/v8"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

var store persist.CacheStore

type API struct {
	DB     *gorm.DB
	Router *gin.Engine
	Argon  *security.ArgonHash
	Store  storage.Store
	Files  *service.Files
	Audit  *service.Audit
}

func NewRouter() (*API, error) {
	a := &API{}

	d, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}
	a.DB = d

	makeLogger()
	makeCacheStore()

	switch viper.GetString("storage.type") {
	case "memory":
		a.Store = storage.NewMem()
	default:
		s3, err := storage.NewS3()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 client, %w", err)
		}
		a.Store = s3
	}

	a.Argon = security.New()

	a.Audit = service.NewAudit(d, viper.GetInt("audit.queue_size"), viper.GetInt("audit.workers"))
	a.Audit.Start()

	a.Files = service.NewFiles(d, a.Store, a.Audit, service.FilesConfig{
		MaxUploadSize: viper.GetInt64("upload.max_size"),
		SignedURLTTL:  time.Duration(viper.GetInt("links.signed_url_ttl")) * time.Second,
		ShareBaseURL:  viper.GetString("app.base_url"),
	})

	if days := viper.GetInt("logs.retention_days"); days > 0 {
		service.LogRetention(time.Hour, time.Duration(days)*24*time.Hour, d)
	}

	router := gin.New()
	a.Router = router

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     []string{viper.GetString("app.base_url")},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true
	a.Router.MaxMultipartMemory = 5 << 20

	a.setupRoutes()

	return a, nil
}

// setupRoutes registers every endpoint. Split out of NewRouter so
// handler tests can mount the same routes on their own engine.
func (a *API) setupRoutes() {
	router := a.Router

	jwt := middleware.RequireAuth(a.DB)
	jwtOptional := middleware.OptionalAuth(a.DB)

	authLimiter := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: viper.GetInt("ratelimit.rps"),
		Burst:             viper.GetInt("ratelimit.burst"),
	})

	// Multipart overhead on top of the actual file bytes
	maxUploadBody := viper.GetInt64("upload.max_size") + 1<<20

	main := router.Group("/api")
	{
		// HEAD /api/heartbeat		-> Used to check if the server is alive
		main.HEAD("/heartbeat", a.Heartbeat)
	}

	auth := main.Group("/auth", authLimiter, middleware.BodySizeLimiter(1<<20))
	{
		// POST /api/auth/register	-> Registers a new user
		auth.POST("/register", a.UserRegister)

		// POST /api/auth/login		-> Logs in a user and returns a JWT token
		auth.POST("/login", a.UserLogin)
	}

	user := main.Group("/user", jwt, middleware.BodySizeLimiter(1<<20))
	{
		// PUT /api/user/password	-> Changes the password, revoking older tokens
		user.PUT("/password", a.UserPassword)

		// PUT /api/user/profile	-> Updates profile fields
		user.PUT("/profile", a.UserProfile)
	}

	file := main.Group("/file")
	{
		// POST /api/file/upload	-> Uploads a new file
		file.POST("/upload", jwt, middleware.BodySizeLimiter(maxUploadBody), a.FileUpload)

		// GET /api/file/list		-> Lists the caller's files in a folder
		file.GET("/list", jwt, a.FileList)

		// GET /api/file/:id/url	-> Returns a download URL, anonymous allowed
		file.GET("/:id/url", jwtOptional, a.FileURL)

		// PATCH /api/file/:id/visibility -> Toggles a file public/private
		file.PATCH("/:id/visibility", jwt, a.FileVisibility)

		// GET /api/file/:id/share	-> Returns the public share link
		file.GET("/:id/share", jwtOptional, a.FileShare)

		// DELETE /api/file/:id		-> Deletes a file owned by the caller
		file.DELETE("/:id", jwt, a.FileDelete)
	}

	logs := main.Group("/logs", jwt)
	{
		// GET /api/logs		-> The caller's activity log, filtered and paginated
		logs.GET("", a.LogList)

		// GET /api/logs/stats		-> Per-action counts
		logs.GET("/stats", cacheFor(30), a.LogStats)

		// GET /api/logs/:id		-> A single log entry
		logs.GET("/:id", a.LogFetch)

		// GET /api/logs/file/:fileID	-> Activity for one file
		logs.GET("/file/:fileID", a.LogFileActivity)
	}
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()

	if level, err := zapcore.ParseLevel(viper.GetString("app.log_level")); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}

func makeCacheStore() {
	if addr := viper.GetString("cache.redis_addr"); addr != "" {
		store = persist.NewRedisStore(redis.NewClient(&redis.Options{
			Addr: addr,
		}))
		return
	}

	store = persist.NewMemoryStore(time.Minute)
}

// cacheFor keys on the caller as well as the URI, the cached payloads
// are per-user.
func cacheFor(sec int) gin.HandlerFunc {
	return cache.Cache(store, time.Second*time.Duration(sec),
		cache.WithCacheStrategyByRequest(func(c *gin.Context) (bool, cache.Strategy) {
			return true, cache.Strategy{
				CacheKey: c.GetString("userID") + ":" + c.Request.RequestURI,
			}
		}),
	)
}
