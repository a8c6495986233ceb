package routes

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	v1 "github.com/mnuddindev/otakushelf/internal/api/v1"
	"github.com/mnuddindev/otakushelf/internal/auth"
	"github.com/mnuddindev/otakushelf/internal/config"
	"github.com/mnuddindev/otakushelf/pkg/logger"
	storage "github.com/mnuddindev/otakushelf/pkg/redis"
	"github.com/mnuddindev/otakushelf/pkg/utils"
	"gorm.io/gorm"
)

// Deps is everything the routes need from main.
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *storage.RedisClient
	Logger   *logger.Logger
	Provider auth.Provider
	Catalog  v1.AnimeCatalog
}

// NewApp builds the fiber app with the JSON error envelope installed.
func NewApp(cfg *config.Config) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ErrorHandler:          utils.ErrorHandler(cfg.IsProduction()),
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})
}

func NewRoutes(ctx context.Context, app *fiber.App, d Deps) {
	cfg, log := d.Config, d.Logger

	v1.DB = d.DB
	v1.Redis = d.Redis
	v1.Logger = log
	v1.Provider = d.Provider
	v1.Catalog = d.Catalog
	v1.AppConfig = cfg
	v1.EmailCfg = utils.EmailConfig{
		SMTPHost:     cfg.SMTPHost,
		SMTPPort:     cfg.SMTPPort,
		SMTPUsername: cfg.SMTPUsername,
		SMTPPassword: cfg.SMTPPassword,
		AppURL:       cfg.WebsiteDomain,
		FromEmail:    cfg.MailFrom,
	}

	origins := strings.Join(cfg.CORSOrigins, ",")
	app.Use(
		requestid.New(),
		logger.SetupLogger(log),
		log.Middleware(),
		recover.New(),
		cors.New(
			cors.Config{
				AllowOrigins:     origins,
				AllowCredentials: origins != "*",
				AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID",
				AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
			},
		),
		compress.New(
			compress.Config{
				Level: compress.LevelBestSpeed,
			},
		),
	)

	opt := auth.Options{
		DB:       d.DB,
		Rclient:  d.Redis,
		Logger:   log,
		Provider: d.Provider,
	}
	session := auth.RequireSession(opt)
	profile := auth.RequireProfile(opt)

	limit := rateLimiter(cfg, d.Redis)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to " + cfg.AppName + " API",
			"docs":    "/health",
		})
	})
	app.Get("/health", v1.Health)
	app.Get("/health/detailed", v1.HealthDetailed)

	authGroup := app.Group("/auth")
	authGroup.Post("/session/refresh", v1.RefreshSession)
	authGroup.Post("/signout", v1.SignOut)

	api := app.Group("/api/v1", limit("api", 100, time.Minute))

	users := api.Group("/users")
	users.Post("/signup", limit("signup", 3, time.Hour), v1.SignUp)
	users.Post("/signin", limit("signin", 5, 5*time.Minute), v1.SignIn)
	users.Get("/check-username/:username", v1.CheckUsername)
	users.Get("/me", session, profile, v1.GetMe)
	users.Put("/me", session, profile, v1.UpdateMe)
	users.Delete("/me", session, profile, v1.DeactivateMe)

	watchlist := api.Group("/watchlist", limit("watchlist", 50, time.Minute), session, profile)
	watchlist.Get("/", v1.ListWatchlist)
	watchlist.Post("/", v1.AddToWatchlist)
	watchlist.Post("/bulk", v1.BulkUpdateStatus)
	watchlist.Get("/anime/:animeId", v1.GetByAnimeID)
	watchlist.Get("/:id", v1.GetWatchlistItem)
	watchlist.Put("/:id", v1.UpdateWatchlistItem)
	watchlist.Delete("/:id", v1.DeleteWatchlistItem)

	anime := api.Group("/anime")
	anime.Get("/search", v1.SearchAnime)
	anime.Get("/:id", v1.GetAnime)

	go func() {
		<-ctx.Done()
		log.Info(context.Background()).Logs("Shutting down routes")
	}()
}

// rateLimiter returns a factory for fixed-window limiters keyed by name and
// client IP. With limiting disabled every limiter is a pass-through.
func rateLimiter(cfg *config.Config, rclient *storage.RedisClient) func(name string, max int, window time.Duration) fiber.Handler {
	var store fiber.Storage
	if rclient != nil {
		store = storage.NewStorage(rclient, "limiter:")
	}
	return func(name string, max int, window time.Duration) fiber.Handler {
		if !cfg.RateLimit {
			return func(c *fiber.Ctx) error { return c.Next() }
		}
		return limiter.New(limiter.Config{
			Max:        max,
			Expiration: window,
			Storage:    store,
			KeyGenerator: func(c *fiber.Ctx) string {
				return name + ":" + c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return utils.NewError(fiber.StatusTooManyRequests, "Rate limit exceeded. Try again later.", fiber.Map{
					"limit":  max,
					"window": window.String(),
				})
			},
		})
	}
}
