package v1

import (
	"context"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mnuddindev/otakushelf/internal/db"
)

func environment() string {
	if AppConfig == nil {
		return ""
	}
	return AppConfig.Environment
}

func appName() string {
	if AppConfig == nil || AppConfig.AppName == "" {
		return "OtakuShelf"
	}
	return AppConfig.AppName
}

// Health is the liveness probe.
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"service":     appName(),
		"environment": environment(),
	})
}

// HealthDetailed checks the database and Redis and reports runtime numbers.
// Any failed check makes the whole report unhealthy with a 503.
func HealthDetailed(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	checks := fiber.Map{}
	healthy := true

	if err := db.Ping(ctx, DB); err != nil {
		healthy = false
		checks["database"] = fiber.Map{"status": "unhealthy", "error": err.Error()}
	} else {
		checks["database"] = fiber.Map{"status": "healthy"}
	}

	if Redis == nil {
		checks["cache"] = fiber.Map{"status": "disabled"}
	} else if err := Redis.Ping(ctx).Err(); err != nil {
		healthy = false
		checks["cache"] = fiber.Map{"status": "unhealthy", "error": err.Error()}
	} else {
		checks["cache"] = fiber.Map{"status": "healthy"}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	status, code := "healthy", fiber.StatusOK
	if !healthy {
		status, code = "unhealthy", fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":         status,
		"timestamp":      time.Now().UTC(),
		"service":        appName(),
		"environment":    environment(),
		"uptime_seconds": int64(time.Since(StartedAt).Seconds()),
		"checks":         checks,
		"runtime": fiber.Map{
			"go_version":  runtime.Version(),
			"goroutines":  runtime.NumGoroutine(),
			"heap_alloc":  mem.HeapAlloc,
			"num_cpu":     runtime.NumCPU(),
		},
	})
}
