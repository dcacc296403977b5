package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

// BusPinger reports whether a message bus connection is open.
type BusPinger interface {
	Ping() error
}

func RegisterHealthRoutes(app fiber.Router, sqlDB *sql.DB, rdb *redis.Client, buses ...BusPinger) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(sqlDB, rdb, buses...))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

func ReadyzHandler(sqlDB *sql.DB, rdb *redis.Client, buses ...BusPinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
		defer cancel()

		pgErr := sqlDB.PingContext(ctx)
		redisErr := rdb.Ping(ctx).Err()
		var busErr error
		for _, bus := range buses {
			if err := bus.Ping(); err != nil {
				busErr = err
				break
			}
		}

		status := "ready"
		statusCode := fiber.StatusOK
		if pgErr != nil || redisErr != nil || busErr != nil {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": fiber.Map{
				"postgres": checkStatus(pgErr),
				"redis":    checkStatus(redisErr),
				"rabbitmq": checkStatus(busErr),
			},
		})
	}
}

func checkStatus(err error) string {
	if err != nil {
		return "down"
	}
	return "ok"
}
