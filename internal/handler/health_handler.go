package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/uniserve-app/uniserve-go-api/internal/config"
	"github.com/uniserve-app/uniserve-go-api/internal/utils"
)

// HealthResponse is the liveness payload served to load balancers.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
}

// HealthCheck reports process liveness. It deliberately touches no backing
// store so a degraded database never flaps the instance out of rotation.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, "service healthy", HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		})
	}
}
