package rest

import (
	"time"

	domainCache "github.com/andriy-git/stocksTUI/domains/cache"
	"github.com/andriy-git/stocksTUI/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Cache struct {
	Service domainCache.ICacheUsecase
}

func InitRestCache(app fiber.Router, service domainCache.ICacheUsecase) Cache {
	rest := Cache{Service: service}
	app.Get("/cache/stats", rest.GetStats)
	app.Post("/cache/clear", rest.Clear)
	app.Post("/cache/prune", rest.Prune)

	return rest
}

func (handler *Cache) GetStats(c *fiber.Ctx) error {
	stats, err := handler.Service.Stats(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache stats retrieved",
		Results: stats,
	})
}

func (handler *Cache) Clear(c *fiber.Ctx) error {
	err := handler.Service.Clear(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache cleared successfully",
	})
}

// Prune removes entries older than the optional older_than query
// duration ("72h", "30m"); zero falls back to the configured retention.
func (handler *Cache) Prune(c *fiber.Ctx) error {
	var olderThan time.Duration
	if raw := c.Query("older_than"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return c.Status(400).JSON(utils.ResponseData{
				Status:  400,
				Code:    "BAD_REQUEST",
				Message: "invalid older_than duration: " + raw,
			})
		}
		olderThan = parsed
	}

	result, err := handler.Service.Prune(c.UserContext(), olderThan)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache pruned",
		Results: result,
	})
}
