package rest

import (
	"context"
	"strings"

	"github.com/andriy-git/stocksTUI/market/application"
	"github.com/andriy-git/stocksTUI/market/domain"
	"github.com/andriy-git/stocksTUI/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Market struct {
	Service *application.Service
}

func InitRestMarket(app fiber.Router, service *application.Service) Market {
	rest := Market{Service: service}
	app.Get("/quotes", rest.GetQuotes)
	app.Get("/quotes/:symbol", rest.GetQuote)
	app.Get("/quotes/:symbol/info", rest.GetTickerInfo)
	app.Get("/quotes/:symbol/news", rest.GetNews)
	app.Post("/refresh", rest.Refresh)
	app.Post("/refresh/force", rest.ForceRefresh)
	app.Get("/scheduler", rest.SchedulerStats)
	app.Post("/scheduler/start", rest.StartScheduler)
	app.Post("/scheduler/stop", rest.StopScheduler)
	app.Get("/system/pool", rest.PoolStats)

	return rest
}

// parseSymbols splits a comma-separated symbols query parameter.
func parseSymbols(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if sym := domain.NormalizeSymbol(p); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}

// GetQuotes returns the cached snapshot for a symbol set, staleness
// verdicts included. It never triggers fetches; data is whatever the
// store holds right now.
func (handler *Market) GetQuotes(c *fiber.Ctx) error {
	symbols := parseSymbols(c.Query("symbols"))
	if len(symbols) == 0 {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: "symbols query parameter is required",
		})
	}

	snapshots, err := handler.Service.Snapshot(c.UserContext(), symbols)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Quotes retrieved",
		Results: snapshots,
	})
}

func (handler *Market) GetQuote(c *fiber.Ctx) error {
	symbol := c.Params("symbol")
	quote, entry, err := handler.Service.GetQuote(c.UserContext(), symbol)
	if err == domain.ErrEntryNotFound {
		return c.Status(404).JSON(utils.ResponseData{
			Status:  404,
			Code:    "NOT_FOUND",
			Message: "No cached quote for " + domain.NormalizeSymbol(symbol),
			Results: fiber.Map{"last_error": entry.LastError},
		})
	}
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Quote retrieved",
		Results: fiber.Map{
			"quote":          quote,
			"fetched_at":     entry.FetchedAt,
			"session_marker": entry.SessionMarker,
		},
	})
}

func (handler *Market) GetTickerInfo(c *fiber.Ctx) error {
	info, err := handler.Service.GetTickerInfo(c.UserContext(), c.Params("symbol"))
	if err == domain.ErrEntryNotFound {
		return c.Status(404).JSON(utils.ResponseData{
			Status:  404,
			Code:    "NOT_FOUND",
			Message: "No cached ticker info for " + domain.NormalizeSymbol(c.Params("symbol")),
		})
	}
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Ticker info retrieved",
		Results: info,
	})
}

func (handler *Market) GetNews(c *fiber.Ctx) error {
	items, err := handler.Service.GetNews(c.UserContext(), c.Params("symbol"))
	if err == domain.ErrEntryNotFound {
		return c.Status(404).JSON(utils.ResponseData{
			Status:  404,
			Code:    "NOT_FOUND",
			Message: "No cached news for " + domain.NormalizeSymbol(c.Params("symbol")),
		})
	}
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "News retrieved",
		Results: items,
	})
}

// Refresh nudges the scheduler for a soft (stale-only) pass, or demands
// the given symbols directly when a symbols parameter is present.
func (handler *Market) Refresh(c *fiber.Ctx) error {
	symbols := parseSymbols(c.Query("symbols"))
	if len(symbols) > 0 {
		keys := make([]domain.CacheKey, 0, len(symbols)*2)
		for _, sym := range symbols {
			keys = append(keys,
				domain.NewCacheKey(sym, domain.KindQuote),
				domain.NewCacheKey(sym, domain.KindMeta))
		}
		_, err := handler.Service.Demand(c.UserContext(), keys)
		utils.PanicIfNeeded(err)

		return c.JSON(utils.ResponseData{
			Status:  200,
			Code:    "SUCCESS",
			Message: "Refresh demanded",
			Results: fiber.Map{"keys": len(keys)},
		})
	}

	err := handler.Service.RefreshNow(false)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Soft refresh triggered",
	})
}

func (handler *Market) ForceRefresh(c *fiber.Ctx) error {
	err := handler.Service.RefreshNow(true)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Force refresh triggered",
	})
}

func (handler *Market) SchedulerStats(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Scheduler stats retrieved",
		Results: handler.Service.SchedulerStats(),
	})
}

func (handler *Market) StartScheduler(c *fiber.Ctx) error {
	// The loop must outlive this request, so it does not get the
	// request context.
	err := handler.Service.StartScheduler(context.Background())
	if err == domain.ErrSchedulerRunning {
		return c.Status(409).JSON(utils.ResponseData{
			Status:  409,
			Code:    "ALREADY_RUNNING",
			Message: err.Error(),
		})
	}
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Scheduler started",
	})
}

func (handler *Market) StopScheduler(c *fiber.Ctx) error {
	err := handler.Service.StopScheduler(c.UserContext())
	if err == domain.ErrSchedulerNotActive {
		return c.Status(409).JSON(utils.ResponseData{
			Status:  409,
			Code:    "NOT_RUNNING",
			Message: err.Error(),
		})
	}
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Scheduler stopped",
	})
}

// PoolStats returns real-time fetch worker pool statistics.
func (handler *Market) PoolStats(c *fiber.Ctx) error {
	return c.JSON(handler.Service.PoolStats())
}
