package rest

import (
	settingsApp "github.com/andriy-git/stocksTUI/core/settings/application"
	"github.com/andriy-git/stocksTUI/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Settings struct {
	Service *settingsApp.SettingsService
}

func InitRestSettings(app fiber.Router, service *settingsApp.SettingsService) Settings {
	rest := Settings{Service: service}
	app.Get("/settings", rest.GetSettings)
	app.Put("/settings", rest.UpdateSettings)

	return rest
}

func (handler *Settings) GetSettings(c *fiber.Ctx) error {
	settings, err := handler.Service.GetDynamicSettings(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Settings retrieved",
		Results: settings,
	})
}

// UpdateSettings persists overrides; they apply on the next boot (the
// running scheduler keeps its current cadence).
func (handler *Settings) UpdateSettings(c *fiber.Ctx) error {
	var body settingsApp.DynamicSettings
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: err.Error(),
		})
	}

	ctx := c.UserContext()
	if body.DefaultExchange != "" {
		utils.PanicIfNeeded(handler.Service.SetDefaultExchange(ctx, body.DefaultExchange))
	}
	if body.RefreshMinIntervalS != nil {
		utils.PanicIfNeeded(handler.Service.SetRefreshMinInterval(ctx, *body.RefreshMinIntervalS))
	}
	if body.RefreshBaseIntervalS != nil {
		utils.PanicIfNeeded(handler.Service.SetRefreshBaseInterval(ctx, *body.RefreshBaseIntervalS))
	}
	if body.RefreshMaxIntervalS != nil {
		utils.PanicIfNeeded(handler.Service.SetRefreshMaxInterval(ctx, *body.RefreshMaxIntervalS))
	}
	if body.RefreshBoundaryWindS != nil {
		utils.PanicIfNeeded(handler.Service.SetRefreshBoundaryWindow(ctx, *body.RefreshBoundaryWindS))
	}
	if body.CacheRetentionDays != nil {
		utils.PanicIfNeeded(handler.Service.SetCacheRetentionDays(ctx, *body.CacheRetentionDays))
	}
	if body.CacheMaxEntryAgeHours != nil {
		utils.PanicIfNeeded(handler.Service.SetCacheMaxEntryAge(ctx, *body.CacheMaxEntryAgeHours))
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Settings updated",
	})
}
