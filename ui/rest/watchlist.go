package rest

import (
	domainWatchlist "github.com/andriy-git/stocksTUI/domains/watchlist"
	"github.com/andriy-git/stocksTUI/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Watchlist struct {
	Service domainWatchlist.IWatchlistUsecase
}

func InitRestWatchlist(app fiber.Router, service domainWatchlist.IWatchlistUsecase) Watchlist {
	rest := Watchlist{Service: service}
	app.Get("/watchlists", rest.List)
	app.Post("/watchlists", rest.Create)
	app.Get("/watchlists/:id", rest.Get)
	app.Put("/watchlists/:id", rest.Update)
	app.Delete("/watchlists/:id", rest.Delete)
	app.Post("/watchlists/:id/symbols", rest.AddSymbol)
	app.Delete("/watchlists/:id/symbols/:symbol", rest.RemoveSymbol)

	return rest
}

func (handler *Watchlist) List(c *fiber.Ctx) error {
	lists, err := handler.Service.List(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Watchlists retrieved",
		Results: lists,
	})
}

func (handler *Watchlist) Create(c *fiber.Ctx) error {
	var request domainWatchlist.CreateRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: err.Error(),
		})
	}

	list, err := handler.Service.Create(c.UserContext(), request.Name, request.Description)
	if err == domainWatchlist.ErrDuplicateList {
		return c.Status(409).JSON(utils.ResponseData{
			Status:  409,
			Code:    "DUPLICATE",
			Message: err.Error(),
		})
	}
	utils.PanicIfNeeded(err)

	return c.Status(201).JSON(utils.ResponseData{
		Status:  201,
		Code:    "SUCCESS",
		Message: "Watchlist created",
		Results: list,
	})
}

func (handler *Watchlist) Get(c *fiber.Ctx) error {
	list, err := handler.Service.Get(c.UserContext(), c.Params("id"))
	if err == domainWatchlist.ErrListNotFound {
		return notFound(c, err.Error())
	}
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Watchlist retrieved",
		Results: list,
	})
}

func (handler *Watchlist) Update(c *fiber.Ctx) error {
	var request domainWatchlist.CreateRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: err.Error(),
		})
	}

	err := handler.Service.Update(c.UserContext(), domainWatchlist.Watchlist{
		ID:          c.Params("id"),
		Name:        request.Name,
		Description: request.Description,
	})
	if err == domainWatchlist.ErrListNotFound {
		return notFound(c, err.Error())
	}
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Watchlist updated",
	})
}

func (handler *Watchlist) Delete(c *fiber.Ctx) error {
	err := handler.Service.Delete(c.UserContext(), c.Params("id"))
	if err == domainWatchlist.ErrListNotFound {
		return notFound(c, err.Error())
	}
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Watchlist deleted",
	})
}

func (handler *Watchlist) AddSymbol(c *fiber.Ctx) error {
	var request domainWatchlist.AddSymbolRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: err.Error(),
		})
	}

	list, err := handler.Service.AddSymbol(c.UserContext(), c.Params("id"), request.Symbol, request.Alias)
	if err == domainWatchlist.ErrListNotFound {
		return notFound(c, err.Error())
	}
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Symbol added",
		Results: list,
	})
}

func (handler *Watchlist) RemoveSymbol(c *fiber.Ctx) error {
	list, err := handler.Service.RemoveSymbol(c.UserContext(), c.Params("id"), c.Params("symbol"))
	if err == domainWatchlist.ErrListNotFound {
		return notFound(c, err.Error())
	}
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Symbol removed",
		Results: list,
	})
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(404).JSON(utils.ResponseData{
		Status:  404,
		Code:    "NOT_FOUND",
		Message: msg,
	})
}
