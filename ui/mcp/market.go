package mcp

import (
	"context"
	"fmt"
	"strings"

	domainCache "github.com/andriy-git/stocksTUI/domains/cache"
	"github.com/andriy-git/stocksTUI/market/application"
	"github.com/andriy-git/stocksTUI/market/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type MarketHandler struct {
	marketService *application.Service
	cacheService  domainCache.ICacheUsecase
}

func InitMcpMarket(marketService *application.Service, cacheService domainCache.ICacheUsecase) *MarketHandler {
	return &MarketHandler{
		marketService: marketService,
		cacheService:  cacheService,
	}
}

func (h *MarketHandler) AddMarketTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(h.toolQuotes(), h.handleQuotes)
	mcpServer.AddTool(h.toolTickerInfo(), h.handleTickerInfo)
	mcpServer.AddTool(h.toolCacheStats(), h.handleCacheStats)
	mcpServer.AddTool(h.toolRefresh(), h.handleRefresh)
}

func (h *MarketHandler) toolQuotes() mcp.Tool {
	return mcp.NewTool(
		"market_quotes",
		mcp.WithDescription("Return cached quotes for a comma-separated list of ticker symbols, including staleness verdicts and last fetch times. Reads the local cache only; values may be stale."),
		mcp.WithTitleAnnotation("Get Quotes"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("symbols",
			mcp.Description("Comma-separated ticker symbols, e.g. \"AAPL,GOOG\"."),
			mcp.Required(),
		),
	)
}

func (h *MarketHandler) handleQuotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("symbols")
	if err != nil {
		return nil, err
	}

	symbols := splitSymbols(raw)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no valid symbols in %q", raw)
	}

	snapshots, err := h.marketService.Snapshot(ctx, symbols)
	if err != nil {
		return nil, err
	}

	fallback := fmt.Sprintf("Returned %d quote snapshots", len(snapshots))
	return mcp.NewToolResultStructured(snapshots, fallback), nil
}

func (h *MarketHandler) toolTickerInfo() mcp.Tool {
	return mcp.NewTool(
		"market_ticker_info",
		mcp.WithDescription("Return cached exchange and naming metadata for one ticker symbol."),
		mcp.WithTitleAnnotation("Get Ticker Info"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("symbol",
			mcp.Description("One ticker symbol, e.g. \"AAPL\"."),
			mcp.Required(),
		),
	)
}

func (h *MarketHandler) handleTickerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symbol, err := request.RequireString("symbol")
	if err != nil {
		return nil, err
	}

	info, err := h.marketService.GetTickerInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}

	fallback := fmt.Sprintf("%s trades on %s", info.Symbol, info.Exchange)
	return mcp.NewToolResultStructured(info, fallback), nil
}

func (h *MarketHandler) toolCacheStats() mcp.Tool {
	return mcp.NewTool(
		"market_cache_stats",
		mcp.WithDescription("Return row counts, error counts and file size of the local market cache."),
		mcp.WithTitleAnnotation("Cache Stats"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
	)
}

func (h *MarketHandler) handleCacheStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_ = request
	stats, err := h.cacheService.Stats(ctx)
	if err != nil {
		return nil, err
	}

	fallback := fmt.Sprintf("Cache holds %d entries (%s)", stats.TotalEntries, stats.HumanSize)
	return mcp.NewToolResultStructured(stats, fallback), nil
}

func (h *MarketHandler) toolRefresh() mcp.Tool {
	return mcp.NewTool(
		"market_refresh",
		mcp.WithDescription("Demand a fresh fetch for the given symbols and wait for the results to land in the cache."),
		mcp.WithTitleAnnotation("Refresh Quotes"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithString("symbols",
			mcp.Description("Comma-separated ticker symbols to refresh."),
			mcp.Required(),
		),
	)
}

func (h *MarketHandler) handleRefresh(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("symbols")
	if err != nil {
		return nil, err
	}

	symbols := splitSymbols(raw)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no valid symbols in %q", raw)
	}

	if err := h.marketService.FetchFresh(ctx, symbols, []domain.DataKind{domain.KindQuote, domain.KindMeta}); err != nil {
		return nil, err
	}

	snapshots, err := h.marketService.Snapshot(ctx, symbols)
	if err != nil {
		return nil, err
	}

	fallback := fmt.Sprintf("Refreshed %d symbols", len(symbols))
	return mcp.NewToolResultStructured(snapshots, fallback), nil
}

func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if sym := domain.NormalizeSymbol(p); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}
