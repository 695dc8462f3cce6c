package validations

import (
	"context"
	"regexp"

	domainWatchlist "github.com/andriy-git/stocksTUI/domains/watchlist"
	pkgError "github.com/andriy-git/stocksTUI/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// symbolPattern covers plain tickers plus the suffixes providers use:
// class shares (BRK-B), foreign listings (BMW.DE), crypto (BTC-USD),
// indexes (^GSPC) and futures (ES=F).
var symbolPattern = regexp.MustCompile(`^[\^]?[A-Z0-9][A-Z0-9.\-=]{0,14}$`)

func ValidateCreateWatchlist(ctx context.Context, request domainWatchlist.CreateRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Name, validation.Required, validation.Length(1, 64)),
		validation.Field(&request.Description, validation.Length(0, 256)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateAddSymbol(ctx context.Context, request domainWatchlist.AddSymbolRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Symbol, validation.Required, validation.Match(symbolPattern)),
		validation.Field(&request.Alias, validation.Length(0, 64)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
