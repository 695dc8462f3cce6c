package domain

import (
	"context"
	"fmt"
)

// FetchResult is the provider's answer for a single symbol inside a
// batch. Exactly one of Payload or Err is set. Exchange is filled when
// the upstream reports it, saving the caller a meta lookup.
type FetchResult struct {
	Symbol   string
	Payload  []byte
	Exchange string
	Err      error
}

// PriceProvider fetches market data in batches. Implementations must
// return one FetchResult per requested symbol; a symbol the upstream
// does not know is a per-symbol error, not a batch failure. The batch
// itself fails only when nothing was answered (network, auth, decode).
type PriceProvider interface {
	FetchBatch(ctx context.Context, symbols []string, kind DataKind) (map[string]FetchResult, error)
}

// Provider error codes.
const (
	ProviderCodeNotFound = "SYMBOL_NOT_FOUND"
	ProviderCodeHTTP     = "UPSTREAM_STATUS"
	ProviderCodeNetwork  = "NETWORK"
	ProviderCodeDecode   = "DECODE"
)

// ProviderError classifies a fetch failure. Transient failures (network
// blips, 5xx, throttling) are worth retrying on a later tick; permanent
// ones (unknown symbol) will not fix themselves. The pipeline records
// both the same way, the classification is for consumers.
type ProviderError struct {
	Symbol    string
	Code      string
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("provider: %s: %s: %v", e.Symbol, e.Code, e.Err)
	}
	return fmt.Sprintf("provider: %s: %v", e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Temporary() bool { return e.Transient }
