package quote

import (
	"context"
	"strconv"
	"time"
)

const (
	SwapModeExactIn  = "ExactIn"
	SwapModeExactOut = "ExactOut"
)

type Request struct {
	InputMint   string
	OutputMint  string
	Amount      string // base units
	SlippageBps int
	SwapMode    string // ExactIn | ExactOut
}

type RouteStep struct {
	AmmKey     string `json:"ammKey"`
	Label      string `json:"label"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	FeeAmount  string `json:"feeAmount"`
	FeeMint    string `json:"feeMint"`
}

type RoutePlanStep struct {
	SwapInfo RouteStep `json:"swapInfo"`
	Percent  int       `json:"percent"`
}

// Quote is the aggregator's priced route proposal. Immutable once fetched;
// a quote older than the staleness bound must be re-fetched before use.
type Quote struct {
	InputMint            string          `json:"inputMint"`
	InAmount             string          `json:"inAmount"`
	OutputMint           string          `json:"outputMint"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	SwapMode             string          `json:"swapMode"`
	SlippageBps          int             `json:"slippageBps"`
	PriceImpactPct       string          `json:"priceImpactPct"`
	RoutePlan            []RoutePlanStep `json:"routePlan"`
	ContextSlot          uint64          `json:"contextSlot"`

	FetchedAt time.Time `json:"-"`
}

func (q *Quote) Age() time.Duration {
	if q.FetchedAt.IsZero() {
		return 0
	}
	return time.Since(q.FetchedAt)
}

func (q *Quote) Stale(bound time.Duration) bool {
	return bound > 0 && q.Age() > bound
}

// ImpactPct parses the aggregator's string-typed price impact percentage.
func (q *Quote) ImpactPct() float64 {
	v, err := strconv.ParseFloat(q.PriceImpactPct, 64)
	if err != nil {
		return 0
	}
	return v
}

func (q *Quote) Hops() int {
	return len(q.RoutePlan)
}

type Provider interface {
	Quote(ctx context.Context, req Request) (*Quote, error)
}
