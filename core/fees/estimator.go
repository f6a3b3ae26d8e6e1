package fees

import (
	"context"
	"sort"
	"time"

	"github.com/flowmintdao/solana_swap_engine/config"
	"github.com/flowmintdao/solana_swap_engine/core/metrics"
	"github.com/flowmintdao/solana_swap_engine/core/retry"
	"github.com/flowmintdao/solana_swap_engine/utils/logger"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
)

// Recommendation is the priority fee applied to a swap transaction.
// ComputeUnitPrice is in micro-lamports per compute unit. A zero
// ComputeUnitLimit lets the aggregator size the budget dynamically.
type Recommendation struct {
	ComputeUnitPrice uint64 `json:"compute_unit_price"`
	ComputeUnitLimit uint32 `json:"compute_unit_limit,omitempty"`
	Tier             string `json:"tier"`
}

// Levels are the tiered fee readings from recent blocks.
type Levels struct {
	Low      uint64 `json:"low"`
	Medium   uint64 `json:"medium"`
	High     uint64 `json:"high"`
	VeryHigh uint64 `json:"very_high"`
}

type Estimator interface {
	EstimatePriorityFee(ctx context.Context, profile retry.Profile) Recommendation
}

// LevelSource abstracts where tier readings come from, the live RPC query or
// a cache in front of it.
type LevelSource interface {
	FeeLevels(ctx context.Context) (*Levels, error)
}

const defaultComputeUnitPrice = 5000 // micro-lamports, conservative medium

type TieredEstimator struct {
	source LevelSource
}

func NewTieredEstimator(source LevelSource) *TieredEstimator {
	return &TieredEstimator{source: source}
}

// EstimatePriorityFee selects a fee tier for the profile. It never fails: a
// dead fee source degrades to a conservative default rather than blocking an
// otherwise valid swap.
func (e *TieredEstimator) EstimatePriorityFee(ctx context.Context, profile retry.Profile) Recommendation {
	fallback := uint64(config.GetEngineConfig().DefaultComputeUnitPrice)
	if fallback == 0 {
		fallback = defaultComputeUnitPrice
	}

	levels, err := e.source.FeeLevels(ctx)
	if err != nil || levels == nil {
		if err != nil {
			logger.Logrus.WithFields(logrus.Fields{"ErrMsg": err.Error()}).Warn("fee level query failed, using default")
		}
		return Recommendation{ComputeUnitPrice: fallback, Tier: "default"}
	}

	rec := Recommendation{}
	switch profile.Name {
	case "fast":
		rec.ComputeUnitPrice, rec.Tier = levels.VeryHigh, "veryHigh"
	case "cheap":
		rec.ComputeUnitPrice, rec.Tier = levels.Low, "low"
	default:
		rec.ComputeUnitPrice, rec.Tier = levels.Medium, "medium"
	}
	if rec.ComputeUnitPrice == 0 {
		rec.ComputeUnitPrice = fallback
		rec.Tier = "default"
	}

	metrics.PriorityFeeGauge.WithLabelValues(rec.Tier).Set(float64(rec.ComputeUnitPrice))
	return rec
}

// RPCLevelSource reads recent prioritization fees from the chain RPC and
// buckets them into tiers by percentile.
type RPCLevelSource struct {
	rpcClient *rpc.Client
}

func NewRPCLevelSource() *RPCLevelSource {
	cfg := config.GetSolanaConfig()
	endpoint := cfg.RPCEndpoint
	if cfg.APIKey != "" {
		endpoint = endpoint + "/?api-key=" + cfg.APIKey
	}
	return &RPCLevelSource{rpcClient: rpc.New(endpoint)}
}

func (s *RPCLevelSource) FeeLevels(ctx context.Context) (*Levels, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.rpcClient.GetRecentPrioritizationFees(ctx, solana.PublicKeySlice{})
	if err != nil {
		return nil, err
	}

	samples := make([]uint64, 0, len(res))
	for _, r := range res {
		samples = append(samples, r.PrioritizationFee)
	}

	return LevelsFromSamples(samples), nil
}

// LevelsFromSamples buckets raw fee samples at the 25/50/75/95 percentiles.
func LevelsFromSamples(samples []uint64) *Levels {
	if len(samples) == 0 {
		return &Levels{}
	}

	sorted := make([]uint64, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	at := func(pct float64) uint64 {
		idx := int(pct * float64(len(sorted)-1))
		return sorted[idx]
	}

	return &Levels{
		Low:      at(0.25),
		Medium:   at(0.50),
		High:     at(0.75),
		VeryHigh: at(0.95),
	}
}
