package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/flowmintdao/solana_swap_engine/core/quote"
	"github.com/flowmintdao/solana_swap_engine/utils/logger"
	"github.com/sirupsen/logrus"
)

type Level string

const (
	LevelGreen Level = "GREEN"
	LevelAmber Level = "AMBER"
	LevelRed   Level = "RED"
)

func (l Level) severity() int {
	switch l {
	case LevelRed:
		return 2
	case LevelAmber:
		return 1
	default:
		return 0
	}
}

func worse(a, b Level) Level {
	if b.severity() > a.severity() {
		return b
	}
	return a
}

type Reason struct {
	Factor    string  `json:"factor"`
	Level     Level   `json:"level"`
	Message   string  `json:"message"`
	Value     float64 `json:"value,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

type Assessment struct {
	Level                   Level    `json:"level"`
	Reasons                 []Reason `json:"reasons"`
	BlockedInProtectedMode  bool     `json:"blocked_in_protected_mode"`
	RequiresAcknowledgement bool     `json:"requires_acknowledgement"`
	QuoteAgeSeconds         float64  `json:"quote_age_seconds"`
}

// Warnings renders the non-green reasons for attachment to a receipt.
func (a Assessment) Warnings() []string {
	out := make([]string, 0, len(a.Reasons))
	for _, r := range a.Reasons {
		out = append(out, r.Message)
	}
	return out
}

type Request struct {
	InputMint     string
	OutputMint    string
	SlippageBps   int
	ProtectedMode bool
	TradeValueUSD float64 // 0 when unknown
}

// TokenMeta is the optional safety metadata for one mint. A nil meta skips
// the token-safety factor.
type TokenMeta struct {
	Mint            string
	Symbol          string
	FreezeAuthority bool
	TransferFeeBps  int
	CreatedAt       time.Time
	HolderCount     int64
}

type TokenMetaSource interface {
	TokenMeta(ctx context.Context, mint string) (*TokenMeta, error)
}

// thresholds, percentages unless noted
const (
	impactGreenPct          = 0.5
	impactAmberPct          = 1.0
	impactGreenProtectedPct = 0.3
	impactAmberProtectedPct = 0.5
	impactCeilingPct        = 5.0

	slippageStableBps    = 10
	slippageMajorBps     = 50
	slippageProtectedBps = 100
	slippageNormalBps    = 300
	slippageCeilingBps   = 1000

	hopsAmber = 3
	hopsRed   = 4

	tradeValueAmberShare = 0.25

	tokenMinAgeAmber   = 7 * 24 * time.Hour
	tokenMinAgeRed     = 24 * time.Hour
	tokenMinHolders    = 100
	transferFeeRedBps  = 100
	defaultMaxTradeUSD = 100000
)

type Config struct {
	MaxTradeValueUSD float64
	DenyListMints    []string
	StablecoinMints  []string
}

type Scorer struct {
	meta        TokenMetaSource
	maxTradeUSD float64
	denyList    map[string]bool
	stablecoins map[string]bool
}

// well-known stablecoin mints on mainnet
var defaultStablecoins = []string{
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", // USDC
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", // USDT
}

func NewScorer(meta TokenMetaSource, cfg Config) *Scorer {
	s := &Scorer{
		meta:        meta,
		maxTradeUSD: cfg.MaxTradeValueUSD,
		denyList:    map[string]bool{},
		stablecoins: map[string]bool{},
	}
	if s.maxTradeUSD <= 0 {
		s.maxTradeUSD = defaultMaxTradeUSD
	}
	for _, m := range cfg.DenyListMints {
		s.denyList[m] = true
	}
	stables := cfg.StablecoinMints
	if len(stables) == 0 {
		stables = defaultStablecoins
	}
	for _, m := range stables {
		s.stablecoins[m] = true
	}
	return s
}

// ScoreSwap evaluates every factor independently and aggregates to the worst
// level. It never blocks on the metadata source: a lookup failure just skips
// the token-safety factor.
func (s *Scorer) ScoreSwap(ctx context.Context, req Request, q *quote.Quote) Assessment {
	out := Assessment{Level: LevelGreen, QuoteAgeSeconds: q.Age().Seconds()}

	add := func(r Reason) {
		out.Level = worse(out.Level, r.Level)
		if r.Level != LevelGreen {
			out.Reasons = append(out.Reasons, r)
		}
	}

	add(s.scoreImpact(q.ImpactPct(), req.ProtectedMode))
	add(s.scoreSlippage(req))
	add(s.scoreRoute(q.Hops()))
	add(s.scoreTradeValue(req.TradeValueUSD))

	for _, mint := range []string{req.InputMint, req.OutputMint} {
		for _, r := range s.scoreToken(ctx, mint) {
			add(r)
		}
	}

	out.BlockedInProtectedMode = req.ProtectedMode && out.Level == LevelRed
	out.RequiresAcknowledgement = out.Level != LevelGreen

	if out.Level != LevelGreen {
		logger.Logrus.WithFields(logrus.Fields{
			"Level":   out.Level,
			"Reasons": out.Reasons,
			"Blocked": out.BlockedInProtectedMode,
		}).Info("elevated swap risk")
	}

	return out
}

func (s *Scorer) scoreImpact(impact float64, protected bool) Reason {
	greenCeil, amberCeil := impactGreenPct, impactAmberPct
	if protected {
		greenCeil, amberCeil = impactGreenProtectedPct, impactAmberProtectedPct
	}

	r := Reason{Factor: "price_impact", Level: LevelGreen, Value: impact}
	switch {
	case impact > impactCeilingPct:
		r.Level = LevelRed
		r.Threshold = impactCeilingPct
		r.Message = fmt.Sprintf("price impact %.2f%% exceeds absolute ceiling %.1f%%", impact, impactCeilingPct)
	case impact > amberCeil:
		r.Level = LevelRed
		r.Threshold = amberCeil
		r.Message = fmt.Sprintf("price impact %.2f%% above %.2f%% threshold", impact, amberCeil)
	case impact > greenCeil:
		r.Level = LevelAmber
		r.Threshold = greenCeil
		r.Message = fmt.Sprintf("price impact %.2f%% above %.2f%% threshold", impact, greenCeil)
	}
	return r
}

func (s *Scorer) scoreSlippage(req Request) Reason {
	bps := float64(req.SlippageBps)
	stablePair := s.stablecoins[req.InputMint] && s.stablecoins[req.OutputMint]

	greenCeil := float64(slippageMajorBps)
	amberCeil := float64(slippageNormalBps)
	if req.ProtectedMode {
		amberCeil = float64(slippageProtectedBps)
	}
	if stablePair {
		greenCeil = float64(slippageStableBps)
		amberCeil = float64(slippageMajorBps)
	}

	r := Reason{Factor: "slippage", Level: LevelGreen, Value: bps}
	switch {
	case bps > slippageCeilingBps:
		r.Level = LevelRed
		r.Threshold = slippageCeilingBps
		r.Message = fmt.Sprintf("slippage tolerance %d bps exceeds absolute ceiling %d bps", req.SlippageBps, slippageCeilingBps)
	case bps > amberCeil:
		r.Level = LevelRed
		r.Threshold = amberCeil
		r.Message = fmt.Sprintf("slippage tolerance %d bps above %.0f bps threshold", req.SlippageBps, amberCeil)
	case bps > greenCeil:
		r.Level = LevelAmber
		r.Threshold = greenCeil
		r.Message = fmt.Sprintf("slippage tolerance %d bps above %.0f bps threshold", req.SlippageBps, greenCeil)
	}
	return r
}

func (s *Scorer) scoreRoute(hops int) Reason {
	r := Reason{Factor: "route_complexity", Level: LevelGreen, Value: float64(hops)}
	switch {
	case hops >= hopsRed:
		r.Level = LevelRed
		r.Threshold = hopsRed
		r.Message = fmt.Sprintf("route crosses %d pools, partial-failure risk is high", hops)
	case hops >= hopsAmber:
		r.Level = LevelAmber
		r.Threshold = hopsAmber
		r.Message = fmt.Sprintf("route crosses %d pools", hops)
	}
	return r
}

func (s *Scorer) scoreTradeValue(usd float64) Reason {
	r := Reason{Factor: "trade_size", Level: LevelGreen, Value: usd}
	if usd <= 0 {
		return r
	}
	switch {
	case usd > s.maxTradeUSD:
		r.Level = LevelRed
		r.Threshold = s.maxTradeUSD
		r.Message = fmt.Sprintf("trade value $%.0f exceeds maximum $%.0f", usd, s.maxTradeUSD)
	case usd > s.maxTradeUSD*tradeValueAmberShare:
		r.Level = LevelAmber
		r.Threshold = s.maxTradeUSD * tradeValueAmberShare
		r.Message = fmt.Sprintf("trade value $%.0f is large for available liquidity", usd)
	}
	return r
}

func (s *Scorer) scoreToken(ctx context.Context, mint string) []Reason {
	if s.denyList[mint] {
		return []Reason{{
			Factor:  "token_safety",
			Level:   LevelRed,
			Message: fmt.Sprintf("token %s is blacklisted and cannot be traded", mint),
		}}
	}

	if s.meta == nil {
		return nil
	}
	meta, err := s.meta.TokenMeta(ctx, mint)
	if err != nil || meta == nil {
		// metadata is best effort
		return nil
	}

	var out []Reason
	if meta.FreezeAuthority {
		out = append(out, Reason{
			Factor:  "token_safety",
			Level:   LevelAmber,
			Message: fmt.Sprintf("token %s has an active freeze authority", mint),
		})
	}
	if meta.TransferFeeBps > 0 {
		lvl := LevelAmber
		if meta.TransferFeeBps > transferFeeRedBps {
			lvl = LevelRed
		}
		out = append(out, Reason{
			Factor:    "token_safety",
			Level:     lvl,
			Value:     float64(meta.TransferFeeBps),
			Threshold: transferFeeRedBps,
			Message:   fmt.Sprintf("token %s charges a %d bps transfer fee", mint, meta.TransferFeeBps),
		})
	}
	if !meta.CreatedAt.IsZero() {
		age := time.Since(meta.CreatedAt)
		if age < tokenMinAgeRed {
			out = append(out, Reason{
				Factor:  "token_safety",
				Level:   LevelRed,
				Value:   age.Hours(),
				Message: fmt.Sprintf("token %s is less than a day old", mint),
			})
		} else if age < tokenMinAgeAmber {
			out = append(out, Reason{
				Factor:  "token_safety",
				Level:   LevelAmber,
				Value:   age.Hours(),
				Message: fmt.Sprintf("token %s is less than 7 days old", mint),
			})
		}
	}
	if meta.HolderCount > 0 && meta.HolderCount < tokenMinHolders {
		out = append(out, Reason{
			Factor:    "token_safety",
			Level:     LevelAmber,
			Value:     float64(meta.HolderCount),
			Threshold: tokenMinHolders,
			Message:   fmt.Sprintf("token %s has only %d holders", mint, meta.HolderCount),
		})
	}
	return out
}
