package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowmintdao/solana_swap_engine/config"
	"github.com/flowmintdao/solana_swap_engine/core/errclass"
	"github.com/flowmintdao/solana_swap_engine/core/fees"
	"github.com/flowmintdao/solana_swap_engine/core/metrics"
	"github.com/flowmintdao/solana_swap_engine/core/model"
	"github.com/flowmintdao/solana_swap_engine/core/quote"
	"github.com/flowmintdao/solana_swap_engine/core/retry"
	"github.com/flowmintdao/solana_swap_engine/core/risk"
	"github.com/flowmintdao/solana_swap_engine/core/submit"
	"github.com/flowmintdao/solana_swap_engine/utils/logger"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Intent is one caller-supplied swap request.
type Intent struct {
	UserAddress   string
	InputMint     string
	OutputMint    string
	AmountIn      string // base units
	SlippageBps   int
	SwapMode      string // ExactIn | ExactOut
	ProtectedMode bool
	Profile       string // auto | fast | cheap
	TradeValueUSD float64
}

// Result is the terminal outcome of one engine call, success or failed,
// never indefinitely pending.
type Result struct {
	ReceiptID            string       `json:"receipt_id"`
	Status               string       `json:"status"`
	Quote                *quote.Quote `json:"quote,omitempty"`
	Transaction          string       `json:"transaction,omitempty"`
	LastValidBlockHeight uint64       `json:"last_valid_block_height,omitempty"`
	TxSignature          string       `json:"tx_signature,omitempty"`
	OutAmount            string       `json:"out_amount,omitempty"`
	RiskLevel            string       `json:"risk_level"`
	Warnings             []string     `json:"warnings"`
	Attempts             int          `json:"attempts"`
	ErrMsg               string       `json:"error,omitempty"`
}

type ReceiptStore interface {
	Create(ctx context.Context, r *model.SwapReceipt) error
	Get(ctx context.Context, receiptID string) (*model.SwapReceipt, error)
	SaveQuoteOutcome(ctx context.Context, receiptID, outAmount string, impactPct float64, riskLevel string, warnings []string, attempts int64) error
	Finalize(ctx context.Context, receiptID, status, txSignature, errMsg, outAmount string, attempts int64) error
	UpdateStatus(ctx context.Context, receiptID, status, txSignature, errMsg string) error
	ListEvents(ctx context.Context, receiptID string) ([]model.SwapExecutionEvent, error)
}

type EventRecorder interface {
	Record(ctx context.Context, receiptID, eventType string, metadata map[string]interface{}) error
}

type RiskScorer interface {
	ScoreSwap(ctx context.Context, req risk.Request, q *quote.Quote) risk.Assessment
}

// Engine drives one swap through quote, risk check, build, send and confirm
// with classified retries and requotes. All collaborators are injected; the
// engine holds no global state and instances are safe for concurrent use.
type Engine struct {
	quotes    quote.Provider
	submitter submit.Submitter
	fees      fees.Estimator
	risk      RiskScorer
	receipts  ReceiptStore
	events    EventRecorder

	staleness      time.Duration
	confirmPoll    time.Duration
	confirmTimeout time.Duration
}

func New(q quote.Provider, s submit.Submitter, f fees.Estimator, r RiskScorer, store ReceiptStore, rec EventRecorder) *Engine {
	e := &Engine{
		quotes:    q,
		submitter: s,
		fees:      f,
		risk:      r,
		receipts:  store,
		events:    rec,

		staleness:      30 * time.Second,
		confirmPoll:    2 * time.Second,
		confirmTimeout: 60 * time.Second,
	}

	cfg := config.GetEngineConfig()
	if cfg.QuoteStalenessSeconds > 0 {
		e.staleness = time.Duration(cfg.QuoteStalenessSeconds) * time.Second
	}
	if cfg.ConfirmPollMillis > 0 {
		e.confirmPoll = time.Duration(cfg.ConfirmPollMillis) * time.Millisecond
	}
	if cfg.ConfirmTimeoutSeconds > 0 {
		e.confirmTimeout = time.Duration(cfg.ConfirmTimeoutSeconds) * time.Second
	}

	return e
}

// ExecuteSwap runs the quote -> risk -> build pipeline and returns the
// unsigned transaction for the caller to sign. The receipt stays pending
// until SubmitSigned or the confirmation callback finalizes it. Failures are
// reported in the Result, the error return is reserved for infrastructure
// faults before a receipt exists.
func (e *Engine) ExecuteSwap(ctx context.Context, intent Intent) (*Result, error) {
	profile := retry.ProfileByName(intent.Profile)
	start := time.Now()

	rec := &model.SwapReceipt{
		ReceiptID:     uuid.NewString(),
		UserAddress:   intent.UserAddress,
		InputMint:     intent.InputMint,
		OutputMint:    intent.OutputMint,
		InAmount:      intent.AmountIn,
		SlippageBps:   int64(intent.SlippageBps),
		ProtectedMode: intent.ProtectedMode,
		Profile:       profile.Name,
		Status:        model.ReceiptStatusPending,
	}
	if err := e.receipts.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create receipt: %w", err)
	}

	res := &Result{ReceiptID: rec.ReceiptID, Status: StatusFailed}

	ctx, cancel := context.WithTimeout(ctx, profile.ExecutionBudget())
	defer cancel()

	st := retry.NewState()

	q, err := e.fetchQuote(ctx, rec.ReceiptID, intent, profile, st)
	if err != nil {
		return e.fail(ctx, res, st, profile, start, err), nil
	}

	assessment := e.risk.ScoreSwap(ctx, risk.Request{
		InputMint:     intent.InputMint,
		OutputMint:    intent.OutputMint,
		SlippageBps:   intent.SlippageBps,
		ProtectedMode: intent.ProtectedMode,
		TradeValueUSD: intent.TradeValueUSD,
	}, q)

	res.RiskLevel = string(assessment.Level)
	res.Warnings = assessment.Warnings()

	if assessment.BlockedInProtectedMode {
		metrics.RiskBlocksTotal.WithLabelValues(res.RiskLevel).Inc()
		err := fmt.Errorf("blocked by protected mode: risk level %s", assessment.Level)
		return e.fail(ctx, res, st, profile, start, err), nil
	}
	if assessment.RequiresAcknowledgement {
		// advisory only outside protected mode, the caller owns the
		// acknowledgement flow
		metrics.RiskWarningsTotal.WithLabelValues(res.RiskLevel).Inc()
	}

	if err := e.receipts.SaveQuoteOutcome(ctx, rec.ReceiptID, q.OutAmount, q.ImpactPct(), res.RiskLevel, res.Warnings, int64(st.Attempts+1)); err != nil {
		logger.Logrus.WithFields(logrus.Fields{"ReceiptID": rec.ReceiptID, "ErrMsg": err.Error()}).Error("save quote outcome failed")
	}

	build, q, err := e.buildTransaction(ctx, rec.ReceiptID, intent, profile, st, q)
	if err != nil {
		return e.fail(ctx, res, st, profile, start, err), nil
	}

	res.Status = StatusSuccess
	res.Quote = q
	res.Transaction = build.SwapTransaction
	res.LastValidBlockHeight = build.LastValidBlockHeight
	res.OutAmount = q.OutAmount
	res.Attempts = st.Attempts + 1

	metrics.ExecutionsTotal.WithLabelValues("built", profile.Name).Inc()
	metrics.ExecutionDuration.WithLabelValues(profile.Name).Observe(time.Since(start).Seconds())

	return res, nil
}

// fetchQuote loops until a quote arrives or the retry policy gives up.
func (e *Engine) fetchQuote(ctx context.Context, receiptID string, intent Intent, profile retry.Profile, st *retry.State) (*quote.Quote, error) {
	for {
		evType := model.EventQuote
		if st.Requotes > 0 {
			evType = model.EventRequote
		}

		q, err := e.quotes.Quote(ctx, quote.Request{
			InputMint:   intent.InputMint,
			OutputMint:  intent.OutputMint,
			Amount:      intent.AmountIn,
			SlippageBps: intent.SlippageBps,
			SwapMode:    intent.SwapMode,
		})
		if err == nil {
			e.events.Record(ctx, receiptID, evType, map[string]interface{}{
				"in_amount":  q.InAmount,
				"out_amount": q.OutAmount,
				"impact_pct": q.PriceImpactPct,
				"hops":       q.Hops(),
				"attempt":    st.Attempts + 1,
			})
			return q, nil
		}

		if retryErr := e.retryOrGiveUp(ctx, receiptID, profile, st, err); retryErr != nil {
			return nil, retryErr
		}
	}
}

// buildTransaction turns the quote into an unsigned transaction. A
// requote-classified failure (or a quote gone stale) loops back to quoting
// instead of re-building from dead prices.
func (e *Engine) buildTransaction(ctx context.Context, receiptID string, intent Intent, profile retry.Profile, st *retry.State, q *quote.Quote) (*submit.BuildResult, *quote.Quote, error) {
	feeRec := e.fees.EstimatePriorityFee(ctx, profile)

	for {
		if q.Stale(e.staleness) {
			stale := errclass.ClassifiedError{
				Category:        errclass.CategoryRequote,
				Code:            "QUOTE_EXPIRED",
				Retryable:       true,
				RequiresRequote: true,
				Raw:             fmt.Errorf("quote is stale after %.1fs", q.Age().Seconds()),
			}
			st.RecordFailure(stale)
			dec := retry.Decide(stale, st, profile)
			if !dec.Retry {
				return nil, q, fmt.Errorf("%s: %w", dec.Reason, stale.Raw)
			}
			metrics.RequotesTotal.Inc()
			fresh, err := e.fetchQuote(ctx, receiptID, intent, profile, st)
			if err != nil {
				return nil, q, err
			}
			q = fresh
			continue
		}

		quoteJSON, err := json.Marshal(q)
		if err != nil {
			return nil, q, fmt.Errorf("encode quote: %w", err)
		}

		build, err := e.submitter.BuildTransaction(ctx, quoteJSON, intent.UserAddress, submit.FeeParams{
			ComputeUnitPriceMicroLamports: feeRec.ComputeUnitPrice,
			ComputeUnitLimit:              feeRec.ComputeUnitLimit,
		})
		if err == nil {
			e.events.Record(ctx, receiptID, model.EventTxBuild, map[string]interface{}{
				"last_valid_block_height": build.LastValidBlockHeight,
				"compute_unit_price":      feeRec.ComputeUnitPrice,
				"fee_tier":                feeRec.Tier,
				"attempt":                 st.Attempts + 1,
			})
			return build, q, nil
		}

		ce := errclass.Classify(err)
		if retryErr := e.retryOrGiveUpClassified(ctx, receiptID, profile, st, ce, err); retryErr != nil {
			return nil, q, retryErr
		}

		if ce.RequiresRequote {
			fresh, ferr := e.fetchQuote(ctx, receiptID, intent, profile, st)
			if ferr != nil {
				return nil, q, ferr
			}
			q = fresh
		}
	}
}

func (e *Engine) retryOrGiveUp(ctx context.Context, receiptID string, profile retry.Profile, st *retry.State, err error) error {
	return e.retryOrGiveUpClassified(ctx, receiptID, profile, st, errclass.Classify(err), err)
}

// retryOrGiveUpClassified applies the retry policy to one classified
// failure. nil means the caller should loop again, after the backoff wait.
func (e *Engine) retryOrGiveUpClassified(ctx context.Context, receiptID string, profile retry.Profile, st *retry.State, ce errclass.ClassifiedError, err error) error {
	st.RecordFailure(ce)

	if ce.Category == errclass.CategoryFatal {
		metrics.FatalErrorsTotal.WithLabelValues(ce.Code).Inc()
	}

	dec := retry.Decide(ce, st, profile)
	if !dec.Retry {
		return fmt.Errorf("%s: %w", dec.Reason, err)
	}

	e.events.Record(ctx, receiptID, model.EventRetry, map[string]interface{}{
		"attempt":  st.Attempts,
		"code":     ce.Code,
		"category": string(ce.Category),
		"delay_ms": dec.Delay.Milliseconds(),
	})
	metrics.RetriesTotal.WithLabelValues(ce.Code).Inc()
	if ce.RequiresRequote {
		metrics.RequotesTotal.Inc()
	}

	if sleepErr := retry.Sleep(ctx, dec.Delay); sleepErr != nil {
		return fmt.Errorf("execution window elapsed during backoff: %w", sleepErr)
	}
	return nil
}

func (e *Engine) fail(ctx context.Context, res *Result, st *retry.State, profile retry.Profile, start time.Time, err error) *Result {
	res.Status = StatusFailed
	res.ErrMsg = err.Error()
	if res.Attempts == 0 {
		res.Attempts = st.Attempts
	}

	// the failure cause may be the execution context itself (budget elapsed,
	// caller disconnected); the receipt must still reach its terminal status
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	e.events.Record(ctx, res.ReceiptID, model.EventFailure, map[string]interface{}{
		"error":      res.ErrMsg,
		"attempts":   res.Attempts,
		"risk_level": res.RiskLevel,
	})

	if ferr := e.receipts.Finalize(ctx, res.ReceiptID, model.ReceiptStatusFailed, res.TxSignature, res.ErrMsg, "", int64(res.Attempts)); ferr != nil {
		logger.Logrus.WithFields(logrus.Fields{"ReceiptID": res.ReceiptID, "ErrMsg": ferr.Error()}).Error("finalize failed receipt failed")
	}

	metrics.ExecutionsTotal.WithLabelValues(StatusFailed, profile.Name).Inc()
	metrics.ExecutionDuration.WithLabelValues(profile.Name).Observe(time.Since(start).Seconds())

	logger.Logrus.WithFields(logrus.Fields{
		"ReceiptID": res.ReceiptID,
		"ErrMsg":    res.ErrMsg,
		"Attempts":  res.Attempts,
	}).Warn("swap execution failed")

	return res
}
