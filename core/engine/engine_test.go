package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/flowmintdao/solana_swap_engine/core/fees"
	"github.com/flowmintdao/solana_swap_engine/core/model"
	"github.com/flowmintdao/solana_swap_engine/core/quote"
	"github.com/flowmintdao/solana_swap_engine/core/retry"
	"github.com/flowmintdao/solana_swap_engine/core/risk"
	"github.com/flowmintdao/solana_swap_engine/core/submit"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	solMint  = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// ---- test doubles ----

var errStoreTerminal = errors.New("terminal status conflict")

type memStore struct {
	mu       sync.Mutex
	receipts map[string]*model.SwapReceipt
}

func newMemStore() *memStore {
	return &memStore{receipts: map[string]*model.SwapReceipt{}}
}

func (m *memStore) Create(_ context.Context, r *model.SwapReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.receipts[r.ReceiptID] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*model.SwapReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	if !ok {
		return nil, errors.New("receipt not found")
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) SaveQuoteOutcome(_ context.Context, id, outAmount string, impact float64, riskLevel string, warnings []string, attempts int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.receipts[id]
	if r == nil || r.Status != model.ReceiptStatusPending {
		return nil
	}
	r.OutAmount = outAmount
	r.PriceImpactPct = impact
	r.RiskLevel = riskLevel
	r.Warnings = warnings
	r.Attempts = attempts
	return nil
}

func (m *memStore) Finalize(_ context.Context, id, status, txSig, errMsg, outAmount string, attempts int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.receipts[id]
	if r == nil {
		return errors.New("receipt not found")
	}
	if r.Status != model.ReceiptStatusPending {
		if r.Status == status {
			return nil
		}
		return errStoreTerminal
	}
	r.Status = status
	r.ErrMsg = errMsg
	r.Attempts = attempts
	if txSig != "" {
		r.TxSignature = txSig
	}
	if outAmount != "" {
		r.OutAmount = outAmount
	}
	return nil
}

func (m *memStore) UpdateStatus(_ context.Context, id, status, txSig, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.receipts[id]
	if r == nil {
		return errors.New("receipt not found")
	}
	if !model.CanTransition(r.Status, status) {
		return errStoreTerminal
	}
	r.Status = status
	if txSig != "" {
		r.TxSignature = txSig
	}
	if errMsg != "" {
		r.ErrMsg = errMsg
	}
	return nil
}

func (m *memStore) ListEvents(_ context.Context, _ string) ([]model.SwapExecutionEvent, error) {
	return nil, nil
}

type recordedEvent struct {
	eventType string
	metadata  map[string]interface{}
}

type memRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (m *memRecorder) Record(_ context.Context, _ string, eventType string, metadata map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recordedEvent{eventType, metadata})
	return nil
}

func (m *memRecorder) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.eventType)
	}
	return out
}

func (m *memRecorder) count(eventType string) int {
	n := 0
	for _, t := range m.types() {
		if t == eventType {
			n++
		}
	}
	return n
}

type quoteStub struct {
	mu    sync.Mutex
	queue []func() (*quote.Quote, error)
	calls int
}

func (s *quoteStub) push(fn func() (*quote.Quote, error)) {
	s.queue = append(s.queue, fn)
}

func (s *quoteStub) Quote(_ context.Context, _ quote.Request) (*quote.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.queue) == 0 {
		return nil, errors.New("quote stub exhausted")
	}
	fn := s.queue[0]
	s.queue = s.queue[1:]
	return fn()
}

type submitStub struct {
	mu           sync.Mutex
	buildFn      func(call int) (*submit.BuildResult, error)
	submitFn     func(call int) (string, error)
	confirmFn    func(call int, sig string) (submit.Status, error)
	buildCalls   int
	submitCalls  int
	confirmCalls int
}

func (s *submitStub) BuildTransaction(_ context.Context, _ []byte, _ string, _ submit.FeeParams) (*submit.BuildResult, error) {
	s.mu.Lock()
	s.buildCalls++
	call := s.buildCalls
	s.mu.Unlock()
	if s.buildFn == nil {
		return &submit.BuildResult{SwapTransaction: "dHg=", LastValidBlockHeight: 1000}, nil
	}
	return s.buildFn(call)
}

func (s *submitStub) Submit(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	s.submitCalls++
	call := s.submitCalls
	s.mu.Unlock()
	if s.submitFn == nil {
		return "sig", nil
	}
	return s.submitFn(call)
}

func (s *submitStub) Confirm(_ context.Context, sig string) (submit.Status, error) {
	s.mu.Lock()
	s.confirmCalls++
	call := s.confirmCalls
	s.mu.Unlock()
	if s.confirmFn == nil {
		return submit.StatusConfirmed, nil
	}
	return s.confirmFn(call, sig)
}

type feeStub struct{}

func (feeStub) EstimatePriorityFee(_ context.Context, _ retry.Profile) fees.Recommendation {
	return fees.Recommendation{ComputeUnitPrice: 5000, Tier: "medium"}
}

type hintedErr struct {
	msg  string
	wait time.Duration
}

func (e *hintedErr) Error() string             { return e.msg }
func (e *hintedErr) RetryAfter() time.Duration { return e.wait }

func goodQuote() *quote.Quote {
	return &quote.Quote{
		InputMint:            solMint,
		InAmount:             "1000000000",
		OutputMint:           usdcMint,
		OutAmount:            "163750000",
		OtherAmountThreshold: "162931250",
		SwapMode:             quote.SwapModeExactIn,
		SlippageBps:          50,
		PriceImpactPct:       "0.1",
		RoutePlan:            []quote.RoutePlanStep{{Percent: 100}},
		FetchedAt:            time.Now(),
	}
}

func newTestEngine(q quote.Provider, s submit.Submitter, store ReceiptStore, rec EventRecorder) *Engine {
	return New(q, s, feeStub{}, risk.NewScorer(nil, risk.Config{}), store, rec)
}

func greenIntent() Intent {
	return Intent{
		UserAddress: "7Np41oeYqPefeNQEHSv1UDhYrehxin3NStELsSKCT4K2",
		InputMint:   solMint,
		OutputMint:  usdcMint,
		AmountIn:    "1000000000",
		SlippageBps: 50,
		SwapMode:    quote.SwapModeExactIn,
		Profile:     "fast",
	}
}

// signedTx builds a minimal signed transaction the engine can extract a
// signature from.
func signedTx(t *testing.T) (string, string) {
	t.Helper()

	var sig solana.Signature
	copy(sig[:], bytes.Repeat([]byte{7}, 64))

	pk := solana.MustPublicKeyFromBase58(solMint)
	tx := solana.Transaction{
		Signatures: []solana.Signature{sig},
		Message: solana.Message{
			Header:          solana.MessageHeader{NumRequiredSignatures: 1},
			AccountKeys:     []solana.PublicKey{pk},
			RecentBlockhash: solana.Hash(pk),
		},
	}

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw), sig.String()
}

// ---- scenarios ----

func TestExecuteSwapHappyPath(t *testing.T) {
	qs := &quoteStub{}
	qs.push(func() (*quote.Quote, error) { return goodQuote(), nil })
	ss := &submitStub{}
	store := newMemStore()
	rec := &memRecorder{}

	e := newTestEngine(qs, ss, store, rec)
	res, err := e.ExecuteSwap(context.Background(), greenIntent())
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "dHg=", res.Transaction)
	assert.Equal(t, uint64(1000), res.LastValidBlockHeight)
	assert.Equal(t, "GREEN", res.RiskLevel)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 1, res.Attempts)

	assert.Equal(t, []string{model.EventQuote, model.EventTxBuild}, rec.types())

	// receipt stays pending until the signed transaction is submitted
	r, err := store.Get(context.Background(), res.ReceiptID)
	require.NoError(t, err)
	assert.Equal(t, model.ReceiptStatusPending, r.Status)
	assert.Equal(t, "163750000", r.OutAmount)
}

func TestExecuteSwapThenSubmitSigned(t *testing.T) {
	qs := &quoteStub{}
	qs.push(func() (*quote.Quote, error) { return goodQuote(), nil })
	ss := &submitStub{}
	store := newMemStore()
	rec := &memRecorder{}

	e := newTestEngine(qs, ss, store, rec)
	res, err := e.ExecuteSwap(context.Background(), greenIntent())
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, res.Status)

	tx, wantSig := signedTx(t)
	ss.submitFn = func(int) (string, error) { return wantSig, nil }

	final, err := e.SubmitSigned(context.Background(), res.ReceiptID, tx)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, final.Status)
	assert.Equal(t, wantSig, final.TxSignature)
	assert.Equal(t, "163750000", final.OutAmount)

	r, err := store.Get(context.Background(), res.ReceiptID)
	require.NoError(t, err)
	assert.Equal(t, model.ReceiptStatusSuccess, r.Status)
	assert.Equal(t, wantSig, r.TxSignature)

	assert.Equal(t, []string{
		model.EventQuote, model.EventTxBuild,
		model.EventTxSend, model.EventTxConfirm, model.EventSuccess,
	}, rec.types())
}

func TestFatalErrorShortCircuits(t *testing.T) {
	qs := &quoteStub{}
	qs.push(func() (*quote.Quote, error) { return goodQuote(), nil })
	ss := &submitStub{
		buildFn: func(int) (*submit.BuildResult, error) {
			return nil, errors.New("Insufficient funds for transaction")
		},
	}
	store := newMemStore()
	rec := &memRecorder{}

	e := newTestEngine(qs, ss, store, rec)
	res, err := e.ExecuteSwap(context.Background(), greenIntent())
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.ErrMsg, "Fatal error, not retryable")
	assert.Equal(t, 1, ss.buildCalls)
	assert.Zero(t, rec.count(model.EventRetry))
	assert.Equal(t, 1, rec.count(model.EventFailure))

	r, _ := store.Get(context.Background(), res.ReceiptID)
	assert.Equal(t, model.ReceiptStatusFailed, r.Status)
}

func TestRateLimitBackoffThenSuccess(t *testing.T) {
	qs := &quoteStub{}
	for _, wait := range []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 15 * time.Millisecond} {
		w := wait
		qs.push(func() (*quote.Quote, error) {
			return nil, &hintedErr{msg: "429 too many requests", wait: w}
		})
	}
	qs.push(func() (*quote.Quote, error) { return goodQuote(), nil })

	ss := &submitStub{}
	store := newMemStore()
	rec := &memRecorder{}

	// auto profile allows 5 retries
	intent := greenIntent()
	intent.Profile = "auto"

	e := newTestEngine(qs, ss, store, rec)
	res, err := e.ExecuteSwap(context.Background(), intent)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, 4, qs.calls)
	assert.Equal(t, 3, rec.count(model.EventRetry))

	// each suggested delay is honored, and they increase across attempts
	var delays []int64
	for _, ev := range rec.events {
		if ev.eventType == model.EventRetry {
			delays = append(delays, ev.metadata["delay_ms"].(int64))
		}
	}
	require.Len(t, delays, 3)
	assert.True(t, delays[0] < delays[1] && delays[1] < delays[2])

	r, _ := store.Get(context.Background(), res.ReceiptID)
	assert.Equal(t, int64(4), r.Attempts)
}

func TestRetryCeilingExhaustion(t *testing.T) {
	qs := &quoteStub{}
	for i := 0; i < 10; i++ {
		qs.push(func() (*quote.Quote, error) {
			return nil, &hintedErr{msg: "connection refused", wait: time.Millisecond}
		})
	}
	store := newMemStore()
	rec := &memRecorder{}

	e := newTestEngine(qs, &submitStub{}, store, rec)
	res, err := e.ExecuteSwap(context.Background(), greenIntent())
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.ErrMsg, "Max retries exceeded")
	// the fast profile gives up once the attempt count reaches its ceiling
	assert.Equal(t, retry.ProfileFast.MaxRetries, qs.calls)
}

func TestProtectedModeBlock(t *testing.T) {
	qs := &quoteStub{}
	qs.push(func() (*quote.Quote, error) {
		q := goodQuote()
		q.PriceImpactPct = "6" // above the absolute ceiling
		return q, nil
	})
	ss := &submitStub{}
	store := newMemStore()
	rec := &memRecorder{}

	intent := greenIntent()
	intent.ProtectedMode = true

	e := newTestEngine(qs, ss, store, rec)
	res, err := e.ExecuteSwap(context.Background(), intent)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.ErrMsg, "blocked by protected mode")
	assert.Equal(t, "RED", res.RiskLevel)
	assert.NotEmpty(t, res.Warnings)

	// no transaction was built or sent
	assert.Zero(t, ss.buildCalls)
	assert.Zero(t, ss.submitCalls)

	r, _ := store.Get(context.Background(), res.ReceiptID)
	assert.Equal(t, model.ReceiptStatusFailed, r.Status)
}

func TestAmberWarnsButProceeds(t *testing.T) {
	qs := &quoteStub{}
	qs.push(func() (*quote.Quote, error) {
		q := goodQuote()
		q.PriceImpactPct = "0.7"
		return q, nil
	})
	store := newMemStore()
	rec := &memRecorder{}

	e := newTestEngine(qs, &submitStub{}, store, rec)
	res, err := e.ExecuteSwap(context.Background(), greenIntent())
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "AMBER", res.RiskLevel)
	assert.NotEmpty(t, res.Warnings)
}

func TestBuildRequoteLoop(t *testing.T) {
	qs := &quoteStub{}
	qs.push(func() (*quote.Quote, error) { return goodQuote(), nil })
	qs.push(func() (*quote.Quote, error) { return goodQuote(), nil })

	ss := &submitStub{
		buildFn: func(call int) (*submit.BuildResult, error) {
			if call == 1 {
				return nil, errors.New("Slippage tolerance exceeded")
			}
			return &submit.BuildResult{SwapTransaction: "dHg=", LastValidBlockHeight: 1001}, nil
		},
	}
	store := newMemStore()
	rec := &memRecorder{}

	// auto allows two requotes, enough room for one slippage bounce
	intent := greenIntent()
	intent.Profile = "auto"

	e := newTestEngine(qs, ss, store, rec)
	res, err := e.ExecuteSwap(context.Background(), intent)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2, qs.calls)
	assert.Equal(t, 2, ss.buildCalls)
	assert.Equal(t, 1, rec.count(model.EventRequote))
}

func TestRequoteCeilingExhaustion(t *testing.T) {
	qs := &quoteStub{}
	for i := 0; i < 5; i++ {
		qs.push(func() (*quote.Quote, error) { return goodQuote(), nil })
	}
	ss := &submitStub{
		buildFn: func(int) (*submit.BuildResult, error) {
			return nil, errors.New("price moved beyond slippage")
		},
	}
	store := newMemStore()
	rec := &memRecorder{}

	intent := greenIntent()
	intent.Profile = "auto"

	e := newTestEngine(qs, ss, store, rec)
	res, err := e.ExecuteSwap(context.Background(), intent)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.ErrMsg, "Max requotes exceeded")
	assert.Equal(t, retry.ProfileAuto.MaxRequotes, ss.buildCalls)
}

func TestStaleQuoteRefreshedBeforeBuild(t *testing.T) {
	qs := &quoteStub{}
	qs.push(func() (*quote.Quote, error) {
		q := goodQuote()
		q.FetchedAt = time.Now().Add(-5 * time.Minute)
		return q, nil
	})
	qs.push(func() (*quote.Quote, error) { return goodQuote(), nil })

	ss := &submitStub{}
	store := newMemStore()
	rec := &memRecorder{}

	intent := greenIntent()
	intent.Profile = "auto"

	e := newTestEngine(qs, ss, store, rec)
	res, err := e.ExecuteSwap(context.Background(), intent)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2, qs.calls)
	assert.Equal(t, 1, ss.buildCalls)
}

func TestAmbiguousSendResolvedByStatusQuery(t *testing.T) {
	qs := &quoteStub{}
	qs.push(func() (*quote.Quote, error) { return goodQuote(), nil })
	store := newMemStore()
	rec := &memRecorder{}

	tx, wantSig := signedTx(t)

	ss := &submitStub{
		submitFn: func(int) (string, error) {
			return "", errors.New("rpc timeout while sending")
		},
		confirmFn: func(_ int, sig string) (submit.Status, error) {
			// the transaction actually landed
			return submit.StatusConfirmed, nil
		},
	}

	e := newTestEngine(qs, ss, store, rec)
	res, err := e.ExecuteSwap(context.Background(), greenIntent())
	require.NoError(t, err)

	final, err := e.SubmitSigned(context.Background(), res.ReceiptID, tx)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, final.Status)
	assert.Equal(t, wantSig, final.TxSignature)
	// no blind resubmission of a landed transaction
	assert.Equal(t, 1, ss.submitCalls)
}

func TestOnChainFailureFinalizesFailed(t *testing.T) {
	qs := &quoteStub{}
	qs.push(func() (*quote.Quote, error) { return goodQuote(), nil })
	store := newMemStore()
	rec := &memRecorder{}

	tx, _ := signedTx(t)
	ss := &submitStub{
		confirmFn: func(int, string) (submit.Status, error) {
			return submit.StatusFailed, errors.New("transaction failed on chain: custom program error: 0x1771")
		},
	}

	e := newTestEngine(qs, ss, store, rec)
	res, err := e.ExecuteSwap(context.Background(), greenIntent())
	require.NoError(t, err)

	final, err := e.SubmitSigned(context.Background(), res.ReceiptID, tx)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, final.Status)
	r, _ := store.Get(context.Background(), res.ReceiptID)
	assert.Equal(t, model.ReceiptStatusFailed, r.Status)
}

func TestSubmitSignedRejectsFinalizedReceipt(t *testing.T) {
	store := newMemStore()
	r := &model.SwapReceipt{ReceiptID: "done", Status: model.ReceiptStatusSuccess, Profile: "auto"}
	require.NoError(t, store.Create(context.Background(), r))

	e := newTestEngine(&quoteStub{}, &submitStub{}, store, &memRecorder{})
	tx, _ := signedTx(t)
	_, err := e.SubmitSigned(context.Background(), "done", tx)
	assert.Error(t, err)
}

func TestUpdateReceiptStatusTerminality(t *testing.T) {
	store := newMemStore()
	rec := &memRecorder{}
	e := newTestEngine(&quoteStub{}, &submitStub{}, store, rec)

	r := &model.SwapReceipt{ReceiptID: "cb", Status: model.ReceiptStatusPending, Profile: "auto"}
	require.NoError(t, store.Create(context.Background(), r))

	// late confirmation finalizes the pending receipt
	require.NoError(t, e.UpdateReceiptStatus(context.Background(), "cb", model.ReceiptStatusSuccess, "sig123", ""))
	got, _ := store.Get(context.Background(), "cb")
	assert.Equal(t, model.ReceiptStatusSuccess, got.Status)
	assert.Equal(t, "sig123", got.TxSignature)

	// a terminal status never flips
	err := e.UpdateReceiptStatus(context.Background(), "cb", model.ReceiptStatusFailed, "", "late failure")
	assert.Error(t, err)
	got, _ = store.Get(context.Background(), "cb")
	assert.Equal(t, model.ReceiptStatusSuccess, got.Status)
}

// ctxStore refuses writes on a dead context, like the real bun store would.
type ctxStore struct {
	*memStore
}

func (s *ctxStore) Finalize(ctx context.Context, id, status, txSig, errMsg, outAmount string, attempts int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.memStore.Finalize(ctx, id, status, txSig, errMsg, outAmount, attempts)
}

func (s *ctxStore) SaveQuoteOutcome(ctx context.Context, id, outAmount string, impact float64, riskLevel string, warnings []string, attempts int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.memStore.SaveQuoteOutcome(ctx, id, outAmount, impact, riskLevel, warnings, attempts)
}

func TestCancelledCallerStillFinalizesReceipt(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	defer cancelParent()

	qs := &quoteStub{}
	qs.push(func() (*quote.Quote, error) {
		// the caller goes away mid-execution
		cancelParent()
		return nil, errors.New("connection refused")
	})

	store := &ctxStore{memStore: newMemStore()}
	rec := &memRecorder{}

	e := newTestEngine(qs, &submitStub{}, store, rec)
	res, err := e.ExecuteSwap(parent, greenIntent())
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.NotEmpty(t, res.ErrMsg)

	// the receipt reached its terminal status despite the dead caller context
	r, gerr := store.Get(context.Background(), res.ReceiptID)
	require.NoError(t, gerr)
	assert.Equal(t, model.ReceiptStatusFailed, r.Status)
	assert.Equal(t, 1, rec.count(model.EventFailure))
}

func TestConcurrentExecutions(t *testing.T) {
	store := newMemStore()
	rec := &memRecorder{}

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			qs := &quoteStub{}
			qs.push(func() (*quote.Quote, error) { return goodQuote(), nil })
			e := newTestEngine(qs, &submitStub{}, store, rec)
			res, err := e.ExecuteSwap(context.Background(), greenIntent())
			if err == nil {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, StatusSuccess, res.Status)
		assert.False(t, seen[res.ReceiptID], "receipt ids must be unique")
		seen[res.ReceiptID] = true
	}
}

func TestFailureErrorIsNeverSilent(t *testing.T) {
	qs := &quoteStub{}
	qs.push(func() (*quote.Quote, error) { return nil, fmt.Errorf("weird upstream response") })
	qs.push(func() (*quote.Quote, error) { return nil, fmt.Errorf("weird upstream response") })
	qs.push(func() (*quote.Quote, error) { return nil, fmt.Errorf("weird upstream response") })
	store := newMemStore()
	rec := &memRecorder{}

	e := newTestEngine(qs, &submitStub{}, store, rec)
	res, err := e.ExecuteSwap(context.Background(), greenIntent())
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.NotEmpty(t, res.ErrMsg)

	r, _ := store.Get(context.Background(), res.ReceiptID)
	assert.Equal(t, model.ReceiptStatusFailed, r.Status)
	assert.NotEmpty(t, r.ErrMsg)
}
