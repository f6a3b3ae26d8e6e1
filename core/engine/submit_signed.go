package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/flowmintdao/solana_swap_engine/core/errclass"
	"github.com/flowmintdao/solana_swap_engine/core/metrics"
	"github.com/flowmintdao/solana_swap_engine/core/model"
	"github.com/flowmintdao/solana_swap_engine/core/retry"
	"github.com/flowmintdao/solana_swap_engine/core/submit"
	"github.com/flowmintdao/solana_swap_engine/utils/logger"
	"github.com/sirupsen/logrus"
)

// SubmitSigned broadcasts a caller-signed transaction for an existing
// pending receipt and drives it to confirmation. An ambiguous broadcast is
// resolved with a status query before any resubmission, so a transaction
// that actually landed is never sent twice.
func (e *Engine) SubmitSigned(ctx context.Context, receiptID, signedTxBase64 string) (*Result, error) {
	rec, err := e.receipts.Get(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	if rec.Terminal() {
		return nil, fmt.Errorf("receipt %s already finalized as %s", receiptID, rec.Status)
	}

	profile := retry.ProfileByName(rec.Profile)
	start := time.Now()
	res := &Result{ReceiptID: receiptID, Status: StatusFailed, RiskLevel: rec.RiskLevel, Warnings: rec.Warnings}

	expectedSig, err := submit.ExtractSignature(signedTxBase64)
	if err != nil {
		return e.fail(ctx, res, retry.NewState(), profile, start, err), nil
	}

	ctx, cancel := context.WithTimeout(ctx, profile.ExecutionBudget()+e.confirmTimeout)
	defer cancel()

	st := retry.NewState()

	sig, err := e.broadcast(ctx, receiptID, signedTxBase64, expectedSig, profile, st)
	if err != nil {
		res.TxSignature = expectedSig
		return e.fail(ctx, res, st, profile, start, err), nil
	}
	res.TxSignature = sig

	e.events.Record(ctx, receiptID, model.EventTxSend, map[string]interface{}{
		"signature": sig,
		"attempt":   st.Attempts + 1,
	})

	status, confirmErr := e.awaitConfirmation(ctx, receiptID, sig)
	switch status {
	case submit.StatusConfirmed:
		res.Status = StatusSuccess
		res.OutAmount = rec.OutAmount
		res.Attempts = st.Attempts + 1

		e.events.Record(ctx, receiptID, model.EventSuccess, map[string]interface{}{
			"signature": sig,
			"attempts":  res.Attempts,
		})
		if ferr := e.receipts.Finalize(ctx, receiptID, model.ReceiptStatusSuccess, sig, "", rec.OutAmount, int64(res.Attempts)); ferr != nil {
			logger.Logrus.WithFields(logrus.Fields{"ReceiptID": receiptID, "ErrMsg": ferr.Error()}).Error("finalize successful receipt failed")
		}

		metrics.ExecutionsTotal.WithLabelValues(StatusSuccess, profile.Name).Inc()
		metrics.ExecutionDuration.WithLabelValues(profile.Name).Observe(time.Since(start).Seconds())
		return res, nil

	case submit.StatusFailed:
		return e.fail(ctx, res, st, profile, start, confirmErr), nil

	default:
		// the confirmation window elapsed with the outcome still unknown.
		// The receipt stays pending so the confirmation callback can settle
		// it once the chain outcome is observed; this call reports failure.
		res.ErrMsg = fmt.Sprintf("confirmation window elapsed for %s, transaction may still land", sig)
		e.events.Record(ctx, receiptID, model.EventTxConfirm, map[string]interface{}{
			"signature": sig,
			"status":    "unknown",
		})
		metrics.ExecutionsTotal.WithLabelValues("unconfirmed", profile.Name).Inc()
		return res, nil
	}
}

// broadcast submits with classified retries. A requote-classified failure is
// terminal here, a signed transaction cannot be rebuilt at fresh prices.
func (e *Engine) broadcast(ctx context.Context, receiptID, signedTx, expectedSig string, profile retry.Profile, st *retry.State) (string, error) {
	for {
		sig, err := e.submitter.Submit(ctx, signedTx)
		if err == nil {
			return sig, nil
		}

		// the send may have reached the cluster even though the call
		// errored, check before treating it as a failure
		if status, cerr := e.submitter.Confirm(ctx, expectedSig); cerr == nil && status == submit.StatusConfirmed {
			logger.Logrus.WithFields(logrus.Fields{"Signature": expectedSig}).Info("ambiguous send actually landed")
			return expectedSig, nil
		}

		ce := errclass.Classify(err)
		if ce.RequiresRequote {
			st.RecordFailure(ce)
			return "", fmt.Errorf("signed transaction expired, a fresh quote is required: %w", err)
		}

		if retryErr := e.retryOrGiveUpClassified(ctx, receiptID, profile, st, ce, err); retryErr != nil {
			return "", retryErr
		}
	}
}

// awaitConfirmation polls the submitter until the signature is confirmed,
// failed, or the confirmation window closes.
func (e *Engine) awaitConfirmation(ctx context.Context, receiptID, sig string) (submit.Status, error) {
	sent := time.Now()
	deadline := sent.Add(e.confirmTimeout)

	for {
		status, err := e.submitter.Confirm(ctx, sig)

		if status == submit.StatusConfirmed {
			e.events.Record(ctx, receiptID, model.EventTxConfirm, map[string]interface{}{
				"signature":  sig,
				"status":     string(status),
				"latency_ms": time.Since(sent).Milliseconds(),
			})
			metrics.ConfirmLatency.Observe(time.Since(sent).Seconds())
			return status, nil
		}

		if status == submit.StatusFailed && err != nil {
			e.events.Record(ctx, receiptID, model.EventTxConfirm, map[string]interface{}{
				"signature": sig,
				"status":    string(status),
				"error":     err.Error(),
			})
			return status, err
		}

		if time.Now().After(deadline) {
			return submit.StatusPending, err
		}
		if sleepErr := retry.Sleep(ctx, e.confirmPoll); sleepErr != nil {
			return submit.StatusPending, sleepErr
		}
	}
}

// GetReceipt returns the persisted receipt for a status query.
func (e *Engine) GetReceipt(ctx context.Context, receiptID string) (*model.SwapReceipt, error) {
	return e.receipts.Get(ctx, receiptID)
}

// GetReceiptTimeline returns the receipt's ordered audit trail.
func (e *Engine) GetReceiptTimeline(ctx context.Context, receiptID string) ([]model.SwapExecutionEvent, error) {
	return e.receipts.ListEvents(ctx, receiptID)
}

// UpdateReceiptStatus is the confirmation callback: an externally observed
// chain outcome finalizes a receipt the engine returned before confirmation.
func (e *Engine) UpdateReceiptStatus(ctx context.Context, receiptID, status, txSignature, errMsg string) error {
	if err := e.receipts.UpdateStatus(ctx, receiptID, status, txSignature, errMsg); err != nil {
		return err
	}

	evType := model.EventSuccess
	if status == model.ReceiptStatusFailed {
		evType = model.EventFailure
	}
	e.events.Record(ctx, receiptID, evType, map[string]interface{}{
		"signature": txSignature,
		"source":    "confirmation_callback",
		"error":     errMsg,
	})
	return nil
}
