package receipt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flowmintdao/solana_swap_engine/core/model"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// ErrTerminalStatus is returned when a caller tries to flip a receipt from
// one terminal status to another.
var ErrTerminalStatus = errors.New("receipt already has a terminal status")

// ErrNotFound is returned when the receipt id is unknown.
var ErrNotFound = errors.New("receipt not found")

type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, r *model.SwapReceipt) error {
	if r.Status == "" {
		r.Status = model.ReceiptStatusPending
	}
	r.CreateAt = time.Now()
	r.UpdateAt = r.CreateAt

	_, err := s.db.NewInsert().Model(r).Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, receiptID string) (*model.SwapReceipt, error) {
	r := model.SwapReceipt{}
	err := s.db.NewSelect().Model(&r).Where("receipt_id = ?", receiptID).Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select receipt: %w", err)
	}
	return &r, nil
}

// SaveQuoteOutcome fills in quote-derived fields while the receipt is still
// pending. A no-op once the receipt has finalized.
func (s *Store) SaveQuoteOutcome(ctx context.Context, receiptID, outAmount string, impactPct float64, riskLevel string, warnings []string, attempts int64) error {
	_, err := s.db.NewUpdate().Model((*model.SwapReceipt)(nil)).
		Set("out_amount = ?", outAmount).
		Set("price_impact_pct = ?", impactPct).
		Set("risk_level = ?", riskLevel).
		Set("warnings = ?", pgArray(warnings)).
		Set("attempts = ?", attempts).
		Set("update_at = ?", time.Now()).
		Where("receipt_id = ?", receiptID).
		Where("status = ?", model.ReceiptStatusPending).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update receipt quote fields: %w", err)
	}
	return nil
}

// Finalize moves a pending receipt to its terminal status. Finalizing an
// already-terminal receipt with the same status is a no-op; a different
// terminal status is rejected.
func (s *Store) Finalize(ctx context.Context, receiptID, status, txSignature, errMsg, outAmount string, attempts int64) error {
	if status != model.ReceiptStatusSuccess && status != model.ReceiptStatusFailed {
		return fmt.Errorf("finalize with non-terminal status %q", status)
	}

	q := s.db.NewUpdate().Model((*model.SwapReceipt)(nil)).
		Set("status = ?", status).
		Set("error_msg = ?", errMsg).
		Set("attempts = ?", attempts).
		Set("update_at = ?", time.Now()).
		Where("receipt_id = ?", receiptID).
		Where("status = ?", model.ReceiptStatusPending)
	if txSignature != "" {
		q = q.Set("tx_signature = ?", txSignature)
	}
	if outAmount != "" {
		q = q.Set("out_amount = ?", outAmount)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("finalize receipt: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	// nothing pending matched, find out why
	current, err := s.Get(ctx, receiptID)
	if err != nil {
		return err
	}
	if current.Status == status {
		return nil
	}
	return ErrTerminalStatus
}

// UpdateStatus is the confirmation-callback path: an externally observed
// chain outcome finalizes the receipt after the original call returned. It
// enforces the same terminal-transition rule.
func (s *Store) UpdateStatus(ctx context.Context, receiptID, status, txSignature, errMsg string) error {
	current, err := s.Get(ctx, receiptID)
	if err != nil {
		return err
	}

	if !model.CanTransition(current.Status, status) {
		return ErrTerminalStatus
	}

	q := s.db.NewUpdate().Model((*model.SwapReceipt)(nil)).
		Set("status = ?", status).
		Set("update_at = ?", time.Now()).
		Where("receipt_id = ?", receiptID).
		Where("status = ?", current.Status)
	if txSignature != "" {
		q = q.Set("tx_signature = ?", txSignature)
	}
	if errMsg != "" {
		q = q.Set("error_msg = ?", errMsg)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("update receipt status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// a concurrent callback finalized the receipt after our read
		return ErrTerminalStatus
	}
	return nil
}

// ListEvents returns a receipt's timeline in append order.
func (s *Store) ListEvents(ctx context.Context, receiptID string) ([]model.SwapExecutionEvent, error) {
	events := []model.SwapExecutionEvent{}
	err := s.db.NewSelect().Model(&events).
		Where("receipt_id = ?", receiptID).
		Order("timestamp ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	return events, nil
}

func (s *Store) AppendEvent(ctx context.Context, ev *model.SwapExecutionEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	_, err := s.db.NewInsert().Model(ev).Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func pgArray(in []string) interface{} {
	if in == nil {
		in = []string{}
	}
	return pgdialect.Array(in)
}
