package model

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	ReceiptStatusPending = "pending"
	ReceiptStatusSuccess = "success"
	ReceiptStatusFailed  = "failed"
)

const (
	EventQuote     = "quote"
	EventRequote   = "requote"
	EventTxBuild   = "tx_build"
	EventTxSend    = "tx_send"
	EventTxConfirm = "tx_confirm"
	EventRetry     = "retry"
	EventSuccess   = "success"
	EventFailure   = "failure"
)

// SwapReceipt is the persisted terminal record of one execution. Once the
// status leaves pending it never flips to a different terminal status.
type SwapReceipt struct {
	bun.BaseModel `bun:"table:swap_receipt,alias:sr"`

	ReceiptID      string    `bun:"receipt_id,pk,notnull" json:"receipt_id"`
	UserAddress    string    `bun:"user_address,notnull" json:"user_address"`
	InputMint      string    `bun:"input_mint,notnull" json:"input_mint"`
	OutputMint     string    `bun:"output_mint,notnull" json:"output_mint"`
	InAmount       string    `bun:"in_amount" json:"in_amount"`
	OutAmount      string    `bun:"out_amount" json:"out_amount"`
	SlippageBps    int64     `bun:"slippage_bps" json:"slippage_bps"`
	ProtectedMode  bool      `bun:"protected_mode" json:"protected_mode"`
	Profile        string    `bun:"execution_profile" json:"execution_profile"`
	PriceImpactPct float64   `bun:"price_impact_pct" json:"price_impact_pct"`
	Status         string    `bun:"status,notnull" json:"status"`
	TxSignature    string    `bun:"tx_signature" json:"tx_signature,omitempty"`
	ErrMsg         string    `bun:"error_msg" json:"error,omitempty"`
	RiskLevel      string    `bun:"risk_level" json:"risk_level"`
	Warnings       []string  `bun:"warnings,array" json:"warnings"`
	Attempts       int64     `bun:"attempts" json:"attempts"`
	CreateAt       time.Time `bun:"create_at,nullzero" json:"created_at"`
	UpdateAt       time.Time `bun:"update_at,nullzero" json:"updated_at"`
}

func (r *SwapReceipt) Terminal() bool {
	return r.Status == ReceiptStatusSuccess || r.Status == ReceiptStatusFailed
}

// CanTransition is the single source of truth for receipt status moves.
// Pending may finalize either way; a terminal status may only be restated
// (late confirmation filling in the signature), never flipped.
func CanTransition(from, to string) bool {
	switch from {
	case ReceiptStatusPending:
		return to == ReceiptStatusSuccess || to == ReceiptStatusFailed
	case ReceiptStatusSuccess:
		return to == ReceiptStatusSuccess
	case ReceiptStatusFailed:
		return to == ReceiptStatusFailed
	default:
		return false
	}
}

// SwapExecutionEvent is one append-only audit record in a receipt's
// timeline. Rows are never updated or deleted.
type SwapExecutionEvent struct {
	bun.BaseModel `bun:"table:swap_execution_event,alias:see"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	ReceiptID string    `bun:"receipt_id,notnull" json:"receipt_id"`
	EventType string    `bun:"event_type,notnull" json:"event_type"`
	Metadata  string    `bun:"metadata" json:"metadata,omitempty"`
	Timestamp time.Time `bun:"timestamp,nullzero" json:"timestamp"`
}
