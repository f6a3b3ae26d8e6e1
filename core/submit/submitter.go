package submit

import (
	"context"
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusPending   Status = "pending"
)

// BuildResult is the aggregator's unsigned transaction for one quote.
type BuildResult struct {
	SwapTransaction           string `json:"swapTransaction"`
	LastValidBlockHeight      uint64 `json:"lastValidBlockHeight"`
	PrioritizationFeeLamports uint64 `json:"prioritizationFeeLamports"`
}

// FeeParams carries the priority-fee selection into the build call.
type FeeParams struct {
	ComputeUnitPriceMicroLamports uint64
	ComputeUnitLimit              uint32
}

// Submitter is the engine's boundary to transaction building, broadcast and
// confirmation. Build delegates to the aggregator, Submit/Confirm go to the
// chain RPC.
type Submitter interface {
	BuildTransaction(ctx context.Context, quoteJSON []byte, userPublicKey string, fee FeeParams) (*BuildResult, error)
	Submit(ctx context.Context, signedTxBase64 string) (string, error)
	Confirm(ctx context.Context, signature string) (Status, error)
}

// ExtractSignature pulls the fee payer signature out of a signed serialized
// transaction, so an ambiguous broadcast can be resolved by a status query
// instead of a blind resubmit.
func ExtractSignature(signedTxBase64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(signedTxBase64)
	if err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", fmt.Errorf("deserialize transaction: %w", err)
	}

	if len(tx.Signatures) == 0 || tx.Signatures[0].IsZero() {
		return "", fmt.Errorf("transaction is not signed")
	}

	return tx.Signatures[0].String(), nil
}
