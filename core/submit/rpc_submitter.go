package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flowmintdao/solana_swap_engine/config"
	"github.com/flowmintdao/solana_swap_engine/utils/logger"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
)

type RPCSubmitter struct {
	rpcClient *rpc.Client
	http      *http.Client
}

func NewRPCSubmitter() *RPCSubmitter {
	cfg := config.GetSolanaConfig()
	endpoint := cfg.RPCEndpoint
	if cfg.APIKey != "" {
		endpoint = endpoint + "/?api-key=" + cfg.APIKey
	}

	return &RPCSubmitter{
		rpcClient: rpc.New(endpoint),
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

type swapBuildRequest struct {
	QuoteResponse                 json.RawMessage `json:"quoteResponse"`
	UserPublicKey                 string          `json:"userPublicKey"`
	WrapAndUnwrapSol              bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit       bool            `json:"dynamicComputeUnitLimit"`
	ComputeUnitPriceMicroLamports uint64          `json:"computeUnitPriceMicroLamports,omitempty"`
}

// BuildTransaction asks the aggregator to assemble an unsigned swap
// transaction for a previously fetched quote.
func (s *RPCSubmitter) BuildTransaction(ctx context.Context, quoteJSON []byte, userPublicKey string, fee FeeParams) (*BuildResult, error) {
	cfg := config.GetJupiterConfig()

	payload := swapBuildRequest{
		QuoteResponse:                 quoteJSON,
		UserPublicKey:                 userPublicKey,
		WrapAndUnwrapSol:              true,
		DynamicComputeUnitLimit:       fee.ComputeUnitLimit == 0,
		ComputeUnitPriceMicroLamports: fee.ComputeUnitPriceMicroLamports,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.SwapURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		httpReq.Header.Set("x-api-key", cfg.APIKey)
	}

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read build response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.Logrus.WithFields(logrus.Fields{"Status": resp.StatusCode, "Body": string(respBody)}).Warn("build transaction failed")
		return nil, fmt.Errorf("aggregator response %d: %s", resp.StatusCode, string(respBody))
	}

	out := BuildResult{}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode build response: %w", err)
	}
	if out.SwapTransaction == "" {
		return nil, fmt.Errorf("aggregator returned empty transaction")
	}

	return &out, nil
}

// Submit broadcasts a signed transaction. Preflight is skipped, the engine
// already risk-checked the quote and a preflight failure would surface the
// same classified error one hop later.
func (s *RPCSubmitter) Submit(ctx context.Context, signedTxBase64 string) (string, error) {
	sig, err := s.rpcClient.SendEncodedTransactionWithOpts(ctx, signedTxBase64, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	logger.Logrus.WithFields(logrus.Fields{"Signature": sig.String()}).Info("transaction submitted")
	return sig.String(), nil
}

// Confirm looks up the on-chain status of a signature. Pending means the
// cluster has not yet reached confirmed commitment for it.
func (s *RPCSubmitter) Confirm(ctx context.Context, signature string) (Status, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return StatusFailed, fmt.Errorf("parse signature: %w", err)
	}

	res, err := s.rpcClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return StatusPending, fmt.Errorf("get signature status: %w", err)
	}
	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return StatusPending, nil
	}

	st := res.Value[0]
	if st.Err != nil {
		return StatusFailed, fmt.Errorf("transaction failed on chain: %v", st.Err)
	}

	switch st.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return StatusConfirmed, nil
	default:
		return StatusPending, nil
	}
}
