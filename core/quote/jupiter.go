package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/flowmintdao/solana_swap_engine/config"
	"github.com/flowmintdao/solana_swap_engine/utils/logger"
	"github.com/sirupsen/logrus"
)

// HTTPError keeps the upstream status and any Retry-After hint so the
// classifier can propagate a suggested delay.
type HTTPError struct {
	Status int
	Body   string
	Hint   time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("aggregator response %d: %s", e.Status, e.Body)
}

func (e *HTTPError) RetryAfter() time.Duration {
	return e.Hint
}

type JupiterClient struct {
	client *http.Client
}

func NewJupiterClient() *JupiterClient {
	timeout := config.GetJupiterConfig().TimeoutSeconds
	if timeout <= 0 {
		timeout = 10
	}
	return &JupiterClient{
		client: &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}
}

func (c *JupiterClient) Quote(ctx context.Context, req Request) (*Quote, error) {
	cfg := config.GetJupiterConfig()

	params := url.Values{}
	params.Set("inputMint", req.InputMint)
	params.Set("outputMint", req.OutputMint)
	params.Set("amount", req.Amount)
	params.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	if req.SwapMode != "" {
		params.Set("swapMode", req.SwapMode)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.QuoteURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if cfg.APIKey != "" {
		httpReq.Header.Set("x-api-key", cfg.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch quote: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read quote response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		herr := &HTTPError{Status: resp.StatusCode, Body: string(body)}
		if sec, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && sec > 0 {
			herr.Hint = time.Duration(sec) * time.Second
		}
		logger.Logrus.WithFields(logrus.Fields{"Status": resp.StatusCode, "Body": string(body)}).Warn("quote request failed")
		return nil, herr
	}

	q := Quote{}
	if err := json.Unmarshal(body, &q); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	q.FetchedAt = time.Now()

	logger.Logrus.WithFields(logrus.Fields{
		"InputMint":  q.InputMint,
		"OutputMint": q.OutputMint,
		"InAmount":   q.InAmount,
		"OutAmount":  q.OutAmount,
		"Impact":     q.PriceImpactPct,
		"Hops":       q.Hops(),
	}).Debug("quote fetched")

	return &q, nil
}
