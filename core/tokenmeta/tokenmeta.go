package tokenmeta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flowmintdao/solana_swap_engine/config"
	"github.com/flowmintdao/solana_swap_engine/core/redis"
	"github.com/flowmintdao/solana_swap_engine/core/risk"
	"github.com/flowmintdao/solana_swap_engine/utils/logger"
	"github.com/sirupsen/logrus"
)

type metaResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Address         string      `json:"address"`
		Symbol          string      `json:"symbol"`
		Decimals        int         `json:"decimals"`
		Holder          int64       `json:"holder"`
		CreatedTime     int64       `json:"created_time"`
		FreezeAuthority interface{} `json:"freeze_authority"`
		TransferFeeBps  int         `json:"transfer_fee_bps"`
	} `json:"data"`
}

// Source resolves token safety metadata for the risk scorer, caching lookups
// in redis so one hot mint does not fan out to the metadata API.
type Source struct {
	client *http.Client
}

func NewSource() *Source {
	return &Source{client: &http.Client{Timeout: 10 * time.Second}}
}

func cacheKey(mint string) string {
	return "swap_engine:token_meta:" + mint
}

func (s *Source) TokenMeta(ctx context.Context, mint string) (*risk.TokenMeta, error) {
	val, err := redis.GetRedisInst().Get(ctx, cacheKey(mint)).Result()
	if err == nil && val != "" {
		meta := risk.TokenMeta{}
		if jsonErr := json.Unmarshal([]byte(val), &meta); jsonErr == nil {
			return &meta, nil
		}
	}
	if err != nil && err != redis.Nil {
		logger.Logrus.WithFields(logrus.Fields{"ErrMsg": err.Error()}).Warn("token meta cache read failed")
	}

	meta, err := s.fetch(ctx, mint)
	if err != nil {
		return nil, err
	}

	ttl := config.GetTokenMetaConfig().CacheSecond
	if ttl <= 0 {
		ttl = 600
	}
	if raw, jsonErr := json.Marshal(meta); jsonErr == nil {
		redis.GetRedisInst().Set(ctx, cacheKey(mint), raw, time.Duration(ttl)*time.Second)
	}

	return meta, nil
}

func (s *Source) fetch(ctx context.Context, mint string) (*risk.TokenMeta, error) {
	cfg := config.GetTokenMetaConfig()
	if cfg.Host == "" {
		return nil, fmt.Errorf("token meta host not configured")
	}

	url := cfg.Host + "/token/meta?address=" + mint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if cfg.APIKey != "" {
		req.Header.Set("token", cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch token meta: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token meta response %d: %s", resp.StatusCode, string(body))
	}

	decoded := metaResponse{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode token meta: %w", err)
	}
	if !decoded.Success {
		return nil, fmt.Errorf("token meta lookup unsuccessful for %s", mint)
	}

	meta := risk.TokenMeta{
		Mint:            mint,
		Symbol:          decoded.Data.Symbol,
		FreezeAuthority: decoded.Data.FreezeAuthority != nil,
		TransferFeeBps:  decoded.Data.TransferFeeBps,
		HolderCount:     decoded.Data.Holder,
	}
	if decoded.Data.CreatedTime > 0 {
		meta.CreatedAt = time.Unix(decoded.Data.CreatedTime, 0)
	}

	return &meta, nil
}
