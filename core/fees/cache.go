package fees

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flowmintdao/solana_swap_engine/config"
	"github.com/flowmintdao/solana_swap_engine/core/redis"
	"github.com/flowmintdao/solana_swap_engine/utils/logger"
	"github.com/sirupsen/logrus"
)

const feeLevelsKey = "swap_engine:fee_levels"

// CachedLevelSource fronts a LevelSource with a short-TTL redis cache so
// concurrent executions do not hammer the RPC for the same reading.
type CachedLevelSource struct {
	inner LevelSource
}

func NewCachedLevelSource(inner LevelSource) *CachedLevelSource {
	return &CachedLevelSource{inner: inner}
}

func (c *CachedLevelSource) FeeLevels(ctx context.Context) (*Levels, error) {
	val, err := redis.GetRedisInst().Get(ctx, feeLevelsKey).Result()
	if err == nil && val != "" {
		levels := Levels{}
		if jsonErr := json.Unmarshal([]byte(val), &levels); jsonErr == nil {
			return &levels, nil
		}
	}
	if err != nil && err != redis.Nil {
		logger.Logrus.WithFields(logrus.Fields{"ErrMsg": err.Error()}).Warn("fee cache read failed")
	}

	levels, err := c.inner.FeeLevels(ctx)
	if err != nil {
		return nil, err
	}

	ttl := config.GetEngineConfig().FeeCacheSeconds
	if ttl <= 0 {
		ttl = 10
	}

	if raw, jsonErr := json.Marshal(levels); jsonErr == nil {
		if setErr := redis.GetRedisInst().Set(ctx, feeLevelsKey, raw, time.Duration(ttl)*time.Second).Err(); setErr != nil {
			logger.Logrus.WithFields(logrus.Fields{"ErrMsg": setErr.Error()}).Warn("fee cache write failed")
		}
	}

	return levels, nil
}
