package main

import (
	"flag"
	"log"

	"github.com/flowmintdao/solana_swap_engine/config"
	"github.com/flowmintdao/solana_swap_engine/core/db"
	"github.com/flowmintdao/solana_swap_engine/core/engine"
	"github.com/flowmintdao/solana_swap_engine/core/eventbus"
	"github.com/flowmintdao/solana_swap_engine/core/fees"
	"github.com/flowmintdao/solana_swap_engine/core/quote"
	"github.com/flowmintdao/solana_swap_engine/core/receipt"
	"github.com/flowmintdao/solana_swap_engine/core/redis"
	"github.com/flowmintdao/solana_swap_engine/core/risk"
	"github.com/flowmintdao/solana_swap_engine/core/submit"
	"github.com/flowmintdao/solana_swap_engine/core/tokenmeta"
	"github.com/flowmintdao/solana_swap_engine/core/web"
	"github.com/flowmintdao/solana_swap_engine/utils/logger"
)

func main() {
	configPath := flag.String("config_path", "./", "config file")
	logicLogFile := flag.String("logic_log_file", "./log/swap_engine.log", "logic log file")
	flag.Parse()

	//init logic logger
	logger.Init(*logicLogFile)

	//set log level
	logger.SetLogLevel("debug")

	err := config.LoadConf(*configPath)
	if err != nil {
		log.Fatal("load config failed:", err)
	}

	if err := redis.InitRedis(); err != nil {
		log.Fatal("init redis failed:", err)
	}

	if err := eventbus.InitKafka(); err != nil {
		log.Fatal("init kafka failed:", err)
	}

	riskCfg := config.GetRiskConfig()
	scorer := risk.NewScorer(tokenmeta.NewSource(), risk.Config{
		MaxTradeValueUSD: riskCfg.MaxTradeValueUSD,
		DenyListMints:    riskCfg.DenyListMints,
		StablecoinMints:  riskCfg.StablecoinMints,
	})

	store := receipt.NewStore(db.GetDB())

	eng := engine.New(
		quote.NewJupiterClient(),
		submit.NewRPCSubmitter(),
		fees.NewTieredEstimator(fees.NewCachedLevelSource(fees.NewRPCLevelSource())),
		scorer,
		store,
		receipt.NewRecorder(store),
	)

	web.Run(eng)
}
