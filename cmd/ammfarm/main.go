package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/egaotan/solana-amm/app"
	"github.com/egaotan/solana-amm/config"
	"github.com/egaotan/solana-amm/logger"
	"github.com/egaotan/solana-amm/spltoken"
	"github.com/egaotan/solana-amm/store"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGABRT)

	if len(os.Args) == 2 {
		if err := os.Chdir(os.Args[1]); err != nil {
			panic(err)
		}
	}

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on OS environment")
	}

	cfg, err := config.Load(config.ConfigFile)
	if err != nil {
		panic(err)
	}
	logger.Initialize(os.Getenv("AMM_LOG_LEVEL"), cfg.DumpLog, config.LogPath)
	log.Info().Str("listen", cfg.Listen).Msg("amm farm service starting")

	var st *store.Store
	if cfg.EnableStore {
		st = store.NewStore(ctx, cfg.DBUrl, cfg.DBScheme, cfg.DBUser, cfg.DBPasswd)
		st.Start()
	}

	a := app.NewApp(ctx, cfg, spltoken.NewLedger(), st)
	a.Start()

	<-quit
	log.Info().Msg("shutting down")
	cancel()
	a.Stop()
	if st != nil {
		st.Stop()
	}
}
