package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"hashledger/config"
	"hashledger/consensus"
	"hashledger/core"
	"hashledger/database"
	"hashledger/logger"
	"hashledger/rpc"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var startNodeCmd = &cobra.Command{
	Use:   "startnode",
	Short: "Start the ledger node",
	Long:  `Start the ledger node: HTTP server (mine, transaction/new, chain) and an optional background miner.`,
	RunE:  runStartNode,
}

func init() {
	flags := startNodeCmd.Flags()
	flags.String("rpcaddr", config.DefaultConfig.RPCAddr, "HTTP listen address")
	flags.Int("rpcport", config.DefaultConfig.RPCPort, "HTTP port")
	flags.Bool("mining", config.DefaultConfig.Mining, "Run the background miner")
	flags.String("miner", config.DefaultConfig.Miner, "Recipient of mining rewards")
	flags.Int("max_pending", config.DefaultConfig.MaxPending, "Pending pool limit (0 = unbounded)")
	flags.Bool("forcegenesis", config.DefaultConfig.ForceGenesis, "Wipe the block archive in --datadir and start from a new genesis block")

	for _, name := range []string{"rpcaddr", "rpcport", "mining", "miner", "max_pending", "forcegenesis"} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}

// newEngine membangun ProofOfWork dari konfigurasi.
func newEngine(cfg *config.Config) (*consensus.ProofOfWork, error) {
	difficulty, err := cfg.GetDifficulty()
	if err != nil {
		return nil, err
	}
	return consensus.NewProofOfWork(difficulty, consensus.WithCheckInterval(cfg.ProofCheckInterval))
}

// openLedger membuat ledger baru, atau memulihkannya dari arsip bila persist aktif.
// Arsip yang rusak menghentikan start: chain tidak pernah diperbaiki otomatis,
// kecuali operator meminta --forcegenesis.
func openLedger(cfg *config.Config) (*core.Ledger, *database.BlockStore, error) {
	opts := []core.Option{core.WithMaxPending(cfg.MaxPending)}
	if !cfg.Persist {
		return core.NewLedger(opts...), nil, nil
	}

	store, err := database.NewBlockStore(cfg.GetDataSubDir("chaindata"))
	if err != nil {
		return nil, nil, err
	}
	if cfg.ForceGenesis {
		logger.Warningf("forcegenesis set, discarding block archive at %s", cfg.GetDataSubDir("chaindata"))
		if err := store.Reset(); err != nil {
			return nil, nil, multierr.Append(fmt.Errorf("reset archive: %w", err), store.Close())
		}
	}
	blocks, err := store.LoadBlocks()
	if err != nil {
		return nil, nil, multierr.Append(fmt.Errorf("load archive: %w", err), store.Close())
	}
	opts = append(opts, core.WithArchiver(store))
	if len(blocks) == 0 {
		logger.Infof("Block archive at %s is empty, creating genesis", cfg.GetDataSubDir("chaindata"))
		return core.NewLedger(opts...), store, nil
	}

	ledger, err := core.RestoreLedger(blocks, opts...)
	if err != nil {
		return nil, nil, multierr.Append(fmt.Errorf("restore ledger from archive: %w", err), store.Close())
	}
	return ledger, store, nil
}

func rpcConfig(cfg *config.Config) *rpc.Config {
	return &rpc.Config{
		Addr:        cfg.RPCListenAddr(),
		EnableCache: cfg.EnableCache,
		CacheTTL:    cfg.CacheTTL,
	}
}

func runStartNode(cmd *cobra.Command, args []string) (err error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}
	logger.SetLevel(cfg.GetLogLevel())
	logger.Info("Starting ledger node...")

	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}
	logger.Infof("Proof of work difficulty: %s", engine.Difficulty())

	ledger, store, err := openLedger(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() {
			logger.Info("Closing block archive...")
			err = multierr.Append(err, store.Close())
		}()
	}

	miner := core.NewMiner(ledger, engine, core.MinerConfig{
		Address:      cfg.Miner,
		RewardSender: cfg.RewardSender,
		RewardAmount: cfg.RewardAmount,
		Interval:     cfg.MiningInterval,
		Timeout:      cfg.MiningTimeout,
	})

	server := rpc.NewServer(rpcConfig(cfg), ledger, engine, miner)
	serveErr, err := server.Start()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case err, ok := <-serveErr:
			if ok && err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-gctx.Done():
			return nil
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.Mining {
		miner.Start()
	} else {
		logger.Info("Background mining is disabled; blocks are mined through GET /mine.")
	}
	// miner bisa dinyalakan lewat /api/mining/start, jadi selalu dihentikan saat shutdown
	g.Go(func() error {
		<-gctx.Done()
		if miner.IsRunning() {
			miner.Stop()
		}
		return nil
	})

	logger.Info("Ledger node started. Press Ctrl+C to stop.")
	if werr := g.Wait(); werr != nil && !errors.Is(werr, context.Canceled) {
		err = werr
	}
	if err == nil && !ledger.Verify() {
		logger.Warning("Chain failed verification at shutdown")
	}
	logger.Infof("Ledger node stopped at height %d.", ledger.Len()-1)
	return err
}
