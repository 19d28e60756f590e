package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"hashledger/config"
	"hashledger/logger"

	"github.com/spf13/cobra"
)

var proofTimeout time.Duration

var proofCmd = &cobra.Command{
	Use:   "proof <last-proof>",
	Short: "Search for the next proof of work",
	Long:  `Run the proof-of-work search for the given last proof with the configured difficulty and print the smallest valid candidate.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runProof,
}

func init() {
	proofCmd.Flags().DurationVar(&proofTimeout, "timeout", 0, "Give up after this long (0 = no limit)")
}

func runProof(cmd *cobra.Command, args []string) error {
	lastProof, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid last proof %q: %w", args[0], err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}
	logger.SetLevel(cfg.GetLogLevel())

	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if proofTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, proofTimeout)
		defer cancel()
	}

	start := time.Now()
	proof, err := engine.FindProofContext(ctx, lastProof)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "proof %d (difficulty %s, %v)\n", proof, engine.Difficulty(), time.Since(start))
	return nil
}
