package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hashledger/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd merepresentasikan perintah dasar ketika dipanggil tanpa sub-perintah
var rootCmd = &cobra.Command{
	Use:   "hashledger",
	Short: "Hash-linked ledger node",
	Long: `hashledger menjalankan ledger in-memory berantai hash dengan proof-of-work,
diakses lewat HTTP (mine, transaction/new, chain).`,
	SilenceUsage: true,
}

// Execute dipanggil oleh main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(startNodeCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(proofCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.hashledger/config.yaml or ./config.yaml)")

	// Default di sini hanya untuk help text; config.DefaultConfig tetap sumber default sebenarnya.
	flags := rootCmd.PersistentFlags()
	flags.String("datadir", config.DefaultConfig.DataDir, "Data directory for the block archive")
	flags.Bool("persist", config.DefaultConfig.Persist, "Archive blocks to LevelDB and restore them on start")
	flags.String("log_level", config.DefaultConfig.LogLevel, "Logging level (debug, info, warn, error, fatal)")
	flags.String("difficulty_digit", config.DefaultConfig.DifficultyDigit, "Digit the proof-of-work digest must repeat")
	flags.Int("difficulty_run", config.DefaultConfig.DifficultyRun, "How many times the digit must repeat")
	flags.String("difficulty_anchor", config.DefaultConfig.DifficultyAnchor, "Where the run must appear (suffix or prefix)")

	for _, name := range []string{"datadir", "persist", "log_level", "difficulty_digit", "difficulty_run", "difficulty_anchor"} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}

// initConfig membaca file konfigurasi dan variabel ENV jika ada.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".hashledger"))
		}
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("HASHLEDGER") // HASHLEDGER_RPCPORT, HASHLEDGER_MINING, ...
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config file '%s': %s\n", viper.ConfigFileUsed(), err)
		}
	}
}
