package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Ruscigno/astroscraper/logging"
)

// RootCmd is the base command for the astroscraper CLI.
var RootCmd = &cobra.Command{
	Use:   "astroscraper",
	Short: "UK astronomy classifieds scraper",
	Long:  `Scrapes the UK Astronomy Buy & Sell classifieds through a catalog of relay proxies and serves the results over HTTP or as CSV.`,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	godotenv.Load()
	viper.AutomaticEnv()
	viper.SetDefault("port", "3001")
	viper.SetDefault(logging.LogLevelKey, "debug")

	logger := logging.SetupLogger("astroscraper.log")
	zap.ReplaceGlobals(logger)
}
