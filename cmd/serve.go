package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ruscigno/astroscraper/config"
	"github.com/Ruscigno/astroscraper/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "listing scraper service",
	Long:  `Starts a http server and serves the listing scraper service`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start(config.Load(), zap.L())
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
}
