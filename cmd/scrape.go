package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ruscigno/astroscraper/config"
	"github.com/Ruscigno/astroscraper/models"
	"github.com/Ruscigno/astroscraper/scraper"
	"github.com/Ruscigno/astroscraper/server"
	"github.com/Ruscigno/astroscraper/storage"
)

var (
	scrapeMaxPages   int
	scrapeSequential bool
	scrapeOutput     string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "run a one-shot scrape and export the results as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		logger := zap.L()

		if scrapeMaxPages > 0 {
			cfg.MaxPages = scrapeMaxPages
		}
		if scrapeSequential {
			cfg.Parallel = false
		}
		if scrapeOutput != "" {
			cfg.OutputCSV = scrapeOutput
		}

		svc, cleanup, err := server.Build(cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := context.Background()
		svc.Startup(ctx)
		svc.SetObserver(scraper.Observer{
			OnProgress: func(p models.Progress) {
				if p.Error {
					fmt.Printf("page %d: %s\n", p.CurrentPage, p.Status)
					return
				}
				fmt.Printf("page %d: %d listings so far\n", p.CurrentPage, p.TotalListings)
			},
		})

		job := &models.ScrapeJob{
			ID:          uuid.NewString(),
			MaxPages:    cfg.MaxPages,
			Concurrency: cfg.Concurrency,
			Parallel:    cfg.Parallel,
		}
		if err := svc.Scrape(ctx, job); err != nil {
			return err
		}

		writer := storage.NewCSVWriter(cfg.OutputCSV, logger)
		if err := writer.Write(svc.Engine().Listings()); err != nil {
			return err
		}
		fmt.Printf("wrote %d listings to %s\n", len(svc.Engine().Listings()), cfg.OutputCSV)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().IntVar(&scrapeMaxPages, "max-pages", 0, "maximum pages to walk (default from MAX_PAGES)")
	scrapeCmd.Flags().BoolVar(&scrapeSequential, "sequential", false, "walk pages one at a time instead of in batches")
	scrapeCmd.Flags().StringVar(&scrapeOutput, "output", "", "CSV output path (default from OUTPUT_CSV)")
}
