package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Ruscigno/astroscraper/models"
)

// csvHeader is the fixed export column order.
var csvHeader = []string{
	"Ad Number", "Ad Type", "Status", "Description", "Price",
	"Date", "Location", "Has Photo", "Featured", "URL",
}

// WriteCSV serializes listings as a delimited table. encoding/csv handles
// quoting of embedded quotes and commas.
func WriteCSV(w io.Writer, listings []models.ListingRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, l := range listings {
		row := []string{
			l.AdNumber,
			l.AdType,
			l.Status,
			l.Description,
			l.PriceText,
			l.DateText,
			l.Location,
			yesNo(l.HasPhoto),
			yesNo(l.IsFeatured),
			l.ListingURL,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// CSVWriter exports a listing view to a file on disk.
type CSVWriter struct {
	path   string
	logger *zap.Logger
}

// NewCSVWriter returns a writer targeting path.
func NewCSVWriter(path string, logger *zap.Logger) *CSVWriter {
	return &CSVWriter{path: path, logger: logger}
}

// Write saves the listings, creating the output directory if needed.
func (w *CSVWriter) Write(listings []models.ListingRecord) error {
	if len(listings) == 0 {
		w.logger.Warn("no listings to export")
		return nil
	}

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}
	}

	file, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("creating csv file: %w", err)
	}
	defer file.Close()

	if err := WriteCSV(file, listings); err != nil {
		return err
	}
	w.logger.Info("exported listings",
		zap.Int("count", len(listings)), zap.String("path", w.path))
	return nil
}
