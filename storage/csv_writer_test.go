package storage

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ruscigno/astroscraper/models"
)

func TestWriteCSV(t *testing.T) {
	listings := []models.ListingRecord{
		{
			AdNumber:    "12345",
			AdType:      "For Sale",
			Status:      "Active",
			Description: `8" dobsonian, "as new", with eyepieces`,
			PriceText:   "£1,250.50",
			DateText:    "15/03/2024",
			Location:    "Yorkshire",
			HasPhoto:    true,
			IsFeatured:  false,
			ListingURL:  "https://www.astrobuysell.com/uk/propview.php?view=12345",
		},
		{AdNumber: "12346", AdType: "Wanted", PriceText: "POA"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, listings))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{
		"Ad Number", "Ad Type", "Status", "Description", "Price",
		"Date", "Location", "Has Photo", "Featured", "URL",
	}, rows[0])

	// Quotes and commas in the description survive the round trip.
	assert.Equal(t, `8" dobsonian, "as new", with eyepieces`, rows[1][3])
	assert.Equal(t, "£1,250.50", rows[1][4])
	assert.Equal(t, "Yes", rows[1][7])
	assert.Equal(t, "No", rows[1][8])
	assert.Equal(t, "POA", rows[2][4])
}

func TestCSVWriterCreatesOutputDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out", "listings.csv")
	w := NewCSVWriter(path, zap.NewNop())

	require.NoError(t, w.Write([]models.ListingRecord{{AdNumber: "1"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Ad Number")
}

func TestCSVWriterSkipsEmptySet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.csv")
	w := NewCSVWriter(path, zap.NewNop())

	require.NoError(t, w.Write(nil))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
