package parser

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func listingTable(bgcolor string, cells ...string) string {
	row := ""
	for _, c := range cells {
		row += "<td>" + c + "</td>"
	}
	return fmt.Sprintf(
		`<table border="1" cellspacing="1" cellpadding="2" style="border-collapse: collapse" bgcolor="%s"><tr>%s</tr></table>`,
		bgcolor, row)
}

func TestParseExtractsListings(t *testing.T) {
	html := `<html><body>
	<table border="1" cellspacing="1" cellpadding="2"><tr><td>navigation chrome, wrong style</td></tr></table>` +
		listingTable("#FFF87A",
			`<a href="propview.php?view=12345">12345</a>`, `<a href="#">For Sale</a>`, "Active",
			`<img src="images/camera.gif">`, "SkyWatcher 200P", "&pound;450.00", "15/03/2024", "Yorkshire") +
		listingTable("#EBEBEB",
			"12344", "Wanted", "Active",
			"", "Televue Panoptic 24mm", "POA", "bad date", "Kent") +
		listingTable("#EBEBEB", "too", "few", "cells") +
		`</body></html>`

	p := New(zap.NewNop())
	records, err := p.Parse(html, 3)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "3_12345", first.ID)
	assert.Equal(t, "12345", first.AdNumber)
	assert.Equal(t, "For Sale", first.AdType)
	assert.Equal(t, "Active", first.Status)
	assert.True(t, first.HasPhoto)
	assert.True(t, first.IsFeatured)
	assert.Equal(t, "SkyWatcher 200P", first.Description)
	require.NotNil(t, first.Price)
	assert.Equal(t, 450.0, *first.Price)
	require.NotNil(t, first.Date)
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), *first.Date)
	assert.Equal(t, "https://www.astrobuysell.com/uk/propview.php?view=12345", first.ListingURL)
	assert.Equal(t, 3, first.PageNumber)

	second := records[1]
	assert.False(t, second.IsFeatured)
	assert.False(t, second.HasPhoto)
	assert.Nil(t, second.Price)
	assert.Equal(t, "POA", second.PriceText)
	assert.Nil(t, second.Date)
	assert.Equal(t, "bad date", second.DateText)
}

func TestParseIgnoresDecorativeTables(t *testing.T) {
	html := `<table border="1" cellspacing="1" cellpadding="2" style="border-collapse: collapse" bgcolor="#FFFFFF">
	<tr><td>1</td><td>2</td><td>3</td><td>4</td><td>5</td><td>6</td><td>7</td><td>8</td></tr></table>`

	p := New(zap.NewNop())
	records, err := p.Parse(html, 1)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want *float64
	}{
		{"£1,250.50", f(1250.50)},
		{"450", f(450)},
		{"GBP 99.99", f(99.99)},
		{"POA", nil},
		{"Please contact seller", nil},
		{"", nil},
		{"free to collector", nil},
	}
	for _, tc := range cases {
		got := ParsePrice(tc.in)
		if tc.want == nil {
			assert.Nil(t, got, "input %q", tc.in)
			continue
		}
		require.NotNil(t, got, "input %q", tc.in)
		assert.Equal(t, *tc.want, *got, "input %q", tc.in)
	}
}

func f(v float64) *float64 { return &v }

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want *time.Time
	}{
		{"15/03/2024", d(2024, time.March, 15)},
		{"5/3/2024", d(2024, time.March, 5)},
		{"2024-03-15", d(2024, time.March, 15)},
		{"15 March 2024", d(2024, time.March, 15)},
		{"Mar 15, 2024", d(2024, time.March, 15)},
		{"32/01/2024", nil},
		{"not a date", nil},
		{"", nil},
	}
	for _, tc := range cases {
		got := ParseDate(tc.in)
		if tc.want == nil {
			assert.Nil(t, got, "input %q", tc.in)
			continue
		}
		require.NotNil(t, got, "input %q", tc.in)
		assert.Equal(t, *tc.want, *got, "input %q", tc.in)
	}
}

func d(y int, m time.Month, day int) *time.Time {
	t := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://example.com/x", resolveURL("https://example.com/x"))
	assert.Equal(t, "https://www.astrobuysell.com/uk/propview.php?view=1", resolveURL("propview.php?view=1"))
	assert.Equal(t, "https://www.astrobuysell.com/uk/other.php", resolveURL("/uk/other.php"))
	assert.Equal(t, "", resolveURL(""))
}
