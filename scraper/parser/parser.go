// Package parser turns raw listings-page markup into structured records.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Ruscigno/astroscraper/models"
	"github.com/Ruscigno/astroscraper/pkg/scrapeerr"
)

const (
	siteHost = "https://www.astrobuysell.com"
	basePath = "https://www.astrobuysell.com/uk/"

	// Table background colors marking real listings; everything else on
	// the page is promotional or decorative.
	featuredColor = "#FFF87A"
	regularColor  = "#EBEBEB"

	listingTableSelector = `table[border="1"][cellspacing="1"][cellpadding="2"]`
	collapsedBorderStyle = "border-collapse: collapse"
)

// Parser extracts listing records from page markup.
type Parser struct {
	logger *zap.Logger
}

// New returns a parser.
func New(logger *zap.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse extracts the ordered listing records from one page. A malformed
// container is logged and skipped; it never aborts the page. The only hard
// failure is markup the HTML tokenizer cannot consume at all.
func (p *Parser) Parse(html string, pageNumber int) ([]models.ListingRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, scrapeerr.Parse("parsing page markup", err)
	}

	var records []models.ListingRecord
	doc.Find(listingTableSelector).Each(func(i int, table *goquery.Selection) {
		style, _ := table.Attr("style")
		bgcolor, _ := table.Attr("bgcolor")
		if !strings.Contains(style, collapsedBorderStyle) {
			return
		}
		if bgcolor != featuredColor && bgcolor != regularColor {
			return
		}

		row := table.Find("tr").First()
		if row.Length() == 0 {
			return
		}
		record, err := p.parseRow(row, bgcolor == featuredColor, pageNumber)
		if err != nil {
			p.logger.Warn("skipping malformed listing container",
				zap.Int("page", pageNumber),
				zap.Int("table", i),
				zap.Error(err))
			return
		}
		records = append(records, record)
	})

	p.logger.Debug("parsed page",
		zap.Int("page", pageNumber),
		zap.Int("listings", len(records)))
	return records, nil
}

// parseRow reads the first row's cells positionally: ad number, type,
// status, photo indicator, description, price, date, location.
func (p *Parser) parseRow(row *goquery.Selection, featured bool, pageNumber int) (models.ListingRecord, error) {
	cells := row.Find("td")
	if cells.Length() < 8 {
		return models.ListingRecord{}, scrapeerr.Parse(
			"row has "+strconv.Itoa(cells.Length())+" cells, need 8", nil)
	}

	cell := func(i int) *goquery.Selection { return cells.Eq(i) }
	text := func(i int) string { return strings.TrimSpace(cell(i).Text()) }

	adNumber := text(0)
	listingURL := ""
	if href, ok := cell(0).Find("a").First().Attr("href"); ok {
		listingURL = resolveURL(href)
	}

	adType := text(1)
	if link := cell(1).Find("a").First(); link.Length() > 0 {
		adType = strings.TrimSpace(link.Text())
	}

	hasPhoto := cell(3).Find(`img[src*="camera.gif"]`).Length() > 0

	priceText := text(5)
	dateText := text(6)

	return models.ListingRecord{
		ID:          models.RecordID(pageNumber, adNumber),
		AdNumber:    adNumber,
		AdType:      adType,
		Status:      text(2),
		HasPhoto:    hasPhoto,
		Description: text(4),
		Price:       ParsePrice(priceText),
		PriceText:   priceText,
		Date:        ParseDate(dateText),
		DateText:    dateText,
		Location:    text(7),
		IsFeatured:  featured,
		ListingURL:  listingURL,
		PageNumber:  pageNumber,
	}, nil
}

var priceRe = regexp.MustCompile(`[\d,]+\.?\d*`)

// ParsePrice extracts a decimal price from raw cell text. "POA" and
// "contact" variants mean price-on-application and yield nil, as does any
// text without a parsable numeric run.
func ParsePrice(priceText string) *float64 {
	lower := strings.ToLower(priceText)
	if priceText == "" || strings.Contains(lower, "poa") || strings.Contains(lower, "contact") {
		return nil
	}

	match := priceRe.FindString(priceText)
	if match == "" {
		return nil
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &value
}

var (
	dmySlashRe    = regexp.MustCompile(`(\d{2})/(\d{2})/(\d{4})`)
	dmyLenientRe  = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	isoDashRe     = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	genericLayout = []string{"2 January 2006", "January 2, 2006", "2 Jan 2006", "Jan 2, 2006"}
)

// ParseDate attempts DD/MM/YYYY, then lenient D/M/YYYY, then YYYY-MM-DD,
// then a short list of common written layouts. First match wins; no other
// format is guessed. Failure yields nil with the raw text retained by the
// caller.
func ParseDate(dateText string) *time.Time {
	if dateText == "" {
		return nil
	}

	if m := dmySlashRe.FindStringSubmatch(dateText); m != nil {
		if d := makeDate(m[3], m[2], m[1]); d != nil {
			return d
		}
	}
	if m := dmyLenientRe.FindStringSubmatch(dateText); m != nil {
		if d := makeDate(m[3], m[2], m[1]); d != nil {
			return d
		}
	}
	if m := isoDashRe.FindStringSubmatch(dateText); m != nil {
		if d := makeDate(m[1], m[2], m[3]); d != nil {
			return d
		}
	}

	trimmed := strings.TrimSpace(dateText)
	for _, layout := range genericLayout {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return &t
		}
	}
	return nil
}

// makeDate builds a date from decimal components, rejecting values that
// roll over (32/01 becoming 01/02 and the like).
func makeDate(year, month, day string) *time.Time {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || t.Month() != time.Month(m) || t.Day() != d {
		return nil
	}
	return &t
}

// resolveURL turns a listing link into an absolute URL. Absolute links pass
// through; leading-slash paths join the host; everything else joins the
// site's UK base path.
func resolveURL(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return siteHost + href
	}
	return basePath + href
}
