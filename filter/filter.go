// Package filter maintains the full record set and a derived filtered,
// sorted view, recomputed synchronously on every mutation.
package filter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Ruscigno/astroscraper/models"
)

// SortKey selects the comparator for the derived view.
type SortKey string

const (
	SortDateDesc  SortKey = "date-desc"
	SortDateAsc   SortKey = "date-asc"
	SortPriceDesc SortKey = "price-desc"
	SortPriceAsc  SortKey = "price-asc"
	// SortAdNumber orders by the numeric ad number, descending.
	SortAdNumber SortKey = "ad-number"
)

// DefaultSortKey orders newest listings first.
const DefaultSortKey = SortDateDesc

// Valid reports whether the key names a known sort order.
func (k SortKey) Valid() bool {
	switch k {
	case SortDateDesc, SortDateAsc, SortPriceDesc, SortPriceAsc, SortAdNumber:
		return true
	}
	return false
}

// Criteria holds the active constraints; zero values mean no constraint.
type Criteria struct {
	Search       string   `json:"search"`
	AdType       string   `json:"ad_type"`
	Status       string   `json:"status"`
	MinPrice     *float64 `json:"min_price"`
	MaxPrice     *float64 `json:"max_price"`
	Location     string   `json:"location"`
	HasPhoto     bool     `json:"has_photo"`
	FeaturedOnly bool     `json:"featured_only"`
}

// Stats summarizes the full record set, not the filtered view.
type Stats struct {
	Total      int            `json:"total"`
	Filtered   int            `json:"filtered"`
	AdTypes    map[string]int `json:"ad_types"`
	Statuses   map[string]int `json:"statuses"`
	PriceMin   *float64       `json:"price_min"`
	PriceMax   *float64       `json:"price_max"`
	WithPhotos int            `json:"with_photos"`
	Featured   int            `json:"featured"`
	Locations  []string       `json:"locations"`
}

// UniqueValues are the sorted distinct values for filter dropdowns.
type UniqueValues struct {
	AdTypes   []string `json:"ad_types"`
	Statuses  []string `json:"statuses"`
	Locations []string `json:"locations"`
}

// State is a snapshot of the engine's criteria and sort key, restorable
// with Restore.
type State struct {
	Criteria      Criteria `json:"criteria"`
	SortBy        SortKey  `json:"sort_by"`
	TotalListings int      `json:"total_listings"`
	FilteredCount int      `json:"filtered_count"`
}

// Engine owns the record set and its derived view. Every mutation
// recomputes the view and notifies the registered observer while the
// engine is locked, so criteria and view are never observed out of sync.
// The observer must not call back into the engine.
type Engine struct {
	mu       sync.Mutex
	listings []models.ListingRecord
	filtered []models.ListingRecord
	criteria Criteria
	sortBy   SortKey
	onChange func([]models.ListingRecord)
}

// NewEngine returns an engine with no records and the default sort key.
func NewEngine() *Engine {
	return &Engine{sortBy: DefaultSortKey}
}

// OnChange registers the single observer notified with each new view.
func (e *Engine) OnChange(fn func([]models.ListingRecord)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = fn
}

// SetListings replaces the full record set.
func (e *Engine) SetListings(listings []models.ListingRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listings = make([]models.ListingRecord, len(listings))
	copy(e.listings, listings)
	e.apply()
}

// SetFilter sets one named constraint. Field names mirror the criteria:
// search, adType, status, minPrice, maxPrice, location, hasPhoto,
// featuredOnly. Numeric fields accept float64 or numeric strings; an empty
// string clears them.
func (e *Engine) SetFilter(field string, value interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch field {
	case "search":
		s, err := asString(value)
		if err != nil {
			return err
		}
		e.criteria.Search = s
	case "adType":
		s, err := asString(value)
		if err != nil {
			return err
		}
		e.criteria.AdType = s
	case "status":
		s, err := asString(value)
		if err != nil {
			return err
		}
		e.criteria.Status = s
	case "minPrice":
		p, err := asPrice(value)
		if err != nil {
			return err
		}
		e.criteria.MinPrice = p
	case "maxPrice":
		p, err := asPrice(value)
		if err != nil {
			return err
		}
		e.criteria.MaxPrice = p
	case "location":
		s, err := asString(value)
		if err != nil {
			return err
		}
		e.criteria.Location = s
	case "hasPhoto":
		b, err := asBool(value)
		if err != nil {
			return err
		}
		e.criteria.HasPhoto = b
	case "featuredOnly":
		b, err := asBool(value)
		if err != nil {
			return err
		}
		e.criteria.FeaturedOnly = b
	default:
		return fmt.Errorf("unknown filter field %q", field)
	}

	e.apply()
	return nil
}

// SetCriteria replaces all constraints at once.
func (e *Engine) SetCriteria(c Criteria) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.criteria = c
	e.apply()
}

// ClearFilters drops every constraint, keeping the sort key.
func (e *Engine) ClearFilters() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.criteria = Criteria{}
	e.apply()
}

// SetSortBy changes the view's comparator.
func (e *Engine) SetSortBy(key SortKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sortBy = key
	e.apply()
}

// Clear drops records and constraints.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listings = nil
	e.criteria = Criteria{}
	e.apply()
}

// Filtered returns a copy of the derived view.
func (e *Engine) Filtered() []models.ListingRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.ListingRecord, len(e.filtered))
	copy(out, e.filtered)
	return out
}

// Listings returns a copy of the full record set.
func (e *Engine) Listings() []models.ListingRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.ListingRecord, len(e.listings))
	copy(out, e.listings)
	return out
}

// GetState snapshots criteria and sort key.
func (e *Engine) GetState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Criteria:      e.criteria,
		SortBy:        e.sortBy,
		TotalListings: len(e.listings),
		FilteredCount: len(e.filtered),
	}
}

// Restore applies a snapshot, recomputing once.
func (e *Engine) Restore(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.criteria = s.Criteria
	if s.SortBy != "" {
		e.sortBy = s.SortBy
	}
	e.apply()
}

// apply recomputes the derived view and notifies the observer. Callers
// hold e.mu.
func (e *Engine) apply() {
	filtered := make([]models.ListingRecord, 0, len(e.listings))
	for _, l := range e.listings {
		if e.matches(l) {
			filtered = append(filtered, l)
		}
	}
	sortListings(filtered, e.sortBy)
	e.filtered = filtered

	if e.onChange != nil {
		view := make([]models.ListingRecord, len(filtered))
		copy(view, filtered)
		e.onChange(view)
	}
}

// matches ANDs every active constraint.
func (e *Engine) matches(l models.ListingRecord) bool {
	c := e.criteria

	if c.Search != "" {
		term := strings.ToLower(c.Search)
		if !strings.Contains(strings.ToLower(l.Description), term) &&
			!strings.Contains(strings.ToLower(l.Location), term) &&
			!strings.Contains(strings.ToLower(l.AdNumber), term) {
			return false
		}
	}
	if c.AdType != "" && l.AdType != c.AdType {
		return false
	}
	if c.Status != "" && l.Status != c.Status {
		return false
	}
	// Records without a parsed price never satisfy an active price bound.
	if c.MinPrice != nil && (l.Price == nil || *l.Price < *c.MinPrice) {
		return false
	}
	if c.MaxPrice != nil && (l.Price == nil || *l.Price > *c.MaxPrice) {
		return false
	}
	if c.Location != "" && !strings.Contains(strings.ToLower(l.Location), strings.ToLower(c.Location)) {
		return false
	}
	if c.HasPhoto && !l.HasPhoto {
		return false
	}
	if c.FeaturedOnly && !l.IsFeatured {
		return false
	}
	return true
}

// sortListings applies a stable sort; records missing the comparison field
// always sort after records that have it, in either direction.
func sortListings(listings []models.ListingRecord, key SortKey) {
	switch key {
	case SortDateDesc:
		sort.SliceStable(listings, func(i, j int) bool {
			a, b := listings[i].Date, listings[j].Date
			if a == nil || b == nil {
				return a != nil && b == nil
			}
			return a.After(*b)
		})
	case SortDateAsc:
		sort.SliceStable(listings, func(i, j int) bool {
			a, b := listings[i].Date, listings[j].Date
			if a == nil || b == nil {
				return a != nil && b == nil
			}
			return a.Before(*b)
		})
	case SortPriceDesc:
		sort.SliceStable(listings, func(i, j int) bool {
			a, b := listings[i].Price, listings[j].Price
			if a == nil || b == nil {
				return a != nil && b == nil
			}
			return *a > *b
		})
	case SortPriceAsc:
		sort.SliceStable(listings, func(i, j int) bool {
			a, b := listings[i].Price, listings[j].Price
			if a == nil || b == nil {
				return a != nil && b == nil
			}
			return *a < *b
		})
	case SortAdNumber:
		sort.SliceStable(listings, func(i, j int) bool {
			return adNumberValue(listings[i].AdNumber) > adNumberValue(listings[j].AdNumber)
		})
	}
}

// adNumberValue parses the ad number numerically; non-numeric values count
// as zero.
func adNumberValue(adNumber string) int {
	n, err := strconv.Atoi(strings.TrimSpace(adNumber))
	if err != nil {
		return 0
	}
	return n
}

// GetStats computes summary statistics over the full record set.
func (e *Engine) GetStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := Stats{
		Total:    len(e.listings),
		Filtered: len(e.filtered),
		AdTypes:  make(map[string]int),
		Statuses: make(map[string]int),
	}
	locations := make(map[string]struct{})

	for _, l := range e.listings {
		stats.AdTypes[l.AdType]++
		stats.Statuses[l.Status]++
		if l.Price != nil {
			if stats.PriceMin == nil || *l.Price < *stats.PriceMin {
				v := *l.Price
				stats.PriceMin = &v
			}
			if stats.PriceMax == nil || *l.Price > *stats.PriceMax {
				v := *l.Price
				stats.PriceMax = &v
			}
		}
		if l.HasPhoto {
			stats.WithPhotos++
		}
		if l.IsFeatured {
			stats.Featured++
		}
		if l.Location != "" {
			locations[l.Location] = struct{}{}
		}
	}

	stats.Locations = sortedKeys(locations)
	return stats
}

// GetUniqueValues returns sorted distinct values for dropdown filters.
func (e *Engine) GetUniqueValues() UniqueValues {
	e.mu.Lock()
	defer e.mu.Unlock()

	adTypes := make(map[string]struct{})
	statuses := make(map[string]struct{})
	locations := make(map[string]struct{})
	for _, l := range e.listings {
		if l.AdType != "" {
			adTypes[l.AdType] = struct{}{}
		}
		if l.Status != "" {
			statuses[l.Status] = struct{}{}
		}
		if l.Location != "" {
			locations[l.Location] = struct{}{}
		}
	}
	return UniqueValues{
		AdTypes:   sortedKeys(adTypes),
		Statuses:  sortedKeys(statuses),
		Locations: sortedKeys(locations),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func asBool(v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", v)
	}
	return b, nil
}

func asPrice(v interface{}) (*float64, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *float64:
		return t, nil
	case float64:
		return &t, nil
	case int:
		f := float64(t)
		return &f, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid price %q", t)
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("expected number, got %T", v)
	}
}
