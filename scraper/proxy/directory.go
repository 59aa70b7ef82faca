// Package proxy holds the catalog of relay intermediaries, the rules for
// building a relayed URL and unwrapping a relayed response, and the probe
// logic that confirms a working entry for the session.
package proxy

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Family is the closed set of intermediary behaviors. Each family carries
// its own URL-construction and response-unwrapping rules.
type Family int

const (
	// FamilyDirect is the "no intermediary" pseudo-entry.
	FamilyDirect Family = iota
	// FamilyRawAppend appends the target URL verbatim. These relays reject
	// percent-encoded URLs.
	FamilyRawAppend
	// FamilyEncodedAppend appends the percent-encoded target URL. Default
	// for unrecognized templates.
	FamilyEncodedAppend
	// FamilyJSONWrap appends the encoded URL and returns a JSON envelope
	// whose contents/data/content field holds the body.
	FamilyJSONWrap
	// FamilyRSSWrap substitutes the encoded URL for a placeholder token and
	// returns an RSS-style JSON envelope; the first item's description
	// field holds the body.
	FamilyRSSWrap
)

// PlaceholderToken marks where FamilyRSSWrap templates take the target URL.
const PlaceholderToken = "{target}"

func (f Family) String() string {
	switch f {
	case FamilyDirect:
		return "direct"
	case FamilyRawAppend:
		return "raw-append"
	case FamilyEncodedAppend:
		return "encoded-append"
	case FamilyJSONWrap:
		return "json-wrap"
	case FamilyRSSWrap:
		return "rss-wrap"
	}
	return fmt.Sprintf("family(%d)", int(f))
}

// BuildURL constructs the relayed request URL for a target.
func (f Family) BuildURL(template, target string) string {
	switch f {
	case FamilyDirect:
		return target
	case FamilyRawAppend:
		return template + target
	case FamilyRSSWrap:
		return strings.Replace(template, PlaceholderToken, url.QueryEscape(target), 1)
	default: // FamilyEncodedAppend, FamilyJSONWrap
		return template + url.QueryEscape(target)
	}
}

type jsonEnvelope struct {
	Contents string `json:"contents"`
	Data     string `json:"data"`
	Content  string `json:"content"`
}

type rssEnvelope struct {
	Items []struct {
		Description string `json:"description"`
	} `json:"items"`
}

// Unwrap extracts the target body from a relayed response. Families that
// relay the body as-is return it unchanged; envelope families decode it.
// An envelope that cannot be decoded falls back to the raw body, matching
// relays that only wrap some responses.
func (f Family) Unwrap(body string) string {
	switch f {
	case FamilyJSONWrap:
		var env jsonEnvelope
		if err := json.Unmarshal([]byte(body), &env); err != nil {
			return body
		}
		switch {
		case env.Contents != "":
			return env.Contents
		case env.Data != "":
			return env.Data
		case env.Content != "":
			return env.Content
		}
		return body
	case FamilyRSSWrap:
		var env rssEnvelope
		if err := json.Unmarshal([]byte(body), &env); err != nil {
			return body
		}
		if len(env.Items) > 0 {
			return env.Items[0].Description
		}
		return body
	default:
		return body
	}
}

// Descriptor is one catalog entry. The catalog is configuration data, not
// control flow; dead entries can be pruned without code changes.
type Descriptor struct {
	Index    int    `json:"index"`
	Template string `json:"template"`
	Family   Family `json:"family"`
}

// Direct reports whether this is the no-intermediary pseudo-entry.
func (d Descriptor) Direct() bool {
	return d.Family == FamilyDirect
}

// BuildURL constructs the relayed URL for target through this entry.
func (d Descriptor) BuildURL(target string) string {
	return d.Family.BuildURL(d.Template, target)
}

// Directory is the ordered relay catalog. The direct entry comes first and
// is probed first.
type Directory struct {
	descriptors []Descriptor
}

// NewDirectory builds a directory from templates classified by family.
func NewDirectory(descriptors []Descriptor) *Directory {
	for i := range descriptors {
		descriptors[i].Index = i
	}
	return &Directory{descriptors: descriptors}
}

// DefaultDirectory returns the stock relay catalog. Many public relays come
// and go; health is tracked by probing, not by editing this list.
func DefaultDirectory() *Directory {
	return NewDirectory([]Descriptor{
		{Template: "", Family: FamilyDirect},
		{Template: "https://cors-anywhere-wrwp.onrender.com/", Family: FamilyRawAppend},
		{Template: "https://cors-anywhere.herokuapp.com/", Family: FamilyRawAppend},
		{Template: "https://thingproxy.freeboard.io/fetch/", Family: FamilyRawAppend},
		{Template: "https://api.allorigins.win/get?url=", Family: FamilyJSONWrap},
		{Template: "https://api.allorigins.win/raw?url=", Family: FamilyEncodedAppend},
		{Template: "https://api.codetabs.com/v1/proxy?quest=", Family: FamilyEncodedAppend},
		{Template: "https://corsproxy.io/?", Family: FamilyEncodedAppend},
		{Template: "https://cors-proxy.htmldriven.com/?url=", Family: FamilyEncodedAppend},
		{Template: "https://yacdn.org/proxy/", Family: FamilyEncodedAppend},
		{Template: "https://cors.bridged.cc/", Family: FamilyEncodedAppend},
		{Template: "https://jsonp.afeld.me/?url=", Family: FamilyJSONWrap},
		{Template: "https://cors-anywhere.azurewebsites.net/", Family: FamilyRawAppend},
		{Template: "https://cors-proxy.fringe.zone/", Family: FamilyEncodedAppend},
		{Template: "https://api.rss2json.com/v1/api.json?rss_url=" + PlaceholderToken, Family: FamilyRSSWrap},
		{Template: "https://cors-anywhere-eosin.vercel.app/", Family: FamilyRawAppend},
		{Template: "https://simple-cors-proxy.vercel.app/", Family: FamilyEncodedAppend},
		{Template: "https://cors-proxy.netlify.app/.netlify/functions/proxy?url=", Family: FamilyEncodedAppend},
		{Template: "https://cors-anywhere-production.up.railway.app/", Family: FamilyRawAppend},
	})
}

// Len reports the catalog size.
func (d *Directory) Len() int {
	return len(d.descriptors)
}

// Get returns the descriptor at index.
func (d *Directory) Get(index int) (Descriptor, bool) {
	if index < 0 || index >= len(d.descriptors) {
		return Descriptor{}, false
	}
	return d.descriptors[index], true
}

// All returns the descriptors in catalog order.
func (d *Directory) All() []Descriptor {
	out := make([]Descriptor, len(d.descriptors))
	copy(out, d.descriptors)
	return out
}

// FallbackIndices is the bounded subset swept when a fetch falls through:
// the first 6 entries when a confirmed proxy existed and failed, the first
// 10 when none was set.
func (d *Directory) FallbackIndices(hadCurrent bool) []int {
	limit := 10
	if hadCurrent {
		limit = 6
	}
	if limit > len(d.descriptors) {
		limit = len(d.descriptors)
	}
	indices := make([]int, 0, limit)
	for i := 0; i < limit; i++ {
		indices = append(indices, i)
	}
	return indices
}

const (
	// minContentLength guards against relays returning short captcha or
	// error pages with a 200 status.
	minContentLength = 1000
	tableMarker      = "<table"
)

// IsValidListingPage judges whether a body is a genuine listings page: it
// must carry the listings table marker and exceed the minimum length.
func IsValidListingPage(body string) bool {
	return len(body) > minContentLength && strings.Contains(body, tableMarker)
}
