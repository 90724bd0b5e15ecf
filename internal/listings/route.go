// Package listings turns query-parameter routes into listing views: it parses
// the route, sorts and filters what the API returned, and paginates it.
package listings

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	paramID     = "id"
	paramName   = "name"
	paramQuery  = "query"
	paramPage   = "page"
	paramSort   = "sort"
	paramActive = "active"
)

// SortKey selects the order of a listing view.
type SortKey string

const (
	SortNewest    SortKey = "newest"
	SortEnding    SortKey = "ending"
	SortBids      SortKey = "bids"
	SortPriceHigh SortKey = "price-high"
	SortPriceLow  SortKey = "price-low"
	SortTitle     SortKey = "title"
)

// SortKeys lists every supported key, default first.
func SortKeys() []SortKey {
	return []SortKey{SortNewest, SortEnding, SortBids, SortPriceHigh, SortPriceLow, SortTitle}
}

// ParseSort maps raw to a SortKey, falling back to SortNewest.
func ParseSort(raw string) SortKey {
	candidate := SortKey(strings.ToLower(strings.TrimSpace(raw)))
	for _, key := range SortKeys() {
		if key == candidate {
			return key
		}
	}
	return SortNewest
}

// Route is the state a page keeps in its query string.
type Route struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Query  string  `json:"query"`
	Page   int     `json:"page"`
	Sort   SortKey `json:"sort"`
	Active bool    `json:"active"`
}

// ParseRoute reads a route from a URL, a path with a query, or a bare query
// string.
func ParseRoute(raw string) (Route, error) {
	rawQuery := raw
	if index := strings.Index(raw, "?"); index >= 0 {
		rawQuery = raw[index+1:]
	} else if strings.Contains(raw, "/") {
		rawQuery = ""
	}
	if index := strings.Index(rawQuery, "#"); index >= 0 {
		rawQuery = rawQuery[:index]
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Route{}, fmt.Errorf("parse route %q: %w", raw, err)
	}
	return RouteFromValues(values), nil
}

// RouteFromValues reads a route from decoded query values. Malformed page
// numbers fall back to the first page.
func RouteFromValues(values url.Values) Route {
	route := Route{
		ID:    strings.TrimSpace(values.Get(paramID)),
		Name:  strings.TrimSpace(values.Get(paramName)),
		Query: strings.TrimSpace(values.Get(paramQuery)),
		Page:  1,
		Sort:  ParseSort(values.Get(paramSort)),
	}
	if page, err := strconv.Atoi(values.Get(paramPage)); err == nil && page > 1 {
		route.Page = page
	}
	if active, err := strconv.ParseBool(values.Get(paramActive)); err == nil {
		route.Active = active
	}
	return route
}

// Values encodes the route, leaving out defaults.
func (route Route) Values() url.Values {
	values := url.Values{}
	if route.ID != "" {
		values.Set(paramID, route.ID)
	}
	if route.Name != "" {
		values.Set(paramName, route.Name)
	}
	if route.Query != "" {
		values.Set(paramQuery, route.Query)
	}
	if route.Page > 1 {
		values.Set(paramPage, strconv.Itoa(route.Page))
	}
	if route.Sort != "" && route.Sort != SortNewest {
		values.Set(paramSort, string(route.Sort))
	}
	if route.Active {
		values.Set(paramActive, "true")
	}
	return values
}

// Encode returns the query string for the route without a leading "?".
func (route Route) Encode() string {
	return route.Values().Encode()
}

// WithPage returns a copy of the route pointing at page.
func (route Route) WithPage(page int) Route {
	route.Page = page
	return route
}
