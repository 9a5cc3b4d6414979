package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

var httpClient = &http.Client{}

// Location represents a geocoded place
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// Resolver turns city names into coordinates via Nominatim, with an
// optional persistent cache in front so a name is looked up over the
// network at most once.
type Resolver struct {
	cache       *Cache
	httpTimeout time.Duration
}

// NewResolver creates a resolver. cache may be nil.
func NewResolver(cache *Cache, httpTimeout time.Duration) *Resolver {
	if httpTimeout == 0 {
		httpTimeout = 10 * time.Second
	}
	return &Resolver{cache: cache, httpTimeout: httpTimeout}
}

// Resolve returns coordinates for a city name.
func (r *Resolver) Resolve(ctx context.Context, city string) (*Location, error) {
	if r.cache != nil {
		if loc, found := r.cache.Get(ctx, city); found {
			return loc, nil
		}
	}

	loc, err := r.geocode(ctx, city)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Put(ctx, city, loc)
	}
	return loc, nil
}

// geocode performs geocoding via Nominatim with a bounded timeout
func (r *Resolver) geocode(ctx context.Context, city string) (*Location, error) {
	ctx, cancel := context.WithTimeout(ctx, r.httpTimeout)
	defer cancel()

	apiURL := fmt.Sprintf("https://nominatim.openstreetmap.org/search?q=%s&format=json&limit=1",
		url.QueryEscape(city))

	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "duskd/1.0")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var results []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("location not found: %s", city)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("geocoder returned bad latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("geocoder returned bad longitude %q: %w", results[0].Lon, err)
	}

	loc := &Location{
		Name:      results[0].DisplayName,
		Latitude:  lat,
		Longitude: lon,
	}

	log.Info().
		Str("query", city).
		Str("resolved", loc.Name).
		Float64("lat", lat).
		Float64("lon", lon).
		Msg("Location geocoded via Nominatim")

	return loc, nil
}
