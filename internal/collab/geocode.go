package collab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"googlemaps.github.io/maps"

	"github.com/sarmiento-reclamos/reclamos/internal/cache"
	"github.com/sarmiento-reclamos/reclamos/internal/model"
)

const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"

	// GeocodeCellLevel is the s2 level used for cache keys, about 10 m².
	GeocodeCellLevel = 20

	userAgent = "reclamos-sarmiento/1.0"
)

// ReverseGeocoder turns a position into a street address.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, pos model.Position) (string, error)
}

// BestEffortAddress returns the address for pos, or "" when g is nil or
// fails. It never returns an error.
func BestEffortAddress(ctx context.Context, g ReverseGeocoder, pos model.Position, l log.Interface) string {
	if g == nil {
		return ""
	}
	addr, err := g.ReverseGeocode(ctx, pos)
	if err != nil {
		if l != nil {
			l.WithError(err).Debug("reverse geocoding failed")
		}
		return ""
	}
	return strings.TrimSpace(addr)
}

// Nominatim reverse-geocodes with OpenStreetMap Nominatim.
type Nominatim struct {
	BaseURL string
	HTTP    *http.Client
}

func NewNominatim(baseURL string) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	return &Nominatim{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: &http.Client{Timeout: httpTimeout}}
}

func (n *Nominatim) ReverseGeocode(ctx context.Context, pos model.Position) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(pos.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(pos.Lng, 'f', -1, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	var body struct {
		DisplayName string `json:"display_name"`
	}
	client := n.HTTP
	if client == nil {
		client = &http.Client{Timeout: httpTimeout}
	}
	header := http.Header{"User-Agent": []string{userAgent}}
	if err := getJSON(ctx, client, n.BaseURL+"/reverse?"+q.Encode(), header, &body); err != nil {
		return "", fmt.Errorf("nominatim reverse: %w", err)
	}
	if body.DisplayName == "" {
		return "", fmt.Errorf("nominatim reverse: %w", ErrUnavailable)
	}
	return body.DisplayName, nil
}

type mapsAPI interface {
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// GoogleMaps reverse-geocodes with the Google Maps Geocoding API.
type GoogleMaps struct {
	client   mapsAPI
	language string
}

// NewGoogleMaps creates a geocoder for apiKey. Results are in Spanish.
func NewGoogleMaps(apiKey string, opts ...maps.ClientOption) (*GoogleMaps, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google maps: API key not set")
	}
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating maps client: %w", err)
	}
	return &GoogleMaps{client: client, language: "es"}, nil
}

func (g *GoogleMaps) ReverseGeocode(ctx context.Context, pos model.Position) (string, error) {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: pos.Lat, Lng: pos.Lng},
		Language: g.language,
	})
	if err != nil {
		return "", fmt.Errorf("google reverse geocode: %w", err)
	}
	for _, r := range results {
		if r.FormattedAddress != "" {
			return r.FormattedAddress, nil
		}
	}
	return "", fmt.Errorf("google reverse geocode: %w", ErrUnavailable)
}

// CachedGeocoder memoizes another geocoder in a file cache keyed by the s2
// cell of the position.
type CachedGeocoder struct {
	next  ReverseGeocoder
	cache *cache.FileCache
	ttl   time.Duration
}

func NewCachedGeocoder(next ReverseGeocoder, fc *cache.FileCache, ttl time.Duration) *CachedGeocoder {
	return &CachedGeocoder{next: next, cache: fc, ttl: ttl}
}

type cachedAddress struct {
	Address string `json:"address"`
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, pos model.Position) (string, error) {
	key := "geo-" + pos.CellToken(GeocodeCellLevel)
	var hit cachedAddress
	if c.cache.Get(key, c.ttl, &hit) && hit.Address != "" {
		return hit.Address, nil
	}

	addr, err := c.next.ReverseGeocode(ctx, pos)
	if err != nil {
		return "", err
	}
	_ = c.cache.Set(key, cachedAddress{Address: addr})
	return addr, nil
}
