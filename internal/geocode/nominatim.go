package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// NominatimConfig configures the OpenStreetMap Nominatim provider.
type NominatimConfig struct {
	BaseURL     string        // e.g. https://nominatim.openstreetmap.org
	UserAgent   string        // required by the public instance usage policy
	Proxy       string        // optional http(s) proxy URL
	Timeout     time.Duration // per request
	MinInterval time.Duration // minimum spacing between requests
}

// Nominatim queries a Nominatim instance with structured address parameters.
type Nominatim struct {
	cfg    NominatimConfig
	client *http.Client

	mu   sync.Mutex
	last time.Time
}

// NewNominatim builds the provider. An unparseable proxy is an error.
func NewNominatim(cfg NominatimConfig) (*Nominatim, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("nominatim: base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Proxy != "" {
		u, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("nominatim: invalid proxy %q: %w", cfg.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	return &Nominatim{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout, Transport: transport},
	}, nil
}

type nominatimPlace struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	PlaceRank   int     `json:"place_rank"`
	Importance  float64 `json:"importance"`
	Category    string  `json:"category"`
	Type        string  `json:"type"`
	DisplayName string  `json:"display_name"`
}

// qualityFromRank maps the OSM place rank of a match to a geo_qual code:
// buildings are Good, streets Medium, settlements Low.
func qualityFromRank(rank int) Quality {
	switch {
	case rank >= 30:
		return Good
	case rank >= 26:
		return Medium
	default:
		return Low
	}
}

func (n *Nominatim) Geocode(ctx context.Context, a Address, verbose bool) (Result, error) {
	if err := n.wait(ctx); err != nil {
		return Result{}, err
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	if s := a.StreetLine(); s != "" {
		q.Set("street", s)
	}
	if a.City != "" {
		q.Set("city", a.City)
	}
	if a.Postcode != "" {
		q.Set("postalcode", a.Postcode)
	}
	if a.CountryName != "" {
		q.Set("country", a.CountryName)
	}
	if cc := isoCode(a.CountryCode); cc != "" {
		q.Set("countrycodes", cc)
	}

	endpoint := strings.TrimRight(n.cfg.BaseURL, "/") + "/search?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, err
	}
	if n.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", n.cfg.UserAgent)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("nominatim: unexpected status %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return Result{}, fmt.Errorf("nominatim: decode response: %w", err)
	}
	if verbose {
		slog.Info("nominatim", "query", q.Encode(), "matches", len(places))
	}
	if len(places) == 0 {
		return Result{Quality: Unknown, Matching: "no match"}, nil
	}

	p := places[0]
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return Result{}, fmt.Errorf("nominatim: invalid lat %q", p.Lat)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return Result{}, fmt.Errorf("nominatim: invalid lon %q", p.Lon)
	}

	return Result{
		Lon:        lon,
		Lat:        lat,
		Quality:    qualityFromRank(p.PlaceRank),
		Matching:   p.Category + "/" + p.Type,
		Confidence: p.Importance,
	}, nil
}

// wait spaces requests by MinInterval.
func (n *Nominatim) wait(ctx context.Context) error {
	if n.cfg.MinInterval <= 0 {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if d := n.cfg.MinInterval - time.Since(n.last); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	n.last = time.Now()
	return nil
}

// isoCode converts Eurostat country codes to ISO 3166-1 alpha-2.
func isoCode(cc string) string {
	switch cc {
	case "EL":
		return "gr"
	case "UK":
		return "gb"
	}
	return strings.ToLower(cc)
}
