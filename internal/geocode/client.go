// Package geocode resolves institution locations through a
// Nominatim-compatible search API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gameleadership/leadmap/internal/directory"
	"golang.org/x/time/rate"
)

const (
	// BaseURL is the public Nominatim search endpoint.
	BaseURL = "https://nominatim.openstreetmap.org/search"

	// DefaultUserAgent identifies the client per the Nominatim usage policy.
	DefaultUserAgent = "game-leadership-map/1.0 (Nominatim usage)"

	// DefaultTimeout is the HTTP request timeout.
	DefaultTimeout = 10 * time.Second

	// RateLimit is 1 request per second per the Nominatim usage policy.
	RateLimit = 1.0

	// maxBodySize caps how much of a response is read.
	maxBodySize = 1 << 20
)

// Query describes the place to look up. Empty parts are left out.
type Query struct {
	InstitutionName string
	City            string
	CountryName     string
	CountryCode     string
}

// Text is the free-form search string, or "" when the query has no parts.
func (q Query) Text() string {
	var parts []string
	for _, p := range []string{q.InstitutionName, q.City, q.CountryName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Outcome is the result of a lookup. Status is one of the directory geocode
// statuses success, no_results, error or skipped. Raw holds the service
// response, or error details, as JSON.
type Outcome struct {
	Status    string          `json:"status"`
	Latitude  float64         `json:"latitude,omitempty"`
	Longitude float64         `json:"longitude,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// Client is a rate-limited geocoding client.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	userAgent  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets the search endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRateLimit sets the request rate in requests per second.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewClient creates a geocoding client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup geocodes q. It never fails: transport and service problems are
// reported as an error Outcome so callers can carry on without coordinates.
func (c *Client) Lookup(ctx context.Context, q Query) Outcome {
	text := q.Text()
	if text == "" {
		return Outcome{Status: directory.GeocodeSkipped}
	}

	places, err := c.search(ctx, text, q.CountryCode)
	if err != nil {
		return errorOutcome(err)
	}
	if len(places) == 0 {
		return Outcome{Status: directory.GeocodeNoResults}
	}

	var match struct {
		Lat json.RawMessage `json:"lat"`
		Lon json.RawMessage `json:"lon"`
	}
	if err := json.Unmarshal(places[0], &match); err != nil {
		return Outcome{Status: directory.GeocodeError, Raw: places[0]}
	}
	lat, latOK := parseCoordinate(match.Lat)
	lon, lonOK := parseCoordinate(match.Lon)
	if !latOK || !lonOK {
		return Outcome{Status: directory.GeocodeError, Raw: places[0]}
	}
	return Outcome{
		Status:    directory.GeocodeSuccess,
		Latitude:  lat,
		Longitude: lon,
		Raw:       places[0],
	}
}

// search runs one request and returns the raw result objects.
func (c *Client) search(ctx context.Context, text, countryCode string) ([]json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	params := u.Query()
	params.Set("q", text)
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("limit", "1")
	if cc := strings.TrimSpace(countryCode); cc != "" {
		params.Set("countrycodes", strings.ToLower(cc))
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	var places []json.RawMessage
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return places, nil
}

func checkHTTPErrors(resp *http.Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", ErrRateLimited, &APIError{StatusCode: resp.StatusCode})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return nil
}

func errorOutcome(err error) Outcome {
	details := map[string]any{"message": err.Error()}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		details = map[string]any{"status": apiErr.StatusCode}
	}
	raw, _ := json.Marshal(details)
	return Outcome{Status: directory.GeocodeError, Raw: raw}
}

// parseCoordinate accepts Nominatim's string coordinates and plain numbers.
func parseCoordinate(raw json.RawMessage) (float64, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
