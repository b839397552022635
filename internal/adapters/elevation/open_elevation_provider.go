package elevation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"route-profile-service/internal/platform/obs"
	"strconv"
	"strings"
	"time"
)

type lookupResponse struct {
	Results []struct {
		Elevation *float64 `json:"elevation"`
	} `json:"results"`
}

// OpenElevationProvider implements ElevationProvider against the
// Open-Elevation lookup API (GET /api/v1/lookup?locations=lat,lng).
//
// Each Lookup is a single request bounded by the configured timeout; there is
// no retry. The provider is safe for concurrent use.
type OpenElevationProvider struct {
	session   *http.Client
	baseURL   string
	timeout   time.Duration
	userAgent string
}

type Option func(*OpenElevationProvider)

// WithHTTPClient replaces the default client (tests point it at httptest).
func WithHTTPClient(c *http.Client) Option {
	return func(o *OpenElevationProvider) { o.session = c }
}

func WithUserAgent(ua string) Option {
	return func(o *OpenElevationProvider) { o.userAgent = ua }
}

func NewOpenElevationProvider(baseURL string, timeout time.Duration, opts ...Option) (*OpenElevationProvider, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("open elevation: base url is empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	provider := &OpenElevationProvider{
		session: &http.Client{},
		baseURL: baseURL,
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(provider)
	}

	return provider, nil
}

// Lookup returns the elevation for one coordinate, or nil when the response
// carries no result entries.
func (o *OpenElevationProvider) Lookup(ctx context.Context, lat, lng float64) (_ *float64, err error) {
	defer obs.Time(ctx, "elevation.Lookup")(&err)

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := o.newRequest(ctx, http.MethodGet, o.baseURL+"/api/v1/lookup")
	if err != nil {
		return nil, fmt.Errorf("elevation lookup request: %w", err)
	}

	q := req.URL.Query()
	q.Set("locations", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lng, 'f', -1, 64))
	req.URL.RawQuery = q.Encode()

	resp, err := o.do(req)
	if err != nil {
		return nil, fmt.Errorf("elevation lookup (%v,%v): %w", lat, lng, err)
	}
	defer resp.Body.Close()

	var decoded lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode elevation response: %w", err)
	}

	if len(decoded.Results) == 0 {
		return nil, nil
	}

	return decoded.Results[0].Elevation, nil
}
