// Package weather wraps WeatherAPI.com's current-conditions endpoint, per
// §6's weather provider contract; the forecast endpoint is not wrapped. A
// failure here degrades gracefully: the alert pipeline treats a weather
// lookup error as "wind shift not evaluated", never as a fatal error.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aeris-platform/aeris/internal/cache"
	"github.com/aeris-platform/aeris/internal/cache/keys"
	"github.com/aeris-platform/aeris/internal/core/httpclient"
)

const defaultBaseURL = "http://api.weatherapi.com/v1"

// Reading is the subset of WeatherAPI.com's "current" block AERIS consumes.
type Reading struct {
	TempC      float64
	Humidity   int
	WindKph    float64
	WindDegree float64 // "wind_from" convention: direction the wind blows from
	Condition  string

	HasAirQuality bool
	AirQuality    AirQuality
}

// AirQuality mirrors WeatherAPI.com's optional air_quality block.
type AirQuality struct {
	CO       float64 `json:"co"`
	NO2      float64 `json:"no2"`
	O3       float64 `json:"o3"`
	PM2_5    float64 `json:"pm2_5"`
	PM10     float64 `json:"pm10"`
	USEPAIdx float64 `json:"us-epa-index"`
}

// Client fetches and caches weather readings.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cache   cache.Interface // optional; nil disables caching
}

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Cache      cache.Interface
}

// New builds a Client. An empty apiKey is valid: every call then returns
// ErrNotConfigured immediately, matching the original provider's graceful
// degrade-to-disabled behavior rather than panicking at construction time.
func New(apiKey string, opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = httpclient.NewOutbound()
		httpClient.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
		cache:   opts.Cache,
	}
}

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = fmt.Errorf("weather: api key not configured")

type currentResponse struct {
	Current struct {
		TempC      float64 `json:"temp_c"`
		Humidity   int     `json:"humidity"`
		WindKph    float64 `json:"wind_kph"`
		WindDegree float64 `json:"wind_degree"`
		Condition  struct {
			Text string `json:"text"`
		} `json:"condition"`
		AirQuality *AirQuality `json:"air_quality"`
	} `json:"current"`
}

// Current fetches the current reading at (lat,lon), serving from cache when
// available. A nil cache on the Client disables this path entirely.
func (c *Client) Current(ctx context.Context, lat, lon float64) (Reading, error) {
	if c.apiKey == "" {
		return Reading{}, ErrNotConfigured
	}

	key := keys.WeatherKey(lat, lon, 1)
	if c.cache != nil {
		if hit, err := c.cache.MGet([]string{key}); err == nil {
			if raw, ok := hit[key]; ok {
				var r Reading
				if err := json.Unmarshal(raw, &r); err == nil {
					return r, nil
				}
			}
		}
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("q", fmt.Sprintf("%s,%s", strconv.FormatFloat(lat, 'f', -1, 64), strconv.FormatFloat(lon, 'f', -1, 64)))
	q.Set("aqi", "yes")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/current.json?"+q.Encode(), nil)
	if err != nil {
		return Reading{}, fmt.Errorf("weather: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("weather: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Reading{}, fmt.Errorf("weather: api returned %d", resp.StatusCode)
	}

	var body currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Reading{}, fmt.Errorf("weather: decode response: %w", err)
	}

	reading := Reading{
		TempC:      body.Current.TempC,
		Humidity:   body.Current.Humidity,
		WindKph:    body.Current.WindKph,
		WindDegree: body.Current.WindDegree,
		Condition:  body.Current.Condition.Text,
	}
	if body.Current.AirQuality != nil {
		reading.HasAirQuality = true
		reading.AirQuality = *body.Current.AirQuality
	}

	if c.cache != nil {
		if raw, err := json.Marshal(reading); err == nil {
			// ttl=0 lets the cache.Adapter resolve the weather: family's
			// default from §4.M; a plain map-based fake cache (as used in
			// tests) just ignores the value.
			_ = c.cache.Set(key, raw, 0)
		}
	}
	return reading, nil
}
