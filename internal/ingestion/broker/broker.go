// Package broker is the CMR/Harmony-style HTTP client the Ingestion Driver
// uses to fetch one gas's coverage subset, per §4.C.
package broker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aeris-platform/aeris/internal/core/httpclient"
	"github.com/aeris-platform/aeris/internal/core/model"
	"github.com/aeris-platform/aeris/internal/core/observability"
)

// Credentials resolves a bearer token for Harmony requests.
type Credentials struct {
	BearerToken string
	BasicUser   string
	BasicPass   string
}

// Client fetches coverage-subset rasters from a Harmony-style broker.
type Client struct {
	baseURL string
	http    *http.Client
	creds   Credentials

	pollInterval time.Duration
	pollTimeout  time.Duration
	retryBase    time.Duration
}

// Options configures non-default poll cadence; zero values fall back to
// the §4.C defaults (10s interval, 3600s hard timeout, 10s retry base).
type Options struct {
	HTTPClient   *http.Client
	PollInterval time.Duration
	PollTimeout  time.Duration
	RetryBase    time.Duration
}

func New(baseURL string, creds Credentials, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = httpclient.NewOutbound()
		httpClient.Timeout = 60 * time.Second
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 3600 * time.Second
	}
	retryBase := opts.RetryBase
	if retryBase <= 0 {
		retryBase = 10 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         httpClient,
		creds:        creds,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		retryBase:    retryBase,
	}
}

// ResolveBearerToken prefers a configured long-lived token; otherwise it
// exchanges basic credentials for one, preferring an existing token (GET)
// over minting a new one (POST), matching the CMR/Harmony credential
// preference order.
func (c *Client) ResolveBearerToken(ctx context.Context) (string, error) {
	if c.creds.BearerToken != "" {
		return c.creds.BearerToken, nil
	}
	if c.creds.BasicUser == "" || c.creds.BasicPass == "" {
		return "", fmt.Errorf("broker: no bearer token and no basic credentials configured")
	}

	basic := base64.StdEncoding.EncodeToString([]byte(c.creds.BasicUser + ":" + c.creds.BasicPass))
	headers := map[string]string{"Authorization": "Basic " + basic}

	if tok, ok := c.tryExistingToken(ctx, headers); ok {
		return tok, nil
	}
	return c.mintToken(ctx, headers)
}

func (c *Client) tryExistingToken(ctx context.Context, headers map[string]string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/users/tokens", nil)
	if err != nil {
		return "", false
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false
	}
	var tokens []struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil || len(tokens) == 0 {
		return "", false
	}
	return tokens[0].AccessToken, tokens[0].AccessToken != ""
}

func (c *Client) mintToken(ctx context.Context, headers map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/users/token", nil)
	if err != nil {
		return "", fmt.Errorf("broker: build mint-token request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("broker: mint token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("broker: mint token: status %d", resp.StatusCode)
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("broker: decode mint-token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("broker: mint-token response had no access_token")
	}
	return out.AccessToken, nil
}

// CoverageURL builds the OGC API Coverages rangeset URL for collection and
// variable, subsetting by bbox and [start,end).
func (c *Client) CoverageURL(collectionID, variable string, bbox model.Extent, start, end time.Time) string {
	base := fmt.Sprintf("%s/%s/ogc-api-coverages/1.0.0/collections/%s/coverage/rangeset", c.baseURL, collectionID, variable)
	q := url.Values{}
	q.Set("subset", fmt.Sprintf("lon(%g:%g)", bbox.West, bbox.East))
	q.Add("subset", fmt.Sprintf("lat(%g:%g)", bbox.South, bbox.North))
	q.Add("subset", fmt.Sprintf("time(%q:%q)", start.UTC().Format("2006-01-02T15:04:05.000Z"), end.UTC().Format("2006-01-02T15:04:05.000Z")))
	q.Set("format", "image/tiff")
	return base + "?" + q.Encode()
}

// Outcome is the three-way response shape §4.C.3 defines.
type Outcome struct {
	// SyncBody is set when the broker returned the raster directly.
	SyncBody []byte
	// JobURL is set when the request must be polled (redirect or JSON job id).
	JobURL string
}

// Submit performs the GET and classifies the response per §4.C.3, retrying
// 429/5xx with exponential backoff (base 10s, doubling, max 3 attempts); a
// 4xx other than 429 aborts immediately without retry.
func (c *Client) Submit(ctx context.Context, gas model.Gas, coverageURL, token string) (Outcome, error) {
	var out Outcome

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverageURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("broker: build request: %w", err))
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("broker: request: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusSeeOther || resp.StatusCode == http.StatusTemporaryRedirect:
			loc := resp.Header.Get("Location")
			if loc == "" {
				return backoff.Permanent(fmt.Errorf("broker: redirect with no Location"))
			}
			out = Outcome{JobURL: c.absolute(loc)}
			return nil

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			observability.ObserveIngestionOutcome(string(gas), "retry")
			return fmt.Errorf("broker: retryable status %d", resp.StatusCode)

		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("broker: non-retryable status %d", resp.StatusCode))

		case resp.StatusCode == http.StatusOK:
			ct := resp.Header.Get("Content-Type")
			if strings.Contains(ct, "application/json") {
				var payload struct {
					JobID string `json:"jobID"`
					Links []struct {
						Rel  string `json:"rel"`
						Href string `json:"href"`
					} `json:"links"`
				}
				body, err := io.ReadAll(resp.Body)
				if err != nil {
					return fmt.Errorf("broker: read json body: %w", err)
				}
				if err := json.Unmarshal(body, &payload); err != nil {
					return backoff.Permanent(fmt.Errorf("broker: decode json body: %w", err))
				}
				if payload.JobID != "" {
					out = Outcome{JobURL: c.absolute("jobs/" + payload.JobID)}
					return nil
				}
				for _, l := range payload.Links {
					if l.Rel == "data" && l.Href != "" {
						out = Outcome{JobURL: c.absolute(l.Href)}
						return nil
					}
				}
				return backoff.Permanent(fmt.Errorf("broker: json response had neither jobID nor data link"))
			}
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("broker: read binary body: %w", err)
			}
			out = Outcome{SyncBody: body}
			return nil

		default:
			return backoff.Permanent(fmt.Errorf("broker: unexpected status %d", resp.StatusCode))
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryBase
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0
	retrier := backoff.WithMaxRetries(bo, 2) // 3 total attempts

	if err := backoff.Retry(op, backoff.WithContext(retrier, ctx)); err != nil {
		observability.ObserveIngestionOutcome(string(gas), "error")
		return Outcome{}, err
	}
	return out, nil
}

func (c *Client) absolute(ref string) string {
	if strings.HasPrefix(ref, "http") {
		return ref
	}
	return c.baseURL + "/" + strings.TrimLeft(ref, "/")
}

// jobStatus mirrors the Harmony job resource's shape.
type jobStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Links   []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

// PollJob polls jobURL until it reaches a terminal successful or failed
// state, per §4.C.5 (10s interval, 3600s hard timeout). On success it
// returns the first "data" link's contents.
func (c *Client) PollJob(ctx context.Context, gas model.Gas, jobURL, token string) ([]byte, error) {
	deadline := time.Now().Add(c.pollTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		started := time.Now()
		status, err := c.fetchJobStatus(ctx, jobURL, token)
		observability.ObserveJobPoll(string(gas), time.Since(started))
		if err != nil {
			return nil, err
		}

		s := strings.ToLower(status.Status)
		switch s {
		case "successful", "complete":
			for _, l := range status.Links {
				if l.Rel == "data" && l.Href != "" {
					return c.download(ctx, c.absolute(l.Href), token)
				}
			}
			return nil, fmt.Errorf("broker: job %s completed with no data link", jobURL)
		case "failed", "canceled", "error":
			return nil, fmt.Errorf("broker: job %s %s: %s", jobURL, s, status.Message)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("broker: job %s did not complete within %s", jobURL, c.pollTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) fetchJobStatus(ctx context.Context, jobURL, token string) (jobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jobURL, nil)
	if err != nil {
		return jobStatus{}, fmt.Errorf("broker: build job status request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return jobStatus{}, fmt.Errorf("broker: job status request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return jobStatus{}, fmt.Errorf("broker: job status %s returned %d", jobURL, resp.StatusCode)
	}
	var js jobStatus
	if err := json.NewDecoder(resp.Body).Decode(&js); err != nil {
		return jobStatus{}, fmt.Errorf("broker: decode job status: %w", err)
	}
	return js, nil
}

func (c *Client) download(ctx context.Context, dataURL, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dataURL, nil)
	if err != nil {
		return nil, fmt.Errorf("broker: build download request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("broker: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("broker: download %s returned %d", dataURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("broker: read download body: %w", err)
	}
	return body, nil
}
