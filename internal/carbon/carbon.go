// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package carbon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/apex/log"
	"github.com/tidwall/gjson"

	"github.com/staranto/carbonctlgo/internal/cacheutil"
	"github.com/staranto/carbonctlgo/internal/region"
)

// DefaultBaseURL is the Electricity Maps API host.
const DefaultBaseURL = "https://api.electricitymap.org"

// ErrNoToken is returned before any network call when the API token is
// missing. Callers treat it as a configuration error, not a zone failure.
var ErrNoToken = errors.New("no Electricity Maps API token configured")

// Reading is the carbon intensity of one candidate region's grid zone.
// A failed query leaves Intensity zero and records the failure in Error.
type Reading struct {
	Region    string  `json:"region"`
	Name      string  `json:"name"`
	Zone      string  `json:"zone"`
	Intensity float64 `json:"intensity"`
	UpdatedAt string  `json:"updated_at,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// OK reports whether the reading carries a usable intensity.
func (r Reading) OK() bool {
	return r.Error == ""
}

// Report is a point-in-time snapshot of all candidate regions.
type Report struct {
	Readings []Reading `json:"readings"`
}

// Best returns the reading with the lowest intensity among successful
// readings. The second return is false when no zone could be queried.
func (rep Report) Best() (Reading, bool) {
	var best Reading
	found := false
	for _, r := range rep.Readings {
		if !r.OK() {
			continue
		}
		if !found || r.Intensity < best.Intensity {
			best = r
			found = true
		}
	}
	return best, found
}

// Degraded reports whether any zone query failed.
func (rep Report) Degraded() bool {
	for _, r := range rep.Readings {
		if !r.OK() {
			return true
		}
	}
	return false
}

// Client queries the Electricity Maps latest-intensity endpoint, with an
// on-disk response cache so repeated invocations inside one signal period
// don't burn API quota.
type Client struct {
	baseURL string
	token   string
	ttl     time.Duration
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API host (tests, self-hosted proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTTL sets the cache TTL. TTL <= 0 disables the response cache.
func WithTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New constructs a Client. The zero TTL default of 300s tracks the API's
// hourly-ish refresh cadence without going stale inside a cron window.
func New(token string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		ttl:     300 * time.Second,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Latest fetches the current carbon intensity for a zone code ("IE", "GB",
// "DE"). It returns the intensity in gCO2eq/kWh and the API's updatedAt
// timestamp.
func (c *Client) Latest(ctx context.Context, zone string) (float64, string, error) {
	if c.token == "" {
		return 0, "", ErrNoToken
	}

	if doc, ok := c.cacheRead(zone); ok {
		return parseLatest(doc, zone)
	}

	u := fmt.Sprintf("%s/v3/carbon-intensity/latest?zone=%s", c.baseURL, url.QueryEscape(zone))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("auth-token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to query zone %s: %w", zone, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("zone %s: unexpected status %s", zone, resp.Status)
	}

	var doc bytes.Buffer
	if _, err := doc.ReadFrom(resp.Body); err != nil {
		return 0, "", fmt.Errorf("failed to read response: %w", err)
	}

	intensity, updated, err := parseLatest(doc.Bytes(), zone)
	if err != nil {
		return 0, "", err
	}

	c.cacheWrite(zone, doc.Bytes())
	return intensity, updated, nil
}

// Snapshot queries every candidate region sequentially and never aborts on a
// zone failure; failures are recorded per reading.
func (c *Client) Snapshot(ctx context.Context, regions []region.Region) Report {
	var rep Report
	for _, r := range regions {
		reading := Reading{Region: r.ID, Name: r.Name, Zone: r.Zone}
		intensity, updated, err := c.Latest(ctx, r.Zone)
		if err != nil {
			log.WithError(err).Errorf("failed to read carbon intensity for %s", r)
			reading.Error = err.Error()
		} else {
			reading.Intensity = intensity
			reading.UpdatedAt = updated
			log.Infof("%s current carbon intensity: %g gCO2/kWh", r, intensity)
		}
		rep.Readings = append(rep.Readings, reading)
	}
	return rep
}

func parseLatest(doc []byte, zone string) (float64, string, error) {
	body := gjson.ParseBytes(doc)
	intensity := body.Get("carbonIntensity")
	if !intensity.Exists() {
		return 0, "", fmt.Errorf("zone %s: response has no carbonIntensity", zone)
	}
	return intensity.Float(), body.Get("updatedAt").String(), nil
}

func (c *Client) cacheRead(zone string) ([]byte, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	entry, ok := cacheutil.Read([]string{"carbon"}, c.baseURL+"/"+zone)
	if !ok {
		return nil, false
	}
	if time.Since(entry.ModTime) > c.ttl {
		return nil, false
	}
	log.Debugf("cache hit: %s", entry.Path)
	return entry.Data, true
}

func (c *Client) cacheWrite(zone string, doc []byte) {
	if c.ttl <= 0 {
		return
	}
	if err := cacheutil.Write([]string{"carbon"}, c.baseURL+"/"+zone, doc); err != nil {
		log.WithError(err).Warn("failed to write carbon reading to cache")
	}
}
