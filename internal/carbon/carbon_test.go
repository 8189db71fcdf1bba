// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package carbon

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/staranto/carbonctlgo/internal/region"
)

func newTestServer(t *testing.T, intensities map[string]float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/carbon-intensity/latest", r.URL.Path)
		assert.Equal(t, "test-token", r.Header.Get("auth-token"))

		zone := r.URL.Query().Get("zone")
		intensity, ok := intensities[zone]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `{"message":"unknown zone %s"}`, zone)
			return
		}
		fmt.Fprintf(w, `{"zone":%q,"carbonIntensity":%g,"updatedAt":"2025-06-01T12:00:00.000Z"}`, zone, intensity)
	}))
}

func TestLatest(t *testing.T) {
	t.Setenv("CARBONCTL_CACHE", "0")

	srv := newTestServer(t, map[string]float64{"IE": 290.5})
	defer srv.Close()

	c := New("test-token", WithBaseURL(srv.URL))

	intensity, updated, err := c.Latest(context.Background(), "IE")
	assert.NoError(t, err)
	assert.Equal(t, 290.5, intensity)
	assert.Equal(t, "2025-06-01T12:00:00.000Z", updated)
}

func TestLatest_NoToken(t *testing.T) {
	c := New("")
	_, _, err := c.Latest(context.Background(), "IE")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestLatest_BadStatus(t *testing.T) {
	t.Setenv("CARBONCTL_CACHE", "0")

	srv := newTestServer(t, nil)
	defer srv.Close()

	c := New("test-token", WithBaseURL(srv.URL))
	_, _, err := c.Latest(context.Background(), "XX")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
}

func TestLatest_MissingIntensity(t *testing.T) {
	t.Setenv("CARBONCTL_CACHE", "0")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"zone":"IE"}`)
	}))
	defer srv.Close()

	c := New("test-token", WithBaseURL(srv.URL))
	_, _, err := c.Latest(context.Background(), "IE")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no carbonIntensity")
}

func TestLatest_CacheHit(t *testing.T) {
	t.Setenv("CARBONCTL_CACHE_DIR", t.TempDir())

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"carbonIntensity":101,"updatedAt":"2025-06-01T12:00:00.000Z"}`)
	}))
	defer srv.Close()

	c := New("test-token", WithBaseURL(srv.URL))

	for range 3 {
		intensity, _, err := c.Latest(context.Background(), "DE")
		assert.NoError(t, err)
		assert.Equal(t, 101.0, intensity)
	}
	assert.Equal(t, 1, calls, "second and third reads should come from the cache")
}

func TestSnapshot(t *testing.T) {
	t.Setenv("CARBONCTL_CACHE", "0")

	srv := newTestServer(t, map[string]float64{"IE": 290, "GB": 150})
	defer srv.Close()

	c := New("test-token", WithBaseURL(srv.URL))

	// DE is not served, so its reading fails and the report is degraded.
	rep := c.Snapshot(context.Background(), region.Default())
	assert.Len(t, rep.Readings, 3)
	assert.True(t, rep.Degraded())

	best, ok := rep.Best()
	assert.True(t, ok)
	assert.Equal(t, "eu-west-2", best.Region)
	assert.Equal(t, 150.0, best.Intensity)
}

func TestReport_Best_NoReadings(t *testing.T) {
	rep := Report{Readings: []Reading{
		{Region: "eu-west-1", Error: "boom"},
		{Region: "eu-west-2", Error: "boom"},
	}}
	_, ok := rep.Best()
	assert.False(t, ok)
	assert.True(t, rep.Degraded())
}

func TestReport_Best_ZeroIntensityWins(t *testing.T) {
	rep := Report{Readings: []Reading{
		{Region: "eu-west-1", Intensity: 0},
		{Region: "eu-west-2", Intensity: 120},
	}}
	best, ok := rep.Best()
	assert.True(t, ok)
	assert.Equal(t, "eu-west-1", best.Region)
}
