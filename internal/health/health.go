// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package health polls deployed instances over plain HTTP. A new instance
// isn't trusted (and the old one isn't torn down) until it answers 200.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/apex/log"
)

// Status classifies a one-shot probe.
type Status string

const (
	StatusHealthy     Status = "healthy"
	StatusUnhealthy   Status = "unhealthy"
	StatusUnreachable Status = "unreachable"
)

// Poller polls an HTTP endpoint until it answers 200.
type Poller struct {
	// Client is used for every request. Its timeout bounds each attempt.
	Client *http.Client
	// Attempts is the maximum number of polls before giving up.
	Attempts int
	// Interval is the pause between attempts.
	Interval time.Duration
}

// NewPoller returns a Poller with the standard rollout budget: 20 attempts,
// 5s apart, 3s per request.
func NewPoller() *Poller {
	return &Poller{
		Client:   &http.Client{Timeout: 3 * time.Second},
		Attempts: 20,
		Interval: 5 * time.Second,
	}
}

// WaitForOK polls url until a 200 arrives or the attempt budget runs out.
// Context cancellation aborts between attempts.
func (p *Poller) WaitForOK(ctx context.Context, url string) error {
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if ok := p.check(ctx, url); ok {
			log.Infof("HTTP check succeeded for %s", url)
			return nil
		}

		log.Infof("attempt %d/%d: waiting for HTTP 200 from %s", attempt, p.Attempts, url)

		if attempt == p.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Interval):
		}
	}
	return fmt.Errorf("gave up waiting for a successful HTTP response from %s", url)
}

// Probe classifies url with a single request.
func (p *Poller) Probe(ctx context.Context, url string) Status {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return StatusUnreachable
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return StatusUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return StatusHealthy
	}
	return StatusUnhealthy
}

func (p *Poller) check(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		log.Debugf("HTTP request failed for %s: %v", url, err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
