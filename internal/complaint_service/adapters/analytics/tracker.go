// Package analytics posts filing events to Google Analytics via the
// Measurement Protocol. Failures are logged and never surfaced; analytics
// must not affect the request outcome.
package analytics

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultEndpoint = "http://www.google-analytics.com/collect"

// Tracker is a fire-and-forget Measurement Protocol client. A zero tracking
// ID disables it.
type Tracker struct {
	endpoint   string
	trackingID string
	clientID   string
	client     *http.Client
	logger     *slog.Logger
}

func NewTracker(trackingID, clientID string, logger *slog.Logger) *Tracker {
	return &Tracker{
		endpoint:   defaultEndpoint,
		trackingID: trackingID,
		clientID:   clientID,
		client:     &http.Client{Timeout: 5 * time.Second},
		logger:     logger.With("component", "analytics_tracker"),
	}
}

// TrackFiling records one confirmed complaint filing.
func (t *Tracker) TrackFiling(ctx context.Context, target, sender string) {
	if t.trackingID == "" {
		return
	}

	form := url.Values{
		"v":   {"1"},
		"tid": {t.trackingID},
		"cid": {t.clientID},
		"t":   {"event"},
		"ec":  {"complaint"},
		"ea":  {"file"},
		"el":  {target},
		"ev":  {sender},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		t.logger.WarnContext(ctx, "Failed to build analytics request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.WarnContext(ctx, "Failed to post analytics event", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		t.logger.WarnContext(ctx, "Analytics endpoint rejected event", "status", resp.StatusCode)
	}
}
